package ports

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-nbload/internal/domain"
)

// lineLanguage is a toy Language: every non-blank line is one statement and
// `name = value` lines bind value as a string.
type lineLanguage struct{}

func (lineLanguage) Name() string { return "lines" }

func (lineLanguage) Parse(path string, f domain.Fragment) ([]domain.Statement, error) {
	var stmts []domain.Statement
	for i, line := range strings.Split(f.Text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		stmts = append(stmts, domain.Statement{Kind: domain.StmtOther, Line: f.Line + i})
	}
	return stmts, nil
}

func (lineLanguage) ParseAssignment(text string) (string, any, bool, error) {
	name, value, ok := strings.Cut(text, "=")
	return strings.TrimSpace(name), strings.TrimSpace(value), ok, nil
}

func (lineLanguage) Convert(v any) (any, error) { return v, nil }

func (lineLanguage) Native(v any) any { return v }

func (lineLanguage) Exec(_ context.Context, unit *domain.Unit, ns *domain.Namespace, _ ExecOptions) error {
	ns.Set("statements", unit.Len())
	return nil
}

func TestLanguage_Contract(t *testing.T) {
	var lang Language = lineLanguage{}

	stmts, err := lang.Parse("doc", domain.Fragment{Line: 10, Text: "a\n\nb"})
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, 10, stmts[0].Line, "first statement sits on the fragment line")
	assert.Equal(t, 12, stmts[1].Line, "offset is applied to later lines too")

	name, value, ok, err := lang.ParseAssignment("x = 1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", name)
	assert.Equal(t, "1", value)

	ns := domain.NewNamespace()
	require.NoError(t, lang.Exec(context.Background(), &domain.Unit{Statements: stmts}, ns, ExecOptions{}))
	got, _ := ns.Get("statements")
	assert.Equal(t, 2, got)
}
