package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		status  Status
		state   StatusState
		wantErr error
		wantStr string
	}{
		{name: "zero value is pending", status: Status{}, state: StatePending, wantStr: "pending"},
		{name: "pending", status: Pending(), state: StatePending, wantStr: "pending"},
		{name: "ok", status: Ok(), state: StateOk, wantStr: "ok"},
		{name: "failed", status: Failed(boom), state: StateFailed, wantErr: boom, wantStr: "failed(boom)"},
		{name: "failed without error", status: Failed(nil), state: StateFailed, wantErr: ErrExecution, wantStr: "failed(execution failure)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.state, tt.status.State())
			assert.Equal(t, tt.state == StatePending, tt.status.IsPending())
			assert.Equal(t, tt.state == StateOk, tt.status.IsOk())
			assert.Equal(t, tt.state == StateFailed, tt.status.IsFailed())
			assert.Equal(t, tt.wantErr, tt.status.Err())
			assert.Equal(t, tt.wantStr, tt.status.String())
		})
	}
}

func TestModule_AssertComplete(t *testing.T) {
	mod := NewModule("dir/report.v2.ipynb", &Unit{Path: "dir/report.v2.ipynb"})
	assert.Equal(t, "report", mod.Name)
	assert.ErrorIs(t, mod.AssertComplete(), ErrPending)

	mod.SetStatus(Ok())
	assert.NoError(t, mod.AssertComplete())

	failure := &ExecutionError{Path: mod.Path, Line: 3, Msg: "boom"}
	mod.SetStatus(Failed(failure))
	err := mod.AssertComplete()
	assert.Same(t, failure, err)
}

func TestModule_Summary(t *testing.T) {
	mod := NewModule("a.ipynb", &Unit{})
	mod.Doc = "  Quarterly numbers.  "
	mod.SetStatus(Failed(errors.New("boom")))

	summary := mod.Summary()
	assert.Contains(t, summary, "**a** `a.ipynb`: failed")
	assert.Contains(t, summary, "Quarterly numbers.")
	assert.Contains(t, summary, "```\nboom\n```")
}

func TestUnit_Filter(t *testing.T) {
	unit := &Unit{
		Path: "u",
		Statements: []Statement{
			{Kind: StmtAssignment, Target: "x", Line: 2, Fragment: 0, Index: 0},
			{Kind: StmtOther, Line: 3, Fragment: 0, Index: 1},
			{Kind: StmtAssignment, Target: "x", Line: 9, Fragment: 1, Index: 0},
		},
	}

	residual := unit.Filter(func(s Statement) bool { return s.Target != "x" })

	assert.Equal(t, 3, unit.Len(), "filter must not mutate the source unit")
	assert.Equal(t, []int{3}, residual.Lines())
	assert.Equal(t, []Statement{unit.Statements[1]}, residual.Statements)
}

func TestParameterSet(t *testing.T) {
	params := NewParameterSet()
	params.Declare(Parameter{Name: "b", Default: 2, Line: 1})
	params.Declare(Parameter{Name: "a", Default: 1, Line: 2})
	params.Declare(Parameter{Name: "b", Default: 20, Line: 5})

	assert.Equal(t, []string{"b", "a"}, params.Names())
	assert.Equal(t, 2, params.Len())

	v, ok := params.Default("b")
	assert.True(t, ok)
	assert.Equal(t, 20, v)

	_, ok = params.Default("c")
	assert.False(t, ok)
	assert.True(t, params.Has("a"))
}

func TestFragment_LineCount(t *testing.T) {
	assert.Equal(t, 0, Fragment{}.LineCount())
	assert.Equal(t, 1, Fragment{Text: "x = 1"}.LineCount())
	assert.Equal(t, 2, Fragment{Text: "x = 1\ny = 2\n"}.LineCount())
	assert.Equal(t, "a", Block{Text: "a\nb"}.FirstLine())
}
