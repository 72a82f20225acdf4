// Package source holds the line-preserving text transforms the document
// decoders apply before code is parsed. None of them adds or removes a line.
package source

import "strings"

// CommentLines turns prose into comment lines, one per input line, so the
// text still occupies the same lines once compiled.
func CommentLines(text string) string {
	return mapLines(text, func(line string) string {
		if line == "" {
			return "#"
		}
		return "# " + line
	})
}

// StripMagics comments out interactive magic (%) and shell (!) lines,
// keeping their indentation.
func StripMagics(text string) string {
	return mapLines(text, func(line string) string {
		body := strings.TrimLeft(line, " \t")
		if body == "" || (body[0] != '%' && body[0] != '!') {
			return line
		}
		indent := line[:len(line)-len(body)]
		return indent + "# " + body
	})
}

// Dedent removes the longest run of spaces and tabs shared by every
// non-blank line.
func Dedent(text string) string {
	lines := strings.Split(text, "\n")
	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix, first = indent, false
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	if prefix == "" {
		return text
	}
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, prefix)
	}
	return strings.Join(lines, "\n")
}

// mapLines applies fn to every line of text. A trailing newline is kept and
// does not produce an extra line.
func mapLines(text string, fn func(string) string) string {
	if text == "" {
		return ""
	}
	body, trailing := strings.CutSuffix(text, "\n")
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		lines[i] = fn(line)
	}
	out := strings.Join(lines, "\n")
	if trailing {
		out += "\n"
	}
	return out
}
