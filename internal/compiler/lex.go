package compiler

import (
	"fmt"
	"strings"
)

// command is one top-level, semicolon-delimited chunk of source, with
// the line/command-within-line numbering the error formatter needs.
type command struct {
	text       string
	filename   string
	line       int
	commandNum int
}

// stripComments removes `// ...` line comments, quote-aware so a `//`
// inside a 'string' or a compute shader fragment is left alone (the
// original's removeComments scans blindly; GLSL and path strings can
// legitimately contain "//", so comment stripping here tracks quote
// state instead).
func stripComments(src string) string {
	var b strings.Builder
	inQuote := false
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inQuote {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(src) {
				i++
				b.WriteByte(src[i])
				continue
			}
			if c == '\'' {
				inQuote = false
			}
			continue
		}
		if c == '\'' {
			if i > 0 && src[i-1] == 'c' && (i == 1 || src[i-2] == ';' || isSpaceByte(src[i-2])) {
				// A compute declaration's four sections share their
				// delimiting quotes (five in all): copy through the fifth.
				for quotes := 0; i < len(src); i++ {
					b.WriteByte(src[i])
					if src[i] == '\'' {
						if quotes++; quotes == 5 {
							break
						}
					}
				}
				continue
			}
			inQuote = true
			b.WriteByte(c)
			continue
		}
		if c == '/' && i+1 < len(src) && src[i+1] == '/' {
			for i < len(src) && src[i] != '\n' {
				i++
			}
			if i < len(src) {
				b.WriteByte('\n')
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// escapeComputeSemicolons finds every `c'...'...'...'...'` compute
// declaration and replaces `;` with `\` inside its four quoted
// sections, so the top-level splitter below does not mistake a GLSL
// statement terminator for a command separator. parseCompute undoes
// this substitution once each section has been extracted (spec.md
// §4.5's "decoding the backslash-for-semicolon escape").
func escapeComputeSemicolons(src string) (string, error) {
	b := []byte(src)
	for i := 0; i < len(b); i++ {
		if b[i] != 'c' || i+1 >= len(b) || b[i+1] != '\'' {
			continue
		}
		if i > 0 && b[i-1] != ';' && !isSpaceByte(b[i-1]) {
			continue // "c'" appearing mid-identifier, not a compute declaration
		}
		j := i + 2
		for section := 0; section < 4; section++ {
			for j < len(b) && b[j] != '\'' {
				if b[j] == '\\' {
					return "", fmt.Errorf("backslash in shader fragment at byte %d: not allowed", j)
				}
				if b[j] == ';' {
					b[j] = '\\'
				}
				j++
			}
			if j >= len(b) || b[j] != '\'' {
				break
			}
			j++
		}
		i = j - 1
	}
	return string(b), nil
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// splitCommands splits preprocessed source into top-level commands on
// `;`, tracking quote and bracket nesting so a `;` inside a 'string' or
// a [tensor literal] never splits.
func splitCommands(src string) []command {
	var cmds []command
	line := 1
	commandNum := 0
	start := 0
	depth := 0
	inQuote := false
	flush := func(end int) {
		text := strings.TrimSpace(src[start:end])
		if text != "" {
			cmds = append(cmds, command{text: text, line: line, commandNum: commandNum})
		}
	}
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inQuote {
			if c == '\\' && i+1 < len(src) {
				i++
				continue
			}
			if c == '\'' {
				inQuote = false
			}
			continue
		}
		switch c {
		case '\'':
			if i > 0 && src[i-1] == 'c' && (i == 1 || src[i-2] == ';' || isSpaceByte(src[i-2])) {
				// A compute declaration's four sections share their
				// delimiting quotes (five in all): skip past the fifth.
				for quotes := 0; i < len(src); i++ {
					if src[i] == '\'' {
						if quotes++; quotes == 5 {
							break
						}
					}
				}
				continue
			}
			inQuote = true
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case '\n':
			line++
			commandNum = 0
		case ';':
			if depth == 0 {
				flush(i)
				start = i + 1
				commandNum++
			}
		}
	}
	flush(len(src))
	return cmds
}

// preprocess runs the comment-strip and compute-escape passes in the
// order spec.md §4.5 names them.
func preprocess(src string) (string, error) {
	src = stripComments(src)
	return escapeComputeSemicolons(src)
}
