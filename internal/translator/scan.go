package translator

import (
	"fmt"
	"unicode/utf8"
)

// lineIndex converts byte offsets into positions.
type lineIndex struct {
	source string
	starts []int
}

func newLineIndex(source string) *lineIndex {
	starts := []int{0}
	for i := 0; i < len(source); i++ {
		if source[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{source: source, starts: starts}
}

func (l *lineIndex) position(offset int) Position {
	if offset > len(l.source) {
		offset = len(l.source)
	}
	line := 0
	for line+1 < len(l.starts) && l.starts[line+1] <= offset {
		line++
	}
	var units uint32
	for _, r := range l.source[l.starts[line]:offset] {
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
	}
	return Position{Line: uint32(line), Character: units}
}

func (l *lineIndex) span(start, end int) Range {
	return Range{Start: l.position(start), End: l.position(end)}
}

var closers = map[byte]byte{')': '(', ']': '[', '}': '{'}

// checkSyntax finds unterminated literals and comments and unbalanced
// brackets.
func checkSyntax(source string, idx *lineIndex) []Diagnostic {
	var diagnostics []Diagnostic
	report := func(start, end int, format string, args ...any) {
		diagnostics = append(diagnostics, Diagnostic{
			Range:    idx.span(start, end),
			Severity: SeverityError,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	type open struct {
		char   byte
		offset int
	}
	var stack []open

	for i := 0; i < len(source); i++ {
		c := source[i]
		switch {
		case c == '/' && i+1 < len(source) && source[i+1] == '/':
			for i < len(source) && source[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(source) && source[i+1] == '*':
			start := i
			i += 2
			for i+1 < len(source) && !(source[i] == '*' && source[i+1] == '/') {
				i++
			}
			if i+1 >= len(source) {
				report(start, start+2, "syntax error: unterminated block comment")
				i = len(source)
			} else {
				i++
			}
		case c == '\'' || c == '"' || c == '`':
			start := i
			i++
			for i < len(source) && source[i] != c && source[i] != '\n' {
				if source[i] == '\\' {
					i++
				}
				i++
			}
			if i >= len(source) || source[i] != c {
				report(start, start+1, "syntax error: unterminated literal starting with %c", c)
				if i < len(source) {
					i-- // resume at the newline
				}
			}
		case c == '(' || c == '[' || c == '{':
			stack = append(stack, open{char: c, offset: i})
		case c == ')' || c == ']' || c == '}':
			if len(stack) == 0 || stack[len(stack)-1].char != closers[c] {
				report(i, i+1, "syntax error: extraneous input '%c'", c)
				continue
			}
			stack = stack[:len(stack)-1]
		default:
			if c >= utf8.RuneSelf {
				_, size := utf8.DecodeRuneInString(source[i:])
				i += size - 1
			}
		}
	}

	for _, o := range stack {
		report(o.offset, o.offset+1, "syntax error: missing closing bracket for '%c'", o.char)
	}
	return diagnostics
}
