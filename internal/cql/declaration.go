package cql

import (
	"regexp"
	"strings"
)

// trivia is whitespace and comments between tokens of the header.
const trivia = `(?:\s|//[^\n]*(?:\n|$)|/\*(?s:.*?)\*/)`

// declarationRegex matches a library declaration opening the document. The
// name is either a plain identifier or a double-quoted identifier, the
// version clause is optional. Matching stops at the end of the declaration.
var declarationRegex = regexp.MustCompile(
	`^` + trivia + `*library` + trivia + `+("(?:[^"\\]|\\.)*"|[A-Za-z_][A-Za-z0-9_]*)(` +
		trivia + `+version` + trivia + `+'([^']*)')?`,
)

// ParseDeclaration returns the identifier declared by the library
// declaration at the head of source. Leading comments are skipped, the body
// after the declaration is never read.
func ParseDeclaration(source string) (Identifier, bool) {
	m := declarationRegex.FindStringSubmatch(source)
	if m == nil {
		return Identifier{}, false
	}
	id := Identifier{Name: unquote(m[1])}
	if m[2] != "" {
		id.Version = m[3]
	}
	return id, true
}

func unquote(name string) string {
	if len(name) >= 2 && name[0] == '"' && name[len(name)-1] == '"' {
		return strings.ReplaceAll(name[1:len(name)-1], `\"`, `"`)
	}
	return name
}

// StripComments blanks out line and block comments while keeping every
// newline, so offsets and line numbers of the remaining text are unchanged.
// Comment markers inside string literals are left alone.
func StripComments(source string) string {
	var b strings.Builder
	b.Grow(len(source))

	const (
		code = iota
		lineComment
		blockComment
		quoted
	)
	state := code
	var quote byte

	for i := 0; i < len(source); i++ {
		c := source[i]
		switch state {
		case code:
			switch {
			case c == '/' && i+1 < len(source) && source[i+1] == '/':
				state = lineComment
				b.WriteString("  ")
				i++
			case c == '/' && i+1 < len(source) && source[i+1] == '*':
				state = blockComment
				b.WriteString("  ")
				i++
			case c == '\'' || c == '"' || c == '`':
				state = quoted
				quote = c
				b.WriteByte(c)
			default:
				b.WriteByte(c)
			}
		case lineComment:
			if c == '\n' {
				state = code
				b.WriteByte(c)
			} else {
				b.WriteByte(' ')
			}
		case blockComment:
			switch {
			case c == '*' && i+1 < len(source) && source[i+1] == '/':
				state = code
				b.WriteString("  ")
				i++
			case c == '\n':
				b.WriteByte(c)
			default:
				b.WriteByte(' ')
			}
		case quoted:
			b.WriteByte(c)
			switch c {
			case '\\':
				if i+1 < len(source) {
					i++
					b.WriteByte(source[i])
				}
			case quote:
				state = code
			}
		}
	}
	return b.String()
}
