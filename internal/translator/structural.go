package translator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/mgramigna/cql-language-server/internal/cql"
	"github.com/mgramigna/cql-language-server/internal/resolver"
)

const name = `("(?:[^"\\]|\\.)*"|[A-Za-z_][A-Za-z0-9_]*)`

var (
	usingRegex   = regexp.MustCompile(`(?m)^[ \t]*using\s+` + name + `(?:\s+version\s+'([^']*)')?`)
	includeRegex = regexp.MustCompile(`(?m)^[ \t]*include\s+` + name + `(?:\s+version\s+'([^']*)')?(?:\s+called\s+` + name + `)?`)
	defineRegex  = regexp.MustCompile(`(?m)^[ \t]*define\s+(?:(?:public|private)\s+)?(?:fluent\s+)?(?:function\s+)?` + name)
)

// Structural is a translator that understands the library header and the
// statement structure of CQL without type checking expressions. Included
// libraries are loaded through the source provider and translated in turn.
type Structural struct{}

func (Structural) Translate(ctx context.Context, source string, libs SourceProvider) (*Program, []Diagnostic, error) {
	return translate(ctx, source, libs, nil)
}

func translate(ctx context.Context, source string, libs SourceProvider, stack []cql.Identifier) (*Program, []Diagnostic, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	idx := newLineIndex(source)
	diagnostics := checkSyntax(source, idx)
	code := cql.StripComments(source)

	program := &Program{}
	if id, ok := cql.ParseDeclaration(source); ok {
		program.Library = id
	}
	stack = append(slices.Clone(stack), program.Library)

	for _, m := range usingRegex.FindAllStringSubmatchIndex(code, -1) {
		program.Usings = append(program.Usings, Using{
			Model:   unquote(group(code, m, 1)),
			Version: group(code, m, 2),
		})
	}

	for _, m := range defineRegex.FindAllStringSubmatchIndex(code, -1) {
		program.Definitions = append(program.Definitions, Definition{
			Name:  unquote(group(code, m, 1)),
			Range: idx.span(m[2], m[3]),
		})
	}

	for _, m := range includeRegex.FindAllStringSubmatchIndex(code, -1) {
		include := Include{
			Library: cql.Identifier{Name: unquote(group(code, m, 1)), Version: group(code, m, 2)},
			Alias:   unquote(group(code, m, 3)),
		}
		at := idx.span(m[0], m[1])

		diags, err := resolveInclude(ctx, libs, &include, at, stack)
		if err != nil {
			return nil, nil, err
		}
		diagnostics = append(diagnostics, diags...)
		program.Includes = append(program.Includes, include)
	}

	return program, diagnostics, nil
}

func resolveInclude(ctx context.Context, libs SourceProvider, include *Include, at Range, stack []cql.Identifier) ([]Diagnostic, error) {
	id := include.Library
	if slices.Contains(stack, id) {
		return []Diagnostic{{
			Range:    at,
			Severity: SeverityError,
			Message:  fmt.Sprintf("circular library reference: %s", id),
		}}, nil
	}

	src, ok, err := libs.ReadLibrary(ctx, id)
	if err != nil {
		if errors.Is(err, resolver.ErrAmbiguousLibrary) || errors.Is(err, resolver.ErrUnsupported) {
			return nil, err
		}
		return []Diagnostic{{
			Range:    at,
			Severity: SeverityError,
			Message:  fmt.Sprintf("could not load source for library %s: %s", id, err),
		}}, nil
	}
	if !ok {
		return []Diagnostic{{
			Range:    at,
			Severity: SeverityError,
			Message:  fmt.Sprintf("could not load source for library %s", id),
		}}, nil
	}
	include.URI = src.URI

	_, depDiagnostics, err := translate(ctx, src.Content, libs, stack)
	if err != nil {
		return nil, err
	}
	if HasErrors(depDiagnostics) {
		return []Diagnostic{{
			Range:    at,
			Severity: SeverityError,
			Message:  fmt.Sprintf("included library %s has errors", id),
		}}, nil
	}
	return nil, nil
}

func group(s string, m []int, n int) string {
	if 2*n+1 >= len(m) || m[2*n] < 0 {
		return ""
	}
	return s[m[2*n]:m[2*n+1]]
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return strings.ReplaceAll(s[1:len(s)-1], `\"`, `"`)
	}
	return s
}
