// Package translator defines the contract with the CQL translator and the
// artifacts the server caches from it.
package translator

import (
	"context"

	"github.com/mgramigna/cql-language-server/internal/cql"
	"github.com/mgramigna/cql-language-server/internal/resolver"
)

// Position is zero based; Character counts UTF-16 code units.
type Position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Severity uses the LSP numbering.
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInformation
	SeverityHint
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "information"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

type Diagnostic struct {
	Range    Range    `json:"range"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

type Using struct {
	Model   string `json:"model"`
	Version string `json:"version,omitempty"`
}

type Include struct {
	Library cql.Identifier `json:"library"`
	Alias   string         `json:"alias,omitempty"`
	URI     string         `json:"uri,omitempty"`
}

type Definition struct {
	Name  string `json:"name"`
	Range Range  `json:"range"`
}

// Program is the structured representation of one translated library.
type Program struct {
	Library     cql.Identifier `json:"library"`
	Usings      []Using        `json:"usings,omitempty"`
	Includes    []Include      `json:"includes,omitempty"`
	Definitions []Definition   `json:"definitions,omitempty"`
}

// SourceProvider supplies included library source during translation.
type SourceProvider interface {
	ReadLibrary(ctx context.Context, id cql.Identifier) (resolver.Source, bool, error)
}

// Translator turns CQL source into a Program. Problems in the source are
// reported as diagnostics; a returned error means translation could not be
// attempted.
type Translator interface {
	Translate(ctx context.Context, source string, libs SourceProvider) (*Program, []Diagnostic, error)
}

// Func adapts a function to Translator.
type Func func(ctx context.Context, source string, libs SourceProvider) (*Program, []Diagnostic, error)

func (f Func) Translate(ctx context.Context, source string, libs SourceProvider) (*Program, []Diagnostic, error) {
	return f(ctx, source, libs)
}

func HasErrors(diagnostics []Diagnostic) bool {
	for _, d := range diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
