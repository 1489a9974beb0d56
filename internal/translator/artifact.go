package translator

import "github.com/mgramigna/cql-language-server/internal/cql"

// Dependency records a library source consumed while translating.
type Dependency struct {
	Library    cql.Identifier `json:"library"`
	URI        string         `json:"uri"`
	Generation uint64         `json:"generation"`
}

// Artifact is the result of translating one document at one revision.
// Artifacts are shared between callers and must not be modified.
type Artifact struct {
	Library      cql.Identifier `json:"library"`
	URI          string         `json:"uri"`
	Revision     int64          `json:"revision"`
	Generation   uint64         `json:"generation"`
	Program      *Program       `json:"program,omitempty"`
	Diagnostics  []Diagnostic   `json:"diagnostics"`
	Dependencies []Dependency   `json:"dependencies,omitempty"`
}

// Success reports whether translation produced no errors.
func (a *Artifact) Success() bool {
	return a.Program != nil && !HasErrors(a.Diagnostics)
}
