// Package cql holds the small amount of CQL source knowledge the server needs
// before a translator is available: library identifiers and the textual
// library declaration that names a document.
package cql

import "fmt"

// Identifier names a library. An empty Version means the reference carries no
// version clause.
type Identifier struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

func (id Identifier) HasVersion() bool {
	return id.Version != ""
}

func (id Identifier) String() string {
	if !id.HasVersion() {
		return id.Name
	}
	return fmt.Sprintf("%s version '%s'", id.Name, id.Version)
}
