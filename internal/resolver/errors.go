package resolver

import (
	"errors"
	"fmt"

	"github.com/mgramigna/cql-language-server/internal/cql"
)

var (
	// ErrAmbiguousLibrary is returned when more than one document in scope
	// declares the requested library.
	ErrAmbiguousLibrary = errors.New("resolver: ambiguous library")

	// ErrUnsupported is returned by a locator that has no implementation.
	ErrUnsupported = errors.New("resolver: locate is not supported by this content service")
)

// AmbiguousLibraryError names the library and every matching document.
type AmbiguousLibraryError struct {
	Library cql.Identifier
	URIs    []string
}

func (e *AmbiguousLibraryError) Error() string {
	return fmt.Sprintf(
		"more than one file was found for library: %s version: %s in the current workspace: %v",
		e.Library.Name, e.Library.Version, e.URIs,
	)
}

func (e *AmbiguousLibraryError) Unwrap() error {
	return ErrAmbiguousLibrary
}
