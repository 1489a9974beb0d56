package translator_test

import (
	"context"
	"strings"
	"testing"

	"github.com/mgramigna/cql-language-server/internal/cql"
	"github.com/mgramigna/cql-language-server/internal/resolver"
	"github.com/mgramigna/cql-language-server/internal/translator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// libraryMap serves library source from memory keyed by identifier.
type libraryMap map[cql.Identifier]string

func (m libraryMap) ReadLibrary(_ context.Context, id cql.Identifier) (resolver.Source, bool, error) {
	text, ok := m[id]
	if !ok {
		return resolver.Source{}, false, nil
	}
	return resolver.Source{URI: "file:///ws/" + id.Name + ".cql", Content: text}, true, nil
}

type ambiguous struct{}

func (ambiguous) ReadLibrary(_ context.Context, id cql.Identifier) (resolver.Source, bool, error) {
	return resolver.Source{}, false, &resolver.AmbiguousLibraryError{Library: id}
}

func messages(diagnostics []translator.Diagnostic) []string {
	var out []string
	for _, d := range diagnostics {
		out = append(out, d.Message)
	}
	return out
}

func TestStructuralProgram(t *testing.T) {
	source := strings.Join([]string{
		"library A version '1.0.0'",
		"",
		"using FHIR version '4.0.1'",
		"",
		"include FHIRHelpers version '4.0.1' called FH",
		"// include Ignored version '0'",
		"",
		"define \"In Population\":",
		"  true",
		"",
		"define function Double(x Integer):",
		"  x * 2",
	}, "\n")

	libs := libraryMap{
		{Name: "FHIRHelpers", Version: "4.0.1"}: "library FHIRHelpers version '4.0.1'\ndefine X: 1",
	}

	program, diagnostics, err := translator.Structural{}.Translate(context.Background(), source, libs)
	require.NoError(t, err)
	assert.Empty(t, diagnostics)

	assert.Equal(t, cql.Identifier{Name: "A", Version: "1.0.0"}, program.Library)
	assert.Equal(t, []translator.Using{{Model: "FHIR", Version: "4.0.1"}}, program.Usings)
	require.Len(t, program.Includes, 1)
	assert.Equal(t, translator.Include{
		Library: cql.Identifier{Name: "FHIRHelpers", Version: "4.0.1"},
		Alias:   "FH",
		URI:     "file:///ws/FHIRHelpers.cql",
	}, program.Includes[0])

	require.Len(t, program.Definitions, 2)
	assert.Equal(t, "In Population", program.Definitions[0].Name)
	assert.Equal(t, translator.Position{Line: 7, Character: 7}, program.Definitions[0].Range.Start)
	assert.Equal(t, "Double", program.Definitions[1].Name)
}

func TestStructuralUnresolvedInclude(t *testing.T) {
	source := "library A\ninclude Missing version '1' called M\n"
	_, diagnostics, err := translator.Structural{}.Translate(context.Background(), source, libraryMap{})
	require.NoError(t, err)
	require.Len(t, diagnostics, 1)
	assert.Equal(t, translator.SeverityError, diagnostics[0].Severity)
	assert.Contains(t, diagnostics[0].Message, "Missing version '1'")
	assert.Equal(t, uint32(1), diagnostics[0].Range.Start.Line)
}

func TestStructuralSyntaxErrors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		message string
	}{
		{"unclosed paren", "library A\ndefine X: (1 + 2", "missing closing bracket for '('"},
		{"extra paren", "library A\ndefine X: 1 + 2)", "extraneous input ')'"},
		{"unterminated string", "library A\ndefine X: 'abc\n", "unterminated literal"},
		{"unterminated comment", "library A\n/* define X: 1", "unterminated block comment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diagnostics, err := translator.Structural{}.Translate(context.Background(), tt.source, libraryMap{})
			require.NoError(t, err)
			require.Len(t, diagnostics, 1)
			assert.Contains(t, diagnostics[0].Message, tt.message)
			assert.True(t, translator.HasErrors(diagnostics))
		})
	}
}

func TestStructuralIgnoresBracketsInStringsAndComments(t *testing.T) {
	source := "library A\ndefine X: '(' // )\ndefine Y: \"[\" /* } */"
	_, diagnostics, err := translator.Structural{}.Translate(context.Background(), source, libraryMap{})
	require.NoError(t, err)
	assert.Empty(t, diagnostics)
}

func TestStructuralDependencyErrors(t *testing.T) {
	libs := libraryMap{
		{Name: "B", Version: "1"}: "library B version '1'\ninclude A version '1'\ndefine X: (",
		{Name: "A", Version: "1"}: "library A version '1'\ninclude B version '1'",
	}
	_, diagnostics, err := translator.Structural{}.Translate(context.Background(), libs[cql.Identifier{Name: "A", Version: "1"}], libs)
	require.NoError(t, err)
	assert.Equal(t, []string{"included library B version '1' has errors"}, messages(diagnostics))
}

func TestStructuralAmbiguousIncludeIsAnError(t *testing.T) {
	_, _, err := translator.Structural{}.Translate(context.Background(), "library A\ninclude B version '1'", ambiguous{})
	assert.ErrorIs(t, err, resolver.ErrAmbiguousLibrary)
}
