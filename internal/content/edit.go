package content

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

var ErrNotOpen = errors.New("content: document not open")

// Apply applies a didChange batch to the stored text of uri. Whole-document
// events replace the text, ranged events are applied in order.
func (s *Store) Apply(uri string, changes []any, revision *int32) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.docs[uri]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotOpen, uri)
	}

	text := current.Content
	for _, raw := range changes {
		switch change := raw.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			text = change.Text
		case protocol.TextDocumentContentChangeEvent:
			if change.Range == nil {
				text = change.Text
				continue
			}
			text = ApplyRange(text, *change.Range, change.Text)
		default:
			return Entry{}, fmt.Errorf("content: unexpected change event type %T", raw)
		}
	}

	return s.putLocked(uri, text, revision), nil
}

// ApplyRange replaces the text covered by r with newText.
func ApplyRange(document string, r protocol.Range, newText string) string {
	start := positionToOffset(document, r.Start)
	end := positionToOffset(document, r.End)
	if end < start {
		start, end = end, start
	}
	return document[:start] + newText + document[end:]
}

// positionToOffset computes the byte offset of an LSP position. Characters
// are counted in UTF-16 code units; out of range positions are clamped.
func positionToOffset(document string, pos protocol.Position) int {
	lines := strings.SplitAfter(document, "\n")
	if int(pos.Line) >= len(lines) {
		return len(document)
	}

	offset := 0
	for i := uint32(0); i < pos.Line; i++ {
		offset += len(lines[i])
	}

	line := strings.TrimSuffix(lines[pos.Line], "\n")
	var units, bytes int
	for _, r := range line {
		n := 1
		if r > 0xFFFF {
			n = 2
		}
		if uint32(units+n) > pos.Character {
			break
		}
		units += n
		bytes += utf8.RuneLen(r)
	}
	return offset + bytes
}
