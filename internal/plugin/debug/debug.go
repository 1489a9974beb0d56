// Package debug contributes commands that expose the server's internal state.
package debug

import (
	"context"
	"sort"

	"github.com/mgramigna/cql-language-server/internal/manager"
	"github.com/mgramigna/cql-language-server/internal/plugin"
)

const (
	Name                 = "debug"
	ActiveContentCommand = "cql.debug.activeContent"
	CacheStatsCommand    = "cql.debug.cacheStats"
)

func init() {
	plugin.Default.Register(Name, New)
}

// Document describes one entry of the active content.
type Document struct {
	URI        string `json:"uri"`
	Library    string `json:"library"`
	Revision   *int32 `json:"revision,omitempty"`
	Generation uint64 `json:"generation"`
	Length     int    `json:"length"`
}

type debugPlugin struct {
	host plugin.Host
}

func New(host plugin.Host) (plugin.Plugin, error) {
	return &debugPlugin{host: host}, nil
}

func (p *debugPlugin) Name() string {
	return Name
}

func (p *debugPlugin) CommandContribution() *plugin.CommandContribution {
	return &plugin.CommandContribution{
		Commands: map[string]plugin.Handler{
			ActiveContentCommand: p.activeContent,
			CacheStatsCommand:    p.cacheStats,
		},
	}
}

func (p *debugPlugin) activeContent(context.Context, []any) (any, error) {
	docs := []Document{}
	for uri, entry := range p.host.Documents.Entries() {
		docs = append(docs, Document{
			URI:        uri,
			Library:    manager.Identify(entry).String(),
			Revision:   entry.Revision,
			Generation: entry.Generation,
			Length:     len(entry.Content),
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })
	return docs, nil
}

func (p *debugPlugin) cacheStats(context.Context, []any) (any, error) {
	return p.host.Translations.Stats(), nil
}
