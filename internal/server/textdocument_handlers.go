package server

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/mgramigna/cql-language-server/internal/config"
	"github.com/mgramigna/cql-language-server/internal/content"
	"github.com/mgramigna/cql-language-server/internal/manager"
	"github.com/mgramigna/cql-language-server/internal/plugin"
	"github.com/mgramigna/cql-language-server/internal/resolver"
	"github.com/mgramigna/cql-language-server/internal/translator"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const TranslateCommand = "cql.translate"

const diagnosticSource = "cql"

// DocumentService keeps the active content in step with the editor and
// pushes diagnostics once the client is ready for them.
type DocumentService struct {
	ctx     *Context
	manager *manager.TranslationManager
	config  func() config.Config
	stopped atomic.Bool
	// sending orders diagnostics notifications against store generations.
	sending sync.Mutex
}

func NewDocumentService(ctx *Context, m *manager.TranslationManager, cfg func() config.Config) *DocumentService {
	return &DocumentService{ctx: ctx, manager: m, config: cfg}
}

func (d *DocumentService) didOpen(
	context *glsp.Context,
	params *protocol.DidOpenTextDocumentParams,
) error {
	uri := params.TextDocument.URI
	if d.stopped.Load() || !d.config().Accepts(uri) {
		log.Debugf("not tracking %s", uri)
		return nil
	}
	version := params.TextDocument.Version
	d.ctx.Store.Put(uri, params.TextDocument.Text, &version)
	log.Debugf("opened %s (version %d)", uri, version)

	go d.publish(uri)
	return nil
}

func (d *DocumentService) didChange(
	context *glsp.Context,
	params *protocol.DidChangeTextDocumentParams,
) error {
	uri := params.TextDocument.URI
	if d.stopped.Load() {
		return nil
	}
	version := params.TextDocument.Version
	if _, err := d.ctx.Store.Apply(uri, params.ContentChanges, &version); err != nil {
		if errors.Is(err, content.ErrNotOpen) && !d.config().Accepts(uri) {
			return nil
		}
		return fmt.Errorf("failed to apply changes: %w", err)
	}

	if d.config().DiagnosticsOnChange {
		go d.publish(uri)
	}
	return nil
}

func (d *DocumentService) didSave(
	context *glsp.Context,
	params *protocol.DidSaveTextDocumentParams,
) error {
	uri := params.TextDocument.URI
	entry, ok := d.ctx.Store.Get(uri)
	if d.stopped.Load() || !ok {
		return nil
	}
	if params.Text != nil && *params.Text != entry.Content {
		d.ctx.Store.Put(uri, *params.Text, entry.Revision)
	}
	go d.publish(uri)
	return nil
}

func (d *DocumentService) didClose(
	context *glsp.Context,
	params *protocol.DidCloseTextDocumentParams,
) error {
	uri := params.TextDocument.URI
	if !d.ctx.Store.Remove(uri) {
		return nil
	}
	d.manager.Invalidate(uri)
	log.Debugf("closed %s", uri)

	if client, _, ok := d.ctx.Client.TryGet(); ok && !d.stopped.Load() {
		d.sending.Lock()
		publishDiagnostics(client, uri, []protocol.Diagnostic{})
		d.sending.Unlock()
	}
	return nil
}

// Get returns the open document uri.
func (d *DocumentService) Get(uri string) (content.Entry, bool) {
	return d.ctx.Store.Get(uri)
}

// Entries yields every open document.
func (d *DocumentService) Entries() iter.Seq2[string, content.Entry] {
	return d.ctx.Store.Entries()
}

// Stop refuses further document work.
func (d *DocumentService) Stop() {
	d.stopped.Store(true)
}

func (d *DocumentService) translate(ctx context.Context, uri string) (*translator.Artifact, error) {
	if d.stopped.Load() {
		return nil, ErrShuttingDown
	}
	return d.manager.Translate(ctx, uri)
}

func (d *DocumentService) CommandContribution() *plugin.CommandContribution {
	return &plugin.CommandContribution{
		Commands: map[string]plugin.Handler{
			TranslateCommand: func(ctx context.Context, args []any) (any, error) {
				uri, err := uriArgument(args)
				if err != nil {
					return nil, err
				}
				return d.translate(ctx, uri)
			},
		},
	}
}

func (d *DocumentService) publishAll() {
	for uri := range d.ctx.Store.Entries() {
		go d.publish(uri)
	}
}

// publish translates uri and sends its diagnostics. Nothing is sent before
// the client is initialized or once uri has moved past the translated state.
func (d *DocumentService) publish(uri string) {
	client, _, ok := d.ctx.Client.TryGet()
	if !ok || d.stopped.Load() {
		return
	}
	entry, ok := d.ctx.Store.Get(uri)
	if !ok {
		return
	}

	artifact, err := d.manager.Translate(context.Background(), uri)
	generation := entry.Generation
	var diagnostics []protocol.Diagnostic
	switch {
	case err == nil:
		generation = artifact.Generation
		diagnostics = toProtocol(artifact.Diagnostics)
	case errors.Is(err, resolver.ErrAmbiguousLibrary):
		diagnostics = []protocol.Diagnostic{newDiagnostic(translator.Range{}, translator.SeverityError, err.Error())}
	default:
		log.Debugf("no diagnostics for %s: %s", uri, err)
		return
	}

	d.sending.Lock()
	defer d.sending.Unlock()
	if current, ok := d.ctx.Store.Get(uri); !ok || current.Generation != generation {
		log.Debugf("dropping diagnostics for superseded %s", uri)
		return
	}
	publishDiagnostics(client, uri, diagnostics)
}

func publishDiagnostics(client plugin.Client, uri string, diagnostics []protocol.Diagnostic) {
	client.Notify("textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func toProtocol(diagnostics []translator.Diagnostic) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(diagnostics))
	for _, d := range diagnostics {
		out = append(out, newDiagnostic(d.Range, d.Severity, d.Message))
	}
	return out
}

func newDiagnostic(r translator.Range, severity translator.Severity, message string) protocol.Diagnostic {
	s := protocol.DiagnosticSeverity(severity)
	source := diagnosticSource
	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: protocol.UInteger(r.Start.Line), Character: protocol.UInteger(r.Start.Character)},
			End:   protocol.Position{Line: protocol.UInteger(r.End.Line), Character: protocol.UInteger(r.End.Character)},
		},
		Severity: &s,
		Source:   &source,
		Message:  message,
	}
}

func uriArgument(args []any) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%s: missing uri argument", TranslateCommand)
	}
	switch v := args[0].(type) {
	case string:
		return v, nil
	case map[string]any:
		if uri, ok := v["uri"].(string); ok {
			return uri, nil
		}
	}
	return "", fmt.Errorf("%s: invalid uri argument %v", TranslateCommand, args[0])
}
