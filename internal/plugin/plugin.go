// Package plugin defines the contract for server extensions and merges their
// command contributions into a single registry.
package plugin

import (
	"context"
	"iter"
	"slices"
	"sort"
	"sync"

	"github.com/mgramigna/cql-language-server/internal/content"
	"github.com/mgramigna/cql-language-server/internal/future"
	"github.com/mgramigna/cql-language-server/internal/manager"
	"github.com/mgramigna/cql-language-server/internal/translator"
)

// Client is the connection back to the editor.
type Client interface {
	Notify(method string, params any)
}

type Workspace interface {
	Folders() []string
	Root(uri string) string
}

type Documents interface {
	Get(uri string) (content.Entry, bool)
	Entries() iter.Seq2[string, content.Entry]
}

type Translations interface {
	Translate(ctx context.Context, uri string) (*translator.Artifact, error)
	Stats() manager.Stats
}

// Host is what a factory receives. Client completes once the editor has
// finished the handshake.
type Host struct {
	Client       *future.Future[Client]
	Workspace    Workspace
	Documents    Documents
	Translations Translations
}

// Handler runs one command with the JSON arguments sent by the client.
type Handler func(ctx context.Context, args []any) (any, error)

type CommandContribution struct {
	Commands map[string]Handler
}

type Plugin interface {
	Name() string
	// CommandContribution may return nil.
	CommandContribution() *CommandContribution
}

type Factory func(Host) (Plugin, error)

// Registry is the explicit list of plugin factories linked into the binary.
type Registry struct {
	mu        sync.Mutex
	names     []string
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Default is populated by plugin packages from their init functions.
var Default = NewRegistry()

// Register adds f under name, replacing any earlier factory of that name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; !ok {
		r.names = append(r.names, name)
	}
	r.factories[name] = f
}

// Factories yields the registered factories in registration order.
func (r *Registry) Factories() iter.Seq2[string, Factory] {
	r.mu.Lock()
	names := slices.Clone(r.names)
	factories := make(map[string]Factory, len(r.factories))
	for k, v := range r.factories {
		factories[k] = v
	}
	r.mu.Unlock()

	return func(yield func(string, Factory) bool) {
		for _, name := range names {
			if !yield(name, factories[name]) {
				return
			}
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}

// Commands is the merged, read-only view of every command contribution.
type Commands struct {
	handlers map[string]Handler
	owners   map[string]string
	plugins  []string
}

func newCommands() *Commands {
	return &Commands{
		handlers: make(map[string]Handler),
		owners:   make(map[string]string),
	}
}

// merge adds the commands of owner. A name already taken keeps its first
// handler.
func (c *Commands) merge(owner string, contribution *CommandContribution) {
	if contribution == nil {
		return
	}
	for name, h := range contribution.Commands {
		if h == nil {
			continue
		}
		if prev, ok := c.owners[name]; ok {
			log.Warningf("command %q from %s is already provided by %s", name, owner, prev)
			continue
		}
		c.handlers[name] = h
		c.owners[name] = owner
	}
}

func (c *Commands) Lookup(name string) (Handler, bool) {
	h, ok := c.handlers[name]
	return h, ok
}

// Names returns every command name in sorted order.
func (c *Commands) Names() []string {
	names := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Owner reports which plugin contributed name.
func (c *Commands) Owner(name string) (string, bool) {
	owner, ok := c.owners[name]
	return owner, ok
}

// Plugins returns the names of the plugins that loaded successfully.
func (c *Commands) Plugins() []string {
	return slices.Clone(c.plugins)
}
