package plugin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mgramigna/cql-language-server/internal/future"
)

var (
	ErrNotReady       = errors.New("plugin: command registry is not ready")
	ErrUnknownCommand = errors.New("plugin: unknown command")
)

// Dispatcher routes workspace commands. Built-in commands run immediately;
// plugin commands wait for discovery, never longer than the timeout.
type Dispatcher struct {
	builtin  *Commands
	commands *future.Future[*Commands]
	timeout  time.Duration
}

// NewDispatcher merges the built-in contributions, keyed by owner, in front
// of the plugin registry. Plugins cannot replace a built-in command.
func NewDispatcher(commands *future.Future[*Commands], timeout time.Duration, builtin map[string]*CommandContribution) *Dispatcher {
	merged := newCommands()
	owners := make([]string, 0, len(builtin))
	for owner := range builtin {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	for _, owner := range owners {
		merged.merge(owner, builtin[owner])
	}
	return &Dispatcher{builtin: merged, commands: commands, timeout: timeout}
}

// Ready reports whether discovery has finished.
func (d *Dispatcher) Ready() bool {
	_, _, ok := d.commands.TryGet()
	return ok
}

// Plugins waits for the plugin registry.
func (d *Dispatcher) Plugins(ctx context.Context) (*Commands, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	commands, err := d.commands.Get(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, ErrNotReady
	}
	return commands, err
}

// Names lists built-in commands and, when discovery finishes in time, the
// plugin commands.
func (d *Dispatcher) Names(ctx context.Context) []string {
	names := d.builtin.Names()
	commands, err := d.Plugins(ctx)
	if err != nil {
		log.Warningf("advertising built-in commands only: %s", err)
		return names
	}
	for _, name := range commands.Names() {
		if _, ok := d.builtin.Lookup(name); !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (d *Dispatcher) Execute(ctx context.Context, name string, args []any) (any, error) {
	if handler, ok := d.builtin.Lookup(name); ok {
		log.Debugf("executing built-in command %s", name)
		return handler(ctx, args)
	}

	commands, err := d.Plugins(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	handler, ok := commands.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	log.Debugf("executing command %s", name)
	return handler(ctx, args)
}
