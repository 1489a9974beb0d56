package plugin

import (
	"context"
	"fmt"
	"time"

	"github.com/mgramigna/cql-language-server/internal/future"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("cqlls.plugin")

type loaded struct {
	plugin       Plugin
	contribution *CommandContribution
	err          error
}

// Discover creates every plugin in registry, each on its own goroutine, and
// returns a future of the merged commands. A factory that fails, panics or
// does not finish within timeout is logged and skipped. Contributions merge
// in registry order. A zero timeout waits for every factory.
func Discover(registry *Registry, host Host, timeout time.Duration) *future.Future[*Commands] {
	if registry.Len() == 0 {
		return future.Completed(newCommands())
	}

	var names []string
	var pending []chan loaded
	for name, factory := range registry.Factories() {
		ch := make(chan loaded, 1)
		go func() {
			ch <- load(factory, host)
		}()
		names = append(names, name)
		pending = append(pending, ch)
	}

	result := future.New[*Commands]()
	go func() {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		commands := newCommands()
		for i, ch := range pending {
			l := receive(ctx, ch)
			if l.err != nil {
				log.Errorf("failed to load plugin %s: %s", names[i], l.err)
				continue
			}
			log.Debugf("loading plugin %s", l.plugin.Name())
			commands.plugins = append(commands.plugins, l.plugin.Name())
			commands.merge(l.plugin.Name(), l.contribution)
		}
		log.Infof("%d plugins loaded, %d commands available", len(commands.plugins), len(commands.handlers))
		result.Complete(commands)
	}()
	return result
}

// receive prefers a finished factory over an expired deadline.
func receive(ctx context.Context, ch <-chan loaded) loaded {
	select {
	case l := <-ch:
		return l
	default:
	}
	select {
	case l := <-ch:
		return l
	case <-ctx.Done():
		return loaded{err: fmt.Errorf("factory did not finish: %w", ctx.Err())}
	}
}

func load(factory Factory, host Host) loaded {
	p, err := create(factory, host)
	if err != nil {
		return loaded{err: err}
	}
	contribution, err := contribute(p)
	if err != nil {
		return loaded{err: err}
	}
	return loaded{plugin: p, contribution: contribution}
}

func create(factory Factory, host Host) (p Plugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("factory panicked: %v", r)
		}
	}()
	if factory == nil {
		return nil, fmt.Errorf("no factory")
	}
	p, err = factory(host)
	if err == nil && p == nil {
		err = fmt.Errorf("factory returned no plugin")
	}
	return p, err
}

func contribute(p Plugin) (c *CommandContribution, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command contribution panicked: %v", r)
		}
	}()
	return p.CommandContribution(), nil
}
