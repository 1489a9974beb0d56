package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mgramigna/cql-language-server/internal/manager"
	"github.com/mgramigna/cql-language-server/internal/scheduler"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// WorkspaceService tracks workspace folders and keeps the artifact cache
// trimmed.
type WorkspaceService struct {
	ctx      *Context
	manager  *manager.TranslationManager
	schedule *scheduler.Scheduler
	once     sync.Once
	stopped  atomic.Bool
}

func NewWorkspaceService(ctx *Context, m *manager.TranslationManager, schedule *scheduler.Scheduler) *WorkspaceService {
	return &WorkspaceService{ctx: ctx, manager: m, schedule: schedule}
}

func (w *WorkspaceService) Folders() []string {
	return w.ctx.Folders.List()
}

func (w *WorkspaceService) Root(uri string) string {
	return w.ctx.Folders.Root(uri)
}

// start begins the periodic sweep. A zero interval disables it.
func (w *WorkspaceService) start(interval time.Duration) {
	if interval <= 0 {
		return
	}
	w.once.Do(func() {
		w.schedule.SchedulePeriodicTask(interval, scheduler.Task{
			Name: "sweep artifacts",
			Execute: func() error {
				if !w.stopped.Load() {
					w.manager.Sweep()
				}
				return nil
			},
		})
	})
}

func (w *WorkspaceService) didChangeWorkspaceFolders(
	context *glsp.Context,
	params *protocol.DidChangeWorkspaceFoldersParams,
) error {
	if w.stopped.Load() {
		return nil
	}
	for _, folder := range params.Event.Removed {
		w.ctx.Folders.Remove(folder.URI)
	}
	for _, folder := range params.Event.Added {
		w.ctx.Folders.Add(folder.URI)
	}
	log.Infof("workspace folders: %v", w.ctx.Folders.List())

	// Roots may have moved; cached artifacts resolved against the old ones.
	for uri := range w.ctx.Store.Entries() {
		w.manager.Invalidate(uri)
	}
	return nil
}

func (w *WorkspaceService) Stop() {
	w.stopped.Store(true)
}
