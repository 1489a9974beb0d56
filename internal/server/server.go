package server

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/mgramigna/cql-language-server/internal/config"
	"github.com/mgramigna/cql-language-server/internal/content"
	"github.com/mgramigna/cql-language-server/internal/future"
	"github.com/mgramigna/cql-language-server/internal/manager"
	"github.com/mgramigna/cql-language-server/internal/plugin"
	"github.com/mgramigna/cql-language-server/internal/resolver"
	"github.com/mgramigna/cql-language-server/internal/scheduler"
	"github.com/mgramigna/cql-language-server/internal/translator"
	"github.com/mgramigna/cql-language-server/internal/workspace"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"
)

var log = commonlog.GetLogger("cqlls.server")

const Name = "cqlls"

// Context is the state shared by the server and its services.
type Context struct {
	Client  *future.Future[plugin.Client]
	Store   *content.Store
	Folders *workspace.Folders
}

func NewContext() *Context {
	return &Context{
		Client:  future.New[plugin.Client](),
		Store:   content.NewStore(),
		Folders: workspace.NewFolders(),
	}
}

type Options struct {
	Config config.Config
	// Translator defaults to the structural translator.
	Translator translator.Translator
	// Plugins defaults to plugin.Default.
	Plugins    *plugin.Registry
	Registerer prometheus.Registerer
	Version    string
}

type Server struct {
	ctx     *Context
	session string
	version string
	config  atomic.Pointer[config.Config]

	handler   *protocol.Handler
	schedule  *scheduler.Scheduler
	manager   *manager.TranslationManager
	documents *DocumentService
	workspace *WorkspaceService
	commands  *plugin.Dispatcher

	state    atomic.Int32
	shutdown atomic.Bool
	exited   *future.Future[int]
}

// NewServer wires the services around ctx and starts plugin discovery.
func NewServer(ctx *Context, opts Options) (*Server, error) {
	if ctx == nil {
		ctx = NewContext()
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.Translator == nil {
		opts.Translator = translator.Structural{}
	}
	if opts.Plugins == nil {
		opts.Plugins = plugin.Default
	}

	s := &Server{
		ctx:     ctx,
		session: uuid.NewString(),
		version: opts.Version,
		exited:  future.New[int](),
	}
	cfg := opts.Config
	s.config.Store(&cfg)

	s.schedule = scheduler.NewScheduler(cfg.FetchWorkers, cfg.FetchWorkers*4)
	s.schedule.RunScheduler()
	fetcher := resolver.NewFetcher(s.schedule, cfg.FetchTimeout())

	m, err := manager.NewTranslationManager(manager.Config{
		Store:      ctx.Store,
		Folders:    ctx.Folders,
		Reader:     resolver.NewReader(ctx.Store, fetcher),
		Translator: opts.Translator,
		CacheSize:  cfg.CacheSize,
		Registerer: opts.Registerer,
	})
	if err != nil {
		s.schedule.StopScheduler()
		return nil, err
	}
	s.manager = m
	s.documents = NewDocumentService(ctx, m, s.Config)
	s.workspace = NewWorkspaceService(ctx, m, s.schedule)

	host := plugin.Host{
		Client:       ctx.Client,
		Workspace:    s.workspace,
		Documents:    s.documents,
		Translations: m,
	}
	s.commands = plugin.NewDispatcher(
		plugin.Discover(opts.Plugins, host, cfg.PluginTimeout()),
		cfg.CommandTimeout(),
		map[string]*plugin.CommandContribution{"documents": s.documents.CommandContribution()},
	)

	s.handler = &protocol.Handler{
		Initialized:                        s.initialized,
		SetTrace:                           s.setTrace,
		TextDocumentDidOpen:                s.documents.didOpen,
		TextDocumentDidChange:              s.documents.didChange,
		TextDocumentDidSave:                s.documents.didSave,
		TextDocumentDidClose:               s.documents.didClose,
		WorkspaceExecuteCommand:            s.workspaceExecuteCommand,
		WorkspaceDidChangeWorkspaceFolders: s.workspace.didChangeWorkspaceFolders,
	}

	log.Infof("session %s created", s.session)
	return s, nil
}

// Config returns the configuration in effect for the session.
func (s *Server) Config() config.Config {
	return *s.config.Load()
}

func (s *Server) Session() string {
	return s.session
}

func (s *Server) Manager() *manager.TranslationManager {
	return s.manager
}

// Exited completes with the process exit code once the client sends exit.
func (s *Server) Exited() *future.Future[int] {
	return s.exited
}

// Handler is the glsp handler for the session. It enforces the lifecycle
// and serves the cql/translate request.
func (s *Server) Handler() glsp.Handler {
	return &handler{server: s}
}

// New returns a glsp server for s.
func (s *Server) New(debug bool) *glspserver.Server {
	return glspserver.NewServer(s.Handler(), Name, debug)
}

var (
	ErrNotInitialized     = errors.New("server: not initialized")
	ErrShuttingDown       = errors.New("server: shutting down")
	ErrAlreadyInitialized = errors.New("server: already initialized")
)
