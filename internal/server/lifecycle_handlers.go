package server

import (
	"context"

	"github.com/mgramigna/cql-language-server/internal/config"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

type State int32

const (
	StateCreated State = iota
	StateInitializing
	StateInitialized
	StateShuttingDown
	StateExited
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitializing:
		return "initializing"
	case StateInitialized:
		return "initialized"
	case StateShuttingDown:
		return "shutting down"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

func (s *Server) State() State {
	return State(s.state.Load())
}

func (s *Server) transition(from, to State) bool {
	if s.state.CompareAndSwap(int32(from), int32(to)) {
		log.Debugf("state %s -> %s", from, to)
		return true
	}
	return false
}

// admit decides whether a message may be handled in the current state.
func (s *Server) admit(method string) error {
	if method == methodExit {
		return nil
	}
	switch s.State() {
	case StateCreated:
		if method != methodInitialize {
			return ErrNotInitialized
		}
	case StateShuttingDown:
		if method != methodShutdown {
			return ErrShuttingDown
		}
	case StateExited:
		return ErrShuttingDown
	}
	return nil
}

func (s *Server) initialize(
	context *glsp.Context,
	params *protocol.InitializeParams,
) (any, error) {
	if !s.transition(StateCreated, StateInitializing) {
		return nil, ErrAlreadyInitialized
	}

	cfg, err := config.Load(s.Config(), params.InitializationOptions)
	if err != nil {
		log.Warningf("ignoring initialization options: %s", err)
	} else {
		s.config.Store(&cfg)
	}
	log.Debugf("config: %+v", s.Config())

	for _, folder := range params.WorkspaceFolders {
		s.ctx.Folders.Add(folder.URI)
	}
	if len(params.WorkspaceFolders) == 0 && params.RootURI != nil {
		s.ctx.Folders.Add(*params.RootURI)
	}
	log.Infof("workspace folders: %v", s.ctx.Folders.List())

	if params.Trace != nil {
		protocol.SetTraceValue(*params.Trace)
	}

	capabilities := s.handler.CreateServerCapabilities()
	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: &protocol.True},
	}
	capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{
		Commands: s.commands.Names(requestContext(context)),
	}
	capabilities.Workspace = &protocol.ServerCapabilitiesWorkspace{
		WorkspaceFolders: &protocol.WorkspaceFoldersServerCapabilities{
			Supported: &protocol.True,
		},
	}

	version := s.version
	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    Name,
			Version: &version,
		},
	}, nil
}

func (s *Server) initialized(
	context *glsp.Context,
	params *protocol.InitializedParams,
) error {
	if !s.transition(StateInitializing, StateInitialized) {
		return nil
	}
	log.Info("client initialized")

	s.ctx.Client.Complete(notifier(context.Notify))
	s.workspace.start(s.Config().SweepInterval())
	s.documents.publishAll()
	return nil
}

func (s *Server) shutdownHandler(context *glsp.Context) error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	s.state.Store(int32(StateShuttingDown))
	log.Info("shutting down")

	s.documents.Stop()
	s.workspace.Stop()
	s.manager.Stop()
	s.schedule.StopScheduler()
	return nil
}

func (s *Server) exit(context *glsp.Context) error {
	s.state.Store(int32(StateExited))
	code := 0
	if !s.shutdown.Load() {
		log.Warning("exit without shutdown")
		code = 1
	}
	s.exited.Complete(code)
	return nil
}

func (s *Server) setTrace(context *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

// notifier adapts the connection's notify function to plugin.Client.
type notifier glsp.NotifyFunc

func (n notifier) Notify(method string, params any) {
	n(method, params)
}

func requestContext(*glsp.Context) context.Context {
	return context.Background()
}
