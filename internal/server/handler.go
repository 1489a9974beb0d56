package server

import (
	"encoding/json"
	"fmt"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const (
	methodInitialize = "initialize"
	methodShutdown   = "shutdown"
	methodExit       = "exit"

	// MethodTranslate requests the translation artifact of an open document.
	MethodTranslate = "cql/translate"
)

type TranslateParams struct {
	URI string `json:"uri"`
}

// handler owns the lifecycle messages and cql/translate, and hands every
// other message to the protocol handler.
type handler struct {
	server *Server
}

func (h *handler) Handle(context *glsp.Context) (r any, validMethod bool, validParams bool, err error) {
	s := h.server
	if err := s.admit(context.Method); err != nil {
		log.Debugf("rejecting %s: %s", context.Method, err)
		return nil, true, true, err
	}

	switch context.Method {
	case methodInitialize:
		var params protocol.InitializeParams
		if err := json.Unmarshal(context.Params, &params); err != nil {
			return nil, true, false, err
		}
		r, err := s.initialize(context, &params)
		if err == nil {
			s.handler.SetInitialized(true)
		}
		return r, true, true, err

	case methodShutdown:
		return nil, true, true, s.shutdownHandler(context)

	case methodExit:
		return nil, true, true, s.exit(context)

	case MethodTranslate:
		var params TranslateParams
		if err := json.Unmarshal(context.Params, &params); err != nil || params.URI == "" {
			return nil, true, false, fmt.Errorf("invalid %s params", MethodTranslate)
		}
		r, err := s.documents.translate(requestContext(context), params.URI)
		return r, true, true, err
	}

	return s.handler.Handle(context)
}
