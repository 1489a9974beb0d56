package server

import (
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (s *Server) workspaceExecuteCommand(
	context *glsp.Context,
	params *protocol.ExecuteCommandParams,
) (any, error) {
	log.Debugf("called %q", params.Command)
	return s.commands.Execute(requestContext(context), params.Command, params.Arguments)
}
