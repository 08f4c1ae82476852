// Package protocol implements the plain-text lobby protocol
package protocol

import (
	"encoding/json"
	"errors"

	"bomberstudent/internal/lobby"
)

// Command identifies a recognized client command
type Command string

// Command prefixes, matched case-sensitively in this order
const (
	CmdDiscover   Command = "looking for bomberstudent servers"
	CmdMapsList   Command = "GET maps/list"
	CmdGameList   Command = "GET game/list"
	CmdGameCreate Command = "POST game/create"
	CmdHelp       Command = "help"
)

// Fixed replies
const (
	DiscoveryReply = "hello i'm a bomberstudent server.\n"
	FullReply      = "server is full, try again later.\n"
	ShutdownReply  = "server is shutting down.\n"

	HelpText = "Unknown command.\n" +
		"List of commands:\n" +
		" - 'looking for bomberstudent servers'\n" +
		" - 'GET maps/list'\n" +
		" - 'GET game/list'\n" +
		" - 'POST game/create'\n"
)

// Error kinds carried in error payloads
const (
	KindInvalidRequest = "invalid_request"
	KindStorage        = "storage_error"
	KindInternal       = "internal_error"
)

// ErrorResponse is the payload returned when a create fails
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// commandTable lists prefixes in match order
var commandTable = []Command{CmdDiscover, CmdMapsList, CmdGameList, CmdGameCreate}

// Classify returns the command matching the start of line and the text after the prefix.
// Unrecognized input yields CmdHelp.
func Classify(line string) (Command, string) {
	for _, cmd := range commandTable {
		p := string(cmd)
		if len(line) >= len(p) && line[:len(p)] == p {
			return cmd, line[len(p):]
		}
	}
	return CmdHelp, ""
}

// encode marshals v as a single JSON line
func encode(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(ErrorResponse{Error: KindInternal, Message: err.Error()})
	}
	return append(data, '\n')
}

// errorPayload maps a store error onto its wire kind
func errorPayload(err error) []byte {
	kind := KindInternal
	switch {
	case errors.Is(err, lobby.ErrInvalidRequest):
		kind = KindInvalidRequest
	case errors.Is(err, lobby.ErrStorage):
		kind = KindStorage
	}
	return encode(ErrorResponse{Error: kind, Message: err.Error()})
}
