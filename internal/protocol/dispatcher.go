package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"

	"bomberstudent/internal/lobby"
	"bomberstudent/pkg/logger"
)

// Lobby is the part of the store the dispatcher needs
type Lobby interface {
	ListGames() lobby.Snapshot
	MapCatalog() lobby.MapCatalog
	CreateGame(lobby.CreateRequest) (lobby.Game, error)
}

// Dispatcher turns one command line into one response
type Dispatcher struct {
	lobby  Lobby
	logger *logger.Logger
}

// NewDispatcher creates a dispatcher backed by l
func NewDispatcher(l Lobby, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Server
	}
	return &Dispatcher{lobby: l, logger: log}
}

// Dispatch handles a single command line (without its terminator) and returns the reply bytes
func (d *Dispatcher) Dispatch(line string) []byte {
	cmd, rest := Classify(line)
	d.logger.Debug("Dispatching %q", cmd)

	switch cmd {
	case CmdDiscover:
		return []byte(DiscoveryReply)
	case CmdMapsList:
		return encode(d.lobby.MapCatalog())
	case CmdGameList:
		return encode(d.lobby.ListGames())
	case CmdGameCreate:
		return d.handleCreate(rest)
	default:
		return []byte(HelpText)
	}
}

func (d *Dispatcher) handleCreate(rest string) []byte {
	req, err := ParseCreateRequest(rest)
	if err != nil {
		d.logger.Debug("Rejected create payload: %v", err)
		return errorPayload(err)
	}

	game, err := d.lobby.CreateGame(req)
	if err != nil {
		return errorPayload(err)
	}
	return encode(game)
}

// ParseCreateRequest decodes the text that follows "POST game/create".
// It must be a single space followed by a JSON object with a name and an integer mapId.
func ParseCreateRequest(rest string) (lobby.CreateRequest, error) {
	var req lobby.CreateRequest

	if rest == "" {
		return req, fmt.Errorf("%w: missing payload", lobby.ErrInvalidRequest)
	}
	if rest[0] != ' ' {
		return req, fmt.Errorf("%w: expected a space after the command", lobby.ErrInvalidRequest)
	}
	payload := strings.TrimSpace(rest[1:])
	if payload == "" {
		return req, fmt.Errorf("%w: missing payload", lobby.ErrInvalidRequest)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return req, fmt.Errorf("%w: payload is not a JSON object: %v", lobby.ErrInvalidRequest, err)
	}
	if raw == nil {
		return req, fmt.Errorf("%w: payload is not a JSON object", lobby.ErrInvalidRequest)
	}
	if _, err := dec.Token(); err != io.EOF {
		return req, fmt.Errorf("%w: trailing data after payload", lobby.ErrInvalidRequest)
	}

	if name, ok := raw["name"]; ok {
		if _, isString := name.(string); !isString {
			return req, fmt.Errorf("%w: name must be a string", lobby.ErrInvalidRequest)
		}
	}
	if v, ok := raw["mapId"]; ok && v == nil {
		return req, fmt.Errorf("%w: mapId must not be null", lobby.ErrInvalidRequest)
	}

	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &req,
		Metadata:    &md,
		ErrorUnused: true,
	})
	if err != nil {
		return req, err
	}
	if err := decoder.Decode(raw); err != nil {
		return req, fmt.Errorf("%w: %v", lobby.ErrInvalidRequest, err)
	}
	if len(md.Unset) > 0 {
		sort.Strings(md.Unset)
		return req, fmt.Errorf("%w: missing fields %s", lobby.ErrInvalidRequest, strings.Join(md.Unset, ", "))
	}

	return req, nil
}
