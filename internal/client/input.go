// Package client handles user input validation and processing
package client

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// errQuit is returned by ExpandShortcut for the local quit command
var errQuit = errors.New("quit")

// InputHandler reads commands from the user
type InputHandler struct {
	scanner *bufio.Scanner
	display *Display
}

// NewInputHandler creates an input handler over in, or stdin when in is nil
func NewInputHandler(in io.Reader, display *Display) *InputHandler {
	if in == nil {
		in = os.Stdin
	}
	return &InputHandler{
		scanner: bufio.NewScanner(in),
		display: display,
	}
}

// NextCommand prompts until it gets a line to send. It returns io.EOF when
// input ends and errQuit when the user quits.
func (ih *InputHandler) NextCommand() (string, error) {
	for {
		ih.display.PrintPrompt()
		if !ih.scanner.Scan() {
			if err := ih.scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}

		line := strings.TrimSpace(ih.scanner.Text())
		if line == "" {
			continue
		}
		if line == "?" {
			ih.display.PrintUsage()
			continue
		}

		cmd, err := ExpandShortcut(line)
		if errors.Is(err, errQuit) {
			return "", errQuit
		}
		if err != nil {
			ih.display.PrintWarning(err.Error())
			continue
		}
		return cmd, nil
	}
}

// ExpandShortcut turns a local shortcut into a protocol command. Other input
// is returned unchanged.
func ExpandShortcut(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", errors.New("empty command")
	}

	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return "", errQuit
	case "discover":
		return "looking for bomberstudent servers", nil
	case "maps":
		return "GET maps/list", nil
	case "games":
		return "GET game/list", nil
	case "create":
		if len(fields) < 3 {
			return "", errors.New("usage: create <mapId> <name>")
		}
		mapID, err := strconv.Atoi(fields[1])
		if err != nil {
			return "", fmt.Errorf("map id must be a number, got %q", fields[1])
		}
		name := strings.Join(fields[2:], " ")
		payload, err := json.Marshal(map[string]interface{}{"name": name, "mapId": mapID})
		if err != nil {
			return "", err
		}
		return "POST game/create " + string(payload), nil
	}
	return line, nil
}
