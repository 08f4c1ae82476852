// Package client handles client-side display and user interface
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// ResponseKind classifies a server response for display
type ResponseKind int

const (
	ResponseText ResponseKind = iota
	ResponseJSON
	ResponseError
	ResponseHelp
)

type Display struct {
	out          io.Writer
	serverColor  *color.Color
	jsonColor    *color.Color
	errorColor   *color.Color
	helpColor    *color.Color
	warningColor *color.Color
	infoColor    *color.Color
	promptColor  *color.Color
}

// NewDisplay creates a display writing to out, or stdout when out is nil
func NewDisplay(out io.Writer) *Display {
	if out == nil {
		out = os.Stdout
	}
	return &Display{
		out:          out,
		serverColor:  color.New(color.FgCyan, color.Bold),
		jsonColor:    color.New(color.FgGreen),
		errorColor:   color.New(color.FgRed, color.Bold),
		helpColor:    color.New(color.FgYellow),
		warningColor: color.New(color.FgYellow),
		infoColor:    color.New(color.FgWhite),
		promptColor:  color.New(color.FgCyan),
	}
}

// PrintBanner displays the client banner
func (d *Display) PrintBanner() {
	banner := `
╔═══════════════════════════════════════╗
║      BOMBERSTUDENT LOBBY CLIENT       ║
╚═══════════════════════════════════════╝
`
	d.serverColor.Fprintln(d.out, banner)
}

// PrintServerStatus displays server connection status
func (d *Display) PrintServerStatus(message string) {
	timestamp := time.Now().Format("15:04:05")
	d.serverColor.Fprintf(d.out, "[%s] [SERVER] %s\n", timestamp, message)
}

// ClassifyResponse decides how a raw response is shown
func ClassifyResponse(resp string) ResponseKind {
	trimmed := strings.TrimSpace(resp)
	switch {
	case strings.HasPrefix(trimmed, `{"error"`):
		return ResponseError
	case strings.HasPrefix(trimmed, "{"):
		return ResponseJSON
	case strings.HasPrefix(trimmed, "Unknown command."):
		return ResponseHelp
	}
	return ResponseText
}

// PrintResponse prints one server response, pretty-printing JSON payloads
func (d *Display) PrintResponse(resp string) {
	switch ClassifyResponse(resp) {
	case ResponseError:
		d.errorColor.Fprint(d.out, indentJSON(resp))
	case ResponseJSON:
		d.jsonColor.Fprint(d.out, indentJSON(resp))
	case ResponseHelp:
		d.helpColor.Fprint(d.out, resp)
	default:
		d.serverColor.Fprint(d.out, resp)
	}
	if !strings.HasSuffix(resp, "\n") {
		fmt.Fprintln(d.out)
	}
}

func indentJSON(s string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(strings.TrimSpace(s)), "", "  "); err != nil {
		return s
	}
	buf.WriteByte('\n')
	return buf.String()
}

// PrintError displays error messages
func (d *Display) PrintError(message string) {
	d.errorColor.Fprintf(d.out, "❌ %s\n", message)
}

// PrintWarning displays warning messages
func (d *Display) PrintWarning(message string) {
	d.warningColor.Fprintf(d.out, "⚠️  %s\n", message)
}

// PrintInfo displays informational messages
func (d *Display) PrintInfo(message string) {
	d.infoColor.Fprintln(d.out, message)
}

// PrintPrompt shows the input prompt without a newline
func (d *Display) PrintPrompt() {
	d.promptColor.Fprint(d.out, "bomber> ")
}

// PrintUsage lists the local shortcuts
func (d *Display) PrintUsage() {
	d.infoColor.Fprint(d.out, `Shortcuts:
  discover              looking for bomberstudent servers
  maps                  GET maps/list
  games                 GET game/list
  create <mapId> <name> POST game/create
  quit                  close the connection
Anything else is sent to the server as typed.
`)
}
