package client

import (
	"bytes"
	"errors"
	"io"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"bomberstudent/internal/lobby"
	"bomberstudent/internal/protocol"
	"bomberstudent/internal/server"
	"bomberstudent/internal/shutdown"
	"bomberstudent/pkg/logger"
)

func init() {
	color.NoColor = true
}

// startLobby runs a real lobby server on loopback and returns its TCP and HTTP addresses
func startLobby(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	maps := `{"mapCount": 1, "maps": [{"id": 1, "name": "arena"}]}`
	if err := os.WriteFile(filepath.Join(dir, lobby.DefaultMapsFile), []byte(maps), 0644); err != nil {
		t.Fatal(err)
	}
	store, err := lobby.NewStore(lobby.NewFilePersister(dir, "", ""), lobby.WithLogger(logger.NewNop()))
	if err != nil {
		t.Fatal(err)
	}

	coord := shutdown.New(time.Second, logger.NewNop())
	srv := server.NewServer(server.Options{Address: "127.0.0.1:0"}, protocol.NewDispatcher(store, logger.NewNop()), coord, logger.NewNop())
	if err := srv.Listen(); err != nil {
		t.Fatal(err)
	}
	go srv.Serve()

	ts := httptest.NewServer(srv.WebSocketHandler())
	t.Cleanup(func() {
		ts.Close()
		coord.OnInterrupt()
	})
	return srv.Addr().String(), strings.TrimPrefix(ts.URL, "http://")
}

func testOptions(in string, out io.Writer) Options {
	return Options{
		ResponseTimeout: 2 * time.Second,
		IdleWindow:      100 * time.Millisecond,
		In:              strings.NewReader(in),
		Out:             out,
	}
}

func TestExecOverTCP(t *testing.T) {
	addr, _ := startLobby(t)
	var out bytes.Buffer

	c := NewClient(addr, testOptions("", &out))
	resp, err := c.Exec(DiscoverCommand)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if resp != protocol.DiscoveryReply {
		t.Fatalf("resp = %q", resp)
	}
	if !strings.Contains(out.String(), "hello i'm a bomberstudent server.") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestExecCollectsMultiLineResponse(t *testing.T) {
	addr, _ := startLobby(t)

	c := NewClient(addr, testOptions("", io.Discard))
	resp, err := c.Exec("PING")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if resp != protocol.HelpText {
		t.Fatalf("resp = %q", resp)
	}
}

func TestExecOverWebSocket(t *testing.T) {
	_, wsAddr := startLobby(t)

	opts := testOptions("", io.Discard)
	opts.WebSocket = true
	c := NewClient(wsAddr, opts)
	resp, err := c.Exec("GET maps/list")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if !strings.Contains(resp, `"mapCount":1`) {
		t.Fatalf("resp = %q", resp)
	}
}

func TestInteractiveSession(t *testing.T) {
	addr, _ := startLobby(t)
	var out bytes.Buffer

	c := NewClient(addr, testOptions("create 1 duel\n\ngames\nquit\n", &out))
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"hello i'm a bomberstudent server.",
		`"name": "duel"`,
		`"gameCount": 1`,
		"Disconnecting",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestServerCloseEndsSession(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		buf := make([]byte, 64)
		conn.Read(buf)
		io.WriteString(conn, protocol.DiscoveryReply)
		conn.Read(buf)
		io.WriteString(conn, protocol.ShutdownReply)
		conn.Close()
	}()

	var out bytes.Buffer
	c := NewClient(ln.Addr().String(), testOptions("games\ngames\n", &out))
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !strings.Contains(out.String(), "Server closed the connection") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestExecConnectFailure(t *testing.T) {
	ln, _ := net.Listen("tcp", "127.0.0.1:0")
	addr := ln.Addr().String()
	ln.Close()

	c := NewClient(addr, testOptions("", io.Discard))
	if _, err := c.Exec("GET game/list"); err == nil {
		t.Fatal("expected connect error")
	}
}

func TestExpandShortcut(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"discover", DiscoverCommand, false},
		{"maps", "GET maps/list", false},
		{"GAMES", "GET game/list", false},
		{"create 2 my game", `POST game/create {"mapId":2,"name":"my game"}`, false},
		{"create x duel", "", true},
		{"create 2", "", true},
		{"GET game/list", "GET game/list", false},
		{"whatever else", "whatever else", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ExpandShortcut(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := ExpandShortcut("quit"); !errors.Is(err, errQuit) {
		t.Fatalf("quit = %v", err)
	}
}

func TestClassifyResponse(t *testing.T) {
	tests := map[string]ResponseKind{
		`{"error":"invalid_request","message":"x"}` + "\n": ResponseError,
		`{"gameCount":0,"games":[]}` + "\n":                 ResponseJSON,
		protocol.HelpText:                                   ResponseHelp,
		protocol.DiscoveryReply:                             ResponseText,
	}
	for resp, want := range tests {
		if got := ClassifyResponse(resp); got != want {
			t.Errorf("ClassifyResponse(%q) = %d, want %d", resp, got, want)
		}
	}
}
