package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketPath is where the gateway upgrades connections
const WebSocketPath = "/ws"

// wsTransport carries one command per text frame
type wsTransport struct {
	conn         *websocket.Conn
	maxSize      int
	writeTimeout time.Duration
}

func newWSTransport(conn *websocket.Conn, maxSize int, writeTimeout time.Duration) *wsTransport {
	conn.SetReadLimit(int64(maxSize))
	return &wsTransport{conn: conn, maxSize: maxSize, writeTimeout: writeTimeout}
}

func (t *wsTransport) SetReadDeadline(d time.Time) error {
	return t.conn.SetReadDeadline(d)
}

func (t *wsTransport) ReadCommand() (string, error) {
	kind, data, err := t.conn.ReadMessage()
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		return "", fmt.Errorf("%w: command exceeds %d bytes", ErrProtocol, t.maxSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		return "", io.EOF
	case err != nil:
		return "", err
	}
	if kind != websocket.TextMessage {
		return "", fmt.Errorf("%w: binary frames are not supported", ErrProtocol)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (t *wsTransport) WriteResponse(data []byte) error {
	if t.writeTimeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Interrupt() {
	t.conn.SetReadDeadline(time.Now())
}

func (t *wsTransport) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return t.conn.Close()
}

func (t *wsTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// WebSocketHandler upgrades requests and runs them as lobby sessions
func (s *Server) WebSocketHandler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  s.opts.MaxMessageSize,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Error("Failed to upgrade connection from %s: %v", r.RemoteAddr, err)
			return
		}
		s.handleClient(newWSTransport(conn, s.opts.MaxMessageSize, s.opts.WriteTimeout))
	})
	return mux
}

// ServeWebSocket starts the gateway on addr in the background. The HTTP server is
// released by the coordinator; upgraded sessions are drained like TCP sessions.
func (s *Server) ServeWebSocket(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start websocket gateway: %w", err)
	}

	httpSrv := &http.Server{Handler: s.WebSocketHandler(), ReadHeaderTimeout: 10 * time.Second}
	s.coordinator.Track("websocket gateway", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return httpSrv.Shutdown(ctx)
	})

	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("WebSocket gateway stopped: %v", err)
		}
	}()

	s.logger.Info("WebSocket gateway listening on ws://%s%s", ln.Addr(), WebSocketPath)
	return ln.Addr(), nil
}
