// Package client handles the lobby client over TCP or WebSocket
package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bomberstudent/pkg/logger"
)

const (
	DiscoverCommand = "looking for bomberstudent servers"

	DefaultResponseTimeout = 5 * time.Second
	DefaultIdleWindow      = 200 * time.Millisecond
)

// Options configures a client
type Options struct {
	WebSocket       bool          // connect to ws://<addr>/ws instead of raw TCP
	ResponseTimeout time.Duration // wait for the first byte of a response
	IdleWindow      time.Duration // a TCP response ends after this much silence
	In              io.Reader
	Out             io.Writer
}

// connection sends one command and collects its response
type connection interface {
	Send(cmd string) error
	Receive(timeout, idle time.Duration) (string, error)
	Close() error
}

// Client represents the lobby client
type Client struct {
	opts       Options
	serverAddr string
	display    *Display
	input      *InputHandler
	logger     *logger.Logger

	mu   sync.Mutex
	conn connection
}

// NewClient creates a new client instance
func NewClient(serverAddr string, opts Options) *Client {
	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = DefaultResponseTimeout
	}
	if opts.IdleWindow <= 0 {
		opts.IdleWindow = DefaultIdleWindow
	}
	display := NewDisplay(opts.Out)
	return &Client{
		opts:       opts,
		serverAddr: serverAddr,
		display:    display,
		input:      NewInputHandler(opts.In, display),
		logger:     logger.Client,
	}
}

// Start connects, announces itself with the discovery command and runs the
// interactive loop until the user quits or the server closes the connection
func (c *Client) Start() error {
	c.display.PrintBanner()

	if err := c.connect(); err != nil {
		c.display.PrintError(fmt.Sprintf("Failed to connect to server: %v", err))
		return err
	}
	defer c.Close()

	resp, err := c.roundTrip(DiscoverCommand)
	if err != nil {
		c.display.PrintError(fmt.Sprintf("Discovery failed: %v", err))
		return err
	}
	c.display.PrintResponse(resp)
	c.display.PrintInfo("Type '?' for shortcuts, 'quit' to leave.")

	for {
		cmd, err := c.input.NextCommand()
		if errors.Is(err, errQuit) || errors.Is(err, io.EOF) {
			c.display.PrintServerStatus("Disconnecting")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		resp, err := c.roundTrip(cmd)
		if resp != "" {
			c.display.PrintResponse(resp)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.display.PrintServerStatus("Server closed the connection")
				return nil
			}
			c.display.PrintError(err.Error())
			return err
		}
	}
}

// Exec connects, sends a single command, prints the response and disconnects
func (c *Client) Exec(cmd string) (string, error) {
	if err := c.connect(); err != nil {
		return "", err
	}
	defer c.Close()

	resp, err := c.roundTrip(cmd)
	if resp != "" {
		c.display.PrintResponse(resp)
	}
	if errors.Is(err, io.EOF) && resp != "" {
		err = nil
	}
	return resp, err
}

// connect dials the server over the configured transport
func (c *Client) connect() error {
	var (
		conn connection
		err  error
	)
	if c.opts.WebSocket {
		conn, err = dialWebSocket(c.serverAddr)
	} else {
		conn, err = dialTCP(c.serverAddr)
	}
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.display.PrintServerStatus("Connected to " + c.serverAddr)
	c.logger.Info("Connected to server at %s", c.serverAddr)
	return nil
}

func (c *Client) roundTrip(cmd string) (string, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return "", errors.New("not connected")
	}

	c.logger.Debug("Sending %q", cmd)
	if err := conn.Send(cmd); err != nil {
		return "", fmt.Errorf("failed to send command: %w", err)
	}
	return conn.Receive(c.opts.ResponseTimeout, c.opts.IdleWindow)
}

// Close closes the connection. Safe to call from a signal handler.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

type tcpConn struct {
	conn net.Conn
	buf  []byte
}

func dialTCP(addr string) (*tcpConn, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, err
	}
	return &tcpConn{conn: conn, buf: make([]byte, 4096)}, nil
}

func (t *tcpConn) Send(cmd string) error {
	_, err := io.WriteString(t.conn, cmd+"\n")
	return err
}

// Receive waits up to timeout for data, then keeps reading until the
// connection has been silent for idle. Responses carry no length, so silence
// is the only end marker.
func (t *tcpConn) Receive(timeout, idle time.Duration) (string, error) {
	var sb strings.Builder
	wait := timeout
	for {
		t.conn.SetReadDeadline(time.Now().Add(wait))
		n, err := t.conn.Read(t.buf)
		sb.Write(t.buf[:n])

		var ne net.Error
		switch {
		case err == nil:
			wait = idle
			continue
		case errors.As(err, &ne) && ne.Timeout():
			if sb.Len() == 0 {
				return "", errors.New("no response from server")
			}
			return sb.String(), nil
		default:
			return sb.String(), err
		}
	}
}

func (t *tcpConn) Close() error {
	return t.conn.Close()
}

// wsConn carries one command and one response per text frame
type wsConn struct {
	conn *websocket.Conn
}

func dialWebSocket(addr string) (*wsConn, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	if strings.Contains(addr, "://") {
		parsed, err := url.Parse(addr)
		if err != nil {
			return nil, err
		}
		u = *parsed
	}

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

func (w *wsConn) Send(cmd string) error {
	return w.conn.WriteMessage(websocket.TextMessage, []byte(cmd))
}

func (w *wsConn) Receive(timeout, _ time.Duration) (string, error) {
	w.conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := w.conn.ReadMessage()
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return "", io.EOF
	}
	return string(data), err
}

func (w *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return w.conn.Close()
}
