package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

var (
	// ErrProtocol marks malformed or oversized client input; the session is closed
	ErrProtocol = errors.New("protocol error")
	// ErrResourceExhausted marks a connection refused because the session limit was reached
	ErrResourceExhausted = errors.New("session limit reached")
)

// transport moves one command in and one response out of a client connection
type transport interface {
	// SetReadDeadline bounds the next ReadCommand. The zero time means no deadline.
	SetReadDeadline(time.Time) error
	// ReadCommand returns the next command without its terminator.
	ReadCommand() (string, error)
	// WriteResponse writes the whole response before returning.
	WriteResponse([]byte) error
	// Interrupt makes a pending or future ReadCommand return immediately.
	Interrupt()
	Close() error
	RemoteAddr() net.Addr
}

// tcpTransport frames commands by '\n' on a stream connection
type tcpTransport struct {
	conn         net.Conn
	reader       *bufio.Reader
	maxSize      int
	writeTimeout time.Duration
}

func newTCPTransport(conn net.Conn, maxSize int, writeTimeout time.Duration) *tcpTransport {
	return &tcpTransport{
		conn:         conn,
		reader:       bufio.NewReaderSize(conn, maxSize),
		maxSize:      maxSize,
		writeTimeout: writeTimeout,
	}
}

func (t *tcpTransport) SetReadDeadline(d time.Time) error {
	return t.conn.SetReadDeadline(d)
}

// ReadCommand reads up to and including '\n'. A command that does not fit in
// maxSize bytes is rejected instead of truncated. A final command without a
// terminator is returned before io.EOF.
func (t *tcpTransport) ReadCommand() (string, error) {
	line, err := t.reader.ReadSlice('\n')
	switch {
	case errors.Is(err, bufio.ErrBufferFull):
		return "", fmt.Errorf("%w: command exceeds %d bytes", ErrProtocol, t.maxSize)
	case errors.Is(err, io.EOF) && len(line) > 0:
		return trimCommand(string(line)), nil
	case err != nil:
		return "", err
	}
	return trimCommand(string(line)), nil
}

func (t *tcpTransport) WriteResponse(data []byte) error {
	if t.writeTimeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	_, err := t.conn.Write(data)
	return err
}

func (t *tcpTransport) Interrupt() {
	t.conn.SetReadDeadline(time.Now())
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

func (t *tcpTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// trimCommand strips the line terminator, tolerating "\r\n"
func trimCommand(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
