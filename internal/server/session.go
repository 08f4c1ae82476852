package server

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"bomberstudent/internal/protocol"
	"bomberstudent/pkg/logger"
)

// SessionState is the position of a session in its read/dispatch cycle
type SessionState int32

const (
	StateReading SessionState = iota
	StateDispatching
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateReading:
		return "reading"
	case StateDispatching:
		return "dispatching"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session owns one client connection from accept to close
type Session struct {
	ID  int
	Tag uuid.UUID

	transport   transport
	dispatcher  *protocol.Dispatcher
	logger      *logger.Logger
	idleTimeout time.Duration

	state     atomic.Int32
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newSession(id int, t transport, d *protocol.Dispatcher, log *logger.Logger, idleTimeout time.Duration) *Session {
	tag := uuid.New()
	return &Session{
		ID:          id,
		Tag:         tag,
		transport:   t,
		dispatcher:  d,
		logger:      log.With("session", id, "tag", tag.String(), "remote", addrString(t.RemoteAddr())),
		idleTimeout: idleTimeout,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// State returns the current session state
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Stop asks the session to exit after the command in flight, interrupting a blocked read
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.transport.Interrupt()
	})
}

// Done is closed once the session has released its connection
func (s *Session) Done() <-chan struct{} { return s.done }

// Close releases the connection. Safe to call any number of times.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		s.closeErr = s.transport.Close()
	})
	return s.closeErr
}

func (s *Session) stopping() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// run is the read -> dispatch -> write loop
func (s *Session) run() {
	defer close(s.done)
	defer s.Close()

	s.logger.Info("Client connected")
	for {
		s.state.Store(int32(StateReading))

		var deadline time.Time
		if s.idleTimeout > 0 {
			deadline = time.Now().Add(s.idleTimeout)
		}
		s.transport.SetReadDeadline(deadline)
		// checked after arming the deadline so a concurrent Stop's interrupt always wins
		if s.stopping() {
			s.state.Store(int32(StateClosing))
			s.logger.Debug("Session stopped before read")
			return
		}

		line, err := s.transport.ReadCommand()
		if err != nil {
			s.state.Store(int32(StateClosing))
			s.logReadError(err)
			return
		}
		if line == "" {
			continue
		}

		s.state.Store(int32(StateDispatching))
		resp := s.dispatcher.Dispatch(line)
		if err := s.transport.WriteResponse(resp); err != nil {
			s.state.Store(int32(StateClosing))
			s.logger.Error("Failed to write response: %v", err)
			return
		}
	}
}

func (s *Session) logReadError(err error) {
	var ne net.Error
	switch {
	case s.stopping():
		s.logger.Info("Session closed by shutdown")
	case errors.Is(err, io.EOF):
		s.logger.Info("Client disconnected")
	case errors.Is(err, ErrProtocol):
		s.logger.Warn("Closing session: %v", err)
	case errors.As(err, &ne) && ne.Timeout():
		s.logger.Info("Closing idle session")
	default:
		s.logger.Error("Read failed: %v", err)
	}
}

func addrString(a net.Addr) string {
	if a == nil {
		return "unknown"
	}
	return a.String()
}
