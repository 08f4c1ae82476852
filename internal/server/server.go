// Package server implements the TCP listener and per-client sessions of the lobby
package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"bomberstudent/internal/protocol"
	"bomberstudent/internal/shutdown"
	"bomberstudent/pkg/logger"
)

const (
	DefaultMaxSessions    = 200
	DefaultMaxMessageSize = 1024
	DefaultWriteTimeout   = 10 * time.Second

	maxAcceptBackoff = time.Second
	maxRejecting     = 64
	rejectTimeout    = time.Second
)

// Options configures the listener and its sessions
type Options struct {
	Address        string
	MaxSessions    int
	MaxMessageSize int
	IdleTimeout    time.Duration
	WriteTimeout   time.Duration
}

func (o *Options) setDefaults() {
	if o.MaxSessions <= 0 {
		o.MaxSessions = DefaultMaxSessions
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = DefaultMaxMessageSize
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
}

// Server accepts connections and runs one session per client
type Server struct {
	opts        Options
	dispatcher  *protocol.Dispatcher
	coordinator *shutdown.Coordinator
	logger      *logger.Logger
	sessions    *registry

	mu       sync.Mutex
	listener net.Listener

	// rejecting bounds the goroutines writing full or draining replies
	rejecting     chan struct{}
	rejectTimeout time.Duration

	nextClientID atomic.Int64
	stopOnce     sync.Once
	stop         chan struct{}
	done         chan struct{}
	wg           sync.WaitGroup
}

// NewServer creates a server; call Listen then Serve, or Start
func NewServer(opts Options, d *protocol.Dispatcher, c *shutdown.Coordinator, log *logger.Logger) *Server {
	opts.setDefaults()
	if log == nil {
		log = logger.Server
	}
	return &Server{
		opts:          opts,
		dispatcher:    d,
		coordinator:   c,
		logger:        log,
		sessions:      newRegistry(opts.MaxSessions),
		rejecting:     make(chan struct{}, maxRejecting),
		rejectTimeout: rejectTimeout,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Listen binds the configured address
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds and serves until the coordinator stops the listener
func (s *Server) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve runs the accept loop. It returns nil once the listener is stopped.
func (s *Server) Serve() error {
	defer close(s.done)

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("server is not listening")
	}

	id, err := s.coordinator.Register(s)
	if err != nil {
		ln.Close()
		return nil
	}
	defer s.coordinator.Unregister(id)

	s.logger.Info("Server started and listening on %s", ln.Addr())

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.stopped() || errors.Is(err, net.ErrClosed) {
				s.logger.Info("Listener closed")
				return nil
			}
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else if backoff *= 2; backoff > maxAcceptBackoff {
				backoff = maxAcceptBackoff
			}
			s.logger.Error("Failed to accept connection: %v; retrying in %s", err, backoff)
			select {
			case <-time.After(backoff):
			case <-s.stop:
			}
			continue
		}
		backoff = 0

		s.handleClient(newTCPTransport(conn, s.opts.MaxMessageSize, s.opts.WriteTimeout))
	}
}

func (s *Server) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// handleClient admits a connection as a session or turns it away
func (s *Server) handleClient(t transport) {
	clientID := int(s.nextClientID.Add(1))
	sess := newSession(clientID, t, s.dispatcher, s.logger, s.opts.IdleTimeout)

	if err := s.sessions.add(sess); err != nil {
		sess.logger.Warn("Rejecting client: %v", err)
		s.reject(t, protocol.FullReply)
		return
	}

	regID, err := s.coordinator.Register(sess)
	if err != nil {
		s.sessions.remove(clientID)
		sess.logger.Info("Rejecting client: %v", err)
		s.reject(t, protocol.ShutdownReply)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sess.run()
		s.removeClient(clientID, regID)
	}()
}

// reject tells the client why it is turned away and closes it without blocking the accept loop.
// When too many rejections are in flight the connection is closed without a reply.
func (s *Server) reject(t transport, reply string) {
	select {
	case s.rejecting <- struct{}{}:
	default:
		t.Close()
		return
	}

	go func() {
		defer func() { <-s.rejecting }()
		timer := time.AfterFunc(s.rejectTimeout, func() { t.Close() })
		defer timer.Stop()
		t.WriteResponse([]byte(reply))
		t.Close()
	}()
}

func (s *Server) removeClient(clientID, regID int) {
	s.coordinator.Unregister(regID)
	s.sessions.remove(clientID)
	s.logger.Debug("Session %d released, %d active", clientID, s.sessions.count())
}

// ActiveSessions reports the number of sessions holding a slot
func (s *Server) ActiveSessions() int {
	return s.sessions.count()
}

// Stop closes the listening socket, unblocking Accept
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.mu.Lock()
		if s.listener != nil {
			s.listener.Close()
		}
		s.mu.Unlock()
	})
}

// Done is closed when Serve has returned
func (s *Server) Done() <-chan struct{} { return s.done }

// Close is Stop; the listener has nothing further to release
func (s *Server) Close() error {
	s.Stop()
	return nil
}

// Wait blocks until every session goroutine has exited
func (s *Server) Wait() {
	s.wg.Wait()
}
