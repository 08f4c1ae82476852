// Package shutdown coordinates the one-way Running -> Draining -> Stopped lifecycle
package shutdown

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"bomberstudent/pkg/logger"
)

// State is the process lifecycle state
type State int32

const (
	Running State = iota
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// DefaultGrace bounds how long draining waits for members to finish
const DefaultGrace = 5 * time.Second

// ErrDraining is returned by Register once shutdown has begun
var ErrDraining = errors.New("shutdown in progress")

// Stopper is anything the coordinator must stop: sessions and listeners
type Stopper interface {
	// Stop asks the member to finish its current work and exit. Must not block.
	Stop()
	// Done is closed once the member has exited.
	Done() <-chan struct{}
	// Close releases the member immediately.
	Close() error
}

type resource struct {
	name    string
	release func() error
}

// Coordinator is the single process-wide lifecycle owner
type Coordinator struct {
	grace  time.Duration
	logger *logger.Logger

	mu        sync.Mutex
	state     State
	nextID    int
	members   map[int]Stopper
	resources []resource

	draining chan struct{}
	stopped  chan struct{}
}

// New creates a coordinator in the Running state
func New(grace time.Duration, log *logger.Logger) *Coordinator {
	if grace <= 0 {
		grace = DefaultGrace
	}
	if log == nil {
		log = logger.Server
	}
	return &Coordinator{
		grace:    grace,
		logger:   log,
		members:  make(map[int]Stopper),
		draining: make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// State returns the current lifecycle state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Draining is closed when shutdown begins
func (c *Coordinator) Draining() <-chan struct{} { return c.draining }

// Stopped is closed when shutdown has finished
func (c *Coordinator) Stopped() <-chan struct{} { return c.stopped }

// Register adds a member to be stopped on interrupt. It fails with ErrDraining after shutdown began.
func (c *Coordinator) Register(s Stopper) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Running {
		return 0, ErrDraining
	}
	c.nextID++
	c.members[c.nextID] = s
	return c.nextID, nil
}

// Unregister removes a member that exited on its own
func (c *Coordinator) Unregister(id int) {
	c.mu.Lock()
	delete(c.members, id)
	c.mu.Unlock()
}

// Track records a process-wide resource released once at the end of shutdown.
// Resources are released in reverse order of tracking.
func (c *Coordinator) Track(name string, release func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources = append(c.resources, resource{name: name, release: release})
}

// OnInterrupt drains every member and releases tracked resources. Only the first call does
// the work; other calls block until shutdown has completed and return nil.
func (c *Coordinator) OnInterrupt() error {
	c.mu.Lock()
	if c.state != Running {
		c.mu.Unlock()
		<-c.stopped
		return nil
	}
	c.state = Draining
	members := make([]Stopper, 0, len(c.members))
	for _, m := range c.members {
		members = append(members, m)
	}
	close(c.draining)
	c.mu.Unlock()

	c.logger.Info("Draining %d members (grace %s)", len(members), c.grace)
	for _, m := range members {
		m.Stop()
	}

	deadline := time.NewTimer(c.grace)
	defer deadline.Stop()

	forced, expired := 0, false
	for _, m := range members {
		if !expired {
			select {
			case <-m.Done():
				continue
			case <-deadline.C:
				expired = true
			}
		}
		select {
		case <-m.Done():
		default:
			m.Close()
			forced++
		}
	}
	if forced > 0 {
		c.logger.Warn("Forcibly closed %d members after grace period", forced)
	}

	c.mu.Lock()
	resources := c.resources
	c.resources = nil
	c.mu.Unlock()

	var result *multierror.Error
	for i := len(resources) - 1; i >= 0; i-- {
		r := resources[i]
		if err := r.release(); err != nil {
			c.logger.Error("Failed to release %s: %v", r.name, err)
			result = multierror.Append(result, fmt.Errorf("%s: %w", r.name, err))
		}
	}

	c.mu.Lock()
	c.state = Stopped
	c.members = make(map[int]Stopper)
	c.mu.Unlock()
	close(c.stopped)

	c.logger.Info("Shutdown complete")
	return result.ErrorOrNil()
}
