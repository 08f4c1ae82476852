// Package cluster exposes the lobby to infrastructure: health checks and consul registration
package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"bomberstudent/pkg/logger"
)

// HealthPath is where the aggregated checks are served
const HealthPath = "/health"

// CheckFunc reports a problem by returning an error
type CheckFunc func() error

// HealthAggregator runs named checks and serves the combined result
type HealthAggregator struct {
	mu     sync.RWMutex
	checks map[string]CheckFunc
}

func NewHealthAggregator() *HealthAggregator {
	return &HealthAggregator{checks: make(map[string]CheckFunc)}
}

// AddCheck registers or replaces a check
func (h *HealthAggregator) AddCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Run executes every check and returns the failures by name
func (h *HealthAggregator) Run() map[string]string {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := make(map[string]CheckFunc, len(h.checks))
	for k, v := range h.checks {
		checks[k] = v
	}
	h.mu.RUnlock()

	sort.Strings(names)
	failures := make(map[string]string)
	for _, name := range names {
		if err := checks[name](); err != nil {
			failures[name] = err.Error()
		}
	}
	return failures
}

// Handler answers 200 {"status":"healthy"} or 503 with the failing checks
func (h *HealthAggregator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		failures := h.Run()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if len(failures) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(failures)
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}
}

// Serve starts the health endpoint on addr in the background. The returned
// function shuts it down.
func (h *HealthAggregator) Serve(addr string, log *logger.Logger) (net.Addr, func() error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start health endpoint: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(HealthPath, h.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Health endpoint stopped: %v", err)
		}
	}()
	log.Info("Health endpoint listening on http://%s%s", ln.Addr(), HealthPath)

	shutdown := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
	return ln.Addr(), shutdown, nil
}
