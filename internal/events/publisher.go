// Package events publishes lobby events to NATS
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"bomberstudent/internal/lobby"
	"bomberstudent/pkg/logger"
)

const DefaultSubject = "bomberstudent.game.created"

// Publisher sends every created game on a subject. A nil *Publisher is a no-op.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  *logger.Logger
}

// Connect dials url and returns a publisher for subject
func Connect(url, subject string, log *logger.Logger) (*Publisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	if log == nil {
		log = logger.Server
	}

	nc, err := nats.Connect(url,
		nats.Name("bomberstudent-lobby"),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}

	log.Info("Publishing game events to %s on %s", nc.ConnectedUrl(), subject)
	return &Publisher{conn: nc, subject: subject, logger: log}, nil
}

// GameCreated publishes g as JSON. Failures are logged, never returned.
func (p *Publisher) GameCreated(g lobby.Game) {
	if p == nil {
		return
	}
	data, err := json.Marshal(g)
	if err != nil {
		p.logger.Error("Failed to encode game %d: %v", g.ID, err)
		return
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		p.logger.Warn("Failed to publish game %d: %v", g.ID, err)
	}
}

// Close flushes pending messages and closes the connection
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.conn.Drain()
}
