package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NewNATS constructs a thin NATS-based publisher on subject.
func NewNATS(log *slog.Logger, nc *nats.Conn, subject string) Publisher {
	return &natsPublisher{log: log, nc: nc, subject: subject}
}

type natsPublisher struct {
	log     *slog.Logger
	nc      *nats.Conn
	subject string
}

func (p *natsPublisher) Publish(_ context.Context, ev Interaction) error {
	if ev.ID == uuid.Nil {
		return errors.New("interaction id required")
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(p.subject, body); err != nil {
		return err
	}
	p.log.Debug("interaction event published", "id", ev.ID, "subject", p.subject)
	return nil
}

func (p *natsPublisher) Close() error {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
		return err
	}
	return nil
}
