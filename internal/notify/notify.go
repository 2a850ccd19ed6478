// Package notify publishes run progress to NATS subscribers.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/logfields"
)

// Message types carried in Message.Type.
const (
	TypeStarted   = "started"
	TypeProgress  = "progress"
	TypeCompleted = "completed"
	TypeFailed    = "failed"
)

// Message is the JSON document published for every run update.
type Message struct {
	RunID     string    `json:"run_id"`
	Type      string    `json:"type"`
	Keyword   string    `json:"keyword,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Current   int       `json:"current"`
	Total     int       `json:"total"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// conn is the subset of *nats.Conn the publisher needs.
type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// Publisher sends Messages to one subject.
type Publisher struct {
	conn    conn
	subject string
	logger  *slog.Logger
}

// Connect dials the NATS server at url.
func Connect(url, subject string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("pillarsite"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", logfields.URL(url), logfields.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to connect to NATS").
			WithContext("url", url).
			Build()
	}
	logger.Info("NATS progress publisher connected", logfields.URL(url), slog.String("subject", subject))
	return newPublisher(nc, subject, logger), nil
}

func newPublisher(c conn, subject string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: c, subject: subject, logger: logger}
}

// Publish marshals msg and sends it. Terminal messages are flushed so they
// are not lost when the process exits right after the run.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal progress message").Build()
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return errors.WrapError(err, errors.CategoryNetwork, "failed to publish progress message").
			WithContext("subject", p.subject).
			Build()
	}
	if msg.Type == TypeCompleted || msg.Type == TypeFailed {
		flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := p.conn.FlushWithContext(flushCtx); err != nil {
			return errors.WrapError(err, errors.CategoryNetwork, "failed to flush NATS connection").Build()
		}
	}
	p.logger.Debug("Published progress message",
		logfields.RunID(msg.RunID), slog.String("type", msg.Type), logfields.Current(msg.Current))
	return nil
}

// Subject returns the subject messages are published on.
func (p *Publisher) Subject() string { return p.subject }

// Close closes the underlying connection.
func (p *Publisher) Close() error {
	p.conn.Close()
	return nil
}
