// Package events publishes todo change events to NATS.
package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fluxorio/todo-service/pkg/core"
	"github.com/fluxorio/todo-service/pkg/todo"
)

// DefaultPrefix is prepended to event subjects when none is configured
const DefaultPrefix = "todos"

// Event is the JSON payload of every published message
type Event struct {
	Type      todo.ChangeKind `json:"type"`
	Todo      todo.Todo       `json:"todo"`
	Timestamp time.Time       `json:"timestamp"`
}

// NATSConfig configures the NATS publisher
type NATSConfig struct {
	// URL is the NATS server URL, e.g. "nats://127.0.0.1:4222"
	URL string

	// Prefix is prepended to all subjects. Default: "todos"
	Prefix string

	// Name is an optional NATS connection name
	Name string

	// FlushTimeout bounds the drain on Close
	FlushTimeout time.Duration
}

// Subject returns the subject for kind: <prefix>.todo.<kind>
func Subject(prefix string, kind todo.ChangeKind) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s.todo.%s", prefix, kind)
}

// NATSPublisher sends todo change events to NATS. It implements
// todo.Notifier; publish failures are logged and never reach the caller.
type NATSPublisher struct {
	nc           *nats.Conn
	prefix       string
	flushTimeout time.Duration
	now          func() time.Time
	logger       core.Logger
}

// NewNATSPublisher connects to cfg.URL
func NewNATSPublisher(cfg NATSConfig, logger core.Logger) (*NATSPublisher, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	flushTimeout := cfg.FlushTimeout
	if flushTimeout <= 0 {
		flushTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = core.NopLogger()
	}

	nc, err := nats.Connect(url, func(o *nats.Options) error {
		if cfg.Name != "" {
			o.Name = cfg.Name
		}
		o.DrainTimeout = flushTimeout
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}

	return &NATSPublisher{
		nc:           nc,
		prefix:       prefix,
		flushTimeout: flushTimeout,
		now:          func() time.Time { return time.Now().UTC() },
		logger:       logger,
	}, nil
}

// Publish sends one event. The request id carried by ctx, if any, is
// forwarded in the X-Request-ID header.
func (p *NATSPublisher) Publish(ctx context.Context, kind todo.ChangeKind, t todo.Todo) error {
	data, err := core.JSONEncode(Event{Type: kind, Todo: t, Timestamp: p.now()})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", kind, err)
	}

	msg := &nats.Msg{
		Subject: Subject(p.prefix, kind),
		Data:    data,
		Header:  nats.Header{},
	}
	if rid := core.GetRequestID(ctx); rid != "" {
		msg.Header.Set(core.RequestIDHeader, rid)
	}
	return p.nc.PublishMsg(msg)
}

// Notify implements todo.Notifier
func (p *NATSPublisher) Notify(ctx context.Context, kind todo.ChangeKind, t todo.Todo) {
	if err := p.Publish(ctx, kind, t); err != nil {
		p.logger.WithFields(map[string]interface{}{
			"request_id": core.GetRequestID(ctx),
			"todo_id":    t.ID,
			"event":      string(kind),
		}).Warnf("publish event: %v", err)
	}
}

// Close drains pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	if p.nc == nil || p.nc.IsClosed() {
		return nil
	}
	if err := p.nc.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		p.nc.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}

	deadline := time.Now().Add(p.flushTimeout)
	for !p.nc.IsClosed() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	p.nc.Close()
	return nil
}
