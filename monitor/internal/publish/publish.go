package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/wikipulse/wikipulse/pkg/types"
)

// publishTimeout bounds one publish call made from a sink.
const publishTimeout = 2 * time.Second

// Publisher sends JSON-encoded values to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
	Close() error
}

// NATSPublisher publishes to a NATS server.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to url with automatic reconnection. Extra
// nats.Option values are appended to the defaults.
func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	defaults := []nats.Option{
		nats.Name("wikipulse-monitor"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("publish: nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("publish: nats reconnected", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("publish: connect to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

// Publish encodes v as JSON and publishes it on subject. NATS publishes are
// buffered; ctx only bounds the encode and enqueue.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("publish: marshal %s: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish: %s: %w", subject, err)
	}
	return nil
}

// Flush waits until the server has processed all buffered publishes.
func (p *NATSPublisher) Flush(ctx context.Context) error {
	return p.conn.FlushWithContext(ctx)
}

// Close drains pending publishes and closes the connection.
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("publish: drain: %w", err)
	}
	return nil
}

// NoopPublisher discards everything.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }
func (NoopPublisher) Close() error                               { return nil }

// Sink publishes display updates under a subject prefix. Publish errors are
// logged and never reach the pipeline.
type Sink struct {
	pub    Publisher
	prefix string
	now    func() time.Time
}

// NewSink returns a Sink publishing through pub under prefix.
func NewSink(pub Publisher, prefix string) *Sink {
	return &Sink{pub: pub, prefix: prefix, now: time.Now}
}

// Subject returns the full subject for one update kind.
func (s *Sink) Subject(kind string) string { return s.prefix + "." + kind }

// AppendRateSample publishes on <prefix>.rate.
func (s *Sink) AppendRateSample(value float64, at time.Time) {
	s.publish("rate", types.RateSample{Value: value, At: at})
}

// SetDisplayText publishes on <prefix>.ticker.
func (s *Sink) SetDisplayText(text string) {
	s.publish("ticker", types.TickerUpdate{Text: text, UpdatedAt: s.now()})
}

// AddAnnotation publishes on <prefix>.annotation.
func (s *Sink) AddAnnotation(a types.Annotation) {
	s.publish("annotation", a)
}

func (s *Sink) publish(kind string, v any) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.pub.Publish(ctx, s.Subject(kind), v); err != nil {
		slog.Warn("publish: dropping update", "subject", s.Subject(kind), "err", err)
	}
}
