package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Sink delivers a dispatched event to downstream consumers.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// RedisSink publishes events on Redis pub/sub channels named after the topic.
type RedisSink struct {
	client *redis.Client
}

// NewRedisSink constructs a Redis-backed sink.
func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

// Publish sends the event payload on the topic channel.
func (s *RedisSink) Publish(ctx context.Context, event Event) error {
	return s.client.Publish(ctx, event.Topic, []byte(event.Payload)).Err()
}

// LoggerSink writes events to the structured logger. Used in development mode
// when no Redis is configured.
type LoggerSink struct {
	logger *slog.Logger
}

// NewLoggerSink constructs a logging sink.
func NewLoggerSink(logger *slog.Logger) *LoggerSink {
	return &LoggerSink{logger: logger}
}

// Publish logs the event.
func (s *LoggerSink) Publish(_ context.Context, event Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	s.logger.Info("domain event", "topic", event.Topic, "payload", string(event.Payload))
	return nil
}

// Relay polls the outbox and forwards undispatched events to the sink.
type Relay struct {
	store    Store
	sink     Sink
	logger   *slog.Logger
	interval time.Duration
	batch    int
	done     chan struct{}
}

// NewRelay builds a relay polling at the given interval.
func NewRelay(store Store, sink Sink, logger *slog.Logger, interval time.Duration) *Relay {
	if interval <= 0 {
		interval = time.Second
	}
	return &Relay{
		store:    store,
		sink:     sink,
		logger:   logger,
		interval: interval,
		batch:    100,
		done:     make(chan struct{}),
	}
}

// Start runs the relay loop until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) {
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.Drain(ctx); err != nil && ctx.Err() == nil {
					r.logger.Error("outbox drain failed", "error", err)
				}
			}
		}
	}()
}

// Wait blocks until the relay loop has exited.
func (r *Relay) Wait() {
	<-r.done
}

// Drain dispatches every pending event once. Events that fail to publish stay
// pending and are retried on the next tick.
func (r *Relay) Drain(ctx context.Context) error {
	events, err := r.store.Pending(ctx, r.batch)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	delivered := make([]uuid.UUID, 0, len(events))
	for _, ev := range events {
		if err := r.sink.Publish(ctx, ev); err != nil {
			r.logger.Warn("event publish failed", "topic", ev.Topic, "event_id", ev.ID, "error", err)
			break
		}
		delivered = append(delivered, ev.ID)
	}

	return r.store.MarkDispatched(ctx, delivered)
}
