// Package redis keeps the latest ticker snapshot per symbol in Redis and
// publishes every update on a per-symbol pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"tickerwatch/internal/model"
)

const defaultLatestTTL = 30 * time.Minute

// Config configures the snapshot writer.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int

	TTL          time.Duration // latest-key expiry, default 30m
	MaxFailures  int           // consecutive failures before the breaker opens
	ResetTimeout time.Duration // open duration before a probe
}

// LatestKey is the key holding the latest snapshot JSON for id.
func LatestKey(id string) string { return "ticker:latest:" + id }

// Channel is the pub/sub channel snapshots for id are published on.
func Channel(id string) string { return "pub:ticker:" + id }

// SnapshotWriter writes snapshots to Redis through a circuit breaker.
type SnapshotWriter struct {
	client *goredis.Client
	cb     *CircuitBreaker
	ttl    time.Duration
	log    *slog.Logger

	// OnError, if set, is called for every failed or rejected write.
	OnError func(err error)
}

// New connects to Redis, pings it and returns a writer.
func New(cfg Config, log *slog.Logger) (*SnapshotWriter, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	w := NewWithClient(client, cfg, log)
	w.log.Info("connected", "addr", cfg.Addr)
	return w, nil
}

// NewWithClient wraps an existing client without pinging it.
func NewWithClient(client *goredis.Client, cfg Config, log *slog.Logger) *SnapshotWriter {
	if log == nil {
		log = slog.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultLatestTTL
	}
	log = log.With("component", "redis")

	cb := NewCircuitBreaker(cfg.MaxFailures, cfg.ResetTimeout)
	cb.OnStateChange = func(from, to State) {
		log.Warn("circuit breaker state change", "from", from.String(), "to", to.String())
	}
	return &SnapshotWriter{client: client, cb: cb, ttl: cfg.TTL, log: log}
}

// Breaker exposes the writer's circuit breaker for metrics wiring.
func (w *SnapshotWriter) Breaker() *CircuitBreaker { return w.cb }

// Write stores s under its latest key and publishes it, in one pipeline.
// It returns ErrCircuitOpen without touching Redis while the breaker is open.
func (w *SnapshotWriter) Write(ctx context.Context, s model.TickerSnapshot) error {
	if s.ID == "" {
		return errors.New("redis: snapshot without id")
	}
	data, err := s.JSON()
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", s.ID, err)
	}

	err = w.cb.Execute(func() error {
		pipe := w.client.Pipeline()
		pipe.Set(ctx, LatestKey(s.ID), data, w.ttl)
		pipe.Publish(ctx, Channel(s.ID), data)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		if w.OnError != nil {
			w.OnError(err)
		}
		return fmt.Errorf("redis write %s: %w", s.ID, err)
	}
	return nil
}

// Latest reads the stored snapshot for id. It returns goredis.Nil wrapped
// when the key is missing or expired.
func (w *SnapshotWriter) Latest(ctx context.Context, id string) (model.TickerSnapshot, error) {
	var s model.TickerSnapshot
	data, err := w.client.Get(ctx, LatestKey(id)).Bytes()
	if err != nil {
		return s, fmt.Errorf("redis get %s: %w", id, err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("redis decode %s: %w", id, err)
	}
	return s, nil
}

// Run writes every snapshot received on ch until ctx is cancelled or ch is
// closed. Failures are logged and never stop the loop; while the breaker is
// open only the first rejection of each outage is logged.
func (w *SnapshotWriter) Run(ctx context.Context, ch <-chan model.TickerSnapshot) {
	rejected := false
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-ch:
			if !ok {
				return
			}
			err := w.Write(ctx, s)
			switch {
			case err == nil:
				rejected = false
			case errors.Is(err, ErrCircuitOpen):
				if !rejected {
					w.log.Warn("dropping snapshots while circuit is open", "symbol", s.ID)
				}
				rejected = true
			default:
				w.log.Error("write failed", "symbol", s.ID, "error", err)
			}
		}
	}
}

// Ping measures a round trip to Redis.
func (w *SnapshotWriter) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	err := w.client.Ping(ctx).Err()
	return time.Since(start), err
}

// Close closes the Redis client.
func (w *SnapshotWriter) Close() error {
	return w.client.Close()
}
