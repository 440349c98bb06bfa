package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"tickerwatch/internal/model"
)

// ErrBreakerOpen is returned while the provider's circuit breaker is open.
var ErrBreakerOpen = errors.New("history: provider circuit breaker open")

// BreakerConfig configures the guard around a provider.
type BreakerConfig struct {
	MaxRequests uint32        // half-open probes
	Interval    time.Duration // closed-state count reset
	Timeout     time.Duration // open duration before half-open
}

// DefaultBreakerConfig returns 3 probes, a 60s interval and a 30s timeout.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxRequests: 3, Interval: 60 * time.Second, Timeout: 30 * time.Second}
}

// Guarded wraps a Provider with a circuit breaker. Empty answers count as
// failures so a provider that silently returns nothing also trips it.
type Guarded struct {
	inner Provider
	cb    *gobreaker.CircuitBreaker[[]model.HistoricalBar]
}

// NewGuarded wraps p. onState, if non-nil, is called on breaker transitions
// with the new state (0 closed, 1 half-open, 2 open).
func NewGuarded(p Provider, cfg BreakerConfig, log *slog.Logger, onState func(state int)) *Guarded {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "history", "provider", p.Name())

	settings := gobreaker.Settings{
		Name:        "history-" + p.Name(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip if failure ratio exceeds 50% with at least 5 requests
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
			if onState != nil {
				onState(stateToInt(to))
			}
		},
	}
	return &Guarded{
		inner: p,
		cb:    gobreaker.NewCircuitBreaker[[]model.HistoricalBar](settings),
	}
}

func (g *Guarded) Name() string { return g.inner.Name() }

func (g *Guarded) Bars(ctx context.Context, symbol string, days int) ([]model.HistoricalBar, error) {
	bars, err := g.cb.Execute(func() ([]model.HistoricalBar, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		bars, err := g.inner.Bars(ctx, symbol, days)
		if err == nil && len(bars) == 0 {
			err = ErrNoBars
		}
		return bars, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s", ErrBreakerOpen, g.inner.Name())
	}
	return bars, err
}

// State returns the breaker state (0 closed, 1 half-open, 2 open).
func (g *Guarded) State() int {
	return stateToInt(g.cb.State())
}

func stateToInt(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
