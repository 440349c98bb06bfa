// Package scheduler runs the periodic technical analysis of the watch list.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"tickerwatch/internal/analysis"
	"tickerwatch/internal/markethours"
	"tickerwatch/internal/model"
)

// DefaultSpec runs every 15 minutes, on the minute (seconds field first).
const DefaultSpec = "0 */15 * * * *"

// BatchAnalyzer analyzes several symbols at once.
type BatchAnalyzer interface {
	AnalyzeMany(ctx context.Context, reqs []analysis.Request) ([]analysis.Result, []error)
}

// Snapshots returns the latest snapshot of a symbol.
type Snapshots interface {
	Latest(symbol string) (model.TickerSnapshot, bool)
}

// Scheduler analyzes every watched symbol that has a latest snapshot, on a
// cron schedule evaluated in New York time, on trading days only.
type Scheduler struct {
	cron      *cron.Cron
	analyzer  BatchAnalyzer
	snapshots Snapshots
	watch     func() []string
	log       *slog.Logger

	isTradingDay func(time.Time) bool
	now          func() time.Time

	// mu serializes runs so a manual trigger never overlaps a scheduled one.
	mu sync.Mutex
}

// New creates a scheduler. watch returns the current watch list.
func New(analyzer BatchAnalyzer, snapshots Snapshots, watch func() []string, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "scheduler")
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(markethours.NewYork),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		analyzer:     analyzer,
		snapshots:    snapshots,
		watch:        watch,
		log:          log,
		isTradingDay: markethours.IsTradingDay,
		now:          time.Now,
	}
}

// Register adds the analysis job on spec. It does not start the cron.
func (s *Scheduler) Register(ctx context.Context, spec string) error {
	if spec == "" {
		spec = DefaultSpec
	}
	if _, err := s.cron.AddFunc(spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("register analysis job %q: %w", spec, err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// tick is the cron job: skips non-trading days.
func (s *Scheduler) tick(ctx context.Context) {
	if now := s.now(); !s.isTradingDay(now) {
		s.log.Debug("not a trading day, skipping analysis", "date", now.In(markethours.NewYork).Format("2006-01-02"))
		return
	}
	s.RunNow(ctx)
}

// RunNow analyzes the watch list immediately, regardless of the calendar.
// Symbols without a latest snapshot are skipped.
func (s *Scheduler) RunNow(ctx context.Context) []analysis.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqs := s.requests()
	if len(reqs) == 0 {
		s.log.Info("no watched symbol has a snapshot yet, nothing to analyze")
		return nil
	}

	start := time.Now()
	results, errs := s.analyzer.AnalyzeMany(ctx, reqs)

	var degraded, met, sent int
	for i, r := range results {
		if errs[i] != nil {
			degraded++
		}
		if r.CriteriaMet {
			met++
		}
		if r.AlertSent {
			sent++
		}
	}
	s.log.Info("scheduled analysis complete",
		"symbols", len(reqs),
		"degraded", degraded,
		"criteria_met", met,
		"alerts_sent", sent,
		"elapsed", time.Since(start).Round(time.Millisecond).String())
	return results
}

func (s *Scheduler) requests() []analysis.Request {
	var reqs []analysis.Request
	for _, sym := range s.watch() {
		snap, ok := s.snapshots.Latest(sym)
		if !ok {
			continue
		}
		reqs = append(reqs, analysis.Request{Symbol: sym, Price: snap.Price, Change: snap.ChangePercent})
	}
	return reqs
}
