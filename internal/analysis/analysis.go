// Package analysis runs the on-demand technical analysis of one or more
// symbols: history fetch, indicators (or the synthetic fallback), signals,
// criteria and the optional alert.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tickerwatch/internal/history"
	"tickerwatch/internal/indicator"
	"tickerwatch/internal/logger"
	"tickerwatch/internal/model"
	"tickerwatch/internal/notification"
	"tickerwatch/internal/signal"
)

// ErrSyntheticIndicators marks a result whose indicators were randomized
// because no price history could be fetched.
var ErrSyntheticIndicators = errors.New("analysis: indicators are synthetic")

// DefaultDays is the history window fetched per analysis.
const DefaultDays = 60

// Analysis modes reported to OnAnalysis.
const (
	ModeComputed  = "computed"
	ModeSynthetic = "synthetic"
)

// Alert outcomes reported to OnAlert.
const (
	AlertSent   = "sent"
	AlertFailed = "failed"
)

// Request is one symbol to analyze.
type Request struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Change float64 `json:"change"`
}

// Result is the outcome of one analysis.
type Result struct {
	Symbol         string                  `json:"symbol"`
	Price          float64                 `json:"price"`
	Change         float64                 `json:"change"`
	Indicators     model.IndicatorSnapshot `json:"indicators"`
	Signals        []string                `json:"signals"`
	CriteriaMet    bool                    `json:"criteria_met"`
	MetCriteria    []string                `json:"met_criteria"`
	Recommendation signal.Recommendation   `json:"recommendation"`
	Degraded       bool                    `json:"degraded"`
	AlertSent      bool                    `json:"alert_sent"`
	AlertError     string                  `json:"alert_error,omitempty"`
}

// Config configures a Service.
type Config struct {
	Days     int
	Criteria model.AlertCriteria
}

// Service wires a history provider, the indicator engine and an optional
// notifier.
type Service struct {
	cfg      Config
	provider history.Provider
	engine   *indicator.Engine
	notifier notification.Notifier
	log      *slog.Logger

	// OnAnalysis, if set, is called after every analysis with its mode
	// and duration.
	OnAnalysis func(mode string, d time.Duration)
	// OnAlert, if set, is called with the outcome of every alert attempt.
	OnAlert func(result string)
}

// New creates a Service. notifier may be nil, in which case no alerts are
// sent.
func New(cfg Config, provider history.Provider, engine *indicator.Engine, notifier notification.Notifier, log *slog.Logger) *Service {
	if cfg.Days <= 0 {
		cfg.Days = DefaultDays
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		provider: provider,
		engine:   engine,
		notifier: notifier,
		log:      log.With("component", "analysis"),
	}
}

// Analyze computes indicators for symbol at price. When history is
// unavailable or empty the result is built from synthetic indicators, marked
// Degraded, and returned together with an error wrapping
// ErrSyntheticIndicators.
func (s *Service) Analyze(ctx context.Context, symbol string, price, change float64) (Result, error) {
	start := time.Now()
	log := s.log.With(logger.LogWithTrace(ctx)...)

	var (
		ind     model.IndicatorSnapshot
		degrade error
	)
	bars, err := s.fetch(ctx, symbol)
	if err != nil {
		log.Warn("history unavailable, using synthetic indicators",
			"symbol", symbol, "error", err)
		ind = s.engine.Synthetic(symbol, price)
		degrade = fmt.Errorf("%w: %s: %w", ErrSyntheticIndicators, symbol, err)
	} else {
		ind = s.engine.Compute(symbol, price, bars)
	}

	res := Result{
		Symbol:         symbol,
		Price:          price,
		Change:         change,
		Indicators:     ind,
		Signals:        ind.Signals,
		CriteriaMet:    signal.MeetsCriteria(ind, s.cfg.Criteria),
		Recommendation: signal.Recommend(ind.Signals),
		Degraded:       ind.Synthetic,
	}
	if res.CriteriaMet {
		res.MetCriteria = signal.MetCriteria(ind, s.cfg.Criteria)
		s.alert(ctx, log, &res)
	}

	mode := ModeComputed
	if res.Degraded {
		mode = ModeSynthetic
	}
	if s.OnAnalysis != nil {
		s.OnAnalysis(mode, time.Since(start))
	}
	log.Debug("analysis complete",
		"symbol", symbol,
		"mode", mode,
		"bars", ind.Bars,
		"signals", len(res.Signals),
		"criteria_met", res.CriteriaMet)
	return res, degrade
}

func (s *Service) fetch(ctx context.Context, symbol string) ([]model.HistoricalBar, error) {
	if s.provider == nil {
		return nil, history.ErrNoBars
	}
	bars, err := s.provider.Bars(ctx, symbol, s.cfg.Days)
	if err == nil && len(bars) == 0 {
		err = history.ErrNoBars
	}
	return bars, err
}

// alert sends at most one notification for res. Failures are recorded on
// the result, never returned.
func (s *Service) alert(ctx context.Context, log *slog.Logger, res *Result) {
	if s.notifier == nil {
		return
	}
	a := notification.AlertFromAnalysis(res.Symbol, res.Price, res.Change, res.Indicators, res.MetCriteria)
	if err := s.notifier.Send(ctx, a); err != nil {
		log.Error("alert delivery failed", "symbol", res.Symbol, "error", err)
		res.AlertError = err.Error()
		if s.OnAlert != nil {
			s.OnAlert(AlertFailed)
		}
		return
	}
	res.AlertSent = true
	if s.OnAlert != nil {
		s.OnAlert(AlertSent)
	}
}

// AnalyzeMany analyzes every request concurrently and returns the results in
// request order. errs[i] is the error Analyze returned for reqs[i].
func (s *Service) AnalyzeMany(ctx context.Context, reqs []Request) ([]Result, []error) {
	results := make([]Result, len(reqs))
	errs := make([]error, len(reqs))

	var wg sync.WaitGroup
	for i, r := range reqs {
		wg.Add(1)
		go func(i int, r Request) {
			defer wg.Done()
			rctx := ctx
			if logger.TraceID(ctx) == "" {
				rctx = logger.WithTraceID(ctx, logger.GenerateTraceID(r.Symbol, time.Now()))
			}
			results[i], errs[i] = s.Analyze(rctx, r.Symbol, r.Price, r.Change)
		}(i, r)
	}
	wg.Wait()
	return results, errs
}
