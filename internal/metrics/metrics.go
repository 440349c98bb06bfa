// Package metrics exposes the Prometheus metrics and the /healthz status of
// the streamer.
package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the streamer.
type Metrics struct {
	// Stream connector
	FramesTotal  *prometheus.CounterVec // labels: tag
	WSReconnects prometheus.Counter
	WSConnected  prometheus.Gauge

	// Distributor
	SnapshotsPublished   prometheus.Counter
	ObserverPanics       prometheus.Counter
	FanoutDropsTotal     *prometheus.CounterVec // labels: subscriber
	ChannelSaturationPct *prometheus.GaugeVec   // labels: channel_name

	// Analysis
	AnalysisDur   prometheus.Histogram
	AnalysesTotal *prometheus.CounterVec // labels: mode
	AlertsTotal   *prometheus.CounterVec // labels: result
	HistoryState  prometheus.Gauge       // 0=closed, 1=half-open, 2=open

	// Redis snapshot store
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisWriteErrors         prometheus.Counter

	// Market session
	MarketPhase *prometheus.GaugeVec // labels: phase

	// Live websocket push
	LiveClients prometheus.Gauge
	LiveLag     prometheus.Histogram
}

// NewMetrics creates all metrics and registers them with reg. A nil reg
// registers with the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickerwatch_frames_total",
			Help: "Stream frames and connection events by classification tag",
		}, []string{"tag"}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickerwatch_ws_reconnects_total",
			Help: "Total WebSocket reconnection attempts",
		}),
		WSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickerwatch_ws_connected",
			Help: "1 while the stream socket is open",
		}),

		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickerwatch_snapshots_published_total",
			Help: "Ticker snapshots published to the distributor",
		}),
		ObserverPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickerwatch_observer_panics_total",
			Help: "Snapshot observers that panicked and were recovered",
		}),
		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickerwatch_fanout_drops_total",
			Help: "Snapshots dropped per channel subscriber because its buffer was full",
		}, []string{"subscriber"}),
		ChannelSaturationPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tickerwatch_channel_saturation_pct",
			Help: "Channel fill percentage (len/cap * 100)",
		}, []string{"channel_name"}),

		AnalysisDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tickerwatch_analysis_duration_seconds",
			Help:    "Technical analysis latency including the history fetch",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickerwatch_analyses_total",
			Help: "Analyses by mode (computed or synthetic)",
		}, []string{"mode"}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tickerwatch_alerts_total",
			Help: "Alert deliveries by result",
		}, []string{"result"}),
		HistoryState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickerwatch_history_breaker_state",
			Help: "History provider circuit breaker state (0=closed, 1=half-open, 2=open)",
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickerwatch_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickerwatch_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickerwatch_redis_write_errors_total",
			Help: "Snapshot writes that failed or were rejected by the breaker",
		}),

		MarketPhase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tickerwatch_market_phase",
			Help: "1 for the current US equities session phase, 0 for the others",
		}, []string{"phase"}),

		LiveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tickerwatch_live_clients",
			Help: "Connected live snapshot websocket clients",
		}),
		LiveLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tickerwatch_live_push_lag_seconds",
			Help:    "Time from frame receipt to live push",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
		}),
	}

	reg.MustRegister(
		m.FramesTotal,
		m.WSReconnects,
		m.WSConnected,
		m.SnapshotsPublished,
		m.ObserverPanics,
		m.FanoutDropsTotal,
		m.ChannelSaturationPct,
		m.AnalysisDur,
		m.AnalysesTotal,
		m.AlertsTotal,
		m.HistoryState,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisWriteErrors,
		m.MarketPhase,
		m.LiveClients,
		m.LiveLag,
	)

	return m
}

// ObserveAnalysis records one analysis. Its signature matches
// analysis.Service.OnAnalysis.
func (m *Metrics) ObserveAnalysis(mode string, d time.Duration) {
	m.AnalysesTotal.WithLabelValues(mode).Inc()
	m.AnalysisDur.Observe(d.Seconds())
}

// SetChannelSaturation records how full a buffered channel is.
func (m *Metrics) SetChannelSaturation(name string, length, capacity int) {
	if capacity <= 0 {
		return
	}
	m.ChannelSaturationPct.WithLabelValues(name).Set(float64(length) / float64(capacity) * 100)
}

// SetMarketPhase marks phase as current among all.
func (m *Metrics) SetMarketPhase(phase string, all []string) {
	for _, p := range all {
		v := 0.0
		if p == phase {
			v = 1
		}
		m.MarketPhase.WithLabelValues(p).Set(v)
	}
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server. A nil gatherer serves the
// default Prometheus registry.
func NewServer(addr string, health *HealthStatus, gatherer prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	if gatherer == nil {
		mux.Handle("/metrics", promhttp.Handler())
	} else {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	mux.Handle("/healthz", health)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the server's mux.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
