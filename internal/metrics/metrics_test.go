package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.FramesTotal.WithLabelValues("PRICING").Inc()
	m.FramesTotal.WithLabelValues("PRICING").Inc()
	m.ObserveAnalysis("synthetic", 150*time.Millisecond)
	m.SetChannelSaturation("redis", 25, 100)
	m.SetChannelSaturation("none", 1, 0)

	if got := testutil.ToFloat64(m.FramesTotal.WithLabelValues("PRICING")); got != 2 {
		t.Errorf("frames_total{PRICING} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("synthetic")); got != 1 {
		t.Errorf("analyses_total{synthetic} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ChannelSaturationPct.WithLabelValues("redis")); got != 25 {
		t.Errorf("saturation{redis} = %v, want 25", got)
	}
	if n := testutil.CollectAndCount(m.ChannelSaturationPct); n != 1 {
		t.Errorf("zero-capacity channel should not be recorded, got %d series", n)
	}

	// A second registry must accept a fresh set without panicking.
	NewMetrics(prometheus.NewRegistry())
}

func TestSetMarketPhase(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	all := []string{"PRE_MARKET", "REGULAR_MARKET", "POST_MARKET", "EXTENDED_HOURS_MARKET"}
	m.SetMarketPhase("REGULAR_MARKET", all)

	for _, p := range all {
		want := 0.0
		if p == "REGULAR_MARKET" {
			want = 1
		}
		if got := testutil.ToFloat64(m.MarketPhase.WithLabelValues(p)); got != want {
			t.Errorf("market_phase{%s} = %v, want %v", p, got, want)
		}
	}
}

type fakePinger struct {
	latency time.Duration
	err     error
}

func (f fakePinger) Ping(context.Context) (time.Duration, error) { return f.latency, f.err }

func TestHealthStatus_Status(t *testing.T) {
	tests := []struct {
		name  string
		ws    bool
		redis *fakePinger
		want  string
	}{
		{"ws only", true, nil, "healthy"},
		{"ws down, redis unmonitored", false, nil, "degraded"},
		{"all up", true, &fakePinger{latency: time.Millisecond}, "healthy"},
		{"redis down", true, &fakePinger{err: errors.New("refused")}, "degraded"},
		{"both down", false, &fakePinger{err: errors.New("refused")}, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthStatus()
			h.SetWSConnected(tt.ws)
			if tt.redis != nil {
				h.CheckRedis(context.Background(), *tt.redis)
			}
			if got := h.Status(); got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHealthStatus_ServeHTTP(t *testing.T) {
	h := NewHealthStatus()
	h.SetWSConnected(true)
	h.SetLastFrameTime(time.Now().Add(-2 * time.Second))
	h.CheckRedis(context.Background(), fakePinger{latency: 1500 * time.Microsecond})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "healthy" || !body.WSConnected || body.RedisLatencyMs != 1.5 || body.FrameAge == "" {
		t.Fatalf("unexpected body %+v", body)
	}

	h.SetWSConnected(false)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.WSReconnects.Inc()

	srv := NewServer(":0", NewHealthStatus(), reg)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tickerwatch_ws_reconnects_total 1") {
		t.Fatalf("reconnect counter missing from exposition:\n%s", rec.Body.String())
	}
}
