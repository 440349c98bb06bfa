package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Pinger is a dependency that can be probed for liveness.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	WSConnected   bool
	LastFrameTime time.Time

	RedisEnabled   bool
	RedisConnected bool
	RedisLatencyMs float64
	LastCheckAt    time.Time
	StartedAt      time.Time

	now func() time.Time
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
		now:       time.Now,
	}
}

func (h *HealthStatus) SetWSConnected(v bool) {
	h.mu.Lock()
	h.WSConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastFrameTime(t time.Time) {
	h.mu.Lock()
	h.LastFrameTime = t
	h.mu.Unlock()
}

// CheckRedis pings p and records latency and connectivity. The first call
// marks Redis as a monitored dependency.
func (h *HealthStatus) CheckRedis(ctx context.Context, p Pinger) {
	latency, err := p.Ping(ctx)

	h.mu.Lock()
	h.RedisEnabled = true
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = h.now()
	h.mu.Unlock()
}

// StartLivenessChecker probes redis every interval until ctx is done.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, redis Pinger, interval time.Duration) {
	if redis == nil {
		return
	}
	probe := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		h.CheckRedis(probeCtx, redis)
		cancel()
	}
	go func() {
		probe()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probe()
			}
		}
	}()
}

type healthResponse struct {
	Status         string  `json:"status"`
	Uptime         string  `json:"uptime"`
	WSConnected    bool    `json:"ws_connected"`
	LastFrameTime  string  `json:"last_frame_time,omitempty"`
	FrameAge       string  `json:"frame_age,omitempty"`
	RedisEnabled   bool    `json:"redis_enabled"`
	RedisConnected bool    `json:"redis_connected"`
	RedisLatencyMs float64 `json:"redis_latency_ms"`
	LastCheckAt    string  `json:"last_check_at,omitempty"`
}

// Status returns "healthy", "degraded" (socket down or redis unreachable) or
// "unhealthy" (both).
func (h *HealthStatus) Status() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.statusLocked()
}

func (h *HealthStatus) statusLocked() string {
	redisDown := h.RedisEnabled && !h.RedisConnected
	switch {
	case !h.WSConnected && redisDown:
		return "unhealthy"
	case !h.WSConnected || redisDown:
		return "degraded"
	default:
		return "healthy"
	}
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	now := h.now()
	resp := healthResponse{
		Status:         h.statusLocked(),
		Uptime:         now.Sub(h.StartedAt).Round(time.Second).String(),
		WSConnected:    h.WSConnected,
		RedisEnabled:   h.RedisEnabled,
		RedisConnected: h.RedisConnected,
		RedisLatencyMs: h.RedisLatencyMs,
	}
	if !h.LastFrameTime.IsZero() {
		resp.LastFrameTime = h.LastFrameTime.Format(time.RFC3339)
		resp.FrameAge = now.Sub(h.LastFrameTime).Round(time.Millisecond).String()
	}
	if !h.LastCheckAt.IsZero() {
		resp.LastCheckAt = h.LastCheckAt.Format(time.RFC3339)
	}
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if resp.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(resp)
}
