package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"tickerwatch/internal/analysis"
	"tickerwatch/internal/markethours"
	"tickerwatch/internal/model"
)

// Snapshots is the read side of the snapshot distributor.
type Snapshots interface {
	Latest(symbol string) (model.TickerSnapshot, bool)
	All() []model.TickerSnapshot
}

// Stream is the control surface of the stream connector.
type Stream interface {
	Frames() []model.FrameRecord
	ClearFrames()
	SetEndpoint(ctx context.Context, url string) error
	Endpoint() string
	Subscribe(symbols []string) error
	Symbols() []string
	FramesEvicted() uint64
	Connected() bool
	Session() string
	SinceLastFrame() time.Duration
}

// SnapshotStore is a secondary source of latest snapshots, consulted when
// the distributor has none (for example right after a restart).
type SnapshotStore interface {
	Latest(ctx context.Context, id string) (model.TickerSnapshot, error)
}

// Analyzer runs one technical analysis.
type Analyzer interface {
	Analyze(ctx context.Context, symbol string, price, change float64) (analysis.Result, error)
}

// Handler holds the dependencies of the HTTP handlers.
type Handler struct {
	snapshots Snapshots
	stream    Stream
	analyzer  Analyzer
	store     SnapshotStore
	log       *slog.Logger
	now       func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(snapshots Snapshots, stream Stream, analyzer Analyzer, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		snapshots: snapshots,
		stream:    stream,
		analyzer:  analyzer,
		log:       log.With("component", "api"),
		now:       time.Now,
	}
}

// WithStore sets the fallback snapshot store and returns h.
func (h *Handler) WithStore(store SnapshotStore) *Handler {
	h.store = store
	return h
}

// latest looks symbol up in the distributor, then in the store.
func (h *Handler) latest(ctx context.Context, symbol string) (model.TickerSnapshot, bool) {
	if s, ok := h.snapshots.Latest(symbol); ok {
		return s, true
	}
	if h.store == nil {
		return model.TickerSnapshot{}, false
	}
	s, err := h.store.Latest(ctx, symbol)
	if err != nil {
		h.log.DebugContext(ctx, "store lookup missed", "symbol", symbol, "error", err)
		return model.TickerSnapshot{}, false
	}
	return s, true
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status         string   `json:"status"`
	Connected      bool     `json:"connected"`
	Endpoint       string   `json:"endpoint"`
	Session        string   `json:"session,omitempty"`
	Symbols        []string `json:"symbols"`
	LastFrameAgeMs int64    `json:"last_frame_age_ms"` // -1 before the first frame
	FramesEvicted  uint64   `json:"frames_evicted"`
	MarketPhase    string   `json:"market_phase"`
	Market         string   `json:"market"`
}

// HandleHealth reports stream connectivity and the market clock.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	resp := HealthResponse{
		Status:         "ok",
		Connected:      h.stream.Connected(),
		Endpoint:       h.stream.Endpoint(),
		Session:        h.stream.Session(),
		Symbols:        h.stream.Symbols(),
		LastFrameAgeMs: -1,
		FramesEvicted:  h.stream.FramesEvicted(),
		MarketPhase:    string(markethours.Phase(now)),
		Market:         markethours.StatusString(now),
	}
	if age := h.stream.SinceLastFrame(); age >= 0 {
		resp.LastFrameAgeMs = age.Milliseconds()
	}
	if !resp.Connected {
		resp.Status = "disconnected"
	}
	h.jsonResponse(w, resp)
}

// HandleGetSnapshots returns the latest snapshot of every symbol.
func (h *Handler) HandleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	all := h.snapshots.All()
	if all == nil {
		all = []model.TickerSnapshot{}
	}
	h.jsonResponse(w, all)
}

// HandleGetSnapshot returns the latest snapshot of one symbol.
func (h *Handler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	symbol := normalizeSymbol(chi.URLParam(r, "symbol"))
	s, ok := h.latest(r.Context(), symbol)
	if !ok {
		h.jsonError(w, "no snapshot for "+symbol, http.StatusNotFound)
		return
	}
	h.jsonResponse(w, s)
}

// HandleGetFrames returns the diagnostic frame log, oldest first. An
// optional ?tag= filters by classification.
func (h *Handler) HandleGetFrames(w http.ResponseWriter, r *http.Request) {
	frames := h.stream.Frames()
	if tag := r.URL.Query().Get("tag"); tag != "" {
		filtered := frames[:0:0]
		for _, f := range frames {
			if string(f.Tag) == tag {
				filtered = append(filtered, f)
			}
		}
		frames = filtered
	}
	if frames == nil {
		frames = []model.FrameRecord{}
	}
	h.jsonResponse(w, frames)
}

// HandleClearFrames empties the diagnostic frame log.
func (h *Handler) HandleClearFrames(w http.ResponseWriter, r *http.Request) {
	h.stream.ClearFrames()
	w.WriteHeader(http.StatusNoContent)
}

// AnalyzeResponse is the body of GET /api/v1/analyze/{symbol}.
type AnalyzeResponse struct {
	analysis.Result
	Error string `json:"error,omitempty"`
}

// HandleAnalyze runs a technical analysis. price and change default to the
// latest snapshot's price and percent change.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	symbol := normalizeSymbol(chi.URLParam(r, "symbol"))
	if err := ValidateSymbol(symbol); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	snap, haveSnap := h.latest(r.Context(), symbol)

	price, ok, err := floatParam(q, "price")
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !ok {
		if !haveSnap {
			h.jsonError(w, "price is required when no snapshot exists for "+symbol, http.StatusBadRequest)
			return
		}
		price = snap.Price
	}

	change, ok, err := floatParam(q, "change")
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !ok && haveSnap {
		change = snap.ChangePercent
	}

	res, err := h.analyzer.Analyze(r.Context(), symbol, price, change)
	resp := AnalyzeResponse{Result: res}
	if err != nil {
		if !errors.Is(err, analysis.ErrSyntheticIndicators) {
			h.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp.Error = err.Error()
	}
	h.jsonResponse(w, resp)
}

type endpointRequest struct {
	URL string `json:"url"`
}

// HandleSetEndpoint switches the stream to a new websocket URL.
func (h *Handler) HandleSetEndpoint(w http.ResponseWriter, r *http.Request) {
	var req endpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		h.jsonError(w, "url must be a ws:// or wss:// URL", http.StatusBadRequest)
		return
	}

	if err := h.stream.SetEndpoint(r.Context(), req.URL); err != nil {
		// The connector keeps retrying in the background.
		h.log.Warn("endpoint switch dial failed", "url", req.URL, "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"endpoint": req.URL, "error": err.Error()})
		return
	}
	h.jsonResponse(w, map[string]string{"endpoint": h.stream.Endpoint()})
}

type symbolsRequest struct {
	Symbols []string `json:"symbols"`
}

// HandleSetSymbols replaces the subscribed symbol set.
func (h *Handler) HandleSetSymbols(w http.ResponseWriter, r *http.Request) {
	var req symbolsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	symbols := make([]string, 0, len(req.Symbols))
	seen := make(map[string]bool, len(req.Symbols))
	for _, s := range req.Symbols {
		s = normalizeSymbol(s)
		if err := ValidateSymbol(s); err != nil {
			h.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !seen[s] {
			seen[s] = true
			symbols = append(symbols, s)
		}
	}

	if err := h.stream.Subscribe(symbols); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	h.jsonResponse(w, map[string][]string{"symbols": symbols})
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.^=-]+$`)

// ValidateSymbol validates a ticker symbol such as AAPL, BRK.B, ^GSPC,
// EURUSD=X or BTC-USD.
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return errors.New("symbol is required")
	}
	if len(symbol) > 20 {
		return errors.New("symbol too long (max 20 characters)")
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid symbol %q", symbol)
	}
	return nil
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func floatParam(q url.Values, key string) (float64, bool, error) {
	v := q.Get(key)
	if v == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be a number", key)
	}
	return f, true, nil
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
