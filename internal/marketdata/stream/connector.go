// Package stream maintains the live websocket connection to the quote feed.
//
// A Connector owns exactly one logical connection. Every Connect bumps a
// generation counter; read loops, reconnect timers and deferred frames from
// older generations see the mismatch and do nothing. On close the connector
// reconnects after a fixed delay with the same symbol set and re-sends the
// subscribe message on open.
package stream

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tickerwatch/internal/marketdata/decode"
	"tickerwatch/internal/marketdata/yaticker"
	"tickerwatch/internal/model"
	"tickerwatch/internal/ringbuf"
)

// ErrNoEndpoint is returned by Connect when no endpoint URL is configured.
var ErrNoEndpoint = errors.New("stream: no endpoint configured")

// Config holds connector settings.
type Config struct {
	// URL of the feed, e.g. "wss://streamer.finance.yahoo.com/?version=2".
	URL string

	// ReconnectDelay is the fixed delay before reconnecting after a close.
	// Defaults to 5 seconds.
	ReconnectDelay time.Duration

	// DialTimeout bounds each reconnect dial. Defaults to 10 seconds.
	DialTimeout time.Duration

	// FrameLog is the capacity of the diagnostic frame ring. Defaults to 100.
	FrameLog int
}

func (c *Config) defaults() {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.FrameLog <= 0 {
		c.FrameLog = 100
	}
}

// Decoder classifies materialized frames.
type Decoder interface {
	Decode(data []byte, kind decode.Kind) decode.Result
}

// Publisher receives every decoded snapshot.
type Publisher interface {
	Publish(s *model.TickerSnapshot)
}

// Connector is the reconnecting stream client.
type Connector struct {
	cfg    Config
	dec    Decoder
	pub    Publisher
	log    *slog.Logger
	frames *ringbuf.Ring[model.FrameRecord]
	dialer *websocket.Dialer

	mu        sync.Mutex
	url       string
	symbols   []string
	conn      *websocket.Conn
	gen       uint64
	timer     *time.Timer
	cancelGen context.CancelFunc
	session   string
	lastFrame time.Time

	writeMu sync.Mutex

	// Optional hooks for metrics and health.
	OnReconnect func()
	OnFrame     func(tag model.Classification)
	OnState     func(connected bool)
}

// New creates a Connector. dec and pub must be non-nil.
func New(cfg Config, dec Decoder, pub Publisher, log *slog.Logger) *Connector {
	cfg.defaults()
	if log == nil {
		log = slog.Default()
	}
	return &Connector{
		cfg:    cfg,
		dec:    dec,
		pub:    pub,
		log:    log.With("component", "stream"),
		frames: ringbuf.New[model.FrameRecord](cfg.FrameLog),
		dialer: websocket.DefaultDialer,
		url:    cfg.URL,
	}
}

// Connect tears down any existing connection, cancels a pending reconnect and
// dials the endpoint. The diagnostic frame log is cleared. On success the
// subscribe message for symbols is sent. A failed dial schedules a reconnect
// and returns the dial error. ctx bounds the dial only.
func (c *Connector) Connect(ctx context.Context, symbols []string) error {
	c.mu.Lock()
	c.teardownLocked()
	c.gen++
	gen := c.gen
	c.symbols = append([]string(nil), symbols...)
	url := c.url
	c.mu.Unlock()

	c.frames.Clear()
	return c.dial(ctx, gen, url)
}

// dial opens the socket for generation gen.
func (c *Connector) dial(ctx context.Context, gen uint64, url string) error {
	session := uuid.NewString()
	log := c.log.With("session", session)

	c.mu.Lock()
	symbols := append([]string(nil), c.symbols...)
	c.mu.Unlock()

	c.record(model.FrameRecord{
		Tag:     model.ClassConnAttempt,
		Preview: fmt.Sprintf("connecting to %s with symbols %v", url, symbols),
	})

	if url == "" {
		c.record(model.FrameRecord{Tag: model.ClassConnError, Error: ErrNoEndpoint.Error()})
		return ErrNoEndpoint
	}

	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		log.Warn("dial failed", "url", url, "error", err)
		c.record(model.FrameRecord{Tag: model.ClassConnError, Error: err.Error()})
		c.mu.Lock()
		if c.gen == gen {
			c.scheduleLocked(gen)
		}
		c.mu.Unlock()
		return fmt.Errorf("stream: dial %s: %w", url, err)
	}

	c.mu.Lock()
	if c.gen != gen {
		// Superseded while dialing.
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	genCtx, cancel := context.WithCancel(context.Background())
	c.conn = conn
	c.cancelGen = cancel
	c.session = session
	symbols = append(symbols[:0], c.symbols...)
	c.mu.Unlock()

	log.Info("connected", "url", url)
	c.record(model.FrameRecord{Tag: model.ClassConnOpen, Preview: "connection established to " + url})
	if c.OnState != nil {
		c.OnState(true)
	}

	if len(symbols) > 0 {
		if err := c.sendSubscribe(conn, symbols); err != nil {
			log.Warn("subscribe failed", "error", err)
		}
	}

	go c.readLoop(genCtx, gen, conn, log)
	return nil
}

// Disconnect closes the active connection and cancels any pending reconnect.
// Calling it when idle is a no-op.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	active := c.conn != nil || c.timer != nil
	c.teardownLocked()
	c.gen++
	c.mu.Unlock()

	if !active {
		return
	}
	c.log.Info("disconnected by caller")
	c.record(model.FrameRecord{Tag: model.ClassManualDisconnect})
	if c.OnState != nil {
		c.OnState(false)
	}
}

// teardownLocked closes the connection and stops the reconnect timer.
// c.mu must be held.
func (c *Connector) teardownLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancelGen != nil {
		c.cancelGen()
		c.cancelGen = nil
	}
	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "disconnect"),
			time.Now().Add(time.Second))
		c.conn.Close()
		c.conn = nil
	}
}

// scheduleLocked arms the single reconnect timer for generation gen.
// c.mu must be held.
func (c *Connector) scheduleLocked(gen uint64) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.cfg.ReconnectDelay, func() { c.reconnect(gen) })
}

func (c *Connector) reconnect(gen uint64) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.gen++
	next := c.gen
	url := c.url
	c.mu.Unlock()

	c.log.Info("reconnecting", "url", url)
	if c.OnReconnect != nil {
		c.OnReconnect()
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	defer cancel()
	_ = c.dial(ctx, next, url)
}

// SetEndpoint changes the feed URL. If a connection is live it is replaced
// by one against the new endpoint with the same symbols.
func (c *Connector) SetEndpoint(ctx context.Context, url string) error {
	c.mu.Lock()
	c.url = url
	live := c.conn != nil
	symbols := append([]string(nil), c.symbols...)
	c.mu.Unlock()

	if !live {
		return nil
	}
	c.Disconnect()
	return c.Connect(ctx, symbols)
}

// Endpoint returns the current feed URL.
func (c *Connector) Endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// Subscribe replaces the symbol set. When connected the subscribe message is
// sent immediately; otherwise the set is used on the next open. A write error
// is returned but the connection is left for the read loop to close.
func (c *Connector) Subscribe(symbols []string) error {
	c.mu.Lock()
	c.symbols = append([]string(nil), symbols...)
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := c.sendSubscribe(conn, symbols); err != nil {
		c.log.Warn("subscribe failed", "error", err)
		return err
	}
	return nil
}

type subscribeMessage struct {
	Subscribe []string `json:"subscribe"`
}

func (c *Connector) sendSubscribe(conn *websocket.Conn, symbols []string) error {
	msg, err := json.Marshal(subscribeMessage{Subscribe: symbols})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, msg)
	c.writeMu.Unlock()

	rec := model.FrameRecord{Tag: model.ClassSubscribe, Size: len(msg), Preview: string(msg)}
	if err != nil {
		rec.Error = err.Error()
	}
	c.record(rec)
	return err
}

// readLoop reads frames for one generation until the socket closes.
func (c *Connector) readLoop(ctx context.Context, gen uint64, conn *websocket.Conn, log *slog.Logger) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			c.closed(gen, err, log)
			return
		}
		switch mt {
		case websocket.TextMessage:
			c.Ingest(ctx, decode.Frame{Kind: decode.KindText, Data: data})
		case websocket.BinaryMessage:
			if isTextBlob(data) {
				c.Ingest(ctx, blobFrame(data))
			} else {
				c.Ingest(ctx, decode.Binary(data))
			}
		}
	}
}

func (c *Connector) closed(gen uint64, err error, log *slog.Logger) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	if c.cancelGen != nil {
		c.cancelGen()
		c.cancelGen = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.scheduleLocked(gen)
	c.mu.Unlock()

	log.Warn("connection closed, reconnect scheduled", "error", err, "delay", c.cfg.ReconnectDelay)
	c.record(model.FrameRecord{Tag: model.ClassConnClose, Error: err.Error()})
	if c.OnState != nil {
		c.OnState(false)
	}
}

// Ingest runs one frame through decode and distribution. Text and binary
// frames are handled synchronously. Deferred frames are materialized on their
// own goroutine so later frames are not held up.
func (c *Connector) Ingest(ctx context.Context, f decode.Frame) {
	c.mu.Lock()
	c.lastFrame = time.Now()
	c.mu.Unlock()

	if f.Kind != decode.KindDeferred {
		c.handle(f.Data, f.Kind)
		return
	}
	go func() {
		data, err := f.Materialize(ctx)
		if err != nil {
			c.log.Warn("deferred frame unreadable", "error", err)
			c.record(model.FrameRecord{Tag: model.ClassReadError, Error: err.Error()})
			c.frameSeen(model.ClassReadError)
			return
		}
		c.handle(data, decode.KindText)
	}()
}

func (c *Connector) handle(data []byte, kind decode.Kind) {
	res := c.dec.Decode(data, kind)

	rec := model.FrameRecord{Tag: res.Tag, Size: len(data)}
	if kind == decode.KindText {
		rec.Preview = model.Preview(string(data))
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	if res.Snapshot != nil {
		rec.Symbol = res.Snapshot.ID
	}
	c.record(rec)
	c.frameSeen(res.Tag)

	if res.Snapshot != nil {
		c.pub.Publish(res.Snapshot)
	}
}

func (c *Connector) frameSeen(tag model.Classification) {
	if c.OnFrame != nil {
		c.OnFrame(tag)
	}
}

func (c *Connector) record(r model.FrameRecord) {
	if r.Time.IsZero() {
		r.Time = time.Now()
	}
	c.frames.Push(r)
}

// Frames returns the diagnostic frame log, oldest first.
func (c *Connector) Frames() []model.FrameRecord {
	return c.frames.Snapshot()
}

// FramesEvicted returns how many records the frame log has dropped to make
// room for newer ones.
func (c *Connector) FramesEvicted() uint64 {
	return c.frames.Evicted()
}

// ClearFrames empties the diagnostic frame log.
func (c *Connector) ClearFrames() {
	c.frames.Clear()
}

// SinceLastFrame returns the time since the last inbound frame, or -1 if none
// has arrived yet.
func (c *Connector) SinceLastFrame() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastFrame.IsZero() {
		return -1
	}
	return time.Since(c.lastFrame)
}

// Connected reports whether a socket is currently open.
func (c *Connector) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Symbols returns the current symbol set.
func (c *Connector) Symbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.symbols...)
}

// Session returns the id of the live connection, or "" when disconnected.
func (c *Connector) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ""
	}
	return c.session
}

// isTextBlob reports whether a binary message actually carries text (a JSON
// envelope or base64), as browser-style blob delivery does. A message that
// parses as a ticker record stays binary even when its bytes are printable.
func isTextBlob(b []byte) bool {
	if len(b) == 0 || !utf8.Valid(b) {
		return false
	}
	if t, err := yaticker.Unmarshal(b); err == nil && t.ID != "" {
		return false
	}
	s := bytes.TrimSpace(b)
	switch {
	case len(s) == 0:
		return false
	case s[0] == '{':
		return true
	}
	if _, err := base64.StdEncoding.DecodeString(string(s)); err == nil {
		return true
	}
	_, err := base64.RawStdEncoding.DecodeString(string(s))
	return err == nil
}

func blobFrame(b []byte) decode.Frame {
	return decode.Deferred(func(ctx context.Context) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(b) == 0 {
			return nil, io.ErrUnexpectedEOF
		}
		return b, nil
	})
}
