package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tickerwatch/internal/model"
)

const (
	liveSendBuffer   = 256
	liveWriteTimeout = 10 * time.Second
	livePongTimeout  = 60 * time.Second
	livePingInterval = 30 * time.Second
)

// Live pushes published snapshots to websocket clients. Each envelope
// carries a per-symbol sequence number so clients can detect gaps.
//
// Clients receive every symbol until they send {"subscribe":[...]}; after
// that only the subscribed symbols are delivered.
type Live struct {
	snapshots Snapshots
	log       *slog.Logger
	upgrader  websocket.Upgrader

	mu      sync.RWMutex
	clients map[*liveClient]struct{}
	seqs    map[string]int64

	// OnPush, if set, receives the lag between receipt and push of each
	// snapshot that reached at least one client.
	OnPush func(lag time.Duration)
	// OnClients, if set, receives the client count after every change.
	OnClients func(n int)
}

// NewLive creates a Live hub. snapshots seeds new clients with the latest
// state.
func NewLive(snapshots Snapshots, log *slog.Logger) *Live {
	if log == nil {
		log = slog.Default()
	}
	return &Live{
		snapshots: snapshots,
		log:       log.With("component", "live"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		clients: make(map[*liveClient]struct{}),
		seqs:    make(map[string]int64),
	}
}

// LiveEnvelope is one message pushed to live clients.
type LiveEnvelope struct {
	Symbol  string               `json:"symbol"`
	Seq     int64                `json:"seq"`
	Initial bool                 `json:"initial,omitempty"`
	Data    model.TickerSnapshot `json:"data"`
}

// Publish fans s out to every interested client. Slow clients miss
// snapshots rather than block the caller. It matches bus.Observer.
func (l *Live) Publish(s model.TickerSnapshot) {
	l.mu.Lock()
	l.seqs[s.ID]++
	seq := l.seqs[s.ID]
	l.mu.Unlock()

	b, err := json.Marshal(LiveEnvelope{Symbol: s.ID, Seq: seq, Data: s})
	if err != nil {
		l.log.Error("encode envelope", "symbol", s.ID, "error", err)
		return
	}

	delivered := false
	l.mu.RLock()
	for c := range l.clients {
		if !c.wants(s.ID) {
			continue
		}
		select {
		case c.send <- b:
			delivered = true
		default:
		}
	}
	l.mu.RUnlock()

	if delivered && l.OnPush != nil && !s.ReceivedAt.IsZero() {
		l.OnPush(time.Since(s.ReceivedAt))
	}
}

// Clients returns the number of connected clients.
func (l *Live) Clients() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.clients)
}

// ServeHTTP upgrades the request and runs the client until it disconnects.
// ?symbols=AAPL,MSFT pre-subscribes.
func (l *Live) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.log.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &liveClient{
		conn: conn,
		send: make(chan []byte, liveSendBuffer),
		subs: make(map[string]struct{}),
	}
	if q := r.URL.Query().Get("symbols"); q != "" {
		c.subscribe(strings.Split(q, ","))
	}

	l.mu.Lock()
	l.clients[c] = struct{}{}
	n := len(l.clients)
	l.mu.Unlock()
	l.clientsChanged(n)
	l.log.Info("client connected", "remote", r.RemoteAddr, "clients", n)

	l.sendInitialState(c)
	go c.writePump()
	l.readPump(c, r.RemoteAddr)
}

func (l *Live) sendInitialState(c *liveClient) {
	if l.snapshots == nil {
		return
	}
	for _, s := range l.snapshots.All() {
		if !c.wants(s.ID) {
			continue
		}
		l.mu.RLock()
		seq := l.seqs[s.ID]
		l.mu.RUnlock()
		b, err := json.Marshal(LiveEnvelope{Symbol: s.ID, Seq: seq, Initial: true, Data: s})
		if err != nil {
			continue
		}
		select {
		case c.send <- b:
		default:
		}
	}
}

func (l *Live) remove(c *liveClient) {
	l.mu.Lock()
	_, ok := l.clients[c]
	if ok {
		delete(l.clients, c)
		close(c.send)
	}
	n := len(l.clients)
	l.mu.Unlock()
	if ok {
		l.clientsChanged(n)
	}
}

func (l *Live) clientsChanged(n int) {
	if l.OnClients != nil {
		l.OnClients(n)
	}
}

type liveControl struct {
	Subscribe   []string `json:"subscribe"`
	Unsubscribe []string `json:"unsubscribe"`
}

func (l *Live) readPump(c *liveClient, remote string) {
	defer func() {
		l.remove(c)
		c.conn.Close()
		l.log.Info("client disconnected", "remote", remote)
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(livePongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(livePongTimeout))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var ctl liveControl
		if err := json.Unmarshal(msg, &ctl); err != nil {
			l.log.Debug("ignoring client message", "remote", remote, "error", err)
			continue
		}
		c.subscribe(ctl.Subscribe)
		c.unsubscribe(ctl.Unsubscribe)
	}
}

type liveClient struct {
	conn *websocket.Conn
	send chan []byte

	mu         sync.RWMutex
	subs       map[string]struct{}
	subscribed bool
}

func (c *liveClient) subscribe(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			c.subs[s] = struct{}{}
			c.subscribed = true
		}
	}
}

func (c *liveClient) unsubscribe(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range symbols {
		delete(c.subs, strings.ToUpper(strings.TrimSpace(s)))
	}
}

// wants reports whether symbol should be delivered. A client that never
// subscribed receives everything; one that unsubscribed from all receives
// nothing.
func (c *liveClient) wants(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.subscribed {
		return true
	}
	_, ok := c.subs[symbol]
	return ok
}

func (c *liveClient) writePump() {
	ticker := time.NewTicker(livePingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))

			// Coalesce whatever is queued into one frame, newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			for i, n := 0, len(c.send); i < n; i++ {
				next, ok := <-c.send
				if !ok {
					break
				}
				w.Write([]byte{'\n'})
				w.Write(next)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
