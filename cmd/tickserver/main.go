// cmd/tickserver: demo quote-feed websocket server.
// Streams simulated tickers for local runs of cmd/streamer without touching
// the real feed.
//
// Clients subscribe the same way as upstream:
//
//	{"subscribe":["AAPL","MSFT"]}
//
// Ticker frames go out as pricing envelopes, legacy base64 text or raw binary
// records; heartbeats are interleaved on their own interval.
//
// Config (env vars):
//
//	TICK_SERVER_ADDR      listen address (default ":9001")
//	TICK_SYMBOLS          comma-separated SYMBOL[:PRICE] (default "AAPL:190,MSFT:410,GOOGL:165,AMZN:185,TSLA:250")
//	TICK_INTERVAL_MS      ticker interval in milliseconds (default "500")
//	TICK_HEARTBEAT_MS     heartbeat interval in milliseconds (default "15000")
//	TICK_SHAPES           mixed | pricing | legacy | binary (default "mixed")
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tickerwatch/internal/markethours"
	"tickerwatch/internal/marketdata/sim"
)

type outbound struct {
	symbol string // empty for heartbeats
	frame  sim.Frame
}

type client struct {
	send chan outbound

	mu   sync.RWMutex
	subs map[string]struct{}
}

func (c *client) subscribe(symbols []string) {
	c.mu.Lock()
	for _, s := range symbols {
		c.subs[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}
	c.mu.Unlock()
}

func (c *client) unsubscribe(symbols []string) {
	c.mu.Lock()
	for _, s := range symbols {
		delete(c.subs, strings.ToUpper(strings.TrimSpace(s)))
	}
	c.mu.Unlock()
}

func (c *client) wants(symbol string) bool {
	if symbol == "" {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subs[symbol]
	return ok
}

// ─── Hub ──────────────────────────────────────────────────────────────────────

type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]*client)}
}

func (h *hub) register(conn *websocket.Conn) *client {
	c := &client{send: make(chan outbound, 256), subs: make(map[string]struct{})}
	h.mu.Lock()
	h.clients[conn] = c
	h.mu.Unlock()
	return c
}

func (h *hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if c, ok := h.clients[conn]; ok {
		close(c.send)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

func (h *hub) broadcast(msg outbound) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if !c.wants(msg.symbol) {
			continue
		}
		select {
		case c.send <- msg:
		default: // slow client, drop frame
		}
	}
}

// ─── WebSocket handler ────────────────────────────────────────────────────────

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

type subscribeMsg struct {
	Subscribe   []string `json:"subscribe"`
	Unsubscribe []string `json:"unsubscribe"`
}

func wsHandler(h *hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[tickserver] upgrade error: %v", err)
			return
		}
		log.Printf("[tickserver] client connected: %s", r.RemoteAddr)

		c := h.register(conn)
		go readPump(h, conn, c, r.RemoteAddr)

		// Write pump; ends when the read pump unregisters the client.
		for msg := range c.send {
			mt := websocket.TextMessage
			if msg.frame.Binary {
				mt = websocket.BinaryMessage
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(mt, msg.frame.Data); err != nil {
				conn.Close()
				break
			}
		}
		// Drain until the read pump notices the closed connection.
		for range c.send {
		}
	}
}

func readPump(h *hub, conn *websocket.Conn, c *client, remote string) {
	defer func() {
		h.unregister(conn)
		conn.Close()
		log.Printf("[tickserver] client disconnected: %s", remote)
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg subscribeMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[tickserver] ignoring message from %s: %v", remote, err)
			continue
		}
		if len(msg.Subscribe) > 0 {
			c.subscribe(msg.Subscribe)
			log.Printf("[tickserver] %s subscribed: %v", remote, msg.Subscribe)
		}
		if len(msg.Unsubscribe) > 0 {
			c.unsubscribe(msg.Unsubscribe)
		}
	}
}

// ─── Generators ──────────────────────────────────────────────────────────────

func runGenerator(h *hub, instruments []*sim.Instrument, interval time.Duration, shape sim.Shape) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rnd := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	feed := sim.NewFeed(shape)

	for now := range ticker.C {
		phase := markethours.Phase(now)
		for _, in := range instruments {
			in.Step(rnd)
			h.broadcast(outbound{symbol: in.Symbol, frame: feed.Encode(in.Ticker(now, phase))})
		}
	}
}

func runHeartbeat(h *hub, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		h.broadcast(outbound{frame: sim.Heartbeat()})
	}
}

// ─── main ─────────────────────────────────────────────────────────────────────

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[tickserver] starting demo tick server...")

	addr := envOrDefault("TICK_SERVER_ADDR", ":9001")
	symbolsEnv := envOrDefault("TICK_SYMBOLS", "AAPL:190,MSFT:410,GOOGL:165,AMZN:185,TSLA:250")
	intervalMs := envIntOrDefault("TICK_INTERVAL_MS", 500)
	heartbeatMs := envIntOrDefault("TICK_HEARTBEAT_MS", 15000)

	shape, err := sim.ParseShape(os.Getenv("TICK_SHAPES"))
	if err != nil {
		log.Fatalf("[tickserver] %v", err)
	}

	rnd := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 1))
	instruments := parseInstruments(symbolsEnv, rnd)
	if len(instruments) == 0 {
		log.Fatalf("[tickserver] no instruments configured via TICK_SYMBOLS")
	}
	log.Printf("[tickserver] %d instruments, interval=%dms heartbeat=%dms shapes=%s",
		len(instruments), intervalMs, heartbeatMs, shape)

	h := newHub()

	go runGenerator(h, instruments, time.Duration(intervalMs)*time.Millisecond, shape)
	go runHeartbeat(h, time.Duration(heartbeatMs)*time.Millisecond)

	http.HandleFunc("/", wsHandler(h))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"tickserver"}`)
	})

	log.Printf("[tickserver] listening on %s (WebSocket: ws://localhost%s/)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[tickserver] server error: %v", err)
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func parseInstruments(s string, rnd *rand.Rand) []*sim.Instrument {
	var result []*sim.Instrument
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		symbol, priceStr, hasPrice := strings.Cut(part, ":")
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		price := 100.0
		if hasPrice {
			p, err := strconv.ParseFloat(strings.TrimSpace(priceStr), 64)
			if err != nil || p <= 0 {
				log.Printf("[tickserver] skipping invalid symbol spec: %q", part)
				continue
			}
			price = p
		}
		result = append(result, sim.NewInstrument(symbol, price, rnd))
	}
	return result
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
