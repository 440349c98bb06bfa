// Package bus holds the latest snapshot per symbol and distributes new
// snapshots to observers and channel subscribers.
package bus

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"tickerwatch/internal/model"
)

// Observer receives every published snapshot.
type Observer func(model.TickerSnapshot)

type registration struct {
	id   uint64
	name string
	fn   Observer
}

// Distributor keeps the latest snapshot per symbol ("latest wins") and calls
// observers synchronously, in registration order, on the publishing goroutine.
// A panicking observer is logged and skipped; the others still run.
type Distributor struct {
	mu        sync.RWMutex
	latest    map[string]model.TickerSnapshot
	observers []registration
	nextID    uint64

	fan *FanOut[model.TickerSnapshot]
	log *slog.Logger

	// Optional hooks for metrics.
	OnPublish func(symbol string)
	OnPanic   func(observer string)
}

// NewDistributor creates a Distributor whose channel subscribers get
// buffers of chanBuf snapshots.
func NewDistributor(chanBuf int, log *slog.Logger) *Distributor {
	if log == nil {
		log = slog.Default()
	}
	return &Distributor{
		latest: make(map[string]model.TickerSnapshot),
		fan:    NewFanOut[model.TickerSnapshot](chanBuf),
		log:    log.With("component", "distributor"),
	}
}

// Observe registers fn and returns a function that unregisters it.
func (d *Distributor) Observe(name string, fn Observer) (cancel func()) {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.observers = append(d.observers, registration{id: id, name: name, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, r := range d.observers {
			if r.id == id {
				d.observers = append(d.observers[:i:i], d.observers[i+1:]...)
				return
			}
		}
	}
}

// Subscribe returns a buffered channel that receives every snapshot.
// Snapshots are dropped for a subscriber whose buffer is full.
func (d *Distributor) Subscribe(name string) <-chan model.TickerSnapshot {
	return d.fan.Subscribe(name)
}

// OnDrop sets the hook called when a channel subscriber misses a snapshot.
func (d *Distributor) OnDrop(fn func(subscriber string)) {
	d.fan.OnDrop = fn
}

// Publish stores s as the latest snapshot for its symbol and distributes it.
func (d *Distributor) Publish(s *model.TickerSnapshot) {
	if s == nil || s.ID == "" {
		return
	}
	snap := *s

	d.mu.Lock()
	d.latest[snap.ID] = snap
	observers := make([]registration, len(d.observers))
	copy(observers, d.observers)
	d.mu.Unlock()

	for _, r := range observers {
		d.notify(r, snap)
	}
	d.fan.Broadcast(snap)

	if d.OnPublish != nil {
		d.OnPublish(snap.ID)
	}
}

func (d *Distributor) notify(r registration, s model.TickerSnapshot) {
	defer func() {
		if p := recover(); p != nil {
			d.log.Error("observer panicked",
				"observer", r.name,
				"symbol", s.ID,
				"panic", fmt.Sprint(p),
			)
			if d.OnPanic != nil {
				d.OnPanic(r.name)
			}
		}
	}()
	r.fn(s)
}

// Latest returns the most recent snapshot for symbol.
func (d *Distributor) Latest(symbol string) (model.TickerSnapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.latest[symbol]
	return s, ok
}

// All returns the latest snapshot of every symbol, sorted by id.
func (d *Distributor) All() []model.TickerSnapshot {
	d.mu.RLock()
	out := make([]model.TickerSnapshot, 0, len(d.latest))
	for _, s := range d.latest {
		out = append(out, s)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ChannelStats reports saturation of the channel subscribers.
func (d *Distributor) ChannelStats() []ChannelStat {
	return d.fan.ChannelStats()
}

// Close closes every channel subscription.
func (d *Distributor) Close() {
	d.fan.Close()
}
