// Package sim generates simulated quote-feed traffic in every wire shape the
// decoder understands: heartbeats, pricing envelopes, legacy base64 text and
// raw binary records.
package sim

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"tickerwatch/internal/marketdata/yaticker"
	"tickerwatch/internal/model"
)

// Shape selects the wire form of ticker frames.
type Shape int

const (
	ShapeMixed   Shape = iota // rotate pricing, legacy and binary
	ShapePricing              // {"type":"pricing","message":"<base64>"}
	ShapeLegacy               // bare base64 text
	ShapeBinary               // raw record in a binary message
)

func (s Shape) String() string {
	switch s {
	case ShapeMixed:
		return "mixed"
	case ShapePricing:
		return "pricing"
	case ShapeLegacy:
		return "legacy"
	case ShapeBinary:
		return "binary"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// ParseShape maps a shape name to a Shape.
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mixed":
		return ShapeMixed, nil
	case "pricing":
		return ShapePricing, nil
	case "legacy":
		return ShapeLegacy, nil
	case "binary":
		return ShapeBinary, nil
	default:
		return 0, fmt.Errorf("sim: unknown shape %q", s)
	}
}

// Frame is one outbound websocket message.
type Frame struct {
	Binary bool
	Data   []byte
}

var heartbeat = []byte(`{"type":"heartbeat"}`)

// Heartbeat returns a keep-alive frame.
func Heartbeat() Frame {
	return Frame{Data: heartbeat}
}

type pricingEnvelope struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Encode renders t in shape. ShapeMixed is treated as pricing; use a Feed to
// rotate shapes.
func Encode(shape Shape, t *yaticker.Ticker) Frame {
	raw := yaticker.Marshal(t)
	switch shape {
	case ShapeBinary:
		return Frame{Binary: true, Data: raw}
	case ShapeLegacy:
		return Frame{Data: []byte(base64.StdEncoding.EncodeToString(raw))}
	default:
		b, _ := json.Marshal(pricingEnvelope{Type: "pricing", Message: base64.StdEncoding.EncodeToString(raw)})
		return Frame{Data: b}
	}
}

var rotation = []Shape{ShapePricing, ShapeLegacy, ShapeBinary}

// Feed encodes tickers in a fixed shape, or rotates through all three when
// the shape is ShapeMixed. Not safe for concurrent use.
type Feed struct {
	shape Shape
	seq   int
}

// NewFeed creates a Feed for shape.
func NewFeed(shape Shape) *Feed {
	return &Feed{shape: shape}
}

// Encode renders t in the feed's next shape.
func (f *Feed) Encode(t *yaticker.Ticker) Frame {
	shape := f.shape
	if shape == ShapeMixed {
		shape = rotation[f.seq%len(rotation)]
		f.seq++
	}
	return Encode(shape, t)
}

// Instrument is the simulated state of one symbol.
type Instrument struct {
	Symbol        string
	Price         float64
	Open          float64
	PreviousClose float64
	DayHigh       float64
	DayLow        float64
	Volume        int64
}

// NewInstrument starts an instrument at price, with a previous close up to
// 2% away.
func NewInstrument(symbol string, price float64, rnd *rand.Rand) *Instrument {
	prev := price * (1 + (rnd.Float64()*4-2)/100)
	return &Instrument{
		Symbol:        symbol,
		Price:         price,
		Open:          price,
		PreviousClose: prev,
		DayHigh:       price,
		DayLow:        price,
	}
}

// Step applies a random walk of at most ±0.1% and adds some volume.
func (in *Instrument) Step(rnd *rand.Rand) {
	pct := (rnd.Float64()*0.2 - 0.1) / 100
	in.Price = max(in.Price*(1+pct), 0.01)
	in.DayHigh = max(in.DayHigh, in.Price)
	in.DayLow = min(in.DayLow, in.Price)
	in.Volume += int64(rnd.IntN(500) + 1)
}

// Ticker snapshots the instrument as a wire record stamped at now.
func (in *Instrument) Ticker(now time.Time, phase model.SessionPhase) *yaticker.Ticker {
	change := in.Price - in.PreviousClose
	return &yaticker.Ticker{
		ID:            in.Symbol,
		ShortName:     in.Symbol,
		Price:         float32(in.Price),
		Time:          now.UnixMilli(),
		Currency:      "USD",
		Exchange:      "SIM",
		QuoteType:     8, // equity
		MarketHours:   phase.Wire(),
		Change:        float32(change),
		ChangePercent: float32(change / in.PreviousClose * 100),
		DayVolume:     in.Volume,
		DayHigh:       float32(in.DayHigh),
		DayLow:        float32(in.DayLow),
		OpenPrice:     float32(in.Open),
		PreviousClose: float32(in.PreviousClose),
	}
}
