// Package yaticker reads and writes the binary ticker record carried by the
// streaming feed. The record is protobuf-encoded; no generated code is
// shipped with the feed, so fields are handled at the wire level.
package yaticker

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrWireType is returned when a known field arrives with an unexpected wire type.
var ErrWireType = errors.New("yaticker: wrong wire type")

// Ticker is one decoded ticker record. Zero values mean the field was absent.
type Ticker struct {
	ID                string
	Price             float32
	Time              int64
	Currency          string
	Exchange          string
	QuoteType         int32
	MarketHours       int32
	ChangePercent     float32
	DayVolume         int64
	DayHigh           float32
	DayLow            float32
	Change            float32
	ShortName         string
	ExpireDate        int64
	OpenPrice         float32
	PreviousClose     float32
	StrikePrice       float32
	UnderlyingSymbol  string
	OpenInterest      int64
	OptionsType       int32
	MiniOption        int64
	LastSize          int64
	Bid               float32
	BidSize           int64
	Ask               float32
	AskSize           int64
	PriceHint         int64
	Vol24Hr           int64
	VolAllCurrencies  int64
	FromCurrency      string
	LastMarket        string
	CirculatingSupply float64
	MarketCap         float64
}

type kind uint8

const (
	kString kind = iota
	kFloat
	kDouble
	kSint64
	kEnum
)

func (k kind) wireType() protowire.Type {
	switch k {
	case kString:
		return protowire.BytesType
	case kFloat:
		return protowire.Fixed32Type
	case kDouble:
		return protowire.Fixed64Type
	default:
		return protowire.VarintType
	}
}

// schema maps field numbers to their declared kinds.
var schema = map[protowire.Number]kind{
	1: kString, 2: kFloat, 3: kSint64, 4: kString, 5: kString,
	6: kEnum, 7: kEnum, 8: kFloat, 9: kSint64, 10: kFloat,
	11: kFloat, 12: kFloat, 13: kString, 14: kSint64, 15: kFloat,
	16: kFloat, 17: kFloat, 18: kString, 19: kSint64, 20: kEnum,
	21: kSint64, 22: kSint64, 23: kFloat, 24: kSint64, 25: kFloat,
	26: kSint64, 27: kSint64, 28: kSint64, 29: kSint64, 30: kString,
	31: kString, 32: kDouble, 33: kDouble,
}

// Unmarshal decodes a ticker record. Unknown fields are skipped.
func Unmarshal(b []byte) (*Ticker, error) {
	t := &Ticker{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("yaticker: tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		k, known := schema[num]
		if !known {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("yaticker: skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		if typ != k.wireType() {
			return nil, fmt.Errorf("%w: field %d has type %d", ErrWireType, num, typ)
		}

		switch k {
		case kString:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("yaticker: field %d: %w", num, protowire.ParseError(n))
			}
			t.setString(num, string(v))
			b = b[n:]
		case kFloat:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return nil, fmt.Errorf("yaticker: field %d: %w", num, protowire.ParseError(n))
			}
			t.setFloat(num, math.Float32frombits(v))
			b = b[n:]
		case kDouble:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return nil, fmt.Errorf("yaticker: field %d: %w", num, protowire.ParseError(n))
			}
			t.setDouble(num, math.Float64frombits(v))
			b = b[n:]
		case kSint64, kEnum:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("yaticker: field %d: %w", num, protowire.ParseError(n))
			}
			if k == kSint64 {
				t.setInt(num, protowire.DecodeZigZag(v))
			} else {
				t.setInt(num, int64(int32(v)))
			}
			b = b[n:]
		}
	}
	return t, nil
}

func (t *Ticker) setString(num protowire.Number, v string) {
	switch num {
	case 1:
		t.ID = v
	case 4:
		t.Currency = v
	case 5:
		t.Exchange = v
	case 13:
		t.ShortName = v
	case 18:
		t.UnderlyingSymbol = v
	case 30:
		t.FromCurrency = v
	case 31:
		t.LastMarket = v
	}
}

func (t *Ticker) setFloat(num protowire.Number, v float32) {
	switch num {
	case 2:
		t.Price = v
	case 8:
		t.ChangePercent = v
	case 10:
		t.DayHigh = v
	case 11:
		t.DayLow = v
	case 12:
		t.Change = v
	case 15:
		t.OpenPrice = v
	case 16:
		t.PreviousClose = v
	case 17:
		t.StrikePrice = v
	case 23:
		t.Bid = v
	case 25:
		t.Ask = v
	}
}

func (t *Ticker) setDouble(num protowire.Number, v float64) {
	switch num {
	case 32:
		t.CirculatingSupply = v
	case 33:
		t.MarketCap = v
	}
}

func (t *Ticker) setInt(num protowire.Number, v int64) {
	switch num {
	case 3:
		t.Time = v
	case 6:
		t.QuoteType = int32(v)
	case 7:
		t.MarketHours = int32(v)
	case 9:
		t.DayVolume = v
	case 14:
		t.ExpireDate = v
	case 19:
		t.OpenInterest = v
	case 20:
		t.OptionsType = int32(v)
	case 21:
		t.MiniOption = v
	case 22:
		t.LastSize = v
	case 24:
		t.BidSize = v
	case 26:
		t.AskSize = v
	case 27:
		t.PriceHint = v
	case 28:
		t.Vol24Hr = v
	case 29:
		t.VolAllCurrencies = v
	}
}

// Marshal encodes t in field-number order, omitting zero values.
func Marshal(t *Ticker) []byte {
	var b []byte
	str := func(num protowire.Number, v string) {
		if v != "" {
			b = protowire.AppendTag(b, num, protowire.BytesType)
			b = protowire.AppendString(b, v)
		}
	}
	f32 := func(num protowire.Number, v float32) {
		if v != 0 {
			b = protowire.AppendTag(b, num, protowire.Fixed32Type)
			b = protowire.AppendFixed32(b, math.Float32bits(v))
		}
	}
	f64 := func(num protowire.Number, v float64) {
		if v != 0 {
			b = protowire.AppendTag(b, num, protowire.Fixed64Type)
			b = protowire.AppendFixed64(b, math.Float64bits(v))
		}
	}
	sint := func(num protowire.Number, v int64) {
		if v != 0 {
			b = protowire.AppendTag(b, num, protowire.VarintType)
			b = protowire.AppendVarint(b, protowire.EncodeZigZag(v))
		}
	}
	enum := func(num protowire.Number, v int32) {
		if v != 0 {
			b = protowire.AppendTag(b, num, protowire.VarintType)
			b = protowire.AppendVarint(b, uint64(int64(v)))
		}
	}

	str(1, t.ID)
	f32(2, t.Price)
	sint(3, t.Time)
	str(4, t.Currency)
	str(5, t.Exchange)
	enum(6, t.QuoteType)
	enum(7, t.MarketHours)
	f32(8, t.ChangePercent)
	sint(9, t.DayVolume)
	f32(10, t.DayHigh)
	f32(11, t.DayLow)
	f32(12, t.Change)
	str(13, t.ShortName)
	sint(14, t.ExpireDate)
	f32(15, t.OpenPrice)
	f32(16, t.PreviousClose)
	f32(17, t.StrikePrice)
	str(18, t.UnderlyingSymbol)
	sint(19, t.OpenInterest)
	enum(20, t.OptionsType)
	sint(21, t.MiniOption)
	sint(22, t.LastSize)
	f32(23, t.Bid)
	sint(24, t.BidSize)
	f32(25, t.Ask)
	sint(26, t.AskSize)
	sint(27, t.PriceHint)
	sint(28, t.Vol24Hr)
	sint(29, t.VolAllCurrencies)
	str(30, t.FromCurrency)
	str(31, t.LastMarket)
	f64(32, t.CirculatingSupply)
	f64(33, t.MarketCap)
	return b
}
