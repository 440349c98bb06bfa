package decode

import (
	"math"
	"time"

	"tickerwatch/internal/marketdata/yaticker"
	"tickerwatch/internal/model"
)

// millisThreshold separates second and millisecond epoch timestamps.
const millisThreshold = 1e12

// Normalize coerces a decoded ticker record into a snapshot.
func Normalize(t *yaticker.Ticker, receivedAt time.Time) (*model.TickerSnapshot, error) {
	if t.ID == "" {
		return nil, ErrEmptyID
	}
	for _, v := range []float32{t.Price, t.Change, t.ChangePercent, t.DayHigh, t.DayLow, t.OpenPrice, t.PreviousClose} {
		if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, ErrNonFinite
		}
	}
	price := float64(t.Price)
	s := &model.TickerSnapshot{
		ID:            t.ID,
		ShortName:     t.ShortName,
		Price:         price,
		Change:        float64(t.Change),
		ChangePercent: float64(t.ChangePercent),
		Currency:      t.Currency,
		Session:       model.SessionFromWire(t.MarketHours),
		Volume:        t.DayVolume,
		DayHigh:       orPrice(t.DayHigh, price),
		DayLow:        orPrice(t.DayLow, price),
		Open:          orPrice(t.OpenPrice, price),
		PreviousClose: orPrice(t.PreviousClose, price),
		Time:          recordTime(t.Time, receivedAt),
		ReceivedAt:    receivedAt,
	}
	if s.Currency == "" {
		s.Currency = "USD"
	}
	if s.ShortName == "" {
		s.ShortName = s.ID
	}
	return s, nil
}

func orPrice(v float32, price float64) float64 {
	if v == 0 {
		return price
	}
	return float64(v)
}

func recordTime(v int64, receivedAt time.Time) time.Time {
	if v == 0 {
		return receivedAt
	}
	var ts time.Time
	if v > millisThreshold {
		ts = time.UnixMilli(v)
	} else {
		ts = time.Unix(v, 0)
	}
	if ts.Sub(receivedAt) > model.MaxFutureSkew {
		return receivedAt
	}
	return ts
}
