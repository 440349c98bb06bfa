package model

import (
	"encoding/json"
	"time"
)

// SessionPhase is the trading session a ticker update was produced in.
type SessionPhase string

const (
	SessionPre      SessionPhase = "PRE_MARKET"
	SessionRegular  SessionPhase = "REGULAR_MARKET"
	SessionPost     SessionPhase = "POST_MARKET"
	SessionExtended SessionPhase = "EXTENDED_HOURS_MARKET"
)

// SessionFromWire maps the feed's marketHours enum (0..3) to a SessionPhase.
// Anything out of range is treated as the regular session.
func SessionFromWire(v int32) SessionPhase {
	switch v {
	case 0:
		return SessionPre
	case 1:
		return SessionRegular
	case 2:
		return SessionPost
	case 3:
		return SessionExtended
	default:
		return SessionRegular
	}
}

// Wire returns the feed enum value for the phase.
func (p SessionPhase) Wire() int32 {
	switch p {
	case SessionPre:
		return 0
	case SessionPost:
		return 2
	case SessionExtended:
		return 3
	default:
		return 1
	}
}

// MaxFutureSkew is how far ahead of receipt a ticker timestamp may be before
// it is replaced with the receipt time.
const MaxFutureSkew = 24 * time.Hour

// TickerSnapshot is the latest normalized market data for one symbol.
// Snapshots are overwritten per symbol ("latest wins") and never retained.
type TickerSnapshot struct {
	ID            string       `json:"id"`
	ShortName     string       `json:"short_name"`
	Price         float64      `json:"price"`
	Change        float64      `json:"change"`
	ChangePercent float64      `json:"change_percent"`
	Currency      string       `json:"currency"`
	Session       SessionPhase `json:"session"`
	Volume        int64        `json:"volume"`
	DayHigh       float64      `json:"day_high"`
	DayLow        float64      `json:"day_low"`
	Open          float64      `json:"open"`
	PreviousClose float64      `json:"previous_close"`
	Time          time.Time    `json:"time"`
	ReceivedAt    time.Time    `json:"received_at"`
}

// JSON returns the JSON-encoded snapshot.
func (s *TickerSnapshot) JSON() ([]byte, error) {
	return json.Marshal(s)
}
