// Package markethours is the US equities session clock (America/New_York).
package markethours

import (
	"fmt"
	"time"
	_ "time/tzdata" // America/New_York without a system zoneinfo

	"tickerwatch/internal/model"
)

// NewYork is the exchange time zone.
var NewYork = mustLoad("America/New_York")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("markethours: load %s: %v", name, err))
	}
	return loc
}

// Session boundaries in exchange-local minutes since midnight.
const (
	PreOpen      = 4 * 60
	RegularOpen  = 9*60 + 30
	RegularClose = 16 * 60
	PostClose    = 20 * 60

	// Early-close days end the regular session at 13:00 and the post session
	// at 17:00.
	EarlyRegularClose = 13 * 60
	EarlyPostClose    = 17 * 60
)

// Phases lists every session phase in trading-day order.
var Phases = []model.SessionPhase{
	model.SessionPre,
	model.SessionRegular,
	model.SessionPost,
	model.SessionExtended,
}

func local(t time.Time) (time.Time, int) {
	ny := t.In(NewYork)
	return ny, ny.Hour()*60 + ny.Minute()
}

// IsWeekday returns true if t is Mon–Fri in New York.
func IsWeekday(t time.Time) bool {
	wd := t.In(NewYork).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not an exchange holiday.
func IsTradingDay(t time.Time) bool {
	return IsWeekday(t) && !IsHoliday(t)
}

// Phase returns the session phase at t. Non-trading days are entirely
// EXTENDED_HOURS_MARKET.
func Phase(t time.Time) model.SessionPhase {
	if !IsTradingDay(t) {
		return model.SessionExtended
	}
	_, hm := local(t)
	regClose, postClose := RegularClose, PostClose
	if IsEarlyClose(t) {
		regClose, postClose = EarlyRegularClose, EarlyPostClose
	}
	switch {
	case hm >= PreOpen && hm < RegularOpen:
		return model.SessionPre
	case hm >= RegularOpen && hm < regClose:
		return model.SessionRegular
	case hm >= regClose && hm < postClose:
		return model.SessionPost
	default:
		return model.SessionExtended
	}
}

// IsMarketOpen returns true during the regular session.
func IsMarketOpen(t time.Time) bool {
	return Phase(t) == model.SessionRegular
}

// NextOpen returns the next regular-session open. If t is before today's
// open on a trading day, returns today's open.
func NextOpen(t time.Time) time.Time {
	ny, _ := local(t)

	todayOpen := time.Date(ny.Year(), ny.Month(), ny.Day(), 9, 30, 0, 0, NewYork)
	if ny.Before(todayOpen) && IsTradingDay(ny) {
		return todayOpen
	}

	d := ny
	for i := 0; i < 10; i++ { // weekends plus consecutive holidays
		d = time.Date(d.Year(), d.Month(), d.Day()+1, 12, 0, 0, 0, NewYork)
		if IsTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), 9, 30, 0, 0, NewYork)
		}
	}
	return time.Date(ny.Year(), ny.Month(), ny.Day()+1, 9, 30, 0, 0, NewYork)
}

// TodayClose returns today's regular-session close.
func TodayClose(t time.Time) time.Time {
	ny, _ := local(t)
	closeMin := RegularClose
	if IsEarlyClose(t) {
		closeMin = EarlyRegularClose
	}
	return time.Date(ny.Year(), ny.Month(), ny.Day(), closeMin/60, closeMin%60, 0, 0, NewYork)
}

// TimeUntilClose returns the duration until today's close, or 0 once past it.
func TimeUntilClose(t time.Time) time.Duration {
	d := TodayClose(t).Sub(t)
	if d < 0 {
		return 0
	}
	return d
}

// StatusString returns a human-readable market status.
func StatusString(t time.Time) string {
	if IsMarketOpen(t) {
		return fmt.Sprintf("Market Open, closes in %s", fmtDur(TimeUntilClose(t)))
	}
	next := NextOpen(t)
	ny := next.In(NewYork)
	return fmt.Sprintf("Market Closed (%s), opens %s %s (%s)",
		Phase(t), ny.Weekday().String()[:3], ny.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
