package markethours

import (
	"strings"
	"testing"
	"time"

	"tickerwatch/internal/model"
)

func ny(year int, month time.Month, d, h, m int) time.Time {
	return time.Date(year, month, d, h, m, 0, 0, NewYork)
}

func TestPhase(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want model.SessionPhase
	}{
		{"before pre", ny(2026, 3, 4, 3, 59), model.SessionExtended},
		{"pre open", ny(2026, 3, 4, 4, 0), model.SessionPre},
		{"regular open", ny(2026, 3, 4, 9, 30), model.SessionRegular},
		{"last regular minute", ny(2026, 3, 4, 15, 59), model.SessionRegular},
		{"post", ny(2026, 3, 4, 16, 0), model.SessionPost},
		{"after post", ny(2026, 3, 4, 20, 0), model.SessionExtended},
		{"saturday midday", ny(2026, 3, 7, 12, 0), model.SessionExtended},
		{"good friday", ny(2026, 4, 3, 11, 0), model.SessionExtended},
		{"early close post", ny(2026, 11, 27, 13, 30), model.SessionPost},
		{"early close after post", ny(2026, 11, 27, 17, 0), model.SessionExtended},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Phase(tt.t); got != tt.want {
				t.Errorf("Phase(%v) = %s, want %s", tt.t, got, tt.want)
			}
		})
	}
}

func TestPhase_ConvertsFromUTC(t *testing.T) {
	// 14:30 UTC on a March weekday after the DST switch is 10:30 EDT.
	if got := Phase(time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)); got != model.SessionRegular {
		t.Fatalf("got %s, want REGULAR_MARKET", got)
	}
}

func TestIsTradingDay(t *testing.T) {
	if !IsTradingDay(ny(2026, 3, 4, 12, 0)) {
		t.Error("Wednesday should be a trading day")
	}
	if IsTradingDay(ny(2026, 3, 8, 12, 0)) {
		t.Error("Sunday should not be a trading day")
	}
	if IsTradingDay(ny(2026, 7, 3, 12, 0)) {
		t.Error("observed Independence Day should not be a trading day")
	}
	if !IsEarlyClose(ny(2026, 12, 24, 9, 0)) || IsEarlyClose(ny(2026, 12, 23, 9, 0)) {
		t.Error("early close calendar mismatch")
	}
}

func TestNextOpen(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{"before open same day", ny(2026, 3, 4, 8, 0), ny(2026, 3, 4, 9, 30)},
		{"after open rolls to tomorrow", ny(2026, 3, 4, 10, 0), ny(2026, 3, 5, 9, 30)},
		{"friday evening to monday", ny(2026, 3, 6, 18, 0), ny(2026, 3, 9, 9, 30)},
		{"thursday before good friday", ny(2026, 4, 2, 17, 0), ny(2026, 4, 6, 9, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextOpen(tt.from); !got.Equal(tt.want) {
				t.Errorf("NextOpen = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeUntilClose(t *testing.T) {
	if got := TimeUntilClose(ny(2026, 3, 4, 15, 0)); got != time.Hour {
		t.Errorf("got %v, want 1h", got)
	}
	if got := TimeUntilClose(ny(2026, 12, 24, 12, 0)); got != time.Hour {
		t.Errorf("early close: got %v, want 1h", got)
	}
	if got := TimeUntilClose(ny(2026, 3, 4, 17, 0)); got != 0 {
		t.Errorf("after close: got %v, want 0", got)
	}
}

func TestStatusString(t *testing.T) {
	if s := StatusString(ny(2026, 3, 4, 15, 0)); !strings.HasPrefix(s, "Market Open") {
		t.Errorf("got %q", s)
	}
	if s := StatusString(ny(2026, 3, 7, 12, 0)); !strings.Contains(s, "opens Mon 09:30") {
		t.Errorf("got %q", s)
	}
}
