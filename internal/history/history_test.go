package history

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"tickerwatch/internal/model"
)

const chartJSON = `{"chart":{"result":[{
  "timestamp":[1700172800,1700000000,1700086400,1700259200],
  "indicators":{"quote":[{
    "open":  [103, 101, null, 104],
    "high":  [104, 102, 103, 105],
    "low":   [102, 100, 101, 103],
    "close": [103.5, 101.5, 102.5, 104.5],
    "volume":[1000, 2000, 3000, null]
  }]}
}],"error":null}}`

func TestYahoo_FiltersNullAndSorts(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Write([]byte(chartJSON))
	}))
	defer srv.Close()

	bars, err := NewYahoo(srv.URL, time.Second).Bars(context.Background(), "AAPL", 60)
	if err != nil {
		t.Fatalf("bars: %v", err)
	}
	if gotPath != "/v8/finance/chart/AAPL" || !strings.Contains(gotQuery, "range=60d") || !strings.Contains(gotQuery, "interval=1d") {
		t.Fatalf("unexpected request %s?%s", gotPath, gotQuery)
	}
	if len(bars) != 3 {
		t.Fatalf("expected 3 bars after dropping the null one, got %d", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i-1].Date.Before(bars[i].Date) {
			t.Fatalf("bars not ascending: %v then %v", bars[i-1].Date, bars[i].Date)
		}
	}
	if bars[0].Close != 101.5 || bars[2].Close != 104.5 {
		t.Fatalf("unexpected closes %v %v", bars[0].Close, bars[2].Close)
	}
	if bars[2].Volume != 0 {
		t.Fatalf("null volume should be 0, got %v", bars[2].Volume)
	}
}

func TestYahoo_Errors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		noBars bool
	}{
		{"status", http.StatusTooManyRequests, `{}`, false},
		{"api error", http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`, false},
		{"empty result", http.StatusOK, `{"chart":{"result":[],"error":null}}`, true},
		{"all null", http.StatusOK, `{"chart":{"result":[{"timestamp":[1],"indicators":{"quote":[{"open":[null],"high":[1],"low":[1],"close":[1]}]}}]}}`, true},
		{"garbage", http.StatusOK, `not json`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewYahoo(srv.URL, time.Second).Bars(context.Background(), "X", 60)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.noBars != errors.Is(err, ErrNoBars) {
				t.Fatalf("errors.Is(ErrNoBars) = %v for %v", !tc.noBars, err)
			}
		})
	}
}

type fakeAlpaca struct {
	req  marketdata.GetBarsRequest
	bars []marketdata.Bar
	err  error
}

func (f *fakeAlpaca) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.req = req
	return f.bars, f.err
}

func TestAlpaca_ConvertsBars(t *testing.T) {
	now := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	fake := &fakeAlpaca{bars: []marketdata.Bar{
		{Timestamp: now.AddDate(0, 0, -1), Open: 11, High: 12, Low: 10, Close: 11.5, Volume: 500},
		{Timestamp: now.AddDate(0, 0, -2), Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 400},
	}}
	a := NewAlpacaWithClient(fake)
	a.now = func() time.Time { return now }

	bars, err := a.Bars(context.Background(), "AAPL", 60)
	if err != nil {
		t.Fatal(err)
	}
	if fake.req.TimeFrame != marketdata.OneDay || !fake.req.Start.Equal(now.AddDate(0, 0, -60)) || !fake.req.End.Equal(now) {
		t.Fatalf("unexpected request %+v", fake.req)
	}
	if len(bars) != 2 || bars[0].Close != 10.5 || bars[1].Volume != 500 {
		t.Fatalf("unexpected bars %+v", bars)
	}
}

func TestAlpaca_EmptyAndError(t *testing.T) {
	if _, err := NewAlpacaWithClient(&fakeAlpaca{}).Bars(context.Background(), "X", 5); !errors.Is(err, ErrNoBars) {
		t.Fatalf("expected ErrNoBars, got %v", err)
	}
	boom := errors.New("boom")
	if _, err := NewAlpacaWithClient(&fakeAlpaca{err: boom}).Bars(context.Background(), "X", 5); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

type stubProvider struct {
	calls int
	bars  []model.HistoricalBar
	err   error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Bars(ctx context.Context, symbol string, days int) ([]model.HistoricalBar, error) {
	s.calls++
	return s.bars, s.err
}

func TestGuarded_TripsOnEmptyAnswers(t *testing.T) {
	stub := &stubProvider{}
	var states []int
	g := NewGuarded(stub, BreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Hour}, nil,
		func(s int) { states = append(states, s) })

	for i := 0; i < 5; i++ {
		if _, err := g.Bars(context.Background(), "X", 60); !errors.Is(err, ErrNoBars) {
			t.Fatalf("call %d: expected ErrNoBars, got %v", i, err)
		}
	}
	if g.State() != 2 {
		t.Fatalf("breaker should be open, state=%d", g.State())
	}
	if len(states) != 1 || states[0] != 2 {
		t.Fatalf("state changes = %v", states)
	}

	_, err := g.Bars(context.Background(), "X", 60)
	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("expected ErrBreakerOpen, got %v", err)
	}
	if stub.calls != 5 {
		t.Fatalf("open breaker must not call the provider, calls=%d", stub.calls)
	}
}

func TestGuarded_PassesBars(t *testing.T) {
	stub := &stubProvider{bars: []model.HistoricalBar{{Close: 1}}}
	g := NewGuarded(stub, DefaultBreakerConfig(), nil, nil)
	bars, err := g.Bars(context.Background(), "X", 60)
	if err != nil || len(bars) != 1 {
		t.Fatalf("bars=%v err=%v", bars, err)
	}
	if g.Name() != "stub" {
		t.Fatalf("name = %s", g.Name())
	}
}
