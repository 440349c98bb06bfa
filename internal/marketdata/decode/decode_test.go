package decode

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"tickerwatch/internal/marketdata/yaticker"
	"tickerwatch/internal/model"
)

var fixedNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func newTestDecoder() *Decoder {
	return &Decoder{Now: func() time.Time { return fixedNow }}
}

func record(t *yaticker.Ticker) string {
	return base64.StdEncoding.EncodeToString(yaticker.Marshal(t))
}

func TestDecode_Heartbeat(t *testing.T) {
	res := newTestDecoder().Decode([]byte(`{"type":"heartbeat"}`), KindText)
	if res.Tag != model.ClassHeartbeat || res.Snapshot != nil || res.Err != nil {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDecode_Pricing(t *testing.T) {
	msg := record(&yaticker.Ticker{ID: "AAPL", Price: 190, MarketHours: 1, Change: 1.5, ChangePercent: 0.8})
	res := newTestDecoder().Decode([]byte(`{"type":"pricing","message":"`+msg+`"}`), KindText)

	if res.Tag != model.ClassPricing || res.Err != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	s := res.Snapshot
	if s == nil || s.ID != "AAPL" || s.Price != 190 || s.Session != model.SessionRegular {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if s.Change != 1.5 {
		t.Fatalf("change = %v, want 1.5", s.Change)
	}
}

func TestDecode_PricingUndecodable(t *testing.T) {
	res := newTestDecoder().Decode([]byte(`{"type":"pricing","message":"!!!not base64!!!"}`), KindText)
	if res.Tag != model.ClassDecodeError || res.Snapshot != nil {
		t.Fatalf("expected DECODE_ERROR, got %+v", res)
	}
	if !errors.Is(res.Err, ErrBase64) {
		t.Fatalf("expected ErrBase64, got %v", res.Err)
	}
}

func TestDecode_PricingWithoutMessageIsOther(t *testing.T) {
	res := newTestDecoder().Decode([]byte(`{"type":"pricing","message":42}`), KindText)
	if res.Tag != model.ClassJSONOther {
		t.Fatalf("expected JSON_OTHER, got %+v", res)
	}
}

func TestDecode_JSONOther(t *testing.T) {
	res := newTestDecoder().Decode([]byte(`{"type":"status","data":{"ok":true}}`), KindText)
	if res.Tag != model.ClassJSONOther || res.Snapshot != nil || res.Err != nil {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDecode_NonObjectJSONIsOther(t *testing.T) {
	for _, text := range []string{`1234`, `"abcd"`, `[1,2]`, `true`, `null`, ` {"a":1} `} {
		res := newTestDecoder().Decode([]byte(text), KindText)
		if res.Tag != model.ClassJSONOther || res.Err != nil || res.Snapshot != nil {
			t.Errorf("%s: expected JSON_OTHER, got %+v", text, res)
		}
	}
}

func TestDecode_LegacyBase64(t *testing.T) {
	text := record(&yaticker.Ticker{ID: "MSFT", Price: 410})
	res := newTestDecoder().Decode([]byte(text), KindText)
	if res.Tag != model.ClassLegacyBase64 || res.Snapshot == nil || res.Snapshot.ID != "MSFT" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDecode_LegacyUnpadded(t *testing.T) {
	text := strings.TrimRight(record(&yaticker.Ticker{ID: "NVDA", Price: 900}), "=")
	res := newTestDecoder().Decode([]byte(text), KindText)
	if res.Tag != model.ClassLegacyBase64 || res.Snapshot == nil {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDecode_GarbageText(t *testing.T) {
	res := newTestDecoder().Decode([]byte("hello, world"), KindText)
	if res.Tag != model.ClassDecodeError || res.Err == nil || res.Snapshot != nil {
		t.Fatalf("expected DECODE_ERROR, got %+v", res)
	}
}

func TestDecode_Binary(t *testing.T) {
	b := yaticker.Marshal(&yaticker.Ticker{ID: "TSLA", Price: 250, MarketHours: 2})
	res := newTestDecoder().Decode(b, KindBinary)
	if res.Tag != model.ClassBinary || res.Snapshot == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Snapshot.Session != model.SessionPost {
		t.Fatalf("session = %s, want POST", res.Snapshot.Session)
	}
}

func TestDecode_BinaryEmptyID(t *testing.T) {
	b := yaticker.Marshal(&yaticker.Ticker{Price: 250})
	res := newTestDecoder().Decode(b, KindBinary)
	if res.Tag != model.ClassDecodeError || !errors.Is(res.Err, ErrEmptyID) {
		t.Fatalf("expected empty-id DECODE_ERROR, got %+v", res)
	}
}

func TestDecode_BinaryGarbage(t *testing.T) {
	res := newTestDecoder().Decode([]byte{0xff, 0xff, 0xff}, KindBinary)
	if res.Tag != model.ClassDecodeError || res.Snapshot != nil {
		t.Fatalf("expected DECODE_ERROR, got %+v", res)
	}
}

func TestDecode_NonFiniteRejected(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	tests := []struct {
		name string
		tk   yaticker.Ticker
	}{
		{"nan price", yaticker.Ticker{ID: "AAPL", Price: nan}},
		{"inf price", yaticker.Ticker{ID: "AAPL", Price: inf}},
		{"nan day high", yaticker.Ticker{ID: "AAPL", Price: 1, DayHigh: nan}},
		{"inf previous close", yaticker.Ticker{ID: "AAPL", Price: 1, PreviousClose: -inf}},
		{"nan change percent", yaticker.Ticker{ID: "AAPL", Price: 1, ChangePercent: nan}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestDecoder().Decode(yaticker.Marshal(&tt.tk), KindBinary)
			if res.Tag != model.ClassDecodeError || !errors.Is(res.Err, ErrNonFinite) || res.Snapshot != nil {
				t.Fatalf("expected non-finite DECODE_ERROR, got %+v", res)
			}
		})
	}
}

func TestDecode_SnapshotAlwaysEncodes(t *testing.T) {
	res := newTestDecoder().Decode(yaticker.Marshal(&yaticker.Ticker{ID: "AAPL", Price: 190.5}), KindBinary)
	if res.Snapshot == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	b, err := res.Snapshot.JSON()
	if err != nil || len(b) == 0 {
		t.Fatalf("JSON() = %q, %v", b, err)
	}
}

func TestNormalize_Defaults(t *testing.T) {
	s, err := Normalize(&yaticker.Ticker{ID: "IBM", Price: 100, MarketHours: 9}, fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	if s.Currency != "USD" || s.ShortName != "IBM" {
		t.Errorf("currency=%q shortName=%q", s.Currency, s.ShortName)
	}
	if s.DayHigh != 100 || s.DayLow != 100 || s.Open != 100 || s.PreviousClose != 100 {
		t.Errorf("missing range fields should default to price: %+v", s)
	}
	if s.Session != model.SessionRegular {
		t.Errorf("out-of-range session should be REGULAR, got %s", s.Session)
	}
	if !s.Time.Equal(fixedNow) {
		t.Errorf("zero time should become receipt time, got %v", s.Time)
	}
}

func TestNormalize_TimeUnits(t *testing.T) {
	sec := fixedNow.Add(-time.Minute)

	s, _ := Normalize(&yaticker.Ticker{ID: "A", Time: sec.Unix()}, fixedNow)
	if !s.Time.Equal(sec) {
		t.Errorf("seconds: got %v, want %v", s.Time, sec)
	}
	s, _ = Normalize(&yaticker.Ticker{ID: "A", Time: sec.UnixMilli()}, fixedNow)
	if !s.Time.Equal(sec) {
		t.Errorf("millis: got %v, want %v", s.Time, sec)
	}
}

func TestNormalize_FutureClamped(t *testing.T) {
	future := fixedNow.Add(25 * time.Hour)
	s, _ := Normalize(&yaticker.Ticker{ID: "A", Time: future.UnixMilli()}, fixedNow)
	if !s.Time.Equal(fixedNow) {
		t.Fatalf("far-future time should clamp to receipt, got %v", s.Time)
	}

	near := fixedNow.Add(23 * time.Hour)
	s, _ = Normalize(&yaticker.Ticker{ID: "A", Time: near.UnixMilli()}, fixedNow)
	if !s.Time.Equal(near) {
		t.Fatalf("time within 24h should be kept, got %v", s.Time)
	}
}

func TestFrame_Materialize(t *testing.T) {
	f := DeferredReader(strings.NewReader(`{"type":"heartbeat"}`))
	b, err := f.Materialize(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"type":"heartbeat"}` {
		t.Fatalf("materialized %q", b)
	}

	failing := Deferred(func(context.Context) ([]byte, error) { return nil, errors.New("boom") })
	if _, err := failing.Materialize(context.Background()); err == nil {
		t.Fatal("expected materialization error")
	}
}

func TestFrame_MaterializeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := Deferred(func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if _, err := f.Materialize(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLogged_PassesThrough(t *testing.T) {
	l := Logged(newTestDecoder(), nil)
	res := l.Decode([]byte(`{"type":"heartbeat"}`), KindText)
	if res.Tag != model.ClassHeartbeat {
		t.Fatalf("unexpected tag %s", res.Tag)
	}
}

func TestLogged_LevelByTag(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantTag  model.Classification
		wantWarn bool
	}{
		{"decode error", "not json!!", model.ClassDecodeError, true},
		{"heartbeat", `{"type":"heartbeat"}`, model.ClassHeartbeat, false},
		{"json other", `[1,2]`, model.ClassJSONOther, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			res := Logged(newTestDecoder(), log).Decode([]byte(tt.data), KindText)
			if res.Tag != tt.wantTag {
				t.Fatalf("tag = %s, want %s", res.Tag, tt.wantTag)
			}
			if got := strings.Contains(buf.String(), "level=WARN"); got != tt.wantWarn {
				t.Fatalf("warn logged = %v, want %v: %s", got, tt.wantWarn, buf.String())
			}
		})
	}
}
