package indicator

import (
	"math"
	"math/rand/v2"
	"testing"
)

func seededEngine() *Engine {
	return NewEngine(DefaultPeriods(), rand.New(rand.NewPCG(1, 2)))
}

func TestEngine_ComputeFullHistory(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 5*math.Sin(float64(i)/4)
	}
	snap := seededEngine().Compute("AAPL", 101, barsFromCloses(closes...))

	if snap.Symbol != "AAPL" || snap.CurrentPrice != 101 || snap.Bars != 60 || snap.Synthetic {
		t.Fatalf("unexpected header %+v", snap)
	}
	for name, v := range map[string]*float64{
		"EMA5": snap.EMA5, "EMA10": snap.EMA10, "EMA20": snap.EMA20, "EMA50": snap.EMA50,
		"RSI": snap.RSI, "MACD": snap.MACD, "MACDSignal": snap.MACDSignal,
		"MACDHistogram": snap.MACDHistogram, "StochasticK": snap.StochasticK, "StochasticD": snap.StochasticD,
	} {
		if v == nil {
			t.Errorf("%s should be set with 60 bars", name)
		}
	}
	want := EMASeries(closes, 20)
	assertClose(t, "EMA20", *snap.EMA20, want[len(want)-1], 1e-12)
	if len(snap.Signals) == 0 {
		t.Error("signals should never be empty")
	}
}

func TestEngine_ComputeShortHistory(t *testing.T) {
	snap := seededEngine().Compute("X", 10, barsFromCloses(ramp(10, 12, 1)...))

	if snap.EMA5 == nil || snap.EMA10 == nil {
		t.Fatal("EMA5 and EMA10 should be set with 12 bars")
	}
	if snap.EMA20 != nil || snap.EMA50 != nil || snap.RSI != nil || snap.MACD != nil {
		t.Fatalf("long-period indicators should be nil: %+v", snap)
	}
	if snap.StochasticK != nil {
		t.Fatal("stochastic needs 14 bars")
	}
}

func TestEngine_ComputeNoHistory(t *testing.T) {
	snap := seededEngine().Compute("X", 10, nil)
	if snap.EMA5 != nil || snap.RSI != nil {
		t.Fatal("no history should give nil indicators")
	}
	if len(snap.Signals) != 1 || snap.Signals[0] != "No clear technical signals detected" {
		t.Fatalf("signals = %v", snap.Signals)
	}
}

func TestEngine_SyntheticRanges(t *testing.T) {
	e := seededEngine()
	for i := 0; i < 200; i++ {
		s := e.Synthetic("X", 200)
		if !s.Synthetic {
			t.Fatal("synthetic snapshot must be marked")
		}
		inRange := func(name string, v *float64, lo, hi float64) {
			t.Helper()
			if v == nil || *v < lo || *v > hi {
				t.Fatalf("%s = %v, want within [%v,%v]", name, v, lo, hi)
			}
		}
		inRange("K", s.StochasticK, 10, 90)
		inRange("D", s.StochasticD, 10, 90)
		inRange("EMA5", s.EMA5, 196, 204)
		inRange("EMA10", s.EMA10, 194, 206)
		inRange("EMA20", s.EMA20, 192, 208)
		inRange("EMA50", s.EMA50, 190, 210)
		inRange("RSI", s.RSI, 30, 70)
		inRange("MACD", s.MACD, -1, 1)
		inRange("Signal", s.MACDSignal, -1, 1)
		inRange("Histogram", s.MACDHistogram, -0.5, 0.5)
		if len(s.Signals) == 0 {
			t.Fatal("synthetic snapshot should carry signals")
		}
	}
}
