package indicator

import (
	"math/rand/v2"
	"sync"
	"time"

	"tickerwatch/internal/model"
	"tickerwatch/internal/signal"
)

// Periods configures the indicators the engine computes.
type Periods struct {
	EMA        [4]int // surfaced as EMA5, EMA10, EMA20, EMA50
	RSI        int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
	StochK     int
	StochD     int
}

// DefaultPeriods returns the standard periods: EMA 5/10/20/50, RSI 14,
// MACD 12/26/9 and Stochastic 14/3.
func DefaultPeriods() Periods {
	return Periods{
		EMA:        [4]int{5, 10, 20, 50},
		RSI:        14,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		StochK:     14,
		StochD:     3,
	}
}

// Engine turns daily bars into an IndicatorSnapshot. Compute is pure and
// safe for concurrent use; Synthetic serializes access to its random source.
type Engine struct {
	periods Periods

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewEngine creates an engine. A nil rnd is seeded from the clock.
func NewEngine(periods Periods, rnd *rand.Rand) *Engine {
	if rnd == nil {
		now := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(now, now>>17))
	}
	return &Engine{periods: periods, rnd: rnd}
}

// Compute calculates the latest value of every indicator from bars (ascending
// dates) and derives the textual signals. Indicators without enough history
// are nil.
func (e *Engine) Compute(symbol string, price float64, bars []model.HistoricalBar) model.IndicatorSnapshot {
	p := e.periods
	closes := model.Closes(bars)

	snap := model.IndicatorSnapshot{
		Symbol:       symbol,
		CurrentPrice: price,
		EMA5:         model.Last(EMASeries(closes, p.EMA[0])),
		EMA10:        model.Last(EMASeries(closes, p.EMA[1])),
		EMA20:        model.Last(EMASeries(closes, p.EMA[2])),
		EMA50:        model.Last(EMASeries(closes, p.EMA[3])),
		RSI:          model.Last(RSISeries(bars, p.RSI)),
		Bars:         len(bars),
	}

	macd := MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	snap.MACD = model.Last(macd.Line)
	snap.MACDSignal = model.Last(macd.Signal)
	snap.MACDHistogram = model.Last(macd.Histogram)

	stoch := Stochastic(bars, p.StochK, p.StochD)
	snap.StochasticK = model.Last(stoch.K)
	snap.StochasticD = model.Last(stoch.D)

	snap.Signals = signal.Generate(snap)
	return snap
}

// Synthetic returns randomized but plausible indicator values around price,
// marked Synthetic. It stands in for Compute when no history is available.
func (e *Engine) Synthetic(symbol string, price float64) model.IndicatorSnapshot {
	e.mu.Lock()
	between := func(lo, hi float64) *float64 {
		return model.Float(lo + e.rnd.Float64()*(hi-lo))
	}
	snap := model.IndicatorSnapshot{
		Symbol:        symbol,
		CurrentPrice:  price,
		StochasticK:   between(10, 90),
		StochasticD:   between(10, 90),
		EMA5:          model.Float(price * *between(0.98, 1.02)),
		EMA10:         model.Float(price * *between(0.97, 1.03)),
		EMA20:         model.Float(price * *between(0.96, 1.04)),
		EMA50:         model.Float(price * *between(0.95, 1.05)),
		RSI:           between(30, 70),
		MACD:          between(-1, 1),
		MACDSignal:    between(-1, 1),
		MACDHistogram: between(-0.5, 0.5),
		Synthetic:     true,
	}
	e.mu.Unlock()

	snap.Signals = signal.Generate(snap)
	return snap
}
