package indicator

import "tickerwatch/internal/model"

// StochasticResult holds %K and its %D smoothing.
type StochasticResult struct {
	K []float64
	D []float64
}

// Stochastic computes %K over a trailing kPeriod window of highs and lows
// for every bar from kPeriod-1 on; a flat window (high == low) yields 50.
// %D is the dPeriod SMA of %K and is empty when there are fewer than
// dPeriod %K values.
func Stochastic(bars []model.HistoricalBar, kPeriod, dPeriod int) StochasticResult {
	if kPeriod <= 0 || len(bars) < kPeriod {
		return StochasticResult{}
	}

	ks := make([]float64, 0, len(bars)-kPeriod+1)
	for i := kPeriod - 1; i < len(bars); i++ {
		window := bars[i-kPeriod+1 : i+1]
		hi, lo := window[0].High, window[0].Low
		for _, b := range window[1:] {
			hi = max(hi, b.High)
			lo = min(lo, b.Low)
		}
		k := 50.0
		if hi != lo {
			k = (bars[i].Close - lo) / (hi - lo) * 100
			k = min(max(k, 0), 100) // close outside the bar range
		}
		ks = append(ks, k)
	}

	return StochasticResult{K: ks, D: SMASeries(ks, dPeriod)}
}
