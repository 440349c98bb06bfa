package indicator

import "tickerwatch/internal/model"

// rsiEpsilon floors the average loss so a run without losses stays finite.
const rsiEpsilon = 0.001

// RSI calculates the Relative Strength Index using Wilder's smoothing method.
// Update is O(1) per price.
type RSI struct {
	period    int
	count     int
	prevClose float64
	avgGain   float64
	avgLoss   float64
	current   float64
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string { return "RSI" }

func (r *RSI) Update(price float64) {
	r.count++

	if r.count == 1 {
		// First price: no delta yet
		r.prevClose = price
		return
	}

	gain, loss := split(price - r.prevClose)
	r.prevClose = price

	if r.count <= r.period+1 {
		// Accumulation phase: build initial averages
		r.avgGain += gain
		r.avgLoss += loss

		if r.count == r.period+1 {
			r.avgGain /= float64(r.period)
			r.avgLoss /= float64(r.period)
			r.current = rsiValue(r.avgGain, r.avgLoss)
		}
		return
	}

	// Wilder's smoothing: avgGain = (prevAvgGain * (period-1) + gain) / period
	p := float64(r.period)
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
	r.current = rsiValue(r.avgGain, r.avgLoss)
}

func (r *RSI) Value() float64 { return r.current }
func (r *RSI) Ready() bool    { return r.period > 0 && r.count > r.period }

func split(delta float64) (gain, loss float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

func rsiValue(avgGain, avgLoss float64) float64 {
	rs := avgGain / max(avgLoss, rsiEpsilon)
	return 100.0 - (100.0 / (1.0 + rs))
}

// RSISeries returns the RSI of the bars' closes. Empty when there are
// fewer than period+1 bars.
func RSISeries(bars []model.HistoricalBar, period int) []float64 {
	if period <= 0 || len(bars) < period+1 {
		return nil
	}
	return replay(NewRSI(period), model.Closes(bars))
}
