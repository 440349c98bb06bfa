// Package indicator provides technical indicator calculations over price series.
//
// Streaming indicators implement the Indicator interface, receiving one price
// at a time. The series functions (EMA, SMA, RSI, MACD, Stochastic) replay a
// whole history through them and return every defined output, oldest first.
// An empty result means there was not enough history.
package indicator

// Indicator is the interface for streaming technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA", "EMA").
	Name() string

	// Update feeds the next price and recalculates.
	Update(price float64)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}

// replay feeds series through ind and collects Value() once ready.
func replay(ind Indicator, series []float64) []float64 {
	out := make([]float64, 0, len(series))
	for _, x := range series {
		ind.Update(x)
		if ind.Ready() {
			out = append(out, ind.Value())
		}
	}
	return out
}
