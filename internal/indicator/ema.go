package indicator

// EMA calculates Exponential Moving Average, seeded with the mean of the
// first period values. O(1) per update.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return "EMA" }

func (e *EMA) Update(price float64) {
	e.count++

	if e.count <= e.period {
		// Accumulate for initial SMA seed
		e.sum += price
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	e.current = e.current + (price-e.current)*e.multiplier
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.period > 0 && e.count >= e.period }

// EMASeries returns the EMA of series for every index from period-1 on.
// Empty when period <= 0 or period > len(series).
func EMASeries(series []float64, period int) []float64 {
	if period <= 0 || period > len(series) {
		return nil
	}
	return replay(NewEMA(period), series)
}
