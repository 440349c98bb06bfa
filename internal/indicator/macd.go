package indicator

// MACDResult holds the three MACD series. Signal and Histogram are aligned
// with the tail of Line: Histogram[i] == Line[i+Offset()] - Signal[i].
type MACDResult struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// Offset is the index in Line that Signal[0] corresponds to.
func (m MACDResult) Offset() int {
	return len(m.Line) - len(m.Signal)
}

// MACD computes the MACD line (fast EMA minus slow EMA, with the fast series
// shifted by slow-fast so both cover the same dates), its signal EMA and the
// histogram. Everything is empty when len(series) <= slow. When the line is
// shorter than signal, only the line is returned.
func MACD(series []float64, fast, slow, signal int) MACDResult {
	if fast <= 0 || slow <= fast || len(series) <= slow {
		return MACDResult{}
	}
	fastEMA := EMASeries(series, fast)
	slowEMA := EMASeries(series, slow)
	if len(fastEMA) == 0 || len(slowEMA) == 0 {
		return MACDResult{}
	}

	shift := slow - fast
	line := make([]float64, len(slowEMA))
	for j := range slowEMA {
		line[j] = fastEMA[j+shift] - slowEMA[j]
	}

	res := MACDResult{Line: line}
	if signal <= 0 || len(line) < signal {
		return res
	}
	res.Signal = EMASeries(line, signal)

	off := res.Offset()
	res.Histogram = make([]float64, len(res.Signal))
	for i, s := range res.Signal {
		res.Histogram[i] = line[i+off] - s
	}
	return res
}
