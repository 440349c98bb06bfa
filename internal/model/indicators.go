package model

// IndicatorSnapshot holds the most recent value of each indicator for one
// symbol. A nil field means there was not enough history to compute it.
type IndicatorSnapshot struct {
	Symbol        string   `json:"symbol"`
	CurrentPrice  float64  `json:"current_price"`
	EMA5          *float64 `json:"ema5"`
	EMA10         *float64 `json:"ema10"`
	EMA20         *float64 `json:"ema20"`
	EMA50         *float64 `json:"ema50"`
	RSI           *float64 `json:"rsi"`
	MACD          *float64 `json:"macd"`
	MACDSignal    *float64 `json:"macd_signal"`
	MACDHistogram *float64 `json:"macd_histogram"`
	StochasticK   *float64 `json:"stochastic_k"`
	StochasticD   *float64 `json:"stochastic_d"`
	Signals       []string `json:"signals"`

	// Synthetic marks randomized fallback values produced when no history
	// was available. Bars is the number of historical bars used.
	Synthetic bool `json:"synthetic"`
	Bars      int  `json:"bars"`
}

// AlertCriteria is the threshold policy for technical alerts. Nil thresholds
// and false flags are disabled.
type AlertCriteria struct {
	RSIThreshold                *float64 `json:"rsi_threshold,omitempty" yaml:"rsi_threshold"`
	StochasticOversoldThreshold *float64 `json:"stochastic_oversold_threshold,omitempty" yaml:"stochastic_oversold_threshold"`
	MACDPositive                bool     `json:"macd_positive" yaml:"macd_positive"`
	EMAAlignment                bool     `json:"ema_alignment" yaml:"ema_alignment"`
}

// Float returns a pointer to v, for building nullable indicator fields.
func Float(v float64) *float64 { return &v }

// Last returns a pointer to the final element of series, or nil if empty.
func Last(series []float64) *float64 {
	if len(series) == 0 {
		return nil
	}
	return Float(series[len(series)-1])
}
