// Package signal derives textual trading signals, alert criteria decisions
// and a technical-only recommendation from an IndicatorSnapshot.
package signal

import "tickerwatch/internal/model"

// NoSignal is emitted when no rule applies.
const NoSignal = "No clear technical signals detected"

// Generate evaluates the signal rules in a fixed order. Rules whose inputs
// are nil are skipped. The result is never empty.
func Generate(s model.IndicatorSnapshot) []string {
	var out []string

	if s.StochasticK != nil && s.StochasticD != nil {
		k, d := *s.StochasticK, *s.StochasticD
		if k < 20 && d < 20 {
			out = append(out, "Stochastic indicates oversold conditions (below 20)")
		} else if k > 80 && d > 80 {
			out = append(out, "Stochastic indicates overbought conditions (above 80)")
		}
		if k > d {
			out = append(out, "Stochastic K crossed above D (potential bullish signal)")
		}
	}

	if s.EMA5 != nil && s.EMA10 != nil {
		if *s.EMA5 > *s.EMA10 {
			out = append(out, "EMA 5 is above EMA 10 (bullish trend)")
		} else {
			out = append(out, "EMA 5 is below EMA 10 (bearish trend)")
		}
	}
	if s.EMA10 != nil && s.EMA20 != nil {
		if *s.EMA10 > *s.EMA20 {
			out = append(out, "EMA 10 is above EMA 20 (bullish trend)")
		} else {
			out = append(out, "EMA 10 is below EMA 20 (bearish trend)")
		}
	}

	if s.RSI != nil {
		if *s.RSI < 30 {
			out = append(out, "RSI below 30 (oversold conditions)")
		} else if *s.RSI > 70 {
			out = append(out, "RSI above 70 (overbought conditions)")
		}
	}

	if s.MACD != nil && s.MACDSignal != nil && s.MACDHistogram != nil {
		if *s.MACDHistogram > 0 {
			out = append(out, "MACD Histogram is positive (bullish momentum)")
		} else {
			out = append(out, "MACD Histogram is negative (bearish momentum)")
		}
		switch {
		case *s.MACD > *s.MACDSignal:
			out = append(out, "MACD crossed above Signal line (bullish crossover)")
		case *s.MACD < *s.MACDSignal:
			out = append(out, "MACD crossed below Signal line (bearish crossover)")
		}
	}

	if len(out) == 0 {
		out = append(out, NoSignal)
	}
	return out
}
