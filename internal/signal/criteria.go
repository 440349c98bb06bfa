package signal

import (
	"github.com/shopspring/decimal"

	"tickerwatch/internal/model"
)

// DefaultCriteria returns RSI below 30, Stochastic %K below 20, positive
// MACD and EMA5 > EMA10 > EMA20.
func DefaultCriteria() model.AlertCriteria {
	return model.AlertCriteria{
		RSIThreshold:                model.Float(30),
		StochasticOversoldThreshold: model.Float(20),
		MACDPositive:                true,
		EMAAlignment:                true,
	}
}

// check is one criterion: enabled when configured and its indicators are
// present, satisfied when the condition holds.
type check struct {
	enabled   bool
	satisfied bool
	describe  func() string
}

func checks(s model.IndicatorSnapshot, c model.AlertCriteria) []check {
	return []check{
		{
			enabled:   c.RSIThreshold != nil && s.RSI != nil,
			satisfied: c.RSIThreshold != nil && s.RSI != nil && *s.RSI < *c.RSIThreshold,
			describe: func() string {
				return "RSI is " + fixed(*s.RSI) + ", below oversold threshold of " + plain(*c.RSIThreshold)
			},
		},
		{
			enabled:   c.MACDPositive && s.MACD != nil,
			satisfied: c.MACDPositive && s.MACD != nil && *s.MACD > 0,
			describe: func() string {
				return "MACD is positive at " + fixed(*s.MACD) + ", indicating upward momentum"
			},
		},
		{
			enabled:   c.EMAAlignment && s.EMA5 != nil && s.EMA10 != nil && s.EMA20 != nil,
			satisfied: c.EMAAlignment && s.EMA5 != nil && s.EMA10 != nil && s.EMA20 != nil && *s.EMA5 > *s.EMA10 && *s.EMA10 > *s.EMA20,
			describe: func() string {
				return "EMAs show uptrend pattern: EMA5 (" + fixed(*s.EMA5) + ") > EMA10 (" + fixed(*s.EMA10) + ") > EMA20 (" + fixed(*s.EMA20) + ")"
			},
		},
		{
			enabled:   c.StochasticOversoldThreshold != nil && s.StochasticK != nil,
			satisfied: c.StochasticOversoldThreshold != nil && s.StochasticK != nil && *s.StochasticK < *c.StochasticOversoldThreshold,
			describe: func() string {
				return "Stochastic K is " + fixed(*s.StochasticK) + ", below oversold threshold of " + plain(*c.StochasticOversoldThreshold)
			},
		},
	}
}

// MeetsCriteria reports whether at least half of the enabled criteria are
// satisfied. With nothing enabled it is false.
func MeetsCriteria(s model.IndicatorSnapshot, c model.AlertCriteria) bool {
	enabled, satisfied := 0, 0
	for _, ch := range checks(s, c) {
		if !ch.enabled {
			continue
		}
		enabled++
		if ch.satisfied {
			satisfied++
		}
	}
	return enabled > 0 && float64(satisfied)/float64(enabled) >= 0.5
}

// MetCriteria describes each enabled criterion that is satisfied.
func MetCriteria(s model.IndicatorSnapshot, c model.AlertCriteria) []string {
	var out []string
	for _, ch := range checks(s, c) {
		if ch.enabled && ch.satisfied {
			out = append(out, ch.describe())
		}
	}
	return out
}

func fixed(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func plain(v float64) string {
	return decimal.NewFromFloat(v).String()
}
