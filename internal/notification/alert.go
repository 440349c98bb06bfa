package notification

import (
	"strings"

	"github.com/shopspring/decimal"

	"tickerwatch/internal/model"
)

// AlertFromAnalysis formats a technical alert for symbol: price and percent
// change, the met criteria, the headline indicators and the signals.
func AlertFromAnalysis(symbol string, price, change float64, ind model.IndicatorSnapshot, met []string) Alert {
	var b strings.Builder
	sign := ""
	if change >= 0 {
		sign = "+"
	}
	b.WriteString("Technical Analysis Alert for " + symbol + "\n")
	b.WriteString("Current Price: $" + fixed2(price) + " (" + sign + fixed2(change) + "%)\n\n")

	b.WriteString("Alert Triggered - The following technical conditions have been met:\n")
	b.WriteString(strings.Join(met, ", ") + "\n\n")

	b.WriteString("Technical Indicators:\n")
	for _, row := range []struct {
		label string
		v     *float64
	}{
		{"Stochastic K", ind.StochasticK},
		{"Stochastic D", ind.StochasticD},
		{"RSI", ind.RSI},
		{"EMA 5", ind.EMA5},
		{"EMA 10", ind.EMA10},
		{"EMA 20", ind.EMA20},
		{"MACD", ind.MACD},
	} {
		b.WriteString("- " + row.label + ": " + orNA(row.v) + "\n")
	}

	if len(ind.Signals) > 0 {
		b.WriteString("\nTrading Signals:\n")
		for _, s := range ind.Signals {
			b.WriteString("- " + s + "\n")
		}
	}

	level := AlertInfo
	if ind.Synthetic {
		level = AlertWarning
		b.WriteString("\nIndicator values are synthetic: no price history was available.\n")
	}

	return Alert{
		Level:   level,
		Symbol:  symbol,
		Title:   "Technical Alert: " + symbol + " at $" + fixed2(price),
		Message: b.String(),
	}
}

func fixed2(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func orNA(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fixed2(*v)
}
