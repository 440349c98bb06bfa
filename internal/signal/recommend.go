package signal

import (
	"fmt"
	"strings"
)

// Recommendation is a technical-only buy/hold call.
type Recommendation struct {
	Sentiment   string `json:"sentiment"`
	Explanation string `json:"explanation"`
	Buy         bool   `json:"buy_recommendation"`
	Bullish     int    `json:"bullish_signals"`
	Bearish     int    `json:"bearish_signals"`
}

// Recommend counts bullish (bullish or oversold) against bearish (bearish or
// overbought) signals and recommends buying when bullish ones outnumber them.
func Recommend(signals []string) Recommendation {
	var bull, bear int
	for _, s := range signals {
		l := strings.ToLower(s)
		if strings.Contains(l, "bullish") || strings.Contains(l, "oversold") {
			bull++
		}
		if strings.Contains(l, "bearish") || strings.Contains(l, "overbought") {
			bear++
		}
	}
	r := Recommendation{
		Sentiment:   "negative",
		Explanation: fmt.Sprintf("Based on technical analysis (%d bullish vs %d bearish signals).", bull, bear),
		Buy:         bull > bear,
		Bullish:     bull,
		Bearish:     bear,
	}
	if r.Buy {
		r.Sentiment = "positive"
	}
	return r
}
