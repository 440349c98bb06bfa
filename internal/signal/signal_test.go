package signal

import (
	"reflect"
	"testing"

	"tickerwatch/internal/model"
)

func f(v float64) *float64 { return &v }

func TestGenerate_NoIndicators(t *testing.T) {
	got := Generate(model.IndicatorSnapshot{})
	if !reflect.DeepEqual(got, []string{NoSignal}) {
		t.Fatalf("got %v", got)
	}
}

func TestGenerate_OrderAndTexts(t *testing.T) {
	s := model.IndicatorSnapshot{
		StochasticK: f(15), StochasticD: f(10),
		EMA5: f(105), EMA10: f(103), EMA20: f(104),
		RSI:  f(25),
		MACD: f(0.5), MACDSignal: f(0.2), MACDHistogram: f(0.3),
	}
	want := []string{
		"Stochastic indicates oversold conditions (below 20)",
		"Stochastic K crossed above D (potential bullish signal)",
		"EMA 5 is above EMA 10 (bullish trend)",
		"EMA 10 is below EMA 20 (bearish trend)",
		"RSI below 30 (oversold conditions)",
		"MACD Histogram is positive (bullish momentum)",
		"MACD crossed above Signal line (bullish crossover)",
	}
	if got := Generate(s); !reflect.DeepEqual(got, want) {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
}

func TestGenerate_Bearish(t *testing.T) {
	s := model.IndicatorSnapshot{
		StochasticK: f(85), StochasticD: f(90),
		RSI:  f(75),
		MACD: f(-0.5), MACDSignal: f(-0.2), MACDHistogram: f(-0.3),
	}
	want := []string{
		"Stochastic indicates overbought conditions (above 80)",
		"RSI above 70 (overbought conditions)",
		"MACD Histogram is negative (bearish momentum)",
		"MACD crossed below Signal line (bearish crossover)",
	}
	if got := Generate(s); !reflect.DeepEqual(got, want) {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
}

func TestGenerate_EqualMACDNoCrossover(t *testing.T) {
	s := model.IndicatorSnapshot{MACD: f(0.1), MACDSignal: f(0.1), MACDHistogram: f(0)}
	want := []string{"MACD Histogram is negative (bearish momentum)"}
	if got := Generate(s); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q", got)
	}
}

func TestGenerate_MACDNeedsAllThree(t *testing.T) {
	s := model.IndicatorSnapshot{MACD: f(1), MACDSignal: f(0.5)}
	if got := Generate(s); !reflect.DeepEqual(got, []string{NoSignal}) {
		t.Fatalf("got %q", got)
	}
}

func TestMeetsCriteria(t *testing.T) {
	cases := []struct {
		name string
		snap model.IndicatorSnapshot
		crit model.AlertCriteria
		want bool
	}{
		{
			name: "rsi only satisfied",
			snap: model.IndicatorSnapshot{RSI: f(25)},
			crit: model.AlertCriteria{RSIThreshold: f(30)},
			want: true,
		},
		{
			name: "two enabled none satisfied",
			snap: model.IndicatorSnapshot{RSI: f(50), MACD: f(-1)},
			crit: model.AlertCriteria{RSIThreshold: f(30), MACDPositive: true},
			want: false,
		},
		{
			name: "half satisfied fires",
			snap: model.IndicatorSnapshot{RSI: f(50), MACD: f(1)},
			crit: model.AlertCriteria{RSIThreshold: f(30), MACDPositive: true},
			want: true,
		},
		{
			name: "nothing enabled",
			snap: model.IndicatorSnapshot{RSI: f(10)},
			crit: model.AlertCriteria{},
			want: false,
		},
		{
			name: "configured but indicator missing",
			snap: model.IndicatorSnapshot{},
			crit: DefaultCriteria(),
			want: false,
		},
		{
			name: "ema alignment needs all three",
			snap: model.IndicatorSnapshot{EMA5: f(3), EMA10: f(2)},
			crit: model.AlertCriteria{EMAAlignment: true},
			want: false,
		},
		{
			name: "one of three",
			snap: model.IndicatorSnapshot{RSI: f(25), MACD: f(-1), EMA5: f(1), EMA10: f(2), EMA20: f(3)},
			crit: DefaultCriteria(),
			want: false,
		},
		{
			name: "stochastic and ema of four",
			snap: model.IndicatorSnapshot{RSI: f(45), MACD: f(-1), EMA5: f(3), EMA10: f(2), EMA20: f(1), StochasticK: f(12)},
			crit: DefaultCriteria(),
			want: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MeetsCriteria(tc.snap, tc.crit); got != tc.want {
				t.Errorf("MeetsCriteria = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMetCriteria_Descriptions(t *testing.T) {
	snap := model.IndicatorSnapshot{
		RSI: f(25.456), MACD: f(0.3), EMA5: f(12.5), EMA10: f(12.25), EMA20: f(12), StochasticK: f(15.1),
	}
	want := []string{
		"RSI is 25.46, below oversold threshold of 30",
		"MACD is positive at 0.30, indicating upward momentum",
		"EMAs show uptrend pattern: EMA5 (12.50) > EMA10 (12.25) > EMA20 (12.00)",
		"Stochastic K is 15.10, below oversold threshold of 20",
	}
	if got := MetCriteria(snap, DefaultCriteria()); !reflect.DeepEqual(got, want) {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
}

func TestMetCriteria_OnlyEnabled(t *testing.T) {
	snap := model.IndicatorSnapshot{RSI: f(25), MACD: f(0.3)}
	got := MetCriteria(snap, model.AlertCriteria{MACDPositive: true})
	if len(got) != 1 || got[0] != "MACD is positive at 0.30, indicating upward momentum" {
		t.Fatalf("got %q", got)
	}
}

func TestRecommend(t *testing.T) {
	r := Recommend([]string{
		"RSI below 30 (oversold conditions)",
		"EMA 5 is above EMA 10 (bullish trend)",
		"MACD Histogram is negative (bearish momentum)",
	})
	if !r.Buy || r.Sentiment != "positive" || r.Bullish != 2 || r.Bearish != 1 {
		t.Fatalf("unexpected %+v", r)
	}
	if r.Explanation != "Based on technical analysis (2 bullish vs 1 bearish signals)." {
		t.Fatalf("explanation %q", r.Explanation)
	}

	r = Recommend([]string{NoSignal})
	if r.Buy || r.Sentiment != "negative" {
		t.Fatalf("no signals should not recommend buying: %+v", r)
	}
}
