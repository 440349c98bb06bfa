package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"tickerwatch/internal/model"
)

// BarsClient is the subset of the Alpaca market data client used here.
type BarsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// Alpaca fetches daily bars from the Alpaca market data API.
type Alpaca struct {
	client BarsClient
	now    func() time.Time
}

// NewAlpaca creates a provider backed by a real Alpaca data client.
func NewAlpaca(apiKey, apiSecret string) *Alpaca {
	return NewAlpacaWithClient(marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}))
}

// NewAlpacaWithClient wraps an existing client.
func NewAlpacaWithClient(c BarsClient) *Alpaca {
	return &Alpaca{client: c, now: time.Now}
}

func (a *Alpaca) Name() string { return "alpaca" }

// Bars returns daily bars from days calendar days ago until now.
func (a *Alpaca) Bars(ctx context.Context, symbol string, days int) ([]model.HistoricalBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	end := a.now()
	start := end.AddDate(0, 0, -days)

	bars, err := a.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, ErrNoBars
	}

	out := make([]model.HistoricalBar, 0, len(bars))
	for _, b := range bars {
		out = append(out, model.HistoricalBar{
			Date:   b.Timestamp,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: float64(b.Volume),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
