// Package history fetches daily OHLCV bars for indicator computation.
// Bars are fetched fresh for every request and never cached.
package history

import (
	"context"
	"errors"

	"tickerwatch/internal/model"
)

// ErrNoBars is returned when a provider answers without any usable bar.
var ErrNoBars = errors.New("history: no bars returned")

// Provider returns ascending daily bars covering roughly the last days days.
type Provider interface {
	Name() string
	Bars(ctx context.Context, symbol string, days int) ([]model.HistoricalBar, error)
}
