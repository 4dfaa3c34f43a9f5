// Package marketdata loads daily bar history for the engines to consume.
package marketdata

import (
	"context"
	"time"

	"github.com/quantmill/quant-engine/internal/market"
)

// Provider fetches the daily bars of one symbol over a closed date range.
type Provider interface {
	GetBars(ctx context.Context, symbol string, start, end time.Time) (*market.Series, error)
}
