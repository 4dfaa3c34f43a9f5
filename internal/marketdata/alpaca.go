package marketdata

import (
	"context"
	"fmt"
	"time"

	alpacadata "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/quantmill/quant-engine/internal/market"
	"github.com/shopspring/decimal"
)

// AlpacaProvider fetches daily bars from the Alpaca historical data API.
type AlpacaProvider struct {
	client *alpacadata.Client
}

func NewAlpacaProvider(apiKey, secret, baseURL string) *AlpacaProvider {
	return &AlpacaProvider{
		client: alpacadata.NewClient(alpacadata.ClientOpts{
			APIKey:    apiKey,
			APISecret: secret,
			BaseURL:   baseURL,
		}),
	}
}

func (p *AlpacaProvider) GetBars(ctx context.Context, symbol string, start, end time.Time) (*market.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := p.client.GetBars(symbol, alpacadata.GetBarsRequest{
		TimeFrame: alpacadata.OneDay,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch alpaca bars for %s: %w", symbol, err)
	}

	bars := make([]market.Bar, len(raw))
	for i, b := range raw {
		bars[i] = market.Bar{
			Date:   b.Timestamp,
			Open:   decimal.NewFromFloat(b.Open),
			High:   decimal.NewFromFloat(b.High),
			Low:    decimal.NewFromFloat(b.Low),
			Close:  decimal.NewFromFloat(b.Close),
			Volume: decimal.NewFromUint64(b.Volume),
		}
	}

	return market.NewSeries(bars)
}
