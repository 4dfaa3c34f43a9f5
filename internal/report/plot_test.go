package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quantmill/quant-engine/internal/backtest"
	"github.com/quantmill/quant-engine/internal/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plotSeries(t *testing.T) *market.Series {
	t.Helper()

	bars := make([]market.Bar, 30)
	for i := range bars {
		c := decimal.NewFromFloat(100 + float64(i)*0.5)
		bars[i] = market.Bar{
			Date:   testStart.AddDate(0, 0, i),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: decimal.NewFromInt(1000),
		}
	}

	s, err := market.NewSeries(bars)
	require.NoError(t, err)
	return s
}

func TestChart_savesStackedPanels(t *testing.T) {
	bt := sampleBacktest()
	bt.EquityCurve = []backtest.EquityPoint{
		{Date: testStart, Capital: decimal.NewFromInt(100000)},
		{Date: testStart.AddDate(0, 0, 1), Capital: decimal.NewFromInt(99000)},
		{Date: testStart.AddDate(0, 0, 2), Capital: decimal.NewFromInt(100200)},
	}

	c := NewChart("ACME")
	require.NoError(t, c.AddPrice(plotSeries(t), sampleForecast()))
	require.NoError(t, c.AddEquity(bt))

	path := filepath.Join(t.TempDir(), "acme.png")
	require.NoError(t, c.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestChart_emptyChartFails(t *testing.T) {
	c := NewChart("ACME")
	err := c.Save(filepath.Join(t.TempDir(), "empty.png"))
	require.Error(t, err)
}
