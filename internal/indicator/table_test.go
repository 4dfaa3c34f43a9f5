package indicator

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/quantmill/quant-engine/internal/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesFromCloses(t *testing.T, closes []float64) *market.Series {
	t.Helper()

	bars := make([]market.Bar, len(closes))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		d := decimal.NewFromFloat(c)
		bars[i] = market.Bar{
			Date:   start.AddDate(0, 0, i),
			Open:   d,
			High:   d,
			Low:    d,
			Close:  d,
			Volume: decimal.NewFromInt(1000),
		}
	}

	s, err := market.NewSeries(bars)
	require.NoError(t, err)
	return s
}

func TestRollingMean(t *testing.T) {
	tbl := []struct {
		xs   []float64
		n    int
		want []float64
	}{
		{xs: []float64{1, 2, 3}, n: 5, want: []float64{math.NaN(), math.NaN(), math.NaN()}},
		{xs: []float64{1, 2, 3}, n: 2, want: []float64{math.NaN(), 1.5, 2.5}},
		{xs: []float64{2, 4, 6, 8}, n: 3, want: []float64{math.NaN(), math.NaN(), 4, 6}},
	}

	for i, c := range tbl {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			got := rollingMean(c.xs, c.n)
			require.Len(t, got, len(c.want))
			for j := range c.want {
				if math.IsNaN(c.want[j]) {
					assert.True(t, math.IsNaN(got[j]), "index %d", j)
				} else {
					assert.InDelta(t, c.want[j], got[j], 1e-9, "index %d", j)
				}
			}
		})
	}
}

// A moving average becomes defined exactly at index n-1 and equals the mean
// of the trailing n closes from then on.
func TestCompute_maWindowBoundary(t *testing.T) {
	closes := make([]float64, 12)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	tab := Compute(seriesFromCloses(t, closes))

	for i := 0; i < 4; i++ {
		assert.True(t, math.IsNaN(tab.MA5[i]), "index %d", i)
	}
	for i := 4; i < len(closes); i++ {
		want := (closes[i] + closes[i-1] + closes[i-2] + closes[i-3] + closes[i-4]) / 5
		assert.InDelta(t, want, tab.MA5[i], 1e-9, "index %d", i)
	}
}

func TestCompute_rsiBounds(t *testing.T) {
	closes := []float64{10, 11, 9, 12, 8, 13, 7, 14, 6, 15, 5, 16, 4, 17, 3, 18, 2, 19, 1, 20}
	tab := Compute(seriesFromCloses(t, closes))

	for i, v := range tab.RSI {
		if math.IsNaN(v) {
			continue
		}
		assert.GreaterOrEqual(t, v, 0.0, "index %d", i)
		assert.LessOrEqual(t, v, 100.0, "index %d", i)
	}
}

func TestCompute_rsiNoLosses(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 10 + float64(i)
	}
	tab := Compute(seriesFromCloses(t, closes))

	assert.InDelta(t, 100.0, tab.RSI[len(closes)-1], 1e-9)
}

func TestCompute_rsiFlatIsNeutral(t *testing.T) {
	closes := make([]float64, 35)
	for i := range closes {
		closes[i] = 10.0
	}
	tab := Compute(seriesFromCloses(t, closes))

	assert.InDelta(t, 50.0, tab.RSI[30], 1e-9)
	assert.InDelta(t, 10.0, tab.MA5[30], 1e-9)
	assert.InDelta(t, 10.0, tab.MA30[30], 1e-9)
}

func TestCompute_rsiBalancedGainsAndLosses(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 10
		} else {
			closes[i] = 11
		}
	}
	tab := Compute(seriesFromCloses(t, closes))

	// Alternating +1/-1 deltas put average gain and loss in balance.
	assert.InDelta(t, 50.0, tab.RSI[29], 1.0)
}

func TestCompute_macdConverges(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 10.0
	}
	tab := Compute(seriesFromCloses(t, closes))

	// Constant prices: fast and slow EMAs are identical, so MACD stays zero.
	assert.InDelta(t, 0.0, tab.MACD[59], 1e-9)
	assert.InDelta(t, 0.0, tab.MACDSignal[59], 1e-9)
	assert.InDelta(t, 0.0, tab.MACDHistogram[59], 1e-9)
}

func TestCompute_bollingerBands(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 10.0
	}
	closes[24] = 12.0
	tab := Compute(seriesFromCloses(t, closes))

	assert.True(t, math.IsNaN(tab.BollUpper[18]))
	require.False(t, math.IsNaN(tab.BollUpper[24]))
	assert.Greater(t, tab.BollUpper[24], tab.BollMiddle[24])
	assert.Less(t, tab.BollLower[24], tab.BollMiddle[24])
	assert.InDelta(t, tab.BollUpper[24]-tab.BollMiddle[24], tab.BollMiddle[24]-tab.BollLower[24], 1e-9)
}

func TestCompute_idempotent(t *testing.T) {
	closes := []float64{10, 10.5, 11, 10.8, 11.2, 11.5, 11.1, 11.8, 12, 11.7,
		12.2, 12.5, 12.1, 12.8, 13, 12.7, 13.2, 13.5, 13.1, 13.8,
		14, 13.7, 14.2, 14.5, 14.1, 14.8, 15, 14.7, 15.2, 15.5}
	s := seriesFromCloses(t, closes)

	a := Compute(s)
	b := Compute(s)
	assert.Equal(t, a, b)
}
