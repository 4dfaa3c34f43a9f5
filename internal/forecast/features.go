package forecast

import (
	"math"

	"github.com/quantmill/quant-engine/internal/indicator"
	"github.com/quantmill/quant-engine/internal/market"
)

// Feature names double as importance-map keys. Order here is the column
// order of the design matrix.
const (
	featPriceChange  = "price_change"
	featPriceChange2 = "price_change_2"
	featPriceChange5 = "price_change_5"
	featVolumeChange = "volume_change"
	featVolumeRatio  = "volume_ratio"
	featHighLowRatio = "high_low_ratio"
	featClosePos     = "close_position"
	featCloseLag1    = "close_lag1"
	featCloseLag2    = "close_lag2"
	featCloseLag3    = "close_lag3"
	featMA5Ratio     = "ma5_ratio"
	featMA5Slope     = "ma5_slope"
	featMA10Ratio    = "ma10_ratio"
	featMA20Ratio    = "ma20_ratio"
	featMA30Ratio    = "ma30_ratio"
	featMA5MA30Diff  = "ma5_ma30_diff"
	featRSINorm      = "rsi_normalized"
	featMACDDiff     = "macd_diff"
	featBBWidth      = "bb_width"
	featBBPosition   = "bb_position"
)

func featureNames(useIndicators bool) []string {
	names := []string{
		featPriceChange, featPriceChange2, featPriceChange5,
		featVolumeChange, featVolumeRatio,
		featHighLowRatio, featClosePos,
		featCloseLag1, featCloseLag2, featCloseLag3,
	}
	if useIndicators {
		names = append(names,
			featMA5Ratio, featMA5Slope,
			featMA10Ratio, featMA20Ratio,
			featMA30Ratio, featMA5MA30Diff,
			featRSINorm, featMACDDiff,
			featBBWidth, featBBPosition,
		)
	}
	return names
}

// featureBuilder engineers one feature row per bar from the price columns
// and the indicator table.
type featureBuilder struct {
	names         []string
	useIndicators bool
	tab           *indicator.Table

	closes  []float64
	volumes []float64
	highs   []float64
	lows    []float64
	volMA5  []float64
}

func newFeatureBuilder(s *market.Series, tab *indicator.Table, useIndicators bool) *featureBuilder {
	b := &featureBuilder{
		names:         featureNames(useIndicators),
		useIndicators: useIndicators,
		tab:           tab,
		closes:        s.Closes(),
		volumes:       s.Volumes(),
		highs:         s.Highs(),
		lows:          s.Lows(),
	}

	b.volMA5 = make([]float64, s.Len())
	for i := range b.volMA5 {
		b.volMA5[i] = math.NaN()
		if i >= 4 {
			var sum float64
			for j := i - 4; j <= i; j++ {
				sum += b.volumes[j]
			}
			b.volMA5[i] = sum / 5
		}
	}

	return b
}

// row builds the feature vector as of bar i. Entries are NaN where the
// lookback reaches before the series.
func (b *featureBuilder) row(i int) []float64 {
	row := make([]float64, 0, len(b.names))

	row = append(row,
		pctChange(b.closes, i, 1),
		pctChange(b.closes, i, 2),
		pctChange(b.closes, i, 5),
		pctChange(b.volumes, i, 1),
		ratio(b.volumes[i], b.volMA5[i]),
		ratio(b.highs[i], b.lows[i]),
		rangePosition(b.closes[i], b.highs[i], b.lows[i]),
		lag(b.closes, i, 1),
		lag(b.closes, i, 2),
		lag(b.closes, i, 3),
	)

	if b.useIndicators {
		tab := b.tab
		row = append(row,
			ratio(b.closes[i], tab.MA5[i]),
			slope(tab.MA5, i),
			ratio(b.closes[i], tab.MA10[i]),
			ratio(b.closes[i], tab.MA20[i]),
			ratio(b.closes[i], tab.MA30[i]),
			maSpread(tab.MA5[i], tab.MA30[i]),
			(tab.RSI[i]-50)/50,
			tab.MACD[i]-tab.MACDSignal[i],
			bandWidth(tab.BollUpper[i], tab.BollMiddle[i], tab.BollLower[i]),
			rangePosition(b.closes[i], tab.BollUpper[i], tab.BollLower[i]),
		)
	}

	return row
}

// featureMatrix holds rows where every feature and the next-bar label is
// defined; barIndex maps each row back to its source bar.
type featureMatrix struct {
	names    []string
	rows     [][]float64
	labels   []float64
	barIndex []int
}

// matrix keeps the rows with no NaN whose next-bar close is known, labeled
// with that close.
func (b *featureBuilder) matrix() *featureMatrix {
	fm := &featureMatrix{names: b.names}

	for i := 0; i < len(b.closes)-1; i++ {
		row := b.row(i)
		if hasNaN(row) {
			continue
		}
		fm.rows = append(fm.rows, row)
		fm.labels = append(fm.labels, b.closes[i+1])
		fm.barIndex = append(fm.barIndex, i)
	}

	return fm
}

func (fm *featureMatrix) index(name string) int {
	for i, n := range fm.names {
		if n == name {
			return i
		}
	}
	return -1
}

func pctChange(xs []float64, i, periods int) float64 {
	if i < periods || xs[i-periods] == 0 {
		return math.NaN()
	}
	return xs[i]/xs[i-periods] - 1
}

func lag(xs []float64, i, periods int) float64 {
	if i < periods {
		return math.NaN()
	}
	return xs[i-periods]
}

func ratio(a, b float64) float64 {
	if b == 0 || math.IsNaN(b) {
		return math.NaN()
	}
	return a / b
}

// rangePosition places v inside [low, high] as 0..1. A degenerate range
// (high == low) reads as the midpoint.
func rangePosition(v, high, low float64) float64 {
	if math.IsNaN(high) || math.IsNaN(low) {
		return math.NaN()
	}
	if high == low {
		return 0.5
	}
	return (v - low) / (high - low)
}

func slope(xs []float64, i int) float64 {
	if i < 1 {
		return math.NaN()
	}
	return xs[i] - xs[i-1]
}

func maSpread(ma5, ma30 float64) float64 {
	if math.IsNaN(ma5) || math.IsNaN(ma30) || ma30 == 0 {
		return math.NaN()
	}
	return (ma5 - ma30) / ma30
}

func bandWidth(upper, middle, lower float64) float64 {
	if math.IsNaN(upper) || math.IsNaN(lower) || middle == 0 || math.IsNaN(middle) {
		return math.NaN()
	}
	return (upper - lower) / middle
}

func hasNaN(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}
