// Package indicator derives the shared per-bar indicator table. The table
// is computed once per run and read by the signal and forecast layers, so
// both always see the same values.
package indicator

import (
	"math"

	"github.com/quantmill/quant-engine/internal/market"
	"gonum.org/v1/gonum/stat"
)

const (
	rsiPeriod   = 14
	macdFast    = 12
	macdSlow    = 26
	macdSignal  = 9
	bollPeriod  = 20
	bollWidth   = 2.0
	rsiNeutral  = 50.0
	rsiAllGains = 100.0
)

// Table holds one indicator column per bar, aligned with the source series.
// Leading values inside a window are NaN, never an error.
type Table struct {
	MA5, MA10, MA20, MA30, MA60      []float64
	RSI                              []float64
	MACD, MACDSignal, MACDHistogram  []float64
	BollUpper, BollMiddle, BollLower []float64
}

// Len returns the number of rows, equal to the bar count.
func (t *Table) Len() int {
	return len(t.RSI)
}

// Compute builds the indicator table for a series. Pure: identical input
// yields an identical table.
func Compute(s *market.Series) *Table {
	closes := s.Closes()

	t := &Table{
		MA5:  rollingMean(closes, 5),
		MA10: rollingMean(closes, 10),
		MA20: rollingMean(closes, 20),
		MA30: rollingMean(closes, 30),
		MA60: rollingMean(closes, 60),
		RSI:  rsi(closes, rsiPeriod),
	}

	fast := ema(closes, macdFast)
	slow := ema(closes, macdSlow)
	t.MACD = make([]float64, len(closes))
	for i := range closes {
		t.MACD[i] = fast[i] - slow[i]
	}
	t.MACDSignal = ema(t.MACD, macdSignal)
	t.MACDHistogram = make([]float64, len(closes))
	for i := range closes {
		t.MACDHistogram[i] = t.MACD[i] - t.MACDSignal[i]
	}

	t.BollMiddle = t.MA20
	t.BollUpper, t.BollLower = bollinger(closes, t.BollMiddle, bollPeriod)

	return t
}

// rollingMean computes an n-bar trailing mean; the first n-1 entries are NaN.
func rollingMean(xs []float64, n int) []float64 {
	out := nans(len(xs))

	var sum float64
	for i, v := range xs {
		sum += v
		if i >= n {
			sum -= xs[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}

	return out
}

// ema is the recursive accumulator form seeded with the first value,
// alpha = 2/(n+1). One pass, O(n).
func ema(xs []float64, n int) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}

	a := 2.0 / (float64(n) + 1)
	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		out[i] = xs[i]*a + out[i-1]*(1-a)
	}

	return out
}

// rsi uses simple n-bar rolling averages of gains and losses. A window with
// no losses reads 100; a fully flat window reads the neutral 50.
func rsi(closes []float64, n int) []float64 {
	out := nans(len(closes))
	if len(closes) < 2 {
		return out
	}

	gains := make([]float64, len(closes)-1)
	losses := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		gains[i-1] = math.Max(d, 0)
		losses[i-1] = math.Max(-d, 0)
	}

	avgGain := rollingMean(gains, n)
	avgLoss := rollingMean(losses, n)

	for i := n; i < len(closes); i++ {
		g, l := avgGain[i-1], avgLoss[i-1]
		switch {
		case g == 0 && l == 0:
			out[i] = rsiNeutral
		case l == 0:
			out[i] = rsiAllGains
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}

	return out
}

func bollinger(closes, middle []float64, n int) (upper, lower []float64) {
	upper = nans(len(closes))
	lower = nans(len(closes))

	for i := n - 1; i < len(closes); i++ {
		sd := stat.StdDev(closes[i-n+1:i+1], nil)
		upper[i] = middle[i] + bollWidth*sd
		lower[i] = middle[i] - bollWidth*sd
	}

	return upper, lower
}

func nans(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
