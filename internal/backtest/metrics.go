package backtest

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

const tradingDaysPerYear = 252

// Metrics summarises a completed run. Pointer fields are nil when the run
// produced no data to compute them from, never NaN or a division by zero.
type Metrics struct {
	InitialCapital decimal.Decimal
	FinalCapital   decimal.Decimal
	TotalReturn    decimal.Decimal

	TotalReturnRate      float64 // percent
	AnnualizedReturnRate *float64
	MaxDrawdown          float64 // percent
	SharpeRatio          *float64
	ProfitFactor         *float64

	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	WinRate       float64

	AverageProfit float64
	MaxProfit     float64
	MaxLoss       float64
}

func computeMetrics(trades []Trade, equity []EquityPoint, cfg Config, start, end time.Time) Metrics {
	m := Metrics{
		InitialCapital: cfg.InitialCapital,
		FinalCapital:   cfg.InitialCapital,
		TotalReturn:    decimal.Zero,
	}

	if len(trades) == 0 {
		return m
	}

	for _, t := range trades {
		m.TotalReturn = m.TotalReturn.Add(t.Profit)
	}
	m.FinalCapital = cfg.InitialCapital.Add(m.TotalReturn)

	if cfg.InitialCapital.IsPositive() {
		rate, _ := m.TotalReturn.Div(cfg.InitialCapital).Float64()
		m.TotalReturnRate = rate * 100
	}

	m.TotalTrades = len(trades)
	profits := make([]float64, len(trades))
	var grossProfit, grossLoss float64
	for i, t := range trades {
		p, _ := t.Profit.Float64()
		profits[i] = p
		if p > 0 {
			m.WinningTrades++
			grossProfit += p
		} else {
			m.LosingTrades++
			grossLoss += -p
		}
	}
	m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	m.AverageProfit = stat.Mean(profits, nil)
	m.MaxProfit = profits[0]
	m.MaxLoss = profits[0]
	for _, p := range profits[1:] {
		m.MaxProfit = math.Max(m.MaxProfit, p)
		m.MaxLoss = math.Min(m.MaxLoss, p)
	}

	if grossLoss > 0 {
		pf := grossProfit / grossLoss
		m.ProfitFactor = &pf
	}

	years := end.Sub(start).Hours() / 24 / 365.25
	if years > 0 && cfg.InitialCapital.IsPositive() {
		growth, _ := m.FinalCapital.Div(cfg.InitialCapital).Float64()
		if growth > 0 {
			ann := (math.Pow(growth, 1/years) - 1) * 100
			m.AnnualizedReturnRate = &ann
		}
	}

	m.MaxDrawdown = maxDrawdown(equity)

	if sharpe, ok := sharpeRatio(equity, m.AnnualizedReturnRate, cfg.RiskFreeRate); ok {
		m.SharpeRatio = &sharpe
	}

	return m
}

// maxDrawdown is the largest peak-to-trough decline on the equity curve,
// in percent.
func maxDrawdown(equity []EquityPoint) float64 {
	if len(equity) < 2 {
		return 0
	}

	peak, _ := equity[0].Capital.Float64()
	maxDD := 0.0
	for _, pt := range equity {
		c, _ := pt.Capital.Float64()
		if c > peak {
			peak = c
		}
		if peak > 0 {
			dd := (peak - c) / peak
			maxDD = math.Max(maxDD, dd)
		}
	}

	return maxDD * 100
}

// sharpeRatio relates annualized excess return to the annualized standard
// deviation of daily equity returns.
func sharpeRatio(equity []EquityPoint, annualizedPct *float64, riskFree float64) (float64, bool) {
	if annualizedPct == nil || len(equity) < 3 {
		return 0, false
	}

	returns := make([]float64, 0, len(equity)-1)
	prev, _ := equity[0].Capital.Float64()
	for _, pt := range equity[1:] {
		c, _ := pt.Capital.Float64()
		if prev > 0 {
			returns = append(returns, c/prev-1)
		}
		prev = c
	}
	if len(returns) < 2 {
		return 0, false
	}

	sd := stat.StdDev(returns, nil)
	annSD := sd * math.Sqrt(tradingDaysPerYear)
	if annSD == 0 {
		return 0, false
	}

	return (*annualizedPct/100 - riskFree) / annSD, true
}
