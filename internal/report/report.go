// Package report renders run results as a JSON document and as stacked
// PNG charts.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/quantmill/quant-engine/internal/backtest"
	"github.com/quantmill/quant-engine/internal/forecast"
)

const dateLayout = "2006-01-02"

// Builder accumulates per-symbol results. Safe for concurrent submission
// from parallel symbol runs.
type Builder struct {
	log    *slog.Logger
	report Report
	mu     sync.Mutex
}

type Report struct {
	Symbols map[string]*SymbolReport `json:"symbols,omitempty"`
}

type SymbolReport struct {
	Backtest *BacktestReport `json:"backtest,omitempty"`
	Forecast *ForecastReport `json:"forecast,omitempty"`
}

type BacktestReport struct {
	Strategy       string   `json:"strategy"`
	InitialCapital string   `json:"initial_capital"`
	FinalCapital   string   `json:"final_capital"`
	TotalReturnPct float64  `json:"total_return_pct"`
	AnnualizedPct  *float64 `json:"annualized_return_pct,omitempty"`
	MaxDrawdownPct float64  `json:"max_drawdown_pct"`
	SharpeRatio    *float64 `json:"sharpe_ratio,omitempty"`
	ProfitFactor   *float64 `json:"profit_factor,omitempty"`
	WinRate        float64  `json:"win_rate"`
	TotalTrades    int      `json:"total_trades"`

	Trades []TradeReport `json:"trades,omitempty"`
}

type TradeReport struct {
	BuyDate   string  `json:"buy_date"`
	SellDate  string  `json:"sell_date"`
	BuyPrice  string  `json:"buy_price"`
	SellPrice string  `json:"sell_price"`
	Shares    int64   `json:"shares"`
	Profit    string  `json:"profit"`
	ReturnPct float64 `json:"return_pct"`
	HoldDays  int     `json:"hold_days"`
	CloseBy   string  `json:"close_by"`
}

type ForecastReport struct {
	Model         string  `json:"model"`
	ModelAccuracy float64 `json:"model_accuracy"`
	MAE           float64 `json:"mae"`
	RMSE          float64 `json:"rmse"`

	Points []PointReport `json:"points"`
}

type PointReport struct {
	Date       string  `json:"date"`
	Predicted  float64 `json:"predicted"`
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
	Confidence float64 `json:"confidence"`
}

func NewBuilder(log *slog.Logger) *Builder {
	return &Builder{
		log: log,
		report: Report{
			Symbols: map[string]*SymbolReport{},
		},
	}
}

func (b *Builder) SubmitBacktest(symbol string, res *backtest.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := res.Metrics
	br := &BacktestReport{
		Strategy:       string(res.Strategy),
		InitialCapital: m.InitialCapital.String(),
		FinalCapital:   m.FinalCapital.String(),
		TotalReturnPct: m.TotalReturnRate,
		AnnualizedPct:  m.AnnualizedReturnRate,
		MaxDrawdownPct: m.MaxDrawdown,
		SharpeRatio:    m.SharpeRatio,
		ProfitFactor:   m.ProfitFactor,
		WinRate:        m.WinRate,
		TotalTrades:    m.TotalTrades,
	}
	for _, t := range res.Trades {
		br.Trades = append(br.Trades, TradeReport{
			BuyDate:   t.BuyDate.Format(dateLayout),
			SellDate:  t.SellDate.Format(dateLayout),
			BuyPrice:  t.BuyPrice.String(),
			SellPrice: t.SellPrice.String(),
			Shares:    t.Shares,
			Profit:    t.Profit.String(),
			ReturnPct: t.ReturnRate,
			HoldDays:  t.HoldDays,
			CloseBy:   t.SignalType,
		})
	}
	b.symbol(symbol).Backtest = br

	b.log.Info("backtest reported",
		slog.String("symbol", symbol),
		slog.Int("trades", m.TotalTrades),
		slog.Float64("total_return_pct", m.TotalReturnRate),
		slog.Float64("max_drawdown_pct", m.MaxDrawdown))
}

func (b *Builder) SubmitForecast(symbol string, res *forecast.Result) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fr := &ForecastReport{
		Model:         string(res.Model),
		ModelAccuracy: res.ModelAccuracy,
		MAE:           res.MAE,
		RMSE:          res.RMSE,
	}
	for _, p := range res.Points {
		fr.Points = append(fr.Points, PointReport{
			Date:       p.Date.Format(dateLayout),
			Predicted:  p.Predicted,
			Lower:      p.Lower,
			Upper:      p.Upper,
			Confidence: p.Confidence,
		})
	}
	b.symbol(symbol).Forecast = fr

	b.log.Info("forecast reported",
		slog.String("symbol", symbol),
		slog.String("model", string(res.Model)),
		slog.Float64("model_accuracy", res.ModelAccuracy))
}

func (b *Builder) symbol(symbol string) *SymbolReport {
	sr, ok := b.report.Symbols[symbol]
	if !ok {
		sr = &SymbolReport{}
		b.report.Symbols[symbol] = sr
	}
	return sr
}

func (b *Builder) Write(w io.Writer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	if err := e.Encode(b.report); err != nil {
		return fmt.Errorf("failed to write run report: %w", err)
	}

	return nil
}
