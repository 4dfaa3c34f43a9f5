// Package backtest replays detected signals against prices day by day,
// producing trades, an equity curve and performance metrics. Money math
// stays in decimal so final capital reconciles exactly against the sum of
// trade profits.
package backtest

import (
	"log/slog"
	"time"

	"github.com/quantmill/quant-engine/internal/market"
	"github.com/quantmill/quant-engine/internal/quanterr"
	"github.com/quantmill/quant-engine/internal/signal"
	"github.com/shopspring/decimal"
)

// lotSize is the minimum tradable share increment.
const lotSize = 100

type Strategy string

const (
	StrategySignalBased Strategy = "signal_based"
	StrategyMACross     Strategy = "ma_cross"
	StrategyRSI         Strategy = "rsi"
	StrategyMACD        Strategy = "macd"
)

// sources maps a strategy to the signal families it trades on. All
// strategies draw from the same detected stream.
func (st Strategy) sources() map[signal.Source]bool {
	switch st {
	case StrategyMACross:
		return map[signal.Source]bool{signal.SourceMACross: true}
	case StrategyRSI:
		return map[signal.Source]bool{signal.SourceRSI: true}
	case StrategyMACD:
		return map[signal.Source]bool{signal.SourceMACD: true}
	default:
		return map[signal.Source]bool{
			signal.SourceMACross: true,
			signal.SourceRSI:     true,
			signal.SourceMACD:    true,
		}
	}
}

type Config struct {
	InitialCapital    decimal.Decimal
	Strategy          Strategy
	SharesPerTrade    int64
	MinSignalStrength float64
	// HoldDays caps the calendar days a position may stay open; 0 disables
	// the cap.
	HoldDays int
	// SignalTypes restricts eligible signal types; nil means buy and sell.
	SignalTypes []signal.Type
	// RiskFreeRate is the annual rate subtracted in the Sharpe ratio,
	// as a fraction (0.03 = 3%).
	RiskFreeRate float64
}

type Position struct {
	EntryDate  time.Time
	EntryPrice decimal.Decimal
	Shares     int64
	Source     signal.Source
}

// Trade is the immutable record of a closed position.
type Trade struct {
	BuyDate    time.Time
	BuyPrice   decimal.Decimal
	SellDate   time.Time
	SellPrice  decimal.Decimal
	Shares     int64
	Profit     decimal.Decimal
	ReturnRate float64 // percent
	HoldDays   int
	SignalType string
}

type EquityPoint struct {
	Date    time.Time
	Capital decimal.Decimal
}

type Result struct {
	Strategy    Strategy
	Trades      []Trade
	EquityCurve []EquityPoint
	Metrics     Metrics
}

type Simulator struct {
	log *slog.Logger
}

func NewSimulator(log *slog.Logger) *Simulator {
	return &Simulator{log: log}
}

// Run executes the day-by-day state machine. At most one position is open
// at any simulated instant; any position still open at the final bar is
// force-liquidated at the last close, so the run always ends flat.
func (sim *Simulator) Run(s *market.Series, signals []signal.Signal, cfg Config) (*Result, error) {
	shares := (cfg.SharesPerTrade / lotSize) * lotSize
	if shares <= 0 {
		return nil, quanterr.New(quanterr.Data,
			"shares_per_trade %d is below one %d-share lot", cfg.SharesPerTrade, lotSize)
	}

	byDate, err := indexSignals(signals)
	if err != nil {
		return nil, err
	}

	eligible := sim.eligibility(cfg)

	capital := cfg.InitialCapital
	var position *Position
	var trades []Trade

	for i := 0; i < s.Len(); i++ {
		bar := s.Bar(i)

		if position != nil && cfg.HoldDays > 0 && calendarDays(position.EntryDate, bar.Date) >= cfg.HoldDays {
			t := closePosition(position, bar, "timeout")
			capital = capital.Add(bar.Close.Mul(decimal.NewFromInt(t.Shares)))
			trades = append(trades, t)
			position = nil
			sim.log.Debug("position closed on hold-days timeout",
				"date", bar.Date, "profit", t.Profit.String())
			continue
		}

		sig, ok := byDate[dateKey(bar.Date)]
		if !ok || !eligible(sig) {
			continue
		}

		switch sig.Type {
		case signal.TypeBuy:
			if position != nil {
				continue
			}
			cost := bar.Close.Mul(decimal.NewFromInt(shares))
			if capital.LessThan(cost) {
				sim.log.Warn("buy signal skipped: insufficient capital",
					"date", bar.Date, "capital", capital.String(), "cost", cost.String(),
					"kind", quanterr.Capacity)
				continue
			}
			capital = capital.Sub(cost)
			position = &Position{
				EntryDate:  bar.Date,
				EntryPrice: bar.Close,
				Shares:     shares,
				Source:     sig.Source,
			}
			sim.log.Debug("position opened",
				"date", bar.Date, "price", bar.Close.String(), "shares", shares)

		case signal.TypeSell:
			if position == nil {
				continue
			}
			t := closePosition(position, bar, string(sig.Source))
			capital = capital.Add(bar.Close.Mul(decimal.NewFromInt(t.Shares)))
			trades = append(trades, t)
			position = nil
			sim.log.Debug("position closed on sell signal",
				"date", bar.Date, "profit", t.Profit.String())
		}
	}

	if position != nil {
		last := s.Last()
		t := closePosition(position, last, "end_of_run")
		capital = capital.Add(last.Close.Mul(decimal.NewFromInt(t.Shares)))
		trades = append(trades, t)
		position = nil
		sim.log.Debug("position force-liquidated at end of run",
			"date", last.Date, "profit", t.Profit.String())
	}

	equity := equityCurve(trades, cfg.InitialCapital, s.First().Date, s.Last().Date)
	metrics := computeMetrics(trades, equity, cfg, s.First().Date, s.Last().Date)

	sim.log.Info("backtest complete",
		"strategy", cfg.Strategy,
		"trades", len(trades),
		"final_capital", capital.String(),
		"total_return_rate", metrics.TotalReturnRate)

	return &Result{
		Strategy:    cfg.Strategy,
		Trades:      trades,
		EquityCurve: equity,
		Metrics:     metrics,
	}, nil
}

func (sim *Simulator) eligibility(cfg Config) func(signal.Signal) bool {
	types := map[signal.Type]bool{signal.TypeBuy: true, signal.TypeSell: true}
	if cfg.SignalTypes != nil {
		types = map[signal.Type]bool{}
		for _, t := range cfg.SignalTypes {
			types[t] = true
		}
	}
	sources := cfg.Strategy.sources()

	return func(s signal.Signal) bool {
		return types[s.Type] && sources[s.Source] && s.Strength >= cfg.MinSignalStrength
	}
}

func closePosition(p *Position, bar market.Bar, signalType string) Trade {
	qty := decimal.NewFromInt(p.Shares)
	profit := bar.Close.Sub(p.EntryPrice).Mul(qty)

	returnRate := 0.0
	if p.EntryPrice.IsPositive() {
		returnRate, _ = bar.Close.Sub(p.EntryPrice).Div(p.EntryPrice).Float64()
	}

	return Trade{
		BuyDate:    p.EntryDate,
		BuyPrice:   p.EntryPrice,
		SellDate:   bar.Date,
		SellPrice:  bar.Close,
		Shares:     p.Shares,
		Profit:     profit,
		ReturnRate: returnRate * 100,
		HoldDays:   calendarDays(p.EntryDate, bar.Date),
		SignalType: signalType,
	}
}

// indexSignals builds a date lookup, rejecting out-of-order input. The
// detector emits at most one signal per date; two on one date means the
// stream was assembled incorrectly.
func indexSignals(signals []signal.Signal) (map[string]signal.Signal, error) {
	byDate := make(map[string]signal.Signal, len(signals))
	for i, sig := range signals {
		if i > 0 && !sig.Date.After(signals[i-1].Date) {
			return nil, quanterr.New(quanterr.Data,
				"signals out of order at index %d: %s does not follow %s",
				i, sig.Date.Format(time.DateOnly), signals[i-1].Date.Format(time.DateOnly))
		}
		byDate[dateKey(sig.Date)] = sig
	}
	return byDate, nil
}

func dateKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

func calendarDays(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
