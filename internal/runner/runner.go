// Package runner executes the per-symbol pipeline: fetch bars, compute the
// indicator table, detect signals, then backtest and forecast per the run
// config. Symbols run in parallel and share nothing but the report builder.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/quantmill/quant-engine/internal/backtest"
	"github.com/quantmill/quant-engine/internal/config"
	"github.com/quantmill/quant-engine/internal/forecast"
	"github.com/quantmill/quant-engine/internal/indicator"
	"github.com/quantmill/quant-engine/internal/market"
	"github.com/quantmill/quant-engine/internal/marketdata"
	"github.com/quantmill/quant-engine/internal/report"
	"github.com/quantmill/quant-engine/internal/signal"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type Runner struct {
	log      *slog.Logger
	provider marketdata.Provider
	report   *report.Builder
	plotDir  string
}

func New(log *slog.Logger, provider marketdata.Provider, rep *report.Builder, plotDir string) *Runner {
	return &Runner{
		log:      log,
		provider: provider,
		report:   rep,
		plotDir:  plotDir,
	}
}

// Run executes every configured symbol. The first failing symbol cancels
// the rest and its error is returned.
func (r *Runner) Run(ctx context.Context, runs map[string]config.Run) error {
	g, ctx := errgroup.WithContext(ctx)

	for symbol, run := range runs {
		symbol, run := symbol, run
		g.Go(func() error {
			if err := r.runSymbol(ctx, symbol, run); err != nil {
				return fmt.Errorf("run failed for %s: %w", symbol, err)
			}
			return nil
		})
	}

	return g.Wait()
}

func (r *Runner) runSymbol(ctx context.Context, symbol string, run config.Run) error {
	series, err := r.provider.GetBars(ctx, symbol, run.Start, run.End)
	if err != nil {
		return err
	}
	r.log.Info("bars loaded", "symbol", symbol, "bars", series.Len())

	tab := indicator.Compute(series)

	var btRes *backtest.Result
	if run.Backtest != nil {
		btRes, err = r.runBacktest(series, tab, run.Backtest)
		if err != nil {
			return err
		}
		r.report.SubmitBacktest(symbol, btRes)
	}

	var fcRes *forecast.Result
	if run.Forecast != nil {
		fcRes, err = r.runForecast(series, tab, run.Forecast)
		if err != nil {
			return err
		}
		r.report.SubmitForecast(symbol, fcRes)
	}

	if r.plotDir != "" {
		if err := r.saveChart(symbol, series, btRes, fcRes); err != nil {
			return err
		}
	}

	return nil
}

func (r *Runner) runBacktest(series *market.Series, tab *indicator.Table, cfg *config.Backtest) (*backtest.Result, error) {
	det := signal.NewDetector(signal.Config{MinStrength: cfg.MinSignalStrength}, r.log)
	signals, err := det.Detect(series, tab, signal.Backtest)
	if err != nil {
		return nil, err
	}

	types := make([]signal.Type, len(cfg.SignalTypes))
	for i, t := range cfg.SignalTypes {
		types[i] = signal.Type(t)
	}

	sim := backtest.NewSimulator(r.log)
	return sim.Run(series, signals, backtest.Config{
		InitialCapital:    decimal.NewFromFloat(cfg.InitialCapital),
		Strategy:          backtest.Strategy(cfg.Strategy),
		SharesPerTrade:    cfg.SharesPerTrade,
		MinSignalStrength: cfg.MinSignalStrength,
		HoldDays:          cfg.HoldDays,
		SignalTypes:       types,
		RiskFreeRate:      cfg.RiskFreeRate,
	})
}

func (r *Runner) runForecast(series *market.Series, tab *indicator.Table, cfg *config.Forecast) (*forecast.Result, error) {
	eng := forecast.NewEngine(r.log)
	return eng.Run(series, tab, forecast.Config{
		PredictionDays:         cfg.Days,
		Model:                  forecast.ModelType(cfg.Model),
		UseTechnicalIndicators: cfg.UseIndicators,
	})
}

func (r *Runner) saveChart(symbol string, series *market.Series, btRes *backtest.Result, fcRes *forecast.Result) error {
	chart := report.NewChart(symbol)
	if err := chart.AddPrice(series, fcRes); err != nil {
		return err
	}
	if btRes != nil {
		if err := chart.AddEquity(btRes); err != nil {
			return err
		}
	}

	return chart.Save(filepath.Join(r.plotDir, symbol+".png"))
}
