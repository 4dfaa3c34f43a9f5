package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"

	"github.com/quantmill/quant-engine/internal/config"
	"github.com/quantmill/quant-engine/internal/marketdata"
	"github.com/quantmill/quant-engine/internal/report"
	"github.com/quantmill/quant-engine/internal/runner"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.ReadFromFile(os.Getenv("CONFIG"))
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.Default()

	provider, err := createProvider(cfg.ProviderRef)
	if err != nil {
		log.Fatal(err)
	}

	rep := report.NewBuilder(logger)
	r := runner.New(logger, provider, rep, cfg.PlotDir)
	if err := r.Run(ctx, cfg.Runs); err != nil {
		log.Fatal(err)
	}

	out := os.Stdout
	if cfg.Report != "" {
		f, err := os.Create(cfg.Report)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		out = f
	}

	if err := rep.Write(out); err != nil {
		log.Fatal(err)
	}
}

func createProvider(ref config.ProviderReference) (marketdata.Provider, error) {
	switch p := ref.Provider.(type) {
	case config.CSV:
		return marketdata.NewCSVProvider(p.Dir), nil
	case config.Alpaca:
		return marketdata.NewAlpacaProvider(p.ApiKey, p.Secret, p.BaseUrl), nil
	default:
		return nil, errors.New("no provider configured")
	}
}
