package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Runs        map[string]Run    `yaml:"runs"`
	Report      string            `yaml:"report"`
	PlotDir     string            `yaml:"plot_dir"`
	ProviderRef ProviderReference `yaml:"provider"`
}

func Read(r io.Reader) (*Config, error) {
	var cfg Config
	d := yaml.NewDecoder(r)
	err := d.Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}

	return &cfg, nil
}

func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Run is the per-symbol work order: the bar window plus the optional
// backtest and forecast sections.
type Run struct {
	Start    time.Time `yaml:"start"`
	End      time.Time `yaml:"end"`
	Backtest *Backtest `yaml:"backtest"`
	Forecast *Forecast `yaml:"forecast"`
}

type Backtest struct {
	InitialCapital    float64  `yaml:"initial_capital"`
	Strategy          string   `yaml:"strategy"`
	SharesPerTrade    int64    `yaml:"shares_per_trade"`
	MinSignalStrength float64  `yaml:"min_signal_strength"`
	HoldDays          int      `yaml:"hold_days"`
	SignalTypes       []string `yaml:"signal_types"`
	RiskFreeRate      float64  `yaml:"risk_free_rate"`
}

type Forecast struct {
	Days          int    `yaml:"days"`
	Model         string `yaml:"model"`
	UseIndicators bool   `yaml:"use_indicators"`
}

// provider configs

type Provider interface{}

type ProviderReference struct {
	Provider Provider
}

type CSV struct {
	Dir string `yaml:"dir"`
}

type Alpaca struct {
	BaseUrl string `yaml:"base_url"`
	ApiKey  string `yaml:"api_key"`
	Secret  string `yaml:"secret"`
}

func (w *ProviderReference) UnmarshalYAML(value *yaml.Node) error {
	if len(value.Content) == 0 {
		return nil
	}

	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return errors.New("invalid provider yaml format")
	}

	key := value.Content[0].Value
	switch key {
	case "csv":
		var csv CSV
		if err := value.Content[1].Decode(&csv); err != nil {
			return fmt.Errorf("failed parsing csv provider config: %w", err)
		}
		w.Provider = csv
	case "alpaca":
		var alpaca Alpaca
		if err := value.Content[1].Decode(&alpaca); err != nil {
			return fmt.Errorf("failed parsing Alpaca provider config: %w", err)
		}
		w.Provider = alpaca
	default:
		return fmt.Errorf("unknown provider type: %s", key)
	}

	return nil
}
