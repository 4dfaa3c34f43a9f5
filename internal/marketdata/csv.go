package marketdata

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/quantmill/quant-engine/internal/market"
	"github.com/shopspring/decimal"
)

const csvDateLayout = "2006-01-02"

// CSVProvider reads bars from <dir>/<symbol>.csv files with a
// date,open,high,low,close,volume header row.
type CSVProvider struct {
	dir string
}

func NewCSVProvider(dir string) *CSVProvider {
	return &CSVProvider{dir: dir}
}

func (p *CSVProvider) GetBars(ctx context.Context, symbol string, start, end time.Time) (*market.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(p.dir, symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open bar file: %w", err)
	}
	defer f.Close()

	rdr := csv.NewReader(bufio.NewReader(f))
	if _, err := rdr.Read(); err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	var bars []market.Bar
	for {
		data, err := rdr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read bar data: %w", err)
		}

		bar, err := parseBar(data)
		if err != nil {
			return nil, err
		}

		if bar.Date.Before(start) || bar.Date.After(end) {
			continue
		}
		bars = append(bars, bar)
	}

	return market.NewSeries(bars)
}

func parseBar(data []string) (market.Bar, error) {
	if len(data) < 6 {
		return market.Bar{}, fmt.Errorf("bar row has %d fields, want 6", len(data))
	}

	date, err := time.Parse(csvDateLayout, data[0])
	if err != nil {
		return market.Bar{}, fmt.Errorf("failed to parse bar date: %w", err)
	}

	open, err := decimal.NewFromString(data[1])
	if err != nil {
		return market.Bar{}, fmt.Errorf("failed to read open price: %w", err)
	}

	high, err := decimal.NewFromString(data[2])
	if err != nil {
		return market.Bar{}, fmt.Errorf("failed to read high price: %w", err)
	}

	low, err := decimal.NewFromString(data[3])
	if err != nil {
		return market.Bar{}, fmt.Errorf("failed to read low price: %w", err)
	}

	cls, err := decimal.NewFromString(data[4])
	if err != nil {
		return market.Bar{}, fmt.Errorf("failed to read close price: %w", err)
	}

	volume, err := decimal.NewFromString(data[5])
	if err != nil {
		return market.Bar{}, fmt.Errorf("failed to read volume: %w", err)
	}

	return market.Bar{
		Date:   date,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  cls,
		Volume: volume,
	}, nil
}
