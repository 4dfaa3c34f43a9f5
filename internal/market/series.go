package market

import (
	"time"

	"github.com/quantmill/quant-engine/internal/quanterr"
	"github.com/shopspring/decimal"
)

// Bar is one OHLCV observation for a trading day.
type Bar struct {
	Date   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// Series is an immutable, strictly date-ascending bar collection. All
// downstream layers share one Series per run, so validation happens once
// here and never again.
type Series struct {
	bars []Bar
}

func NewSeries(bars []Bar) (*Series, error) {
	if len(bars) == 0 {
		return nil, quanterr.New(quanterr.Data, "empty bar sequence")
	}

	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			return nil, quanterr.New(quanterr.Data,
				"bars out of order at index %d: %s does not follow %s",
				i, bars[i].Date.Format(time.DateOnly), bars[i-1].Date.Format(time.DateOnly))
		}
	}

	own := make([]Bar, len(bars))
	copy(own, bars)
	return &Series{bars: own}, nil
}

func (s *Series) Len() int {
	return len(s.bars)
}

func (s *Series) Bar(i int) Bar {
	return s.bars[i]
}

func (s *Series) First() Bar {
	return s.bars[0]
}

func (s *Series) Last() Bar {
	return s.bars[len(s.bars)-1]
}

// Closes returns the close column as float64 for the numeric layers.
func (s *Series) Closes() []float64 {
	return s.column(func(b Bar) decimal.Decimal { return b.Close })
}

func (s *Series) Volumes() []float64 {
	return s.column(func(b Bar) decimal.Decimal { return b.Volume })
}

func (s *Series) Highs() []float64 {
	return s.column(func(b Bar) decimal.Decimal { return b.High })
}

func (s *Series) Lows() []float64 {
	return s.column(func(b Bar) decimal.Decimal { return b.Low })
}

func (s *Series) Dates() []time.Time {
	dates := make([]time.Time, len(s.bars))
	for i, b := range s.bars {
		dates[i] = b.Date
	}
	return dates
}

func (s *Series) column(f func(Bar) decimal.Decimal) []float64 {
	col := make([]float64, len(s.bars))
	for i, b := range s.bars {
		col[i], _ = f(b).Float64()
	}
	return col
}
