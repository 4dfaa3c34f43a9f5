package signal

import "time"

type Type string

const (
	TypeBuy  Type = "buy"
	TypeSell Type = "sell"
	TypeHold Type = "hold"
)

// Source names the indicator family a signal came from. The simulator uses
// it to build per-strategy eligibility filters over one shared stream.
type Source string

const (
	SourceMACross Source = "ma_cross"
	SourceRSI     Source = "rsi"
	SourceMACD    Source = "macd"
	SourceHold    Source = "hold"
)

type Signal struct {
	Date           time.Time
	Type           Type
	Source         Source
	Strength       float64
	Reason         string
	IndicatorsUsed []string
}

type Mode int

const (
	// Live evaluates only the latest bar.
	Live Mode = iota
	// Backtest scans every bar from index 30 on, using only data available
	// up to each date.
	Backtest
)
