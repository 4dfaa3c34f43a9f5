// Package signal turns the indicator table into dated buy/sell/hold signals
// with continuous strength scores. Detection is deterministic: identical
// inputs always produce identical signals.
package signal

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/quantmill/quant-engine/internal/indicator"
	"github.com/quantmill/quant-engine/internal/market"
	"github.com/quantmill/quant-engine/internal/quanterr"
)

// warmup is the first scannable bar index; every indicator column except
// MA60 is defined from here.
const warmup = 30

const trendWindow = 5

type Config struct {
	// MinStrength is the floor a buy/sell candidate must reach before it
	// displaces the hold fallback.
	MinStrength float64
}

type Detector struct {
	cfg Config
	log *slog.Logger
}

func NewDetector(cfg Config, log *slog.Logger) *Detector {
	return &Detector{cfg: cfg, log: log}
}

// Detect emits at most one signal per date: the highest-strength buy/sell
// candidate, ties broken by rule priority (MA cross, RSI, MACD), or the
// hold fallback when no candidate reaches the configured minimum.
func (d *Detector) Detect(s *market.Series, tab *indicator.Table, mode Mode) ([]Signal, error) {
	if tab.Len() != s.Len() {
		return nil, quanterr.New(quanterr.Data,
			"indicator table has %d rows for %d bars", tab.Len(), s.Len())
	}

	if s.Len() <= warmup {
		return nil, nil
	}

	var signals []Signal
	from := warmup
	if mode == Live {
		from = s.Len() - 1
	}

	for i := from; i < s.Len(); i++ {
		signals = append(signals, d.evaluate(s, tab, i))
	}

	d.log.Debug("signal detection complete", "bars", s.Len(), "signals", len(signals))
	return signals, nil
}

func (d *Detector) evaluate(s *market.Series, tab *indicator.Table, i int) Signal {
	candidates := []Signal{}
	if c, ok := maCrossRule(s, tab, i); ok {
		candidates = append(candidates, c)
	}
	if c, ok := rsiRule(s, tab, i); ok {
		candidates = append(candidates, c)
	}
	if c, ok := macdRule(tab, i); ok {
		candidates = append(candidates, c)
	}

	best := Signal{Strength: -1}
	for _, c := range candidates {
		// Strict greater keeps the earlier (higher priority) rule on ties.
		if c.Strength > best.Strength {
			best = c
		}
	}

	if best.Strength >= d.cfg.MinStrength {
		best.Date = s.Bar(i).Date
		return best
	}

	h := holdRule(s, tab, i)
	h.Date = s.Bar(i).Date
	return h
}

func maCrossRule(s *market.Series, tab *indicator.Table, i int) (Signal, bool) {
	cur := tab.MA5[i] - tab.MA30[i]
	prev := tab.MA5[i-1] - tab.MA30[i-1]
	if math.IsNaN(cur) || math.IsNaN(prev) {
		return Signal{}, false
	}

	var typ Type
	var reason string
	switch {
	case cur > 0 && prev <= 0:
		typ, reason = TypeBuy, "golden cross: MA5 crossed above MA30"
	case cur < 0 && prev >= 0:
		typ, reason = TypeSell, "death cross: MA5 crossed below MA30"
	default:
		return Signal{}, false
	}

	strength := 0.5
	if volumeSurge(s, i) {
		strength += 0.15
		reason += ", volume surge"
	}

	closes := s.Closes()
	if i >= trendWindow {
		move := (closes[i] - closes[i-trendWindow]) / closes[i-trendWindow]
		if math.Abs(move) > 0.02 {
			strength += 0.10
		}
	}

	if math.Abs(cur)/tab.MA30[i] > 0.05 {
		strength += 0.10
	}

	return Signal{
		Type:           typ,
		Source:         SourceMACross,
		Strength:       clip(strength),
		Reason:         reason,
		IndicatorsUsed: []string{"MA5", "MA30"},
	}, true
}

func rsiRule(s *market.Series, tab *indicator.Table, i int) (Signal, bool) {
	r := tab.RSI[i]
	if math.IsNaN(r) {
		return Signal{}, false
	}

	divergence := rsiDivergence(s, tab, i)

	if r < 30 {
		strength := math.Min(0.9, 0.6+(30-r)/10*0.2)
		reason := fmt.Sprintf("RSI oversold (%.1f)", r)
		if divergence == TypeBuy {
			strength += 0.15
			reason += ", bullish divergence"
		}
		return Signal{
			Type:           TypeBuy,
			Source:         SourceRSI,
			Strength:       clip(strength),
			Reason:         reason,
			IndicatorsUsed: []string{"RSI"},
		}, true
	}

	if r > 70 {
		strength := math.Min(0.9, 0.6+(r-70)/10*0.2)
		reason := fmt.Sprintf("RSI overbought (%.1f)", r)
		if divergence == TypeSell {
			strength += 0.15
			reason += ", bearish divergence"
		}
		return Signal{
			Type:           TypeSell,
			Source:         SourceRSI,
			Strength:       clip(strength),
			Reason:         reason,
			IndicatorsUsed: []string{"RSI"},
		}, true
	}

	return Signal{}, false
}

func macdRule(tab *indicator.Table, i int) (Signal, bool) {
	cur := tab.MACD[i] - tab.MACDSignal[i]
	prev := tab.MACD[i-1] - tab.MACDSignal[i-1]

	var typ Type
	var reason string
	switch {
	case cur > 0 && prev <= 0:
		typ, reason = TypeBuy, "MACD crossed above signal line"
	case cur < 0 && prev >= 0:
		typ, reason = TypeSell, "MACD crossed below signal line"
	default:
		return Signal{}, false
	}

	strength := 0.5
	if i >= 2 && histogramGrowing(tab, i) {
		strength += 0.1
		reason += ", histogram momentum building"
	}

	return Signal{
		Type:           typ,
		Source:         SourceMACD,
		Strength:       clip(strength),
		Reason:         reason,
		IndicatorsUsed: []string{"MACD"},
	}, true
}

func holdRule(s *market.Series, tab *indicator.Table, i int) Signal {
	strength := 0.5
	reason := "no actionable signal"

	if !math.IsNaN(tab.MA5[i]) && !math.IsNaN(tab.MA30[i]) {
		sep := math.Abs(tab.MA5[i]-tab.MA30[i]) / tab.MA30[i]
		if sep < 0.02 {
			strength = 0.6
			reason += ", MA5/MA30 converged with no clear direction"
		}
	}

	closes := s.Closes()
	if i >= 20 {
		short := closes[i] > closes[i-trendWindow]
		medium := closes[i] > closes[i-20]
		if short != medium {
			strength = 0.6
			reason += ", short-term trend conflicts with medium-term trend"
		}
	}

	return Signal{
		Type:           TypeHold,
		Source:         SourceHold,
		Strength:       strength,
		Reason:         reason,
		IndicatorsUsed: []string{"MA5", "MA30", "RSI", "MACD"},
	}
}

// volumeSurge reports whether today's volume exceeds 1.2x the trailing
// 5-day average.
func volumeSurge(s *market.Series, i int) bool {
	if i < trendWindow {
		return false
	}

	vols := s.Volumes()
	var sum float64
	for j := i - trendWindow; j < i; j++ {
		sum += vols[j]
	}
	avg := sum / float64(trendWindow)

	return avg > 0 && vols[i] > avg*1.2
}

// rsiDivergence flags price and RSI moving in opposite directions over the
// trailing window, a reversal cue.
func rsiDivergence(s *market.Series, tab *indicator.Table, i int) Type {
	if i < trendWindow || math.IsNaN(tab.RSI[i]) || math.IsNaN(tab.RSI[i-trendWindow]) {
		return TypeHold
	}

	closes := s.Closes()
	priceChange := (closes[i] - closes[i-trendWindow]) / closes[i-trendWindow]
	rsiChange := tab.RSI[i] - tab.RSI[i-trendWindow]

	if priceChange < -0.02 && rsiChange > 5 {
		return TypeBuy
	}
	if priceChange > 0.02 && rsiChange < -5 {
		return TypeSell
	}
	return TypeHold
}

func histogramGrowing(tab *indicator.Table, i int) bool {
	h0 := math.Abs(tab.MACDHistogram[i-2])
	h1 := math.Abs(tab.MACDHistogram[i-1])
	h2 := math.Abs(tab.MACDHistogram[i])
	return h2 > h1 && h1 > h0
}

func clip(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
