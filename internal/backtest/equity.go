package backtest

import (
	"time"

	"github.com/shopspring/decimal"
)

// equityCurve reconstructs the account value for every calendar day in the
// run window. Capital moves only at settlement events: down by the cost on
// a buy date, up by the proceeds on a sell date. Open positions are not
// marked to market between settlements.
func equityCurve(trades []Trade, initial decimal.Decimal, start, end time.Time) []EquityPoint {
	type flow struct {
		buys  decimal.Decimal
		sells decimal.Decimal
	}

	flows := map[string]*flow{}
	at := func(d time.Time) *flow {
		k := dateKey(d)
		f, ok := flows[k]
		if !ok {
			f = &flow{}
			flows[k] = f
		}
		return f
	}

	for _, t := range trades {
		qty := decimal.NewFromInt(t.Shares)
		at(t.BuyDate).buys = at(t.BuyDate).buys.Add(t.BuyPrice.Mul(qty))
		at(t.SellDate).sells = at(t.SellDate).sells.Add(t.SellPrice.Mul(qty))
	}

	var curve []EquityPoint
	capital := initial
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if f, ok := flows[dateKey(d)]; ok {
			capital = capital.Sub(f.buys).Add(f.sells)
		}
		curve = append(curve, EquityPoint{Date: d, Capital: capital})
	}

	return curve
}
