package report

import (
	"errors"
	"fmt"
	"image/color"
	"os"

	"github.com/pplcc/plotext"
	"github.com/quantmill/quant-engine/internal/backtest"
	"github.com/quantmill/quant-engine/internal/forecast"
	"github.com/quantmill/quant-engine/internal/market"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	chartWidth  = 1200
	chartHeight = 400
)

// Chart stacks a price panel (with the forecast band when present) over an
// equity panel and writes them as one PNG with aligned time axes.
type Chart struct {
	symbol string
	panels []*plot.Plot
	rows   []float64
}

func NewChart(symbol string) *Chart {
	return &Chart{symbol: symbol}
}

func (c *Chart) AddPrice(s *market.Series, fc *forecast.Result) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s close", c.symbol)
	p.Y.Label.Text = "Price"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}

	closes := s.Closes()
	dates := s.Dates()
	pts := make(plotter.XYs, s.Len())
	for i := range pts {
		pts[i] = plotter.XY{X: float64(dates[i].Unix()), Y: closes[i]}
	}
	priceLine, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to create price graph: %w", err)
	}
	p.Add(priceLine)

	if fc != nil {
		if err := addForecastBand(p, fc); err != nil {
			return err
		}
	}

	c.panels = append(c.panels, p)
	c.rows = append(c.rows, 2)
	return nil
}

func (c *Chart) AddEquity(res *backtest.Result) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s equity (%s)", c.symbol, res.Strategy)
	p.Y.Label.Text = "Capital"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}

	pts := make(plotter.XYs, len(res.EquityCurve))
	for i, ep := range res.EquityCurve {
		capital, _ := ep.Capital.Float64()
		pts[i] = plotter.XY{X: float64(ep.Date.Unix()), Y: capital}
	}
	equityLine, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to create equity graph: %w", err)
	}
	p.Add(equityLine)

	c.panels = append(c.panels, p)
	c.rows = append(c.rows, 1)
	return nil
}

func addForecastBand(p *plot.Plot, fc *forecast.Result) error {
	mid := make(plotter.XYs, len(fc.Points))
	lo := make(plotter.XYs, len(fc.Points))
	hi := make(plotter.XYs, len(fc.Points))
	for i, pt := range fc.Points {
		x := float64(pt.Date.Unix())
		mid[i] = plotter.XY{X: x, Y: pt.Predicted}
		lo[i] = plotter.XY{X: x, Y: pt.Lower}
		hi[i] = plotter.XY{X: x, Y: pt.Upper}
	}

	midLine, err := plotter.NewLine(mid)
	if err != nil {
		return fmt.Errorf("failed to create forecast graph: %w", err)
	}
	midLine.Color = color.RGBA{R: 200, A: 255}

	for _, bound := range []plotter.XYs{lo, hi} {
		line, err := plotter.NewLine(bound)
		if err != nil {
			return fmt.Errorf("failed to create forecast bound graph: %w", err)
		}
		line.Color = color.RGBA{R: 200, A: 255}
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(line)
	}
	p.Add(midLine)

	return nil
}

func (c *Chart) Save(path string) (err error) {
	if len(c.panels) == 0 {
		return errors.New("chart has no panels")
	}

	var axes []*plot.Axis
	for _, p := range c.panels {
		axes = append(axes, &p.X)
	}
	plotext.UniteAxisRanges(axes)

	tbl := plotext.Table{
		RowHeights: c.rows,
		ColWidths:  []float64{1},
	}

	var grid [][]*plot.Plot
	for _, p := range c.panels {
		grid = append(grid, []*plot.Plot{p})
	}

	h := 0.0
	for _, r := range c.rows {
		h += r * chartHeight
	}

	img := vgimg.New(vg.Points(chartWidth), vg.Points(h))
	dc := draw.New(img)

	canvases := tbl.Align(grid, dc)
	for i, p := range c.panels {
		p.Draw(canvases[i][0])
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close chart file: %w", cerr))
		}
	}()

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		return fmt.Errorf("failed to write chart to file: %w", err)
	}

	return nil
}
