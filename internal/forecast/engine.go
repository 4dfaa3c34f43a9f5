package forecast

import (
	"log/slog"
	"math"
	"time"

	"github.com/quantmill/quant-engine/internal/indicator"
	"github.com/quantmill/quant-engine/internal/market"
	"github.com/quantmill/quant-engine/internal/quanterr"
	"gonum.org/v1/gonum/stat"
)

const (
	minBars        = 60
	minFeatureRows = 30
	trainFraction  = 0.8
	ciZ            = 1.96
)

type Config struct {
	PredictionDays         int
	Model                  ModelType
	UseTechnicalIndicators bool
}

// Point is one forecast step. Lower and Upper bound the prediction at 95%
// under the train-residual spread; Confidence decays with horizon and with
// the size of the predicted move.
type Point struct {
	Date       time.Time
	Predicted  float64
	Lower      float64
	Upper      float64
	Confidence float64
}

type Result struct {
	Model         ModelType
	Points        []Point
	ModelAccuracy float64 // R² on the held-out slice
	MAE           float64
	RMSE          float64

	// FeatureImportance is nil for models without a native or derived
	// ranking (the ensemble).
	FeatureImportance map[string]float64
}

type Engine struct {
	log *slog.Logger
}

func NewEngine(log *slog.Logger) *Engine {
	return &Engine{log: log}
}

// Run trains the configured model on the series history and projects
// PredictionDays closes past the last bar. Same input, same output: every
// stochastic component is seeded.
func (e *Engine) Run(s *market.Series, tab *indicator.Table, cfg Config) (*Result, error) {
	if cfg.PredictionDays <= 0 {
		cfg.PredictionDays = 5
	}
	if cfg.Model == "" {
		cfg.Model = ModelEnsemble
	}

	reg, ok := newRegressor(cfg.Model)
	if !ok {
		return nil, quanterr.New(quanterr.Data, "unknown model %q", cfg.Model)
	}
	if s.Len() < minBars {
		return nil, quanterr.New(quanterr.InsufficientHistory,
			"forecast needs %d bars, have %d", minBars, s.Len())
	}
	if tab.Len() != s.Len() {
		return nil, quanterr.New(quanterr.Data,
			"indicator table length %d does not match series length %d", tab.Len(), s.Len())
	}

	builder := newFeatureBuilder(s, tab, cfg.UseTechnicalIndicators)
	fm := builder.matrix()
	if len(fm.rows) < minFeatureRows {
		return nil, quanterr.New(quanterr.InsufficientHistory,
			"forecast needs %d usable feature rows, have %d", minFeatureRows, len(fm.rows))
	}

	split := int(float64(len(fm.rows)) * trainFraction)
	trainRows, trainLabels := fm.rows[:split], fm.labels[:split]
	valRows, valLabels := fm.rows[split:], fm.labels[split:]

	sc := fitScaler(trainRows, fm.names, e.log)
	if err := reg.Fit(sc.transformAll(trainRows), trainLabels); err != nil {
		return nil, err
	}

	res := &Result{Model: cfg.Model}
	e.evaluate(res, reg, sc, valRows, valLabels)

	residSD := trainResidualStdDev(reg, sc, trainRows, trainLabels)
	res.Points = e.roll(reg, sc, builder, fm, s, cfg.PredictionDays, residSD)

	if imp := reg.Importance(); imp != nil {
		res.FeatureImportance = make(map[string]float64, len(imp))
		for j, w := range imp {
			res.FeatureImportance[fm.names[j]] = w
		}
	}

	e.log.Info("forecast complete",
		"model", cfg.Model,
		"days", cfg.PredictionDays,
		"accuracy", res.ModelAccuracy,
		"rmse", res.RMSE)

	return res, nil
}

func (e *Engine) evaluate(res *Result, reg Regressor, sc *scaler, rows [][]float64, labels []float64) {
	var absSum, sqSum, ssTot float64
	mean := stat.Mean(labels, nil)

	for i, row := range rows {
		diff := reg.Predict(sc.transform(row)) - labels[i]
		absSum += math.Abs(diff)
		sqSum += diff * diff

		d := labels[i] - mean
		ssTot += d * d
	}

	n := float64(len(rows))
	res.MAE = absSum / n
	res.RMSE = math.Sqrt(sqSum / n)

	if ssTot == 0 {
		e.log.Warn("flat validation labels, reporting zero accuracy")
		return
	}
	res.ModelAccuracy = 1 - sqSum/ssTot
}

func trainResidualStdDev(reg Regressor, sc *scaler, rows [][]float64, labels []float64) float64 {
	resid := make([]float64, len(rows))
	for i, row := range rows {
		resid[i] = labels[i] - reg.Predict(sc.transform(row))
	}
	return stat.StdDev(resid, nil)
}

// roll walks the forecast horizon one step at a time, appending each
// predicted close to a running price history so lag and change features
// track the projected path. Volume and indicator features stay frozen at
// the last real bar.
func (e *Engine) roll(reg Regressor, sc *scaler, builder *featureBuilder, fm *featureMatrix,
	s *market.Series, days int, residSD float64) []Point {

	last := s.Len() - 1
	row := builder.row(last)

	hist := append([]float64(nil), builder.closes[last-5:]...)

	margin := ciZ * residSD
	points := make([]Point, 0, days)
	lastDate := s.Last().Date

	for t := 1; t <= days; t++ {
		pred := reg.Predict(sc.transform(row))
		cur := hist[len(hist)-1]

		move := 0.0
		if cur != 0 {
			move = math.Abs(pred/cur - 1)
		}
		conf := 1 - 2*move - 0.3*float64(t)/float64(days)
		conf = math.Max(0.3, conf)

		points = append(points, Point{
			Date:       lastDate.AddDate(0, 0, t),
			Predicted:  pred,
			Lower:      pred - margin,
			Upper:      pred + margin,
			Confidence: conf,
		})

		hist = append(hist, pred)
		n := len(hist) - 1
		row[fm.index(featPriceChange)] = hist[n]/hist[n-1] - 1
		row[fm.index(featPriceChange2)] = hist[n]/hist[n-2] - 1
		row[fm.index(featPriceChange5)] = hist[n]/hist[n-5] - 1
		row[fm.index(featCloseLag1)] = hist[n-1]
		row[fm.index(featCloseLag2)] = hist[n-2]
		row[fm.index(featCloseLag3)] = hist[n-3]
	}

	return points
}
