package forecast

import (
	"log/slog"
	"testing"

	"github.com/quantmill/quant-engine/internal/indicator"
	"github.com/quantmill/quant-engine/internal/quanterr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	return NewEngine(slog.Default())
}

func TestRun_tooFewBars(t *testing.T) {
	s := testSeries(t, trendingCloses(40))
	tab := indicator.Compute(s)

	_, err := newTestEngine().Run(s, tab, Config{Model: ModelLinear})
	require.Error(t, err)
	assert.Equal(t, quanterr.InsufficientHistory, quanterr.KindOf(err))
}

func TestRun_unknownModel(t *testing.T) {
	s := testSeries(t, trendingCloses(80))
	tab := indicator.Compute(s)

	_, err := newTestEngine().Run(s, tab, Config{Model: ModelType("perceptron")})
	require.Error(t, err)
	assert.Equal(t, quanterr.Data, quanterr.KindOf(err))
}

func TestRun_mismatchedTable(t *testing.T) {
	s := testSeries(t, trendingCloses(80))
	tab := indicator.Compute(testSeries(t, trendingCloses(70)))

	_, err := newTestEngine().Run(s, tab, Config{Model: ModelLinear})
	require.Error(t, err)
	assert.Equal(t, quanterr.Data, quanterr.KindOf(err))
}

func TestRun_linearHorizon(t *testing.T) {
	s := testSeries(t, trendingCloses(120))
	tab := indicator.Compute(s)

	cfg := Config{PredictionDays: 5, Model: ModelLinear, UseTechnicalIndicators: true}
	res, err := newTestEngine().Run(s, tab, cfg)
	require.NoError(t, err)
	require.Len(t, res.Points, 5)

	lastDate := s.Last().Date
	lastClose := trendingCloses(120)[119]
	for i, p := range res.Points {
		assert.Equal(t, lastDate.AddDate(0, 0, i+1), p.Date)
		assert.Less(t, p.Lower, p.Predicted)
		assert.Greater(t, p.Upper, p.Predicted)
		assert.GreaterOrEqual(t, p.Confidence, 0.3)
		assert.LessOrEqual(t, p.Confidence, 1.0)

		// A clean uptrend with a bounded wiggle stays near the last close.
		assert.InDelta(t, lastClose, p.Predicted, 25)
	}

	assert.NotNil(t, res.FeatureImportance)
	assert.Len(t, res.FeatureImportance, 20)
}

func TestRun_confidenceDecaysWithHorizon(t *testing.T) {
	s := testSeries(t, trendingCloses(120))
	tab := indicator.Compute(s)

	cfg := Config{PredictionDays: 10, Model: ModelRidge}
	res, err := newTestEngine().Run(s, tab, cfg)
	require.NoError(t, err)
	require.Len(t, res.Points, 10)

	first := res.Points[0].Confidence
	last := res.Points[len(res.Points)-1].Confidence
	assert.GreaterOrEqual(t, first, last)
}

func TestRun_ciSymmetricAroundPrediction(t *testing.T) {
	s := testSeries(t, trendingCloses(100))
	tab := indicator.Compute(s)

	res, err := newTestEngine().Run(s, tab, Config{PredictionDays: 3, Model: ModelLasso})
	require.NoError(t, err)

	for _, p := range res.Points {
		assert.InDelta(t, p.Predicted-p.Lower, p.Upper-p.Predicted, 1e-9)
	}
}

func TestRun_deterministic(t *testing.T) {
	s := testSeries(t, trendingCloses(120))
	tab := indicator.Compute(s)
	cfg := Config{PredictionDays: 7, Model: ModelEnsemble, UseTechnicalIndicators: true}

	eng := newTestEngine()
	a, err := eng.Run(s, tab, cfg)
	require.NoError(t, err)
	b, err := eng.Run(s, tab, cfg)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestRun_ensembleHasNoImportance(t *testing.T) {
	s := testSeries(t, trendingCloses(100))
	tab := indicator.Compute(s)

	res, err := newTestEngine().Run(s, tab, Config{Model: ModelEnsemble})
	require.NoError(t, err)
	assert.Nil(t, res.FeatureImportance)
	assert.Len(t, res.Points, 5) // default horizon
}

func TestRun_accuracyOnCleanTrend(t *testing.T) {
	s := testSeries(t, trendingCloses(150))
	tab := indicator.Compute(s)

	res, err := newTestEngine().Run(s, tab, Config{Model: ModelLinear, UseTechnicalIndicators: true})
	require.NoError(t, err)

	// Lag features alone nearly determine the next close here.
	assert.Greater(t, res.ModelAccuracy, 0.8)
	assert.Less(t, res.RMSE, 5.0)
	assert.GreaterOrEqual(t, res.RMSE, res.MAE)
}
