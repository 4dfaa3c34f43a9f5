package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepData is a step function of the first feature; the second feature is
// noise the split search should ignore.
func stepData() ([][]float64, []float64) {
	rows := [][]float64{
		{1, 9}, {2, 1}, {3, 7}, {4, 3},
		{11, 2}, {12, 8}, {13, 4}, {14, 6},
	}
	labels := []float64{10, 10, 10, 10, 50, 50, 50, 50}
	return rows, labels
}

func TestRegressionTree_splitsOnInformativeFeature(t *testing.T) {
	rows, labels := stepData()

	tree := &regressionTree{maxDepth: 3}
	tree.fit(rows, labels)

	assert.InDelta(t, 10, tree.predict([]float64{2.5, 5}), 1e-9)
	assert.InDelta(t, 50, tree.predict([]float64{12.5, 5}), 1e-9)

	// All split gain lands on the step feature.
	assert.Greater(t, tree.gains[0], 0.0)
	assert.Zero(t, tree.gains[1])
}

func TestRegressionTree_depthZeroIsMean(t *testing.T) {
	rows, labels := stepData()

	tree := &regressionTree{maxDepth: 0}
	tree.fit(rows, labels)

	assert.InDelta(t, 30, tree.predict([]float64{1, 1}), 1e-9)
	assert.InDelta(t, 30, tree.predict([]float64{14, 9}), 1e-9)
}

func TestRandomForest_deterministic(t *testing.T) {
	rows, labels := stepData()

	a := newRandomForest(20, 4)
	require.NoError(t, a.Fit(rows, labels))
	b := newRandomForest(20, 4)
	require.NoError(t, b.Fit(rows, labels))

	probe := []float64{12, 5}
	assert.Equal(t, a.Predict(probe), b.Predict(probe))
	assert.Equal(t, a.Importance(), b.Importance())
}

func TestRandomForest_learnsStep(t *testing.T) {
	rows, labels := stepData()

	f := newRandomForest(50, 4)
	require.NoError(t, f.Fit(rows, labels))

	assert.Less(t, f.Predict([]float64{2, 5}), 30.0)
	assert.Greater(t, f.Predict([]float64{13, 5}), 30.0)
}

func TestGradientBoosting_reducesResiduals(t *testing.T) {
	rows, labels := stepData()

	g := newGradientBoosting(100, 3, 0.1)
	require.NoError(t, g.Fit(rows, labels))

	assert.InDelta(t, 10, g.Predict([]float64{2, 5}), 1.0)
	assert.InDelta(t, 50, g.Predict([]float64{13, 5}), 1.0)
}

func TestGradientBoosting_deterministic(t *testing.T) {
	rows, labels := stepData()

	a := newGradientBoosting(30, 3, 0.1)
	require.NoError(t, a.Fit(rows, labels))
	b := newGradientBoosting(30, 3, 0.1)
	require.NoError(t, b.Fit(rows, labels))

	assert.Equal(t, a.Predict([]float64{7, 5}), b.Predict([]float64{7, 5}))
}

func TestEnsemble_averagesMembers(t *testing.T) {
	rows, labels := stepData()

	ridge := &linearModel{l2: 1}
	forest := newRandomForest(10, 3)
	e := newEnsemble(ridge, forest)
	require.NoError(t, e.Fit(rows, labels))

	probe := []float64{12, 5}
	want := (ridge.Predict(probe) + forest.Predict(probe)) / 2
	assert.InDelta(t, want, e.Predict(probe), 1e-9)
	assert.Nil(t, e.Importance())
}

func TestRegressorFactory(t *testing.T) {
	for _, m := range []ModelType{
		ModelLinear, ModelRidge, ModelLasso,
		ModelRandomForest, ModelGradientBoosting, ModelEnsemble,
	} {
		reg, ok := newRegressor(m)
		assert.True(t, ok, string(m))
		assert.NotNil(t, reg, string(m))
	}

	_, ok := newRegressor(ModelType("bogus"))
	assert.False(t, ok)
}
