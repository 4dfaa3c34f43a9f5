package forecast

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearModel_recoversExactFit(t *testing.T) {
	// y = 3 + 2*x0 - 1*x1, no noise.
	rows := [][]float64{
		{0, 0}, {1, 0}, {0, 1}, {1, 1}, {2, 1}, {2, 3}, {-1, 2},
	}
	labels := make([]float64, len(rows))
	for i, r := range rows {
		labels[i] = 3 + 2*r[0] - r[1]
	}

	m := &linearModel{}
	require.NoError(t, m.Fit(rows, labels))

	assert.InDelta(t, 3, m.intercept, 1e-9)
	assert.InDelta(t, 2, m.coef[0], 1e-9)
	assert.InDelta(t, -1, m.coef[1], 1e-9)
	assert.InDelta(t, 3+2*5-2, m.Predict([]float64{5, 2}), 1e-9)
}

func TestLinearModel_ridgeShrinksCoefficients(t *testing.T) {
	rows := [][]float64{
		{0, 0}, {1, 0}, {0, 1}, {1, 1}, {2, 1}, {2, 3}, {-1, 2},
	}
	labels := make([]float64, len(rows))
	for i, r := range rows {
		labels[i] = 3 + 2*r[0] - r[1]
	}

	ols := &linearModel{}
	require.NoError(t, ols.Fit(rows, labels))
	ridge := &linearModel{l2: 10}
	require.NoError(t, ridge.Fit(rows, labels))

	assert.Less(t, absf(ridge.coef[0]), absf(ols.coef[0]))
	assert.Less(t, absf(ridge.coef[1]), absf(ols.coef[1]))
}

func TestLinearModel_importanceNormalized(t *testing.T) {
	m := &linearModel{coef: []float64{2, -1, 1}}
	imp := m.Importance()

	require.Len(t, imp, 3)
	assert.InDelta(t, 0.5, imp[0], 1e-9)
	assert.InDelta(t, 0.25, imp[1], 1e-9)
	assert.InDelta(t, 0.25, imp[2], 1e-9)
}

func TestLasso_zerosIrrelevantFeature(t *testing.T) {
	// x1 never moves the label; the L1 penalty should drop it entirely.
	rows := [][]float64{
		{-2, 1}, {-1, -1}, {0, 1}, {1, -1}, {2, 1}, {-1.5, -1}, {1.5, 1}, {0.5, -1},
	}
	labels := make([]float64, len(rows))
	for i, r := range rows {
		labels[i] = 4 * r[0]
	}

	m := newLasso(0.1)
	require.NoError(t, m.Fit(rows, labels))

	assert.InDelta(t, 0, m.coef[1], 1e-6)
	assert.Greater(t, m.coef[0], 3.0)
}

func TestSoftThreshold(t *testing.T) {
	tbl := []struct {
		v, penalty float64
		want       float64
	}{
		{v: 5, penalty: 2, want: 3},
		{v: -5, penalty: 2, want: -3},
		{v: 1, penalty: 2, want: 0},
		{v: -1, penalty: 2, want: 0},
		{v: 2, penalty: 2, want: 0},
	}

	for i, c := range tbl {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			assert.InDelta(t, c.want, softThreshold(c.v, c.penalty), 1e-9)
		})
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
