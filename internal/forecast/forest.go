package forecast

import (
	"math"
	"math/rand"

	"github.com/quantmill/quant-engine/internal/quanterr"
)

// Fixed seed keeps every run of the same input bit-identical.
const forecastSeed = 42

// randomForest bags regression trees over bootstrap samples, each tree
// restricted to a random third of the features.
type randomForest struct {
	trees    int
	maxDepth int
	fitted   []*regressionTree
	gains    []float64
}

func newRandomForest(trees, maxDepth int) *randomForest {
	return &randomForest{trees: trees, maxDepth: maxDepth}
}

func (f *randomForest) Fit(rows [][]float64, labels []float64) error {
	n := len(rows)
	if n < 2*minLeafSize {
		return quanterr.New(quanterr.InsufficientHistory, "too few training rows for forest")
	}
	p := len(rows[0])

	mtry := p / 3
	if mtry < 1 {
		mtry = 1
	}

	rng := rand.New(rand.NewSource(forecastSeed))
	f.fitted = make([]*regressionTree, 0, f.trees)
	f.gains = make([]float64, p)

	for t := 0; t < f.trees; t++ {
		bootRows := make([][]float64, n)
		bootLabels := make([]float64, n)
		for i := 0; i < n; i++ {
			k := rng.Intn(n)
			bootRows[i] = rows[k]
			bootLabels[i] = labels[k]
		}

		features := rng.Perm(p)[:mtry]

		tree := &regressionTree{maxDepth: f.maxDepth, features: features}
		tree.fit(bootRows, bootLabels)
		f.fitted = append(f.fitted, tree)

		for j, g := range tree.gains {
			f.gains[j] += g
		}
	}

	return nil
}

func (f *randomForest) Predict(row []float64) float64 {
	var sum float64
	for _, t := range f.fitted {
		sum += t.predict(row)
	}
	return sum / float64(len(f.fitted))
}

func (f *randomForest) Importance() []float64 {
	return normalized(f.gains)
}

// gradientBoosting fits trees to the running residuals, shrinking each
// tree's contribution by the learning rate.
type gradientBoosting struct {
	trees        int
	maxDepth     int
	learningRate float64
	base         float64
	fitted       []*regressionTree
	gains        []float64
}

func newGradientBoosting(trees, maxDepth int, learningRate float64) *gradientBoosting {
	return &gradientBoosting{trees: trees, maxDepth: maxDepth, learningRate: learningRate}
}

func (g *gradientBoosting) Fit(rows [][]float64, labels []float64) error {
	n := len(rows)
	if n < 2*minLeafSize {
		return quanterr.New(quanterr.InsufficientHistory, "too few training rows for boosting")
	}
	p := len(rows[0])

	var sum float64
	for _, y := range labels {
		sum += y
	}
	g.base = sum / float64(n)

	resid := make([]float64, n)
	for i, y := range labels {
		resid[i] = y - g.base
	}

	g.fitted = make([]*regressionTree, 0, g.trees)
	g.gains = make([]float64, p)

	for t := 0; t < g.trees; t++ {
		tree := &regressionTree{maxDepth: g.maxDepth}
		tree.fit(rows, resid)
		g.fitted = append(g.fitted, tree)

		for j, gain := range tree.gains {
			g.gains[j] += gain
		}

		stalled := true
		for i, row := range rows {
			step := g.learningRate * tree.predict(row)
			resid[i] -= step
			if math.Abs(step) > 1e-12 {
				stalled = false
			}
		}
		if stalled {
			break
		}
	}

	return nil
}

func (g *gradientBoosting) Predict(row []float64) float64 {
	out := g.base
	for _, t := range g.fitted {
		out += g.learningRate * t.predict(row)
	}
	return out
}

func (g *gradientBoosting) Importance() []float64 {
	return normalized(g.gains)
}

// ensemble averages the predictions of its members. It exposes no single
// importance ranking.
type ensemble struct {
	members []Regressor
}

func newEnsemble(members ...Regressor) *ensemble {
	return &ensemble{members: members}
}

func (e *ensemble) Fit(rows [][]float64, labels []float64) error {
	for _, m := range e.members {
		if err := m.Fit(rows, labels); err != nil {
			return err
		}
	}
	return nil
}

func (e *ensemble) Predict(row []float64) float64 {
	var sum float64
	for _, m := range e.members {
		sum += m.Predict(row)
	}
	return sum / float64(len(e.members))
}

func (e *ensemble) Importance() []float64 { return nil }
