package forecast

import (
	"math"

	"github.com/quantmill/quant-engine/internal/quanterr"
	"gonum.org/v1/gonum/mat"
)

// linearModel solves least squares through the normal equations, with an
// optional L2 penalty on the coefficients. The intercept is never penalized.
type linearModel struct {
	l2        float64
	intercept float64
	coef      []float64
}

func (m *linearModel) Fit(rows [][]float64, labels []float64) error {
	n := len(rows)
	if n == 0 {
		return quanterr.New(quanterr.InsufficientHistory, "no training rows")
	}
	p := len(rows[0])

	// Design matrix with a leading column of ones for the intercept.
	a := mat.NewDense(n, p+1, nil)
	for i, row := range rows {
		a.Set(i, 0, 1)
		for j, v := range row {
			a.Set(i, j+1, v)
		}
	}
	y := mat.NewVecDense(n, labels)

	var gram mat.Dense
	gram.Mul(a.T(), a)
	for j := 1; j <= p; j++ {
		gram.Set(j, j, gram.At(j, j)+m.l2)
	}

	var aty mat.VecDense
	aty.MulVec(a.T(), y)

	var beta mat.VecDense
	if err := beta.SolveVec(&gram, &aty); err != nil {
		return quanterr.Wrap(quanterr.Computation, err, "singular design matrix")
	}

	m.intercept = beta.AtVec(0)
	m.coef = make([]float64, p)
	for j := 0; j < p; j++ {
		m.coef[j] = beta.AtVec(j + 1)
	}

	return nil
}

func (m *linearModel) Predict(row []float64) float64 {
	out := m.intercept
	for j, v := range row {
		out += m.coef[j] * v
	}
	return out
}

func (m *linearModel) Importance() []float64 {
	return absWeights(m.coef)
}

// lasso fits an L1-penalized linear model by cyclic coordinate descent.
// Features are expected pre-standardized, which keeps the per-coordinate
// denominator close to the row count.
type lasso struct {
	lambda    float64
	maxIter   int
	tol       float64
	intercept float64
	coef      []float64
}

func newLasso(lambda float64) *lasso {
	return &lasso{lambda: lambda, maxIter: 1000, tol: 1e-6}
}

func (m *lasso) Fit(rows [][]float64, labels []float64) error {
	n := len(rows)
	if n == 0 {
		return quanterr.New(quanterr.InsufficientHistory, "no training rows")
	}
	p := len(rows[0])

	var ybar float64
	for _, v := range labels {
		ybar += v
	}
	ybar /= float64(n)
	m.intercept = ybar
	m.coef = make([]float64, p)

	// Residuals start at the centered labels since all coefficients are zero.
	resid := make([]float64, n)
	for i, v := range labels {
		resid[i] = v - ybar
	}

	colSq := make([]float64, p)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			colSq[j] += rows[i][j] * rows[i][j]
		}
	}

	penalty := m.lambda * float64(n)
	for iter := 0; iter < m.maxIter; iter++ {
		maxDelta := 0.0
		for j := 0; j < p; j++ {
			if colSq[j] == 0 {
				continue
			}

			// Partial residual correlation with coordinate j excluded.
			rho := 0.0
			for i := 0; i < n; i++ {
				rho += rows[i][j] * (resid[i] + rows[i][j]*m.coef[j])
			}

			updated := softThreshold(rho, penalty) / colSq[j]
			delta := updated - m.coef[j]
			if delta != 0 {
				for i := 0; i < n; i++ {
					resid[i] -= rows[i][j] * delta
				}
				m.coef[j] = updated
			}
			maxDelta = math.Max(maxDelta, math.Abs(delta))
		}
		if maxDelta < m.tol {
			break
		}
	}

	return nil
}

func (m *lasso) Predict(row []float64) float64 {
	out := m.intercept
	for j, v := range row {
		out += m.coef[j] * v
	}
	return out
}

func (m *lasso) Importance() []float64 {
	return absWeights(m.coef)
}

func softThreshold(v, penalty float64) float64 {
	switch {
	case v > penalty:
		return v - penalty
	case v < -penalty:
		return v + penalty
	default:
		return 0
	}
}

func absWeights(coef []float64) []float64 {
	if len(coef) == 0 {
		return nil
	}

	out := make([]float64, len(coef))
	var total float64
	for j, c := range coef {
		out[j] = math.Abs(c)
		total += out[j]
	}
	if total == 0 {
		return out
	}
	for j := range out {
		out[j] /= total
	}
	return out
}
