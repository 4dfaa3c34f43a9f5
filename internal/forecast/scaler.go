package forecast

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/stat"
)

// scaler standardizes feature columns to zero mean and unit variance using
// statistics from the training rows only.
type scaler struct {
	means []float64
	stds  []float64
}

func fitScaler(rows [][]float64, names []string, log *slog.Logger) *scaler {
	cols := len(rows[0])
	sc := &scaler{
		means: make([]float64, cols),
		stds:  make([]float64, cols),
	}

	col := make([]float64, len(rows))
	for j := 0; j < cols; j++ {
		for i, row := range rows {
			col[i] = row[j]
		}
		sc.means[j] = stat.Mean(col, nil)
		sc.stds[j] = stat.StdDev(col, nil)

		// A constant column carries no information. Dividing by one
		// maps it to zero after centering instead of blowing up.
		if sc.stds[j] == 0 || math.IsNaN(sc.stds[j]) {
			log.Warn("constant feature column, scaling to zero", "feature", names[j])
			sc.stds[j] = 1
		}
	}

	return sc
}

func (sc *scaler) transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - sc.means[j]) / sc.stds[j]
	}
	return out
}

func (sc *scaler) transformAll(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = sc.transform(row)
	}
	return out
}
