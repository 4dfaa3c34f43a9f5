package forecast

// Regressor fits a supervised model on scaled feature rows and predicts a
// single target from one row.
type Regressor interface {
	Fit(rows [][]float64, labels []float64) error
	Predict(row []float64) float64
	// Importance reports per-feature relative weight summing to one,
	// or nil when the model does not expose one.
	Importance() []float64
}

// ModelType selects the forecasting model.
type ModelType string

const (
	ModelLinear           ModelType = "linear"
	ModelRidge            ModelType = "ridge"
	ModelLasso            ModelType = "lasso"
	ModelRandomForest     ModelType = "random_forest"
	ModelGradientBoosting ModelType = "gradient_boosting"
	ModelEnsemble         ModelType = "ensemble"
)

func newRegressor(model ModelType) (Regressor, bool) {
	switch model {
	case ModelLinear:
		return &linearModel{}, true
	case ModelRidge:
		return &linearModel{l2: 1.0}, true
	case ModelLasso:
		return newLasso(0.1), true
	case ModelRandomForest:
		return newRandomForest(100, 10), true
	case ModelGradientBoosting:
		return newGradientBoosting(100, 5, 0.1), true
	case ModelEnsemble:
		return newEnsemble(
			&linearModel{l2: 1.0},
			newRandomForest(50, 10),
			newGradientBoosting(50, 5, 0.1),
		), true
	default:
		return nil, false
	}
}
