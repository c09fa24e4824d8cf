package training

import (
	"github.com/xyzhou-puck/LightGBM/callback"
	"github.com/xyzhou-puck/LightGBM/config"
)

// Dataset is the training data collaborator. Implementations own storage and
// feature binning; the controllers only sequence these calls.
type Dataset interface {
	// Construct materializes internal structures. It is idempotent.
	Construct() error
	NumData() int
	Label() ([]float64, error)
	// Subset returns the rows at indices. Row identity is preserved for labels.
	Subset(indices []int) (Dataset, error)
	// SetReference makes the dataset share ref's feature binning.
	SetReference(ref Dataset) error
	SetFeatureNames(names []string) error
	SetCategoricalFeatures(features []string) error
	// SetPredictor binds a warm start predictor so incremental structures can
	// be rebuilt against it. A nil predictor clears the binding.
	SetPredictor(p Predictor) error
}

// Predictor is the exported state of a trained model used for warm starts.
type Predictor interface {
	// NumTotalIteration is the number of rounds already completed.
	NumTotalIteration() int
}

// ObjectiveFunc computes first and second order gradients of a custom loss
// for the current raw predictions.
type ObjectiveFunc func(preds []float64, train Dataset) (grad, hess []float64, err error)

// EvalFunc computes a custom metric for the current raw predictions.
type EvalFunc func(preds []float64, data Dataset) (name string, value float64, higherBetter bool, err error)

// Booster is the trainable model collaborator.
type Booster interface {
	callback.Model

	AddValid(data Dataset, name string) error
	SetTrainDataName(name string)
	// Update performs exactly one boosting round. A nil objective uses the
	// configured one.
	Update(fobj ObjectiveFunc) error
	EvalTrain(feval EvalFunc) ([]callback.EvalResult, error)
	// EvalValid returns one result per registered validation set per metric.
	EvalValid(feval EvalFunc) ([]callback.EvalResult, error)
	ToPredictor() (Predictor, error)
	SetBestIteration(n int)
	BestIteration() int
}

// BoosterFactory constructs models and loads serialized predictors.
type BoosterFactory interface {
	NewBooster(params config.Params, train Dataset) (Booster, error)
	LoadPredictor(path string) (Predictor, error)
}

// DatasetPreparer is implemented by factories whose parameters affect how a
// dataset is constructed (binning, for example). The controllers call it on
// the training or full dataset before anything constructs or subsets it.
type DatasetPreparer interface {
	PrepareDataset(params config.Params, ds Dataset) error
}
