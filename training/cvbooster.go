package training

import (
	"fmt"

	"github.com/xyzhou-puck/LightGBM/callback"
	"github.com/xyzhou-puck/LightGBM/config"
)

// ValidName is the name under which a fold's validation set is registered.
const ValidName = "valid"

// CVBooster holds one fold of a cross-validation run.
type CVBooster struct {
	TrainSet Dataset
	ValidSet Dataset
	Booster  Booster
}

// NewCVBooster trains a model on train and registers valid as its only
// evaluation target.
func NewCVBooster(factory BoosterFactory, train, valid Dataset, params config.Params) (*CVBooster, error) {
	booster, err := factory.NewBooster(params, train)
	if err != nil {
		return nil, fmt.Errorf("construct fold booster: %w", err)
	}
	if err := booster.AddValid(valid, ValidName); err != nil {
		return nil, fmt.Errorf("add fold valid set: %w", err)
	}
	return &CVBooster{TrainSet: train, ValidSet: valid, Booster: booster}, nil
}

// Update runs one boosting round.
func (f *CVBooster) Update(fobj ObjectiveFunc) error {
	return f.Booster.Update(fobj)
}

// Eval evaluates the fold's validation set.
func (f *CVBooster) Eval(feval EvalFunc) ([]callback.EvalResult, error) {
	return f.Booster.EvalValid(feval)
}

// Model implements callback.Fold.
func (f *CVBooster) Model() callback.Model {
	return f.Booster
}
