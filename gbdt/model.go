package gbdt

import (
	"fmt"

	"github.com/xyzhou-puck/LightGBM/checkpoints"
)

// Model is a trained additive ensemble of stumps.
type Model struct {
	Objective    string
	NumFeature   int
	FeatureNames []string
	InitScore    float64
	Trees        []Tree
}

func (m *Model) clone() Model {
	out := *m
	out.Trees = append([]Tree(nil), m.Trees...)
	out.FeatureNames = append([]string(nil), m.FeatureNames...)
	return out
}

// rawScore sums the first numTrees trees for row. numTrees <= 0 or larger
// than the ensemble uses every tree.
func (m *Model) rawScore(row []float64, numTrees int) float64 {
	if numTrees <= 0 || numTrees > len(m.Trees) {
		numTrees = len(m.Trees)
	}
	s := m.InitScore
	for _, t := range m.Trees[:numTrees] {
		s += t.Predict(row)
	}
	return s
}

// Predictor is the frozen export of a Booster used for warm starts and
// prediction.
type Predictor struct {
	model Model
	obj   objective
}

// NumTotalIteration returns the number of boosting rounds in the ensemble.
func (p *Predictor) NumTotalIteration() int {
	return len(p.model.Trees)
}

// PredictRaw returns untransformed scores using the first numIteration
// rounds, or all rounds when numIteration <= 0.
func (p *Predictor) PredictRaw(rows [][]float64, numIteration int) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		if len(row) != p.model.NumFeature {
			return nil, fmt.Errorf("row %d has %d features, model expects %d", i, len(row), p.model.NumFeature)
		}
		out[i] = p.model.rawScore(row, numIteration)
	}
	return out, nil
}

// Predict returns scores on the objective's output scale.
func (p *Predictor) Predict(rows [][]float64, numIteration int) ([]float64, error) {
	out, err := p.PredictRaw(rows, numIteration)
	if err != nil {
		return nil, err
	}
	if p.obj != nil {
		for i, v := range out {
			out[i] = p.obj.Transform(v)
		}
	}
	return out, nil
}

func toCheckpoint(m *Model) *checkpoints.Checkpoint {
	trees := make([]checkpoints.TreeState, len(m.Trees))
	for i, t := range m.Trees {
		trees[i] = checkpoints.TreeState{
			Feature:     t.Feature,
			Threshold:   t.Threshold,
			Categorical: t.Categorical,
			LeftValue:   t.LeftValue,
			RightValue:  t.RightValue,
			Gain:        t.Gain,
		}
	}
	return &checkpoints.Checkpoint{
		Objective:    m.Objective,
		NumFeature:   m.NumFeature,
		FeatureNames: m.FeatureNames,
		InitScore:    m.InitScore,
		Trees:        trees,
		TrainingState: checkpoints.TrainingState{
			Iteration: len(m.Trees),
		},
	}
}

func fromCheckpoint(c *checkpoints.Checkpoint) (*Predictor, error) {
	obj, err := parseObjective(c.Objective)
	if err != nil {
		return nil, err
	}
	m := Model{
		Objective:    objectiveName(obj),
		NumFeature:   c.NumFeature,
		FeatureNames: c.FeatureNames,
		InitScore:    c.InitScore,
		Trees:        make([]Tree, len(c.Trees)),
	}
	for i, t := range c.Trees {
		m.Trees[i] = Tree{
			Feature:     t.Feature,
			Threshold:   t.Threshold,
			Categorical: t.Categorical,
			LeftValue:   t.LeftValue,
			RightValue:  t.RightValue,
			Gain:        t.Gain,
		}
	}
	return &Predictor{model: m, obj: obj}, nil
}

// LoadPredictor reads a model saved by Booster.SaveModel. The format is
// chosen from the file extension.
func LoadPredictor(path string) (*Predictor, error) {
	c, err := checkpoints.NewCheckpointSaver(checkpoints.FormatForPath(path)).LoadCheckpoint(path)
	if err != nil {
		return nil, err
	}
	return fromCheckpoint(c)
}
