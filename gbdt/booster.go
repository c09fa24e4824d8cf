// Package gbdt is a small gradient boosting engine that implements the model
// side of the training controllers: each round fits one regression stump to
// the loss gradients.
package gbdt

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/xyzhou-puck/LightGBM/callback"
	"github.com/xyzhou-puck/LightGBM/checkpoints"
	"github.com/xyzhou-puck/LightGBM/config"
	"github.com/xyzhou-puck/LightGBM/dataset"
	"github.com/xyzhou-puck/LightGBM/training"
)

// Parameter keys read by the booster.
const (
	ParamObjective        = "objective"
	ParamLearningRate     = "learning_rate"
	ParamLambdaL2         = "lambda_l2"
	ParamMinDataInLeaf    = "min_data_in_leaf"
	ParamMaxBin           = "max_bin"
	ParamBoostFromAverage = "boost_from_average"
)

// ErrNoObjective is returned by Update when the objective is "none" and no
// custom objective function was given.
var ErrNoObjective = errors.New("objective is none and no custom objective was given")

type evalSet struct {
	name  string
	data  *dataset.Dataset
	score []float64
}

// Booster trains a Model one stump per Update.
type Booster struct {
	params  config.Params
	obj     objective
	tree    treeParams
	metrics []metric
	maxBin  int

	model Model

	train      evalSet
	valid      []evalSet
	attrs      map[string]string
	bestIter   int
	validNames map[string]bool
}

// NewBooster builds a booster on train. When train is bound to a Predictor
// the booster continues from its trees.
func NewBooster(params config.Params, train *dataset.Dataset) (*Booster, error) {
	params = params.Clone()
	obj, err := parseObjective(params.String(ParamObjective, ObjectiveRegression))
	if err != nil {
		return nil, err
	}
	tp, err := parseTreeParams(params)
	if err != nil {
		return nil, err
	}
	metrics, err := resolveMetrics(params.Metrics(), obj)
	if err != nil {
		return nil, err
	}
	maxBin, err := maxBinParam(params)
	if err != nil {
		return nil, err
	}

	train.SetMaxBin(maxBin)
	if err := train.Construct(); err != nil {
		return nil, fmt.Errorf("construct train data: %w", err)
	}
	labels, err := train.Label()
	if err != nil {
		return nil, err
	}
	if obj != nil {
		if err := obj.CheckLabels(labels); err != nil {
			return nil, err
		}
	}

	b := &Booster{
		params:  params,
		obj:     obj,
		tree:    tp,
		metrics: metrics,
		maxBin:  maxBin,
		model: Model{
			Objective:    objectiveName(obj),
			NumFeature:   train.NumFeature(),
			FeatureNames: train.FeatureNames(),
		},
		attrs:      make(map[string]string),
		validNames: make(map[string]bool),
	}

	switch p := train.Predictor().(type) {
	case nil:
		boost := true
		if v, ok := params[ParamBoostFromAverage]; ok {
			boost, err = strconv.ParseBool(fmt.Sprint(v))
			if err != nil {
				return nil, fmt.Errorf("param %q: %w", ParamBoostFromAverage, err)
			}
		}
		if obj != nil && boost && train.InitScore() == nil {
			b.model.InitScore = obj.BoostFromAverage(labels, train.Weights())
		}
	case *Predictor:
		if p == nil {
			break
		}
		if p.model.NumFeature != train.NumFeature() {
			return nil, fmt.Errorf("init model has %d features, train data has %d", p.model.NumFeature, train.NumFeature())
		}
		b.model.InitScore = p.model.InitScore
		b.model.Trees = append([]Tree(nil), p.model.Trees...)
	default:
		return nil, fmt.Errorf("unsupported predictor type %T", p)
	}

	b.train = evalSet{name: training.DefaultTrainDataName, data: train, score: b.scores(train)}
	return b, nil
}

func maxBinParam(p config.Params) (int, error) {
	n, err := p.Int(ParamMaxBin, dataset.DefaultMaxBin)
	if err != nil {
		return 0, err
	}
	if n < 2 {
		return 0, fmt.Errorf("param %q must be at least 2, got %d", ParamMaxBin, n)
	}
	return n, nil
}

func parseTreeParams(p config.Params) (treeParams, error) {
	lr, err := p.Float(ParamLearningRate, 0.1)
	if err != nil {
		return treeParams{}, err
	}
	if lr <= 0 {
		return treeParams{}, fmt.Errorf("param %q must be positive, got %g", ParamLearningRate, lr)
	}
	l2, err := p.Float(ParamLambdaL2, 0)
	if err != nil {
		return treeParams{}, err
	}
	if l2 < 0 {
		return treeParams{}, fmt.Errorf("param %q must be non-negative, got %g", ParamLambdaL2, l2)
	}
	minData, err := p.Int(ParamMinDataInLeaf, 20)
	if err != nil {
		return treeParams{}, err
	}
	if minData < 0 {
		return treeParams{}, fmt.Errorf("param %q must be non-negative, got %d", ParamMinDataInLeaf, minData)
	}
	return treeParams{learningRate: lr, lambdaL2: l2, minDataInLeaf: minData}, nil
}

// scores returns the current raw score of every row of ds.
func (b *Booster) scores(ds *dataset.Dataset) []float64 {
	init := ds.InitScore()
	out := make([]float64, ds.NumData())
	for i := range out {
		out[i] = b.model.rawScore(ds.Row(i), 0)
		if init != nil {
			out[i] += init[i]
		}
	}
	return out
}

// AddValid registers data for evaluation under name. data must share the
// training data's binning (see dataset.Dataset.SetReference).
func (b *Booster) AddValid(data training.Dataset, name string) error {
	ds, ok := data.(*dataset.Dataset)
	if !ok {
		return fmt.Errorf("unsupported dataset type %T", data)
	}
	if b.validNames[name] {
		return fmt.Errorf("duplicate validation set name %q", name)
	}
	if err := ds.Construct(); err != nil {
		return fmt.Errorf("construct valid data: %w", err)
	}
	if ds.NumData() > 0 && ds.NumFeature() != b.model.NumFeature {
		return fmt.Errorf("valid data has %d features, train data has %d", ds.NumFeature(), b.model.NumFeature)
	}
	b.valid = append(b.valid, evalSet{name: name, data: ds, score: b.scores(ds)})
	b.validNames[name] = true
	return nil
}

// SetTrainDataName sets the data name reported by EvalTrain.
func (b *Booster) SetTrainDataName(name string) {
	b.train.name = name
}

// Update fits one stump. A non-nil fobj replaces the configured objective.
func (b *Booster) Update(fobj training.ObjectiveFunc) error {
	n := b.train.data.NumData()
	var grad, hess []float64
	if fobj != nil {
		var err error
		grad, hess, err = fobj(append([]float64(nil), b.train.score...), b.train.data)
		if err != nil {
			return fmt.Errorf("custom objective: %w", err)
		}
		if len(grad) != n || len(hess) != n {
			return fmt.Errorf("custom objective returned %d gradients and %d hessians for %d rows", len(grad), len(hess), n)
		}
	} else {
		if b.obj == nil {
			return ErrNoObjective
		}
		labels, err := b.train.data.Label()
		if err != nil {
			return err
		}
		grad, hess = make([]float64, n), make([]float64, n)
		b.obj.Gradients(b.train.score, labels, grad, hess)
	}

	t := fitStump(b.train.data, grad, hess, b.tree)
	b.model.Trees = append(b.model.Trees, t)
	b.addTree(&b.train, t)
	for i := range b.valid {
		b.addTree(&b.valid[i], t)
	}
	return nil
}

func (b *Booster) addTree(set *evalSet, t Tree) {
	for i := range set.score {
		set.score[i] += t.Predict(set.data.Row(i))
	}
}

// EvalTrain evaluates the training data.
func (b *Booster) EvalTrain(feval training.EvalFunc) ([]callback.EvalResult, error) {
	return b.eval(b.train, feval)
}

// EvalValid evaluates every validation set in registration order.
func (b *Booster) EvalValid(feval training.EvalFunc) ([]callback.EvalResult, error) {
	var out []callback.EvalResult
	for _, set := range b.valid {
		res, err := b.eval(set, feval)
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out, nil
}

func (b *Booster) eval(set evalSet, feval training.EvalFunc) ([]callback.EvalResult, error) {
	labels, err := set.data.Label()
	if err != nil {
		return nil, err
	}
	preds := set.score
	if b.obj != nil && len(b.metrics) > 0 {
		preds = make([]float64, len(set.score))
		for i, s := range set.score {
			preds[i] = b.obj.Transform(s)
		}
	}

	out := make([]callback.EvalResult, 0, len(b.metrics)+1)
	for _, m := range b.metrics {
		out = append(out, callback.EvalResult{
			DataName:     set.name,
			MetricName:   m.name,
			Value:        m.eval(labels, preds, set.data.Weights()),
			HigherBetter: m.higherBetter,
		})
	}
	if feval != nil {
		name, value, higherBetter, err := feval(append([]float64(nil), set.score...), set.data)
		if err != nil {
			return nil, fmt.Errorf("custom eval on %s: %w", set.name, err)
		}
		out = append(out, callback.EvalResult{
			DataName:     set.name,
			MetricName:   name,
			Value:        value,
			HigherBetter: higherBetter,
		})
	}
	return out, nil
}

// Attr returns a string attribute.
func (b *Booster) Attr(key string) (string, bool) {
	v, ok := b.attrs[key]
	return v, ok
}

// SetAttr stores a string attribute. An empty value deletes the attribute.
func (b *Booster) SetAttr(key, value string) {
	if value == "" {
		delete(b.attrs, key)
		return
	}
	b.attrs[key] = value
}

// ResetParameter merges params into the booster's parameters. Tree and metric
// parameters take effect from the next round; the objective and binning
// cannot change.
func (b *Booster) ResetParameter(params config.Params) error {
	merged := b.params.Clone()
	for k, v := range params {
		merged[k] = v
	}

	obj, err := parseObjective(merged.String(ParamObjective, ObjectiveRegression))
	if err != nil {
		return err
	}
	if objectiveName(obj) != b.model.Objective {
		return fmt.Errorf("cannot change objective from %s to %s", b.model.Objective, objectiveName(obj))
	}
	maxBin, err := maxBinParam(merged)
	if err != nil {
		return err
	}
	if maxBin != b.maxBin {
		return fmt.Errorf("cannot change %s after data construction", ParamMaxBin)
	}
	tp, err := parseTreeParams(merged)
	if err != nil {
		return err
	}
	metrics, err := resolveMetrics(merged.Metrics(), b.obj)
	if err != nil {
		return err
	}

	b.params = merged
	b.tree = tp
	b.metrics = metrics
	return nil
}

// ToPredictor freezes the current ensemble.
func (b *Booster) ToPredictor() (training.Predictor, error) {
	return b.Predictor(), nil
}

// Predictor returns a frozen copy of the current ensemble.
func (b *Booster) Predictor() *Predictor {
	return &Predictor{model: b.model.clone(), obj: b.obj}
}

// NumTrees returns the number of trees in the ensemble, including trees
// inherited from a warm start.
func (b *Booster) NumTrees() int {
	return len(b.model.Trees)
}

// SetBestIteration records the round count to use for prediction.
func (b *Booster) SetBestIteration(n int) {
	b.bestIter = n
}

// BestIteration returns the recorded best round count, or 0.
func (b *Booster) BestIteration() int {
	return b.bestIter
}

// Predict scores rows on the objective's output scale using the first
// numIteration trees, or every tree when numIteration <= 0.
func (b *Booster) Predict(rows [][]float64, numIteration int) ([]float64, error) {
	return b.Predictor().Predict(rows, numIteration)
}

// SaveModel writes the ensemble, parameters and attributes to path.
func (b *Booster) SaveModel(path string, format checkpoints.CheckpointFormat) error {
	c := toCheckpoint(&b.model)
	c.Params = b.params
	c.Attributes = b.attrs
	c.TrainingState.BestIteration = b.bestIter
	c.TrainingState.LearningRate = b.tree.learningRate
	if err := checkpoints.NewCheckpointSaver(format).SaveCheckpoint(c, path); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	return nil
}

// Factory implements training.BoosterFactory for *dataset.Dataset data.
type Factory struct{}

// NewBooster implements training.BoosterFactory.
func (Factory) NewBooster(params config.Params, train training.Dataset) (training.Booster, error) {
	ds, ok := train.(*dataset.Dataset)
	if !ok {
		return nil, fmt.Errorf("unsupported dataset type %T", train)
	}
	return NewBooster(params, ds)
}

// PrepareDataset implements training.DatasetPreparer: it applies max_bin to
// ds before cross-validation or training constructs it.
func (Factory) PrepareDataset(params config.Params, ds training.Dataset) error {
	d, ok := ds.(*dataset.Dataset)
	if !ok {
		return fmt.Errorf("unsupported dataset type %T", ds)
	}
	maxBin, err := maxBinParam(params)
	if err != nil {
		return err
	}
	d.SetMaxBin(maxBin)
	return nil
}

// LoadPredictor implements training.BoosterFactory.
func (Factory) LoadPredictor(path string) (training.Predictor, error) {
	p, err := LoadPredictor(path)
	if err != nil {
		return nil, err
	}
	return p, nil
}
