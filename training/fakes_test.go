package training

import (
	"fmt"
	"strconv"

	"github.com/xyzhou-puck/LightGBM/callback"
	"github.com/xyzhou-puck/LightGBM/config"
)

// fakeDataset records the collaborator calls made by the controllers.
type fakeDataset struct {
	labels       []float64
	rowIDs       []int
	constructs   int
	reference    Dataset
	predictor    Predictor
	featureNames []string
	categorical  []string
}

func newFakeDataset(labels ...float64) *fakeDataset {
	ids := make([]int, len(labels))
	for i := range ids {
		ids[i] = i
	}
	return &fakeDataset{labels: labels, rowIDs: ids}
}

func rangeDataset(n int) *fakeDataset {
	labels := make([]float64, n)
	for i := range labels {
		labels[i] = float64(i)
	}
	return newFakeDataset(labels...)
}

func (d *fakeDataset) Construct() error {
	d.constructs++
	return nil
}

func (d *fakeDataset) NumData() int { return len(d.labels) }

func (d *fakeDataset) Label() ([]float64, error) {
	return append([]float64(nil), d.labels...), nil
}

func (d *fakeDataset) Subset(indices []int) (Dataset, error) {
	sub := &fakeDataset{predictor: d.predictor}
	for _, i := range indices {
		if i < 0 || i >= len(d.labels) {
			return nil, fmt.Errorf("index %d out of range", i)
		}
		sub.labels = append(sub.labels, d.labels[i])
		sub.rowIDs = append(sub.rowIDs, d.rowIDs[i])
	}
	sub.reference = d
	return sub, nil
}

func (d *fakeDataset) SetReference(ref Dataset) error {
	d.reference = ref
	return nil
}

func (d *fakeDataset) SetFeatureNames(names []string) error {
	d.featureNames = names
	return nil
}

func (d *fakeDataset) SetCategoricalFeatures(features []string) error {
	d.categorical = features
	return nil
}

func (d *fakeDataset) SetPredictor(p Predictor) error {
	d.predictor = p
	return nil
}

type fakePredictor struct{ iterations int }

func (p fakePredictor) NumTotalIteration() int { return p.iterations }

type namedSet struct {
	name string
	data Dataset
}

// fakeBooster produces scripted metric values: score(iteration, data name),
// one result per configured metric.
type fakeBooster struct {
	params    config.Params
	train     Dataset
	trainName string
	valid     []namedSet
	updates   int
	initIter  int
	attrs     map[string]string
	resets    []config.Params
	bestIter  int
	score     func(iter int, data string) float64
	metrics   []string
	objective ObjectiveFunc
}

func (b *fakeBooster) Attr(key string) (string, bool) {
	v, ok := b.attrs[key]
	return v, ok
}

func (b *fakeBooster) SetAttr(key, value string) { b.attrs[key] = value }

func (b *fakeBooster) ResetParameter(p config.Params) error {
	b.resets = append(b.resets, p)
	return nil
}

func (b *fakeBooster) AddValid(data Dataset, name string) error {
	b.valid = append(b.valid, namedSet{name: name, data: data})
	return nil
}

func (b *fakeBooster) SetTrainDataName(name string) { b.trainName = name }

func (b *fakeBooster) Update(fobj ObjectiveFunc) error {
	if fobj != nil {
		if _, _, err := fobj(nil, b.train); err != nil {
			return err
		}
	}
	b.updates++
	return nil
}

func (b *fakeBooster) result(name string, feval EvalFunc, data Dataset) ([]callback.EvalResult, error) {
	iter := b.initIter + b.updates - 1
	res := make([]callback.EvalResult, 0, len(b.metrics)+1)
	for _, m := range b.metrics {
		res = append(res, callback.EvalResult{DataName: name, MetricName: m, Value: b.score(iter, name)})
	}
	if feval != nil {
		n, v, hb, err := feval(nil, data)
		if err != nil {
			return nil, err
		}
		res = append(res, callback.EvalResult{DataName: name, MetricName: n, Value: v, HigherBetter: hb})
	}
	return res, nil
}

func (b *fakeBooster) EvalTrain(feval EvalFunc) ([]callback.EvalResult, error) {
	return b.result(b.trainName, feval, b.train)
}

func (b *fakeBooster) EvalValid(feval EvalFunc) ([]callback.EvalResult, error) {
	var out []callback.EvalResult
	for _, v := range b.valid {
		res, err := b.result(v.name, feval, v.data)
		if err != nil {
			return nil, err
		}
		out = append(out, res...)
	}
	return out, nil
}

func (b *fakeBooster) ToPredictor() (Predictor, error) {
	return fakePredictor{iterations: b.initIter + b.updates}, nil
}

func (b *fakeBooster) SetBestIteration(n int) { b.bestIter = n }

func (b *fakeBooster) BestIteration() int { return b.bestIter }

// fakeFactory builds fakeBoosters and remembers them in creation order.
type fakeFactory struct {
	boosters  []*fakeBooster
	score     func(iter int, data string) float64
	loaded    map[string]Predictor
	newErr    error
	lastParam config.Params

	// prepared holds the construct count of each dataset when it was
	// prepared.
	prepared   []int
	prepareErr error
}

func (f *fakeFactory) PrepareDataset(params config.Params, ds Dataset) error {
	if f.prepareErr != nil {
		return f.prepareErr
	}
	constructs := -1
	if d, ok := ds.(*fakeDataset); ok {
		constructs = d.constructs
	}
	f.prepared = append(f.prepared, constructs)
	return nil
}

func (f *fakeFactory) NewBooster(params config.Params, train Dataset) (Booster, error) {
	if f.newErr != nil {
		return nil, f.newErr
	}
	score := f.score
	if score == nil {
		score = func(iter int, _ string) float64 { return 1 / float64(iter+1) }
	}
	metrics := params.Metrics()
	if len(metrics) == 0 {
		metrics = []string{"l2"}
	}
	b := &fakeBooster{
		params:    params,
		train:     train,
		trainName: DefaultTrainDataName,
		attrs:     make(map[string]string),
		score:     score,
		metrics:   metrics,
	}
	if ds, ok := train.(*fakeDataset); ok && ds.predictor != nil {
		b.initIter = ds.predictor.NumTotalIteration()
	}
	f.boosters = append(f.boosters, b)
	f.lastParam = params
	return b, nil
}

func (f *fakeFactory) LoadPredictor(path string) (Predictor, error) {
	if p, ok := f.loaded[path]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("no model at %s", path)
}

// recorder is a callback that appends a tag to a shared log.
type recorder struct {
	tag  string
	log  *[]string
	opts callback.Options
	err  error
}

func (r *recorder) Call(env *callback.Env) error {
	*r.log = append(*r.log, r.tag+"@"+strconv.Itoa(env.Iteration))
	return r.err
}

func (r *recorder) Options() callback.Options { return r.opts }

// valueRecorder has a non-comparable dynamic type.
type valueRecorder struct {
	log  *[]string
	tags []string
}

func (r valueRecorder) Call(env *callback.Env) error {
	*r.log = append(*r.log, r.tags...)
	return nil
}

func (r valueRecorder) Options() callback.Options { return callback.Options{} }
