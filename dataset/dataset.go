// Package dataset implements an in-memory dense Dataset for the training
// controllers: row storage, labels, feature binning shared through a
// reference dataset, row subsetting and warm start predictor binding.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/xyzhou-puck/LightGBM/training"
)

// DefaultMaxBin is the number of bins per feature when none is set.
const DefaultMaxBin = 255

var (
	// ErrShape is returned for ragged rows or a label count mismatch.
	ErrShape = errors.New("dataset shape mismatch")

	// ErrForeignDataset is returned when another Dataset implementation is
	// passed as a reference.
	ErrForeignDataset = errors.New("reference must be a *dataset.Dataset")
)

// Dataset holds dense float64 features and labels.
type Dataset struct {
	rows      [][]float64
	labels    []float64
	weights   []float64
	initScore []float64

	featureNames []string
	categorical  map[int]bool
	maxBin       int

	reference *Dataset
	predictor training.Predictor

	// bins[j] are the split thresholds of feature j once constructed.
	bins        [][]float64
	constructed bool

	// usedIndices are the parent row ids when the dataset is a subset.
	usedIndices []int
}

// FromRows creates a dataset from row-major features and one label per row.
func FromRows(rows [][]float64, labels []float64) (*Dataset, error) {
	if len(rows) != len(labels) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrShape, len(rows), len(labels))
	}
	width := -1
	for i, r := range rows {
		if width < 0 {
			width = len(r)
		} else if len(r) != width {
			return nil, fmt.Errorf("%w: row %d has %d features, expected %d", ErrShape, i, len(r), width)
		}
	}
	return &Dataset{
		rows:        rows,
		labels:      append([]float64(nil), labels...),
		categorical: make(map[int]bool),
		maxBin:      DefaultMaxBin,
	}, nil
}

// SetMaxBin sets the maximum number of bins per feature. It has no effect
// once the dataset is constructed.
func (d *Dataset) SetMaxBin(n int) {
	if n > 1 && !d.constructed {
		d.maxBin = n
	}
}

// Construct computes the feature bins, or adopts the reference's bins when a
// reference is set. Calling it again is a no-op.
func (d *Dataset) Construct() error {
	if d.constructed {
		return nil
	}
	if d.reference != nil {
		if d.maxBin != DefaultMaxBin {
			d.reference.SetMaxBin(d.maxBin)
		}
		if err := d.reference.Construct(); err != nil {
			return fmt.Errorf("construct reference: %w", err)
		}
		if d.reference.NumFeature() != d.NumFeature() && d.NumData() > 0 {
			return fmt.Errorf("%w: %d features, reference has %d", ErrShape, d.NumFeature(), d.reference.NumFeature())
		}
		d.bins = d.reference.bins
		d.constructed = true
		return nil
	}
	nf := d.NumFeature()
	d.bins = make([][]float64, nf)
	for j := 0; j < nf; j++ {
		d.bins[j] = d.featureBins(j)
	}
	d.constructed = true
	return nil
}

// featureBins returns candidate thresholds for feature j. Categorical
// features use their distinct values; numerical ones use midpoints between
// distinct values, subsampled by quantile when there are more than maxBin.
func (d *Dataset) featureBins(j int) []float64 {
	seen := make(map[float64]struct{})
	var values []float64
	for _, r := range d.rows {
		v := r[j]
		if math.IsNaN(v) {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			values = append(values, v)
		}
	}
	sort.Float64s(values)
	if d.categorical[j] {
		return values
	}
	if len(values) < 2 {
		return nil
	}
	mids := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		mids = append(mids, (values[i-1]+values[i])/2)
	}
	if len(mids) <= d.maxBin-1 {
		return mids
	}
	step := float64(len(mids)) / float64(d.maxBin-1)
	out := make([]float64, 0, d.maxBin-1)
	for k := 0; k < d.maxBin-1; k++ {
		t := mids[int(float64(k)*step)]
		if len(out) == 0 || out[len(out)-1] != t {
			out = append(out, t)
		}
	}
	return out
}

// NumData returns the number of rows.
func (d *Dataset) NumData() int {
	return len(d.rows)
}

// NumFeature returns the number of features.
func (d *Dataset) NumFeature() int {
	if len(d.rows) == 0 {
		return len(d.featureNames)
	}
	return len(d.rows[0])
}

// Label returns a copy of the labels.
func (d *Dataset) Label() ([]float64, error) {
	return append([]float64(nil), d.labels...), nil
}

// Row returns the features of row i. The slice must not be modified.
func (d *Dataset) Row(i int) []float64 {
	return d.rows[i]
}

// Bins returns the thresholds of feature j. Construct must have been called.
func (d *Dataset) Bins(j int) []float64 {
	if !d.constructed || j >= len(d.bins) {
		return nil
	}
	return d.bins[j]
}

// IsCategorical reports whether feature j is categorical.
func (d *Dataset) IsCategorical(j int) bool {
	return d.categorical[j]
}

// FeatureNames returns the feature names, or nil when none were set.
func (d *Dataset) FeatureNames() []string {
	return d.featureNames
}

// UsedIndices returns the parent row ids of a subset, or nil.
func (d *Dataset) UsedIndices() []int {
	return d.usedIndices
}

// Predictor returns the bound warm start predictor, or nil.
func (d *Dataset) Predictor() training.Predictor {
	return d.predictor
}

// Subset returns a new dataset holding the rows at indices, in that order.
// The subset shares this dataset's binning, feature declarations and
// predictor.
func (d *Dataset) Subset(indices []int) (training.Dataset, error) {
	rows := make([][]float64, len(indices))
	labels := make([]float64, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(d.rows) {
			return nil, fmt.Errorf("index out of bounds for subset: %d (rows: %d)", idx, len(d.rows))
		}
		rows[i] = d.rows[idx]
		labels[i] = d.labels[idx]
	}
	categorical := make(map[int]bool, len(d.categorical))
	for k, v := range d.categorical {
		categorical[k] = v
	}
	return &Dataset{
		rows:         rows,
		labels:       labels,
		weights:      pick(d.weights, indices),
		initScore:    pick(d.initScore, indices),
		featureNames: d.featureNames,
		categorical:  categorical,
		maxBin:       d.maxBin,
		reference:    d,
		predictor:    d.predictor,
		usedIndices:  append([]int(nil), indices...),
	}, nil
}

func pick(values []float64, indices []int) []float64 {
	if values == nil {
		return nil
	}
	out := make([]float64, len(indices))
	for i, idx := range indices {
		out[i] = values[idx]
	}
	return out
}

// SetWeights sets per-row weights. A nil slice clears them.
func (d *Dataset) SetWeights(w []float64) error {
	if w != nil && len(w) != len(d.rows) {
		return fmt.Errorf("%w: %d weights for %d rows", ErrShape, len(w), len(d.rows))
	}
	d.weights = nil
	if w != nil {
		d.weights = append([]float64(nil), w...)
	}
	return nil
}

// Weights returns the per-row weights, or nil when unweighted.
func (d *Dataset) Weights() []float64 {
	return d.weights
}

// SetInitScore sets per-row starting raw scores. A nil slice clears them.
func (d *Dataset) SetInitScore(s []float64) error {
	if s != nil && len(s) != len(d.rows) {
		return fmt.Errorf("%w: %d init scores for %d rows", ErrShape, len(s), len(d.rows))
	}
	d.initScore = nil
	if s != nil {
		d.initScore = append([]float64(nil), s...)
	}
	return nil
}

// InitScore returns the per-row starting raw scores, or nil.
func (d *Dataset) InitScore() []float64 {
	return d.initScore
}

// SetReference makes the dataset use ref's feature binning.
func (d *Dataset) SetReference(ref training.Dataset) error {
	r, ok := ref.(*Dataset)
	if !ok {
		return fmt.Errorf("%w: got %T", ErrForeignDataset, ref)
	}
	if r == d {
		return nil
	}
	if d.reference == r {
		return nil
	}
	d.reference = r
	d.featureNames = r.featureNames
	d.categorical = r.categorical
	d.constructed = false
	d.bins = nil
	return nil
}

// SetFeatureNames names the features.
func (d *Dataset) SetFeatureNames(names []string) error {
	if names == nil {
		return nil
	}
	if len(d.rows) > 0 && len(names) != d.NumFeature() {
		return fmt.Errorf("%w: %d feature names for %d features", ErrShape, len(names), d.NumFeature())
	}
	d.featureNames = append([]string(nil), names...)
	return nil
}

// SetCategoricalFeatures marks features as categorical. Each entry is a
// feature name or a 0-based feature index.
func (d *Dataset) SetCategoricalFeatures(features []string) error {
	if features == nil {
		return nil
	}
	categorical := make(map[int]bool, len(features))
	for _, f := range features {
		idx, err := d.featureIndex(f)
		if err != nil {
			return err
		}
		categorical[idx] = true
	}
	d.categorical = categorical
	if d.constructed && d.reference == nil {
		d.constructed = false
		d.bins = nil
	}
	return nil
}

func (d *Dataset) featureIndex(f string) (int, error) {
	for i, name := range d.featureNames {
		if name == f {
			return i, nil
		}
	}
	idx, err := strconv.Atoi(f)
	if err != nil {
		return 0, fmt.Errorf("unknown feature %q (set feature names to use names)", f)
	}
	if idx < 0 || idx >= d.NumFeature() {
		return 0, fmt.Errorf("feature index %d out of range [0, %d)", idx, d.NumFeature())
	}
	return idx, nil
}

// SetPredictor binds a warm start predictor. A nil predictor clears it.
func (d *Dataset) SetPredictor(p training.Predictor) error {
	d.predictor = p
	return nil
}
