package gbdt

import (
	"math"
	"sort"

	"github.com/xyzhou-puck/LightGBM/dataset"
)

// Tree is a depth-1 regression tree. A negative Feature marks a constant
// tree that always yields LeftValue.
type Tree struct {
	Feature     int
	Threshold   float64
	Categorical bool
	LeftValue   float64
	RightValue  float64
	Gain        float64
}

// Predict returns the leaf value for row. Missing numerical values go left,
// missing categorical values go right.
func (t Tree) Predict(row []float64) float64 {
	if t.Feature < 0 || t.Feature >= len(row) {
		return t.LeftValue
	}
	v := row[t.Feature]
	if t.Categorical {
		if !math.IsNaN(v) && v == t.Threshold {
			return t.LeftValue
		}
		return t.RightValue
	}
	if math.IsNaN(v) || v <= t.Threshold {
		return t.LeftValue
	}
	return t.RightValue
}

type treeParams struct {
	learningRate  float64
	lambdaL2      float64
	minDataInLeaf int
}

func (p treeParams) leafValue(g, h float64) float64 {
	d := h + p.lambdaL2
	if d <= 0 {
		return 0
	}
	return -g / d * p.learningRate
}

func (p treeParams) score(g, h float64) float64 {
	d := h + p.lambdaL2
	if d <= 0 {
		return 0
	}
	return g * g / d
}

type bucket struct {
	g, h  float64
	count int
}

// fitStump finds the single split with the largest gain over the dataset's
// bins. When no split passes min_data_in_leaf a constant tree is returned.
func fitStump(ds *dataset.Dataset, grad, hess []float64, p treeParams) Tree {
	weights := ds.Weights()
	n := ds.NumData()

	var totalG, totalH float64
	for i := 0; i < n; i++ {
		g, h := grad[i], hess[i]
		if weights != nil {
			g, h = g*weights[i], h*weights[i]
		}
		totalG += g
		totalH += h
	}
	parent := p.score(totalG, totalH)

	best := Tree{Feature: -1, LeftValue: p.leafValue(totalG, totalH)}
	for j := 0; j < ds.NumFeature(); j++ {
		bins := ds.Bins(j)
		if len(bins) == 0 {
			continue
		}
		categorical := ds.IsCategorical(j)

		buckets := make([]bucket, len(bins)+1)
		for i := 0; i < n; i++ {
			k := bucketOf(ds.Row(i)[j], bins, categorical)
			g, h := grad[i], hess[i]
			if weights != nil {
				g, h = g*weights[i], h*weights[i]
			}
			buckets[k].g += g
			buckets[k].h += h
			buckets[k].count++
		}

		var left bucket
		for k, t := range bins {
			if categorical {
				left = buckets[k]
			} else {
				left.g += buckets[k].g
				left.h += buckets[k].h
				left.count += buckets[k].count
			}
			rightCount := n - left.count
			if left.count < p.minDataInLeaf || rightCount < p.minDataInLeaf || left.count == 0 || rightCount == 0 {
				continue
			}
			rg, rh := totalG-left.g, totalH-left.h
			gain := p.score(left.g, left.h) + p.score(rg, rh) - parent
			if gain > best.Gain {
				best = Tree{
					Feature:     j,
					Threshold:   t,
					Categorical: categorical,
					LeftValue:   p.leafValue(left.g, left.h),
					RightValue:  p.leafValue(rg, rh),
					Gain:        gain,
				}
			}
		}
	}
	return best
}

// bucketOf maps a value to its bin. Numerical bucket k holds values in
// (bins[k-1], bins[k]]; the last bucket holds values above every threshold
// and NaN goes to bucket 0. Categorical bucket k holds bins[k]; unseen
// categories go to the last bucket.
func bucketOf(v float64, bins []float64, categorical bool) int {
	if math.IsNaN(v) {
		if categorical {
			return len(bins)
		}
		return 0
	}
	k := sort.SearchFloat64s(bins, v)
	if categorical && (k == len(bins) || bins[k] != v) {
		return len(bins)
	}
	return k
}
