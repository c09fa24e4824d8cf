package training

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/xyzhou-puck/LightGBM/config"
)

// PreprocessFunc transforms one fold's datasets and parameters before its
// model is built. params is a copy owned by the fold.
type PreprocessFunc func(train, valid Dataset, params config.Params) (Dataset, Dataset, config.Params, error)

// StratifiedSplitter partitions row indices into class balanced validation
// sets, one per fold.
type StratifiedSplitter interface {
	Split(labels []float64, nfold int, shuffle bool, rng *rand.Rand) ([][]int, error)
}

// FoldConfig configures fold construction.
type FoldConfig struct {
	NFold      int
	Seed       int64
	Stratified bool
	Shuffle    bool
	Preprocess PreprocessFunc

	// Splitter is required when Stratified is set.
	Splitter StratifiedSplitter
}

// MakeNFolds partitions full into cfg.NFold disjoint validation slices and
// returns one fold per slice, in fold order. Each fold trains on the union of
// the other slices.
func MakeNFolds(factory BoosterFactory, full Dataset, params config.Params, cfg FoldConfig) ([]*CVBooster, error) {
	rng := rand.New(rand.NewSource(cfg.Seed))

	idset, err := foldIndices(full, cfg, rng)
	if err != nil {
		return nil, err
	}

	folds := make([]*CVBooster, 0, cfg.NFold)
	for k := 0; k < cfg.NFold; k++ {
		var trainIdx []int
		for i, ids := range idset {
			if i != k {
				trainIdx = append(trainIdx, ids...)
			}
		}
		trainSet, err := full.Subset(trainIdx)
		if err != nil {
			return nil, fmt.Errorf("fold %d: train subset: %w", k, err)
		}
		validSet, err := full.Subset(idset[k])
		if err != nil {
			return nil, fmt.Errorf("fold %d: valid subset: %w", k, err)
		}

		foldParams := params
		if cfg.Preprocess != nil {
			trainSet, validSet, foldParams, err = cfg.Preprocess(trainSet, validSet, params.Clone())
			if err != nil {
				return nil, fmt.Errorf("fold %d: preprocess: %w", k, err)
			}
		}

		fold, err := NewCVBooster(factory, trainSet, validSet, foldParams)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", k, err)
		}
		folds = append(folds, fold)
	}
	return folds, nil
}

// foldIndices returns the validation row indices of every fold.
func foldIndices(full Dataset, cfg FoldConfig, rng *rand.Rand) ([][]int, error) {
	if cfg.NFold < 2 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFoldCount, cfg.NFold)
	}

	if cfg.Stratified {
		if cfg.Splitter == nil {
			return nil, ErrStratifiedUnavailable
		}
		labels, err := full.Label()
		if err != nil {
			return nil, fmt.Errorf("get label: %w", err)
		}
		if cfg.NFold > len(labels) {
			return nil, fmt.Errorf("%w: %d folds for %d rows", ErrInvalidFoldCount, cfg.NFold, len(labels))
		}
		return cfg.Splitter.Split(labels, cfg.NFold, cfg.Shuffle, rng)
	}

	if err := full.Construct(); err != nil {
		return nil, fmt.Errorf("construct dataset: %w", err)
	}
	n := full.NumData()
	if cfg.NFold > n {
		return nil, fmt.Errorf("%w: %d folds for %d rows", ErrInvalidFoldCount, cfg.NFold, n)
	}

	var randidx []int
	if cfg.Shuffle {
		randidx = rng.Perm(n)
	} else {
		randidx = make([]int, n)
		for i := range randidx {
			randidx[i] = i
		}
	}

	// Blocks are n/nfold rows; the last one also takes the remainder.
	kstep := n / cfg.NFold
	idset := make([][]int, cfg.NFold)
	for i := range idset {
		end := (i + 1) * kstep
		if i == cfg.NFold-1 || end > n {
			end = n
		}
		idset[i] = randidx[i*kstep : end]
	}
	return idset, nil
}

// StratifiedKFold splits each class separately so every fold holds close to
// the same share of each label value.
type StratifiedKFold struct{}

// Split implements StratifiedSplitter. Validation indices of each fold are
// returned in ascending order.
func (StratifiedKFold) Split(labels []float64, nfold int, shuffle bool, rng *rand.Rand) ([][]int, error) {
	if nfold < 2 || nfold > len(labels) {
		return nil, fmt.Errorf("%w: %d folds for %d rows", ErrInvalidFoldCount, nfold, len(labels))
	}

	byClass := make(map[float64][]int)
	for i, y := range labels {
		byClass[y] = append(byClass[y], i)
	}
	classes := make([]float64, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Float64s(classes)

	folds := make([][]int, nfold)
	offset := 0
	for _, c := range classes {
		idx := byClass[c]
		if shuffle {
			rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		}
		base, extra := len(idx)/nfold, len(idx)%nfold
		pos := 0
		for j := 0; j < nfold; j++ {
			k := (offset + j) % nfold
			size := base
			if j < extra {
				size++
			}
			folds[k] = append(folds[k], idx[pos:pos+size]...)
			pos += size
		}
		offset = (offset + extra) % nfold
	}
	for _, f := range folds {
		sort.Ints(f)
	}
	return folds, nil
}
