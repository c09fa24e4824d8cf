package training

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/xyzhou-puck/LightGBM/callback"
	"github.com/xyzhou-puck/LightGBM/config"
)

// CVConfig holds configuration for a cross-validation run
type CVConfig struct {
	NumBoostRound int `validate:"gte=0"`
	NFold         int
	Stratified    bool
	Shuffle       bool
	Seed          int64 // Seeds the fold permutation

	// Metrics are appended to the params' metric list.
	Metrics []string `validate:"dive,required"`

	Objective ObjectiveFunc `validate:"-"`
	Eval      EvalFunc      `validate:"-"`

	InitModel     Booster `validate:"-"`
	InitModelPath string

	FeatureNames        []string
	CategoricalFeatures []string

	EarlyStoppingRounds int                 `validate:"gte=0"`
	Preprocess          PreprocessFunc      `validate:"-"`
	VerboseEval         int                 `validate:"gte=0"`
	ShowStdv            bool
	Callbacks           []callback.Callback `validate:"-"`

	// Splitter is used for stratified folds.
	Splitter StratifiedSplitter `validate:"-"`
	Output   io.Writer          `validate:"-"`
}

// DefaultCVConfig returns the configuration used when nothing is set.
func DefaultCVConfig() CVConfig {
	return CVConfig{
		NumBoostRound: 10,
		NFold:         5,
		Shuffle:       true,
		ShowStdv:      true,
		Splitter:      StratifiedKFold{},
	}
}

// CV runs cfg.NFold-fold cross-validation and returns, for every metric, the
// per-round history of its cross-fold mean under "<metric>-mean" and standard
// deviation under "<metric>-stdv". When early stopping fires, every history
// is truncated to the best round.
func (t *Trainer) CV(params config.Params, trainSet Dataset, cfg CVConfig) (_ map[string][]float64, err error) {
	_, span := t.tracer.Start(context.Background(), "training.CV",
		trace.WithAttributes(
			attribute.Int("num_boost_round", cfg.NumBoostRound),
			attribute.Int("nfold", cfg.NFold),
		))
	defer func() { endSpan(span, err) }()

	if isNilDataset(trainSet) {
		return nil, ErrNotDataset
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	predictor, err := t.resolvePredictor(cfg.InitModel, cfg.InitModelPath)
	if err != nil {
		return nil, err
	}
	if err := prepareDataset(trainSet, predictor, cfg.FeatureNames, cfg.CategoricalFeatures); err != nil {
		return nil, err
	}

	params = params.Clone()
	params.AppendMetrics(cfg.Metrics...)
	if err := t.applyDatasetParams(params, trainSet); err != nil {
		return nil, err
	}

	folds, err := MakeNFolds(t.factory, trainSet, params, FoldConfig{
		NFold:      cfg.NFold,
		Seed:       cfg.Seed,
		Stratified: cfg.Stratified,
		Shuffle:    cfg.Shuffle,
		Preprocess: cfg.Preprocess,
		Splitter:   cfg.Splitter,
	})
	if err != nil {
		return nil, err
	}
	cvFolds := make([]callback.Fold, len(folds))
	for i, f := range folds {
		cvFolds[i] = f
	}

	cbs := append([]callback.Callback(nil), cfg.Callbacks...)
	if cfg.EarlyStoppingRounds > 0 {
		cbs = append(cbs, callback.EarlyStopping(cfg.EarlyStoppingRounds, false, cfg.Output))
	}
	if cfg.VerboseEval > 0 {
		cbs = append(cbs, callback.PrintEvaluation(cfg.VerboseEval, cfg.ShowStdv, cfg.Output))
	}
	plan := ResolveCallbacks(cbs)

	log := t.logger.With("run_id", uuid.NewString(), "controller", "cv")
	log.Info("starting cross-validation", "num_boost_round", cfg.NumBoostRound, "nfold", cfg.NFold)

	results := make(map[string][]float64)
	rounds := 0
	for i := 0; i < cfg.NumBoostRound; i++ {
		if err := plan.RunBefore(&callback.Env{
			CVFolds:        cvFolds,
			Iteration:      i,
			BeginIteration: 0,
			EndIteration:   cfg.NumBoostRound,
		}); err != nil {
			return nil, err
		}

		for k, f := range folds {
			if err := f.Update(cfg.Objective); err != nil {
				return nil, fmt.Errorf("fold %d: update at iteration %d: %w", k, i, err)
			}
		}
		rounds++

		raw := make([][]callback.EvalResult, len(folds))
		for k, f := range folds {
			res, err := f.Eval(cfg.Eval)
			if err != nil {
				return nil, fmt.Errorf("fold %d: eval at iteration %d: %w", k, i, err)
			}
			raw[k] = res
		}
		agg := AggregateCVResults(raw)
		for _, r := range agg {
			results[r.MetricName+"-mean"] = append(results[r.MetricName+"-mean"], r.Value)
			results[r.MetricName+"-stdv"] = append(results[r.MetricName+"-stdv"], r.Stdv)
		}
		log.Debug("round completed", "iteration", i, "metrics", len(agg))

		stop, err := plan.RunAfter(&callback.Env{
			CVFolds:           cvFolds,
			Iteration:         i,
			BeginIteration:    0,
			EndIteration:      cfg.NumBoostRound,
			EvaluationResults: agg,
		})
		if err != nil {
			return nil, err
		}
		if stop != nil {
			for k, v := range results {
				if n := stop.BestIteration + 1; n < len(v) {
					results[k] = v[:n]
				}
			}
			log.Info("early stopping", "iteration", i, "best_iteration", stop.BestIteration)
			span.SetAttributes(attribute.Bool("early_stopped", true), attribute.Int("best_iteration", stop.BestIteration))
			break
		}
	}

	span.SetAttributes(attribute.Int("rounds_executed", rounds))
	log.Info("cross-validation finished", "rounds", rounds)
	return results, nil
}
