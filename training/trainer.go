package training

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xyzhou-puck/LightGBM/callback"
	"github.com/xyzhou-puck/LightGBM/config"
	"github.com/xyzhou-puck/LightGBM/logging"
)

const tracerName = "github.com/xyzhou-puck/LightGBM/training"

// DefaultTrainDataName names the training set when it is also passed as a
// validation set.
const DefaultTrainDataName = "training"

// TrainConfig holds configuration for a single-model training run
type TrainConfig struct {
	NumBoostRound int `validate:"gte=0"`

	// ValidSets are evaluated after every round. A set that is the training
	// dataset itself is evaluated as training data instead.
	ValidSets  []Dataset `validate:"-"`
	ValidNames []string

	Objective ObjectiveFunc `validate:"-"`
	Eval      EvalFunc      `validate:"-"`

	// InitModel or InitModelPath selects a warm start; at most one may be set.
	InitModel     Booster `validate:"-"`
	InitModelPath string

	FeatureNames        []string
	CategoricalFeatures []string

	EarlyStoppingRounds int                  `validate:"gte=0"` // 0 disables early stopping
	EvalsResult         callback.EvalsResult `validate:"-"`
	VerboseEval         int                  `validate:"gte=0"` // Print every N rounds, 0 = silent
	LearningRates       callback.Schedule    `validate:"-"`
	Callbacks           []callback.Callback  `validate:"-"`

	// Output receives progress lines; nil means stdout.
	Output io.Writer `validate:"-"`
}

// DefaultTrainConfig returns the configuration used when nothing is set.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		NumBoostRound: 100,
		VerboseEval:   1,
	}
}

// Trainer runs training and cross-validation against a model factory.
type Trainer struct {
	factory BoosterFactory
	logger  logging.Logger
	tracer  trace.Tracer
}

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logging.Logger) TrainerOption {
	return func(t *Trainer) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithTracer sets the tracer used for run spans. The default is the global
// otel tracer provider.
func WithTracer(tr trace.Tracer) TrainerOption {
	return func(t *Trainer) {
		if tr != nil {
			t.tracer = tr
		}
	}
}

// NewTrainer creates a new Trainer
func NewTrainer(factory BoosterFactory, opts ...TrainerOption) *Trainer {
	t := &Trainer{
		factory: factory,
		logger:  logging.NoOpLogger{},
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Train fits one model on trainSet for cfg.NumBoostRound rounds and returns
// it. The returned model's BestIteration is the early stopping round count
// when early stopping fired, otherwise the full round budget.
func (t *Trainer) Train(params config.Params, trainSet Dataset, cfg TrainConfig) (_ Booster, err error) {
	_, span := t.tracer.Start(context.Background(), "training.Train",
		trace.WithAttributes(attribute.Int("num_boost_round", cfg.NumBoostRound)))
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
	initIteration := 0
	if predictor != nil {
		initIteration = predictor.NumTotalIteration()
	}
	if err := prepareDataset(trainSet, predictor, cfg.FeatureNames, cfg.CategoricalFeatures); err != nil {
		return nil, err
	}
	if err := t.applyDatasetParams(params, trainSet); err != nil {
		return nil, err
	}

	trainDataName := DefaultTrainDataName
	validContainTrain := false
	var reducedValidSets []Dataset
	var validNames []string
	for i, valid := range cfg.ValidSets {
		if sameDataset(valid, trainSet) {
			validContainTrain = true
			if i < len(cfg.ValidNames) {
				trainDataName = cfg.ValidNames[i]
			}
			continue
		}
		if isNilDataset(valid) {
			return nil, fmt.Errorf("valid set %d: %w", i, ErrNotDataset)
		}
		if err := valid.SetReference(trainSet); err != nil {
			return nil, fmt.Errorf("valid set %d: set reference: %w", i, err)
		}
		reducedValidSets = append(reducedValidSets, valid)
		if i < len(cfg.ValidNames) {
			validNames = append(validNames, cfg.ValidNames[i])
		} else {
			validNames = append(validNames, "valid_"+strconv.Itoa(i))
		}
	}

	out := cfg.Output
	cbs := append([]callback.Callback(nil), cfg.Callbacks...)
	if cfg.VerboseEval > 0 {
		cbs = append(cbs, callback.PrintEvaluation(cfg.VerboseEval, true, out))
	}
	if cfg.EarlyStoppingRounds > 0 {
		cbs = append(cbs, callback.EarlyStopping(cfg.EarlyStoppingRounds, cfg.VerboseEval > 0, out))
	}
	if cfg.LearningRates != nil {
		cbs = append(cbs, callback.ResetParameter(map[string]callback.Schedule{"learning_rate": cfg.LearningRates}))
	}
	if cfg.EvalsResult != nil {
		cbs = append(cbs, callback.RecordEvaluation(cfg.EvalsResult))
	}
	plan := ResolveCallbacks(cbs)

	booster, err := t.factory.NewBooster(params, trainSet)
	if err != nil {
		return nil, fmt.Errorf("construct booster: %w", err)
	}
	if validContainTrain {
		booster.SetTrainDataName(trainDataName)
	}
	for i, valid := range reducedValidSets {
		if err := booster.AddValid(valid, validNames[i]); err != nil {
			return nil, fmt.Errorf("add valid %q: %w", validNames[i], err)
		}
	}

	log := t.logger.With("run_id", uuid.NewString(), "controller", "train")
	log.Info("starting training", "num_boost_round", cfg.NumBoostRound,
		"init_iteration", initIteration, "valid_sets", len(reducedValidSets))

	begin, end := initIteration, initIteration+cfg.NumBoostRound
	rounds := 0
	for i := begin; i < end; i++ {
		if err := plan.RunBefore(&callback.Env{
			Model:          booster,
			Iteration:      i,
			BeginIteration: begin,
			EndIteration:   end,
		}); err != nil {
			return nil, err
		}

		if err := booster.Update(cfg.Objective); err != nil {
			return nil, fmt.Errorf("update at iteration %d: %w", i, err)
		}
		rounds++

		var results []callback.EvalResult
		if len(cfg.ValidSets) > 0 {
			if validContainTrain {
				res, err := booster.EvalTrain(cfg.Eval)
				if err != nil {
					return nil, fmt.Errorf("eval train at iteration %d: %w", i, err)
				}
				results = append(results, res...)
			}
			res, err := booster.EvalValid(cfg.Eval)
			if err != nil {
				return nil, fmt.Errorf("eval valid at iteration %d: %w", i, err)
			}
			results = append(results, res...)
		}
		log.Debug("round completed", "iteration", i, "results", len(results))

		stop, err := plan.RunAfter(&callback.Env{
			Model:             booster,
			Iteration:         i,
			BeginIteration:    begin,
			EndIteration:      end,
			EvaluationResults: results,
		})
		if err != nil {
			return nil, err
		}
		if stop != nil {
			log.Info("early stopping", "iteration", i, "best_iteration", stop.BestIteration)
			span.SetAttributes(attribute.Bool("early_stopped", true))
			break
		}
	}

	bestIteration := cfg.NumBoostRound
	if v, ok := booster.Attr(callback.BestIterationAttr); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse %s attribute %q: %w", callback.BestIterationAttr, v, err)
		}
		bestIteration = n + 1
	}
	booster.SetBestIteration(bestIteration)

	span.SetAttributes(attribute.Int("rounds_executed", rounds), attribute.Int("best_iteration", bestIteration))
	log.Info("training finished", "rounds", rounds, "best_iteration", bestIteration)
	return booster, nil
}

// resolvePredictor returns the warm start predictor, or nil for a cold start.
func (t *Trainer) resolvePredictor(initModel Booster, path string) (Predictor, error) {
	if initModel != nil && path != "" {
		return nil, fmt.Errorf("%w: init model and init model path are mutually exclusive", config.ErrInvalidConfig)
	}
	switch {
	case path != "":
		p, err := t.factory.LoadPredictor(path)
		if err != nil {
			return nil, fmt.Errorf("load init model %s: %w", path, err)
		}
		return p, nil
	case initModel != nil:
		p, err := initModel.ToPredictor()
		if err != nil {
			return nil, fmt.Errorf("export init model: %w", err)
		}
		return p, nil
	}
	return nil, nil
}

// applyDatasetParams lets the factory apply its dataset level parameters to
// ds, when it supports that.
func (t *Trainer) applyDatasetParams(params config.Params, ds Dataset) error {
	p, ok := t.factory.(DatasetPreparer)
	if !ok {
		return nil
	}
	if err := p.PrepareDataset(params, ds); err != nil {
		return fmt.Errorf("prepare dataset: %w", err)
	}
	return nil
}

// prepareDataset binds the warm start predictor and feature declarations.
func prepareDataset(ds Dataset, p Predictor, featureNames, categorical []string) error {
	if err := ds.SetPredictor(p); err != nil {
		return fmt.Errorf("set predictor: %w", err)
	}
	if featureNames != nil {
		if err := ds.SetFeatureNames(featureNames); err != nil {
			return fmt.Errorf("set feature names: %w", err)
		}
	}
	if categorical != nil {
		if err := ds.SetCategoricalFeatures(categorical); err != nil {
			return fmt.Errorf("set categorical features: %w", err)
		}
	}
	return nil
}

func isNilDataset(ds Dataset) bool {
	if ds == nil {
		return true
	}
	v := reflect.ValueOf(ds)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func:
		return v.IsNil()
	}
	return false
}

// sameDataset reports identity of two datasets.
func sameDataset(a, b Dataset) bool {
	if a == nil || b == nil {
		return false
	}
	if !isComparable(a) || !isComparable(b) {
		return false
	}
	return a == b
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
