package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xyzhou-puck/LightGBM/callback"
	"github.com/xyzhou-puck/LightGBM/checkpoints"
	"github.com/xyzhou-puck/LightGBM/gbdt"
	"github.com/xyzhou-puck/LightGBM/training"
)

type trainOptions struct {
	*options
	validPaths []string
	evalTrain  bool
	initModel  string
	modelOut   string
}

func newTrainCmd(shared *options) *cobra.Command {
	opts := &trainOptions{options: shared}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model, optionally with validation sets and early stopping",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd)
		},
	}
	cmd.Flags().StringSliceVar(&opts.validPaths, "valid", nil, "validation data CSV file (repeatable)")
	cmd.Flags().BoolVar(&opts.evalTrain, "eval-train", false, "also evaluate the training data every round")
	cmd.Flags().StringVar(&opts.initModel, "init-model", "", "continue training from a saved model")
	cmd.Flags().StringVar(&opts.modelOut, "model-out", "", "save the trained model (.json for JSON, otherwise binary)")
	return cmd
}

func (o *trainOptions) run(cmd *cobra.Command) error {
	env, err := o.setup(cmd)
	if err != nil {
		return err
	}
	rc := env.cfg

	cfg := training.DefaultTrainConfig()
	cfg.NumBoostRound = rc.NumBoostRound
	cfg.EarlyStoppingRounds = rc.EarlyStoppingRounds
	cfg.VerboseEval = rc.VerboseEval
	cfg.FeatureNames = rc.FeatureNames
	cfg.CategoricalFeatures = rc.CategoricalFeatures
	cfg.InitModelPath = o.initModel
	cfg.Output = cmd.OutOrStdout()
	cfg.Callbacks = []callback.Callback{env.recorder}
	if cfg.LearningRates, err = env.learningRates(); err != nil {
		return err
	}

	if o.evalTrain {
		cfg.ValidSets = append(cfg.ValidSets, env.data)
		cfg.ValidNames = append(cfg.ValidNames, training.DefaultTrainDataName)
	}
	for i, path := range o.validPaths {
		valid, err := o.load(path, rc)
		if err != nil {
			return err
		}
		cfg.ValidSets = append(cfg.ValidSets, valid)
		name := "valid"
		if len(o.validPaths) > 1 {
			name = fmt.Sprintf("valid_%d", i)
		}
		cfg.ValidNames = append(cfg.ValidNames, name)
	}

	params := rc.Params.Clone()
	params.AppendMetrics(rc.Metrics...)

	trainer := training.NewTrainer(gbdt.Factory{}, training.WithLogger(env.logger))
	model, err := trainer.Train(params, env.data, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "best iteration: %d\n", model.BestIteration())

	if o.modelOut != "" {
		booster, ok := model.(*gbdt.Booster)
		if !ok {
			return fmt.Errorf("cannot save model of type %T", model)
		}
		if err := booster.SaveModel(o.modelOut, checkpoints.FormatForPath(o.modelOut)); err != nil {
			return err
		}
		env.logger.Info("saved model", "path", o.modelOut, "trees", booster.NumTrees())
	}
	return env.writeMetrics(o.metricsFile)
}
