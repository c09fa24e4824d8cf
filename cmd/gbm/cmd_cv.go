package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xyzhou-puck/LightGBM/callback"
	"github.com/xyzhou-puck/LightGBM/gbdt"
	"github.com/xyzhou-puck/LightGBM/training"
)

func newCVCmd(shared *options) *cobra.Command {
	var initModel string
	cmd := &cobra.Command{
		Use:   "cv",
		Short: "Run n-fold cross-validation and print per-round metric histories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCV(cmd, shared, initModel)
		},
	}
	cmd.Flags().StringVar(&initModel, "init-model", "", "start every fold from a saved model")
	return cmd
}

func runCV(cmd *cobra.Command, opts *options, initModel string) error {
	env, err := opts.setup(cmd)
	if err != nil {
		return err
	}
	rc := env.cfg

	cfg := training.DefaultCVConfig()
	cfg.NumBoostRound = rc.NumBoostRound
	cfg.NFold = rc.NFold
	cfg.Stratified = rc.Stratified
	cfg.Shuffle = rc.ShuffleOrDefault()
	cfg.Seed = rc.Seed
	cfg.Metrics = rc.Metrics
	cfg.EarlyStoppingRounds = rc.EarlyStoppingRounds
	cfg.VerboseEval = rc.VerboseEval
	cfg.ShowStdv = rc.ShowStdvOrDefault()
	cfg.FeatureNames = rc.FeatureNames
	cfg.CategoricalFeatures = rc.CategoricalFeatures
	cfg.InitModelPath = initModel
	cfg.Output = cmd.OutOrStdout()
	cfg.Callbacks = []callback.Callback{env.recorder}
	lr, err := env.learningRates()
	if err != nil {
		return err
	}
	if lr != nil {
		cfg.Callbacks = append(cfg.Callbacks, callback.ResetParameter(map[string]callback.Schedule{
			gbdt.ParamLearningRate: lr,
		}))
	}

	trainer := training.NewTrainer(gbdt.Factory{}, training.WithLogger(env.logger))
	results, err := trainer.CV(rc.Params, env.data, cfg)
	if err != nil {
		return err
	}
	printHistories(cmd, results)
	return env.writeMetrics(opts.metricsFile)
}

// printHistories writes one tab separated row per round, columns sorted by
// name.
func printHistories(cmd *cobra.Command, results map[string][]float64) {
	keys := make([]string, 0, len(results))
	rounds := 0
	for k, v := range results {
		keys = append(keys, k)
		if len(v) > rounds {
			rounds = len(v)
		}
	}
	sort.Strings(keys)

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "round\t%s\n", strings.Join(keys, "\t"))
	for i := 0; i < rounds; i++ {
		cols := make([]string, len(keys))
		for j, k := range keys {
			cols[j] = fmt.Sprintf("%g", results[k][i])
		}
		fmt.Fprintf(w, "%d\t%s\n", i+1, strings.Join(cols, "\t"))
	}
}
