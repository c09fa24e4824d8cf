package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/xyzhou-puck/LightGBM/callback"
	"github.com/xyzhou-puck/LightGBM/config"
	"github.com/xyzhou-puck/LightGBM/dataset"
	"github.com/xyzhou-puck/LightGBM/logging"
)

// metricsNamespace prefixes every exported Prometheus metric.
const metricsNamespace = "gbm"

// options holds the flags shared by train and cv.
type options struct {
	dataPath    string
	configPath  string
	labelColumn int
	header      bool
	metricsFile string
	logLevel    string
	logFormat   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "gbm",
		Short:         "Train and cross-validate gradient boosted models on CSV data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.dataPath, "data", "", "training data CSV file")
	pf.StringVar(&opts.configPath, "config", "", "YAML run configuration")
	pf.IntVar(&opts.labelColumn, "label-column", 0, "0-based label column (overrides label_column in the config)")
	pf.BoolVar(&opts.header, "header", false, "first CSV row holds column names")
	pf.StringVar(&opts.metricsFile, "metrics-file", "", "write evaluation metrics in Prometheus text format to this file")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	_ = root.MarkPersistentFlagRequired("data")

	root.AddCommand(newTrainCmd(opts), newCVCmd(opts))
	return root
}

// runEnv is what every subcommand needs before it starts training.
type runEnv struct {
	cfg      *config.RunConfig
	data     *dataset.Dataset
	logger   logging.Logger
	registry *prometheus.Registry
	recorder *callback.MetricsRecorder
}

func (o *options) setup(cmd *cobra.Command) (*runEnv, error) {
	cfg := config.DefaultRunConfig()
	runCfg := &cfg
	if o.configPath != "" {
		loaded, err := config.LoadRunConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		runCfg = loaded
	}
	if cmd.Flags().Changed("label-column") {
		runCfg.LabelColumn = o.labelColumn
	}

	logger := logging.NewSlogLogger(logging.ParseLevel(o.logLevel), o.logFormat, cmd.ErrOrStderr())

	data, err := o.load(o.dataPath, runCfg)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded training data", "path", o.dataPath, "rows", data.NumData(), "features", data.NumFeature())

	reg := prometheus.NewRegistry()
	rec, err := callback.RecordMetrics(reg, metricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return &runEnv{cfg: runCfg, data: data, logger: logger, registry: reg, recorder: rec}, nil
}

func (o *options) load(path string, cfg *config.RunConfig) (*dataset.Dataset, error) {
	return dataset.LoadCSV(path, dataset.LoadOptions{LabelColumn: cfg.LabelColumn, Header: o.header})
}

// learningRates returns the configured learning rate schedule, or nil when
// the learning rate is fixed.
func (e *runEnv) learningRates() (callback.Schedule, error) {
	switch {
	case e.cfg.LearningRates != nil:
		return callback.ListSchedule(e.cfg.LearningRates), nil
	case e.cfg.LRSchedule != nil:
		s, err := callback.NewSchedule(*e.cfg.LRSchedule)
		if err != nil {
			return nil, err
		}
		e.logger.Info("learning rate schedule", "schedule", s.Name(), "base", e.cfg.LRSchedule.Base)
		return s, nil
	}
	return nil, nil
}

func (e *runEnv) writeMetrics(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	e.logger.Info("wrote metrics", "path", path)
	return nil
}
