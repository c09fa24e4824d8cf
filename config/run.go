package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// MaxConfigFileSize caps the size of a run configuration file (1MB).
const MaxConfigFileSize = 1024 * 1024

// ErrInvalidConfig is returned when a configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

// Validate checks the `validate` struct tags of v.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// RunConfig describes one training or cross-validation run.
type RunConfig struct {
	Params        Params `yaml:"params"`
	NumBoostRound int    `yaml:"num_boost_round" validate:"gte=1"`

	NFold      int   `yaml:"nfold" validate:"omitempty,gte=2"`
	Stratified bool  `yaml:"stratified"`
	Shuffle    *bool `yaml:"shuffle"`
	Seed       int64 `yaml:"seed"`

	Metrics             []string    `yaml:"metrics" validate:"dive,required"`
	EarlyStoppingRounds int         `yaml:"early_stopping_rounds" validate:"gte=0"`
	VerboseEval         int         `yaml:"verbose_eval" validate:"gte=0"`
	ShowStdv            *bool       `yaml:"show_stdv"`
	LearningRates       []float64   `yaml:"learning_rates" validate:"dive,gt=0"`
	LRSchedule          *LRSchedule `yaml:"lr_schedule"`

	LabelColumn         int      `yaml:"label_column" validate:"gte=0"`
	FeatureNames        []string `yaml:"feature_names"`
	CategoricalFeatures []string `yaml:"categorical_features"`
}

// Learning rate schedule types.
const (
	ScheduleStep        = "step"
	ScheduleExponential = "exponential"
	ScheduleCosine      = "cosine"
)

// LRSchedule selects a learning rate decay. Zero values fall back to the
// schedule's defaults.
type LRSchedule struct {
	Type     string  `yaml:"type" validate:"required,oneof=step exponential cosine"`
	Base     float64 `yaml:"base" validate:"gt=0"`
	StepSize int     `yaml:"step_size" validate:"gte=0"`
	Gamma    float64 `yaml:"gamma" validate:"gte=0"`
	TMax     int     `yaml:"t_max" validate:"gte=0"`
	EtaMin   float64 `yaml:"eta_min" validate:"gte=0"`
}

// DefaultRunConfig returns the defaults applied before a file is decoded.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Params:        Params{},
		NumBoostRound: 100,
		NFold:         5,
		VerboseEval:   1,
	}
}

// ShuffleOrDefault reports the shuffle flag, true when unset.
func (c *RunConfig) ShuffleOrDefault() bool {
	return c.Shuffle == nil || *c.Shuffle
}

// ShowStdvOrDefault reports the show_stdv flag, true when unset.
func (c *RunConfig) ShowStdvOrDefault() bool {
	return c.ShowStdv == nil || *c.ShowStdv
}

// Validate checks field constraints.
func (c *RunConfig) Validate() error {
	if c.LearningRates != nil && len(c.LearningRates) != c.NumBoostRound {
		return fmt.Errorf("%w: %d learning rates for %d rounds", ErrInvalidConfig, len(c.LearningRates), c.NumBoostRound)
	}
	if c.LearningRates != nil && c.LRSchedule != nil {
		return fmt.Errorf("%w: learning_rates and lr_schedule are mutually exclusive", ErrInvalidConfig)
	}
	return Validate(c)
}

// ParseRunConfig decodes and validates a YAML run configuration.
func ParseRunConfig(data []byte) (*RunConfig, error) {
	cfg := DefaultRunConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse run config: %w", err)
	}
	if cfg.Params == nil {
		cfg.Params = Params{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadRunConfig reads a YAML run configuration from path.
func LoadRunConfig(path string) (*RunConfig, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat run config: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrInvalidConfig, path, info.Size(), MaxConfigFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run config: %w", err)
	}
	return ParseRunConfig(data)
}
