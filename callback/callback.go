// Package callback defines the per-round interception contract shared by the
// training and cross-validation controllers, together with the ready-made
// callbacks for progress printing, evaluation recording, parameter schedules,
// early stopping and metric export.
//
// A callback receives a fresh Env snapshot once per round. Callbacks flagged
// BeforeIteration run before the model update; all others run after the
// update and see that round's evaluation results. Returning an
// *EarlyStopError from an after-update callback ends the round loop.
package callback

import (
	"fmt"
	"strings"

	"github.com/xyzhou-puck/LightGBM/config"
)

// AggregateDataName is the data name carried by cross-validation aggregates.
const AggregateDataName = "cv_agg"

// EvalResult is one metric measurement for one data partition in one round.
type EvalResult struct {
	DataName     string
	MetricName   string
	Value        float64
	HigherBetter bool

	// Stdv is only meaningful when HasStdv is set (cross-validation aggregates).
	Stdv    float64
	HasStdv bool
}

// String formats the result the way progress lines print it, values with
// six significant digits.
func (r EvalResult) String() string {
	return r.format(true)
}

func (r EvalResult) format(showStdv bool) string {
	if r.HasStdv && showStdv {
		return fmt.Sprintf("%s's %s: %.6g + %.6g", r.DataName, r.MetricName, r.Value, r.Stdv)
	}
	return fmt.Sprintf("%s's %s: %.6g", r.DataName, r.MetricName, r.Value)
}

func formatResults(results []EvalResult, showStdv bool) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.format(showStdv)
	}
	return strings.Join(parts, "\t")
}

// Model is the part of a trainable model that callbacks may touch.
type Model interface {
	// Attr returns a string attribute previously stored on the model.
	Attr(key string) (string, bool)
	// SetAttr stores a string attribute on the model.
	SetAttr(key, value string)
	// ResetParameter applies new hyperparameters for subsequent rounds.
	ResetParameter(params config.Params) error
}

// Fold exposes the model owned by one cross-validation fold.
type Fold interface {
	Model() Model
}

// Env is the snapshot handed to every callback invocation. Exactly one of
// Model and CVFolds is set.
type Env struct {
	Model          Model
	CVFolds        []Fold
	Iteration      int
	BeginIteration int
	EndIteration   int

	// EvaluationResults is nil for before-update callbacks.
	EvaluationResults []EvalResult
}

// Models returns the model under training, or every fold's model under
// cross-validation.
func (e *Env) Models() []Model {
	if e.Model != nil {
		return []Model{e.Model}
	}
	models := make([]Model, 0, len(e.CVFolds))
	for _, f := range e.CVFolds {
		models = append(models, f.Model())
	}
	return models
}

// Options carries the optional sequencing attributes of a callback.
type Options struct {
	// Order is the sort key within a phase; lower runs first. Only used when
	// HasOrder is set, otherwise the controller derives one from the
	// registration position.
	Order    int
	HasOrder bool

	// BeforeIteration places the callback before the round's update.
	BeforeIteration bool
}

// Callback is invoked once per round with a snapshot of the round state.
type Callback interface {
	Call(env *Env) error
	Options() Options
}

// Option configures a Func callback.
type Option func(*Options)

// WithOrder sets an explicit order.
func WithOrder(order int) Option {
	return func(o *Options) {
		o.Order = order
		o.HasOrder = true
	}
}

// BeforeIteration makes the callback run before the round's update.
func BeforeIteration() Option {
	return func(o *Options) {
		o.BeforeIteration = true
	}
}

// Func adapts a plain function to the Callback interface.
type Func struct {
	fn   func(env *Env) error
	opts Options
}

// New wraps fn as a callback. The returned pointer is the callback's identity:
// registering it twice still yields one invocation per round.
func New(fn func(env *Env) error, opts ...Option) *Func {
	f := &Func{fn: fn}
	for _, opt := range opts {
		opt(&f.opts)
	}
	return f
}

// Call runs the wrapped function.
func (f *Func) Call(env *Env) error {
	return f.fn(env)
}

// Options returns the sequencing attributes.
func (f *Func) Options() Options {
	return f.opts
}

// EarlyStopError signals that training should stop. BestIteration is the
// 0-based index of the best round observed so far.
type EarlyStopError struct {
	BestIteration int
	BestScore     []EvalResult
}

func (e *EarlyStopError) Error() string {
	return fmt.Sprintf("early stopping at best iteration %d", e.BestIteration)
}
