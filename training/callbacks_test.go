package training

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xyzhou-puck/LightGBM/callback"
)

func tags(rcs []ResolvedCallback) []string {
	out := make([]string, len(rcs))
	for i, rc := range rcs {
		out[i] = rc.Callback.(*recorder).tag
	}
	return out
}

func TestResolveCallbacksOrdering(t *testing.T) {
	var log []string
	a := &recorder{tag: "a", log: &log}
	b := &recorder{tag: "b", log: &log, opts: callback.Options{Order: 10, HasOrder: true}}
	c := &recorder{tag: "c", log: &log}
	d := &recorder{tag: "d", log: &log, opts: callback.Options{Order: 5, HasOrder: true, BeforeIteration: true}}
	e := &recorder{tag: "e", log: &log, opts: callback.Options{Order: -100, HasOrder: true}}
	f := &recorder{tag: "f", log: &log, opts: callback.Options{Order: 10, HasOrder: true}}

	plan := ResolveCallbacks([]callback.Callback{a, b, c, d, e, f})

	assert.Equal(t, []string{"d"}, tags(plan.Before))
	assert.Equal(t, []string{"e", "a", "c", "b", "f"}, tags(plan.After))
	assert.Equal(t, -6, plan.After[1].Order, "first unordered callback gets 0-len")
	assert.Equal(t, -4, plan.After[2].Order)
}

func TestResolveCallbacksDedup(t *testing.T) {
	var log []string
	a := &recorder{tag: "a", log: &log}
	b := &recorder{tag: "b", log: &log}

	plan := ResolveCallbacks([]callback.Callback{a, b, a, nil})
	require.Len(t, plan.After, 2)
	assert.Equal(t, []string{"a", "b"}, tags(plan.After))
	assert.Equal(t, -4, plan.After[0].Order, "duplicate keeps its first position")

	require.NoError(t, plan.RunBefore(&callback.Env{}))
	_, err := plan.RunAfter(&callback.Env{Iteration: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@2", "b@2"}, log)
}

func TestResolveCallbacksNonComparable(t *testing.T) {
	var log []string
	v := valueRecorder{log: &log, tags: []string{"v"}}

	plan := ResolveCallbacks([]callback.Callback{v, v})
	assert.Len(t, plan.After, 2)

	_, err := plan.RunAfter(&callback.Env{})
	require.NoError(t, err)
	assert.Equal(t, []string{"v", "v"}, log)
}

// wrappedCallback is a comparable struct whose field may hold a
// non-comparable callback.
type wrappedCallback struct {
	inner callback.Callback
}

func (w wrappedCallback) Call(env *callback.Env) error { return w.inner.Call(env) }

func (w wrappedCallback) Options() callback.Options { return w.inner.Options() }

func TestResolveCallbacksWrappedValues(t *testing.T) {
	var log []string
	v := wrappedCallback{inner: valueRecorder{log: &log, tags: []string{"v"}}}
	p := wrappedCallback{inner: &recorder{tag: "p", log: &log}}

	var plan Plan
	require.NotPanics(t, func() {
		plan = ResolveCallbacks([]callback.Callback{v, v, p, p})
	})
	require.Len(t, plan.After, 3, "wrappers around the same pointer collapse, value wrappers do not")

	_, err := plan.RunAfter(&callback.Env{Iteration: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"v", "v", "p@1"}, log)
}

func TestResolveCallbacksIsPure(t *testing.T) {
	var log []string
	cbs := []callback.Callback{
		&recorder{tag: "x", log: &log},
		&recorder{tag: "y", log: &log, opts: callback.Options{Order: 1, HasOrder: true}},
	}
	first := ResolveCallbacks(cbs)
	second := ResolveCallbacks(cbs)
	assert.Equal(t, first, second)
	assert.False(t, cbs[0].Options().HasOrder, "input callbacks are not modified")
}

func TestRunAfterEarlyStop(t *testing.T) {
	var log []string
	stop := &callback.EarlyStopError{BestIteration: 3}
	plan := ResolveCallbacks([]callback.Callback{
		&recorder{tag: "first", log: &log, opts: callback.Options{Order: 1, HasOrder: true}},
		&recorder{tag: "stopper", log: &log, opts: callback.Options{Order: 2, HasOrder: true}, err: fmt.Errorf("wrapped: %w", stop)},
		&recorder{tag: "never", log: &log, opts: callback.Options{Order: 3, HasOrder: true}},
	})

	got, err := plan.RunAfter(&callback.Env{Iteration: 7})
	require.NoError(t, err)
	assert.Same(t, stop, got)
	assert.Equal(t, []string{"first@7", "stopper@7"}, log)
}

func TestRunCallbackErrors(t *testing.T) {
	var log []string
	boom := errors.New("boom")

	plan := ResolveCallbacks([]callback.Callback{
		&recorder{tag: "before", log: &log, opts: callback.Options{BeforeIteration: true}, err: boom},
		&recorder{tag: "after", log: &log, err: boom},
	})
	err := plan.RunBefore(&callback.Env{})
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "before-iteration callback")

	stop, err := plan.RunAfter(&callback.Env{})
	assert.Nil(t, stop)
	assert.ErrorIs(t, err, boom)
}

func TestAggregateCVResults(t *testing.T) {
	raw := [][]callback.EvalResult{
		{
			{DataName: ValidName, MetricName: "l2", Value: 0.4},
			{DataName: ValidName, MetricName: "auc", Value: 0.7, HigherBetter: true},
		},
		{
			{DataName: ValidName, MetricName: "l2", Value: 0.6},
			{DataName: ValidName, MetricName: "auc", Value: 0.9, HigherBetter: true},
		},
	}
	agg := AggregateCVResults(raw)
	require.Len(t, agg, 2)

	assert.Equal(t, callback.AggregateDataName, agg[0].DataName)
	assert.Equal(t, "l2", agg[0].MetricName)
	assert.InDelta(t, 0.5, agg[0].Value, 1e-12)
	assert.InDelta(t, 0.1, agg[0].Stdv, 1e-12)
	assert.True(t, agg[0].HasStdv)
	assert.False(t, agg[0].HigherBetter)

	assert.Equal(t, "auc", agg[1].MetricName)
	assert.InDelta(t, 0.8, agg[1].Value, 1e-12)
	assert.True(t, agg[1].HigherBetter)

	assert.Empty(t, AggregateCVResults(nil))
}
