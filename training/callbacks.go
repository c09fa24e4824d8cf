package training

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/xyzhou-puck/LightGBM/callback"
)

// ResolvedCallback is a callback with its resolved sort key.
type ResolvedCallback struct {
	Callback callback.Callback
	Order    int
}

// Plan holds the callbacks of one controller run split by phase, each sorted
// ascending by resolved order.
type Plan struct {
	Before []ResolvedCallback
	After  []ResolvedCallback
}

// ResolveCallbacks builds the dispatch plan for cbs without modifying them.
//
// A callback without an explicit order gets position-len(cbs), so unordered
// callbacks keep their registration sequence and sort before any callback
// with a non-negative order. A callback registered more than once is kept
// once, at its first position. Equal orders keep registration sequence.
func ResolveCallbacks(cbs []callback.Callback) Plan {
	seen := make(map[callback.Callback]struct{}, len(cbs))
	resolved := make([]ResolvedCallback, 0, len(cbs))
	for i, cb := range cbs {
		if cb == nil {
			continue
		}
		if isComparable(cb) {
			if _, dup := seen[cb]; dup {
				continue
			}
			seen[cb] = struct{}{}
		}
		opts := cb.Options()
		order := i - len(cbs)
		if opts.HasOrder {
			order = opts.Order
		}
		resolved = append(resolved, ResolvedCallback{Callback: cb, Order: order})
	}

	var plan Plan
	for _, rc := range resolved {
		if rc.Callback.Options().BeforeIteration {
			plan.Before = append(plan.Before, rc)
		} else {
			plan.After = append(plan.After, rc)
		}
	}
	byOrder := func(s []ResolvedCallback) func(i, j int) bool {
		return func(i, j int) bool { return s[i].Order < s[j].Order }
	}
	sort.SliceStable(plan.Before, byOrder(plan.Before))
	sort.SliceStable(plan.After, byOrder(plan.After))
	return plan
}

// isComparable reports whether v can be compared with == without panicking.
// Interface fields are checked by their dynamic value, so a comparable
// wrapper around a slice-backed value is not comparable.
func isComparable(v any) bool {
	return reflect.ValueOf(v).Comparable()
}

// RunBefore invokes the before-update callbacks in order.
func (p Plan) RunBefore(env *callback.Env) error {
	for _, rc := range p.Before {
		if err := rc.Callback.Call(env); err != nil {
			return fmt.Errorf("before-iteration callback: %w", err)
		}
	}
	return nil
}

// RunAfter invokes the after-update callbacks in order. The first early stop
// signal ends the sweep and is returned as stop; any other callback error is
// returned as err.
func (p Plan) RunAfter(env *callback.Env) (stop *callback.EarlyStopError, err error) {
	for _, rc := range p.After {
		if err := rc.Callback.Call(env); err != nil {
			var es *callback.EarlyStopError
			if errors.As(err, &es) {
				return es, nil
			}
			return nil, fmt.Errorf("after-iteration callback: %w", err)
		}
	}
	return nil, nil
}
