package callback

import (
	"fmt"
	"sort"

	"github.com/xyzhou-puck/LightGBM/config"
)

// ResetParameter returns a before-update callback that applies scheduled
// parameter values at the start of each round. Under cross-validation every
// fold's model is reset.
func ResetParameter(schedules map[string]Schedule) Callback {
	keys := make([]string, 0, len(schedules))
	for k := range schedules {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return New(func(env *Env) error {
		round := env.Iteration - env.BeginIteration
		total := env.EndIteration - env.BeginIteration
		params := make(config.Params, len(keys))
		for _, key := range keys {
			v, err := schedules[key].Value(round, total)
			if err != nil {
				return fmt.Errorf("reset parameter %q: %w", key, err)
			}
			params[key] = v
		}
		for _, m := range env.Models() {
			if err := m.ResetParameter(params); err != nil {
				return fmt.Errorf("reset parameter: %w", err)
			}
		}
		return nil
	}, BeforeIteration(), WithOrder(10))
}
