package callback

import "errors"

// EvalsResult collects metric histories by data name then metric name.
type EvalsResult map[string]map[string][]float64

// RecordEvaluation returns a callback that records every evaluation result
// into result. The map is cleared on the first invocation.
func RecordEvaluation(result EvalsResult) Callback {
	initialized := false
	return New(func(env *Env) error {
		if result == nil {
			return errors.New("record evaluation: result map is nil")
		}
		if !initialized {
			for k := range result {
				delete(result, k)
			}
			for _, r := range env.EvaluationResults {
				if result[r.DataName] == nil {
					result[r.DataName] = make(map[string][]float64)
				}
				result[r.DataName][r.MetricName] = []float64{}
			}
			initialized = true
		}
		for _, r := range env.EvaluationResults {
			if result[r.DataName] == nil {
				result[r.DataName] = make(map[string][]float64)
			}
			result[r.DataName][r.MetricName] = append(result[r.DataName][r.MetricName], r.Value)
		}
		return nil
	}, WithOrder(20))
}
