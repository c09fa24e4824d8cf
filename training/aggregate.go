package training

import (
	"math"

	"github.com/xyzhou-puck/LightGBM/callback"
)

// AggregateCVResults reduces one result list per fold into a mean and
// population standard deviation per metric name. Metrics are emitted in the
// order they are first seen.
func AggregateCVResults(raw [][]callback.EvalResult) []callback.EvalResult {
	var names []string
	values := make(map[string][]float64)
	higherBetter := make(map[string]bool)
	for _, fold := range raw {
		for _, r := range fold {
			if _, ok := values[r.MetricName]; !ok {
				names = append(names, r.MetricName)
			}
			values[r.MetricName] = append(values[r.MetricName], r.Value)
			higherBetter[r.MetricName] = r.HigherBetter
		}
	}

	out := make([]callback.EvalResult, 0, len(names))
	for _, name := range names {
		mean, std := meanStd(values[name])
		out = append(out, callback.EvalResult{
			DataName:     callback.AggregateDataName,
			MetricName:   name,
			Value:        mean,
			HigherBetter: higherBetter[name],
			Stdv:         std,
			HasStdv:      true,
		})
	}
	return out
}

// meanStd returns the arithmetic mean and population standard deviation.
func meanStd(v []float64) (float64, float64) {
	if len(v) == 0 {
		return math.NaN(), math.NaN()
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	mean := sum / float64(len(v))
	var sq float64
	for _, x := range v {
		sq += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sq / float64(len(v)))
}
