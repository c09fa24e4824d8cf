package gbdt

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// metric evaluates transformed predictions against labels.
type metric struct {
	name         string
	higherBetter bool
	eval         func(labels, preds, weights []float64) float64
}

var builtinMetrics = map[string]metric{
	"l2":             {name: "l2", eval: func(y, p, w []float64) float64 { return regressionMetrics(y, p, w).MSE }},
	"rmse":           {name: "rmse", eval: func(y, p, w []float64) float64 { return regressionMetrics(y, p, w).RMSE }},
	"l1":             {name: "l1", eval: func(y, p, w []float64) float64 { return regressionMetrics(y, p, w).MAE }},
	"r2":             {name: "r2", higherBetter: true, eval: func(y, p, w []float64) float64 { return regressionMetrics(y, p, w).R2 }},
	"binary_logloss": {name: "binary_logloss", eval: binaryLogloss},
	"binary_error":   {name: "binary_error", eval: binaryError},
	"auc":            {name: "auc", higherBetter: true, eval: aucROC},
}

var metricAliases = map[string]string{
	"mse":                     "l2",
	"mean_squared_error":      "l2",
	"regression":              "l2",
	"regression_l2":           "l2",
	"root_mean_squared_error": "rmse",
	"l2_root":                 "rmse",
	"mae":                     "l1",
	"mean_absolute_error":     "l1",
	"regression_l1":           "l1",
	"binary":                  "binary_logloss",
}

// resolveMetrics maps metric names to evaluators, dropping duplicates. An
// empty list selects the objective's default; "None" disables built-in
// metrics.
func resolveMetrics(names []string, obj objective) ([]metric, error) {
	if len(names) == 0 {
		if obj == nil {
			return nil, nil
		}
		names = []string{obj.DefaultMetric()}
	}
	seen := make(map[string]bool, len(names))
	var out []metric
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		switch key {
		case "none", "null", "na", "custom":
			return nil, nil
		}
		if alias, ok := metricAliases[key]; ok {
			key = alias
		}
		m, ok := builtinMetrics[key]
		if !ok {
			return nil, fmt.Errorf("unknown metric %q", n)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out, nil
}

// RegressionMetrics holds regression evaluation metrics
type RegressionMetrics struct {
	MAE  float64 // Mean Absolute Error
	MSE  float64 // Mean Squared Error
	RMSE float64 // Root Mean Squared Error
	R2   float64 // R-squared
}

// regressionMetrics computes weighted regression metrics in one pass over
// the residuals.
func regressionMetrics(labels, preds, weights []float64) RegressionMetrics {
	if len(labels) == 0 {
		return RegressionMetrics{}
	}
	meanTrue := weightedMean(labels, weights)

	var sumW, sumAbsErr, sumSqErr, sumSqTotal float64
	for i, y := range labels {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		diff := preds[i] - y
		sumW += w
		sumAbsErr += w * math.Abs(diff)
		sumSqErr += w * diff * diff
		sumSqTotal += w * (y - meanTrue) * (y - meanTrue)
	}
	if sumW == 0 {
		return RegressionMetrics{}
	}

	mse := sumSqErr / sumW
	r2 := 0.0
	if sumSqTotal > 0 {
		r2 = 1.0 - (sumSqErr / sumSqTotal)
	}
	return RegressionMetrics{
		MAE:  sumAbsErr / sumW,
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		R2:   r2,
	}
}

const probEpsilon = 1e-15

func binaryLogloss(labels, preds, weights []float64) float64 {
	var sum, sumW float64
	for i, y := range labels {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		p := math.Min(math.Max(preds[i], probEpsilon), 1-probEpsilon)
		if y > 0 {
			sum -= w * math.Log(p)
		} else {
			sum -= w * math.Log(1-p)
		}
		sumW += w
	}
	if sumW == 0 {
		return 0
	}
	return sum / sumW
}

func binaryError(labels, preds, weights []float64) float64 {
	var wrong, sumW float64
	for i, y := range labels {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		if (preds[i] > 0.5) != (y > 0) {
			wrong += w
		}
		sumW += w
	}
	if sumW == 0 {
		return 0
	}
	return wrong / sumW
}

// aucROC is the area under the ROC curve computed with the trapezoidal rule.
// Tied scores form a single step. It is 1 when only one class is present.
func aucROC(labels, preds, weights []float64) float64 {
	type predLabel struct {
		score  float64
		pos    bool
		weight float64
	}
	pairs := make([]predLabel, len(labels))
	var totalPos, totalNeg float64
	for i, y := range labels {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		pairs[i] = predLabel{score: preds[i], pos: y > 0, weight: w}
		if y > 0 {
			totalPos += w
		} else {
			totalNeg += w
		}
	}
	if totalPos == 0 || totalNeg == 0 {
		return 1
	}

	// Sort by prediction score (descending)
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].score > pairs[j].score
	})

	auc := 0.0
	var tp, fp, prevTP, prevFP float64
	for i := 0; i < len(pairs); {
		j := i
		for ; j < len(pairs) && pairs[j].score == pairs[i].score; j++ {
			if pairs[j].pos {
				tp += pairs[j].weight
			} else {
				fp += pairs[j].weight
			}
		}
		auc += (fp - prevFP) * (tp + prevTP) / 2.0
		prevTP, prevFP = tp, fp
		i = j
	}
	return auc / (totalPos * totalNeg)
}
