package gbdt

import (
	"fmt"
	"math"
	"strings"
)

// Objective names accepted by the "objective" parameter.
const (
	ObjectiveRegression = "regression"
	ObjectiveBinary     = "binary"
	// ObjectiveNone requires a custom objective function on every update.
	ObjectiveNone = "none"
)

// objective is a built-in loss.
type objective interface {
	Name() string
	// CheckLabels rejects labels the loss cannot handle.
	CheckLabels(labels []float64) error
	// Gradients fills grad and hess for the raw scores.
	Gradients(score, labels, grad, hess []float64)
	// Transform maps a raw score to the output scale.
	Transform(raw float64) float64
	// BoostFromAverage is the constant raw score that minimizes the loss.
	BoostFromAverage(labels, weights []float64) float64
	DefaultMetric() string
}

func parseObjective(name string) (objective, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ObjectiveRegression, "regression_l2", "l2", "mse", "mean_squared_error":
		return regression{}, nil
	case ObjectiveBinary:
		return binary{}, nil
	case ObjectiveNone, "custom", "null", "na":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown objective %q", name)
	}
}

func objectiveName(obj objective) string {
	if obj == nil {
		return ObjectiveNone
	}
	return obj.Name()
}

type regression struct{}

func (regression) Name() string { return ObjectiveRegression }

func (regression) CheckLabels(labels []float64) error {
	for i, y := range labels {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return fmt.Errorf("label %d is not finite", i)
		}
	}
	return nil
}

func (regression) Gradients(score, labels, grad, hess []float64) {
	for i := range score {
		grad[i] = score[i] - labels[i]
		hess[i] = 1
	}
}

func (regression) Transform(raw float64) float64 { return raw }

func (regression) BoostFromAverage(labels, weights []float64) float64 {
	return weightedMean(labels, weights)
}

func (regression) DefaultMetric() string { return "l2" }

type binary struct{}

func (binary) Name() string { return ObjectiveBinary }

func (binary) CheckLabels(labels []float64) error {
	for i, y := range labels {
		if y != 0 && y != 1 {
			return fmt.Errorf("binary objective requires 0/1 labels, label %d is %g", i, y)
		}
	}
	return nil
}

func (binary) Gradients(score, labels, grad, hess []float64) {
	for i := range score {
		p := sigmoid(score[i])
		grad[i] = p - labels[i]
		hess[i] = math.Max(p*(1-p), 1e-16)
	}
}

func (binary) Transform(raw float64) float64 { return sigmoid(raw) }

func (binary) BoostFromAverage(labels, weights []float64) float64 {
	p := weightedMean(labels, weights)
	p = math.Min(math.Max(p, 1e-15), 1-1e-15)
	return math.Log(p / (1 - p))
}

func (binary) DefaultMetric() string { return "binary_logloss" }

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func weightedMean(values, weights []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum, wsum float64
	for i, v := range values {
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		sum += v * w
		wsum += w
	}
	if wsum == 0 {
		return 0
	}
	return sum / wsum
}
