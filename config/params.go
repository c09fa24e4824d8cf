// Package config holds the hyperparameter map passed to models and the YAML
// run configuration consumed by the command line tool.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// MetricKey is the parameter holding the evaluation metric list.
const MetricKey = "metric"

// Params is a hyperparameter configuration. Values are usually strings,
// numbers, bools or string lists as decoded from YAML.
type Params map[string]any

// Clone returns a copy that can be modified without touching p. Slice values
// are copied as well.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		switch t := v.(type) {
		case []string:
			out[k] = append([]string(nil), t...)
		case []any:
			out[k] = append([]any(nil), t...)
		default:
			out[k] = v
		}
	}
	return out
}

// String returns the value for key formatted as a string, or def.
func (p Params) String(key, def string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Float returns the value for key as float64, or def when absent.
func (p Params) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("param %q: %w", key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("param %q: unsupported type %T", key, v)
	}
}

// Int returns the value for key as int, or def when absent.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		if t != float64(int(t)) {
			return 0, fmt.Errorf("param %q: %v is not an integer", key, t)
		}
		return int(t), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("param %q: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("param %q: unsupported type %T", key, v)
	}
}

// Metrics returns the configured metric names. A single string may hold a
// comma separated list.
func (p Params) Metrics() []string {
	var out []string
	add := func(s string) {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	switch t := p[MetricKey].(type) {
	case string:
		add(t)
	case []string:
		for _, s := range t {
			add(s)
		}
	case []any:
		for _, s := range t {
			add(fmt.Sprint(s))
		}
	}
	return out
}

// AppendMetrics adds names to the metric list, keeping what is already
// configured first.
func (p Params) AppendMetrics(names ...string) {
	if len(names) == 0 {
		return
	}
	p[MetricKey] = append(p.Metrics(), names...)
}
