package callback

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder exports evaluation results as Prometheus gauges.
type MetricsRecorder struct {
	value  *prometheus.GaugeVec
	stdv   *prometheus.GaugeVec
	rounds prometheus.Counter
	cb     *Func
}

// RecordMetrics returns a recorder registered on reg. Each round sets
// <namespace>_eval_value{data,metric}, <namespace>_eval_stdv{data,metric}
// for cross-validation aggregates, and increments <namespace>_rounds_total.
func RecordMetrics(reg prometheus.Registerer, namespace string) (*MetricsRecorder, error) {
	r := &MetricsRecorder{
		value: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eval_value",
			Help:      "Latest evaluation result by data partition and metric",
		}, []string{"data", "metric"}),
		stdv: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "eval_stdv",
			Help:      "Latest cross-validation standard deviation by metric",
		}, []string{"data", "metric"}),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Boosting rounds evaluated",
		}),
	}
	for _, c := range []prometheus.Collector{r.value, r.stdv, r.rounds} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	r.cb = New(r.record, WithOrder(25))
	return r, nil
}

func (r *MetricsRecorder) record(env *Env) error {
	r.rounds.Inc()
	for _, res := range env.EvaluationResults {
		r.value.WithLabelValues(res.DataName, res.MetricName).Set(res.Value)
		if res.HasStdv {
			r.stdv.WithLabelValues(res.DataName, res.MetricName).Set(res.Stdv)
		}
	}
	return nil
}

// Call implements Callback.
func (r *MetricsRecorder) Call(env *Env) error {
	return r.cb.Call(env)
}

// Options implements Callback.
func (r *MetricsRecorder) Options() Options {
	return r.cb.Options()
}
