package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/lmichel/tonectl/core/metrics"
)

// PromSink records schedule submissions in Prometheus metrics.
type PromSink struct {
	submissions *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// NewPromSink registers submission metrics on the provided Prometheus
// registerer. If reg is nil, the default registerer is used. If the
// collectors are already registered, the existing ones are reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_submissions_total",
		Help: "Total number of schedule submission attempts",
	}, []string{"entity_id", "program", "ok", "timed_out"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "schedule_submission_latency_seconds",
		Help:    "Time between submission start and settlement",
		Buckets: prometheus.DefBuckets,
	}, []string{"entity_id", "program", "ok"})

	if err := reg.Register(submissions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			submissions = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(latency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			latency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{submissions: submissions, latency: latency}, nil
}

// RecordSubmission increments the counter and observes the latency for one
// submission attempt.
func (s *PromSink) RecordSubmission(res coremetrics.SubmissionResult) error {
	ok := strconv.FormatBool(res.OK)
	s.submissions.WithLabelValues(res.EntityID, res.Program, ok, strconv.FormatBool(res.TimedOut)).Inc()
	s.latency.WithLabelValues(res.EntityID, res.Program, ok).Observe(res.Latency.Seconds())
	return nil
}
