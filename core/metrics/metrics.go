package metrics

import "time"

// SubmissionResult represents one schedule push attempt to be recorded.
type SubmissionResult struct {
	SubmissionID string
	EntityID     string
	Program      string
	OK           bool
	TimedOut     bool
	Latency      time.Duration
	Time         time.Time
}

// MetricsSink records submission results for observability purposes.
type MetricsSink interface {
	RecordSubmission(res SubmissionResult) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordSubmission(SubmissionResult) error { return nil }

// MultiSink fans out each record to several sinks. The first error is
// returned after all sinks have been invoked.
type MultiSink struct {
	sinks []MetricsSink
}

// NewMultiSink creates a MultiSink over the given sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) RecordSubmission(res SubmissionResult) error {
	var first error
	for _, s := range m.sinks {
		if err := s.RecordSubmission(res); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Config defines settings for metrics sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}
