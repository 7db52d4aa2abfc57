// Package metrics provides the Prometheus collectors of the service.
package metrics

// Recorder is the minimal metrics surface used by components that only count
// operations, so they can be tested without a registry.
type Recorder interface {
	// RecordOperation counts an operation outcome, e.g. ("save_detection", "success").
	RecordOperation(operation, status string)
	// RecordDuration observes an operation duration in seconds.
	RecordDuration(operation string, seconds float64)
	// RecordError counts a failure by type, e.g. ("list_detections", "database").
	RecordError(operation, errorType string)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) RecordOperation(string, string) {}
func (NoopRecorder) RecordDuration(string, float64) {}
func (NoopRecorder) RecordError(string, string) {}
