package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PestNetMetrics tracks model resolution and predictions.
type PestNetMetrics struct {
	ModelLoadAttempts  *prometheus.CounterVec
	ModelLoaded        *prometheus.GaugeVec
	PredictionTotal    *prometheus.CounterVec
	PredictionDuration prometheus.Histogram
	PredictedLabel     *prometheus.CounterVec
}

// NewPestNetMetrics creates the collectors and registers them on registry.
func NewPestNetMetrics(registry *prometheus.Registry) (*PestNetMetrics, error) {
	m := &PestNetMetrics{
		ModelLoadAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pestnet_model_load_attempts_total",
			Help: "Model loading attempts partitioned by strategy and outcome.",
		}, []string{"strategy", "status"}),
		ModelLoaded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pestnet_model_loaded",
			Help: "1 when a classifier is published, labelled by its source.",
		}, []string{"source"}),
		PredictionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pestnet_predictions_total",
			Help: "Prediction requests partitioned by outcome.",
		}, []string{"status"}),
		PredictionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pestnet_prediction_duration_seconds",
			Help:    "Time taken by one forward pass.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		}),
		PredictedLabel: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pestnet_predicted_label_total",
			Help: "Successful predictions partitioned by top label.",
		}, []string{"label"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pestnet metrics: %w", err)
	}
	return m, nil
}

// RecordModelLoadAttempt counts one resolver attempt. Strategy is the attempt kind.
func (m *PestNetMetrics) RecordModelLoadAttempt(strategy string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ModelLoadAttempts.WithLabelValues(strategy, status).Inc()
}

// SetModelLoaded marks source as the published classifier.
func (m *PestNetMetrics) SetModelLoaded(source string) {
	m.ModelLoaded.Reset()
	m.ModelLoaded.WithLabelValues(source).Set(1)
}

func (m *PestNetMetrics) RecordPrediction(label string, duration time.Duration, err error) {
	if err != nil {
		m.PredictionTotal.WithLabelValues("error").Inc()
		return
	}
	m.PredictionTotal.WithLabelValues("success").Inc()
	m.PredictionDuration.Observe(duration.Seconds())
	m.PredictedLabel.WithLabelValues(label).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *PestNetMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ModelLoadAttempts.Describe(ch)
	m.ModelLoaded.Describe(ch)
	m.PredictionTotal.Describe(ch)
	ch <- m.PredictionDuration.Desc()
	m.PredictedLabel.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *PestNetMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ModelLoadAttempts.Collect(ch)
	m.ModelLoaded.Collect(ch)
	m.PredictionTotal.Collect(ch)
	ch <- m.PredictionDuration
	m.PredictedLabel.Collect(ch)
}
