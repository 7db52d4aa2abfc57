package pestnet

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"gorgonia.org/tensor"

	"github.com/gardenlab/pestnet-go/internal/logger"
)

// TopK is the number of ranked labels returned with each prediction.
const TopK = 3

// RankedLabel is one entry of the ranked predictions.
type RankedLabel struct {
	ClassName  string  `json:"class_name"`
	Confidence float64 `json:"confidence"`
}

// PredictionResult is the outcome of one forward pass.
type PredictionResult struct {
	Success    bool
	Label      string
	Index      int
	Confidence float64
	Severity   string
	Top        []RankedLabel
	Duration   time.Duration
}

// Engine runs predictions against the published classifier.
type Engine struct {
	handle  *Handle
	metrics Metrics
}

func NewEngine(handle *Handle, m Metrics) *Engine {
	if m == nil {
		m = noopMetrics{}
	}
	return &Engine{handle: handle, metrics: m}
}

// Predict classifies a preprocessed [1, 224, 224, 3] tensor.
func (e *Engine) Predict(ctx context.Context, input *tensor.Dense) (*PredictionResult, error) {
	c := e.handle.Get()
	if c == nil {
		return nil, ErrModelNotLoaded
	}

	start := time.Now()
	probs, err := c.Predict(input)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		e.metrics.RecordPrediction("", 0, err)
		return nil, newInferenceError(err, c.Source())
	}

	best, top, err := Rank(probs)
	if err != nil {
		e.metrics.RecordPrediction("", 0, err)
		return nil, newInferenceError(err, c.Source())
	}
	elapsed := time.Since(start)

	result := &PredictionResult{
		Success:    true,
		Label:      Labels[best],
		Index:      best,
		Confidence: float64(probs[best]),
		Severity:   SeverityLevel(float64(probs[best])),
		Top:        top,
		Duration:   elapsed,
	}
	e.metrics.RecordPrediction(result.Label, elapsed, nil)
	GetLogger().WithContext(ctx).Debug("prediction",
		logger.String("label", result.Label),
		logger.Float64("confidence", result.Confidence),
		logger.Duration("elapsed", elapsed))
	return result, nil
}

// Rank validates a probability vector and returns the arg-max index and the
// TopK labels by descending probability. Ties keep the lower index first.
func Rank(probs []float32) (int, []RankedLabel, error) {
	if len(probs) != NumClasses {
		return 0, nil, fmt.Errorf("classifier returned %d values, want %d", len(probs), NumClasses)
	}
	for i, p := range probs {
		if math.IsNaN(float64(p)) || math.IsInf(float64(p), 0) {
			return 0, nil, fmt.Errorf("classifier returned non-finite value at index %d", i)
		}
	}

	order := make([]int, NumClasses)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return probs[order[a]] > probs[order[b]]
	})

	top := make([]RankedLabel, TopK)
	for i := range top {
		top[i] = RankedLabel{ClassName: Labels[order[i]], Confidence: float64(probs[order[i]])}
	}
	return order[0], top, nil
}
