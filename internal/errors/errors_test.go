package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestBuildDefaults(t *testing.T) {
	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.Component)
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuilderContextAndTiming(t *testing.T) {
	ee := Newf("load %s", "model.pnm").
		Component("pestnet").
		Category(CategoryModelLoad).
		Context("strategy", "complete").
		Timing("load_model", 1500*time.Millisecond).
		Priority("bogus").
		Build()

	ctx := ee.GetContext()
	assert.Equal(t, "complete", ctx["strategy"])
	assert.Equal(t, "load_model", ctx["operation"])
	assert.Equal(t, int64(1500), ctx["duration_ms"])
	assert.Equal(t, PriorityMedium, ee.Priority)

	ctx["strategy"] = "mutated"
	assert.Equal(t, "complete", ee.Context["strategy"], "GetContext must return a copy")
}

func TestIsCategoryThroughWrapping(t *testing.T) {
	base := New(NewStd("bad image")).Category(CategoryImageProcessing).Build()
	wrapped := fmt.Errorf("predict: %w", base)

	assert.True(t, IsCategory(wrapped, CategoryImageProcessing))
	assert.False(t, IsCategory(wrapped, CategoryInference))
	assert.True(t, Is(wrapped, &EnhancedError{Category: CategoryImageProcessing}))
}

func TestTelemetryReporting(t *testing.T) {
	rec := &recordingReporter{}
	SetTelemetryReporter(rec)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(NewStd("boom")).Category(CategoryDatabase).Build()

	require.Len(t, rec.reported, 1)
	assert.Same(t, ee, rec.reported[0])
	assert.True(t, ee.IsReported())
}

func TestScrubMessage(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		hidden  string
		present string
	}{
		{"url query", "fetch https://example.com/x?api_key=abc failed", "api_key=abc", "https://example.com/x?[REDACTED]"},
		{"token", "auth failed token=s3cr3t", "s3cr3t", "[REDACTED]"},
		{"mysql dsn", "dial root:hunter2@tcp(db:3306)/pests", "hunter2", "[CREDENTIALS_REDACTED]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := scrubMessage(tt.in)
			assert.NotContains(t, out, tt.hidden)
			assert.Contains(t, out, tt.present)
		})
	}
}

func TestErrorTitle(t *testing.T) {
	ee := New(NewStd("x")).
		Component("pestnet").
		Category(CategoryModelLoad).
		Context("operation", "weights_only").
		Build()
	assert.Equal(t, "Pestnet Model Loading Weights Only", errorTitle(ee))
}
