package pestnet

import (
	"fmt"
	"strings"

	"github.com/gardenlab/pestnet-go/internal/errors"
)

// ErrModelNotLoaded is returned by Engine.Predict when no classifier is published.
var ErrModelNotLoaded = errors.NewStd("Model not loaded")

// errArtifactMissing marks a candidate whose file does not exist. The resolver
// treats it as a skip rather than a failure.
var errArtifactMissing = errors.NewStd("artifact not found")

// AttemptFailure records why one loading attempt was rejected.
type AttemptFailure struct {
	Kind StrategyKind
	Path string
	Err  error
}

// ResolutionFailure is returned when no artifact loads and no fallback could be synthesised.
type ResolutionFailure struct {
	Attempts []AttemptFailure
	Fallback error
}

func (rf *ResolutionFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no usable model: %d attempts failed", len(rf.Attempts))
	if rf.Fallback != nil {
		fmt.Fprintf(&b, ", fallback failed: %v", rf.Fallback)
	} else {
		b.WriteString(", fallback disabled")
	}
	return b.String()
}

func (rf *ResolutionFailure) Unwrap() error {
	return rf.Fallback
}

// newInferenceError wraps a failure raised during a forward pass.
func newInferenceError(err error, source string) error {
	return errors.New(err).
		Component("pestnet").
		Category(errors.CategoryInference).
		Context("model_source", source).
		Build()
}
