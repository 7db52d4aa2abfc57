package pestnet

import (
	"fmt"

	"gorgonia.org/tensor"

	"github.com/gardenlab/pestnet-go/internal/errors"
)

// Input geometry expected by every classifier.
const (
	InputHeight   = 224
	InputWidth    = 224
	InputChannels = 3
)

// Classifier turns a preprocessed image batch of shape [1, 224, 224, 3] into a
// probability vector of length NumClasses.
type Classifier interface {
	Predict(input *tensor.Dense) ([]float32, error)
	// Source describes where the model came from, e.g. "complete:models/pest_model_complete.pnm".
	Source() string
	Close() error
}

// validateInput checks the NHWC shape of a single-image batch and returns its backing slice.
func validateInput(input *tensor.Dense) ([]float32, error) {
	if input == nil {
		return nil, errors.NewStd("input tensor is nil")
	}
	shape := input.Shape()
	if len(shape) != 4 || shape[0] != 1 || shape[1] != InputHeight || shape[2] != InputWidth || shape[3] != InputChannels {
		return nil, fmt.Errorf("input shape %v, want [1 %d %d %d]", shape, InputHeight, InputWidth, InputChannels)
	}
	data, ok := input.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("input dtype %v, want float32", input.Dtype())
	}
	return data, nil
}
