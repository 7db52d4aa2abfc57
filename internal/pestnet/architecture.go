package pestnet

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/gardenlab/pestnet-go/internal/errors"
)

// Layer types accepted in architecture files.
const (
	LayerBackbone = "backbone"
	LayerFlatten  = "flatten"
	LayerDense    = "dense"
	LayerDropout  = "dropout"
)

// LayerSpec declares one layer of a sequential network.
type LayerSpec struct {
	Type       string  `json:"type"`
	Name       string  `json:"name"`
	Units      int     `json:"units,omitempty"`
	Activation string  `json:"activation,omitempty"`
	Rate       float64 `json:"rate,omitempty"`
	Pool       int     `json:"pool,omitempty"`
	Filters    int     `json:"filters,omitempty"`
	Trainable  *bool   `json:"trainable,omitempty"`
}

// CompileConfig is the training configuration recorded alongside a model.
type CompileConfig struct {
	Optimizer string   `json:"optimizer"`
	Loss      string   `json:"loss"`
	Metrics   []string `json:"metrics"`
}

// DefaultCompileConfig is applied to every model loaded from a complete artifact.
func DefaultCompileConfig() CompileConfig {
	return CompileConfig{
		Optimizer: "adam",
		Loss:      "categorical_crossentropy",
		Metrics:   []string{"accuracy"},
	}
}

// Architecture is the declarative description of a network, stored as JSON.
type Architecture struct {
	Name       string         `json:"name"`
	InputShape []int          `json:"input_shape"`
	Layers     []LayerSpec    `json:"layers"`
	Compile    *CompileConfig `json:"compile,omitempty"`
}

// DefaultArchitecture is the fixed layout used for weights-only artifacts and
// the fallback model: frozen backbone, flatten, dense(256, relu),
// dense(12, softmax).
func DefaultArchitecture() *Architecture {
	frozen := false
	compile := DefaultCompileConfig()
	return &Architecture{
		Name:       "pestnet",
		InputShape: []int{InputHeight, InputWidth, InputChannels},
		Layers: []LayerSpec{
			{Type: LayerBackbone, Name: "backbone", Pool: 8, Filters: 8, Trainable: &frozen},
			{Type: LayerFlatten, Name: "flatten"},
			{Type: LayerDense, Name: "dense", Units: 256, Activation: ActivationReLU},
			{Type: LayerDense, Name: "dense_1", Units: NumClasses, Activation: ActivationSoftmax},
		},
		Compile: &compile,
	}
}

// ParseArchitecture decodes and validates an architecture document.
func ParseArchitecture(data []byte) (*Architecture, error) {
	var arch Architecture
	if err := json.Unmarshal(data, &arch); err != nil {
		return nil, errors.New(fmt.Errorf("decode architecture: %w", err)).
			Component("pestnet").
			Category(errors.CategoryFileParsing).
			Build()
	}
	if err := arch.Validate(); err != nil {
		return nil, err
	}
	return &arch, nil
}

// Validate checks layer ordering and that the network ends in a NumClasses softmax.
func (a *Architecture) Validate() error {
	fail := func(format string, args ...any) error {
		return errors.Newf("invalid architecture: "+format, args...).
			Component("pestnet").
			Category(errors.CategoryValidation).
			Context("architecture", a.Name).
			Build()
	}

	if len(a.InputShape) > 0 && !slices.Equal(a.InputShape, []int{InputHeight, InputWidth, InputChannels}) {
		return fail("input shape %v, want [%d %d %d]", a.InputShape, InputHeight, InputWidth, InputChannels)
	}
	if len(a.Layers) < 3 {
		return fail("need at least backbone, flatten and one dense layer")
	}
	if a.Layers[0].Type != LayerBackbone {
		return fail("first layer must be %q, got %q", LayerBackbone, a.Layers[0].Type)
	}
	if a.Layers[1].Type != LayerFlatten {
		return fail("second layer must be %q, got %q", LayerFlatten, a.Layers[1].Type)
	}

	names := map[string]bool{}
	var last *LayerSpec
	for i := range a.Layers {
		l := &a.Layers[i]
		if l.Name == "" {
			return fail("layer %d has no name", i)
		}
		if names[l.Name] {
			return fail("duplicate layer name %q", l.Name)
		}
		names[l.Name] = true

		if i < 2 {
			continue
		}
		switch l.Type {
		case LayerDense:
			if l.Units <= 0 {
				return fail("layer %q: units must be positive", l.Name)
			}
			switch l.Activation {
			case "", ActivationLinear, ActivationReLU, ActivationSoftmax:
			default:
				return fail("layer %q: unsupported activation %q", l.Name, l.Activation)
			}
			last = l
		case LayerDropout:
			if l.Rate < 0 || l.Rate >= 1 {
				return fail("layer %q: dropout rate must be in [0, 1)", l.Name)
			}
			if last == nil {
				return fail("layer %q: dropout must follow a dense layer", l.Name)
			}
		default:
			return fail("layer %q: unsupported type %q at position %d", l.Name, l.Type, i)
		}
	}

	if last == nil || last.Units != NumClasses || last.Activation != ActivationSoftmax {
		return fail("final dense layer must have %d units with softmax", NumClasses)
	}
	return nil
}

// Marshal encodes the architecture with indentation.
func (a *Architecture) Marshal() ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}
