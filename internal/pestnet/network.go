package pestnet

import (
	"fmt"
	"math/rand/v2"

	"gorgonia.org/tensor"
)

// Network is the native classifier: a frozen backbone followed by dense layers.
// Predict only reads weights, so one Network is safe for concurrent use.
type Network struct {
	arch     *Architecture
	backbone *backbone
	layers   []*dense
	compile  *CompileConfig
	source   string
}

// NewNetwork builds a network from arch. Dense kernels get Glorot uniform
// initialisation from rng; the backbone starts with its fixed filters.
func NewNetwork(arch *Architecture, rng *rand.Rand) (*Network, error) {
	if err := arch.Validate(); err != nil {
		return nil, err
	}

	spec := arch.Layers[0]
	bb, err := newBackbone(spec.Name, spec.Pool, spec.Filters)
	if err != nil {
		return nil, err
	}

	n := &Network{arch: arch, backbone: bb, compile: arch.Compile}
	in := bb.outputSize()
	for _, l := range arch.Layers[2:] {
		switch l.Type {
		case LayerDense:
			activation := l.Activation
			if activation == "" {
				activation = ActivationLinear
			}
			d := newDense(l.Name, in, l.Units, activation, rng)
			n.layers = append(n.layers, d)
			in = l.Units
		case LayerDropout:
			n.layers[len(n.layers)-1].dropout = l.Rate
		}
	}
	return n, nil
}

// Architecture returns the description the network was built from.
func (n *Network) Architecture() *Architecture {
	return n.arch
}

// Compile records the training configuration.
func (n *Network) Compile(cfg CompileConfig) {
	n.compile = &cfg
	n.arch.Compile = &cfg
}

// Compiled reports whether a compile configuration is attached.
func (n *Network) Compiled() bool {
	return n.compile != nil
}

func (n *Network) Source() string { return n.source }

func (n *Network) setSource(kind StrategyKind, path string) {
	n.source = fmt.Sprintf("%s:%s", kind, path)
}

func (n *Network) Close() error { return nil }

// Predict runs one forward pass over a [1, 224, 224, 3] batch.
func (n *Network) Predict(input *tensor.Dense) ([]float32, error) {
	img, err := validateInput(input)
	if err != nil {
		return nil, err
	}
	features := n.backbone.forward(img)
	out, err := n.head(features, 1)
	if err != nil {
		return nil, err
	}
	probs := make([]float32, len(out))
	copy(probs, out)
	return probs, nil
}

// head runs the dense layers over batch rows of backbone features.
func (n *Network) head(features []float32, batch int) ([]float32, error) {
	x := tensor.New(tensor.WithShape(batch, len(features)/batch), tensor.WithBacking(features))
	for _, d := range n.layers {
		var err error
		if x, err = d.forward(x); err != nil {
			return nil, err
		}
	}
	return x.Data().([]float32), nil
}

// weightSlot is one named, loadable tensor of the network.
type weightSlot struct {
	name   string
	tensor *tensor.Dense
}

// weightSlots lists every tensor in the canonical order used for saving and
// positional loading.
func (n *Network) weightSlots() []weightSlot {
	slots := []weightSlot{
		{n.backbone.name + "/conv/kernel", n.backbone.kernel},
		{n.backbone.name + "/conv/bias", n.backbone.bias},
	}
	for _, d := range n.layers {
		slots = append(slots,
			weightSlot{d.name + "/kernel", d.kernel},
			weightSlot{d.name + "/bias", d.bias})
	}
	return slots
}
