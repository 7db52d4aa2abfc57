package pestnet

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gorgonia.org/tensor"

	"github.com/gardenlab/pestnet-go/internal/logger"
)

// TrainConfig controls the fallback training run.
type TrainConfig struct {
	Samples      int
	Epochs       int
	BatchSize    int
	LearningRate float64
	// Seed for weights and synthetic data. Zero picks a time-based seed.
	Seed int64
}

// DefaultTrainConfig matches the throwaway model shipped as fallback.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{Samples: 64, Epochs: 3, BatchSize: 16, LearningRate: 0.001}
}

// TrainStats summarises a training run.
type TrainStats struct {
	Seed      int64
	Epochs    int
	FinalLoss float64
	Accuracy  float64
}

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
)

// adamState holds first and second moments for one tensor.
type adamState struct {
	m, v []float64
}

func newAdamState(n int) *adamState {
	return &adamState{m: make([]float64, n), v: make([]float64, n)}
}

// step applies one bias-corrected Adam update to params.
func (s *adamState) step(params []float32, grads []float64, lr float64, t int) {
	c1 := 1 - math.Pow(adamBeta1, float64(t))
	c2 := 1 - math.Pow(adamBeta2, float64(t))
	for i, g := range grads {
		s.m[i] = adamBeta1*s.m[i] + (1-adamBeta1)*g
		s.v[i] = adamBeta2*s.v[i] + (1-adamBeta2)*g*g
		mHat := s.m[i] / c1
		vHat := s.v[i] / c2
		params[i] -= float32(lr * mHat / (math.Sqrt(vHat) + adamEpsilon))
	}
}

// SynthesizeFallback builds the default architecture and fits it on random
// images with random labels. The result classifies nothing meaningfully; it
// only guarantees the service has a well-formed model to serve.
func SynthesizeFallback(ctx context.Context, cfg TrainConfig) (*Network, *TrainStats, error) {
	if cfg.Samples <= 0 || cfg.Epochs <= 0 || cfg.BatchSize <= 0 || cfg.LearningRate <= 0 {
		return nil, nil, fmt.Errorf("invalid training config %+v", cfg)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1)) //nolint:gosec // synthetic data, not security sensitive

	net, err := NewNetwork(DefaultArchitecture(), rng)
	if err != nil {
		return nil, nil, err
	}
	net.Compile(DefaultCompileConfig())

	// The backbone is frozen, so features are extracted once.
	featureSize := net.backbone.outputSize()
	features := make([]float32, cfg.Samples*featureSize)
	labels := make([]int, cfg.Samples)
	img := make([]float32, InputHeight*InputWidth*InputChannels)
	for i := range cfg.Samples {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		for j := range img {
			img[j] = rng.Float32()
		}
		copy(features[i*featureSize:], net.backbone.forward(img))
		labels[i] = rng.IntN(NumClasses)
	}

	tr := newTrainer(net, cfg.LearningRate, rng)
	stats := &TrainStats{Seed: seed, Epochs: cfg.Epochs}
	log := GetLogger()

	for epoch := range cfg.Epochs {
		var lossSum float64
		var correct int
		order := rng.Perm(cfg.Samples)
		for start := 0; start < cfg.Samples; start += cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			idx := order[start:min(start+cfg.BatchSize, cfg.Samples)]
			batch := make([]float32, len(idx)*featureSize)
			batchLabels := make([]int, len(idx))
			for b, i := range idx {
				copy(batch[b*featureSize:], features[i*featureSize:(i+1)*featureSize])
				batchLabels[b] = labels[i]
			}
			loss, hits, err := tr.trainBatch(batch, batchLabels)
			if err != nil {
				return nil, nil, err
			}
			lossSum += loss * float64(len(idx))
			correct += hits
		}

		stats.FinalLoss = lossSum / float64(cfg.Samples)
		stats.Accuracy = float64(correct) / float64(cfg.Samples)
		if math.IsNaN(stats.FinalLoss) || math.IsInf(stats.FinalLoss, 0) {
			return nil, nil, fmt.Errorf("training diverged at epoch %d", epoch+1)
		}
		log.Debug("fallback training epoch",
			logger.Int("epoch", epoch+1),
			logger.Float64("loss", stats.FinalLoss),
			logger.Float64("accuracy", stats.Accuracy))
	}
	return net, stats, nil
}

// trainer runs backpropagation over the dense head.
type trainer struct {
	net    *Network
	lr     float64
	rng    *rand.Rand
	step   int
	states map[*tensor.Dense]*adamState
}

func newTrainer(net *Network, lr float64, rng *rand.Rand) *trainer {
	states := make(map[*tensor.Dense]*adamState)
	for _, d := range net.layers {
		states[d.kernel] = newAdamState(d.kernel.Shape().TotalSize())
		states[d.bias] = newAdamState(d.units)
	}
	return &trainer{net: net, lr: lr, rng: rng, states: states}
}

// trainBatch runs forward and backward passes with categorical cross-entropy
// loss and returns the mean loss and the number of correct predictions.
func (tr *trainer) trainBatch(x []float32, labels []int) (float64, int, error) {
	batch := len(labels)
	layers := tr.net.layers

	// activations[0] is the input; activations[i+1] the output of layer i.
	activations := make([][]float32, len(layers)+1)
	masks := make([][]float32, len(layers))
	activations[0] = x
	in := tensor.New(tensor.WithShape(batch, len(x)/batch), tensor.WithBacking(x))
	for i, d := range layers {
		out, err := d.forward(in)
		if err != nil {
			return 0, 0, err
		}
		data := out.Data().([]float32)
		if d.dropout > 0 && i < len(layers)-1 {
			masks[i] = tr.dropoutMask(len(data), d.dropout)
			for j := range data {
				data[j] *= masks[i][j]
			}
		}
		activations[i+1] = data
		in = out
	}

	probs := activations[len(layers)]
	var loss float64
	var hits int
	delta := make([]float64, len(probs))
	for b, label := range labels {
		row := probs[b*NumClasses : (b+1)*NumClasses]
		loss -= math.Log(math.Max(float64(row[label]), 1e-12))
		best := 0
		for k, p := range row {
			delta[b*NumClasses+k] = float64(p) / float64(batch)
			if p > row[best] {
				best = k
			}
		}
		delta[b*NumClasses+label] -= 1 / float64(batch)
		if best == label {
			hits++
		}
	}

	tr.step++
	for i := len(layers) - 1; i >= 0; i-- {
		d := layers[i]
		prev := activations[i]
		inSize := len(prev) / batch
		kernel := d.kernel.Data().([]float32)

		gradW := make([]float64, inSize*d.units)
		gradB := make([]float64, d.units)
		for b := range batch {
			for k := range d.units {
				g := delta[b*d.units+k]
				if g == 0 {
					continue
				}
				gradB[k] += g
				for j := range inSize {
					gradW[j*d.units+k] += float64(prev[b*inSize+j]) * g
				}
			}
		}

		var next []float64
		if i > 0 {
			below := layers[i-1]
			next = make([]float64, batch*inSize)
			for b := range batch {
				for j := range inSize {
					a := prev[b*inSize+j]
					if below.activation == ActivationReLU && a <= 0 {
						continue
					}
					var sum float64
					for k := range d.units {
						sum += delta[b*d.units+k] * float64(kernel[j*d.units+k])
					}
					if masks[i-1] != nil {
						sum *= float64(masks[i-1][b*inSize+j])
					}
					next[b*inSize+j] = sum
				}
			}
		}

		tr.states[d.kernel].step(kernel, gradW, tr.lr, tr.step)
		tr.states[d.bias].step(d.bias.Data().([]float32), gradB, tr.lr, tr.step)
		delta = next
	}
	return loss / float64(batch), hits, nil
}

// dropoutMask returns inverted dropout multipliers: 0 or 1/(1-rate).
func (tr *trainer) dropoutMask(n int, rate float64) []float32 {
	keep := float32(1 / (1 - rate))
	mask := make([]float32, n)
	for i := range mask {
		if tr.rng.Float64() >= rate {
			mask[i] = keep
		}
	}
	return mask
}
