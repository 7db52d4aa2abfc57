package pestnet

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gorgonia.org/tensor"
)

// Activation names accepted in architecture files.
const (
	ActivationLinear  = "linear"
	ActivationReLU    = "relu"
	ActivationSoftmax = "softmax"
)

const (
	convKernelSize = 3
	convStride     = 2
	maxPoolSize    = 2
)

// backbone is the frozen feature extractor: average pooling, one strided 3x3
// convolution with ReLU, then 2x2 max pooling. Its output is flattened HWC.
type backbone struct {
	name    string
	pool    int
	filters int
	kernel  *tensor.Dense // [3, 3, 3, filters]
	bias    *tensor.Dense // [filters]
}

func newBackbone(name string, pool, filters int) (*backbone, error) {
	if pool <= 0 || InputHeight%pool != 0 || InputWidth%pool != 0 {
		return nil, fmt.Errorf("backbone pool %d must divide %dx%d", pool, InputHeight, InputWidth)
	}
	if filters <= 0 || filters > len(handcraftedFilters) {
		return nil, fmt.Errorf("backbone filters must be between 1 and %d, got %d", len(handcraftedFilters), filters)
	}
	return &backbone{
		name:    name,
		pool:    pool,
		filters: filters,
		kernel:  defaultBackboneKernel(filters),
		bias:    tensor.New(tensor.WithShape(filters), tensor.WithBacking(make([]float32, filters))),
	}, nil
}

// grid returns the spatial size after pooling, after the convolution and after max pooling.
func (b *backbone) grid() (pooled, conv, out int) {
	pooled = InputHeight / b.pool
	conv = (pooled-1)/convStride + 1
	out = conv / maxPoolSize
	return pooled, conv, out
}

// outputSize is the length of the flattened feature vector.
func (b *backbone) outputSize() int {
	_, _, out := b.grid()
	return out * out * b.filters
}

// forward extracts features from one HWC image.
func (b *backbone) forward(img []float32) []float32 {
	pooledSize, convSize, outSize := b.grid()
	const c = InputChannels

	pooled := make([]float32, pooledSize*pooledSize*c)
	inv := 1 / float32(b.pool*b.pool)
	for y := range pooledSize {
		for x := range pooledSize {
			for ch := range c {
				var sum float32
				for dy := range b.pool {
					row := (y*b.pool + dy) * InputWidth
					for dx := range b.pool {
						sum += img[(row+x*b.pool+dx)*c+ch]
					}
				}
				pooled[(y*pooledSize+x)*c+ch] = sum * inv
			}
		}
	}

	kernel := b.kernel.Data().([]float32)
	bias := b.bias.Data().([]float32)
	f := b.filters
	conv := make([]float32, convSize*convSize*f)
	for oy := range convSize {
		for ox := range convSize {
			acc := conv[(oy*convSize+ox)*f : (oy*convSize+ox+1)*f]
			copy(acc, bias)
			for ky := range convKernelSize {
				iy := oy*convStride - 1 + ky
				if iy < 0 || iy >= pooledSize {
					continue
				}
				for kx := range convKernelSize {
					ix := ox*convStride - 1 + kx
					if ix < 0 || ix >= pooledSize {
						continue
					}
					for ch := range c {
						v := pooled[(iy*pooledSize+ix)*c+ch]
						k := kernel[((ky*convKernelSize+kx)*c+ch)*f : ((ky*convKernelSize+kx)*c+ch+1)*f]
						for j := range f {
							acc[j] += v * k[j]
						}
					}
				}
			}
			for j := range acc {
				if acc[j] < 0 {
					acc[j] = 0
				}
			}
		}
	}

	out := make([]float32, outSize*outSize*f)
	for y := range outSize {
		for x := range outSize {
			for j := range f {
				m := float32(math.Inf(-1))
				for dy := range maxPoolSize {
					for dx := range maxPoolSize {
						v := conv[((y*maxPoolSize+dy)*convSize+x*maxPoolSize+dx)*f+j]
						m = max(m, v)
					}
				}
				out[(y*outSize+x)*f+j] = m
			}
		}
	}
	return out
}

// handcraftedFilters are 3x3x3 kernels laid out [ky][kx][channel].
var handcraftedFilters = func() [][convKernelSize * convKernelSize * InputChannels]float32 {
	luma := [InputChannels]float32{0.299, 0.587, 0.114}
	sobelX := [9]float32{-1, 0, 1, -2, 0, 2, -1, 0, 1}
	sobelY := [9]float32{-1, -2, -1, 0, 0, 0, 1, 2, 1}
	laplace := [9]float32{0, 1, 0, 1, -4, 1, 0, 1, 0}

	spatial := func(k [9]float32, weights [InputChannels]float32) (out [27]float32) {
		for i := range 9 {
			for ch := range InputChannels {
				out[i*InputChannels+ch] = k[i] * weights[ch]
			}
		}
		return out
	}
	box := func(weights [InputChannels]float32) (out [27]float32) {
		var k [9]float32
		for i := range k {
			k[i] = 1.0 / 9
		}
		return spatial(k, weights)
	}

	return [][27]float32{
		spatial(sobelX, luma),
		spatial(sobelY, luma),
		spatial(laplace, luma),
		box([InputChannels]float32{1, 0, 0}),
		box([InputChannels]float32{0, 1, 0}),
		box([InputChannels]float32{0, 0, 1}),
		box([InputChannels]float32{1, -1, 0}),      // red-green opponent
		box([InputChannels]float32{-0.5, -0.5, 1}), // blue-yellow opponent
	}
}()

func defaultBackboneKernel(filters int) *tensor.Dense {
	const taps = convKernelSize * convKernelSize * InputChannels
	data := make([]float32, taps*filters)
	for j := range filters {
		for i, v := range handcraftedFilters[j] {
			data[i*filters+j] = v
		}
	}
	return tensor.New(
		tensor.WithShape(convKernelSize, convKernelSize, InputChannels, filters),
		tensor.WithBacking(data))
}

// dense is a fully connected layer. dropout is applied during training only.
type dense struct {
	name       string
	units      int
	activation string
	dropout    float64
	kernel     *tensor.Dense // [in, units]
	bias       *tensor.Dense // [units]
}

func newDense(name string, in, units int, activation string, rng *rand.Rand) *dense {
	limit := math.Sqrt(6 / float64(in+units))
	w := make([]float32, in*units)
	for i := range w {
		w[i] = float32((rng.Float64()*2 - 1) * limit)
	}
	return &dense{
		name:       name,
		units:      units,
		activation: activation,
		kernel:     tensor.New(tensor.WithShape(in, units), tensor.WithBacking(w)),
		bias:       tensor.New(tensor.WithShape(units), tensor.WithBacking(make([]float32, units))),
	}
}

// forward computes activation(x·W + b) for x of shape [batch, in].
func (d *dense) forward(x *tensor.Dense) (*tensor.Dense, error) {
	out, err := x.MatMul(d.kernel)
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", d.name, err)
	}
	data := out.Data().([]float32)
	bias := d.bias.Data().([]float32)
	for i := range data {
		data[i] += bias[i%d.units]
	}
	activate(data, d.units, d.activation)
	return out, nil
}

// activate applies the activation in place to rows of width units.
func activate(data []float32, units int, activation string) {
	switch activation {
	case ActivationReLU:
		for i, v := range data {
			if v < 0 {
				data[i] = 0
			}
		}
	case ActivationSoftmax:
		for start := 0; start < len(data); start += units {
			softmax(data[start : start+units])
		}
	}
}

func softmax(row []float32) {
	peak := row[0]
	for _, v := range row[1:] {
		peak = max(peak, v)
	}
	var sum float64
	for i, v := range row {
		e := math.Exp(float64(v - peak))
		row[i] = float32(e)
		sum += e
	}
	for i := range row {
		row[i] = float32(float64(row[i]) / sum)
	}
}
