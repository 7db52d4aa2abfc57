package pestnet

import (
	"archive/zip"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gorgonia.org/tensor"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// testTrainConfig keeps fallback synthesis fast and reproducible.
func testTrainConfig() TrainConfig {
	return TrainConfig{Samples: 8, Epochs: 1, BatchSize: 4, LearningRate: 0.01, Seed: 42}
}

// testImage returns a deterministic [1, 224, 224, 3] input.
func testImage(seed int) *tensor.Dense {
	data := make([]float32, InputHeight*InputWidth*InputChannels)
	for i := range data {
		data[i] = float32((i*7+seed*13)%255) / 255
	}
	return tensor.New(tensor.WithShape(1, InputHeight, InputWidth, InputChannels), tensor.WithBacking(data))
}

func newTestNetwork(t *testing.T) *Network {
	t.Helper()
	net, _, err := SynthesizeFallback(t.Context(), testTrainConfig())
	require.NoError(t, err)
	return net
}

// writeWeights stores tensors as an .npz archive in the given order.
func writeWeights(t *testing.T, path string, tensors []NamedTensor) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	require.NoError(t, writeTensors(zw, "", tensors))
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func sum(probs []float32) float64 {
	var s float64
	for _, p := range probs {
		s += float64(p)
	}
	return s
}

func finite(probs []float32) bool {
	for _, p := range probs {
		if math.IsNaN(float64(p)) || math.IsInf(float64(p), 0) {
			return false
		}
	}
	return true
}
