package pestnet

import (
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestNetworkPredictIsDistribution(t *testing.T) {
	t.Parallel()

	net, err := NewNetwork(DefaultArchitecture(), rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)

	probs, err := net.Predict(testImage(1))
	require.NoError(t, err)
	require.Len(t, probs, NumClasses)
	assert.True(t, finite(probs))
	assert.InDelta(t, 1.0, sum(probs), 1e-4)
}

func TestNetworkRejectsWrongShape(t *testing.T) {
	t.Parallel()

	net, err := NewNetwork(DefaultArchitecture(), rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)

	bad := tensor.New(tensor.WithShape(1, 10, 10, 3), tensor.WithBacking(make([]float32, 300)))
	_, err = net.Predict(bad)
	require.Error(t, err)

	_, err = net.Predict(nil)
	require.Error(t, err)
}

func TestArchitectureValidate(t *testing.T) {
	t.Parallel()

	arch := DefaultArchitecture()
	require.NoError(t, arch.Validate())

	body, err := arch.Marshal()
	require.NoError(t, err)
	parsed, err := ParseArchitecture(body)
	require.NoError(t, err)
	assert.Equal(t, arch.Layers, parsed.Layers)

	wrongOutput := DefaultArchitecture()
	wrongOutput.Layers[len(wrongOutput.Layers)-1].Units = 10
	assert.Error(t, wrongOutput.Validate())

	_, err = ParseArchitecture([]byte("{not json"))
	assert.Error(t, err)
}

func TestDefaultArchitectureLayers(t *testing.T) {
	t.Parallel()

	arch := DefaultArchitecture()
	types := make([]string, 0, len(arch.Layers))
	for _, l := range arch.Layers {
		types = append(types, l.Type)
	}
	assert.Equal(t, []string{LayerBackbone, LayerFlatten, LayerDense, LayerDense}, types)
	assert.Equal(t, 256, arch.Layers[2].Units)
	assert.Equal(t, ActivationReLU, arch.Layers[2].Activation)

	withDropout := DefaultArchitecture()
	withDropout.Layers = append(withDropout.Layers[:3:3],
		LayerSpec{Type: LayerDropout, Name: "dropout", Rate: 0.2},
		withDropout.Layers[3])
	require.NoError(t, withDropout.Validate())
	_, err := NewNetwork(withDropout, rand.New(rand.NewPCG(3, 4)))
	require.NoError(t, err)
}

func TestSynthesizeFallbackIsReproducible(t *testing.T) {
	t.Parallel()

	a, statsA, err := SynthesizeFallback(t.Context(), testTrainConfig())
	require.NoError(t, err)
	b, _, err := SynthesizeFallback(t.Context(), testTrainConfig())
	require.NoError(t, err)

	assert.Equal(t, int64(42), statsA.Seed)
	assert.True(t, a.Compiled())

	pa, err := a.Predict(testImage(3))
	require.NoError(t, err)
	pb, err := b.Predict(testImage(3))
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
	assert.InDelta(t, 1.0, sum(pa), 1e-4)
}

func TestSynthesizeFallbackRejectsBadConfig(t *testing.T) {
	t.Parallel()

	cfg := testTrainConfig()
	cfg.BatchSize = 0
	_, _, err := SynthesizeFallback(t.Context(), cfg)
	assert.Error(t, err)
}

func TestArtifactRoundTripPreservesPredictions(t *testing.T) {
	t.Parallel()

	net := newTestNetwork(t)
	path := filepath.Join(t.TempDir(), "nested", CompleteArtifactName)
	require.NoError(t, SaveArtifact(path, net, "test"))

	loaded, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.True(t, loaded.Compiled())

	want, err := net.Predict(testImage(5))
	require.NoError(t, err)
	got, err := loaded.Predict(testImage(5))
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-6)
}
