package pestnet

import (
	"math/rand/v2"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func freshNetwork(t *testing.T) *Network {
	t.Helper()
	net, err := NewNetwork(DefaultArchitecture(), rand.New(rand.NewPCG(9, 9)))
	require.NoError(t, err)
	return net
}

func TestLoadWeightsExact(t *testing.T) {
	t.Parallel()

	src := newTestNetwork(t)
	dst := freshNetwork(t)

	report, err := dst.LoadWeights(src.Weights(), PolicyExact)
	require.NoError(t, err)
	assert.Len(t, report.Loaded, len(src.Weights()))
	assert.Empty(t, report.Skipped)

	want, err := src.Predict(testImage(2))
	require.NoError(t, err)
	got, err := dst.Predict(testImage(2))
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-6)
}

func TestLoadWeightsByNameIgnoresOrder(t *testing.T) {
	t.Parallel()

	src := newTestNetwork(t)
	reversed := slices.Clone(src.Weights())
	slices.Reverse(reversed)

	_, err := freshNetwork(t).LoadWeights(reversed, PolicyExact)
	require.Error(t, err)

	report, err := freshNetwork(t).LoadWeights(reversed, PolicyByName)
	require.NoError(t, err)
	assert.Len(t, report.Loaded, len(reversed))
}

func TestLoadWeightsPositionalIgnoresNames(t *testing.T) {
	t.Parallel()

	src := newTestNetwork(t)
	renamed := slices.Clone(src.Weights())
	for i := range renamed {
		renamed[i].Name = "w" + renamed[i].Name
	}

	_, err := freshNetwork(t).LoadWeights(renamed, PolicyExact)
	require.Error(t, err)

	dst := freshNetwork(t)
	report, err := dst.LoadWeights(renamed, PolicyPositional)
	require.NoError(t, err)
	assert.Len(t, report.Loaded, len(renamed))

	want, err := src.Predict(testImage(4))
	require.NoError(t, err)
	got, err := dst.Predict(testImage(4))
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-6)

	_, err = freshNetwork(t).LoadWeights(renamed[:len(renamed)-1], PolicyPositional)
	require.Error(t, err)

	reversed := slices.Clone(renamed)
	slices.Reverse(reversed)
	_, err = freshNetwork(t).LoadWeights(reversed, PolicyPositional)
	require.Error(t, err)
}

func TestLoadWeightsSkipMismatch(t *testing.T) {
	t.Parallel()

	tensors := slices.Clone(newTestNetwork(t).Weights())
	last := len(tensors) - 2 // dense_1/kernel
	tensors[last] = NamedTensor{
		Name:   tensors[last].Name,
		Tensor: tensor.New(tensor.WithShape(3, 3), tensor.WithBacking(make([]float32, 9))),
	}

	_, err := freshNetwork(t).LoadWeights(tensors, PolicyByName)
	require.Error(t, err)

	report, err := freshNetwork(t).LoadWeights(tensors, PolicyByNameSkipMismatch)
	require.NoError(t, err)
	assert.Equal(t, []string{"dense_1/kernel"}, report.Skipped)

	report, err = freshNetwork(t).LoadWeights(tensors, PolicyPositionalSkipMismatch)
	require.NoError(t, err)
	assert.Equal(t, []string{"dense_1/kernel"}, report.Skipped)
}

func TestLoadWeightsFailureLeavesNetworkUntouched(t *testing.T) {
	t.Parallel()

	net := freshNetwork(t)
	before, err := net.Predict(testImage(4))
	require.NoError(t, err)

	tensors := slices.Clone(newTestNetwork(t).Weights())
	tensors[len(tensors)-1] = NamedTensor{
		Name:   tensors[len(tensors)-1].Name,
		Tensor: tensor.New(tensor.WithShape(2), tensor.WithBacking(make([]float32, 2))),
	}
	_, err = net.LoadWeights(tensors, PolicyByName)
	require.Error(t, err)

	after, err := net.Predict(testImage(4))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLoadWeightsNoMatches(t *testing.T) {
	t.Parallel()

	stray := []NamedTensor{{
		Name:   "unrelated/kernel",
		Tensor: tensor.New(tensor.WithShape(2), tensor.WithBacking(make([]float32, 2))),
	}}
	_, err := freshNetwork(t).LoadWeights(stray, PolicyByNameSkipMismatch)
	assert.Error(t, err)
}

func TestWeightsFileRoundTrip(t *testing.T) {
	t.Parallel()

	net := newTestNetwork(t)
	path := filepath.Join(t.TempDir(), WeightsFileName)
	require.NoError(t, SaveWeightsFile(path, net))

	tensors, err := ReadWeightsFile(path)
	require.NoError(t, err)
	require.Len(t, tensors, len(net.Weights()))
	for i, nt := range net.Weights() {
		assert.Equal(t, nt.Name, tensors[i].Name)
	}

	_, err = ReadWeightsFile(filepath.Join(t.TempDir(), "missing.npz"))
	assert.Error(t, err)
}

func TestWeightPolicyString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "exact", PolicyExact.String())
	assert.Equal(t, "positional-skip-mismatch", PolicyPositionalSkipMismatch.String())
	assert.Equal(t, "positional", PolicyPositional.String())
	assert.False(t, PolicyPositional.Lenient())
	assert.False(t, PolicyByName.Lenient())
	assert.True(t, PolicyByNameSkipMismatch.Lenient())
}
