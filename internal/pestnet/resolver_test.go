package pestnet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/gardenlab/pestnet-go/internal/errors"
)

type recordedAttempt struct {
	strategy string
	failed   bool
}

type fakeMetrics struct {
	mu          sync.Mutex
	attempts    []recordedAttempt
	loaded      string
	predictions []string
}

func (m *fakeMetrics) RecordModelLoadAttempt(strategy string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, recordedAttempt{strategy: strategy, failed: err != nil})
}

func (m *fakeMetrics) SetModelLoaded(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = source
}

func (m *fakeMetrics) RecordPrediction(label string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		m.predictions = append(m.predictions, label)
	}
}

func testResolver(dir string, fallback bool, opts ...ResolverOption) *Resolver {
	return NewResolver(ResolverConfig{
		ModelDir: dir,
		Fallback: fallback,
		Train:    testTrainConfig(),
	}, opts...)
}

func TestDefaultAttemptsOrder(t *testing.T) {
	t.Parallel()

	attempts := DefaultAttempts("models", []string{"extra/custom.npz"})
	kinds := make([]StrategyKind, len(attempts))
	for i, a := range attempts {
		kinds[i] = a.Kind
	}
	assert.Equal(t, []StrategyKind{
		StrategyComplete, StrategyComplete, StrategyComplete,
		StrategyDirectory,
		StrategyArchitectureWeights,
		StrategyWeightsOnly, StrategyWeightsOnly, StrategyWeightsOnly,
	}, kinds)
	assert.Equal(t, filepath.Join("models", CompleteArtifactName), attempts[0].Paths[0])
	assert.Equal(t, filepath.Join("models", FallbackArtifactName), attempts[2].Paths[0])
	assert.Equal(t, []string{"extra/custom.npz"}, attempts[7].Paths)
}

func TestResolveEmptyDirSynthesizesAndSavesFallback(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := &fakeMetrics{}
	c, err := testResolver(dir, true, WithMetrics(m)).Resolve(t.Context())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	fallbackPath := filepath.Join(dir, FallbackArtifactName)
	assert.Equal(t, "fallback:"+fallbackPath, c.Source())
	assert.FileExists(t, fallbackPath)
	assert.Equal(t, []recordedAttempt{{strategy: "fallback"}}, m.attempts)
	assert.Equal(t, c.Source(), m.loaded)

	probs, err := c.Predict(testImage(1))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sum(probs), 1e-4)

	// A second start finds the saved fallback as a complete artifact.
	again, err := testResolver(dir, true).Resolve(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "complete:"+fallbackPath, again.Source())
}

func TestResolveFallbackDisabled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CompleteArtifactName), []byte("not a zip"), 0o600))

	_, err := testResolver(dir, false).Resolve(t.Context())
	require.Error(t, err)

	var rf *ResolutionFailure
	require.ErrorAs(t, err, &rf)
	require.Len(t, rf.Attempts, 1)
	assert.Equal(t, StrategyComplete, rf.Attempts[0].Kind)
	assert.NoError(t, rf.Fallback)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))
	assert.NoFileExists(t, filepath.Join(dir, FallbackArtifactName))
}

func TestResolveSkipsCorruptArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CompleteArtifactName), []byte("garbage"), 0o600))
	weightsPath := filepath.Join(dir, WeightsFileName)
	require.NoError(t, SaveWeightsFile(weightsPath, newTestNetwork(t)))

	m := &fakeMetrics{}
	c, err := testResolver(dir, false, WithMetrics(m)).Resolve(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "weights-only:"+weightsPath, c.Source())
	assert.Equal(t, []recordedAttempt{
		{strategy: "complete", failed: true},
		{strategy: "weights-only"},
	}, m.attempts)
}

func TestResolveArchitectureAndWeights(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := newTestNetwork(t)
	require.NoError(t, SaveArchitectureFile(filepath.Join(dir, ArchitectureFileName), src))
	require.NoError(t, SaveWeightsFile(filepath.Join(dir, WeightsFileName), src))

	c, err := testResolver(dir, false).Resolve(t.Context())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.Source(), string(StrategyArchitectureWeights)+":"))

	want, err := src.Predict(testImage(7))
	require.NoError(t, err)
	got, err := c.Predict(testImage(7))
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-6)
}

func TestResolveArchitectureWeightsMatchesByPosition(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := newTestNetwork(t)
	require.NoError(t, SaveArchitectureFile(filepath.Join(dir, ArchitectureFileName), src))

	renamed := slices.Clone(src.Weights())
	for i := range renamed {
		renamed[i].Name = fmt.Sprintf("layer_%d/param", i)
	}
	writeWeights(t, filepath.Join(dir, WeightsFileName), renamed)

	c, err := testResolver(dir, false).Resolve(t.Context())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.Source(), string(StrategyArchitectureWeights)+":"), c.Source())

	want, err := src.Predict(testImage(5))
	require.NoError(t, err)
	got, err := c.Predict(testImage(5))
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-6)
}

func TestResolveWeightsOnlyLenientPolicy(t *testing.T) {
	t.Parallel()

	tensors := slices.Clone(newTestNetwork(t).Weights())
	// Drop the classifier head kernel shape so only lenient policies match.
	tensors[len(tensors)-2] = NamedTensor{
		Name:   tensors[len(tensors)-2].Name,
		Tensor: tensor.New(tensor.WithShape(4, 4), tensor.WithBacking(make([]float32, 16))),
	}
	dir := t.TempDir()
	extra := filepath.Join(dir, "custom.npz")
	writeWeights(t, extra, tensors)

	r := NewResolver(ResolverConfig{ModelDir: dir, ExtraWeights: []string{extra}})
	c, err := r.Resolve(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "weights-only:"+extra, c.Source())

	probs, err := c.Predict(testImage(2))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sum(probs), 1e-4)
}

func TestResolveCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := testResolver(t.TempDir(), true).Resolve(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
}

func TestResolveFallbackSynthesisFailure(t *testing.T) {
	t.Parallel()

	r := NewResolver(ResolverConfig{
		ModelDir: t.TempDir(),
		Fallback: true,
		Train:    TrainConfig{},
	})
	_, err := r.Resolve(t.Context())
	require.Error(t, err)

	var rf *ResolutionFailure
	require.ErrorAs(t, err, &rf)
	assert.Error(t, rf.Fallback)
}

func TestInspectReportsCandidates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, SaveWeightsFile(filepath.Join(dir, WeightsFileName), newTestNetwork(t)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, CompleteArtifactName), []byte("garbage"), 0o600))

	reports := testResolver(dir, true).Inspect()
	require.Len(t, reports, len(DefaultAttempts(dir, nil)))

	assert.True(t, reports[0].Present)
	assert.False(t, reports[0].Loadable)
	assert.NotEmpty(t, reports[0].Error)

	assert.False(t, reports[1].Present)

	// The architecture file is absent, so only the weights-only candidate loads.
	assert.False(t, reports[4].Present)
	assert.True(t, reports[5].Present)
	assert.True(t, reports[5].Loadable)
	assert.Positive(t, reports[5].Size)

	assert.NoFileExists(t, filepath.Join(dir, FallbackArtifactName))
}
