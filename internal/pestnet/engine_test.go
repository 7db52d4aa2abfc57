package pestnet

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/gardenlab/pestnet-go/internal/errors"
)

type fixedClassifier struct {
	probs  []float32
	err    error
	closed bool
}

func (c *fixedClassifier) Predict(*tensor.Dense) ([]float32, error) { return c.probs, c.err }
func (c *fixedClassifier) Source() string                          { return "fixed:test" }
func (c *fixedClassifier) Close() error {
	c.closed = true
	return nil
}

func uniform() []float32 {
	p := make([]float32, NumClasses)
	for i := range p {
		p[i] = 1.0 / NumClasses
	}
	return p
}

func TestRank(t *testing.T) {
	t.Parallel()

	probs := make([]float32, NumClasses)
	probs[2] = 0.6  // beetle
	probs[9] = 0.3  // snail
	probs[0] = 0.05 // ants
	probs[11] = 0.05

	best, top, err := Rank(probs)
	require.NoError(t, err)
	assert.Equal(t, 2, best)
	require.Len(t, top, TopK)
	assert.Equal(t, "beetle", top[0].ClassName)
	assert.Equal(t, "snail", top[1].ClassName)
	// Equal probabilities keep the lower index first.
	assert.Equal(t, "ants", top[2].ClassName)
	assert.InDelta(t, 0.6, top[0].Confidence, 1e-6)
}

func TestRankUniformTies(t *testing.T) {
	t.Parallel()

	best, top, err := Rank(uniform())
	require.NoError(t, err)
	assert.Equal(t, 0, best)
	assert.Equal(t, []string{"ants", "bees", "beetle"},
		[]string{top[0].ClassName, top[1].ClassName, top[2].ClassName})
}

func TestRankRejectsInvalidOutput(t *testing.T) {
	t.Parallel()

	_, _, err := Rank([]float32{0.5, 0.5})
	assert.Error(t, err)

	probs := uniform()
	probs[3] = float32(math.NaN())
	_, _, err = Rank(probs)
	assert.Error(t, err)
}

func TestEnginePredictWithoutModel(t *testing.T) {
	t.Parallel()

	e := NewEngine(&Handle{}, nil)
	_, err := e.Predict(t.Context(), testImage(0))
	assert.ErrorIs(t, err, ErrModelNotLoaded)
	assert.Equal(t, "Model not loaded", err.Error())
}

func TestEnginePredict(t *testing.T) {
	t.Parallel()

	probs := make([]float32, NumClasses)
	probs[7] = 0.92 // moth
	probs[8] = 0.08

	h := &Handle{}
	require.NoError(t, h.Set(&fixedClassifier{probs: probs}))
	m := &fakeMetrics{}
	e := NewEngine(h, m)

	res, err := e.Predict(t.Context(), testImage(0))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "moth", res.Label)
	assert.Equal(t, 7, res.Index)
	assert.Equal(t, SeverityHigh, res.Severity)
	assert.InDelta(t, 0.92, res.Confidence, 1e-6)
	assert.Equal(t, []string{"moth"}, m.predictions)
}

func TestEnginePredictClassifierError(t *testing.T) {
	t.Parallel()

	h := &Handle{}
	require.NoError(t, h.Set(&fixedClassifier{err: errors.NewStd("boom")}))

	_, err := NewEngine(h, nil).Predict(t.Context(), testImage(0))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryInference))
}

func TestHandleSetOnce(t *testing.T) {
	t.Parallel()

	h := &Handle{}
	assert.False(t, h.Loaded())
	assert.Nil(t, h.Get())
	assert.Error(t, h.Set(nil))

	first := &fixedClassifier{probs: uniform()}
	require.NoError(t, h.Set(first))
	assert.Error(t, h.Set(&fixedClassifier{}))
	assert.Same(t, first, h.Get())

	require.NoError(t, h.Close())
	assert.True(t, first.closed)
	assert.False(t, h.Loaded())
	require.NoError(t, h.Close())
}
