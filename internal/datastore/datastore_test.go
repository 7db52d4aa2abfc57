package datastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardenlab/pestnet-go/internal/conf"
	"github.com/gardenlab/pestnet-go/internal/errors"
	"github.com/gardenlab/pestnet-go/internal/pestnet"
)

type countingMetrics struct {
	noopMetrics
	hits, misses int
}

func (m *countingMetrics) RecordCacheLookup(_ string, hit bool) {
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func openTestStore(t *testing.T, opts ...Option) Interface {
	t.Helper()
	settings := &conf.Settings{}
	settings.Database.Type = "sqlite"
	settings.Database.Path = filepath.Join(t.TempDir(), "db", "pestnet.db")

	store, err := New(settings, opts...)
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func detection(t *testing.T, pest string, confidence float64) *Detection {
	t.Helper()
	d := &Detection{
		OriginalFilename: pest + ".jpg",
		PestName:         pest,
		Confidence:       confidence,
		SeverityLevel:    pestnet.SeverityLevel(confidence),
	}
	require.NoError(t, d.SetTopPredictions([]pestnet.RankedLabel{
		{ClassName: pest, Confidence: confidence},
		{ClassName: "ants", Confidence: 0.05},
		{ClassName: "bees", Confidence: 0.01},
	}))
	return d
}

func TestSaveAndGet(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	d := detection(t, "slug", 0.81)
	require.NoError(t, store.Save(t.Context(), d))
	require.NotZero(t, d.ID)
	assert.Len(t, d.UUID, 36)

	got, err := store.Get(t.Context(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, "slug", got.PestName)
	assert.Equal(t, pestnet.SeverityMedium, got.SeverityLevel)
	assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)

	top, err := got.Predictions()
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "slug", top[0].ClassName)
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	_, err := openTestStore(t).Get(t.Context(), 999)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestListPaginates(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	for _, pest := range []string{"ants", "bees", "beetle", "moth", "wasp"} {
		require.NoError(t, store.Save(t.Context(), detection(t, pest, 0.6)))
	}

	page, total, err := store.List(t.Context(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, "wasp", page[0].PestName, "newest first")
	assert.Equal(t, "moth", page[1].PestName)

	last, _, err := store.List(t.Context(), 3, 2)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "ants", last[0].PestName)

	empty, _, err := store.List(t.Context(), 10, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestNormalizePage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		page, limit         int
		wantPage, wantLimit int
	}{
		{0, 0, 1, DefaultPageSize},
		{-3, 5, 1, 5},
		{2, 1000, 2, MaxPageSize},
		{4, 10, 4, 10},
	}
	for _, tt := range tests {
		page, limit := NormalizePage(tt.page, tt.limit)
		assert.Equal(t, tt.wantPage, page)
		assert.Equal(t, tt.wantLimit, limit)
	}
}

func TestStatsCachedUntilSave(t *testing.T) {
	t.Parallel()

	m := &countingMetrics{}
	store := openTestStore(t, WithMetrics(m))
	require.NoError(t, store.Save(t.Context(), detection(t, "snail", 0.9)))
	require.NoError(t, store.Save(t.Context(), detection(t, "snail", 0.7)))
	require.NoError(t, store.Save(t.Context(), detection(t, "earwig", 0.5)))

	stats, err := store.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	require.Len(t, stats.Pests, 2)
	assert.Equal(t, "snail", stats.Pests[0].PestName)
	assert.Equal(t, int64(2), stats.Pests[0].Count)
	assert.InDelta(t, 0.8, stats.Pests[0].AverageConfidence, 1e-9)

	_, err = store.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, m.hits)
	assert.Equal(t, 1, m.misses)

	require.NoError(t, store.Save(t.Context(), detection(t, "earwig", 0.5)))
	stats, err = store.Stats(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, 2, m.misses)
}

func TestStatsMemoDropsResultsFromBeforeInvalidation(t *testing.T) {
	t.Parallel()

	m := newStatsMemo()
	_, gen, ok := m.get()
	require.False(t, ok)

	// A Save lands while the stats query is still running.
	m.invalidate()
	m.set(gen, &Stats{Total: 3})

	_, gen, ok = m.get()
	assert.False(t, ok, "stale stats must not be cached")

	m.set(gen, &Stats{Total: 4})
	cached, _, ok := m.get()
	require.True(t, ok)
	assert.Equal(t, int64(4), cached.Total)
}

func TestNewRejectsUnknownType(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Database.Type = "postgres"
	_, err := New(settings)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestClosedStoreFails(t *testing.T) {
	t.Parallel()

	store := &SQLiteStore{DataStore: newDataStore()}
	require.Error(t, store.Save(t.Context(), &Detection{PestName: "ants"}))
	_, _, err := store.List(t.Context(), 1, 10)
	require.Error(t, err)
	assert.NoError(t, store.Close())
}

func TestMySQLOpenRejectsBadDSN(t *testing.T) {
	t.Parallel()

	store := &MySQLStore{DataStore: newDataStore(), DSN: "not a dsn"}
	err := store.Open()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestTransfer(t *testing.T) {
	t.Parallel()

	src := openTestStore(t)
	dst := openTestStore(t)
	for i, pest := range []string{"ants", "slug", "snail", "wasp", "moth"} {
		require.NoError(t, src.Save(t.Context(), detection(t, pest, 0.5+float64(i)/10)))
	}
	existing := detection(t, "weevil", 0.95)
	require.NoError(t, dst.Save(t.Context(), existing))

	stats, err := Transfer(t.Context(), src, dst, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, stats.Source)
	assert.EqualValues(t, 5, stats.Copied)
	assert.Zero(t, stats.Skipped)
	assert.Equal(t, 3, stats.Batches)

	_, total, err := dst.List(t.Context(), 1, MaxPageSize)
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)

	again, err := Transfer(t.Context(), src, dst, 2)
	require.NoError(t, err, "rerunning skips rows already copied")
	assert.Zero(t, again.Copied)
	assert.EqualValues(t, 5, again.Skipped)

	_, total, err = dst.List(t.Context(), 1, MaxPageSize)
	require.NoError(t, err)
	assert.EqualValues(t, 6, total)
}

func TestTransferNotOpen(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Database.Type = "sqlite"
	settings.Database.Path = filepath.Join(t.TempDir(), "closed.db")
	closed, err := New(settings)
	require.NoError(t, err)

	_, err = Transfer(t.Context(), closed, openTestStore(t), 10)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
}
