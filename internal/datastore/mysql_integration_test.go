//go:build integration

package datastore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
)

func TestMySQLStoreIntegration(t *testing.T) {
	ctx := t.Context()

	ctr, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("pestnet"),
		tcmysql.WithUsername("pestnet"),
		tcmysql.WithPassword("pestnet"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)

	store := &MySQLStore{DataStore: newDataStore(), DSN: dsn}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	for _, pest := range []string{"weevil", "weevil", "grasshopper"} {
		require.NoError(t, store.Save(ctx, detection(t, pest, 0.75)))
	}

	page, total, err := store.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 3)

	got, err := store.Get(ctx, page[0].ID)
	require.NoError(t, err)
	assert.Equal(t, page[0].UUID, got.UUID)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, stats.Pests)
	assert.Equal(t, "weevil", stats.Pests[0].PestName)
	assert.Equal(t, int64(2), stats.Pests[0].Count)

	t.Run("transfer from sqlite", func(t *testing.T) {
		src := openTestStore(t)
		for _, pest := range []string{"ants", "moth"} {
			require.NoError(t, src.Save(ctx, detection(t, pest, 0.6)))
		}

		res, err := Transfer(ctx, src, store, 1)
		require.NoError(t, err)
		assert.EqualValues(t, 2, res.Copied)

		res, err = Transfer(ctx, src, store, 1)
		require.NoError(t, err)
		assert.EqualValues(t, 2, res.Skipped)

		_, total, err := store.List(ctx, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
	})
}
