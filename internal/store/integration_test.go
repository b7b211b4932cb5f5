//go:build integration

package store_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/muninn/internal/campaign"
	"github.com/rafaeljc/muninn/internal/store"
	"github.com/rafaeljc/muninn/internal/testsupport"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// exerciseStore runs the backend-independent contract against a live store.
func exerciseStore(t *testing.T, s store.UserStore) {
	t.Helper()
	ctx := context.Background()

	// Miss on an unknown key
	c, err := s.Load(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, c)

	// Round-trip
	in := &store.Container{
		Campaigns: []campaign.Campaign{
			{ID: "c1", MaxImpressions: 5, ImpressionsLeft: 3},
		},
		Permissions: map[string]campaign.DisplayPermission{
			"c1": {Display: true, PerformPing: true},
		},
	}
	require.NoError(t, s.Save(ctx, "user-key", in))

	out, err := s.Load(ctx, "user-key")
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Len(t, out.Campaigns, 1)
	assert.Equal(t, 3, out.Campaigns[0].ImpressionsLeft)
	assert.True(t, out.Permissions["c1"].PerformPing)

	// Overwrite
	in.Campaigns[0].ImpressionsLeft = 2
	require.NoError(t, s.Save(ctx, "user-key", in))
	out, err = s.Load(ctx, "user-key")
	require.NoError(t, err)
	assert.Equal(t, 2, out.Campaigns[0].ImpressionsLeft)

	// Delete, including an absent key
	require.NoError(t, s.Delete(ctx, "user-key"))
	require.NoError(t, s.Delete(ctx, "user-key"))
	out, err = s.Load(ctx, "user-key")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestRedisStore_Integration(t *testing.T) {
	ctx := context.Background()

	rc, err := testsupport.StartRedisContainer(ctx)
	require.NoError(t, err, "failed to start redis container")
	defer func() {
		if err := rc.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	s := store.NewRedisStore(testLogger(), rc.Client, "muninn:test")
	exerciseStore(t, s)

	t.Run("Should treat corrupted redis payloads as a miss", func(t *testing.T) {
		require.NoError(t, rc.Client.Set(ctx, "muninn:test:broken", "{not json", 0).Err())

		c, err := s.Load(ctx, "broken")
		require.NoError(t, err)
		assert.Nil(t, c)
	})

	t.Run("Should pass its readiness check", func(t *testing.T) {
		assert.NoError(t, s.Check(ctx))
	})
}

func TestPostgresStore_Integration(t *testing.T) {
	ctx := context.Background()

	pg, err := testsupport.StartPostgresContainer(ctx, "../../migrations")
	require.NoError(t, err, "failed to start postgres container")
	defer func() {
		if err := pg.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	s := store.NewPostgresStore(testLogger(), pg.DB)
	exerciseStore(t, s)

	t.Run("Should pass its readiness check", func(t *testing.T) {
		assert.NoError(t, s.Check(ctx))
	})
}
