package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetDelete(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "k", []byte("v"), TierFinancials))

	data, ok, err := st.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(data))

	deleted, err := st.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, ok, err = st.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_TierTTLOverride(t *testing.T) {
	st := NewMemory(WithTierTTLs(map[Tier]time.Duration{TierFilingsList: time.Minute}))
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	clock := base
	st.now = func() time.Time { return clock }

	require.NoError(t, st.Set(ctx, "filings", []byte("v"), TierFilingsList))
	require.NoError(t, st.Set(ctx, "fin", []byte("v"), TierFinancials))
	require.NoError(t, st.Set(ctx, "pinned", []byte("v"), TierFilingsList, WithTTL(time.Hour)))

	clock = base.Add(2 * time.Minute)

	// The override shortens the tier default, per-entry WithTTL still wins,
	// and tiers without an override keep their default.
	_, ok, err := st.Get(ctx, "filings")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = st.Get(ctx, "pinned")
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = st.Get(ctx, "fin")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemory_ExpiryAndSweep(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	clock := base
	st.now = func() time.Time { return clock }

	require.NoError(t, st.Set(ctx, "short", []byte("v"), TierFilingsList, WithTTL(time.Minute)))
	require.NoError(t, st.Set(ctx, "long", []byte("v"), TierFinancials))

	clock = base.Add(2 * time.Minute)

	_, ok, err := st.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)

	data, ok, err := st.GetStale(ctx, "short")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", string(data))

	n, err := st.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err = st.Get(ctx, "long")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemory_GetByTickerPrefersNewest(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	base := time.Unix(1700000000, 0)
	clock := base
	st.now = func() time.Time { return clock }

	require.NoError(t, st.Set(ctx, "old", []byte("old"), TierEntityMetadata, WithTicker("META")))
	clock = base.Add(time.Minute)
	require.NoError(t, st.Set(ctx, "new", []byte("new"), TierEntityMetadata, WithTicker("META")))

	data, ok, err := st.GetByTicker(ctx, "META")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "new", string(data))
}

func TestMemory_StatsAndClear(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, "a", []byte("1"), TierFinancials))
	require.NoError(t, st.Set(ctx, "b", []byte("2"), TierFilingsList))
	_, _, err := st.Get(ctx, "a")
	require.NoError(t, err)
	_, _, err = st.Get(ctx, "missing")
	require.NoError(t, err)

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Sets)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(2), stats.Entries)

	require.NoError(t, st.Clear(ctx))
	stats, err = st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Entries)
	assert.Equal(t, int64(0), stats.Sets)
}
