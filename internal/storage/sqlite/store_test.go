package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testPair(idA, idB, title string) models.MatchedPair {
	return models.MatchedPair{
		A:      models.MarketRecord{Venue: models.VenuePolymarket, SourceID: idA, RawTitle: title, NormalizedKey: title, CanonicalID: "0x" + idA},
		B:      models.MarketRecord{Venue: models.VenueProbable, SourceID: idB, RawTitle: title, NormalizedKey: title},
		Method: models.MatchExactTitle,
		Score:  100,
	}
}

func testSnapshot(id string, pairs ...models.MatchedPair) *models.Snapshot {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := &models.Snapshot{
		ID:          id,
		StartedAt:   start,
		CompletedAt: start.Add(2 * time.Second),
		RecordsA:    10,
		RecordsB:    7,
		Pairs:       pairs,
	}
	for i := range pairs {
		snap.Opportunities = append(snap.Opportunities, models.ArbitrageOpportunity{
			PairID:         pairs[i].ID(),
			Pair:           pairs[i],
			Strategy:       models.StrategyAYesBNo,
			OutcomeA:       "Yes",
			OutcomeB:       "No",
			PriceA:         0.6,
			PriceB:         0.35,
			UnitCost:       0.95,
			ProfitFraction: 0.05 - float64(i)*0.01,
			DepthAUSD:      60,
			DepthBUSD:      105,
			CapacityUSD:    60,
		})
	}
	return snap
}

func TestLoadSnapshot_Empty(t *testing.T) {
	store := openTestStore(t)
	_, err := store.LoadSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestReplaceSnapshot_RoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	snap := testSnapshot("snap-1", testPair("a1", "b1", "btc above"), testPair("a2", "b2", "fed cuts rates"))
	snap.SourceErrors = map[models.Venue]string{models.VenueProbable: "timeout"}
	require.NoError(t, store.Publish(ctx, snap))

	got, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snap-1", got.ID)
	assert.True(t, snap.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, 2*time.Second, got.Duration())
	assert.Equal(t, 10, got.RecordsA)
	assert.Equal(t, "timeout", got.SourceErrors[models.VenueProbable])

	require.Len(t, got.Pairs, 2)
	assert.Equal(t, "btc above", got.Pairs[0].A.NormalizedKey)
	assert.Equal(t, "0xa1", got.Pairs[0].A.CanonicalID)
	assert.Equal(t, models.MatchExactTitle, got.Pairs[0].Method)
	assert.Equal(t, snap.Pairs[0].ID(), got.Pairs[0].ID())

	require.Len(t, got.Opportunities, 2)
	assert.Equal(t, snap.Opportunities[0].PairID, got.Opportunities[0].PairID)
	assert.Equal(t, "a1", got.Opportunities[0].Pair.A.SourceID)
	assert.InDelta(t, 0.05, got.Opportunities[0].ProfitFraction, 1e-12)
	assert.Equal(t, models.StrategyAYesBNo, got.Opportunities[0].Strategy)
}

func TestReplaceSnapshot_ReplacesPreviousCycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceSnapshot(ctx, testSnapshot("snap-1", testPair("a1", "b1", "x"), testPair("a2", "b2", "y"))))
	require.NoError(t, store.ReplaceSnapshot(ctx, testSnapshot("snap-2", testPair("a3", "b3", "z"))))

	got, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snap-2", got.ID)
	require.Len(t, got.Pairs, 1)
	assert.Equal(t, "a3", got.Pairs[0].A.SourceID)
	assert.Len(t, got.Opportunities, 1)
}

func TestClearAndDropTables(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ReplaceSnapshot(ctx, testSnapshot("snap-1", testPair("a1", "b1", "x"))))
	require.NoError(t, store.ClearTables(ctx))
	_, err := store.LoadSnapshot(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	require.NoError(t, store.DropTables(ctx))
	require.NoError(t, store.CreateTables(ctx))
	_, err = store.LoadSnapshot(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}
