package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"deckgraph/internal/auth"
	"deckgraph/internal/store"
	"deckgraph/pkg/config"
	apperrors "deckgraph/pkg/errors"
	"deckgraph/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTiming() config.Timing {
	return config.Timing{
		CheckTimeout:  50 * time.Millisecond,
		WriteTimeout:  100 * time.Millisecond,
		CollectWindow: 80 * time.Millisecond,
		SettleDelay:   5 * time.Millisecond,
		ImportDelay:   20 * time.Millisecond,
		RetryLimit:    3,
		RetryBackoff:  5 * time.Millisecond,
	}
}

func newTestRegistry(t *testing.T) (*Registry, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	adapter := store.NewAdapter(ms, testTiming(), logger.Nop())
	return New(KindValues, adapter, auth.NewStatic("svc"), logger.Nop()), ms
}

func TestCreateOrGet_Idempotent(t *testing.T) {
	reg, ms := newTestRegistry(t)
	ctx := context.Background()

	first, err := reg.CreateOrGet(ctx, "Sustainability")
	require.NoError(t, err)
	assert.Equal(t, "value_sustainability", first.ID)
	assert.Equal(t, "Sustainability", first.Name)
	assert.Equal(t, "svc", first.CreatedBy)

	// Second call returns the existing record unchanged
	second, err := reg.CreateOrGet(ctx, "Sustainability")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt.Unix(), second.CreatedAt.Unix())

	snap := ms.Snapshot()
	assert.Len(t, snap, 1)
	assert.Contains(t, snap, "values/value_sustainability")
}

func TestCreateOrGetAll_DedupNormalization(t *testing.T) {
	reg, ms := newTestRegistry(t)

	flags := reg.CreateOrGetAll(context.Background(), []string{
		"Sustainability", "sustainability", " Sustainability ",
	})

	// Three spellings collapse to exactly one entity
	assert.Len(t, flags, 1)
	assert.True(t, flags.Has("value_sustainability"))
	assert.Len(t, ms.Snapshot(), 1)
}

func TestCreateOrGet_WriteTimeoutStillReturnsEntity(t *testing.T) {
	reg, ms := newTestRegistry(t)
	ms.SilencePuts("values/")

	entity, err := reg.CreateOrGet(context.Background(), "Equity")
	require.NoError(t, err)
	require.NotNil(t, entity)
	assert.Equal(t, "value_equity", entity.ID)
}

func TestCreateOrGet_RejectionIsReportedFailure(t *testing.T) {
	reg, ms := newTestRegistry(t)
	ms.RejectPuts("values/", errors.New("rejected"))

	entity, err := reg.CreateOrGet(context.Background(), "Equity")
	require.Error(t, err)
	var rejected *apperrors.ErrWriteRejected
	assert.ErrorAs(t, err, &rejected)
	// Local copy is still handed back for forward progress
	require.NotNil(t, entity)
	assert.Equal(t, "value_equity", entity.ID)
}

func TestCreateOrGet_SilentCheckProceedsToCreate(t *testing.T) {
	reg, ms := newTestRegistry(t)
	ms.Seed("values/value_equity", store.Record{"id": "value_equity", "name": "Equity", "created_at": "2024-01-01T00:00:00Z"})
	ms.SilenceGets("values/")

	// Existence check gets no answer; absence is assumed and the create
	// write proceeds. Content-identical overwrite, not a conflict.
	entity, err := reg.CreateOrGet(context.Background(), "Equity")
	require.NoError(t, err)
	assert.Equal(t, "value_equity", entity.ID)
	assert.Len(t, ms.Snapshot(), 1)
}

func TestGetAll_BoundedSnapshot(t *testing.T) {
	reg, ms := newTestRegistry(t)
	ms.Seed("values/value_equity", store.Record{"id": "value_equity", "name": "Equity", "created_at": "2024-01-01T00:00:00Z"})
	ms.Seed("values/value_privacy", store.Record{"id": "value_privacy", "name": "Privacy", "created_at": "2024-01-01T00:00:00Z"})
	ms.Seed("values/broken", store.Record{"name": "no id"})

	entities := reg.GetAll(context.Background())

	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []string{"value_equity", "value_privacy"}, ids)
}

func TestNameIndex(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	_, err := reg.CreateOrGet(ctx, "Equity")
	require.NoError(t, err)
	_, err = reg.CreateOrGet(ctx, "Data Analysis")
	require.NoError(t, err)

	index := reg.NameIndex(ctx)
	assert.Equal(t, "value_equity", index["equity"])
	assert.Equal(t, "value_data_analysis", index["data_analysis"])
}

func TestCreateOrGet_EndToEnd(t *testing.T) {
	reg, ms := newTestRegistry(t)
	ctx := context.Background()

	flags := reg.CreateOrGetAll(ctx, []string{"Equity"})
	assert.True(t, flags.Has("value_equity"))

	snap := ms.Snapshot()
	require.Len(t, snap, 1)
	require.Contains(t, snap, "values/value_equity")

	// Different casing later resolves to the same key, no second record
	flags = reg.CreateOrGetAll(ctx, []string{"equity"})
	assert.True(t, flags.Has("value_equity"))
	assert.Len(t, ms.Snapshot(), 1)
}
