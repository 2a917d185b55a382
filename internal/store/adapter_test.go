package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"deckgraph/internal/model"
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

func newTestAdapter(t *testing.T) (*Adapter, *MemoryStore) {
	t.Helper()
	ms := NewMemoryStore()
	return NewAdapter(ms, testTiming(), logger.Nop()), ms
}

func TestGet_FoundAndAbsent(t *testing.T) {
	adapter, ms := newTestAdapter(t)
	ms.Seed("values/value_equity", Record{"id": "value_equity", "name": "Equity"})

	res := adapter.Get(context.Background(), "values/value_equity")
	require.True(t, res.Found)
	assert.Equal(t, "Equity", res.Value["name"])

	res = adapter.Get(context.Background(), "values/value_missing")
	assert.False(t, res.Found)
	assert.False(t, res.TimedOut)
}

func TestGet_SilentReplicaAssumedAbsent(t *testing.T) {
	adapter, ms := newTestAdapter(t)
	ms.Seed("values/value_equity", Record{"id": "value_equity"})
	ms.SilenceGets("values/")

	start := time.Now()
	res := adapter.Get(context.Background(), "values/value_equity")
	elapsed := time.Since(start)

	assert.False(t, res.Found)
	assert.True(t, res.TimedOut)
	// Bounded wait: the check timeout, not forever
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestGet_TombstoneReadsAbsent(t *testing.T) {
	adapter, ms := newTestAdapter(t)
	ms.Seed("cards/card_1", Record{"id": "card_1", model.Tombstone: true})

	res := adapter.Get(context.Background(), "cards/card_1")
	assert.False(t, res.Found)
}

func TestPut_AckedAndMerged(t *testing.T) {
	adapter, ms := newTestAdapter(t)

	res := adapter.Put(context.Background(), "cards/card_1", Record{"title": "A", "values": map[string]any{"value_x": true}})
	require.Equal(t, WriteAcked, res.State)

	res = adapter.Put(context.Background(), "cards/card_1", Record{"values": map[string]any{"value_y": true}})
	require.Equal(t, WriteAcked, res.State)

	snap := ms.Snapshot()["cards/card_1"]
	require.NotNil(t, snap)
	assert.Equal(t, "A", snap["title"])
	values := snap["values"].(map[string]any)
	assert.Equal(t, true, values["value_x"])
	assert.Equal(t, true, values["value_y"])
}

func TestPut_TimeoutAssumedOk(t *testing.T) {
	adapter, ms := newTestAdapter(t)
	ms.SilencePuts("cards/")

	start := time.Now()
	res := adapter.Put(context.Background(), "cards/card_1", Record{"title": "A"})
	elapsed := time.Since(start)

	assert.Equal(t, WriteTimedOutAssumedOk, res.State)
	assert.True(t, res.State.Ok())
	assert.False(t, res.State.Confirmed())
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)

	// The write still landed locally even though no ack came back
	assert.NotNil(t, ms.Snapshot()["cards/card_1"])
}

func TestPutRetry_RejectionExhaustsBudget(t *testing.T) {
	adapter, ms := newTestAdapter(t)
	ms.RejectPuts("cards/", errors.New("write rejected by store"))

	res := adapter.PutRetry(context.Background(), "cards/card_1", Record{"title": "A"})
	require.Equal(t, WriteFailed, res.State)

	var rejected *apperrors.ErrWriteRejected
	require.ErrorAs(t, res.Err, &rejected)
	assert.Equal(t, 3, rejected.Attempts)
}

func TestPutRetry_RecoversAfterTransientRejection(t *testing.T) {
	adapter, ms := newTestAdapter(t)
	ms.RejectPuts("cards/", errors.New("transient"))

	done := make(chan PutResult, 1)
	go func() {
		done <- adapter.PutRetry(context.Background(), "cards/card_1", Record{"title": "A"})
	}()
	// Clear the fault before the retry budget runs out
	time.Sleep(2 * time.Millisecond)
	ms.AllowPuts("cards/")

	res := <-done
	assert.True(t, res.State.Ok())
}

func TestAdapter_NilStoreShortCircuits(t *testing.T) {
	adapter := NewAdapter(nil, testTiming(), logger.Nop())

	res := adapter.Get(context.Background(), "values/value_x")
	assert.False(t, res.Found)

	put := adapter.Put(context.Background(), "values/value_x", Record{})
	assert.Equal(t, WriteFailed, put.State)
	assert.Equal(t, apperrors.ErrStoreUnavailable, put.Err)

	assert.Empty(t, adapter.Collect(context.Background(), "values/"))
}

func TestCollect_BoundedWindowSnapshot(t *testing.T) {
	adapter, ms := newTestAdapter(t)
	ms.Seed("values/value_equity", Record{"id": "value_equity"})
	ms.Seed("values/value_privacy", Record{"id": "value_privacy"})
	ms.Seed("capabilities/capability_research", Record{"id": "capability_research"})

	records := adapter.Collect(context.Background(), "values/")
	assert.Len(t, records, 2)
	assert.Contains(t, records, "values/value_equity")
	assert.Contains(t, records, "values/value_privacy")
}

func TestCollect_ObservesWritesInsideWindow(t *testing.T) {
	adapter, ms := newTestAdapter(t)

	go func() {
		time.Sleep(10 * time.Millisecond)
		ms.Put("values/value_late", Record{"id": "value_late"}, func(error) {})
	}()

	records := adapter.Collect(context.Background(), "values/")
	assert.Contains(t, records, "values/value_late")
}

func TestDelete_WritesTombstone(t *testing.T) {
	adapter, ms := newTestAdapter(t)
	ms.Seed("cards/card_1", Record{"id": "card_1", "title": "A"})

	res := adapter.Delete(context.Background(), "cards/card_1", "svc")
	require.True(t, res.State.Ok())

	// Concurrent readers may still see either side; our own read sees absent
	get := adapter.Get(context.Background(), "cards/card_1")
	assert.False(t, get.Found)
	assert.Equal(t, "svc", ms.Snapshot()["cards/card_1"]["deleted_by"])
}
