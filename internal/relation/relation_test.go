package relation

import (
	"context"
	"errors"
	"testing"
	"time"

	"deckgraph/internal/model"
	"deckgraph/internal/store"
	"deckgraph/pkg/config"
	"deckgraph/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTiming() config.Timing {
	return config.Timing{
		CheckTimeout:  50 * time.Millisecond,
		WriteTimeout:  100 * time.Millisecond,
		CollectWindow: 80 * time.Millisecond,
		SettleDelay:   10 * time.Millisecond,
		ImportDelay:   20 * time.Millisecond,
		RetryLimit:    2,
		RetryBackoff:  5 * time.Millisecond,
	}
}

func newTestSync(t *testing.T) (*Synchronizer, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	adapter := store.NewAdapter(ms, testTiming(), logger.Nop())
	return NewSynchronizer(adapter, logger.Nop()), ms
}

func seedPair(ms *store.MemoryStore) {
	ms.Seed("cards/card_1", store.Record{"id": "card_1", "title": "A"})
	ms.Seed("decks/deck_1", store.Record{"id": "deck_1", "name": "D"})
}

func endpoints() (Endpoint, Endpoint) {
	return Endpoint{Path: "cards/card_1", Field: "decks", ID: "card_1"},
		Endpoint{Path: "decks/deck_1", Field: "cards", ID: "deck_1"}
}

func TestSetEdge_FlagsTarget(t *testing.T) {
	sync, ms := newTestSync(t)
	seedPair(ms)

	res := sync.SetEdge(context.Background(), "cards/card_1", "decks", "deck_1")
	require.Equal(t, EdgeAcked, res.State)
	assert.True(t, res.State.Ok())

	card := ms.Snapshot()["cards/card_1"]
	flags, ok := model.FlagMapFromAny(card["decks"])
	require.True(t, ok)
	assert.True(t, flags.Has("deck_1"))
}

func TestAddBidirectionalEdge_BothSides(t *testing.T) {
	sync, ms := newTestSync(t)
	seedPair(ms)
	a, b := endpoints()

	res := sync.AddBidirectionalEdge(context.Background(), a, b)
	require.True(t, res.Complete())

	snap := ms.Snapshot()
	cardDecks, _ := model.FlagMapFromAny(snap["cards/card_1"]["decks"])
	deckCards, _ := model.FlagMapFromAny(snap["decks/deck_1"]["cards"])
	assert.True(t, cardDecks.Has("deck_1"))
	assert.True(t, deckCards.Has("card_1"))
}

func TestAddBidirectionalEdge_SettleDelayBetweenSides(t *testing.T) {
	sync, ms := newTestSync(t)
	seedPair(ms)
	a, b := endpoints()

	sync.AddBidirectionalEdge(context.Background(), a, b)

	var forwardAt, reverseAt time.Time
	for _, op := range ms.Ops() {
		if op.Kind != "put" {
			continue
		}
		if op.Path == "cards/card_1" && forwardAt.IsZero() {
			forwardAt = op.At
		}
		if op.Path == "decks/deck_1" && reverseAt.IsZero() {
			reverseAt = op.At
		}
	}
	require.False(t, forwardAt.IsZero())
	require.False(t, reverseAt.IsZero())
	assert.GreaterOrEqual(t, reverseAt.Sub(forwardAt), 10*time.Millisecond)
}

func TestAddBidirectionalEdge_ReverseFailureLeavesForward(t *testing.T) {
	sync, ms := newTestSync(t)
	seedPair(ms)
	ms.RejectPuts("decks/", errors.New("write rejected"))
	a, b := endpoints()

	res := sync.AddBidirectionalEdge(context.Background(), a, b)

	// Forward side stands; no rollback exists
	assert.Equal(t, EdgeAcked, res.Forward.State)
	assert.Equal(t, EdgeFailedAfterRetries, res.Reverse.State)
	assert.False(t, res.Complete())

	snap := ms.Snapshot()
	cardDecks, _ := model.FlagMapFromAny(snap["cards/card_1"]["decks"])
	deckCards, _ := model.FlagMapFromAny(snap["decks/deck_1"]["cards"])
	assert.True(t, cardDecks.Has("deck_1"))
	assert.False(t, deckCards.Has("card_1"))
}

func TestAddBidirectionalEdge_WritesRelationIndex(t *testing.T) {
	sync, ms := newTestSync(t)
	seedPair(ms)
	a, b := endpoints()

	sync.AddBidirectionalEdge(context.Background(), a, b)

	id := RelationID("card_1", "deck_1")
	rec := ms.Snapshot()[model.Path(model.NamespaceRelations, id)]
	require.NotNil(t, rec)

	idx, ok := IndexFromRecord(rec)
	require.True(t, ok)
	assert.Equal(t, "card_1", idx.A.ID)
	assert.Equal(t, "deck_1", idx.B.ID)
}

func TestRelationID_OrderIndependent(t *testing.T) {
	assert.Equal(t, RelationID("card_1", "deck_1"), RelationID("deck_1", "card_1"))
}
