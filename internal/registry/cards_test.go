package registry

import (
	"context"
	"strings"
	"testing"

	"deckgraph/internal/auth"
	"deckgraph/internal/model"
	"deckgraph/internal/relation"
	"deckgraph/internal/store"
	"deckgraph/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCards(t *testing.T, user string) (*Cards, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	adapter := store.NewAdapter(ms, testTiming(), logger.Nop())
	edges := relation.NewSynchronizer(adapter, logger.Nop())
	return NewCards(adapter, edges, auth.NewStatic(user), logger.Nop()), ms
}

func TestCreateCard(t *testing.T) {
	cards, _ := newTestCards(t, "svc")

	card, err := cards.CreateCard(context.Background(), "  Orientation ")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(card.ID, model.PrefixCard))
	assert.Equal(t, "Orientation", card.Title)
	assert.Equal(t, "svc", card.CreatedBy)

	stored, found := cards.GetCard(context.Background(), card.ID)
	require.True(t, found)
	assert.Equal(t, card.Title, stored.Title)
}

func TestUpdateCardTitle_PartialWrite(t *testing.T) {
	cards, ms := newTestCards(t, "svc")
	ctx := context.Background()

	card, err := cards.CreateCard(ctx, "Orientation")
	require.NoError(t, err)
	require.True(t, cards.AssignValue(ctx, card.ID, "value_equity").State.Ok())

	require.NoError(t, cards.UpdateCardTitle(ctx, card.ID, "Kickoff"))

	rec := ms.Snapshot()[model.Path(model.NamespaceCards, card.ID)]
	assert.Equal(t, "Kickoff", rec["title"])
	// Partial-field write left the relationship field alone
	values, _ := model.FlagMapFromAny(rec["values"])
	assert.True(t, values.Has("value_equity"))
}

func TestAttachCardToDeck(t *testing.T) {
	cards, _ := newTestCards(t, "svc")
	ctx := context.Background()

	card, err := cards.CreateCard(ctx, "Orientation")
	require.NoError(t, err)
	deck, err := cards.CreateDeck(ctx, "Starter")
	require.NoError(t, err)

	res := cards.AttachCardToDeck(ctx, card.ID, deck.ID)
	require.True(t, res.Complete())

	gotCard, found := cards.GetCard(ctx, card.ID)
	require.True(t, found)
	assert.True(t, gotCard.Decks.Has(deck.ID))

	gotDeck, found := cards.GetDeck(ctx, deck.ID)
	require.True(t, found)
	assert.True(t, gotDeck.Cards.Has(card.ID))
}

func TestDeleteCard_PreservesCurrentUsersRecords(t *testing.T) {
	cards, ms := newTestCards(t, "alice")
	ctx := context.Background()

	mine, err := cards.CreateCard(ctx, "Mine")
	require.NoError(t, err)

	theirs := &model.Card{ID: model.PrefixCard + "other", Title: "Theirs", CreatedBy: "bob"}
	ms.Seed(model.Path(model.NamespaceCards, theirs.ID), theirs.ToRecord())

	assert.False(t, cards.DeleteCard(ctx, mine))
	assert.True(t, cards.DeleteCard(ctx, theirs))

	_, found := cards.GetCard(ctx, mine.ID)
	assert.True(t, found)
	_, found = cards.GetCard(ctx, theirs.ID)
	assert.False(t, found)
}
