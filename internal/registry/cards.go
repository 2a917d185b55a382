package registry

import (
	"context"
	"strings"
	"time"

	"deckgraph/internal/auth"
	"deckgraph/internal/model"
	"deckgraph/internal/relation"
	"deckgraph/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Cards manages card and deck records. Unlike values and capabilities,
// cards are not deduped by name: each create mints a fresh id.
type Cards struct {
	adapter *store.Adapter
	edges   *relation.Synchronizer
	auth    auth.Provider
	log     *zap.Logger
}

// NewCards creates the card service.
func NewCards(adapter *store.Adapter, edges *relation.Synchronizer, authp auth.Provider, log *zap.Logger) *Cards {
	return &Cards{adapter: adapter, edges: edges, auth: authp, log: log}
}

// CreateCard writes a new card record. The locally built card is returned
// even when the ack times out.
func (c *Cards) CreateCard(ctx context.Context, title string) (*model.Card, error) {
	card := &model.Card{
		ID:           model.PrefixCard + uuid.New().String(),
		Title:        strings.TrimSpace(title),
		Values:       model.FlagMap{},
		Capabilities: model.FlagMap{},
		Decks:        model.FlagMap{},
		CreatedAt:    time.Now().UTC(),
		CreatedBy:    auth.UserOrEmpty(c.auth),
	}

	res := c.adapter.PutRetry(ctx, model.Path(model.NamespaceCards, card.ID), card.ToRecord())
	if res.State == store.WriteFailed {
		return card, res.Err
	}
	c.log.Info("card created", zap.String("id", card.ID), zap.String("title", card.Title))
	return card, nil
}

// GetCard reads a card within the check timeout. Absent or silent reads
// return (nil, false).
func (c *Cards) GetCard(ctx context.Context, cardID string) (*model.Card, bool) {
	res := c.adapter.Get(ctx, model.Path(model.NamespaceCards, cardID))
	if !res.Found {
		return nil, false
	}
	card, err := model.CardFromRecord(res.Value)
	if err != nil {
		return nil, false
	}
	return card, true
}

// UpdateCardTitle writes a partial-field update; untouched fields keep
// whatever the store merge preserves.
func (c *Cards) UpdateCardTitle(ctx context.Context, cardID, title string) error {
	res := c.adapter.PutRetry(ctx, model.Path(model.NamespaceCards, cardID), store.Record{
		"title": strings.TrimSpace(title),
	})
	if res.State == store.WriteFailed {
		return res.Err
	}
	return nil
}

// CreateDeck writes a new deck record.
func (c *Cards) CreateDeck(ctx context.Context, name string) (*model.Deck, error) {
	deck := &model.Deck{
		ID:        model.PrefixDeck + uuid.New().String(),
		Name:      strings.TrimSpace(name),
		Cards:     model.FlagMap{},
		CreatedAt: time.Now().UTC(),
		CreatedBy: auth.UserOrEmpty(c.auth),
	}

	res := c.adapter.PutRetry(ctx, model.Path(model.NamespaceDecks, deck.ID), deck.ToRecord())
	if res.State == store.WriteFailed {
		return deck, res.Err
	}
	c.log.Info("deck created", zap.String("id", deck.ID), zap.String("name", deck.Name))
	return deck, nil
}

// GetDeck reads a deck within the check timeout.
func (c *Cards) GetDeck(ctx context.Context, deckID string) (*model.Deck, bool) {
	res := c.adapter.Get(ctx, model.Path(model.NamespaceDecks, deckID))
	if !res.Found {
		return nil, false
	}
	deck, err := model.DeckFromRecord(res.Value)
	if err != nil {
		return nil, false
	}
	return deck, true
}

// AttachCardToDeck links a card and a deck on both sides. A partial result
// is possible and left standing for the auditor.
func (c *Cards) AttachCardToDeck(ctx context.Context, cardID, deckID string) relation.BidiResult {
	return c.edges.AddBidirectionalEdge(ctx,
		relation.Endpoint{Path: model.Path(model.NamespaceCards, cardID), Field: "decks", ID: cardID},
		relation.Endpoint{Path: model.Path(model.NamespaceDecks, deckID), Field: "cards", ID: deckID},
	)
}

// AssignValue flags a value id on a card. Values carry no back-reference,
// so this is a single directed edge.
func (c *Cards) AssignValue(ctx context.Context, cardID, valueID string) relation.EdgeResult {
	return c.edges.SetEdge(ctx, model.Path(model.NamespaceCards, cardID), "values", valueID)
}

// AssignCapability flags a capability id on a card.
func (c *Cards) AssignCapability(ctx context.Context, cardID, capabilityID string) relation.EdgeResult {
	return c.edges.SetEdge(ctx, model.Path(model.NamespaceCards, cardID), "capabilities", capabilityID)
}

// DeleteCard tombstones a card unless it is attributed to the current user,
// in which case it is preserved and false is returned. Used by cleanup
// flows; there is no hard delete.
func (c *Cards) DeleteCard(ctx context.Context, card *model.Card) bool {
	if user := auth.UserOrEmpty(c.auth); user != "" && card.CreatedBy == user {
		c.log.Info("preserving card owned by current user", zap.String("id", card.ID))
		return false
	}
	c.adapter.Delete(ctx, model.Path(model.NamespaceCards, card.ID), auth.UserOrEmpty(c.auth))
	return true
}
