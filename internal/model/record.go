package model

import (
	"fmt"
	"time"
)

// Record is a decoded store value. The store is schemaless; everything it
// returns is a generic map and the shape is only imposed here, on decode.
type Record = map[string]any

// Tombstone is the marker field written in place of hard deletes. Readers
// treat a tombstoned record as absent.
const Tombstone = "_tombstone"

// IsTombstone reports whether a record is a deletion marker.
func IsTombstone(rec Record) bool {
	if rec == nil {
		return false
	}
	on, _ := rec[Tombstone].(bool)
	return on
}

// TombstoneRecord builds a deletion marker attributed to deletedBy.
func TombstoneRecord(deletedBy string) Record {
	rec := Record{
		Tombstone:    true,
		"deleted_at": time.Now().UTC().Format(time.RFC3339),
	}
	if deletedBy != "" {
		rec["deleted_by"] = deletedBy
	}
	return rec
}

// ToRecord encodes an entity for storage.
func (e *Entity) ToRecord() Record {
	rec := Record{
		"id":         e.ID,
		"name":       e.Name,
		"created_at": e.CreatedAt.UTC().Format(time.RFC3339),
	}
	if e.CreatedBy != "" {
		rec["created_by"] = e.CreatedBy
	}
	return rec
}

// EntityFromRecord decodes a namable entity.
func EntityFromRecord(rec Record) (*Entity, error) {
	id := recString(rec, "id")
	if id == "" {
		return nil, fmt.Errorf("entity record has no id")
	}
	return &Entity{
		ID:        id,
		Name:      recString(rec, "name"),
		CreatedAt: recTime(rec, "created_at"),
		CreatedBy: recString(rec, "created_by"),
	}, nil
}

// ToRecord encodes a card for storage.
func (c *Card) ToRecord() Record {
	rec := Record{
		"id":           c.ID,
		"title":        c.Title,
		"values":       c.Values.ToRecord(),
		"capabilities": c.Capabilities.ToRecord(),
		"decks":        c.Decks.ToRecord(),
		"created_at":   c.CreatedAt.UTC().Format(time.RFC3339),
	}
	if c.CreatedBy != "" {
		rec["created_by"] = c.CreatedBy
	}
	return rec
}

// CardFromRecord decodes a card. Relationship fields in unexpected shapes
// come back empty here; only the auditor looks at the raw shapes.
func CardFromRecord(rec Record) (*Card, error) {
	id := recString(rec, "id")
	if id == "" {
		return nil, fmt.Errorf("card record has no id")
	}
	values, _ := FlagMapFromAny(rec["values"])
	capabilities, _ := FlagMapFromAny(rec["capabilities"])
	decks, _ := FlagMapFromAny(rec["decks"])
	return &Card{
		ID:           id,
		Title:        recString(rec, "title"),
		Values:       values,
		Capabilities: capabilities,
		Decks:        decks,
		CreatedAt:    recTime(rec, "created_at"),
		CreatedBy:    recString(rec, "created_by"),
	}, nil
}

// ToRecord encodes a deck for storage.
func (d *Deck) ToRecord() Record {
	rec := Record{
		"id":         d.ID,
		"name":       d.Name,
		"cards":      d.Cards.ToRecord(),
		"created_at": d.CreatedAt.UTC().Format(time.RFC3339),
	}
	if d.CreatedBy != "" {
		rec["created_by"] = d.CreatedBy
	}
	return rec
}

// DeckFromRecord decodes a deck.
func DeckFromRecord(rec Record) (*Deck, error) {
	id := recString(rec, "id")
	if id == "" {
		return nil, fmt.Errorf("deck record has no id")
	}
	cards, _ := FlagMapFromAny(rec["cards"])
	return &Deck{
		ID:        id,
		Name:      recString(rec, "name"),
		Cards:     cards,
		CreatedAt: recTime(rec, "created_at"),
		CreatedBy: recString(rec, "created_by"),
	}, nil
}

func recString(rec Record, key string) string {
	if s, ok := rec[key].(string); ok {
		return s
	}
	return ""
}

func recTime(rec Record, key string) time.Time {
	if s, ok := rec[key].(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
