package model

import (
	"strings"
	"time"
)

// Namespaces in the flat store layout. Records live at "<namespace>/<id>".
const (
	NamespaceValues       = "values"
	NamespaceCapabilities = "capabilities"
	NamespaceCards        = "cards"
	NamespaceDecks        = "decks"
	NamespaceRelations    = "relations"
)

// ID prefixes for name-derived entities.
const (
	PrefixValue      = "value_"
	PrefixCapability = "capability_"
	PrefixCard       = "card_"
	PrefixDeck       = "deck_"
	PrefixRelation   = "rel_"
)

// Entity is a namable record (a value or a capability). Identity is derived
// from the normalized name, which makes creation idempotent without any
// coordination between writers.
type Entity struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"`
}

// Card is the central entity; its relationship fields are flag-maps of ids
// stored independently of the records they reference.
type Card struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Values       FlagMap   `json:"values"`
	Capabilities FlagMap   `json:"capabilities"`
	Decks        FlagMap   `json:"decks"`
	CreatedAt    time.Time `json:"created_at"`
	CreatedBy    string    `json:"created_by,omitempty"`
}

// Deck groups cards. Deck.Cards mirrors Card.Decks; the store does not
// enforce agreement between the two sides.
type Deck struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Cards     FlagMap   `json:"cards"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"`
}

// Path returns the store key for an id within a namespace.
func Path(namespace, id string) string {
	return namespace + "/" + id
}

// SplitPath splits a store key back into namespace and id.
func SplitPath(path string) (namespace, id string) {
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return "", path
}

// ValueID returns the deterministic id for a value name.
func ValueID(name string) string {
	return PrefixValue + Slugify(name)
}

// CapabilityID returns the deterministic id for a capability name.
func CapabilityID(name string) string {
	return PrefixCapability + Slugify(name)
}

// Slugify normalizes a display name into an id slug: lowercased, trimmed,
// runs of non-alphanumeric characters collapsed into single underscores.
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			if b.Len() > 0 {
				pendingSep = true
			}
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
