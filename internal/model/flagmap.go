package model

// FlagMap is the store's native representation of "set of referenced ids":
// a mapping from id to boolean true. Relationship fields on records are
// flag-maps; anything else in those fields is a shape violation.
type FlagMap map[string]bool

// NewFlagMap builds a flag-map from a list of ids.
func NewFlagMap(ids ...string) FlagMap {
	fm := make(FlagMap, len(ids))
	for _, id := range ids {
		if id != "" {
			fm[id] = true
		}
	}
	return fm
}

// IDs returns the ids flagged true.
func (fm FlagMap) IDs() []string {
	ids := make([]string, 0, len(fm))
	for id, on := range fm {
		if on {
			ids = append(ids, id)
		}
	}
	return ids
}

// Has reports whether id is flagged true.
func (fm FlagMap) Has(id string) bool {
	return fm[id]
}

// ToRecord converts the flag-map into the generic map shape records use.
func (fm FlagMap) ToRecord() map[string]any {
	out := make(map[string]any, len(fm))
	for id, on := range fm {
		if on {
			out[id] = true
		}
	}
	return out
}

// FlagMapFromAny decodes a relationship field read back from the store.
// It tolerates the shapes that legitimately appear after JSON round-trips
// (map[string]any, map[string]bool); anything else, arrays in particular,
// is reported as not-ok so callers can surface the shape violation instead
// of silently coercing it.
func FlagMapFromAny(v any) (FlagMap, bool) {
	switch m := v.(type) {
	case nil:
		return FlagMap{}, true
	case FlagMap:
		return m, true
	case map[string]bool:
		fm := make(FlagMap, len(m))
		for id, on := range m {
			if on {
				fm[id] = true
			}
		}
		return fm, true
	case map[string]any:
		fm := make(FlagMap, len(m))
		for id, raw := range m {
			if on, ok := raw.(bool); ok && on {
				fm[id] = true
			}
		}
		return fm, true
	default:
		return nil, false
	}
}

// StringsFromAny extracts the string elements of an array-shaped field.
// Used by the repair pass when converting legacy name arrays to flag-maps.
func StringsFromAny(v any) ([]string, bool) {
	switch s := v.(type) {
	case []string:
		return s, true
	case []any:
		out := make([]string, 0, len(s))
		for _, raw := range s {
			if str, ok := raw.(string); ok {
				out = append(out, str)
			}
		}
		return out, true
	default:
		return nil, false
	}
}
