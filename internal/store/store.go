// Package store wraps the underlying eventually-consistent graph store.
//
// The raw store speaks callbacks: gets resolve whenever the local replica
// answers, puts acknowledge asynchronously and best-effort, subscriptions
// push until explicitly stopped. Nothing about it is transactional and no
// latency bound is given. Adapter converts that surface into deadline-bound
// results so the rest of the system never waits without a timeout.
package store

import (
	"deckgraph/internal/model"
)

// Record is a decoded store value.
type Record = model.Record

// Store is the boundary to the underlying graph store.
//
// Put merges the given fields into whatever record already exists at the
// path (last-write-wins per field, nested maps merged recursively) and
// invokes ack exactly once with the outcome. The merge is the store's CRDT
// behavior, not something this layer adds.
//
// Subscribe replays the records currently visible under prefix and then
// streams subsequent writes until the returned stop function is called.
// Keys delivered to fn are full paths.
type Store interface {
	Get(path string, fn func(value Record, ok bool))
	Put(path string, value Record, ack func(err error))
	Subscribe(prefix string, fn func(key string, value Record)) (stop func())
}

// MergeRecord merges src into dst in place: nested maps merge recursively,
// everything else overwrites. Matches the store's own merge semantics, so
// locally built records stay consistent with what a read-back would show.
func MergeRecord(dst, src Record) {
	for key, sv := range src {
		if sm, ok := sv.(map[string]any); ok {
			if dm, ok := dst[key].(map[string]any); ok {
				MergeRecord(dm, sm)
				continue
			}
			dst[key] = CloneRecord(sm)
			continue
		}
		dst[key] = sv
	}
}

// CloneRecord deep-copies a record so callers can mutate their copy freely.
func CloneRecord(rec Record) Record {
	if rec == nil {
		return nil
	}
	out := make(Record, len(rec))
	for key, v := range rec {
		if m, ok := v.(map[string]any); ok {
			out[key] = CloneRecord(m)
			continue
		}
		if s, ok := v.([]any); ok {
			cp := make([]any, len(s))
			copy(cp, s)
			out[key] = cp
			continue
		}
		out[key] = v
	}
	return out
}
