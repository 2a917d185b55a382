// Package relation maintains two-sided edges between independently stored
// records. The store has no commit primitive spanning two keys, so the two
// sides of an edge are written one after the other with independent retry
// state; a one-sided edge is an accepted, auditable intermediate state,
// never rolled back.
package relation

import (
	"context"
	"sort"
	"time"

	"deckgraph/internal/model"
	"deckgraph/internal/store"
	"go.uber.org/zap"
)

// EdgeState is the per-edge write state machine.
type EdgeState int

const (
	EdgeUnattempted EdgeState = iota
	EdgeInFlight
	EdgeAcked
	EdgeTimedOutAssumedOk
	EdgeFailedAfterRetries
)

// String returns the state name for logs and reports.
func (s EdgeState) String() string {
	switch s {
	case EdgeUnattempted:
		return "unattempted"
	case EdgeInFlight:
		return "in_flight"
	case EdgeAcked:
		return "acked"
	case EdgeTimedOutAssumedOk:
		return "timed_out_assumed_ok"
	case EdgeFailedAfterRetries:
		return "failed_after_retries"
	default:
		return "unknown"
	}
}

// Ok reports whether the edge write counts as success under the optimistic
// timeout policy.
func (s EdgeState) Ok() bool {
	return s == EdgeAcked || s == EdgeTimedOutAssumedOk
}

// Endpoint names one side of an edge: the record at Path holds a flag-map
// under Field, and ID is what the other side flags in return.
type Endpoint struct {
	Path  string // e.g. "cards/card_3f2a"
	Field string // e.g. "decks"
	ID    string // e.g. "card_3f2a"
}

// EdgeResult is the outcome of one directed edge write.
type EdgeResult struct {
	OwnerPath string
	Field     string
	TargetID  string
	State     EdgeState
	Err       error
}

// BidiResult pairs the two directed writes of a bidirectional edge.
type BidiResult struct {
	Forward EdgeResult
	Reverse EdgeResult
}

// Complete reports whether both sides landed (acked or assumed ok).
func (r BidiResult) Complete() bool {
	return r.Forward.State.Ok() && r.Reverse.State.Ok()
}

// Synchronizer writes boolean-flag edges with retry and throttling.
type Synchronizer struct {
	adapter *store.Adapter
	log     *zap.Logger
}

// NewSynchronizer creates a synchronizer over the store adapter.
func NewSynchronizer(adapter *store.Adapter, log *zap.Logger) *Synchronizer {
	return &Synchronizer{adapter: adapter, log: log}
}

// SetEdge flags targetID true in the ownerPath record's field. The write
// goes through the creation-path retry budget with linear backoff; only an
// exhausted budget is a real failure.
func (s *Synchronizer) SetEdge(ctx context.Context, ownerPath, field, targetID string) EdgeResult {
	result := EdgeResult{
		OwnerPath: ownerPath,
		Field:     field,
		TargetID:  targetID,
		State:     EdgeInFlight,
	}

	res := s.adapter.PutRetry(ctx, ownerPath, store.Record{
		field: map[string]any{targetID: true},
	})
	result.Err = res.Err

	switch res.State {
	case store.WriteAcked:
		result.State = EdgeAcked
	case store.WriteTimedOutAssumedOk:
		result.State = EdgeTimedOutAssumedOk
	default:
		result.State = EdgeFailedAfterRetries
		s.log.Error("edge write failed after retries",
			zap.String("owner", ownerPath),
			zap.String("field", field),
			zap.String("target", targetID),
			zap.Error(res.Err),
		)
	}
	return result
}

// AddBidirectionalEdge writes the A→B edge, waits the settle interval, then
// writes B→A. The settle interval is not needed for correctness; it
// throttles write-queue pressure on a store observed to drop writes under
// bursts. A failed reverse write does not roll back the forward edge.
//
// A relation index record is written alongside so the auditor can scan
// intended pairs without walking every entity.
func (s *Synchronizer) AddBidirectionalEdge(ctx context.Context, a, b Endpoint) BidiResult {
	var result BidiResult

	result.Forward = s.SetEdge(ctx, a.Path, a.Field, b.ID)
	store.Sleep(ctx, s.adapter.Timing().SettleDelay)
	result.Reverse = s.SetEdge(ctx, b.Path, b.Field, a.ID)

	if !result.Complete() {
		s.log.Warn("bidirectional edge is partial",
			zap.String("a", a.ID),
			zap.String("b", b.ID),
			zap.String("forward", result.Forward.State.String()),
			zap.String("reverse", result.Reverse.State.String()),
		)
	} else {
		s.log.Info("bidirectional edge written",
			zap.String("a", a.ID),
			zap.String("b", b.ID),
		)
	}

	s.writeIndex(ctx, a, b)
	return result
}

// IndexRecord describes one intended bidirectional pair as seen by the
// relation index.
type IndexRecord struct {
	ID string
	A  Endpoint
	B  Endpoint
}

// IndexFromRecord decodes a relation index record. Malformed entries report
// not-ok; the auditor treats those as shape issues.
func IndexFromRecord(rec store.Record) (*IndexRecord, bool) {
	str := func(key string) string {
		s, _ := rec[key].(string)
		return s
	}
	idx := &IndexRecord{
		ID: str("id"),
		A:  Endpoint{Path: str("a_path"), Field: str("a_field"), ID: str("a_id")},
		B:  Endpoint{Path: str("b_path"), Field: str("b_field"), ID: str("b_id")},
	}
	if idx.ID == "" || idx.A.ID == "" || idx.B.ID == "" {
		return nil, false
	}
	return idx, true
}

// RelationID is deterministic per unordered pair, so re-linking the same two
// records overwrites the same index entry instead of growing the namespace.
func RelationID(aID, bID string) string {
	pair := []string{aID, bID}
	sort.Strings(pair)
	return model.PrefixRelation + pair[0] + "__" + pair[1]
}

func (s *Synchronizer) writeIndex(ctx context.Context, a, b Endpoint) {
	id := RelationID(a.ID, b.ID)
	res := s.adapter.Put(ctx, model.Path(model.NamespaceRelations, id), store.Record{
		"id":         id,
		"a_path":     a.Path,
		"a_field":    a.Field,
		"a_id":       a.ID,
		"b_path":     b.Path,
		"b_field":    b.Field,
		"b_id":       b.ID,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	})
	if res.State == store.WriteFailed {
		// Index is advisory; the edges themselves are authoritative.
		s.log.Warn("relation index write failed", zap.String("id", id), zap.Error(res.Err))
	}
}
