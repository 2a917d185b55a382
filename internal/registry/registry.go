// Package registry creates and looks up namable entities over the store.
// Identity is derived from the normalized name, so creation is idempotent
// without coordination: two writers racing on the same name converge on the
// same key and the store's last-write-wins merge makes the duplicate write
// content-identical rather than conflicting.
package registry

import (
	"context"
	"strings"
	"time"

	"deckgraph/internal/auth"
	"deckgraph/internal/model"
	"deckgraph/internal/store"
	"go.uber.org/zap"
)

// Kind describes one entity namespace.
type Kind struct {
	Namespace string
	IDPrefix  string
}

// Predefined kinds.
var (
	KindValues       = Kind{Namespace: model.NamespaceValues, IDPrefix: model.PrefixValue}
	KindCapabilities = Kind{Namespace: model.NamespaceCapabilities, IDPrefix: model.PrefixCapability}
)

// ID computes the deterministic id for a name within this kind.
func (k Kind) ID(name string) string {
	return k.IDPrefix + model.Slugify(name)
}

// Path returns the store key for an id of this kind.
func (k Kind) Path(id string) string {
	return model.Path(k.Namespace, id)
}

// Registry is the dedup-on-create entity registry for one kind.
type Registry struct {
	kind    Kind
	adapter *store.Adapter
	auth    auth.Provider
	log     *zap.Logger
}

// New creates a registry over the store adapter.
func New(kind Kind, adapter *store.Adapter, authp auth.Provider, log *zap.Logger) *Registry {
	return &Registry{kind: kind, adapter: adapter, auth: authp, log: log}
}

// Kind returns the registry's entity kind.
func (r *Registry) Kind() Kind {
	return r.kind
}

// CreateOrGet returns the entity for name, creating it if no record is
// observed. The existence check is bounded by the check timeout and a
// silent replica is read as absent; dedup short-circuits creation and never
// overwrites an existing record. The create write runs under the retry
// budget, and a write that times out still returns the locally built
// entity: the store's silence is not allowed to block forward progress.
//
// A non-nil error reports an exhausted retry budget. The returned entity is
// still usable as the local copy.
func (r *Registry) CreateOrGet(ctx context.Context, name string) (*model.Entity, error) {
	id := r.kind.ID(name)
	path := r.kind.Path(id)

	check := r.adapter.Get(ctx, path)
	if check.Found {
		if existing, err := model.EntityFromRecord(check.Value); err == nil {
			return existing, nil
		}
		// Unreadable record at the key: fall through and write the
		// canonical shape. Content-identical overwrite is safe here.
		r.log.Warn("existing record is malformed, rewriting",
			zap.String("path", path),
		)
	}

	entity := &model.Entity{
		ID:        id,
		Name:      strings.TrimSpace(name),
		CreatedAt: time.Now().UTC(),
		CreatedBy: auth.UserOrEmpty(r.auth),
	}

	res := r.adapter.PutRetry(ctx, path, entity.ToRecord())
	switch res.State {
	case store.WriteAcked:
		r.log.Info("entity created",
			zap.String("namespace", r.kind.Namespace),
			zap.String("id", id),
		)
	case store.WriteTimedOutAssumedOk:
		r.log.Warn("entity create unconfirmed, trusting local copy",
			zap.String("namespace", r.kind.Namespace),
			zap.String("id", id),
		)
	default:
		return entity, res.Err
	}
	return entity, nil
}

// CreateOrGetAll resolves a list of names into a flag-map of ids. Per-name
// failures are logged and skipped; the map covers whatever succeeded.
func (r *Registry) CreateOrGetAll(ctx context.Context, names []string) model.FlagMap {
	flags := make(model.FlagMap, len(names))
	for _, name := range names {
		if model.Slugify(name) == "" {
			continue
		}
		entity, err := r.CreateOrGet(ctx, name)
		if err != nil {
			r.log.Error("create failed, skipping name",
				zap.String("namespace", r.kind.Namespace),
				zap.String("name", name),
				zap.Error(err),
			)
			continue
		}
		flags[entity.ID] = true
	}
	return flags
}

// GetAll materializes every entity of the kind observed within the
// collection window. The window bounds the wait, not the data: whatever the
// subscription delivered by the deadline is accepted as the snapshot.
func (r *Registry) GetAll(ctx context.Context) []model.Entity {
	records := r.adapter.Collect(ctx, r.kind.Namespace+"/")

	entities := make([]model.Entity, 0, len(records))
	for path, rec := range records {
		entity, err := model.EntityFromRecord(rec)
		if err != nil {
			r.log.Warn("skipping malformed record in snapshot",
				zap.String("path", path),
				zap.Error(err),
			)
			continue
		}
		entities = append(entities, *entity)
	}
	return entities
}

// NameIndex builds a normalized-name → id index from a bounded snapshot.
// Used by the repair pass to resolve legacy name arrays.
func (r *Registry) NameIndex(ctx context.Context) map[string]string {
	index := make(map[string]string)
	for _, entity := range r.GetAll(ctx) {
		slug := model.Slugify(entity.Name)
		if slug != "" {
			index[slug] = entity.ID
		}
	}
	return index
}
