// Package importer sequences entity and edge creation across a batch. The
// backing store has been observed to drop or corrupt writes under
// concurrent bursts, so the batch runs strictly sequentially with an
// explicit pause between items: item i's full create+link sequence,
// timeouts included, resolves before item i+1 starts.
package importer

import (
	"context"

	"deckgraph/internal/model"
	"deckgraph/internal/registry"
	"deckgraph/internal/relation"
	"deckgraph/internal/store"
	"go.uber.org/zap"
)

// ItemError reports one skipped item.
type ItemError struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Result summarizes a batch. Partial success is a valid outcome: Added
// counts linked items, Errors lists what was skipped, and the batch never
// fails as a whole.
type Result struct {
	Added   int         `json:"added"`
	Skipped int         `json:"skipped"`
	Errors  []ItemError `json:"errors,omitempty"`
}

// Importer links named entities of one kind onto an owning card.
type Importer struct {
	registry *registry.Registry
	edges    *relation.Synchronizer
	adapter  *store.Adapter
	field    string // relationship field on the owning card
	log      *zap.Logger
}

// New creates an importer. The field is the card's flag-map that receives
// the imported ids ("values" or "capabilities").
func New(reg *registry.Registry, edges *relation.Synchronizer, adapter *store.Adapter, field string, log *zap.Logger) *Importer {
	return &Importer{registry: reg, edges: edges, adapter: adapter, field: field, log: log}
}

// ImportBatch creates each named entity and links it to the owner card, in
// input order, pausing the configured inter-item delay between items. One
// item's failure is logged and skipped; the batch continues.
func (i *Importer) ImportBatch(ctx context.Context, ownerCardID string, names []string) Result {
	var result Result
	ownerPath := model.Path(model.NamespaceCards, ownerCardID)

	for idx, name := range names {
		if idx > 0 {
			if !store.Sleep(ctx, i.adapter.Timing().ImportDelay) {
				i.log.Warn("import cancelled mid-batch",
					zap.String("owner", ownerCardID),
					zap.Int("processed", idx),
				)
				break
			}
		}

		entity, err := i.registry.CreateOrGet(ctx, name)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, ItemError{Name: name, Reason: err.Error()})
			i.log.Error("import item create failed, skipping",
				zap.String("owner", ownerCardID),
				zap.String("name", name),
				zap.Error(err),
			)
			continue
		}

		edge := i.edges.SetEdge(ctx, ownerPath, i.field, entity.ID)
		if !edge.State.Ok() {
			result.Skipped++
			reason := "link failed"
			if edge.Err != nil {
				reason = edge.Err.Error()
			}
			result.Errors = append(result.Errors, ItemError{Name: name, Reason: reason})
			i.log.Error("import item link failed, skipping",
				zap.String("owner", ownerCardID),
				zap.String("entity", entity.ID),
				zap.Error(edge.Err),
			)
			continue
		}

		result.Added++
	}

	i.log.Info("import batch finished",
		zap.String("owner", ownerCardID),
		zap.Int("added", result.Added),
		zap.Int("skipped", result.Skipped),
	)
	return result
}
