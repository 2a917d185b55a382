// Package audit is the diagnostic and repair pass over stored relationship
// shapes. Scanning never mutates; repair rewrites only what it can resolve
// and reports the rest. No lock is taken against concurrent writers: a
// racing write can invalidate a repair, which is an accepted, surfaced risk.
package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"deckgraph/internal/model"
	"deckgraph/internal/registry"
	"deckgraph/internal/relation"
	"deckgraph/internal/store"
	"go.uber.org/zap"
)

// IssueKind classifies a scan finding.
type IssueKind string

const (
	IssueShapeViolation      IssueKind = "shape_violation"
	IssueDanglingReference   IssueKind = "dangling_reference"
	IssuePartialRelationship IssueKind = "partial_relationship"
	IssueMalformedRecord     IssueKind = "malformed_record"
)

// Issue is one finding, tied to the entity it was observed on.
type Issue struct {
	EntityID    string    `json:"entity_id"`
	Field       string    `json:"field,omitempty"`
	Kind        IssueKind `json:"kind"`
	Description string    `json:"description"`
}

// ScanReport summarizes a read-only pass.
type ScanReport struct {
	Kind    string  `json:"kind"`
	Scanned int     `json:"scanned"`
	Issues  []Issue `json:"issues"`
}

// RepairReport summarizes a repair pass. Fixed counts only entities whose
// rewrite the store positively acknowledged; unconfirmed and unresolvable
// cases appear in Details.
type RepairReport struct {
	Kind    string   `json:"kind"`
	Scanned int      `json:"scanned"`
	Fixed   int      `json:"fixed"`
	Details []string `json:"details"`
}

// Auditor walks bounded snapshots of the namespaces and validates the
// invariants the store itself cannot enforce.
type Auditor struct {
	adapter      *store.Adapter
	values       *registry.Registry
	capabilities *registry.Registry
	edges        *relation.Synchronizer
	log          *zap.Logger
}

// New creates an auditor.
func New(adapter *store.Adapter, values, capabilities *registry.Registry, edges *relation.Synchronizer, log *zap.Logger) *Auditor {
	return &Auditor{
		adapter:      adapter,
		values:       values,
		capabilities: capabilities,
		edges:        edges,
		log:          log,
	}
}

// Scan walks every record of kind observed within the collection window and
// reports invariant violations. Valid kinds: values, capabilities, cards,
// decks, relations. No fixes happen here.
func (a *Auditor) Scan(ctx context.Context, kind string) (ScanReport, error) {
	report := ScanReport{Kind: kind, Issues: []Issue{}}

	switch kind {
	case model.NamespaceValues, model.NamespaceCapabilities:
		a.scanEntities(ctx, kind, &report)
	case model.NamespaceCards:
		a.scanCards(ctx, &report)
	case model.NamespaceDecks:
		a.scanDecks(ctx, &report)
	case model.NamespaceRelations:
		a.scanRelations(ctx, &report)
	default:
		return report, fmt.Errorf("unknown audit kind: %s", kind)
	}

	a.log.Info("scan finished",
		zap.String("kind", kind),
		zap.Int("scanned", report.Scanned),
		zap.Int("issues", len(report.Issues)),
	)
	return report, nil
}

func (a *Auditor) scanEntities(ctx context.Context, namespace string, report *ScanReport) {
	kind := registry.KindValues
	if namespace == model.NamespaceCapabilities {
		kind = registry.KindCapabilities
	}

	for path, rec := range a.adapter.Collect(ctx, namespace+"/") {
		report.Scanned++
		_, id := model.SplitPath(path)

		entity, err := model.EntityFromRecord(rec)
		if err != nil {
			report.Issues = append(report.Issues, Issue{
				EntityID:    id,
				Kind:        IssueMalformedRecord,
				Description: err.Error(),
			})
			continue
		}
		if entity.ID != id {
			report.Issues = append(report.Issues, Issue{
				EntityID:    id,
				Field:       "id",
				Kind:        IssueShapeViolation,
				Description: fmt.Sprintf("record id %q does not match key %q", entity.ID, id),
			})
		}
		if want := kind.ID(entity.Name); entity.Name != "" && want != id {
			report.Issues = append(report.Issues, Issue{
				EntityID:    id,
				Field:       "name",
				Kind:        IssueShapeViolation,
				Description: fmt.Sprintf("key %q is not the normalized form of name %q", id, entity.Name),
			})
		}
	}
}

func (a *Auditor) scanCards(ctx context.Context, report *ScanReport) {
	cards := a.adapter.Collect(ctx, model.NamespaceCards+"/")
	values := a.adapter.Collect(ctx, model.NamespaceValues+"/")
	capabilities := a.adapter.Collect(ctx, model.NamespaceCapabilities+"/")
	decks := a.adapter.Collect(ctx, model.NamespaceDecks+"/")

	for _, path := range sortedKeys(cards) {
		rec := cards[path]
		report.Scanned++
		_, cardID := model.SplitPath(path)

		a.checkFlagField(report, cardID, rec, "values", values, model.NamespaceValues, nil, "")
		a.checkFlagField(report, cardID, rec, "capabilities", capabilities, model.NamespaceCapabilities, nil, "")
		a.checkFlagField(report, cardID, rec, "decks", decks, model.NamespaceDecks, func(deckRec store.Record) model.FlagMap {
			fm, _ := model.FlagMapFromAny(deckRec["cards"])
			return fm
		}, cardID)
	}
}

func (a *Auditor) scanDecks(ctx context.Context, report *ScanReport) {
	decks := a.adapter.Collect(ctx, model.NamespaceDecks+"/")
	cards := a.adapter.Collect(ctx, model.NamespaceCards+"/")

	for _, path := range sortedKeys(decks) {
		rec := decks[path]
		report.Scanned++
		_, deckID := model.SplitPath(path)

		a.checkFlagField(report, deckID, rec, "cards", cards, model.NamespaceCards, func(cardRec store.Record) model.FlagMap {
			fm, _ := model.FlagMapFromAny(cardRec["decks"])
			return fm
		}, deckID)
	}
}

// checkFlagField validates one relationship field: it must be a flag-map,
// every flagged id must resolve to a live record of the target type, and,
// when mirror is given, the referenced record must flag ownID back or the
// pair is partial.
func (a *Auditor) checkFlagField(report *ScanReport, ownID string, rec store.Record, field string, targets map[string]store.Record, targetNS string, mirror func(store.Record) model.FlagMap, mirrorOwnID string) {
	raw, present := rec[field]
	if !present {
		return
	}

	flags, ok := model.FlagMapFromAny(raw)
	if !ok {
		report.Issues = append(report.Issues, Issue{
			EntityID:    ownID,
			Field:       field,
			Kind:        IssueShapeViolation,
			Description: fmt.Sprintf("%s must be a flag-map, found %T", field, raw),
		})
		return
	}

	ids := flags.IDs()
	sort.Strings(ids)
	for _, targetID := range ids {
		target, exists := targets[model.Path(targetNS, targetID)]
		if !exists || model.IsTombstone(target) {
			report.Issues = append(report.Issues, Issue{
				EntityID:    ownID,
				Field:       field,
				Kind:        IssueDanglingReference,
				Description: fmt.Sprintf("%s flags %q which does not resolve in %s", field, targetID, targetNS),
			})
			continue
		}
		if mirror != nil && !mirror(target).Has(mirrorOwnID) {
			report.Issues = append(report.Issues, Issue{
				EntityID:    ownID,
				Field:       field,
				Kind:        IssuePartialRelationship,
				Description: fmt.Sprintf("edge %s -> %s has no mirror on %s", mirrorOwnID, targetID, targetID),
			})
		}
	}
}

func (a *Auditor) scanRelations(ctx context.Context, report *ScanReport) {
	relations := a.adapter.Collect(ctx, model.NamespaceRelations+"/")

	for _, path := range sortedKeys(relations) {
		rec := relations[path]
		report.Scanned++
		_, relID := model.SplitPath(path)

		idx, ok := relation.IndexFromRecord(rec)
		if !ok {
			report.Issues = append(report.Issues, Issue{
				EntityID:    relID,
				Kind:        IssueMalformedRecord,
				Description: "relation index entry is missing endpoint fields",
			})
			continue
		}
		for _, side := range []struct {
			owner  relation.Endpoint
			target relation.Endpoint
		}{{idx.A, idx.B}, {idx.B, idx.A}} {
			res := a.adapter.Get(ctx, side.owner.Path)
			if !res.Found {
				report.Issues = append(report.Issues, Issue{
					EntityID:    relID,
					Kind:        IssueDanglingReference,
					Description: fmt.Sprintf("endpoint %s not observed", side.owner.Path),
				})
				continue
			}
			flags, _ := model.FlagMapFromAny(res.Value[side.owner.Field])
			if !flags.Has(side.target.ID) {
				report.Issues = append(report.Issues, Issue{
					EntityID:    relID,
					Field:       side.owner.Field,
					Kind:        IssuePartialRelationship,
					Description: fmt.Sprintf("edge %s -> %s has no mirror on %s", side.target.ID, side.owner.ID, side.owner.ID),
				})
			}
		}
	}
}

// Repair converts malformed relationship shapes on cards into canonical
// flag-maps. Legacy records hold arrays of display names; each name is
// resolved through the kind's name→id index and the field rewritten.
// Names that do not resolve are left out and reported; a field with no
// resolvable name is left untouched. Deck references have no authoritative
// name index and are only reported.
func (a *Auditor) Repair(ctx context.Context, kind string) (RepairReport, error) {
	report := RepairReport{Kind: kind, Details: []string{}}
	if kind != model.NamespaceCards {
		return report, fmt.Errorf("repair supports kind %q, got %q", model.NamespaceCards, kind)
	}

	valueIndex := a.values.NameIndex(ctx)
	capabilityIndex := a.capabilities.NameIndex(ctx)
	cards := a.adapter.Collect(ctx, model.NamespaceCards+"/")

	for _, path := range sortedKeys(cards) {
		rec := cards[path]
		report.Scanned++
		_, cardID := model.SplitPath(path)

		rewrite := store.Record{}
		a.repairField(&report, cardID, rec, "values", valueIndex, rewrite)
		a.repairField(&report, cardID, rec, "capabilities", capabilityIndex, rewrite)

		if raw, present := rec["decks"]; present {
			if _, ok := model.FlagMapFromAny(raw); !ok {
				report.Details = append(report.Details,
					fmt.Sprintf("%s: decks is %T, no name index to resolve against, left as is", cardID, raw))
			}
		}

		if len(rewrite) == 0 {
			continue
		}
		res := a.adapter.PutRetry(ctx, path, rewrite)
		switch {
		case res.State.Confirmed():
			report.Fixed++
		case res.State.Ok():
			report.Details = append(report.Details,
				fmt.Sprintf("%s: rewrite unconfirmed (write timed out), not counted as fixed", cardID))
		default:
			report.Details = append(report.Details,
				fmt.Sprintf("%s: rewrite failed: %v", cardID, res.Err))
		}
	}

	a.log.Info("repair finished",
		zap.String("kind", kind),
		zap.Int("scanned", report.Scanned),
		zap.Int("fixed", report.Fixed),
	)
	return report, nil
}

// repairField resolves one array-shaped field into flags and stages the
// rewrite. Nothing is staged when the field is already well shaped or when
// no element resolves.
func (a *Auditor) repairField(report *RepairReport, cardID string, rec store.Record, field string, index map[string]string, rewrite store.Record) {
	raw, present := rec[field]
	if !present {
		return
	}
	if _, ok := model.FlagMapFromAny(raw); ok {
		return
	}

	names, ok := model.StringsFromAny(raw)
	if !ok {
		report.Details = append(report.Details,
			fmt.Sprintf("%s: %s has unrecognized shape %T, left as is", cardID, field, raw))
		return
	}

	flags := model.FlagMap{}
	var unresolved []string
	for _, name := range names {
		if id, found := index[model.Slugify(name)]; found {
			flags[id] = true
		} else {
			unresolved = append(unresolved, name)
		}
	}
	if len(unresolved) > 0 {
		report.Details = append(report.Details,
			fmt.Sprintf("%s: %s names not in index, left unconverted: %s", cardID, field, strings.Join(unresolved, ", ")))
	}
	if len(flags) == 0 {
		return
	}
	rewrite[field] = flags.ToRecord()
}

// Heal rewrites the missing side of every partial relationship the index
// knows about. A concurrent writer can race this; the rewrite itself is
// just another best-effort edge write.
func (a *Auditor) Heal(ctx context.Context) (RepairReport, error) {
	report := RepairReport{Kind: model.NamespaceRelations, Details: []string{}}
	relations := a.adapter.Collect(ctx, model.NamespaceRelations+"/")

	for _, path := range sortedKeys(relations) {
		rec := relations[path]
		report.Scanned++

		idx, ok := relation.IndexFromRecord(rec)
		if !ok {
			report.Details = append(report.Details, fmt.Sprintf("%s: malformed index entry, skipped", path))
			continue
		}
		for _, side := range []struct {
			owner  relation.Endpoint
			target relation.Endpoint
		}{{idx.A, idx.B}, {idx.B, idx.A}} {
			res := a.adapter.Get(ctx, side.owner.Path)
			if !res.Found {
				report.Details = append(report.Details,
					fmt.Sprintf("%s: endpoint %s not observed, cannot heal", idx.ID, side.owner.Path))
				continue
			}
			flags, _ := model.FlagMapFromAny(res.Value[side.owner.Field])
			if flags.Has(side.target.ID) {
				continue
			}
			edge := a.edges.SetEdge(ctx, side.owner.Path, side.owner.Field, side.target.ID)
			if edge.State == relation.EdgeAcked {
				report.Fixed++
			} else {
				report.Details = append(report.Details,
					fmt.Sprintf("%s: heal of %s.%s unconfirmed (%s)", idx.ID, side.owner.ID, side.owner.Field, edge.State))
			}
		}
	}

	a.log.Info("heal finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("fixed", report.Fixed),
	)
	return report, nil
}

func sortedKeys(records map[string]store.Record) []string {
	keys := make([]string, 0, len(records))
	for key := range records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
