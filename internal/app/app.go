// Package app wires the components into a running application: store
// handle, adapter, registries, synchronizer, importers and auditor, built
// from configuration in dependency order.
package app

import (
	"fmt"

	"deckgraph/internal/audit"
	"deckgraph/internal/auth"
	"deckgraph/internal/importer"
	"deckgraph/internal/registry"
	"deckgraph/internal/relation"
	"deckgraph/internal/store"
	"deckgraph/pkg/config"
	"go.uber.org/zap"
)

// App holds the wired component graph.
type App struct {
	Config  *config.Config
	Store   store.Store
	Badger  *store.BadgerStore // nil when running on a memory store
	Adapter *store.Adapter
	Auth    auth.Provider

	Values       *registry.Registry
	Capabilities *registry.Registry
	Cards        *registry.Cards
	Edges        *relation.Synchronizer

	ValueImporter      *importer.Importer
	CapabilityImporter *importer.Importer
	Auditor            *audit.Auditor

	log *zap.Logger
}

// New opens the local replica per config and wires everything above it.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, log: log}

	if cfg.StoreInMemory {
		a.Store = store.NewMemoryStore()
		log.Info("using in-memory store")
	} else {
		badgerStore, err := store.OpenBadger(cfg.StoreDir, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open local replica: %w", err)
		}
		a.Badger = badgerStore
		a.Store = badgerStore
		log.Info("local replica opened", zap.String("dir", cfg.StoreDir))
	}

	a.Auth = auth.NewStatic(cfg.ServiceUser)
	a.Adapter = store.NewAdapter(a.Store, cfg.Timing, log)
	a.Edges = relation.NewSynchronizer(a.Adapter, log)

	a.Values = registry.New(registry.KindValues, a.Adapter, a.Auth, log)
	a.Capabilities = registry.New(registry.KindCapabilities, a.Adapter, a.Auth, log)
	a.Cards = registry.NewCards(a.Adapter, a.Edges, a.Auth, log)

	a.ValueImporter = importer.New(a.Values, a.Edges, a.Adapter, "values", log)
	a.CapabilityImporter = importer.New(a.Capabilities, a.Edges, a.Adapter, "capabilities", log)
	a.Auditor = audit.New(a.Adapter, a.Values, a.Capabilities, a.Edges, log)

	return a, nil
}

// Close releases the store handle.
func (a *App) Close() error {
	if a.Badger != nil {
		return a.Badger.Close()
	}
	return nil
}
