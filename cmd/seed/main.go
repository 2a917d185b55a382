package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"deckgraph/internal/app"
	"deckgraph/pkg/config"
	"deckgraph/pkg/logger"
	"go.uber.org/zap"
)

var defaultValues = []string{
	"Sustainability", "Equity", "Privacy", "Transparency", "Accessibility",
}

var defaultCapabilities = []string{
	"Research", "Prototyping", "Facilitation", "Data Analysis",
}

func main() {
	deckName := flag.String("deck", "Starter Deck", "Deck to create and populate")
	cardTitles := flag.String("cards", "Orientation,Field Notes", "Comma-separated card titles")
	values := flag.String("values", strings.Join(defaultValues, ","), "Comma-separated value names")
	capabilities := flag.String("capabilities", strings.Join(defaultCapabilities, ","), "Comma-separated capability names")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting seed...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	application, err := app.New(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer application.Close()

	ctx := context.Background()

	// Entities first; creation is idempotent, so re-running the seed is safe
	valueFlags := application.Values.CreateOrGetAll(ctx, splitNames(*values))
	capabilityFlags := application.Capabilities.CreateOrGetAll(ctx, splitNames(*capabilities))
	log.Info("Entities seeded",
		zap.Int("values", len(valueFlags)),
		zap.Int("capabilities", len(capabilityFlags)),
	)

	deck, err := application.Cards.CreateDeck(ctx, *deckName)
	if err != nil {
		log.Error("Deck create unconfirmed, continuing with local copy", zap.Error(err))
	}

	for _, title := range splitNames(*cardTitles) {
		card, err := application.Cards.CreateCard(ctx, title)
		if err != nil {
			log.Error("Card create failed, skipping", zap.String("title", title), zap.Error(err))
			continue
		}
		res := application.Cards.AttachCardToDeck(ctx, card.ID, deck.ID)
		if !res.Complete() {
			log.Warn("Card attached one-sided; run audit heal to finish",
				zap.String("card", card.ID),
				zap.String("deck", deck.ID),
			)
		}

		valueResult := application.ValueImporter.ImportBatch(ctx, card.ID, splitNames(*values))
		capabilityResult := application.CapabilityImporter.ImportBatch(ctx, card.ID, splitNames(*capabilities))
		log.Info("Card populated",
			zap.String("card", card.ID),
			zap.Int("values_added", valueResult.Added),
			zap.Int("capabilities_added", capabilityResult.Added),
		)
	}

	report, err := application.Auditor.Scan(ctx, "cards")
	if err != nil {
		log.Error("Post-seed scan failed", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Seed finished",
		zap.Int("cards_scanned", report.Scanned),
		zap.Int("issues", len(report.Issues)),
	)
}

func splitNames(csv string) []string {
	var names []string
	for _, part := range strings.Split(csv, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}
