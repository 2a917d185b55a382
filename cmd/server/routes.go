package main

import (
	"net/http"

	"deckgraph/internal/app"
	"deckgraph/internal/importer"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// registerRoutes exposes the core operations as a small JSON API. Every
// handler returns a usable value: degraded store conditions surface as
// partial results, not 5xx responses.
func registerRoutes(router *gin.Engine, application *app.App, log *zap.Logger) {
	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		// Create-or-get a batch of values by name; responds with the flag-map
		api.POST("/values", func(c *gin.Context) {
			var req struct {
				Names []string `json:"names" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			flags := application.Values.CreateOrGetAll(c.Request.Context(), req.Names)
			c.JSON(http.StatusOK, gin.H{"values": flags})
		})

		api.POST("/capabilities", func(c *gin.Context) {
			var req struct {
				Names []string `json:"names" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			flags := application.Capabilities.CreateOrGetAll(c.Request.Context(), req.Names)
			c.JSON(http.StatusOK, gin.H{"capabilities": flags})
		})

		// Bounded-window snapshots
		api.GET("/values", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"values": application.Values.GetAll(c.Request.Context())})
		})
		api.GET("/capabilities", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"capabilities": application.Capabilities.GetAll(c.Request.Context())})
		})

		// Cards and decks
		api.POST("/cards", func(c *gin.Context) {
			var req struct {
				Title string `json:"title" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			card, err := application.Cards.CreateCard(c.Request.Context(), req.Title)
			if err != nil {
				log.Error("Card create exhausted retries", zap.Error(err))
				c.JSON(http.StatusAccepted, gin.H{"card": card, "unconfirmed": true})
				return
			}
			c.JSON(http.StatusOK, gin.H{"card": card})
		})

		api.GET("/cards/:id", func(c *gin.Context) {
			card, found := application.Cards.GetCard(c.Request.Context(), c.Param("id"))
			if !found {
				c.JSON(http.StatusNotFound, gin.H{"error": "Card not observed"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"card": card})
		})

		api.POST("/decks", func(c *gin.Context) {
			var req struct {
				Name string `json:"name" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			deck, err := application.Cards.CreateDeck(c.Request.Context(), req.Name)
			if err != nil {
				log.Error("Deck create exhausted retries", zap.Error(err))
				c.JSON(http.StatusAccepted, gin.H{"deck": deck, "unconfirmed": true})
				return
			}
			c.JSON(http.StatusOK, gin.H{"deck": deck})
		})

		// Two-sided link; a partial result is reported, not failed
		api.POST("/cards/:id/deck", func(c *gin.Context) {
			var req struct {
				DeckID string `json:"deck_id" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			res := application.Cards.AttachCardToDeck(c.Request.Context(), c.Param("id"), req.DeckID)
			c.JSON(http.StatusOK, gin.H{
				"complete": res.Complete(),
				"forward":  res.Forward.State.String(),
				"reverse":  res.Reverse.State.String(),
			})
		})

		// Throttled bulk import of named entities onto a card
		api.POST("/cards/:id/import", func(c *gin.Context) {
			var req struct {
				Kind  string   `json:"kind" binding:"required"`
				Names []string `json:"names" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var imp *importer.Importer
			switch req.Kind {
			case "values":
				imp = application.ValueImporter
			case "capabilities":
				imp = application.CapabilityImporter
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be values or capabilities"})
				return
			}
			result := imp.ImportBatch(c.Request.Context(), c.Param("id"), req.Names)
			c.JSON(http.StatusOK, result)
		})

		// Diagnostics
		api.POST("/audit/:kind/scan", func(c *gin.Context) {
			report, err := application.Auditor.Scan(c.Request.Context(), c.Param("kind"))
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, report)
		})

		api.POST("/audit/:kind/repair", func(c *gin.Context) {
			report, err := application.Auditor.Repair(c.Request.Context(), c.Param("kind"))
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, report)
		})

		api.POST("/audit/heal", func(c *gin.Context) {
			report, err := application.Auditor.Heal(c.Request.Context())
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, report)
		})
	}
}
