package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"mindmirror/backend/internal/adapter"
	"mindmirror/backend/internal/graph"
	"mindmirror/backend/internal/journal"
	"mindmirror/backend/internal/people"
	"mindmirror/backend/internal/pipeline"
	"mindmirror/backend/internal/store"
	"mindmirror/backend/internal/validate"
	"mindmirror/backend/pkg/config"
	apperrors "mindmirror/backend/pkg/errors"
	"mindmirror/backend/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting journal API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize Postgres
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	if err := store.AutoMigrate(db); err != nil {
		log.Fatal("Failed to migrate journal tables", zap.Error(err))
	}

	// Initialize Neo4j driver
	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(apperrors.NewGraphConnectionFailed(cfg.Neo4jURI, err)))
	}
	defer driver.Close(context.Background())

	// Verify Neo4j connection
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(apperrors.NewGraphConnectionFailed(cfg.Neo4jURI, err)))
	}

	// Redis is optional; without it the pipeline just loses the persona cache
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("Redis unavailable, continuing without persona cache", zap.Error(err))
			redisClient = nil
		}
	}

	// Initialize dependencies
	stores := store.New(db)
	graphRepo := graph.NewRepository(driver)
	peopleUpdater := people.NewUpdater(graphRepo)
	extractor := adapter.NewExtractor(cfg.LiteLLMURL, cfg.OpenRouterAPIKey, cfg.ModelID)
	embedder := adapter.NewEmbedder(cfg.LiteLLMURL, cfg.OpenRouterAPIKey, cfg.EmbeddingModelID)

	rules := validate.Rules{MinEventYear: cfg.MinEventYear, MaxFutureYears: cfg.MaxFutureYears}
	contexts := pipeline.NewContextBuilder(stores.Entries, embedder, stores.Embeddings, redisClient, cfg.RecentEntryCount)
	orch := pipeline.NewOrchestrator(
		stores.Entries,
		stores.Entities,
		stores.Embeddings,
		stores.Beliefs,
		extractor,
		embedder,
		peopleUpdater,
		contexts,
		pipeline.Options{Rules: rules, ExtractionTimeout: cfg.ExtractionTimeout},
	)
	features := pipeline.NewFeatureProcessor(extractor, stores.Events, stores.Insights, stores.Health, rules)

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API routes
	api := router.Group("/api")
	{
		// Submit a new entry
		api.POST("/entries", func(c *gin.Context) {
			ctx := c.Request.Context()

			var req struct {
				Text             string `json:"text" binding:"required"`
				Source           string `json:"source"`
				AudioURL         string `json:"audio_url"`
				AudioDurationSec int    `json:"audio_duration_sec"`
			}

			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			source := journal.SourceText
			if req.Source == string(journal.SourceVoice) {
				source = journal.SourceVoice
			}
			var audio *pipeline.AudioRef
			if req.AudioURL != "" {
				audio = &pipeline.AudioRef{URL: req.AudioURL, DurationSec: req.AudioDurationSec}
			}

			result, err := orch.ProcessEntry(ctx, req.Text, source, audio)
			if err != nil {
				if err == apperrors.ErrEmptyEntry {
					c.JSON(http.StatusBadRequest, gin.H{"error": "Entry text is empty"})
					return
				}
				log.Error("Failed to process entry", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process entry"})
				return
			}

			c.JSON(http.StatusOK, entryResponse(result))
		})

		// Re-run analysis for an existing entry
		api.POST("/entries/:id/reprocess", func(c *gin.Context) {
			ctx := c.Request.Context()
			entryID := c.Param("id")

			result, err := orch.ReprocessEntry(ctx, entryID)
			if err != nil {
				if _, ok := err.(*apperrors.ErrEntryNotFound); ok {
					c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
					return
				}
				log.Error("Failed to reprocess entry", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reprocess entry"})
				return
			}

			c.JSON(http.StatusOK, entryResponse(result))
		})

		// Run the background feature pass for an entry
		api.POST("/entries/:id/features", func(c *gin.Context) {
			ctx := c.Request.Context()
			entryID := c.Param("id")

			entry, err := stores.Entries.Get(ctx, entryID)
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
				return
			}

			report, err := features.Process(ctx, entryID, entry.RawText)
			if err != nil {
				log.Error("Feature pass failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Feature extraction failed"})
				return
			}

			c.JSON(http.StatusOK, gin.H{
				"entry_id":        report.EntryID,
				"events_stored":   report.EventsStored,
				"metrics_stored":  report.MetricsStored,
				"insights_stored": report.InsightsStored,
				"rejected":        report.Rejected,
				"failed":          report.Failed,
			})
		})

		// Fetch one entry with its analysis
		api.GET("/entries/:id", func(c *gin.Context) {
			ctx := c.Request.Context()
			entryID := c.Param("id")

			entry, err := stores.Entries.Get(ctx, entryID)
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
				return
			}
			entity, err := stores.Entities.GetByEntry(ctx, entryID)
			if err != nil {
				log.Error("Failed to fetch entity", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch entry"})
				return
			}

			c.JSON(http.StatusOK, gin.H{"entry": entry, "entity": entity})
		})

		// Tombstone an entry
		api.DELETE("/entries/:id", func(c *gin.Context) {
			if err := stores.Entries.SoftDelete(c.Request.Context(), c.Param("id")); err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "Entry not found"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "deleted"})
		})

		// List people, most recently mentioned first
		api.GET("/people", func(c *gin.Context) {
			ctx := c.Request.Context()

			persons, err := graphRepo.ListPeople(ctx, queryLimit(c, 50))
			if err != nil {
				log.Error("Failed to list people", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list people"})
				return
			}

			c.JSON(http.StatusOK, gin.H{"people": persons})
		})

		// Fetch one person with their sentiment history
		api.GET("/people/:name", func(c *gin.Context) {
			ctx := c.Request.Context()

			person, err := graphRepo.GetPerson(ctx, c.Param("name"))
			if err != nil {
				if _, ok := err.(graph.ErrPersonNotFound); ok {
					c.JSON(http.StatusNotFound, gin.H{"error": "Person not found"})
					return
				}
				log.Error("Failed to fetch person", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch person"})
				return
			}

			c.JSON(http.StatusOK, person)
		})

		// Life-event timeline
		api.GET("/timeline", func(c *gin.Context) {
			events, err := stores.Events.Timeline(c.Request.Context(), queryLimit(c, 100))
			if err != nil {
				log.Error("Failed to fetch timeline", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch timeline"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"events": events})
		})

		// Beliefs by reinforcement strength
		api.GET("/beliefs", func(c *gin.Context) {
			beliefs, err := stores.Beliefs.List(c.Request.Context(), queryLimit(c, 100))
			if err != nil {
				log.Error("Failed to list beliefs", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list beliefs"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"beliefs": beliefs})
		})

		// Recent insights, optionally filtered by category
		api.GET("/insights", func(c *gin.Context) {
			insights, err := stores.Insights.Recent(c.Request.Context(), c.Query("category"), queryLimit(c, 50))
			if err != nil {
				log.Error("Failed to list insights", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list insights"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"insights": insights})
		})

		// History for one health metric
		api.GET("/health-metrics/:name", func(c *gin.Context) {
			metrics, err := stores.Health.History(c.Request.Context(), c.Param("name"), queryLimit(c, 90))
			if err != nil {
				log.Error("Failed to fetch metric history", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch metric history"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"metrics": metrics})
		})
	}

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// entryResponse shapes a pipeline result for the API
func entryResponse(result *pipeline.Result) gin.H {
	steps := make([]string, 0, len(result.StepErrors))
	for _, se := range result.StepErrors {
		steps = append(steps, se.Step)
	}
	return gin.H{
		"entry_id":     result.EntryID,
		"duplicate":    result.Duplicate,
		"entity":       result.Entity,
		"failed_steps": steps,
	}
}

func queryLimit(c *gin.Context, fallback int) int {
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

// ginLogger is a custom logger middleware for Gin
func ginLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Info("HTTP Request",
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		)
	}
}
