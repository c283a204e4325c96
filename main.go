package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"retroscan/config"
	"retroscan/extraction"
	"retroscan/models"
	"retroscan/pipeline"
	"retroscan/registry"
	"retroscan/retrieval"
	"retroscan/services"
	"retroscan/storage"
	"retroscan/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var registeredDocsCounter prometheus.Counter

func init() {
	registeredDocsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "documents_registered_total",
			Help: "Total number of new documents registered in the pipeline.",
		},
	)
	prometheus.MustRegister(registeredDocsCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to registry database", zap.Error(err))
	}
	logging.Info("Successfully connected to registry database.")

	workerID := uuid.NewString()
	reg := registry.New(db, logging, workerID)
	if err := reg.Migrate(); err != nil {
		logging.Fatal("Registry migration failed", zap.Error(err))
	}

	// Artefakt-Store: lokal oder S3
	var store storage.ArtifactStore
	switch cfg.ArtifactBackend {
	case "s3":
		s3Client, err := storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		store = storage.NewS3Store(s3Client, cfg.StratoS3Bucket)
		logging.Info("Using S3 artifact store", zap.String("bucket", cfg.StratoS3Bucket))
	default:
		store = storage.NewLocalStore(cfg.ArtifactDir)
		logging.Info("Using local artifact store", zap.String("dir", cfg.ArtifactDir))
	}

	// Extraktions-Backend: Gemini, oder Mock wenn kein Schlüssel da ist
	var backend extraction.Backend
	if cfg.ExtractionMock || cfg.GeminiAPIKey == "" {
		if !cfg.ExtractionMock {
			logging.Warn("GEMINI_API_KEY not set, falling back to mock extraction backend")
		}
		backend = extraction.MockBackend{}
	} else {
		gemini, err := extraction.NewGeminiBackend(context.Background(), cfg.GeminiAPIKey, cfg.ExtractionModel)
		if err != nil {
			logging.Fatal("Gemini backend creation failed", zap.Error(err))
		}
		defer gemini.Close()
		backend = gemini
	}
	logging.Info("Extraction backend ready", zap.String("backend", backend.Name()))

	schemaChecker, err := validation.LoadSchemaChecker(cfg.SchemaPath)
	if err != nil {
		logging.Fatal("Schema load failed", zap.Error(err))
	}

	// Setup Services
	pages := storage.NewPageSource(cfg.PagesTextDir)
	ranker := retrieval.NewRanker(logging, store)
	driver := extraction.NewDriver(backend, logging, cfg.ExtractionTimeout)
	indexer := services.NewIndexer(reg, logging, cfg.PDFDir)

	stages := &pipeline.Stages{
		Registry: reg,
		Pages:    pages,
		Ranker:   ranker,
		Driver:   driver,
		Schema:   schemaChecker,
		Store:    store,
		Logger:   logging,
		Queries:  cfg.QueryTemplates(),
		TopK:     cfg.RetrievalTopK,
	}
	orchestrator := pipeline.NewOrchestrator(reg, logging, cfg.WorkerCount, cfg.ExtractionTimeout+30*time.Second)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupDocumentRoutes(router, reg, store, logging)
	setupReportRoutes(router, store, logging)
	setupPipelineRoutes(router, orchestrator, stages, indexer, logging)

	// Setup Cron
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled pipeline pass...")
		if added, err := indexer.Run(); err != nil {
			logging.Error("Scheduled index run failed", zap.Error(err))
		} else {
			registeredDocsCounter.Add(float64(added))
		}
		results := pipeline.RunAll(context.Background(), orchestrator, stages)
		logging.Info("Scheduled pipeline pass completed",
			zap.Any("results", results))
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// setupDocumentRoutes konfiguriert die Registry-Abfrage-Oberfläche und die
// Review-Übergänge (approve/reject).
func setupDocumentRoutes(router *gin.Engine, reg *registry.Registry, store storage.ArtifactStore, log *zap.Logger) {
	rg := router.Group("/documents")

	rg.GET("/", func(c *gin.Context) {
		status := c.Query("status")
		if status == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status query parameter is required"})
			return
		}
		docs, err := reg.ListByStatus(models.Status(status))
		if err != nil {
			log.Error("Database query for documents failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, docs)
	})

	rg.GET("/:doc_id", func(c *gin.Context) {
		doc, err := reg.Get(c.Param("doc_id"))
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	rg.POST("/:doc_id/transition", func(c *gin.Context) {
		var req struct {
			ExpectedStatus string `json:"expected_status" binding:"required"`
			NextStatus     string `json:"next_status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expected_status and next_status are required"})
			return
		}
		err := reg.Transition(c.Param("doc_id"), models.Status(req.ExpectedStatus), models.Status(req.NextStatus))
		writeTransitionResult(c, err, log)
	})

	// Approve übernimmt das valide Artefakt zusätzlich in den Approved-Store.
	rg.POST("/:doc_id/approve", func(c *gin.Context) {
		docID := c.Param("doc_id")
		if err := reg.Transition(docID, models.StatusValidatedOK, models.StatusApproved); err != nil {
			writeTransitionResult(c, err, log)
			return
		}
		data, err := store.Get(c.Request.Context(), storage.ValidExtractionKey(docID))
		if err != nil {
			log.Error("Valid artifact missing on approve", zap.String("doc_id", docID), zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"status": "approved", "warning": "valid artifact not found"})
			return
		}
		if err := store.Put(c.Request.Context(), storage.ApprovedExtractionKey(docID), data); err != nil {
			log.Error("Failed to copy artifact to approved store", zap.String("doc_id", docID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist approved artifact"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "approved"})
	})

	rg.POST("/:doc_id/reject", func(c *gin.Context) {
		var req struct {
			Reason string `json:"reason"`
		}
		_ = c.ShouldBindJSON(&req)

		docID := c.Param("doc_id")
		doc, err := reg.Get(docID)
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if err := reg.Transition(docID, doc.Status, models.StatusRejected); err != nil {
			writeTransitionResult(c, err, log)
			return
		}
		if req.Reason != "" {
			if err := reg.AppendNote(docID, "rejected: "+req.Reason); err != nil {
				log.Warn("Failed to append rejection note", zap.String("doc_id", docID), zap.Error(err))
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "rejected"})
	})
}

// writeTransitionResult mappt Registry-Fehler auf HTTP-Statuscodes.
func writeTransitionResult(c *gin.Context, err error, log *zap.Logger) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
	case errors.Is(err, registry.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "status precondition failed, re-read and re-decide"})
	case errors.Is(err, registry.ErrIllegalTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		log.Error("Transition failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
	}
}

// setupReportRoutes liefert persistierte Validierungs-Reports aus.
func setupReportRoutes(router *gin.Engine, store storage.ArtifactStore, log *zap.Logger) {
	router.GET("/reports/:doc_id", func(c *gin.Context) {
		data, err := store.Get(c.Request.Context(), storage.ValidationReportKey(c.Param("doc_id")))
		if err != nil {
			if errors.Is(err, storage.ErrArtifactNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no validation report for this document"})
				return
			}
			log.Error("Failed to load validation report", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "artifact store error"})
			return
		}
		c.Data(http.StatusOK, "application/json", data)
	})
}

// setupPipelineRoutes konfiguriert die asynchronen Auslöser für Index- und
// Pipeline-Läufe.
func setupPipelineRoutes(router *gin.Engine, o *pipeline.Orchestrator, s *pipeline.Stages, indexer *services.Indexer, log *zap.Logger) {
	router.POST("/index/run", func(c *gin.Context) {
		go func() {
			added, err := indexer.Run()
			if err != nil {
				log.Error("Async index run failed", zap.Error(err))
				return
			}
			registeredDocsCounter.Add(float64(added))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Index run triggered."})
	})

	router.POST("/pipeline/run", func(c *gin.Context) {
		go func() {
			results := pipeline.RunAll(context.Background(), o, s)
			payload, _ := json.Marshal(results)
			log.Info("Async pipeline pass completed", zap.ByteString("results", payload))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Pipeline pass triggered."})
	})
}
