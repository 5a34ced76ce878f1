package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"churn-insight-service/internal/adapters/primary/http/handlers"
	"churn-insight-service/internal/adapters/primary/http/middleware"
	"churn-insight-service/internal/adapters/secondary/archive"
	"churn-insight-service/internal/adapters/secondary/auth"
	"churn-insight-service/internal/adapters/secondary/historyfile"
	"churn-insight-service/internal/adapters/secondary/kserve"
	"churn-insight-service/internal/adapters/secondary/modelserver"
	"churn-insight-service/internal/adapters/secondary/postgres"
	"churn-insight-service/internal/adapters/secondary/sqlite"
	"churn-insight-service/internal/adapters/secondary/tabular"
	"churn-insight-service/internal/config"
	"churn-insight-service/internal/core/domain"
	output "churn-insight-service/internal/core/ports/output"
	"churn-insight-service/internal/core/services"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	initLogger(cfg)

	// ============================================================================
	// Template dataset
	// ============================================================================

	decoder := tabular.NewDecoder()
	template, schema, err := loadTemplate(decoder, cfg.Dataset)
	if err != nil {
		log.Fatalf("load template dataset: %v", err)
	}
	log.WithFields(log.Fields{
		"path":    cfg.Dataset.TemplatePath,
		"rows":    template.NumRows(),
		"columns": len(template.Columns),
	}).Info("template dataset loaded")

	// ============================================================================
	// Hexagonal Architecture Wiring
	// ============================================================================

	// Secondary Adapters (Output Ports)
	store := sqlite.NewSnapshotStore(cfg.Dataset.DataDir)
	defer store.Close()

	rawArchive, err := newArchive(context.Background(), cfg.Archive)
	if err != nil {
		log.Fatalf("create upload archive: %v", err)
	}
	if c, ok := rawArchive.(io.Closer); ok {
		defer c.Close()
	}

	layout := domain.DefaultFeatureLayout
	historyFile := historyfile.NewFile(cfg.History.Path, layout)
	var historyWriter output.HistoryWriter = historyFile

	// Postgres history mirror (Optional - based on config)
	if cfg.History.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.History.DatabaseURL)
		if err != nil {
			log.Fatalf("create db pool: %v", err)
		}
		defer pool.Close()

		if err := postgres.EnsureHistorySchema(context.Background(), pool); err != nil {
			log.Warnf("History mirror disabled (schema setup failed): %v", err)
		} else {
			historyWriter = historyfile.WithMirrors(historyFile, postgres.NewHistoryRepository(pool, layout))
			log.Info("prediction history mirrored to postgres")
		}
	}

	// KServe Client (Optional - based on config)
	var kserveClient output.KServeClient
	if cfg.Kubernetes.Enabled {
		client, err := kserve.NewKServeClient(&cfg.Kubernetes)
		if err != nil {
			log.Warnf("KServe client init failed (continuing with static model endpoints): %v", err)
		} else {
			kserveClient = client
			log.Info("KServe client initialized")
		}
	} else {
		log.Info("KServe integration disabled")
	}

	models, err := modelserver.LoadCatalogOrDefault(cfg.Models.CatalogPath)
	if err != nil {
		log.Fatalf("load model catalog: %v", err)
	}
	catalog := modelserver.NewCatalog(models, kserveClient, cfg.Models.Timeout)

	authProvider, err := auth.NewJWTProvider(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		log.Fatalf("create auth provider: %v (set JWT_SECRET)", err)
	}

	// Core Services (Application Layer)
	resolver := services.NewSnapshotResolver(store, template, cfg.Dataset.IdentifierColumn)
	ingestSvc := services.NewIngestionService(decoder, services.NewSchemaValidator(schema), store, rawArchive, cfg.Dataset.NumericColumns)
	explorerSvc := services.NewExplorerService(resolver, store, schema, tabular.Encoders(), historyFile)
	predictSvc := services.NewPredictionService(catalog, historyWriter, resolver, services.PredictionConfig{
		Layout:       layout,
		Identifier:   cfg.Dataset.IdentifierColumn,
		BatchHistory: cfg.History.BatchHistory,
	})

	// Primary Adapter (HTTP Handlers)
	opts := handlers.Options{MaxUploadBytes: cfg.Upload.MaxBytes}
	if cfg.Upload.RatePerSecond > 0 {
		opts.Limiter = middleware.NewUploadLimiter(cfg.Upload.RatePerSecond, cfg.Upload.Burst)
	}
	h := handlers.New(ingestSvc, explorerSvc, predictSvc, catalog, decoder, opts)

	// Setup router
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logging(), gin.Recovery())
	handlers.RegisterOps(router)

	api := router.Group("/api/v1/churn")
	api.Use(middleware.Auth(authProvider))
	h.RegisterRoutes(api)

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Infof("starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("server forced shutdown: %v", err)
	}

	log.Info("server stopped")
}

func initLogger(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logger.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// loadTemplate reads the reference dataset and derives the schema every upload must match.
func loadTemplate(decoder output.TableDecoder, cfg config.DatasetConfig) (*domain.Table, *domain.TemplateSchema, error) {
	data, err := os.ReadFile(cfg.TemplatePath)
	if err != nil {
		return nil, nil, err
	}
	table, err := decoder.Decode(filepath.Base(cfg.TemplatePath), data)
	if err != nil {
		return nil, nil, err
	}
	if table.NumRows() == 0 {
		return nil, nil, domain.ErrEmptyDataset
	}
	schema, err := domain.NewTemplateSchema(table, cfg.IdentifierColumn, domain.DefaultColumnDescriptions)
	if err != nil {
		return nil, nil, err
	}
	return table, schema, nil
}

func newArchive(ctx context.Context, cfg config.ArchiveConfig) (output.RawArchive, error) {
	switch cfg.Backend {
	case "gcs":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("ARCHIVE_BUCKET is required for the gcs backend")
		}
		log.WithField("bucket", cfg.Bucket).Info("raw uploads archived to GCS")
		return archive.NewGCSArchive(ctx, cfg.Bucket, cfg.Prefix, archive.ClientOptionsFromEnv()...)
	case "none", "":
		log.Info("raw upload archive disabled")
		return archive.NewNoopArchive(), nil
	default:
		log.WithField("dir", cfg.Dir).Info("raw uploads archived locally")
		return archive.NewLocalArchive(cfg.Dir), nil
	}
}
