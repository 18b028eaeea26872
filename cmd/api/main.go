//	@title			Dropgate API
//	@version		1.0
//	@description	Upload gateway in front of S3-compatible object storage.
//
//	@host		localhost:8080
//	@BasePath	/api/v1

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/dropgate/service/internal/audit"
	"github.com/dropgate/service/internal/config"
	"github.com/dropgate/service/internal/credential"
	"github.com/dropgate/service/internal/db"
	"github.com/dropgate/service/internal/logging"
	"github.com/dropgate/service/internal/metrics"
	appMiddleware "github.com/dropgate/service/internal/middleware"
	"github.com/dropgate/service/internal/storage"
	"github.com/dropgate/service/internal/upload"

	_ "github.com/dropgate/service/docs/swagger"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	sugar := logger.Sugar()

	ctx := context.Background()

	store, err := storage.NewMinioStore(ctx, storage.MinioOptions{
		Endpoint:  cfg.StorageEndpoint,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Region:    cfg.StorageRegion,
		UseSSL:    cfg.StorageUseSSL,
	}, cfg.StorageContainer, sugar)
	if err != nil {
		sugar.Fatalw("object storage init failed", "error", err)
	}

	signer, err := storage.NewS3Presigner(ctx, storage.PresignerOptions{
		BaseURL:   cfg.StorageURL(),
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Region:    cfg.StorageRegion,
	})
	if err != nil {
		sugar.Fatalw("presigner init failed", "error", err)
	}

	var recorder audit.Recorder = audit.Nop{}
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL, sugar)
		if err != nil {
			sugar.Fatalw("database connection failed", "error", err)
		}
		defer pool.Close()

		if err := db.Migrate(cfg.DatabaseURL, sugar); err != nil {
			sugar.Fatalw("database migration failed", "error", err)
		}
		recorder = audit.NewRepository(pool)
	} else {
		sugar.Info("DATABASE_URL not set, audit trail disabled")
	}

	collector := metrics.New()

	// Wire dependencies: storage → issuer → service → handler
	uploadSvc := upload.NewService(upload.Deps{
		Store:     store,
		Issuer:    credential.NewIssuer(signer),
		Resolver:  config.NewResolver(cfg.Provider(), sugar),
		Recorder:  recorder,
		Metrics:   collector,
		Log:       sugar,
		Container: cfg.StorageContainer,
	})
	uploadHandler := upload.NewHandler(uploadSvc, sugar)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", collector.Handler())

	// Swagger UI at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/uploads", uploadHandler.Routes)
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 5 * time.Minute,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sugar.Infow("server listening", "port", cfg.Port, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server error", "error", err)
		}
	}()

	<-quit
	sugar.Info("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Fatalw("forced shutdown", "error", err)
	}

	sugar.Info("server stopped")
}
