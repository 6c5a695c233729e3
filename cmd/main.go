package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"mediavault/internal/auth"
	"mediavault/internal/config"
	"mediavault/internal/handler"
	"mediavault/internal/jobs"
	"mediavault/internal/repository"
	"mediavault/internal/service"
	"mediavault/internal/service/s3"
)

func connectWithRetry(log *zap.Logger, dsn string, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	var db *sqlx.DB
	var err error
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}
		log.Warn("failed to connect to database",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxAttempts, err)
}

func runMigrations(log *zap.Logger, cfg *config.Config) error {
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", databaseURL)
		if err == nil {
			break
		}
		log.Warn("failed to create migrate instance", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(5 * time.Second)
	}
	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		log.Warn("found dirty database state, forcing version", zap.Uint("version", version))
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	db, err := connectWithRetry(logger, appConfig.Database.GetDSN(), 5, 5*time.Second)
	if err != nil {
		logger.Fatal("failed to connect to database after retries", zap.Error(err))
	}
	defer db.Close()

	if err := runMigrations(logger, appConfig); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s3Config, err := s3.NewConfig(".s3.env")
	if err != nil {
		logger.Fatal("failed to load S3 config", zap.Error(err))
	}
	s3Client, err := s3.NewClient(s3Config)
	if err != nil {
		logger.Fatal("failed to create S3 client", zap.Error(err))
	}

	authConfig, err := auth.NewConfig(".auth.env")
	if err != nil {
		logger.Fatal("failed to load auth config", zap.Error(err))
	}
	auth.Init(authConfig)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publisher := jobs.NewPublisher(appConfig.MQ, logger)
	if err := publisher.Connect(ctx, appConfig.MQ.URL); err != nil {
		logger.Fatal("failed to connect to rabbitmq", zap.Error(err))
	}
	defer publisher.Close()
	if err := publisher.Init(); err != nil {
		logger.Fatal("failed to init rabbitmq topology", zap.Error(err))
	}
	go publisher.PublisherWorker(ctx)

	// Репозитории
	txManager := repository.NewSqlxTxManager(db)
	accountRepo := repository.NewPostgresAccountRepository(db)
	assetRepo := repository.NewPostgresAssetRepository(db)
	projectRepo := repository.NewPostgresProjectRepository(db)

	// Сервисы
	quotaService := service.NewStorageQuotaService(txManager, accountRepo, logger)
	uploadService := service.NewUploadService(assetRepo, projectRepo, s3Client, publisher, logger)
	assetService := service.NewAssetService(
		assetRepo,
		projectRepo,
		quotaService,
		uploadService,
		txManager,
		s3Client,
		publisher,
		logger,
		appConfig.Upload.MaxFileSizeBytes,
	)
	thumbnailService := service.NewThumbnailService(assetRepo, projectRepo, s3Client, publisher, logger)

	// Хендлеры
	assetHandler := handler.NewAssetHandler(assetService, logger)
	uploadHandler := handler.NewUploadHandler(uploadService, logger)
	quotaHandler := handler.NewStorageQuotaHandler(quotaService, logger)
	thumbnailHandler := handler.NewThumbnailHandler(thumbnailService, logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/assets", assetHandler.CreateAsset)
		r.Get("/assets", assetHandler.ListAssets)

		r.Route("/assets/{assetID}", func(r chi.Router) {
			r.Get("/", assetHandler.GetAsset)
			r.Patch("/", assetHandler.UpdateAsset)
			r.Delete("/", assetHandler.DeleteAsset)
			r.Post("/copy", assetHandler.CopyAsset)
			r.Put("/move", assetHandler.MoveAsset)
			r.Post("/restore", assetHandler.RestoreAsset)
			r.Get("/download", assetHandler.GetDownloadURL)

			r.Post("/confirm", uploadHandler.ConfirmUpload)
			r.Post("/upload-url", uploadHandler.ReissueUploadURL)
			r.Route("/uploads", func(r chi.Router) {
				r.Post("/", uploadHandler.InitChunkedUpload)
				r.Route("/{uploadID}", func(r chi.Router) {
					r.Get("/parts", uploadHandler.GetPartURLs)
					r.Post("/complete", uploadHandler.CompleteChunkedUpload)
					r.Delete("/", uploadHandler.AbortChunkedUpload)
				})
			})

			r.Route("/thumbnail", func(r chi.Router) {
				r.Get("/", thumbnailHandler.GetThumbnailURL)
				r.Put("/", thumbnailHandler.SetCustomThumbnail)
				r.Delete("/", thumbnailHandler.DeleteCustomThumbnail)
				r.Post("/upload-url", thumbnailHandler.RequestUploadURL)
			})
			r.Post("/frame-capture", thumbnailHandler.CaptureFrame)
		})

		r.Get("/quota", quotaHandler.GetQuotaInfo)
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	go func() {
		logger.Info("starting HTTP server", zap.String("port", appConfig.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited properly")
}
