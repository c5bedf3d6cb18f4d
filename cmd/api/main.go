//	@title			Filedrop API
//	@version		1.0
//	@description	File sharing service: upload a file, get a public key for downloads and a private key for deletion.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

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
	"github.com/go-chi/httprate"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/filedrop/service/internal/config"
	"github.com/filedrop/service/internal/db"
	"github.com/filedrop/service/internal/file"
	appMiddleware "github.com/filedrop/service/internal/middleware"
	"github.com/filedrop/service/internal/storage"
	"github.com/filedrop/service/internal/sweeper"

	_ "github.com/filedrop/service/docs/swagger"
)

func main() {
	cfg := config.Load()

	pool, err := db.Connect(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	// The local backend is always registered so records written under it
	// stay readable after a switch to s3 (and the sweeper always has a
	// directory to patrol). The remote backend is registered whenever it
	// is configured; a record's tag picks the backend at read time.
	backends := storage.NewRegistry()

	local, err := storage.NewLocalBackend(cfg.UploadDir)
	if err != nil {
		log.Fatalf("local storage init failed: %v", err)
	}
	backends.Register(file.StorageLocal, local)

	if cfg.StorageBackend == config.BackendS3 || os.Getenv("STORAGE_ENDPOINT") != "" {
		remote, err := storage.NewMinioBackend(
			cfg.StorageEndpoint,
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			cfg.StorageBucket,
			cfg.StorageUseSSL,
		)
		if err != nil {
			if cfg.StorageBackend == config.BackendS3 {
				log.Fatalf("object storage init failed: %v", err)
			}
			log.Printf("object storage unavailable, serving local records only: %v", err)
		} else {
			backends.Register(file.StorageS3, remote)
		}
	}

	// Wire dependencies: repository → service → handler
	fileRepo := file.NewRepository(pool)
	fileSvc := file.NewService(fileRepo, file.NewEvaluator(), backends, cfg.StorageBackend, cfg.EnvFilePath)
	fileHandler := file.NewHandler(fileSvc)

	// Retention sweep over the local upload dir, hourly, off the request path
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweeper.New(
		cfg.UploadDir,
		time.Duration(cfg.CleanupIntervalHours)*time.Hour,
		time.Hour,
		fileSvc,
	).Run(sweepCtx)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Swagger UI — available at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	downloadLimit := httprate.LimitByIP(
		cfg.RateLimitCount,
		time.Duration(cfg.RateLimitWindowSeconds)*time.Second,
	)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/files", func(r chi.Router) {
			r.Use(appMiddleware.RequireAuth(cfg.JWTSecret))
			r.Post("/", fileHandler.Upload)
			r.Post("/update-env", fileHandler.UpdateEnv)
			r.With(downloadLimit).Get("/{publicKey}", fileHandler.Download)
			r.Get("/{publicKey}/link", fileHandler.SignedLink)
			r.Delete("/{privateKey}", fileHandler.Delete)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("server listening on :%s (env=%s, backend=%s)", cfg.Port, cfg.AppEnv, cfg.StorageBackend)
		log.Printf("swagger UI at http://localhost:%s/swagger/", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("shutting down gracefully...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}

	log.Println("server stopped")
}
