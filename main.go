package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/camden-git/proctorhub/config"
	"github.com/camden-git/proctorhub/database"
	"github.com/camden-git/proctorhub/detection"
	"github.com/camden-git/proctorhub/handlers"
	"github.com/camden-git/proctorhub/media"
	"github.com/camden-git/proctorhub/report"
	"github.com/camden-git/proctorhub/repository"
	"github.com/camden-git/proctorhub/workers"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.StagingPath, cfg.ConfirmedPath, cfg.ReportsPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database: %v", err)
	}

	storeSubDirs := map[media.AssetType]string{
		media.AssetTypeStaging:   filepath.Base(cfg.StagingPath),
		media.AssetTypeConfirmed: filepath.Base(cfg.ConfirmedPath),
		media.AssetTypeReport:    filepath.Base(cfg.ReportsPath),
	}
	store, err := media.NewLocalStorage(cfg.StoragePath, storeSubDirs)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize image store: %v", err)
	}

	// the detector is loaded once here and shared read-only by all workers.
	// A missing model asset leaves it unavailable; alerts then verify as
	// FAILED instead of the process refusing to start.
	var detector detection.Detector
	switch cfg.Backend {
	case config.BackendObject:
		detector = detection.NewObjectDetector(cfg.ObjectDNNConfigPath, cfg.ObjectDNNModelPath, cfg.ConfidenceThreshold)
	default:
		detector = detection.NewFaceDetector(cfg.FaceDNNNetConfigPath, cfg.FaceDNNNetModelPath, cfg.ConfidenceThreshold)
	}
	defer detector.Close()
	if !detector.Available() {
		log.Printf("WARNING: %s detector unavailable; all verifications will fail until the model is provided", cfg.Backend)
	}

	incidentRepo := repository.NewIncidentRepository(db)
	metricsRepo := repository.NewMetricsRepository(db)

	log.Printf("Initializing verification worker pool (Workers: %d, Queue Size: %d, Timeout: %s)...",
		cfg.NumVerifyWorkers, cfg.VerifyQueueSize, cfg.VerifyTimeout)
	processor := workers.NewVerificationProcessor(detector, store, incidentRepo, metricsRepo,
		cfg.VerifyQueueSize, cfg.NumVerifyWorkers, cfg.VerifyTimeout)
	defer processor.Stop()

	// pick up images a previous run staged but never finished verifying
	processor.RequeueStaged()

	reportGen := report.NewGenerator(incidentRepo, metricsRepo, store)

	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Staging images in: %s", cfg.StagingPath)
	log.Printf("Confirmed images in: %s", cfg.ConfirmedPath)
	log.Printf("Detector backend: %s (confidence threshold %.2f)", cfg.Backend, cfg.ConfidenceThreshold)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"}, //TODO: configurable
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", handlers.APIKeyHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}

	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsHandler.Handler)

	ingestHandler := &handlers.IngestHandler{Store: store, Processor: processor, Metrics: metricsRepo}
	reportHandler := &handlers.ReportHandler{Generator: reportGen}

	r.Get("/", handlers.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return handlers.APIKeyMiddleware(cfg, next)
		})

		r.Post("/ingest-alert", ingestHandler.IngestAlert)
		r.Post("/heartbeat", ingestHandler.IngestHeartbeat)
		r.Post("/report", reportHandler.GenerateReport)

		r.Get("/files/*", handlers.AssetServer(cfg.StoragePath, "/api/files/"))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	serverAddr := ":" + port
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
