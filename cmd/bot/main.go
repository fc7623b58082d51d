package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rugguard/rugguard-bot/internal/analysis"
	"github.com/rugguard/rugguard-bot/internal/compose"
	"github.com/rugguard/rugguard-bot/internal/config"
	"github.com/rugguard/rugguard-bot/internal/dispatcher"
	"github.com/rugguard/rugguard-bot/internal/models"
	"github.com/rugguard/rugguard-bot/internal/notifications"
	"github.com/rugguard/rugguard-bot/internal/platform"
	"github.com/rugguard/rugguard-bot/internal/resolver"
	"github.com/rugguard/rugguard-bot/internal/scheduler"
	"github.com/rugguard/rugguard-bot/internal/storage"
	"github.com/rugguard/rugguard-bot/internal/trustlist"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting RUGGUARD Trust Bot")

	// Audit archive: Azure Blob when configured, in-memory otherwise
	var archive storage.Archive
	if cfg.StorageAccount != "" {
		archive, err = storage.NewAzureArchive(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			logrus.Fatalf("Failed to initialize audit archive: %v", err)
		}
	} else {
		logrus.Info("No storage account configured, audit archive is in-memory only")
		archive = storage.NewMemoryArchive()
	}

	// Collaborators
	client := platform.NewTwitterClient(platform.Credentials{
		APIKey:            cfg.APIKey,
		APIKeySecret:      cfg.APIKeySecret,
		AccessToken:       cfg.AccessToken,
		AccessTokenSecret: cfg.AccessTokenSecret,
		BearerToken:       cfg.BearerToken,
	})
	stream := platform.NewTwitterStream(cfg.BearerToken, cfg.BotUsername, cfg.TriggerPhrase)
	notifier := notifications.NewService(cfg)

	// Core services
	trustedCache := trustlist.NewCache(trustlist.NewHTTPSource(cfg.TrustedListURL), cfg.TrustedListTTL)
	engine := analysis.NewEngine(client, trustedCache, cfg.MinTrustedVouches)
	res := resolver.NewResolver(client, cfg.TriggerPhrase)
	composer := compose.NewComposer(cfg.MaxReplyLength)
	dispatchService := dispatcher.NewService(stream, client, res, engine, composer, archive, notifier)

	// Background maintenance
	schedulerService := scheduler.NewService(trustedCache, dispatchService, notifier)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Install the stream rule and start consuming
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := stream.SetupRules(ctx); err != nil {
		logrus.Fatalf("Failed to install stream rules: %v", err)
	}

	dispatchDone := make(chan error, 1)
	go func() {
		dispatchDone <- dispatchService.Run(ctx)
	}()

	// Set up HTTP server for health checks and ops endpoints
	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheckHandler).Methods("GET")
	router.HandleFunc("/metrics", metricsHandler(dispatchService)).Methods("GET")
	router.HandleFunc("/analyze", analyzeHandler(dispatchService, cfg)).Methods("POST")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal or dispatch loop exit
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logrus.Info("Shutting down on signal...")
	case err := <-dispatchDone:
		if err != nil {
			logrus.Errorf("Dispatch loop exited: %v", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Bot exited")
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func metricsHandler(dispatchService *dispatcher.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(dispatchService.GetMetrics()))
	}
}

// analyzeHandler injects a synthetic trigger event, for testing the pipeline
// without waiting for a live mention. Body: {"post_id": "..."}. The event
// carries no reply target, so the composed assessment is logged rather
// than published.
func analyzeHandler(dispatchService *dispatcher.Service, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			PostID string `json:"post_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PostID == "" {
			http.Error(w, `{"error":"post_id is required"}`, http.StatusBadRequest)
			return
		}

		event := &models.TriggerEvent{
			EventID:         "manual-" + uuid.NewString(),
			RepliedToPostID: body.PostID,
			RawText:         cfg.TriggerPhrase,
			ReceivedAt:      time.Now().UTC(),
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			state := dispatchService.Process(ctx, event)
			logrus.Infof("Manual analysis of post %s finished in state %s", body.PostID, state)
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"message":"Analysis triggered; result is logged, not published","event_id":"` + event.EventID + `"}`))
	}
}
