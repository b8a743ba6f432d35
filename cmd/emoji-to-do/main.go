package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/firestore"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/slack-go/slack"

	"emoji-to-do/internal/config"
	"emoji-to-do/internal/handlers"
	"emoji-to-do/internal/middleware"
	"emoji-to-do/internal/services"
)

func main() {
	// Load .env in development; ignored when the file is absent.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg)
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	slackService := services.NewSlackService(slack.New(cfg.SlackBotToken))

	githubService, err := services.NewGitHubService(cfg)
	if err != nil {
		slog.Error("Failed to create GitHub service", "component", "startup", "error", err)
		os.Exit(1)
	}

	var (
		patternFinder    handlers.ReactionPatternFinder
		firestoreService *services.FirestoreService
	)
	if cfg.FirestoreProjectID != "" {
		slog.Info("Connecting to Firestore",
			"project_id", cfg.FirestoreProjectID, "database_id", cfg.FirestoreDatabaseID)
		firestoreClient, err := firestore.NewClientWithDatabase(ctx, cfg.FirestoreProjectID, cfg.FirestoreDatabaseID)
		if err != nil {
			slog.Error("Failed to create Firestore client", "component", "startup", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := firestoreClient.Close(); err != nil {
				slog.Error("Error closing Firestore client", "component", "shutdown", "error", err)
			}
		}()

		firestoreService = services.NewFirestoreService(firestoreClient)
		patternFinder = firestoreService
	} else {
		patterns, err := services.ParseReactionPatterns(cfg.ReactionPatterns)
		if err != nil {
			slog.Error("Failed to parse REACTION_PATTERNS", "component", "startup", "error", err)
			os.Exit(1)
		}
		slog.Info("Using static reaction patterns", "count", len(patterns))
		patternFinder = services.NewStaticReactionConfig(patterns)
	}

	slackHandler := handlers.NewSlackHandler(slackService, githubService, patternFinder, cfg)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())

	router.POST("/webhook/slack/events", slackHandler.HandleEvent)

	// The admin API needs persistent storage; it is unavailable with the
	// static pattern table.
	if firestoreService != nil {
		adminHandler := handlers.NewAdminHandler(firestoreService, cfg)
		router.POST("/api/reactions", adminHandler.HandleCreateReaction)
		router.GET("/api/reactions", adminHandler.HandleListReactions)
		router.DELETE("/api/reactions", adminHandler.HandleDeleteReaction)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	slog.Info("Starting server", "component", "server", "port", cfg.Port)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "component", "server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...", "component", "server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "component", "server", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited gracefully", "component", "server")
}

func setupLogging(cfg *config.Config) {
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var logger *slog.Logger
	if cfg.GinMode != "release" {
		// Text format for development
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	} else {
		// JSON format for production
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	}
	slog.SetDefault(logger)
}
