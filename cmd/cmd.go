package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"readthis-backend/internal/config"
	"readthis-backend/internal/database"
	"readthis-backend/internal/handlers"
	"readthis-backend/internal/repository"
	"readthis-backend/internal/services"
	"readthis-backend/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	// Connect to database
	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)

	store, err := storage.NewS3Store(ctx, cfg.AWS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create object store")
	}

	// Initialize services
	fetchClient := &http.Client{Timeout: cfg.Media.FetchTimeout}
	media := services.NewMediaService(store, fetchClient, cfg.Media.MaxUploadBytes, cfg.Media.DefaultCoverKey,
		services.NewGoogleBooksFinder(cfg.Media.GoogleBooksURL, fetchClient),
		services.NewOpenLibraryFinder(cfg.Media.OpenLibraryURL, cfg.Media.OpenLibraryCover, fetchClient),
	)

	tokens := services.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	var verifier services.IdentityVerifier
	if cfg.OAuth.GoogleClientID != "" {
		verifier = services.NewGoogleVerifier(cfg.OAuth.GoogleIssuer, cfg.OAuth.GoogleJWKSURL, cfg.OAuth.GoogleClientID, fetchClient)
	} else {
		log.Warn().Msg("GOOGLE_CLIENT_ID not set, Google sign-in disabled")
	}

	wsHub := services.NewWSHub()
	var pusher services.Pusher
	apns, err := services.NewAPNsPusher(cfg.APNs)
	switch {
	case err != nil:
		log.Error().Err(err).Msg("Failed to configure APNs, push notifications disabled")
	case apns != nil:
		pusher = apns
	}
	notifier := services.NewNotifications(wsHub, pusher, func(ctx context.Context, userID string) (*string, error) {
		user, err := userRepo.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		return user.PushToken, nil
	})

	authService := services.NewAuthService(userRepo, tokens, media, verifier)
	commentService := services.NewCommentService(commentRepo, postRepo, media, notifier)
	postService := services.NewPostService(postRepo, commentService, media, notifier)
	recommendService := services.NewRecommendService(cfg.Recommend.APIURL, cfg.Recommend.APIKey, cfg.Recommend.Model,
		&http.Client{Timeout: cfg.Recommend.Timeout})

	// Setup router
	router := handlers.NewRouter(handlers.Routes{
		Auth:          handlers.NewAuthHandler(authService, cfg.Media.MaxUploadBytes),
		Posts:         handlers.NewPostHandler(postService, cfg.Media.MaxUploadBytes),
		Comments:      handlers.NewCommentHandler(commentService),
		Books:         handlers.NewBookHandler(recommendService),
		WS:            handlers.NewWebSocketHandler(wsHub, authService, cfg.Server.CORSOrigins),
		Health:        handlers.NewHealthHandler(db),
		Authenticator: authService,
		CORSOrigins:   cfg.Server.CORSOrigins,
		AuthRateLimit: cfg.Server.AuthRateLimit,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Hijacked WebSocket connections are not closed by Shutdown.
	wsHub.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level, format string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
