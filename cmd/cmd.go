package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"trip-share-backend/internal/config"
	"trip-share-backend/internal/email"
	"trip-share-backend/internal/handlers"
	"trip-share-backend/internal/memstore"
	"trip-share-backend/internal/middleware"
	"trip-share-backend/internal/repository"
	"trip-share-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("JWT secret is not configured")
	}

	ctx := context.Background()

	// Initialize stores
	stores, closeStores := openStores(ctx, cfg.Database)
	defer closeStores()

	storage := openStorage(ctx, cfg.AWS)

	var (
		typing services.TypingIndicator
		tokens services.TokenRegistry
	)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
		}
		typing = services.NewRedisTyping(rdb)
		tokens = services.NewRedisTokens(rdb)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connection established")
	}

	var pusher services.Pusher
	if cfg.APNs.KeyPath != "" {
		p, err := services.NewAPNsPusher(services.APNsOptions{
			KeyPath:    cfg.APNs.KeyPath,
			KeyID:      cfg.APNs.KeyID,
			TeamID:     cfg.APNs.TeamID,
			Topic:      cfg.APNs.Topic,
			Production: cfg.APNs.Production,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs client")
		}
		pusher = p
	}

	mailer := email.NewSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)

	// Initialize services
	wsHub := services.NewWSHub()
	provisioner := services.NewRoomProvisioner(stores)
	history := services.NewHistoryRecorder(stores, provisioner)
	notifier := services.NewNotificationService(stores, wsHub, pusher)
	userService := services.NewUserService(stores, storage, services.UserOptions{
		JWTSecret:        cfg.JWT.Secret,
		AccessTTL:        cfg.JWT.AccessTTL,
		RefreshTTL:       cfg.JWT.RefreshTTL,
		ConfirmURL:       strings.TrimRight(cfg.App.PublicURL, "/") + "/auth/confirm",
		DefaultEstUserID: cfg.Defaults.EstUserID,
		AvatarsBucket:    cfg.AWS.AvatarsBucket,
		Mailer:           mailer,
		Tokens:           tokens,
	})
	tripService := services.NewTripService(stores, provisioner, history)
	applicationService := services.NewApplicationService(stores, provisioner, notifier)
	chatService := services.NewChatService(stores, storage, wsHub, services.ChatOptions{
		FilesBucket: cfg.AWS.ChatBucket,
		InviteURL:   cfg.App.InviteURL,
		Mailer:      mailer,
		Typing:      typing,
	})

	// Initialize handlers
	api := &handlers.API{
		Auth:         handlers.NewAuthHandler(userService, cfg.App.ConfirmRedirect),
		Trips:        handlers.NewTripHandler(tripService),
		Applications: handlers.NewApplicationHandler(applicationService, history),
		Chat:         handlers.NewChatHandler(chatService),
		Social: handlers.NewSocialHandler(
			services.NewReviewService(stores),
			services.NewReportService(stores),
			notifier,
		),
		WebSocket: handlers.NewWebSocketHandler(wsHub, userService, chatService),
		CronKey:   cfg.App.CronKey,
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	api.Mount(r, middleware.AuthMiddleware(userService))

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	// Hijacked websocket connections are not closed by Shutdown
	wsHub.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openStores connects the configured data store
func openStores(ctx context.Context, cfg config.DatabaseConfig) (services.Stores, func()) {
	if cfg.Driver == "memory" {
		log.Warn().Msg("Using in-memory store, data is lost on exit")
		return memoryStores(memstore.New()), func() {}
	}

	db, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	userRepo := repository.NewUserRepository(db, cfg.Schema, cfg.UsersTable)
	users := userRepo.Table()
	return services.Stores{
		Users:         userRepo,
		Trips:         repository.NewTripRepository(db),
		TripMembers:   repository.NewTripMemberRepository(db, users),
		Applications:  repository.NewApplicationRepository(db),
		Rooms:         repository.NewChatRoomRepository(db),
		RoomMembers:   repository.NewChatMemberRepository(db, users),
		Messages:      repository.NewChatMessageRepository(db),
		Pairs:         repository.NewPairRepository(db),
		History:       repository.NewTripHistoryRepository(db),
		Reviews:       repository.NewReviewRepository(db, users),
		Reports:       repository.NewReportRepository(db),
		Notifications: repository.NewNotificationRepository(db),
	}, db.Close
}

func memoryStores(st *memstore.Store) services.Stores {
	return services.Stores{
		Users:         st.Users,
		Trips:         st.Trips,
		TripMembers:   st.TripMembers,
		Applications:  st.Applications,
		Rooms:         st.Rooms,
		RoomMembers:   st.RoomMembers,
		Messages:      st.Messages,
		Pairs:         st.Pairs,
		History:       st.History,
		Reviews:       st.Reviews,
		Reports:       st.Reports,
		Notifications: st.Notifications,
	}
}

// openStorage returns S3 storage, or an in-memory bucket set when no
// credentials or endpoint are configured
func openStorage(ctx context.Context, cfg config.AWSConfig) services.ObjectStorage {
	if cfg.AccessKey == "" && cfg.Endpoint == "" {
		log.Warn().Msg("S3 is not configured, uploads are kept in memory")
		return memstore.NewObjects(cfg.PublicURL)
	}
	storage, err := services.NewS3Storage(ctx, services.S3Options{
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKey,
		SecretAccessKey: cfg.SecretKey,
		Endpoint:        cfg.Endpoint,
		PublicBaseURL:   cfg.PublicURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create S3 storage")
	}
	return storage
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

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

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Cron-Key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
