package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/leavewise/compliance-server-go/internal/assistant"
	"github.com/leavewise/compliance-server-go/internal/config"
	"github.com/leavewise/compliance-server-go/internal/database"
	"github.com/leavewise/compliance-server-go/internal/handler"
	"github.com/leavewise/compliance-server-go/internal/jobs"
	"github.com/leavewise/compliance-server-go/internal/mail"
	"github.com/leavewise/compliance-server-go/internal/middleware"
	"github.com/leavewise/compliance-server-go/internal/redis"
	"github.com/leavewise/compliance-server-go/internal/repository"
	"github.com/leavewise/compliance-server-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	resetRepo := repository.NewPasswordResetRepository(db)
	codeRepo := repository.NewAccessCodeRepository(db)
	convRepo := repository.NewConversationRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	apiConfigRepo := repository.NewAPIConfigRepository(db)

	rateLimiter := service.NewRateLimiter(redisClient.Client)
	mailer := mail.NewLogMailer()

	codeService := service.NewAccessCodeService(codeRepo)
	authService := service.NewAuthService(
		userRepo, sessionRepo, resetRepo, codeService, mailer, rateLimiter,
		cfg.SessionSecret,
	)
	clientFactory := assistant.NewClientFactory(!cfg.IsProduction())
	assistantService := service.NewAssistantService(
		convRepo, apiConfigRepo, settingRepo, clientFactory,
		cfg.Model, cfg.MaxTokens, cfg.Temperature,
	)
	settingsService := service.NewSettingsService(settingRepo)
	adminService := service.NewAdminService(
		db, userRepo, codeRepo, convRepo, apiConfigRepo, settingRepo,
	)

	sessionMW := middleware.NewSessionMiddleware(authService)
	csrfMW := middleware.NewCSRFMiddleware()
	bodyLimitMW := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMW := middleware.NewSecurityHeadersMiddleware(cfg.IsProduction())

	authHandler := handler.NewAuthHandler(authService, codeService, sessionMW, csrfMW, cfg.IsProduction())
	assistantHandler := handler.NewAssistantHandler(assistantService, sessionMW, csrfMW)
	adminHandler := handler.NewAdminHandler(
		adminService, codeService, settingsService, assistantService, sessionMW, csrfMW,
	)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMW.Handler)
	r.Use(securityHeadersMW.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes())
		r.Mount("/assistant", assistantHandler.Routes())
		r.Mount("/admin", adminHandler.Routes())
	})

	cleanupJob := jobs.NewCleanupJob(sessionRepo, resetRepo, codeRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
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
