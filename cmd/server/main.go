package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	accountrepo "accounts-api/internal/account/repository"
	accountservice "accounts-api/internal/account/service"
	"accounts-api/internal/audit"
	auditrepo "accounts-api/internal/audit/repository"
	authservice "accounts-api/internal/auth/service"
	"accounts-api/internal/cache"
	"accounts-api/internal/config"
	"accounts-api/internal/db"
	"accounts-api/internal/security"
	"accounts-api/internal/server"
	sessionrepo "accounts-api/internal/session/repository"
	"accounts-api/internal/telemetry/otel"
)

const shutdownTimeout = 10 * time.Second

func main() {
	log := newLogger("info")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if err := cfg.ValidateSecrets(); err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	log = newLogger(cfg.LogLevel)

	ctx := context.Background()
	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "accounts-api", cfg.OTLPInsecure)
	if err != nil {
		log.Fatal().Err(err).Msg("telemetry")
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("telemetry shutdown")
		}
	}()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer conn.Close()

	redisClient, err := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	hasher := security.NewHasher(cfg.ArgonSecret, cfg.ArgonIterations, cfg.ArgonMemorySize)
	codec := security.NewTokenCodec(cfg.JWTSecret)
	eventRepo := auditrepo.NewPostgresRepository(conn)
	recorder := audit.NewLogger(eventRepo, log)

	auth, err := authservice.NewAuthService(
		accountrepo.NewPostgresRepository(conn),
		sessionrepo.NewPostgresRepository(conn),
		cache.NewRedisStore(redisClient),
		hasher,
		codec,
		cfg.SessionLifetime(),
		log,
		authservice.WithRecorder(recorder),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("auth service")
	}

	accounts, err := accountservice.NewService(accountrepo.NewPostgresRepository(conn), hasher)
	if err != nil {
		log.Fatal().Err(err).Msg("account service")
	}

	checks := map[string]server.HealthCheck{
		"postgres": conn.PingContext,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}

	srv, err := server.NewServer(cfg.HTTPAddr, auth, accounts, eventRepo, checks, log)
	if err != nil {
		log.Fatal().Err(err).Msg("server")
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("serve")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("http server stopped")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
