package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"log/slog"

	redis "github.com/redis/go-redis/v9"
	"github.com/splax/classscribe/api/internal/app/migrate"
	"github.com/splax/classscribe/api/internal/events"
	httpx "github.com/splax/classscribe/api/internal/http"
	"github.com/splax/classscribe/api/internal/mail"
	"github.com/splax/classscribe/api/internal/repository"
	"github.com/splax/classscribe/api/internal/repository/memory"
	"github.com/splax/classscribe/api/internal/repository/postgres"
	"github.com/splax/classscribe/api/internal/revocation"
	"github.com/splax/classscribe/api/internal/service/auth"
	"github.com/splax/classscribe/api/internal/service/profile"
	"github.com/splax/classscribe/api/internal/storage/avatar"
	"github.com/splax/classscribe/pkg/config"
	jwtpkg "github.com/splax/classscribe/pkg/jwt"
	"github.com/splax/classscribe/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	users, dbHealth, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open user store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	issuer, err := jwtpkg.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)
	if err != nil {
		log.Error("failed to configure token issuer", "error", err)
		os.Exit(1)
	}
	if cfg.Environment == "production" && cfg.JWTSecret == "change-me-in-production" {
		log.Error("JWT_SECRET must be set in production")
		os.Exit(1)
	}

	limiter := httpx.NewMemoryRateLimiter()
	revoked := revocation.NewMemoryList()
	if addr := strings.TrimSpace(cfg.RedisAddr); addr != "" {
		client, err := connectRedis(ctx, cfg)
		if err != nil {
			log.Warn("redis unavailable, using in-process rate limits and revocation", "addr", addr, "error", err)
		} else {
			defer client.Close()
			limiter.Close()
			_ = revoked.Close()
			limiter = httpx.NewRedisRateLimiter(client, log)
			revoked = revocation.NewRedisList(client)
			log.Info("redis connected", "addr", addr)
		}
	}
	defer revoked.Close()

	publisher := events.Publisher(events.Nop{})
	if url := strings.TrimSpace(cfg.NATSURL); url != "" {
		natsPub, err := events.NewNATSPublisher(url, cfg.EventsSubjectPrefix)
		if err != nil {
			log.Warn("nats unavailable, domain events disabled", "url", url, "error", err)
		} else {
			publisher = natsPub
			log.Info("nats connected", "url", url)
		}
	}
	defer publisher.Close()

	authSvc := auth.New(users, issuer, log, cfg,
		auth.WithMailer(newMailer(cfg, log)),
		auth.WithPublisher(publisher),
		auth.WithRevocationList(revoked),
	)

	var avatars profile.AvatarPresigner
	if cfg.AvatarsEnabled() {
		uploads, err := avatar.New(ctx, avatar.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
			TTL:       cfg.AvatarUploadTTL,
		})
		if err != nil {
			log.Warn("avatar uploads disabled", "error", err)
		} else {
			avatars = uploads
		}
	}
	profileSvc := profile.New(users, avatars, publisher, log)

	router := httpx.NewRouter(log, authSvc, profileSvc, limiter, dbHealth)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "store", cfg.StoreDriver, "mail", cfg.MailProvider)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

// openStore returns the configured user store, a health probe (nil for the
// memory store) and a cleanup func.
func openStore(ctx context.Context, cfg config.APIConfig, log *slog.Logger) (repository.UserRepository, func(context.Context) error, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMemory, "":
		log.Warn("using in-memory user store; accounts are lost on restart")
		return memory.New(), nil, func() {}, nil
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if cfg.AutoMigrate {
			if err := runMigrations(ctx, db, cfg, log); err != nil {
				db.Close()
				return nil, nil, nil, err
			}
		}
		return postgres.New(db), db.PingContext, func() { db.Close() }, nil
	default:
		return nil, nil, nil, errors.New("unknown STORE_DRIVER " + cfg.StoreDriver)
	}
}

func runMigrations(ctx context.Context, db *sql.DB, cfg config.APIConfig, log *slog.Logger) error {
	runner, err := migrate.New(db, cfg.MigrationsDir, log)
	if err != nil {
		return err
	}
	return runner.Ensure(ctx)
}

func connectRedis(ctx context.Context, cfg config.APIConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func newMailer(cfg config.APIConfig, log *slog.Logger) mail.Mailer {
	switch cfg.MailProvider {
	case config.MailResend:
		if cfg.MailAPIKey != "" {
			return mail.NewResendMailer(cfg.MailAPIKey, cfg.MailFrom)
		}
	case config.MailSendGrid:
		if cfg.MailAPIKey != "" {
			return mail.NewSendGridMailer(cfg.MailAPIKey, cfg.MailFrom)
		}
	case config.MailLog, "":
		return mail.NewLogMailer(log)
	}
	log.Warn("mail provider not usable, logging messages instead", "provider", cfg.MailProvider)
	return mail.NewLogMailer(log)
}
