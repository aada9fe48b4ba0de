package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Harshil230205/e-book-backend/internal/app"
	"github.com/Harshil230205/e-book-backend/internal/config"
	"github.com/Harshil230205/e-book-backend/internal/metrics"
	"github.com/Harshil230205/e-book-backend/internal/ratelimit"
	"github.com/Harshil230205/e-book-backend/internal/server"
	"github.com/Harshil230205/e-book-backend/internal/usertoken"
	"github.com/Harshil230205/e-book-backend/internal/util"
	"github.com/Harshil230205/e-book-backend/pkg/storage"
	"github.com/Harshil230205/e-book-backend/pkg/store"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dataStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := dataStore.Close(closeCtx); err != nil {
			logger.Error("store close failed", "err", err)
		}
	}()

	objects, err := storage.NewMinioStore(ctx, storage.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		log.Fatalf("failed to init object storage: %v", err)
	}

	tokenTTL, err := config.ParseTokenTTL(cfg.TokenTTL)
	if err != nil {
		log.Fatalf("failed to parse token ttl: %v", err)
	}
	tokens, err := usertoken.NewIssuer(usertoken.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	if err != nil {
		log.Fatalf("failed to init token issuer: %v", err)
	}

	appCore, err := app.New(app.Config{
		Store:       dataStore,
		Ingester:    storage.NewIngester(objects, cfg.StoragePublicBaseURL),
		Tokens:      tokens,
		AdminSecret: cfg.AdminSecret,
		TokenTTL:    tokenTTL,
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}
	serverCfg := server.Config{
		App:            appCore,
		Tokens:         tokens,
		Metrics:        metrics.New(),
		TrustedProxies: trusted,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer redisClient.Close()
		serverCfg.SignupLimiter = newLimiter(redisClient, "ebook:ratelimit:signup", cfg.SignupRateLimitPerMinute)
		serverCfg.LoginLimiter = newLimiter(redisClient, "ebook:ratelimit:login", cfg.LoginRateLimitPerMinute)
	} else {
		logger.Warn("redis not configured, auth rate limiting disabled")
	}

	httpServer, err := server.New(serverCfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "err", err)
		}
	}()

	slog.Info("ebook server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
	}
}

func openStore(ctx context.Context, cfg config.FileConfig) (store.Store, error) {
	kind, err := config.DatabaseKind(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if kind == "mongo" {
		return store.NewMongoStore(ctx, cfg.DatabaseURL, cfg.DatabaseName)
	}
	return store.NewGormStore(cfg.DatabaseURL)
}

// newLimiter returns nil, which disables limiting, when perMinute is zero.
func newLimiter(client *redis.Client, prefix string, perMinute int) server.RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	limiter, err := ratelimit.NewFixedWindowLimiter(client, ratelimit.Config{Prefix: prefix, Limit: perMinute, Window: time.Minute})
	if err != nil {
		log.Fatalf("failed to init rate limiter: %v", err)
	}
	return limiter
}
