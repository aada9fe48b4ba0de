package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Harshil230205/e-book-backend/internal/usertoken"
	"github.com/Harshil230205/e-book-backend/pkg/storage"
	"github.com/Harshil230205/e-book-backend/pkg/store"
)

// Config holds the collaborators and settings of the application core.
type Config struct {
	Store       store.Store
	Ingester    *storage.Ingester
	Tokens      *usertoken.Issuer
	AdminSecret string
	TokenTTL    time.Duration
	Logger      *slog.Logger
}

// App implements the account and catalog operations.
type App struct {
	store       store.Store
	ingester    *storage.Ingester
	tokens      *usertoken.Issuer
	adminSecret string
	tokenTTL    time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// New validates cfg and constructs the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Ingester == nil {
		return nil, errors.New("ingester required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token issuer required")
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = usertoken.DefaultTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		store:       cfg.Store,
		ingester:    cfg.Ingester,
		tokens:      cfg.Tokens,
		adminSecret: cfg.AdminSecret,
		tokenTTL:    ttl,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// Ping checks the backing store.
func (a *App) Ping(ctx context.Context) error {
	return a.store.Ping(ctx)
}
