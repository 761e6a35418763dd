// Package app wires configuration, stores, services and transport into one
// runnable server.
package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/avolkhov/mxchat-server/internal/auth"
	"github.com/avolkhov/mxchat-server/internal/config"
	"github.com/avolkhov/mxchat-server/internal/coordstore"
	badgerstore "github.com/avolkhov/mxchat-server/internal/coordstore/badger"
	"github.com/avolkhov/mxchat-server/internal/room"
	"github.com/avolkhov/mxchat-server/internal/store"
	"github.com/avolkhov/mxchat-server/internal/store/sqlite"
	transporthttp "github.com/avolkhov/mxchat-server/internal/transport/http"
)

// App holds the running server and the resources it owns.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	coord           coordstore.Store
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with the provided configuration. There is
// exactly one coordination store client per process; every component gets
// it by parameter, never by global lookup.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret must be configured")
	}

	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	coord, err := badgerstore.Open(cfg.CoordPath, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init coordination store: %w", err)
	}
	logger.Info().Str("coord_path", cfg.CoordPath).Msg("coordination store initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.TokenTTL,
	}
	authService := auth.NewService(st, jwtConfig, cfg.ServerName)

	creator := room.NewCreator(cfg.ServerName, coord, st, logger)
	server := transporthttp.NewServer(creator, authService, coord, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		coord:           coord,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes both stores.
func (a *App) cleanup() {
	if a.coord != nil {
		if err := a.coord.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close coordination store")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
