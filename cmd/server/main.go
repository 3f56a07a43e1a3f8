package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/creature-draft-backend/internal/catalog"
	"github.com/DoyleJ11/creature-draft-backend/internal/config"
	"github.com/DoyleJ11/creature-draft-backend/internal/draft"
	"github.com/DoyleJ11/creature-draft-backend/internal/httpapi"
	"github.com/DoyleJ11/creature-draft-backend/internal/lobby"
	"github.com/DoyleJ11/creature-draft-backend/internal/logging"
	"github.com/DoyleJ11/creature-draft-backend/internal/repository"
	"github.com/DoyleJ11/creature-draft-backend/internal/store"
	"github.com/DoyleJ11/creature-draft-backend/internal/store/gormstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	clock := clockwork.NewRealClock()

	st, closeStore, err := openStore(ctx, cfg, log, clock)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.SeedFile != "" {
		seed, err := catalog.LoadSeed(cfg.SeedFile)
		if err != nil {
			return err
		}
		applied, err := catalog.Apply(ctx, st, seed)
		if err != nil {
			return fmt.Errorf("apply seed: %w", err)
		}
		log.Info("catalog seed checked",
			zap.String("file", cfg.SeedFile),
			zap.Bool("applied", applied),
			zap.Int("creatures", len(seed.Creatures)))
	}

	drafts := repository.NewDrafts(st)
	// Lobbies outlive ctx so in-flight commands can finish during shutdown.
	h := draft.NewHub(context.WithoutCancel(ctx), drafts, clock, log, lobby.Config{IdleTimeout: cfg.LobbyIdleTimeout})
	svc := draft.NewService(catalog.New(st), drafts, h, clock, log)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.SetupRoutes(svc, log, cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		return errors.Join(err, h.Shutdown(sctx))
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, log *zap.Logger, clock clockwork.Clock) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store")
		return store.NewMemory(clock), func() {}, nil
	}

	gs, err := gormstore.Open(ctx, cfg.DatabaseURL, log, clock)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return gs, func() {
		if err := gs.Close(); err != nil {
			log.Warn("close database", zap.Error(err))
		}
	}, nil
}
