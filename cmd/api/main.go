package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"auditflow/arbitration"
	"auditflow/auth"
	"auditflow/bid"
	"auditflow/chain"
	"auditflow/config"
	"auditflow/db"
	"auditflow/httpapi"
	"auditflow/post"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, "migrations"); err != nil {
		return err
	}

	gateway := chain.NewClient(chain.ClientConfig{
		NodeURL:        cfg.NodeURL,
		EscrowContract: cfg.EscrowContract,
		VotingAddress:  cfg.VotingAddress,
		SigningKey:     cfg.SigningKey,
		CallTimeout:    cfg.ChainCallTimeout,
		SendTimeout:    cfg.ChainSendTimeout,
		Logger:         logger,
	})

	authService := auth.NewService(cfg.JWTSecret)
	postService := post.NewService(post.NewRepository(pool), gateway, logger)
	bidService := bid.NewService(bid.NewRepository(pool), post.NewRepository(pool), logger)
	coordinator := arbitration.NewCoordinator(
		arbitration.NewRepository(pool), post.NewRepository(pool), gateway,
		cfg.ArbiterAddresses(), logger)

	handler := httpapi.NewHandler(postService, bidService, coordinator, pool, logger)
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewRouter(handler, authService),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := coordinator.RunSweeper(gctx, cfg.SweepInterval)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
