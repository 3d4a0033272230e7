package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alephbunnies/bunny_token/internal/config"
	"github.com/alephbunnies/bunny_token/internal/events"
	"github.com/alephbunnies/bunny_token/internal/infra"
	"github.com/alephbunnies/bunny_token/internal/ledger"
	"github.com/alephbunnies/bunny_token/internal/logging"
	"github.com/alephbunnies/bunny_token/internal/server"
	"github.com/alephbunnies/bunny_token/internal/token"
)

const eventStreamMaxLen = 100_000

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.AppName, cfg.AppEnv)

	ctx := context.Background()

	backends, err := infra.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("connect backends", "error", err)
		os.Exit(1)
	}
	defer backends.Close(logger)

	var store ledger.Ledger
	if backends.DB != nil {
		if err := ledger.Migrate(ctx, backends.DB); err != nil {
			logger.Error("migrate ledger", "error", err)
			os.Exit(1)
		}
		store = ledger.NewPostgresLedger(backends.DB)
	} else {
		store = ledger.NewInMemory()
	}

	sinks := events.Multi{events.NewLoggerSink(logger)}
	if backends.Cache != nil {
		sinks = append(sinks, events.NewRedisSink(backends.Cache, cfg.EventStream, eventStreamMaxLen))
	}

	tok, err := token.Open(ctx, store, cfg.TotalSupply, cfg.Creator, cfg.MarketingWallet,
		token.WithLogger(logger),
		token.WithSink(sinks),
		token.WithAirdropStartTime(cfg.AirdropStartTime),
	)
	if err != nil {
		logger.Error("open token", "error", err)
		os.Exit(1)
	}

	srv, err := server.New(cfg, backends, tok, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
