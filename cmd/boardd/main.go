package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/park285/cheese-board/internal/boardbuilder"
	appcfg "github.com/park285/cheese-board/internal/config"
	"github.com/park285/cheese-board/internal/obslog"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	logger.Info("boardd_starting",
		zap.String("board", cfg.BoardID),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Bool("sensor", cfg.SensorWSURL != ""),
		zap.Bool("redis", cfg.RedisURL != ""),
		zap.Duration("clock_initial", cfg.ClockInitial),
		zap.Duration("clock_increment", cfg.ClockIncrement),
		zap.Bool("resolve_captures", cfg.ResolveCaptures),
	)

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := boardbuilder.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("boardd_init_failed", zap.Error(err))
	}

	runErr := deps.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := deps.Close(closeCtx); err != nil {
		logger.Warn("boardd_close", zap.Error(err))
	}
	if runErr != nil {
		logger.Error("boardd_stopped", zap.Error(runErr))
		os.Exit(1)
	}
	logger.Info("boardd_stopped")
}
