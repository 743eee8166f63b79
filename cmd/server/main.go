package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tapeshchavle/cicd/internal/http/health"
	"github.com/tapeshchavle/cicd/internal/platform/config"
	"github.com/tapeshchavle/cicd/internal/platform/logging"
	"github.com/tapeshchavle/cicd/internal/platform/tracing"
	"github.com/tapeshchavle/cicd/internal/server"
)

// Version can be overridden at build time: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

// tracerShutdownTimeout bounds the final span flush on exit.
const tracerShutdownTimeout = 5 * time.Second

func main() {
	if err := run(context.Background()); err != nil {
		logging.LogFatal(context.Background(), "server failed", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	err = logging.Setup(logging.Options{Level: cfg.LogLevel, Service: health.ServiceName})
	if err != nil && !errors.Is(err, logging.ErrAlreadyInitialized) {
		return fmt.Errorf("init logger: %w", err)
	}
	// The logger may already have been built by an earlier Logger call.
	if err := logging.Err(); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		if err := logging.Sync(); err != nil {
			logging.LogError(context.Background(), "logger sync error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		ServiceName:    health.ServiceName,
		Version:        Version,
		Endpoint:       cfg.Tracing.Endpoint,
		TracesEndpoint: cfg.Tracing.TracesEndpoint,
		Protocol:       cfg.Tracing.Protocol,
		Sampler:        cfg.Tracing.Sampler,
		SamplerArg:     cfg.Tracing.SamplerArg,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), tracerShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logging.LogError(flushCtx, "tracer shutdown error", err)
		}
	}()

	srv, err := server.New(cfg, Version)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	logging.LogInfo(ctx, "starting server",
		zap.String("version", Version),
		zap.String("addr", cfg.Addr()),
		zap.Bool("tracing", cfg.Tracing.Enabled()),
		zap.Bool("metrics", cfg.MetricsEnabled),
	)
	return srv.Run(ctx)
}
