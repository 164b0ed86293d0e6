package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/AgentRelay/internal/adapter/github"
	relayhttp "github.com/Strob0t/AgentRelay/internal/adapter/http"
	relaynats "github.com/Strob0t/AgentRelay/internal/adapter/nats"
	relayotel "github.com/Strob0t/AgentRelay/internal/adapter/otel"
	"github.com/Strob0t/AgentRelay/internal/adapter/slack"
	"github.com/Strob0t/AgentRelay/internal/config"
	"github.com/Strob0t/AgentRelay/internal/dispatch"
	"github.com/Strob0t/AgentRelay/internal/logger"
	"github.com/Strob0t/AgentRelay/internal/port/messagequeue"
	"github.com/Strob0t/AgentRelay/internal/runner"
	"github.com/Strob0t/AgentRelay/internal/sandbox"
	"github.com/Strob0t/AgentRelay/internal/worker"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"agent_binary", cfg.Worker.AgentBinary,
		"sandbox_root", cfg.Sandbox.Root,
		"max_deliver", cfg.NATS.MaxDeliver,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	shutdownTelemetry, err := relayotel.Setup(ctx, cfg.Logging.Service, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown failed", "error", err)
		}
	}()

	metrics, err := relayotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---
	queue, err := relaynats.Connect(ctx, cfg.NATS)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	// --- Sinks ---
	github.Register()
	slack.Register()

	// --- Worker pipeline ---
	dispatcher := dispatch.NewDispatcher(cfg.Breaker, log)
	sandboxes := sandbox.NewProvisioner(cfg.Sandbox.Root, log)
	w := worker.New(cfg.Worker, sandboxes, runner.New(log), dispatcher, metrics, log)

	cancelConsume, err := queue.Subscribe(ctx, messagequeue.SubjectTaskDispatch, w.Handle)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	defer cancelConsume()

	// --- HTTP ingress ---
	handlers := &relayhttp.Handlers{Queue: queue, Log: log}
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           relayhttp.NewRouter(handlers, cfg.Server.IngressSecret),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting ingress", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("ingress: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		// Stop taking new messages, let the in-flight pass finish, then
		// drain the connection.
		cancelConsume()
		if err := queue.Drain(); err != nil {
			slog.Error("nats drain failed", "error", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
