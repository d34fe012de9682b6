// Package control assembles the fault manager, its archive sink and the
// health servers into one runnable application.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/faultline/internal/archive"
	"github.com/vietddude/faultline/internal/core/capability"
	"github.com/vietddude/faultline/internal/core/config"
	"github.com/vietddude/faultline/internal/health"
	"github.com/vietddude/faultline/internal/manager"
	"github.com/vietddude/faultline/internal/recovery"
)

const shutdownTimeout = 10 * time.Second

// Options carries the optional host collaborators.
type Options struct {
	Subsystems capability.Subsystems
	Notifier   capability.Notifier
}

// App is the main application struct that manages the component lifecycle.
type App struct {
	cfg        *config.AppConfig
	manager    *manager.FaultManager
	sink       archive.Sink
	rotator    *manager.Rotator
	monitor    *health.Monitor
	httpServer *health.Server
	grpcServer *health.GRPCServer
	log        *slog.Logger
}

// New creates a new App with all dependencies initialized.
func New(ctx context.Context, cfg *config.AppConfig, opts Options) (*App, error) {
	env := capability.EnvironmentDescriptor{Kind: capability.ParseEnvironmentKind(cfg.Environment)}

	// 1. Fault manager
	mgr, err := manager.New(manager.Options{
		Environment: env,
		Subsystems:  opts.Subsystems,
		Notifier:    opts.Notifier,
		Probe:       recovery.ProbeConfig{URL: cfg.Fault.ProbeURL},
		Config: manager.Config{
			MaxLogSize:          cfg.Fault.MaxLogSize,
			MaxRecoveryAttempts: cfg.Fault.MaxRecoveryAttempts,
			SeverityRules:       cfg.Fault.SeverityRules,
			ContextPatterns:     cfg.Fault.ContextPatterns,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init fault manager: %w", err)
	}

	// 2. Archive sink
	sink, err := archive.Open(ctx, cfg.Archive.Kind, cfg.Archive.Redis, cfg.Archive.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to init archive sink: %w", err)
	}
	if sink != nil {
		slog.Info("Archive sink ready", "sink", sink.Name())
	}

	// 3. Health
	monitor := health.NewMonitor(mgr, 0)
	app := &App{
		cfg:        cfg,
		manager:    mgr,
		sink:       sink,
		rotator:    manager.NewRotator(mgr, sink, cfg.Fault.RotateInterval),
		monitor:    monitor,
		httpServer: health.NewServer(monitor, cfg.Server.Port),
		log:        slog.Default(),
	}
	if cfg.Server.GRPCPort > 0 {
		app.grpcServer = health.NewGRPCServer(monitor, cfg.Server.GRPCPort)
	}
	return app, nil
}

// Run serves until ctx is done, then shuts everything down. It returns the
// first component error.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("Health server listening", "port", a.cfg.Server.Port)
		if err := a.httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})

	if a.grpcServer != nil {
		g.Go(func() error {
			a.log.Info("gRPC health server listening", "port", a.cfg.Server.GRPCPort)
			if err := a.grpcServer.Start(); err != nil {
				return fmt.Errorf("grpc health server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			a.grpcServer.Watch(gctx)
			return nil
		})
	}

	g.Go(func() error {
		a.rotator.Start(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return a.stopServers(shutdownCtx)
	})

	err := g.Wait()

	if a.sink != nil {
		if cerr := a.sink.Close(); cerr != nil {
			a.log.Warn("Failed to close archive sink", "error", cerr)
		}
	}
	a.log.Info("Faultline stopped")
	return err
}

func (a *App) stopServers(ctx context.Context) error {
	a.log.Info("Stopping Faultline...")
	if a.grpcServer != nil {
		a.grpcServer.Stop()
	}
	if err := a.httpServer.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop health server: %w", err)
	}
	return nil
}
