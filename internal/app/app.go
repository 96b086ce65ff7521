// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires the engines, the API server and the config watcher
// together and runs them until shutdown.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/wingedpig/launchpad/internal/api"
	"github.com/wingedpig/launchpad/internal/config"
	"github.com/wingedpig/launchpad/internal/events"
	"github.com/wingedpig/launchpad/internal/health"
	"github.com/wingedpig/launchpad/internal/launcher"
	"github.com/wingedpig/launchpad/internal/notify"
	"github.com/wingedpig/launchpad/internal/perf"
	"github.com/wingedpig/launchpad/internal/ports"
	"github.com/wingedpig/launchpad/internal/process"
	"github.com/wingedpig/launchpad/internal/tunnel"
	"github.com/wingedpig/launchpad/internal/watcher"
)

// App is the main application container.
type App struct {
	mu sync.Mutex

	configPath    string
	version       string
	loader        *config.Loader
	config        *config.Config
	eventBus      events.EventBus
	notifier      notify.Notifier
	supervisor    *process.Supervisor
	resolver      *ports.Resolver
	healthEngine  *health.Engine
	sampler       *perf.Sampler
	tunnels       *tunnel.ServiceMonitor
	coordinator   *launcher.Coordinator
	configWatcher *watcher.ConfigWatcher
	apiServer     *api.Server

	done     chan struct{}
	stopOnce sync.Once
	shutdown bool
}

// Options holds configuration options for the app.
type Options struct {
	ConfigPath string
	Host       string
	Port       int
	Version    string
}

// New loads the configuration and creates the event bus.
func New(opts Options) (*App, error) {
	app := &App{
		configPath: opts.ConfigPath,
		version:    opts.Version,
		loader:     config.NewLoader(),
		done:       make(chan struct{}),
	}

	cfg, err := app.loader.LoadWithDefaults(context.Background(), opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}
	app.config = cfg

	app.eventBus = events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: cfg.Events.History.MaxEvents,
		HistoryMaxAge:    config.ParseDuration(cfg.Events.History.MaxAge, time.Hour),
		// Output is kept per task by the supervisor
		HistoryExclude: []string{events.EventProcessOutput},
	})

	return app, nil
}

// Initialize builds every component.
func (app *App) Initialize(ctx context.Context) error {
	cfg := app.config

	app.notifier = notify.NewDesktopNotifier(app.eventBus, cfg.Notifications.IsEnabled())
	app.supervisor = process.NewSupervisor(app.eventBus, app.notifier)
	app.resolver = ports.NewResolver(ports.NewHostPlatform())
	app.healthEngine = health.NewEngine(app.eventBus, app.notifier, nil)
	app.tunnels = tunnel.NewServiceMonitor(app.eventBus, app.notifier)

	var store *perf.Store
	if cfg.Performance.IsEnabled() {
		dir := filepath.Join(cfg.DataDir, "performance")
		s, err := perf.NewStore(dir, cfg.Performance.MaxPersisted)
		if err != nil {
			// History stays in memory only
			log.Printf("Warning: performance history disabled: %v", err)
		} else {
			store = s
			log.Printf("Persisting performance history to %s", dir)
		}
	}
	app.sampler = perf.NewSampler(perf.OptionsFrom(cfg.Performance), perf.NewSystemInspector(), store, app.eventBus, app.notifier)

	coordinator, err := launcher.New(launcher.OptionsFrom(cfg.Launch), cfg.Projects, launcher.Deps{
		Supervisor: app.supervisor,
		Ports:      app.resolver,
		Health:     app.healthEngine,
		Perf:       app.sampler,
		Tunnels:    app.tunnels,
		Bus:        app.eventBus,
		Notifier:   app.notifier,
	})
	if err != nil {
		return fmt.Errorf("failed to create launcher: %w", err)
	}
	app.coordinator = coordinator
	log.Printf("Loaded %d project(s)", len(cfg.Projects))

	if cfg.Watch.IsEnabled() && app.configPath != "" {
		debounce := config.ParseDuration(cfg.Watch.Debounce, 250*time.Millisecond)
		w, err := watcher.NewConfigWatcher(app.configPath, debounce, app.eventBus, app.reload)
		if err != nil {
			log.Printf("Warning: config hot reload disabled: %v", err)
		} else {
			app.configWatcher = w
		}
	}

	app.apiServer = api.NewServer(api.ServerConfigFrom(cfg.Server), api.Dependencies{
		Projects: app.coordinator,
		Health:   app.healthEngine,
		Perf:     app.sampler,
		EventBus: app.eventBus,
		Notifier: app.notifier,
	})

	return nil
}

// reload re-reads the project list. Everything else in the file needs a
// restart to take effect.
func (app *App) reload(path string) error {
	cfg, err := app.loader.LoadWithDefaults(context.Background(), path)
	if err != nil {
		return err
	}

	app.mu.Lock()
	app.config.Projects = cfg.Projects
	app.mu.Unlock()

	app.coordinator.UpdateProjects(cfg.Projects)
	log.Printf("Reloaded %d project(s) from %s", len(cfg.Projects), path)
	return nil
}

// Projects returns the currently configured projects.
func (app *App) Projects() []config.Project {
	app.mu.Lock()
	defer app.mu.Unlock()
	return append([]config.Project(nil), app.config.Projects...)
}

// Start starts the API server in the background.
func (app *App) Start(ctx context.Context) error {
	go func() {
		log.Printf("Starting API server on %s:%d", app.config.Server.Host, app.config.Server.Port)
		if err := app.apiServer.ListenAndServe(); err != nil {
			log.Printf("API server error: %v", err)
			app.Stop()
		}
	}()
	return nil
}

// Run starts the app and blocks until shutdown.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case <-ctx.Done():
		log.Printf("Context cancelled, shutting down...")
	case <-app.done:
		log.Printf("Shutdown requested...")
	}

	return app.Shutdown(context.Background())
}

// Shutdown stops accepting requests, stops every running project and
// releases all resources. Calls after the first are no-ops.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	if app.shutdown {
		app.mu.Unlock()
		return nil
	}
	app.shutdown = true
	app.mu.Unlock()

	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop API server first to stop accepting new requests
	if app.apiServer != nil {
		if err := app.apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down API server: %v", err)
		}
	}

	if app.configWatcher != nil {
		app.configWatcher.Close()
	}

	if app.coordinator != nil {
		if err := app.coordinator.Close(shutdownCtx); err != nil {
			log.Printf("Error stopping projects: %v", err)
		}
	}

	if app.tunnels != nil {
		app.tunnels.Close()
	}
	if app.healthEngine != nil {
		app.healthEngine.Close()
	}
	if app.sampler != nil {
		app.sampler.Close()
	}
	if app.supervisor != nil {
		app.supervisor.Shutdown()
	}

	if app.eventBus != nil {
		app.eventBus.Close()
	}

	log.Println("Shutdown complete")
	return nil
}

// Stop signals the app to shut down. Safe to call multiple times.
func (app *App) Stop() {
	app.stopOnce.Do(func() {
		close(app.done)
	})
}
