package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/clock"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/log"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/config"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/gateways/alarm"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/gateways/notify"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/gateways/sitefile"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/gateways/transport"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/gateways/wire"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/repos/kv"
	rulesrepo "github.com/SujathaSimmala2829/Focus-blocker/internal/focus/repos/rules"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/repos/rules/bloom"
	rulesbolt "github.com/SujathaSimmala2829/Focus-blocker/internal/focus/repos/rules/bolt"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/repos/rules/lru"
	sessionrepo "github.com/SujathaSimmala2829/Focus-blocker/internal/focus/repos/session"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/repos/sitelist"
	"github.com/SujathaSimmala2829/Focus-blocker/internal/focus/services/session"
)

// Namespaces inside the state database.
const (
	nsSites   = "sync"
	nsSession = "local"
	nsAlarms  = "alarms"
)

const defaultShutdownTimeout = 10 * time.Second

// Application holds all the components of the focus daemon.
type Application struct {
	config     *config.AppConfig
	db         *kv.DB
	rules      rulesrepo.Store
	engine     rulesrepo.Repository
	controller *session.Controller
	handler    *session.Handler
	alarms     *alarm.Service
	transport  *transport.UnixTransport
	watcher    *sitefile.Watcher
	logger     log.Logger
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the focus daemon",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := log.Configure(cfg.Env, cfg.Log.Level); err != nil {
		return fmt.Errorf("logging configuration error: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info(map[string]any{
		"version":         version,
		"env":             cfg.Env,
		"log_level":       cfg.Log.Level,
		"store":           cfg.Store.Path,
		"socket":          cfg.Control.Socket,
		"default_minutes": cfg.Session.DefaultMinutes,
		"sites_file":      cfg.Sites.File,
	}, "Starting focus daemon")

	app, err := buildApplication(cfg, clock.RealClock{})
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn(map[string]any{"error": err}, "Error while closing application")
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		return err
	}

	log.Info(nil, "Focus daemon stopped gracefully")
	return nil
}

// buildApplication constructs all components and wires them together.
func buildApplication(cfg *config.AppConfig, clk clock.TimerClock) (*Application, error) {
	logger := log.GetLogger()

	db, err := kv.Open(cfg.Store.Path, nsSites, nsSession, nsAlarms)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	app, err := wireApplication(cfg, db, clk, logger)
	if err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	return app, nil
}

func wireApplication(cfg *config.AppConfig, db *kv.DB, clk clock.TimerClock, logger log.Logger) (*Application, error) {
	// Repository layer
	store, err := rulesbolt.New(db.Bolt())
	if err != nil {
		return nil, fmt.Errorf("failed to open rule store: %w", err)
	}
	cache, err := lru.New(cfg.Engine.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision cache: %w", err)
	}
	engine, err := rulesrepo.NewRepository(rulesrepo.RepositoryOptions{
		Store:   store,
		Cache:   cache,
		Factory: bloom.NewFactory(),
		FPRate:  cfg.Engine.FPRate,
		Clock:   clk,
		Logger:  log.Component(logger, "engine"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load rule engine: %w", err)
	}
	sites := sitelist.NewRepository(db.Namespace(nsSites))

	fields := engineStatsFields(engine.Stats())
	fields["cache_size"] = cfg.Engine.CacheSize
	fields["fp_rate"] = cfg.Engine.FPRate
	log.Info(fields, "Rule engine loaded")

	// Gateway layer
	alarms := alarm.New(db.Namespace(nsAlarms), clk, log.Component(logger, "alarms"))
	notifier := notify.NewLogNotifier(log.Component(logger, "notify"))

	// Service layer
	controller, err := session.NewController(session.Options{
		Store:          sessionrepo.NewRepository(db.Namespace(nsSession)),
		Sites:          sites,
		Engine:         engine,
		Alarms:         alarms,
		Notifier:       notifier,
		Clock:          clk,
		Logger:         log.Component(logger, "controller"),
		DefaultMinutes: float64(cfg.Session.DefaultMinutes),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session controller: %w", err)
	}

	// Transport layer
	unix := transport.NewUnixTransport(transport.UnixOptions{
		Path:   cfg.Control.Socket,
		Codec:  wire.NewJSONCodec(),
		Logger: log.Component(logger, "transport"),
		MaxRPS: float64(cfg.Control.RateLimit),
	})

	app := &Application{
		config:     cfg,
		db:         db,
		rules:      store,
		engine:     engine,
		controller: controller,
		handler:    session.NewHandler(controller, engine, sites, log.Component(logger, "handler")),
		alarms:     alarms,
		transport:  unix,
		logger:     logger,
	}
	if cfg.Sites.File != "" {
		app.watcher = sitefile.New(sitefile.Options{
			Path:   cfg.Sites.File,
			Sites:  sites,
			Logger: log.Component(logger, "sitefile"),
		})
	}
	return app, nil
}

// Run recovers the persisted session, starts the alarm service and the
// control socket, and blocks until ctx is cancelled.
func (app *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if app.watcher != nil {
		if n, err := app.watcher.Import(ctx); err != nil {
			app.logger.Warn(map[string]any{"error": err, "path": app.config.Sites.File}, "Site file import failed")
		} else {
			app.logger.Info(map[string]any{"sites": n, "path": app.config.Sites.File}, "Site file imported")
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.watcher.Run(ctx); err != nil {
				app.logger.Warn(map[string]any{"error": err}, "Site file watcher stopped")
			}
		}()
	}

	st, err := app.controller.Recover(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover session: %w", err)
	}
	app.logger.Info(map[string]any{
		"blocking":  st.IsBlocking,
		"block_end": st.BlockEnd,
		"rules":     st.Rules,
	}, "Session state recovered")

	if err := app.alarms.Start(ctx, app.onAlarm); err != nil {
		return fmt.Errorf("failed to start alarm service: %w", err)
	}
	defer app.alarms.Stop()

	if err := app.transport.Start(ctx, app.handler); err != nil {
		return fmt.Errorf("failed to start control socket: %w", err)
	}

	app.logger.Info(map[string]any{
		"address":   app.transport.Address(),
		"transport": "unix",
	}, "Focus daemon started")

	<-ctx.Done()
	app.logger.Info(nil, "Shutdown initiated")

	if err := app.transport.Stop(); err != nil {
		app.logger.Warn(map[string]any{"error": err}, "Error during transport shutdown")
	}
	app.logger.Info(engineStatsFields(app.engine.Stats()), "Rule engine stats")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		app.logger.Info(nil, "Graceful shutdown completed")
		return nil
	case <-time.After(defaultShutdownTimeout):
		app.logger.Warn(map[string]any{"timeout": defaultShutdownTimeout}, "Shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout")
	}
}

func (app *Application) onAlarm(ctx context.Context, name string) {
	if err := app.controller.Expire(ctx, name); err != nil {
		app.logger.Error(map[string]any{"error": err, "alarm": name}, "Failed to end session")
	}
}

// engineStatsFields flattens engine counters into log fields.
func engineStatsFields(st rulesrepo.EngineStats) map[string]any {
	return map[string]any{
		"rules":           st.Store.Rules,
		"rules_version":   st.Store.Version,
		"anchored":        st.Anchored,
		"floating":        st.Floating,
		"pinned_hosts":    st.Hosts,
		"cache_hits":      st.Hits,
		"cache_misses":    st.Misses,
		"cache_evictions": st.Evictions,
	}
}

// Close releases the rule store and the state database.
func (app *Application) Close() error {
	return multierr.Combine(app.rules.Close(), app.db.Close())
}
