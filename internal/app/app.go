// Package app assembles the proxy: configuration, the watched settings
// snapshot, the proxy pool, selection, transport, the request handler and
// every long-lived background task, managed as services with explicit
// dependency ordering.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/thushan/warren/internal/adapter/archive"
	"github.com/thushan/warren/internal/adapter/health"
	"github.com/thushan/warren/internal/adapter/proxy"
	"github.com/thushan/warren/internal/adapter/ratelimit"
	"github.com/thushan/warren/internal/adapter/repository"
	"github.com/thushan/warren/internal/adapter/selector"
	"github.com/thushan/warren/internal/adapter/sink"
	"github.com/thushan/warren/internal/adapter/stats"
	"github.com/thushan/warren/internal/adapter/transport"
	"github.com/thushan/warren/internal/app/handlers"
	"github.com/thushan/warren/internal/app/services"
	"github.com/thushan/warren/internal/config"
	"github.com/thushan/warren/internal/core/constants"
	"github.com/thushan/warren/internal/core/domain"
	"github.com/thushan/warren/internal/core/ports"
	"github.com/thushan/warren/internal/logger"
)

// Application wires every component and drives the service lifecycle.
type Application struct {
	config     *config.Config
	watcher    *config.SettingsWatcher
	manager    *services.ServiceManager
	repository *repository.MemoryProxyRepository
	selector   *selector.DynamicSelector
	sink       *sink.BroadcastSink
	server     *proxy.Server
	logger     *logger.StyledLogger
}

// New builds the full component graph from cfg. Nothing starts running
// until Start.
func New(cfg *config.Config, styledLogger *logger.StyledLogger) (*Application, error) {
	watcher := config.NewSettingsWatcher(cfg.Settings.ToSettings())
	settings := watcher.Current()

	repo := repository.NewMemoryProxyRepository(styledLogger)
	seeded := 0
	for _, entry := range cfg.Proxies {
		p, err := entry.ToProxy()
		if err != nil {
			styledLogger.WarnWithProxy("Skipping invalid proxy entry", entry.Address, "error", err.Error())
			continue
		}
		repo.Upsert(p)
		seeded++
	}
	styledLogger.InfoWithCount("Seeded proxy pool", seeded)

	tracker := selector.NewConnectionTracker()
	factory := selector.NewFactory(tracker)
	initial, err := factory.Create(ports.StrategyKind(settings.Rotation.Method), settings.Rotation.TimeBasedInterval())
	if err != nil {
		return nil, fmt.Errorf("invalid rotation method %q: %w", settings.Rotation.Method, err)
	}
	dyn := selector.NewDynamicSelector(factory, initial)
	dyn.Refresh(repo.All())

	egress, err := config.ParseEgressURL(cfg.Egress.URL)
	if err != nil {
		return nil, err
	}
	if egress != nil {
		styledLogger.Info("Egress proxy configured", "protocol", string(egress.Protocol), "host", egress.Host, "port", egress.Port)
	}
	proxyTransport := transport.NewProxyTransport(egress)

	recordSink := sink.NewBroadcastSink()
	collector := stats.NewCollector(recordSink.Bus())

	limiter := ratelimit.NewLimiter(settings.RateLimit, constants.DefaultRateLimiterMaxIdle)

	handler := handlers.NewProxyHandler(dyn, proxyTransport, repo, recordSink, watcher.Current, styledLogger)

	bind := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := proxy.NewServer(bind, handler, limiter, watcher.Current, styledLogger)

	checker := health.NewChecker(
		repo,
		proxyTransport,
		dyn,
		func() domain.HealthcheckSettings { return watcher.Current().Healthcheck },
		func() domain.RotationSettings { return watcher.Current().Rotation },
		styledLogger,
	)

	refreshSelector := func() {
		refreshPool(dyn, repo, watcher.Current().Rotation.RemoveUnhealthy)
	}
	archiveSweep := archive.NewService(repo, constants.DefaultArchiveInterval, constants.DefaultArchiveBatchSize, refreshSelector, styledLogger)

	manager := services.NewServiceManager(styledLogger)
	for _, svc := range []services.ManagedService{
		services.NewStatsService(collector, styledLogger),
		services.NewRateLimitService(limiter, styledLogger),
		services.NewSettingsService(watcher, dyn, limiter, styledLogger),
		services.NewHealthService(checker, styledLogger),
		services.NewArchiveService(archiveSweep, styledLogger),
		services.NewServerService(server, styledLogger),
	} {
		if err := manager.Register(svc); err != nil {
			return nil, err
		}
	}

	return &Application{
		config:     cfg,
		watcher:    watcher,
		manager:    manager,
		repository: repo,
		selector:   dyn,
		sink:       recordSink,
		server:     server,
		logger:     styledLogger,
	}, nil
}

// Start brings every service up in dependency order.
func (a *Application) Start(ctx context.Context) error {
	if err := a.manager.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("Warren started", "bind", a.server.Addr().String(), "strategy", a.selector.StrategyName())
	return nil
}

// Stop drains in-flight work and shuts services down in reverse order.
func (a *Application) Stop(ctx context.Context) error {
	timeout := a.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := a.manager.Stop(shutdownCtx)
	a.sink.Bus().Shutdown()
	return err
}

// ReloadSettings re-reads the watched config file and publishes the new
// snapshot. Wired as the config watcher's change callback.
func (a *Application) ReloadSettings() {
	cfg, err := config.Reload()
	if err != nil {
		a.logger.Error("Config reload failed", "error", err)
		return
	}
	a.config = cfg
	a.watcher.Publish(cfg.Settings.ToSettings())
	a.logger.Info("Settings reloaded")
}

// Watcher exposes the settings snapshot holder.
func (a *Application) Watcher() *config.SettingsWatcher {
	return a.watcher
}

// refreshPool pushes the repository's current pool into the selector,
// honouring the remove-unhealthy setting.
func refreshPool(sel ports.SelectionStrategy, repo ports.ProxyRepository, removeUnhealthy bool) {
	pool := repo.All()
	if !removeUnhealthy {
		sel.Refresh(pool)
		return
	}
	usable := make([]*domain.Proxy, 0, len(pool))
	for _, p := range pool {
		if p.IsRoutable() {
			usable = append(usable, p)
		}
	}
	sel.Refresh(usable)
}
