// Package control wires the gateway's components and owns their lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vietddude/toolgate/internal/api"
	"github.com/vietddude/toolgate/internal/core/config"
	"github.com/vietddude/toolgate/internal/core/worker"
	"github.com/vietddude/toolgate/internal/health"
	"github.com/vietddude/toolgate/internal/infra/backend"
	redisclient "github.com/vietddude/toolgate/internal/infra/redis"
	"github.com/vietddude/toolgate/internal/infra/storage"
	"github.com/vietddude/toolgate/internal/infra/storage/memory"
	"github.com/vietddude/toolgate/internal/infra/storage/postgres"
	"github.com/vietddude/toolgate/internal/infra/vendor"
)

// Gateway is the main application struct that manages component lifecycle.
type Gateway struct {
	cfg          *config.AppConfig
	vendor       *vendor.Client
	backend      *backend.Client
	failures     storage.FailureLogRepository
	deadLetters  storage.DeadLetterRepository
	db           *postgres.DB
	redisClient  *redisclient.Client
	healthMon    *health.Monitor
	healthServer *health.Server
	apiServer    *api.Server
	pruner       *worker.Pruner
	replayer     *worker.Replayer
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	log          *slog.Logger
}

// NewGateway creates a new Gateway with all dependencies initialized.
func NewGateway(ctx context.Context, cfg *config.AppConfig) (*Gateway, error) {
	g := &Gateway{cfg: cfg, log: slog.Default()}

	// 1. Failure log: PostgreSQL when configured, memory otherwise
	var store *memory.MemoryStorage
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		g.db = db
		g.failures = postgres.NewFailureLogRepo(db)
		g.log.Info("Using PostgreSQL failure log")
	} else {
		store = memory.NewMemoryStorage()
		g.failures = memory.NewFailureLogRepo(store)
		g.log.Info("Using memory failure log")
	}

	// 2. Dead letters: Redis when reachable, memory otherwise
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(ctx, cfg.Redis)
		if err != nil {
			g.log.Warn("Failed to connect to Redis, using memory dead letters", "error", err)
		} else {
			g.redisClient = client
			g.deadLetters = redisclient.NewDeadLetterRepo(client, cfg.Redis.Prefix, cfg.DeadLetters.Retention)
			g.log.Info("Using Redis dead letters")
		}
	}
	if g.deadLetters == nil {
		if store == nil {
			store = memory.NewMemoryStorage()
		}
		g.deadLetters = memory.NewDeadLetterRepo(store)
	}

	// 3. Outbound clients
	g.vendor = vendor.NewClient(cfg.Vendor)
	if cfg.Backend.Target != "" {
		client, err := backend.NewClient(cfg.Backend)
		if err != nil {
			g.closeStores()
			return nil, err
		}
		g.backend = client
	}

	// 4. Health
	g.healthMon = health.NewMonitor(health.DefaultCacheTTL, g.deadLetters, g.failures)
	g.healthMon.Register("vendor", health.VendorCheck(g.vendor.Monitor))
	if g.backend != nil {
		g.healthMon.Register("backend", health.PingCheck(g.backend.Check, health.StatusCritical))
	}
	if g.db != nil {
		g.healthMon.Register("database", health.PingCheck(g.db.Health, health.StatusDegraded))
	}
	if g.redisClient != nil {
		g.healthMon.Register("redis", health.PingCheck(g.redisClient.Health, health.StatusDegraded))
	}
	g.healthServer = health.NewServer(g.healthMon, cfg.Server.HealthPort)

	// 5. API and workers
	g.apiServer = api.NewServer(cfg.Server.API, g.vendor, g.failures, g.deadLetters)
	g.pruner = worker.NewPruner(cfg.FailureLog.Retention, g.failures)
	g.replayer = worker.NewReplayer(g.deadLetters, g.vendor, cfg.DeadLetters.ReplayInterval, cfg.DeadLetters.MaxAttempts)

	return g, nil
}

// Start starts the servers and background workers.
func (g *Gateway) Start(ctx context.Context) error {
	ctx, g.cancel = context.WithCancel(ctx)

	g.serve("Health server", g.healthServer.Start)
	g.serve("API server", g.apiServer.Start)

	if g.db != nil {
		g.db.StartMetricsCollector(ctx)
	}

	g.wg.Add(2)
	go func() {
		defer g.wg.Done()
		g.pruner.Start(ctx)
	}()
	go func() {
		defer g.wg.Done()
		g.replayer.Start(ctx)
	}()

	g.log.Info("Gateway started",
		"api_port", g.cfg.Server.API.Port,
		"health_port", g.cfg.Server.HealthPort,
		"vendor", g.cfg.Vendor.BaseURL,
	)
	return nil
}

func (g *Gateway) serve(name string, start func() error) {
	go func() {
		if err := start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.log.Error(name+" failed", "error", err)
		}
	}()
}

// Stop stops the gateway.
func (g *Gateway) Stop(ctx context.Context) error {
	g.log.Info("Stopping Gateway...")

	var errs []error
	if err := g.apiServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("api server: %w", err))
	}
	if err := g.healthServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("health server: %w", err))
	}

	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()

	if err := g.vendor.Close(); err != nil {
		g.log.Warn("Failed to close vendor client", "error", err)
	}
	if g.backend != nil {
		if err := g.backend.Close(); err != nil {
			g.log.Warn("Failed to close backend client", "error", err)
		}
	}
	g.closeStores()

	return errors.Join(errs...)
}

func (g *Gateway) closeStores() {
	if g.redisClient != nil {
		if err := g.redisClient.Close(); err != nil {
			g.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if g.db != nil {
		if err := g.db.Close(); err != nil {
			g.log.Warn("Failed to close database", "error", err)
		}
	}
}

// Replayer returns the dead-letter replayer.
func (g *Gateway) Replayer() *worker.Replayer {
	return g.replayer
}

// DeadLetters returns the dead-letter repository in use.
func (g *Gateway) DeadLetters() storage.DeadLetterRepository {
	return g.deadLetters
}

// Failures returns the failure log repository in use.
func (g *Gateway) Failures() storage.FailureLogRepository {
	return g.failures
}

// Vendor returns the vendor client.
func (g *Gateway) Vendor() *vendor.Client {
	return g.vendor
}

// Backend returns the backend client, or nil when none is configured.
func (g *Gateway) Backend() *backend.Client {
	return g.backend
}

// Health returns the health monitor.
func (g *Gateway) Health() *health.Monitor {
	return g.healthMon
}

// Close releases connections without stopping servers; used by one-shot commands.
func (g *Gateway) Close() {
	_ = g.vendor.Close()
	if g.backend != nil {
		_ = g.backend.Close()
	}
	g.closeStores()
}
