// Package runtime provides the core Gateway struct and lifecycle management
// for the OCPI roaming gateway.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/voltgrid/ocpi-gateway/internal/adapters/storage/backend"
	"github.com/voltgrid/ocpi-gateway/internal/client"
	"github.com/voltgrid/ocpi-gateway/internal/core/domain"
	"github.com/voltgrid/ocpi-gateway/internal/core/ports"
	"github.com/voltgrid/ocpi-gateway/internal/endpoint"
	"github.com/voltgrid/ocpi-gateway/internal/modules"
	"github.com/voltgrid/ocpi-gateway/internal/modules/commands"
	"github.com/voltgrid/ocpi-gateway/internal/modules/tariffs"
	"github.com/voltgrid/ocpi-gateway/internal/pkg/config"
	"github.com/voltgrid/ocpi-gateway/internal/pkg/safehttp"
	"github.com/voltgrid/ocpi-gateway/internal/telemetry"
)

type mountKey struct {
	version string
	role    domain.Role
}

// Gateway is the main entry point for running the OCPI gateway.
// It manages configuration, storage, the versioned services and the HTTP
// server lifecycle. Gateway can be embedded in larger applications or run
// standalone.
type Gateway struct {
	// Dependencies (injected via options)
	config     ports.ConfigProvider
	storage    ports.StorageProvider
	dispatcher ports.CommandDispatcher
	client     *client.Client
	catalog    *modules.Catalog
	endpoints  map[mountKey][]endpoint.Endpoint

	// ownsStorage is set when the gateway opened the storage itself; only
	// then is it seeded from configuration.
	ownsStorage bool

	// Internal state
	metrics        *prometheus.Registry
	handler        http.Handler
	server         *http.Server
	listener       net.Listener
	tracerShutdown func(context.Context) error
	logger         *slog.Logger

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

// New creates a new Gateway with the given options.
// Storage defaults to the backend named in configuration.
func New(opts ...Option) (*Gateway, error) {
	gw := &Gateway{
		logger:    slog.Default(),
		catalog:   BuiltinModules(),
		endpoints: make(map[mountKey][]endpoint.Endpoint),
		metrics:   prometheus.NewRegistry(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(gw); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	// Validate required dependencies
	if gw.config == nil {
		return nil, fmt.Errorf("config provider required (use WithFileConfig or WithConfigProvider)")
	}
	if gw.dispatcher == nil {
		gw.logger.Info("no command dispatcher specified, commands will answer NOT_SUPPORTED")
	}

	gw.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return gw, nil
}

// BuiltinModules returns a catalog holding the bundled modules.
func BuiltinModules() *modules.Catalog {
	c := modules.NewCatalog()
	c.MustRegister(tariffs.Factory())
	c.MustRegister(commands.Factory())
	return c
}

// Start loads the configuration, builds the versioned services and starts
// serving.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ctx, g.cancel = context.WithCancel(ctx)

	// Load initial config
	cfg, err := g.config.Load(g.ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, os.Stderr, g.logger)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		g.tracerShutdown = shutdown
	}

	if err := g.initStorage(cfg); err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	if g.client == nil {
		g.client = newPartnerClient(cfg, g.logger)
	}

	mounts, err := g.buildRouter(cfg)
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	// Start HTTP server
	if err := g.startServer(cfg); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	// Watch for config changes
	go g.watchConfig()

	g.logger.Info("gateway started",
		slog.String("addr", g.listener.Addr().String()),
		slog.String("storage", cfg.Storage.Type),
		slog.Int("services", mounts),
		slog.Int("tenants", len(cfg.Tenants)))

	return nil
}

// Handler returns the gateway's root HTTP handler. It is nil before Start.
func (g *Gateway) Handler() http.Handler {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.handler
}

// Addr returns the address the server listens on. It is empty before Start.
func (g *Gateway) Addr() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr().String()
}

// Storage returns the storage provider in use.
func (g *Gateway) Storage() ports.StorageProvider {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.storage
}

// Shutdown gracefully stops the gateway.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info("shutting down gateway")

	if g.cancel != nil {
		g.cancel()
	}

	// Stop HTTP server
	if g.server != nil {
		if err := g.server.Shutdown(ctx); err != nil {
			g.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			return err
		}
	}

	// Close resources
	if g.storage != nil {
		if err := g.storage.Close(); err != nil {
			g.logger.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}

	if g.tracerShutdown != nil {
		if err := g.tracerShutdown(ctx); err != nil {
			g.logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}

	if g.config != nil {
		if err := g.config.Close(); err != nil {
			g.logger.Error("failed to close config", slog.String("error", err.Error()))
		}
	}

	g.logger.Info("gateway shutdown complete")
	return nil
}

func (g *Gateway) initStorage(cfg *config.Config) error {
	if g.storage != nil {
		return nil
	}
	g.logger.Info("no storage provider specified, opening from configuration",
		slog.String("type", cfg.Storage.Type))
	store, err := backend.Open(g.ctx, cfg)
	if err != nil {
		return err
	}
	g.storage = store
	g.ownsStorage = true
	return nil
}

// watchConfig watches for config changes and reloads.
func (g *Gateway) watchConfig() {
	onChange := func(newCfg *config.Config) {
		g.logger.Info("config changed, reloading")
		if err := g.reload(newCfg); err != nil {
			g.logger.Error("failed to reload", slog.String("error", err.Error()))
		}
	}

	if err := g.config.Watch(g.ctx, onChange); err != nil {
		if !errors.Is(err, context.Canceled) {
			g.logger.Error("config watch failed", slog.String("error", err.Error()))
		}
	}
}

// reload re-seeds the storage the gateway opened itself, so token revocations
// and tenant changes take effect without a restart. Mounted services and
// their registries are left untouched.
func (g *Gateway) reload(cfg *config.Config) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.ownsStorage {
		g.logger.Info("storage is externally managed, nothing to reload")
		return nil
	}
	if err := backend.Seed(g.ctx, g.storage, cfg); err != nil {
		return fmt.Errorf("reseed storage: %w", err)
	}

	g.logger.Info("reload complete", slog.Int("tenants", len(cfg.Tenants)))
	return nil
}

// newPartnerClient builds the client used for calls back into partner
// platforms. Outgoing calls carry the caller's trace context.
func newPartnerClient(cfg *config.Config, logger *slog.Logger) *client.Client {
	var base http.RoundTripper = http.DefaultTransport
	if cfg.Client.BlockPrivateNetworks {
		base = safehttp.NewTransport()
	}
	hc := &http.Client{Transport: otelhttp.NewTransport(base)}
	return client.New(
		client.WithHTTPClient(hc),
		client.WithTimeout(cfg.Client.Timeout),
		client.WithLogger(logger))
}

// startServer starts the HTTP server. The listener is opened before
// returning so a busy port fails Start.
func (g *Gateway) startServer(cfg *config.Config) error {
	g.logger.Debug("starting HTTP server", slog.Int("port", cfg.Server.Port))

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	g.listener = ln

	g.server = &http.Server{
		Handler:           g.handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	// Start server in background
	go func() {
		g.logger.Info("HTTP server listening", slog.String("addr", ln.Addr().String()))
		if err := g.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			g.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}
