// Package shikko is the public API for embedding the shikko strategy
// execution server.
//
// Consumers import this package to construct and run the server without
// forking it:
//
//	app, err := shikko.New(
//	    shikko.WithVersion(version),
//	    shikko.WithLogger(logger),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: shikko (root) imports
// the server packages under internal/, and those never import the root
// (internal/cli, which drives the App, is the one exception). The domain types
// live in the root packages (strategy, docgen, handoff, trace), which are
// importable on their own — embedders register custom strategies on the
// catalog and pass it in via WithCatalog.
package shikko

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/shikko/api"
	"github.com/ashita-ai/shikko/docgen"
	"github.com/ashita-ai/shikko/handoff"
	"github.com/ashita-ai/shikko/internal/config"
	"github.com/ashita-ai/shikko/internal/history"
	"github.com/ashita-ai/shikko/internal/mcp"
	"github.com/ashita-ai/shikko/internal/ratelimit"
	"github.com/ashita-ai/shikko/internal/server"
	"github.com/ashita-ai/shikko/internal/telemetry"
)

// App is the shikko server lifecycle. Construct with New(), run with Run().
// App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	srv          *server.Server
	catalog      *docgen.Catalog
	registry     *handoff.Registry
	history      *history.Store
	sealer       *handoff.Sealer
	limiter      ratelimit.Limiter
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initialises the shikko server. It loads configuration, wires the
// catalog, handoff registry, run history, MCP server and HTTP server, and
// returns a ready-to-run App. It does NOT start any goroutines or accept
// HTTP connections — call Run().
func New(opts ...Option) (*App, error) {
	// Apply options.
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.historySize != 0 {
		cfg.HistorySize = o.historySize
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("shikko starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Strategy catalog. The default carries the built-in document
	// strategies; embedders pass their own via WithCatalog.
	catalog := o.catalog
	if catalog == nil {
		catalog = docgen.DefaultCatalog()
	}

	// Handoff registry and run history.
	registry := handoff.NewRegistry()
	hist := history.NewStore(cfg.HistorySize)
	hist.RegisterMetrics()

	// Sealer for signed handoff transport. Persistent keys let packages
	// sealed before a restart still open after it; without configured
	// keys an ephemeral pair is generated per process.
	sealer := o.sealer
	if sealer == nil {
		sealer, err = newSealer(cfg, logger)
		if err != nil {
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("seal: %w", err)
		}
	}

	// Rate limiter.
	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	// MCP server (mounted at /mcp by the HTTP server).
	mcpSrv := mcp.New(mcp.Deps{
		Catalog:    catalog,
		Registry:   registry,
		History:    hist,
		Logger:     logger,
		Version:    version,
		RunTimeout: cfg.RunTimeout,
	})

	// HTTP handlers and server.
	handlers := server.NewHandlers(server.HandlersDeps{
		Catalog:             catalog,
		Registry:            registry,
		Sealer:              sealer,
		History:             hist,
		Logger:              logger,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		RunDefaults: server.RunDefaults{
			Timeout:  cfg.RunTimeout,
			FailFast: cfg.RunFailFast,
			Verbose:  cfg.RunVerbose,
		},
		OpenAPISpec: api.OpenAPISpec,
	})
	srv := server.New(server.ServerConfig{
		Handlers:           handlers,
		Logger:             logger,
		Limiter:            limiter,
		MCPServer:          mcpSrv.MCPServer(),
		Port:               cfg.Port,
		ReadTimeout:        cfg.ReadTimeout,
		WriteTimeout:       cfg.WriteTimeout,
		TrustProxy:         cfg.TrustProxy,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	return &App{
		cfg:          cfg,
		srv:          srv,
		catalog:      catalog,
		registry:     registry,
		history:      hist,
		sealer:       sealer,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Catalog returns the strategy catalog so embedders can register additional
// strategies before calling Run.
func (a *App) Catalog() *docgen.Catalog { return a.catalog }

// Registry returns the handoff registry.
func (a *App) Registry() *handoff.Registry { return a.registry }

// Handler returns the fully assembled HTTP handler. Useful for mounting the
// API inside a larger mux or for httptest-based integration tests.
func (a *App) Handler() http.Handler { return a.srv.Handler() }

// Run starts the background sweep and the HTTP server, then blocks until
// ctx is cancelled or a fatal server error occurs. Shutdown runs before Run
// returns — callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		a.handoffSweepLoop(gctx)
		return nil
	})

	// Shutdown unblocks the Start goroutine with ErrServerClosed, so the
	// group drains fully once gctx is cancelled.
	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown(context.Background())
	})

	return g.Wait()
}

// Shutdown stops accepting HTTP requests, drains in-flight ones, then
// releases the rate limiter and OTEL providers. Run history and pending
// handoffs are in-memory and simply discarded.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shikko shutting down")

	httpCtx, cancel := contextWithOptionalTimeout(ctx, a.cfg.ShutdownTimeout)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	cancel()

	_ = a.limiter.Close()
	_ = a.otelShutdown(context.Background())

	a.logger.Info("shikko stopped")
	return nil
}

// handoffSweepLoop periodically clears expired handoff packages so stale
// work is never delivered and the registry does not grow without bound.
func (a *App) handoffSweepLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.HandoffSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.registry.ClearExpired(); n > 0 {
				a.logger.Info("handoff sweep cleared expired packages", "count", n)
			}
		}
	}
}

// newSealer builds the handoff sealer from configured key files, or an
// ephemeral pair when none are configured.
func newSealer(cfg config.Config, logger *slog.Logger) (*handoff.Sealer, error) {
	if cfg.SealPrivateKeyPath != "" {
		privPEM, err := os.ReadFile(cfg.SealPrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		pubPEM, err := os.ReadFile(cfg.SealPublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
		sealer, err := handoff.NewSealer(privPEM, pubPEM)
		if err != nil {
			return nil, err
		}
		logger.Info("handoff sealing: persistent keys", "private_key", cfg.SealPrivateKeyPath)
		return sealer, nil
	}

	sealer, err := handoff.NewEphemeralSealer()
	if err != nil {
		return nil, err
	}
	logger.Warn("handoff sealing: ephemeral keys — sealed packages will not survive a restart")
	return sealer, nil
}

func contextWithOptionalTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
