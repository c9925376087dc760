package shikko

import (
	"log/slog"

	"github.com/ashita-ai/shikko/docgen"
	"github.com/ashita-ai/shikko/handoff"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	port        int
	historySize int
	logger      *slog.Logger
	version     string
	catalog     *docgen.Catalog
	sealer      *handoff.Sealer
}

// WithPort overrides the TCP port from config (SHIKKO_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithHistorySize overrides the run history capacity from config
// (SHIKKO_HISTORY_SIZE env var).
func WithHistorySize(n int) Option {
	return func(o *resolvedOptions) { o.historySize = n }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithCatalog replaces the default strategy catalog. Start from
// docgen.DefaultCatalog() to keep the built-in strategies and register
// custom ones on top.
func WithCatalog(c *docgen.Catalog) Option {
	return func(o *resolvedOptions) { o.catalog = c }
}

// WithSealer replaces the sealer built from SHIKKO_SEAL_PRIVATE_KEY /
// SHIKKO_SEAL_PUBLIC_KEY. Use this to share one signing key pair across
// several embedded instances.
func WithSealer(s *handoff.Sealer) Option {
	return func(o *resolvedOptions) { o.sealer = s }
}
