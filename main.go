package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MGallo-Code/botauth/internal/auth"
	"github.com/MGallo-Code/botauth/internal/config"
	"github.com/MGallo-Code/botauth/internal/conversation"
	"github.com/MGallo-Code/botauth/internal/handshake"
	"github.com/MGallo-Code/botauth/internal/metrics"
	"github.com/MGallo-Code/botauth/internal/oauth"
	"github.com/MGallo-Code/botauth/internal/provider"
	"github.com/MGallo-Code/botauth/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Embeds the migration files INTO the go bin

//go:embed migrations/*.sql
var migrationsDir embed.FS

func main() {
	// Load config first so we can set log level
	cfg, err := config.LoadConfig()
	if err != nil {
		// Fallback logger before config is available
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}

	// Include source location in log entries at debug level only.
	addSrc := cfg.LogLevel == slog.LevelDebug

	// Set up slog to output as json with configured level
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: addSrc,
	})))

	// Cancel ctx on SIGINT/SIGTERM; run() shuts down when ctx is done.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run() is a separate func so deferred closes (rdb, audit) always execute before os.Exit.
	if err := run(ctx, cfg, nil); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// run holds all server logic and returns error instead of calling os.Exit,
// so deferred resource cleanup always runs.
// Shuts down when ctx is cancelled (signal handling is the caller's concern).
// If ready is non-nil, the server's base URL is sent on it once the listener is bound.
func run(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	d := appDeps{}

	// Handshake store: Redis when configured, otherwise process memory.
	if cfg.RedisURL != "" {
		rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to set up redis client: %w", err)
		}
		defer rdb.Close()
		d.Store = store.NewRedisStore(rdb, cfg.PendingTTL)
	} else {
		slog.Warn("REDIS_URL not set, handshakes are kept in memory")
		d.Store = store.NewMemoryStore(cfg.PendingTTL)
	}

	// Optional audit trail
	if cfg.AuditDatabaseURL != "" {
		ps, err := store.NewPostgresStore(ctx, cfg.AuditDatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to set up audit store: %w", err)
		}
		defer ps.Close()

		migrationsFS, err := fs.Sub(migrationsDir, "migrations")
		if err != nil {
			return fmt.Errorf("failed to access embedded migrations: %w", err)
		}
		if err := ps.Migrate(ctx, migrationsFS); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		d.Audit = ps
	}

	// Providers: optional YAML file, overridden by env credentials.
	var settings provider.Settings
	if cfg.ProvidersFile != "" {
		s, err := provider.LoadSettings(cfg.ProvidersFile)
		if err != nil {
			return err
		}
		settings = s
	}
	reg, err := provider.Resolve(settings, os.LookupEnv)
	if err != nil {
		// Misconfigured providers are dropped; the rest still serve.
		slog.Error("provider configuration", "error", err)
	}
	if reg.Len() == 0 {
		slog.Warn("no authentication providers configured")
	}
	d.Registry = reg

	oauthFactory := &oauth.Factory{HTTPClient: &http.Client{Timeout: 15 * time.Second}}
	d.Clients = oauthFactory.Build

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	d.Registerer = promReg
	d.Gatherer = promReg

	host, _, err := buildHost(cfg, d)
	if err != nil {
		return err
	}

	// Bind listener; ":0" picks a free port (useful in tests).
	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := &http.Server{Handler: host, ReadHeaderTimeout: 10 * time.Second}

	// Start server in a goroutine; run() continues past this.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("bot listening", "addr", ln.Addr().String(), "host", cfg.HostFlavor, "providers", reg.Len())
		// Send error only if server stops for a reason other than explicit shutdown.
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Signal readiness to caller (used by tests; nil in production).
	if ready != nil {
		ready <- "http://" + ln.Addr().String()
	}

	// Wait for server error or shutdown signal from ctx.
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	// Stops accepting, then waits for in-flight turns and callbacks.
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// appDeps are the already-constructed collaborators buildHost wires together.
type appDeps struct {
	Store      handshake.Store
	Audit      *store.PostgresStore // nil disables the audit trail
	Registry   *provider.Registry
	Clients    handshake.ClientBuilder
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// buildHost wires the coordinator, the callback routes, the bot endpoint and
// /metrics onto a fresh host.
// Called from run() and from smoke tests.
func buildHost(cfg *config.Config, d appDeps) (auth.Host, *handshake.Coordinator, error) {
	host, err := auth.NewHost(auth.HostKind(cfg.HostFlavor), cfg.BaseURL)
	if err != nil {
		return nil, nil, err
	}

	m, err := metrics.New(d.Registerer)
	if err != nil {
		return nil, nil, fmt.Errorf("registering metrics: %w", err)
	}

	// Left as untyped nils when disabled so the interfaces compare nil.
	var audit handshake.AuditLog
	var auditHealth auth.HealthChecker
	if d.Audit != nil {
		audit, auditHealth = d.Audit, d.Audit
	}

	b := newEchoBot()
	c, err := handshake.New(handshake.Options{
		IsUserAuthenticated:             b.IsAuthenticated,
		OnLoginSuccess:                  b.OnLoginSuccess,
		OnLoginFailure:                  b.OnLoginFailure,
		NoUserFoundMessage:              cfg.NoUserFoundMessage,
		CustomMagicCodeRedirectEndpoint: cfg.MagicCodeRedirect,
		MagicCodeBytes:                  cfg.MagicCodeBytes,
	}, handshake.Deps{
		Registry: d.Registry,
		Store:    d.Store,
		Clients:  d.Clients,
		BaseURL:  host,
		Audit:    audit,
		Metrics:  m,
	})
	if err != nil {
		return nil, nil, err
	}
	b.logout = c.Clear

	auth.Register(host, c, auditHealth)

	adapter := conversation.NewAdapter(c)
	host.HandleHTTP(http.MethodPost, "/api/messages", adapter.HandlerFunc(b.OnTurn))
	host.HandleHTTP(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))
	host.HandleHTTP(http.MethodGet, "/customCode", http.HandlerFunc(customCodeRedirect))
	host.HandleHTTP(http.MethodGet, "/renderCustomCode", http.HandlerFunc(renderCustomCode))

	return host, c, nil
}
