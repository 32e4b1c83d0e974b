package commands

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/sumatoshi-tech/collabgraph/internal/access"
	"github.com/sumatoshi-tech/collabgraph/internal/authz"
	"github.com/sumatoshi-tech/collabgraph/internal/bus"
	"github.com/sumatoshi-tech/collabgraph/internal/config"
	"github.com/sumatoshi-tech/collabgraph/internal/events"
	"github.com/sumatoshi-tech/collabgraph/internal/hub"
	"github.com/sumatoshi-tech/collabgraph/internal/observability"
	"github.com/sumatoshi-tech/collabgraph/internal/presence"
	"github.com/sumatoshi-tech/collabgraph/internal/serializer"
	"github.com/sumatoshi-tech/collabgraph/internal/session"
	"github.com/sumatoshi-tech/collabgraph/internal/store"
	"github.com/sumatoshi-tech/collabgraph/pkg/version"
)

const (
	presenceSweepInterval = 10 * time.Second
	shutdownGracePeriod   = 15 * time.Second
)

// NewServeCommand runs the collaboration server: session/presence
// tracking, the per-project serializer, and the WebSocket upgrade
// endpoint.
func NewServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "serve",
		Short:         "Run the collaboration server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			return runServe(cobraCmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to collabd.yaml (defaults to CWD/etc/home search)")

	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("serve: load config: %w", err)
	}

	providers, err := observability.Init(observability.Config{
		ServiceName:    "collabd",
		ServiceVersion: version.Version,
		Mode:           observability.ModeServe,
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
		OTLPInsecure:   cfg.Observability.OTLPInsecure,
		SampleRatio:    cfg.Observability.SampleRatio,
		LogLevel:       slog.LevelInfo,
		LogJSON:        cfg.Logging.Format == "json",
	})
	if err != nil {
		return fmt.Errorf("serve: init observability: %w", err)
	}
	defer func() {
		if shutdownErr := providers.Shutdown(context.Background()); shutdownErr != nil {
			providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
		}
	}()

	metrics, err := observability.NewCollabMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("serve: init collab metrics: %w", err)
	}
	red, err := observability.NewRequestMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("serve: init request metrics: %w", err)
	}

	deps, cleanup, err := wireDeps(ctx, cfg, metrics)
	if err != nil {
		return fmt.Errorf("serve: wire dependencies: %w", err)
	}
	defer cleanup()

	router := events.New(deps.sessions, deps.presence, deps.serializer, deps.bus, deps.hub, deps.hub)
	deps.hub.SetRouter(router)

	auth := hub.NewAuthenticator(cfg.Server.JWTSecret)
	wsServer := hub.NewServer(deps.hub, auth, deps.gate, cfg.Server.FrontendOrigin)

	mux := http.NewServeMux()
	mux.Handle("/ws", instrumented(red, "ws_handshake", wsServer))
	mux.Handle("/healthz", observability.HealthHandler())
	mux.Handle("/readyz", observability.ReadyHandler(deps.readyChecks...))
	mux.Handle("/metrics", providers.MetricsHandler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopSweep := startIdleSweep(runCtx, deps.hub, deps.sessions, deps.presence, cfg.Collab.SessionIdle())
	defer stopSweep()

	serveErr := make(chan error, 1)
	go func() {
		providers.Logger.Info("collabd: listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-runCtx.Done():
		providers.Logger.Info("collabd: shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: listen: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("serve: graceful shutdown: %w", err)
	}
	if err := deps.serializer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("serve: drain serializer: %w", err)
	}
	if err := deps.bus.Shutdown(shutdownCtx); err != nil {
		providers.Logger.Warn("bus shutdown failed", "error", err)
	}
	return <-serveErr
}

type serverDeps struct {
	store       store.Store
	gate        *access.Gate
	bus         bus.Bus
	sessions    *session.Registry
	presence    *presence.Tracker
	serializer  *serializer.Serializer
	hub         *hub.Hub
	readyChecks []observability.ReadyCheck
}

// wireDeps builds the store/gate/session/presence/bus/serializer/hub
// dependency graph, selecting the Postgres-or-Memory Store/Directory
// pair and the Redis-or-Memory Bus per cfg.Collab's backend flags. The
// returned cleanup closes any opened pools/clients.
func wireDeps(ctx context.Context, cfg *config.Config, metrics *observability.CollabMetrics) (serverDeps, func(), error) {
	var deps serverDeps
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var dir authz.Directory
	switch cfg.Collab.StoreBackend {
	case config.StoreBackendMemory:
		deps.store = store.NewMemory()
		dir = authz.NewMemoryDirectory()

	case config.StoreBackendPostgres:
		pgStore, err := store.Open(ctx, store.PoolConfig{
			DSN:             cfg.Postgres.DSN,
			MaxOpenConns:    int32(cfg.Postgres.MaxOpenConns),
			MaxIdleConns:    int32(cfg.Postgres.MaxIdleConns),
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
		})
		if err != nil {
			cleanup()
			return serverDeps{}, nil, err
		}
		closers = append(closers, pgStore.Close)
		deps.store = pgStore

		sqlDB, err := sql.Open("pgx", cfg.Postgres.DSN)
		if err != nil {
			cleanup()
			return serverDeps{}, nil, fmt.Errorf("serve: open authz directory db: %w", err)
		}
		closers = append(closers, func() { _ = sqlDB.Close() })
		dir = authz.NewPostgresDirectory(sqlDB)

		deps.readyChecks = append(deps.readyChecks, func(checkCtx context.Context) error {
			return sqlDB.PingContext(checkCtx)
		})

	default:
		cleanup()
		return serverDeps{}, nil, fmt.Errorf("serve: unknown store backend %q", cfg.Collab.StoreBackend)
	}

	deps.gate = access.New(dir)

	if cfg.Collab.UseSharedSessions || cfg.Collab.UseSharedSockets || cfg.Collab.UseSharedOrdering {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = client.Close() })
		deps.bus = bus.NewRedis(client, cfg.Redis.StreamMaxLen)
		deps.readyChecks = append(deps.readyChecks, func(checkCtx context.Context) error {
			return client.Ping(checkCtx).Err()
		})
	} else {
		deps.bus = bus.NewMemory(cfg.Collab.SessionTTL())
	}

	deps.sessions = session.New(deps.bus, cfg.Collab.SessionTTL()).WithMetrics(metrics)
	deps.presence = presence.New(deps.bus, cfg.Collab.PresenceInactive()).WithMetrics(metrics)
	deps.serializer = serializer.New(deps.store, deps.gate, deps.bus, serializer.Config{
		MaxRetries:         cfg.Collab.SerializerMaxRetries,
		InitialBackoff:     cfg.Collab.SerializerInitialBackoff(),
		QueueHighWatermark: cfg.Collab.SerializerQueueHighWatermark,
	}).WithMetrics(metrics)
	deps.hub = hub.New(deps.sessions, deps.presence, deps.gate, deps.bus)

	return deps, cleanup, nil
}

// instrumented wraps next with request metrics for op. The status
// label reflects the HTTP status class of the response, which for the
// WebSocket endpoint means handshake outcome — the upgraded connection's
// lifetime is not part of the recorded duration since ServeHTTP returns
// after the hijack.
func instrumented(rm *observability.RequestMetrics, op string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doneInflight := rm.TrackInflight(r.Context(), op)
		defer doneInflight()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		status := "ok"
		if rec.status >= http.StatusBadRequest {
			status = "error"
		}
		rm.RecordRequest(r.Context(), op, status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack passes through to the underlying writer so the WebSocket
// upgrade still works behind the instrumentation wrapper.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

// startIdleSweep runs the periodic cleanup (idle-session eviction,
// presence Cleanup) on a ticker until ctx is cancelled, returning a stop func.
func startIdleSweep(ctx context.Context, h *hub.Hub, sessions *session.Registry, pres *presence.Tracker, sessionIdle time.Duration) func() {
	sweepCtx, cancel := context.WithCancel(ctx)
	ticker := time.NewTicker(presenceSweepInterval)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				close(done)
				return
			case <-ticker.C:
				pres.Cleanup()
				for _, projectID := range h.ActiveProjects() {
					if err := sessions.CleanupInactiveSessions(sweepCtx, projectID, sessionIdle); err != nil {
						slog.Warn("serve: cleanup inactive sessions failed", "project", projectID, "err", err)
					}
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
