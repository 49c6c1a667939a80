package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hsche/edureg/internal/config"
	"github.com/hsche/edureg/internal/website"
	"github.com/hsche/edureg/pkg/audit"
	"github.com/hsche/edureg/pkg/health"
	"github.com/hsche/edureg/pkg/limits"
	"github.com/hsche/edureg/pkg/logging"
	"github.com/hsche/edureg/pkg/metrics"
	"github.com/hsche/edureg/pkg/router"
	"github.com/hsche/edureg/pkg/security"
	"github.com/hsche/edureg/pkg/shutdown"
	"github.com/hsche/edureg/pkg/state"
	"github.com/hsche/edureg/pkg/transport"
)

// Server is the fully wired edureg HTTP server.
type Server struct {
	cfg      *config.Config
	logger   logging.Logger
	app      *App
	router   *router.Router
	health   *health.Checker
	shutdown *shutdown.Handler
	http     *http.Server
}

// NewServer builds the sinks, stores, app and router described by cfg.
// Resources opened here are released by the shutdown hooks.
func NewServer(ctx context.Context, cfg *config.Config, version string) (*Server, error) {
	logger := cfg.Logger()
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	sd := shutdown.NewHandler(&shutdown.Config{
		Timeout: 15 * time.Second,
		Signals: shutdown.DefaultConfig().Signals,
		Logger:  logger,
	})
	checker := health.NewChecker(version)

	s, err := newServer(ctx, cfg, logger, sd, checker)
	if err != nil {
		_ = sd.Shutdown()
		return nil, err
	}
	return s, nil
}

func newServer(ctx context.Context, cfg *config.Config, logger logging.Logger, sd *shutdown.Handler, checker *health.Checker) (*Server, error) {
	m := metrics.New(MetricsNamespace)
	snk, err := buildSink(ctx, cfg, logger, m, sd, checker)
	if err != nil {
		return nil, err
	}

	store := state.NewSnapshotStore(state.NewMemoryStore(), state.WithTTL(cfg.SessionTTL))
	sd.RegisterCloser("snapshot store", shutdown.PriorityStorage, store)
	checker.AddCriticalCheck("snapshot_store", health.PingCheck(store), 0)

	var auditLog audit.Logger = audit.NopLogger{}
	if cfg.AuditLog != "" {
		f, err := audit.OpenFile(cfg.Path(cfg.AuditLog))
		if err != nil {
			return nil, err
		}
		auditLog = audit.NewAsyncLogger(f, 0)
		sd.RegisterCloser("audit log", shutdown.PriorityLast, auditLog)
	}

	csrf := security.NewCSRF(security.CSRFConfig{
		Secret:    []byte(cfg.CSRFSecret),
		OnFailure: CSRFViolation(auditLog, m),
	})

	application, err := New(Options{
		Store:      store,
		Sink:       snk,
		Audit:      auditLog,
		CSRF:       csrf,
		Logger:     logger,
		Metrics:    m,
		ResetDelay: cfg.ResetDelay,
	})
	if err != nil {
		return nil, err
	}

	sessions := security.NewSessions(security.SessionConfig{
		Secure: !cfg.InsecureDev,
		TTL:    cfg.SessionTTL,
	})
	postLimit := limits.NewTokenBucket(cfg.RateLimit, cfg.RateBurst)
	sd.RegisterFunc("rate limiter", shutdown.PriorityLast, func(context.Context) error {
		postLimit.Close()
		return nil
	})
	conns := limits.NewConnectionLimiter(cfg.MaxConnsPerIP, 0)

	headers := router.DefaultSecureHeadersConfig()
	headers.ScriptSources = []string{website.PlotlySource}

	rt := router.New(
		router.WithLogger(logger),
		router.WithWebSocketConfig(&transport.WebSocketConfig{
			AllowedOrigins:  cfg.AllowedOrigins,
			InsecureDevMode: cfg.InsecureDev,
		}),
		router.WithSessionManager(router.NewSessionManager(router.SessionManagerConfig{
			MaxSessions: router.DefaultSessionManagerConfig().MaxSessions,
			IdleTimeout: cfg.SessionTTL,
		})),
		router.WithSessionFunc(application.Session),
		router.WithErrorHandler(application.HandleError),
	)
	rt.Use(
		router.Recovery(),
		router.Logger(logger),
		router.SecureHeaders(headers),
		sessions.Middleware(),
		limits.Middleware(postLimit, limits.MiddlewareConfig{
			OnReject: RateLimited(auditLog, m),
		}),
		csrf.Middleware(),
	)
	application.Routes(rt, router.WithRouteMiddleware(upgradeLimit(conns)))

	checker.AddCheck("live_sockets", health.CapacityCheck("live sockets", rt.Sockets().Count, 0), 0)
	checker.AddCheck("memory", health.MemoryCheck(512<<20), 0)
	rt.Handle("GET /health", checker.Handler())
	rt.Handle("GET /health/live", checker.LivenessHandler())

	m.GaugeFunc("live_sockets", "Open live sockets", func() float64 { return float64(rt.Sockets().Count()) })
	m.GaugeFunc("live_sessions", "Live sessions held in memory", func() float64 { return float64(rt.Sessions().Count()) })
	rt.Handle("GET /metrics", m.Handler())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           rt,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	sd.RegisterFunc("http server", shutdown.PriorityHTTP, srv.Shutdown)
	sd.RegisterFunc("live sockets", shutdown.PrioritySockets, rt.Shutdown)

	return &Server{
		cfg:      cfg,
		logger:   logger,
		app:      application,
		router:   rt,
		health:   checker,
		shutdown: sd,
		http:     srv,
	}, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Shutdown runs the shutdown hooks.
func (s *Server) Shutdown() error {
	return s.shutdown.Shutdown()
}

// Run serves until ctx ends or a signal arrives, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	s.router.StartJanitor(gctx, time.Minute)

	g.Go(func() error {
		s.logger.Info("listening", logging.String("addr", s.cfg.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.shutdown.Wait(gctx)
	})
	return g.Wait()
}

// upgradeLimit holds a connection slot for the lifetime of each websocket.
// Plain page loads pass through.
func upgradeLimit(conns *limits.ConnectionLimiter) router.Middleware {
	limited := conns.Middleware()
	return func(next http.Handler) http.Handler {
		guarded := limited(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "" {
				next.ServeHTTP(w, r)
				return
			}
			guarded.ServeHTTP(w, r)
		})
	}
}
