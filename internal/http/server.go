package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"coinc/internal/auth"
	"coinc/internal/cache"
	"coinc/internal/core"
	"coinc/internal/feed"
	"coinc/internal/format"
	applog "coinc/internal/log"
	"coinc/internal/middleware/ratelimit"
	"coinc/internal/middleware/security"
	"coinc/internal/middleware/trace"
	"coinc/internal/services"
	"coinc/internal/store"
	appweb "coinc/web"
)

const (
	loginPath      = "/login"
	callbackPath   = "/auth/callback"
	partialTimeout = 7 * time.Second
	staticMaxAge   = 24 * 60 * 60
)

// Actions runs the create and delete flows.
type Actions interface {
	Create(ctx context.Context, in core.TransactionInput) services.ActionResult
	Delete(ctx context.Context, owner, id string) services.ActionResult
}

// Options are the collaborators of a Server. Hub, Actions, Sessions,
// Provider and Money are required.
type Options struct {
	Actions  Actions
	Hub      *feed.Hub
	Sessions *auth.Sessions
	Provider auth.Provider
	Money    *format.Money

	Pinger  store.Pinger
	Limiter *ratelimit.Limiter
	Cache   *cache.LRUCache[feed.Snapshot]
	Logger  *applog.Logger
	Now     func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template

	actions   Actions
	hub       *feed.Hub
	sessions  *auth.Sessions
	provider  auth.Provider
	money     *format.Money
	pinger    store.Pinger
	limiter   *ratelimit.Limiter
	snapshots *cache.LRUCache[feed.Snapshot]

	detector *security.Detector
	tracer   *trace.Middleware
	upgrader websocket.Upgrader

	logger  *applog.Logger
	slog    *applog.StructuredLogger
	now     func() time.Time
	started time.Time
	closing chan struct{}
}

// NewServer builds the HTTP server listening on addr. A template parse
// failure is logged and surfaces as 500 on page routes.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		actions:   opts.Actions,
		hub:       opts.Hub,
		sessions:  opts.Sessions,
		provider:  opts.Provider,
		money:     opts.Money,
		pinger:    opts.Pinger,
		limiter:   opts.Limiter,
		snapshots: opts.Cache,
		logger:    logger.WithComponent(applog.ComponentHTTP),
		slog:      applog.NewStructuredLogger(logger),
		now:       now,
		started:   now(),
		closing:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
	s.detector = security.NewDetector(logger)
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	tmpl, err := template.New("").Funcs(template.FuncMap{
		"initial": initial,
	}).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Error("Template parsing failed", applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
	} else {
		s.templates = tmpl
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	// Hijacked websocket connections are not tracked by Shutdown.
	var once sync.Once
	s.RegisterOnShutdown(func() { once.Do(func() { close(s.closing) }) })
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Public
	mux.Handle("/login", auth.RedirectIfSignedIn("/", http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("/auth/login", s.handleAuthLogin)
	mux.HandleFunc(callbackPath, s.handleAuthCallback)
	mux.HandleFunc("/auth/logout", s.handleLogout)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	if staticFS, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		files := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		mux.Handle("/static/", security.StaticAssetMiddleware(staticMaxAge)(files))
	} else {
		s.logger.Error("Static assets unavailable", applog.FieldError, err)
	}

	// Signed in
	gated := func(h http.HandlerFunc) http.Handler { return auth.RequireUser(loginPath, h) }
	mux.Handle("/", gated(s.handleIndex))
	mux.Handle("/ui/month", gated(s.handleMonth))
	mux.Handle("/transactions", gated(s.handleCreateTransaction))
	mux.Handle("/transactions/delete", gated(s.handleDeleteTransaction))
	mux.Handle("/api/transactions", gated(s.handleAPITransactions))
	mux.Handle("/ws", gated(s.handleWebsocket))

	var h http.Handler = mux
	if s.limiter != nil {
		h = s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)(h)
	}
	if s.sessions != nil {
		h = s.sessions.Session(h)
	}
	h = applog.RequestIDMiddleware(trace.GetRequestID)(h)
	h = applog.Middleware(s.logger)(h)
	h = s.tracer.Middleware(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	return h
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path,
		applog.FieldComponent, applog.ComponentRateLimit)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please try again later.").
		TriggerErrorNotification("Too many requests. Please try again later.").
		Write(w)
}

// snapshot returns the records of scope, served from the cache when fresh.
func (s *Server) snapshot(ctx context.Context, scope feed.Scope) (feed.Snapshot, error) {
	key := cache.Key(scope.Owner, scope.Month)
	var version uint64
	if s.snapshots != nil {
		if snap, ok := s.snapshots.Get(key); ok {
			return snap, nil
		}
		version = s.snapshots.Version()
	}

	ctx, cancel := context.WithTimeout(ctx, partialTimeout)
	defer cancel()
	snap, err := s.hub.Load(ctx, scope)
	if err != nil {
		return feed.Snapshot{}, err
	}
	if s.snapshots != nil {
		// An invalidation during the load means snap may predate a write.
		s.snapshots.SetIfVersion(key, version, snap)
	}
	return snap, nil
}

func (s *Server) invalidate(scope *feed.Scope) {
	if s.snapshots != nil && scope != nil {
		s.snapshots.Invalidate(scope.Owner, scope.Month)
	}
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Shutting down HTTP server", applog.FieldOperation, applog.OpShutdown)
	return s.Server.Shutdown(ctx)
}

func initial(u auth.User) string {
	for _, r := range u.DisplayName() {
		return string(r)
	}
	return "?"
}
