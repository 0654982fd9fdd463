package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"spendbook/internal/backend"
	"spendbook/internal/cache"
	applog "spendbook/internal/log"
	"spendbook/internal/middleware/ratelimit"
	"spendbook/internal/middleware/security"
	"spendbook/internal/middleware/trace"
	"spendbook/internal/services"
	appweb "spendbook/web"
)

// Options wires the server to the application services.
type Options struct {
	Expenses *services.ExpenseService
	Accounts *services.AccountService
	Hub      *Hub
	// Backend is pinged by /readyz. Optional.
	Backend backend.Pinger
	Logger  *applog.Logger

	RateLimitPerMinute int
	CacheSweepInterval time.Duration
}

type Server struct {
	http.Server
	templates *template.Template
	expenses  *services.ExpenseService
	accounts  *services.AccountService
	hub       *Hub
	backend   backend.Pinger
	logger    *applog.Logger

	tracer       *trace.Middleware
	detector     *security.Detector
	limiter      *ratelimit.Limiter
	cacheManager *cache.Manager
	startedAt    time.Time

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and configures routes and middleware,
// returning a ready-to-run http.Server.
func NewServer(addr string, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	if opts.Hub == nil {
		opts.Hub = NewHub(opts.Logger)
	}
	if opts.CacheSweepInterval <= 0 {
		opts.CacheSweepInterval = 10 * time.Minute
	}
	logger := opts.Logger.WithComponent(applog.ComponentHTTP)

	t, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	rlConfig := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rlConfig.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		templates:    t,
		expenses:     opts.Expenses,
		accounts:     opts.Accounts,
		hub:          opts.Hub,
		backend:      opts.Backend,
		logger:       logger,
		detector:     security.NewDetector(opts.Logger),
		limiter:      ratelimit.NewLimiter(rlConfig),
		cacheManager: cache.NewManager(opts.Logger),
		startedAt:    time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, opts.Logger)

	s.cacheManager.Register(s.expenses.Cache())
	s.cacheManager.StartCleanup(opts.CacheSweepInterval)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err.Error())
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.Handle("GET /login", s.guestOnly(s.handleLoginPage))
	mux.Handle("POST /login", s.guestOnly(s.handleLogin))
	mux.Handle("GET /register", s.guestOnly(s.handleRegisterPage))
	mux.Handle("POST /register", s.guestOnly(s.handleRegister))
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.Handle("GET /expenses", s.requireUser(s.handleExpensesPage))
	mux.Handle("POST /expenses", s.requireUser(s.handleCreateExpense))
	mux.Handle("POST /expenses/{id}", s.requireUser(s.handleUpdateExpense))
	mux.Handle("POST /expenses/{id}/delete", s.requireUser(s.handleDeleteExpense))
	mux.Handle("DELETE /expenses/{id}", s.requireUser(s.handleDeleteExpense))

	mux.Handle("GET /api/expenses", s.requireUser(s.handleAPIExpenses))
	mux.Handle("GET /api/expenses/chart", s.requireUser(s.handleAPIChart))
	mux.Handle("GET /api/expenses/export.csv", s.requireUser(s.handleExportCSV))
	mux.Handle("GET /api/expenses/export.xlsx", s.requireUser(s.handleExportXLSX))

	mux.Handle("GET /ws", s.requireUser(s.handleWebsocket))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	return chain(mux,
		s.tracer.Middleware,
		s.detector.Middleware,
		headers.Middleware,
		s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited),
		applog.Middleware(s.logger, trace.RequestIDFromRequest),
	)
}

// chain wraps h so that the first middleware is the outermost.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", "60")
	msg := "Too many requests, please try again later."
	if wantsJSON(r) {
		writeJSONError(w, http.StatusTooManyRequests, msg)
		return
	}
	ErrorResponse(http.StatusTooManyRequests, msg).Write(w)
}

// Shutdown stops background work and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		s.hub.Close()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
