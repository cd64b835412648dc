package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"expenzoo/internal/auth"
	"expenzoo/internal/log"
	"expenzoo/internal/middleware/ratelimit"
	"expenzoo/internal/middleware/security"
	"expenzoo/internal/middleware/trace"
	"expenzoo/internal/services"
	"expenzoo/internal/storage"
)

// AuthService is the login flow behind /api/auth.
type AuthService interface {
	RequestOTP(ctx context.Context, email string) (string, error)
	VerifyOTP(ctx context.Context, email, code string) (*services.LoginResult, error)
}

// ExpenseService is the owner-scoped CRUD behind /api/expenses.
type ExpenseService interface {
	List(ctx context.Context, userID string) ([]storage.Expense, error)
	Get(ctx context.Context, userID, id string) (*storage.Expense, error)
	Create(ctx context.Context, userID string, in services.ExpenseInput) (*storage.Expense, error)
	Update(ctx context.Context, userID, id string, p services.ExpensePatch) (*storage.Expense, error)
	Delete(ctx context.Context, userID, id string) error
}

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Addr string
	// OTPRequestsPerMinute limits each auth endpoint per client IP.
	OTPRequestsPerMinute int
	CORS                 security.CORSConfig
	Logger               *log.Logger
}

type Server struct {
	http.Server
	auth     AuthService
	expenses ExpenseService
	db       Pinger
	logger   *log.Logger

	otpLimiter *ratelimit.Limiter
	detector   *security.Detector
	started    time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, authSvc AuthService, expenses ExpenseService, tokens *auth.TokenService, db Pinger) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	corsCfg := cfg.CORS
	if len(corsCfg.AllowedOrigins) == 0 {
		corsCfg = security.DefaultCORSConfig()
	}
	perMinute := cfg.OTPRequestsPerMinute
	if perMinute <= 0 {
		perMinute = 5
	}

	s := &Server{
		auth:     authSvc,
		expenses: expenses,
		db:       db,
		logger:   logger,
		otpLimiter: ratelimit.NewLimiter(ratelimit.Config{
			Name:     "otp",
			Requests: perMinute,
			Window:   time.Minute,
		}),
		detector: security.NewDetector(),
		started:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	limited := s.otpLimiter.Middleware(s.limiterKey, s.onRateLimit)
	mux.Handle("POST /api/auth/request-otp", limited(http.HandlerFunc(s.handleRequestOTP)))
	mux.Handle("POST /api/auth/verify-otp", limited(http.HandlerFunc(s.handleVerifyOTP)))

	protect := auth.RequireAuth(tokens)
	mux.Handle("GET /api/expenses", protect(http.HandlerFunc(s.handleListExpenses)))
	mux.Handle("POST /api/expenses", protect(http.HandlerFunc(s.handleCreateExpense)))
	mux.Handle("GET /api/expenses/{id}", protect(http.HandlerFunc(s.handleGetExpense)))
	mux.Handle("PUT /api/expenses/{id}", protect(http.HandlerFunc(s.handleUpdateExpense)))
	mux.Handle("DELETE /api/expenses/{id}", protect(http.HandlerFunc(s.handleDeleteExpense)))

	var h http.Handler = mux
	h = log.RequestIDMiddleware(trace.RequestID)(h)
	h = log.Middleware(logger)(h)
	h = s.detector.Middleware(h)
	h = security.CORS(corsCfg)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = trace.NewMiddleware(s.detector.ExtractClientIP, logger).WithRoutes(mux).Middleware(h)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.otpLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) limiterKey(r *http.Request) string {
	return s.detector.ExtractClientIP(r) + " " + r.URL.Path
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	TooManyRequestsError("Too many requests, please try again later").Write(w)
}
