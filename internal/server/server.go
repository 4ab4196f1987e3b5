// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/mbd888/reclaim/internal/auth"
	"github.com/mbd888/reclaim/internal/claims"
	"github.com/mbd888/reclaim/internal/cleanup"
	"github.com/mbd888/reclaim/internal/config"
	"github.com/mbd888/reclaim/internal/health"
	"github.com/mbd888/reclaim/internal/logging"
	"github.com/mbd888/reclaim/internal/metrics"
	"github.com/mbd888/reclaim/internal/ratelimit"
	"github.com/mbd888/reclaim/internal/rewards"
	"github.com/mbd888/reclaim/internal/security"
	"github.com/mbd888/reclaim/internal/traces"
	"github.com/mbd888/reclaim/internal/treasury"
	"github.com/mbd888/reclaim/internal/validation"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg         *config.Config
	guard       *auth.Guard
	authMgr     *auth.Manager
	cleanupSvc  *cleanup.Service
	rewardsSvc  *rewards.Service
	treasurySvc *treasury.Service
	claimsEng   *claims.Engine
	checks      *health.Registry
	rateLimiter *ratelimit.Limiter
	db          *sql.DB // nil if using in-memory
	router      *gin.Engine
	httpSrv     *http.Server
	logger      *slog.Logger
	stopTraces  func(context.Context) error

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
		guard:  auth.NewGuard(cfg.OwnerAddress),
		checks: health.NewRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	ctx := context.Background()

	// Tracing (no-op unless OTEL_EXPORTER_OTLP_ENDPOINT is set)
	stopTraces, err := traces.Init(ctx, cfg.OTLPEndpoint, s.logger)
	if err != nil {
		return nil, fmt.Errorf("initializing traces: %w", err)
	}
	s.stopTraces = stopTraces

	// Storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var (
		authStore     auth.Store
		cleanupStore  cleanup.Store
		rewardStore   rewards.Store
		treasuryStore treasury.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		authStore = auth.NewPostgresStore(db)
		cleanupStore = cleanup.NewPostgresStore(db)
		rewardStore = rewards.NewPostgresStore(db)
		treasuryStore = treasury.NewPostgresStore(db)
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		metrics.StartDBStatsCollector(ctx, db, 15*time.Second)
		s.checks.Register("database", func(ctx context.Context) health.Status {
			if err := db.PingContext(ctx); err != nil {
				return health.Status{Name: "database", Healthy: false, Detail: err.Error()}
			}
			return health.Status{Name: "database", Healthy: true}
		})
	} else {
		authStore = auth.NewMemoryStore()
		cleanupStore = cleanup.NewMemoryStore()
		rewardStore = rewards.NewMemoryStore()
		treasuryStore = treasury.NewMemoryStore()
		s.logger.Info("using in-memory storage")
	}

	s.authMgr = auth.NewManager(authStore)
	s.cleanupSvc = cleanup.NewService(cleanupStore, s.guard, cfg.MaxPayloadBytes)
	s.rewardsSvc = rewards.NewService(rewardStore, s.guard, rewards.Params{
		RatePerAccount:  cfg.RewardRate,
		BonusMultiplier: cfg.BonusMultiplier,
		BonusThreshold:  cfg.BonusThreshold,
		BonusMode:       cfg.BonusMode,
	})
	s.treasurySvc = treasury.NewService(treasuryStore, s.guard, cfg.RestrictFunding)
	s.claimsEng = claims.NewEngine(s.rewardsSvc, s.treasurySvc, s.guard)

	s.checks.Register("treasury", func(ctx context.Context) health.Status {
		if _, err := s.treasurySvc.Pool(ctx); err != nil {
			return health.Status{Name: "treasury", Healthy: false, Detail: err.Error()}
		}
		return health.Status{Name: "treasury", Healthy: true}
	})

	// Router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)
	return s, nil
}

// maskDSN hides credentials in a database URL for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "(unparseable)"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlcfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPS > 0 {
		rlcfg.RequestsPerMinute = s.cfg.RateLimitRPS * 60
	}
	s.rateLimiter = ratelimit.New(rlcfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

func (s *Server) setupRoutes() {
	// Health checks
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)

	// Prometheus metrics
	s.router.GET("/metrics", metrics.Handler())

	// Service info
	s.router.GET("/", s.infoHandler)

	cleanupH := cleanup.NewHandler(s.cleanupSvc)
	rewardsH := rewards.NewHandler(s.rewardsSvc)
	treasuryH := treasury.NewHandler(s.treasurySvc)
	claimsH := claims.NewHandler(s.claimsEng)
	authH := auth.NewHandler(s.authMgr)

	// Public reads; soft auth so handlers can see the caller when a key
	// is presented
	public := s.router.Group("/v1")
	public.Use(auth.Middleware(s.authMgr))
	public.POST("/auth/register", authH.Register)
	cleanupH.RegisterRoutes(public)
	rewardsH.RegisterRoutes(public)
	treasuryH.RegisterRoutes(public)

	// Authenticated writes
	protected := s.router.Group("/v1")
	protected.Use(auth.RequireAuth(s.authMgr))
	protected.GET("/auth/keys", authH.ListKeys)
	protected.DELETE("/auth/keys/:id", authH.RevokeKey)
	cleanupH.RegisterProtectedRoutes(protected)
	rewardsH.RegisterProtectedRoutes(protected)
	treasuryH.RegisterProtectedRoutes(protected)
	claimsH.RegisterProtectedRoutes(protected)

	// Owner operations
	owner := s.router.Group("/v1")
	owner.Use(auth.RequireOwner(s.authMgr, s.guard))
	cleanupH.RegisterOwnerRoutes(owner)
	rewardsH.RegisterOwnerRoutes(owner)
	treasuryH.RegisterOwnerRoutes(owner)
	claimsH.RegisterOwnerRoutes(owner)
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     "reclaim",
		"description": "Account cleanup program with treasury-backed rewards",
		"version":     "1.0.0",
		"owner":       s.guard.Owner(),
	})
}

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status string            `json:"status"`
	Time   string            `json:"time"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.checks.CheckAll(c.Request.Context())

	checks := make(map[string]string, len(statuses))
	for _, st := range statuses {
		if st.Healthy {
			checks[st.Name] = "healthy"
		} else {
			checks[st.Name] = "unhealthy"
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, HealthResponse{
		Status: status,
		Time:   time.Now().UTC().Format(time.RFC3339),
		Checks: checks,
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Run starts the server and blocks until shutdown
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"owner", s.guard.Owner(),
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	if s.stopTraces != nil {
		if err := s.stopTraces(ctx); err != nil {
			s.logger.Error("trace shutdown error", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
