// Package server wires the escrow service together: storage, chain
// client, order engine, reconciliation, admin gateway, and the HTTP
// surface.
package server

import (
	"context"
	"database/sql"
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
	_ "github.com/lib/pq"

	"github.com/algocart/escrowd/internal/admin"
	"github.com/algocart/escrowd/internal/blocklist"
	"github.com/algocart/escrowd/internal/chain"
	"github.com/algocart/escrowd/internal/config"
	"github.com/algocart/escrowd/internal/health"
	"github.com/algocart/escrowd/internal/idgen"
	"github.com/algocart/escrowd/internal/logging"
	"github.com/algocart/escrowd/internal/metrics"
	"github.com/algocart/escrowd/internal/order"
	"github.com/algocart/escrowd/internal/ratelimit"
	"github.com/algocart/escrowd/internal/reconcile"
	"github.com/algocart/escrowd/internal/security"
	"github.com/algocart/escrowd/internal/traces"
	"github.com/algocart/escrowd/internal/validation"
)

// Version reported by the health endpoint.
const Version = "0.1.0"

// Server wraps the HTTP server and dependencies.
type Server struct {
	cfg         *config.Config
	logger      *slog.Logger
	router      *gin.Engine
	httpSrv     *http.Server
	db          *sql.DB // nil if using in-memory
	chainClient chain.Client
	releaser    chain.Releaser
	orders      *order.Service
	verifier    *reconcile.Service
	blocklist   *blocklist.Service
	gateway     *admin.Gateway
	rateLimiter *ratelimit.Limiter
	checks      *health.Registry
	stopTraces  func(context.Context) error

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithChainClient sets a custom chain client (for testing).
func WithChainClient(c chain.Client) Option {
	return func(s *Server) {
		s.chainClient = c
	}
}

// WithReleaser sets the escrow release signer. Without one, releases
// must arrive as client-signed transaction IDs.
func WithReleaser(r chain.Releaser) Option {
	return func(s *Server) {
		s.releaser = r
	}
}

// New creates a new server instance.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, cfg.LogFormat),
		checks: health.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Storage: Postgres if DATABASE_URL set, otherwise in-memory.
	var (
		orderStore order.Store
		blockStore blocklist.Store
		auditLog   admin.AuditLogger
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		s.db = db
		orderStore = order.NewPostgresStore(db)
		blockStore = blocklist.NewPostgresStore(db)
		auditLog = admin.NewPostgresAuditLog(db)
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		orderStore = order.NewMemoryStore()
		blockStore = blocklist.NewMemoryStore()
		auditLog = admin.NewMemoryAuditLog()
		s.logger.Warn("using in-memory storage, data is lost on restart")
	}

	// Chain: algod if configured, otherwise an in-process fake that
	// also signs releases, for local development.
	if s.chainClient == nil {
		if cfg.AlgodAddress != "" {
			algod, err := chain.NewAlgod(cfg.AlgodAddress, cfg.AlgodToken)
			if err != nil {
				return nil, fmt.Errorf("algod client: %w", err)
			}
			s.chainClient = algod
			s.logger.Info("using algod node", "address", cfg.AlgodAddress)
		} else {
			fake := chain.NewFake()
			s.chainClient = fake
			if s.releaser == nil {
				s.releaser = fake
			}
			s.logger.Warn("no ALGOD_ADDRESS set, using in-process fake chain")
		}
	}

	s.blocklist = blocklist.NewService(blockStore)
	s.orders = order.NewService(orderStore).
		WithBlockPolicy(s.blocklist).
		WithEscrowDeriver(chain.AppEscrowAddress)
	if s.releaser != nil {
		s.orders = s.orders.WithReleaser(s.releaser)
	}

	s.verifier = reconcile.NewService(s.chainClient, s.orders, cfg.ConfirmTimeout, cfg.ConfirmPollInterval)

	credentials, err := admin.NewVerifier(cfg.AdminSecretHash)
	if err != nil {
		return nil, fmt.Errorf("admin credentials: %w", err)
	}
	s.gateway = admin.NewGateway(credentials, s.orders, s.blocklist, auditLog)

	s.registerHealthChecks()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)
	return s, nil
}

func (s *Server) registerHealthChecks() {
	if s.db != nil {
		s.checks.Register("database", 2*time.Second, s.db.PingContext)
	}
	if algod, ok := s.chainClient.(*chain.Algod); ok {
		s.checks.Register("algod", 5*time.Second, algod.Healthy)
	}
}

// maskDSN hides the password in a connection string for logging.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

func (s *Server) setupMiddleware() {
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

	s.router.Use(security.HeadersMiddleware())

	// CORS is wide open in development; lock down by origin elsewhere.
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	limCfg := ratelimit.DefaultConfig()
	limCfg.RequestsPerMinute = s.cfg.RateLimitRPM
	s.rateLimiter = ratelimit.New(limCfg)
	s.router.Use(s.rateLimiter.Middleware())

	s.router.Use(metrics.Middleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = idgen.Hex(16)
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		logger := logging.L(c.Request.Context())

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
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	v1 := s.router.Group("/v1")

	orderHandler := order.NewHandler(s.orders).WithVerifier(s.verifier)
	orderHandler.RegisterRoutes(v1)

	adminHandler := admin.NewHandler(s.gateway)
	adminHandler.RegisterRoutes(v1)
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.checks.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"version":   Version,
		"checks":    statuses,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
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
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Run starts the server and blocks until a shutdown signal, context
// cancellation, or a fatal server error.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTraces, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("trace exporter init failed", "error", err)
	} else {
		s.stopTraces = shutdownTraces
	}

	if s.db != nil {
		metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

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
		s.logger.Info("starting server", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

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

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var shutdownErr error
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			shutdownErr = err
		}
	}

	// Let in-flight funding verifications finish so no order is left
	// optimistically FUNDED without a verdict.
	s.verifier.Close()
	s.logger.Info("funding verifier drained")

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	if s.stopTraces != nil {
		if err := s.stopTraces(ctx); err != nil {
			s.logger.Error("trace exporter shutdown error", "error", err)
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
	return shutdownErr
}

// Router returns the gin router for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}
