package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mybeatfi/securegate/internal/circuitbreaker"
	"github.com/mybeatfi/securegate/internal/config"
	"github.com/mybeatfi/securegate/internal/handler"
	"github.com/mybeatfi/securegate/internal/healthcheck"
	"github.com/mybeatfi/securegate/internal/middleware"
	"github.com/mybeatfi/securegate/internal/models"
	"github.com/mybeatfi/securegate/internal/ratelimit"
	"github.com/mybeatfi/securegate/internal/repository"
	"github.com/mybeatfi/securegate/internal/security"
	"github.com/mybeatfi/securegate/internal/service"
	"github.com/mybeatfi/securegate/internal/storage"
	"go.uber.org/zap"
)

type Server struct {
	router     *gin.Engine
	config     *config.Config
	logger     *zap.Logger
	registry   *security.Registry
	burst      *ratelimit.TokenBucket
	breaker    *circuitbreaker.CircuitBreaker
	recorder   *service.EventRecorder
	checker    *healthcheck.Checker
	analytics  *service.AnalyticsService
	httpServer *http.Server
	stop       context.CancelFunc
}

// redis may be nil when every limiter runs in memory
func New(cfg *config.Config, logger *zap.Logger, redis *storage.RedisClient, postgres *storage.Postgres) (*Server, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	files, err := storage.NewFileStore(cfg.Uploads.Dir)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.MaxMultipartMemory = 8 << 20

	eventRepo := repository.NewSecurityEventRepository(postgres)
	recorder := service.NewEventRecorder(eventRepo, logger, cfg.Security.EventBufferSize)

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:            "backend",
		MaxFailures:     cfg.CircuitBreaker.MaxFailures,
		Timeout:         time.Duration(cfg.CircuitBreaker.Timeout),
		HalfOpenSuccess: cfg.CircuitBreaker.HalfOpenSuccess,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to))
		},
	})

	s := &Server{
		router:   router,
		config:   cfg,
		logger:   logger,
		breaker:  breaker,
		recorder: recorder,
	}

	if b := cfg.RateLimit.Burst; b.RequestsPerSecond > 0 {
		s.burst = ratelimit.NewTokenBucket(b.RequestsPerSecond, b.Size)
	}
	s.registry = s.newRegistry(redis, security.MultiSink{security.NewLogSink(logger), recorder})
	s.analytics = service.NewAnalyticsService(eventRepo, s.registry)
	s.checker = newChecker(logger, redis, postgres)

	s.setupMiddleware()
	s.setupRoutes(redis, postgres, files)

	return s, nil
}

func (s *Server) limiter(redis *storage.RedisClient, class string) ratelimit.Limiter {
	return ratelimit.NewLimiter(redis, s.config.RateLimit.Backend, s.config.Policies()[class])
}

// One gate per session. Limiters and the breaker are shared, so a session
// cannot reset its budget by starting over.
func (s *Server) newRegistry(redis *storage.RedisClient, sink security.EventSink) *security.Registry {
	limiters := security.Limiters{
		Auth:    s.limiter(redis, ratelimit.ClassAuth),
		API:     s.limiter(redis, ratelimit.ClassAPI),
		Payment: s.limiter(redis, ratelimit.ClassPayment),
	}
	gateCfg := s.config.GateConfig()

	return security.NewRegistry(func(id string) *security.Gate {
		return security.New(gateCfg, limiters,
			security.WithSessionID(id),
			security.WithSink(sink),
			security.WithLogger(s.logger),
			security.WithBreaker(s.breaker),
		)
	}, time.Duration(s.config.Security.SessionIdleTTL))
}

func newChecker(logger *zap.Logger, redis *storage.RedisClient, postgres *storage.Postgres) *healthcheck.Checker {
	probes := []healthcheck.Probe{healthcheck.NewProbe("database", postgres.Ping)}
	if redis != nil {
		probes = append(probes, healthcheck.NewProbe("redis", redis.Ping))
	}

	return healthcheck.NewChecker(healthcheck.Config{
		Probes: probes,
		Logger: logger,
	})
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.CORS(s.config.Server.AllowedOrigins))
}

func (s *Server) setupRoutes(redis *storage.RedisClient, postgres *storage.Postgres, files *storage.FileStore) {
	authService := service.NewAuthService(repository.NewUserRepository(postgres), s.config.Auth.JWTSecret, s.config.Auth.TokenExpiryHours)
	formService := service.NewFormService(repository.NewSubmissionRepository(postgres))
	paymentService := service.NewPaymentService(repository.NewPaymentRepository(postgres))
	uploadService := service.NewUploadService(files, repository.NewUploadRepository(postgres))

	securityHandler := handler.NewSecurityHandler()
	authHandler := handler.NewAuthHandler(authService)
	formHandler := handler.NewFormHandler(formService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	uploadHandler := handler.NewUploadHandler(uploadService, s.config.GateConfig().MaxFileSize+1<<20)
	adminHandler := handler.NewAdminHandler(s.analytics, s.registry)
	systemHandler := handler.NewSystemHandler(s.breaker)

	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api", middleware.Session(s.registry), middleware.OptionalAuth(authService))
	if s.burst != nil {
		api.Use(middleware.RateLimit(s.burst, "burst", clientIP, s.logger))
	}
	{
		// Reachable while blocked so the client can render and clear the block
		api.GET("/security/status", securityHandler.Status)
		api.DELETE("/security/violations", securityHandler.ClearViolations)
	}

	guarded := api.Group("", middleware.Blocked())
	{
		guarded.POST("/files/validate", securityHandler.ValidateFile)
		guarded.POST("/forms/:form", formHandler.Submit)
		guarded.POST("/uploads",
			middleware.RateLimit(s.limiter(redis, ratelimit.ClassUpload), ratelimit.ClassUpload, middleware.ThrottleKey, s.logger),
			uploadHandler.Upload)
		guarded.POST("/auth/register", authHandler.Register)
		guarded.POST("/auth/login", authHandler.Login)
		guarded.POST("/payments", middleware.RequireAuth(authService), middleware.RequireVerified(), paymentHandler.Create)
	}

	admin := s.router.Group("/api/admin", middleware.RequireAuth(authService), middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/security/summary", adminHandler.GetSummary)
		admin.GET("/security/timeseries", adminHandler.GetTimeSeries)
		admin.GET("/security/events", adminHandler.GetEvents)
		admin.GET("/security/sessions/:id", adminHandler.GetSession)
		admin.DELETE("/security/sessions/:id/violations", adminHandler.ClearSession)
		admin.GET("/breaker", systemHandler.CircuitBreakerStatus)
		admin.POST("/breaker/:name/reset", systemHandler.ResetCircuitBreaker)
	}
}

func clientIP(c *gin.Context) string {
	return c.ClientIP()
}

func (s *Server) healthCheck(c *gin.Context) {
	overall := s.checker.OverallHealth()

	statusCode := http.StatusOK
	if overall != healthcheck.Healthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":           overall.String(),
		"service":          "securegate",
		"version":          "1.0.0",
		"timestamp":        time.Now().Unix(),
		"uptime":           time.Since(startTime).Seconds(),
		"checks":           s.checker.GetAllStatus(),
		"breaker":          s.breaker.State().String(),
		"sessions":         s.registry.Len(),
		"blocked_sessions": len(s.registry.Blocked()),
	})
}

// Starts the background workers and serves until Shutdown
func (s *Server) Run(addr string) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel

	s.checker.Start()
	s.registry.StartJanitor(ctx, time.Minute)
	if s.burst != nil {
		s.burst.StartJanitor(ctx, 2*time.Minute)
	}
	go s.purgeEvents(ctx)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  60 * time.Second, // large uploads
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	s.logger.Info("Starting server",
		zap.String("addr", addr),
		zap.String("environment", s.config.Server.Environment),
		zap.String("rate_limit_backend", s.config.RateLimit.Backend))

	return s.httpServer.ListenAndServe()
}

// Deletes persisted events past retention once an hour
func (s *Server) purgeEvents(ctx context.Context) {
	retention := time.Duration(s.config.Security.EventRetention)
	if retention <= 0 {
		return
	}

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.analytics.Purge(ctx, retention)
			if err != nil {
				s.logger.Error("Failed to purge security events", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("Purged security events", zap.Int64("count", n))
			}
		}
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	if s.stop != nil {
		s.stop()
	}
	s.checker.Stop()
	s.recorder.Close()

	return err
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

var startTime = time.Now()
