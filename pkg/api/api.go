package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/mail-dispatcher/pkg/config"
	"github.com/telekom/mail-dispatcher/pkg/metrics"
	"github.com/telekom/mail-dispatcher/pkg/ratelimit"
	"github.com/telekom/mail-dispatcher/pkg/system"
	"github.com/telekom/mail-dispatcher/pkg/version"
)

type APIController interface {
	BasePath() string
	Register(rg *gin.RouterGroup) error
	Handlers() []gin.HandlerFunc
}

// HealthCheck reports whether a component is healthy, plus any detail worth
// showing on /healthz.
type HealthCheck func() (detail any, healthy bool)

type Server struct {
	gin     *gin.Engine
	http    *http.Server
	config  config.Server
	limiter *ratelimit.IPRateLimiter
	log     *zap.Logger

	checksMu sync.RWMutex
	checks   map[string]HealthCheck
}

// unlimitedPaths are never rate limited.
var unlimitedPaths = []string{"/healthz", "/metrics", "/version"}

func NewServer(log *zap.Logger, cfg config.Server, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
		system.RequestLogger(log.Sugar()),
	)

	if len(cfg.AllowedOrigins) > 0 {
		engine.Use(
			cors.New(cors.Config{
				AllowOrigins: cfg.AllowedOrigins,
				AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowHeaders: []string{"Origin", "Content-Type", system.RequestIDHeader},
				MaxAge:       12 * time.Hour,
			}),
		)
	}

	s := &Server{
		gin:    engine,
		config: cfg,
		log:    log,
	}

	if cfg.RateLimit.RequestsPerSecond > 0 {
		rl := ratelimit.DefaultAPIConfig()
		rl.Rate = cfg.RateLimit.RequestsPerSecond
		if cfg.RateLimit.Burst > 0 {
			rl.Burst = cfg.RateLimit.Burst
		}
		s.limiter = ratelimit.New(rl)
		engine.Use(s.limiter.MiddlewareWithExclusions(unlimitedPaths))
	}

	s.http = &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/version", func(c *gin.Context) { c.JSON(http.StatusOK, version.GetBuildInfo()) })
	engine.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	return s
}

// AddHealthCheck adds a component to /healthz. An unhealthy component marks
// the server degraded but keeps answering 200, so a slow audit backend never
// gets the API restarted.
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.checksMu.Lock()
	defer s.checksMu.Unlock()
	if s.checks == nil {
		s.checks = make(map[string]HealthCheck)
	}
	s.checks[name] = check
}

func (s *Server) handleHealth(c *gin.Context) {
	s.checksMu.RLock()
	defer s.checksMu.RUnlock()

	status := "ok"
	components := make(gin.H, len(s.checks))
	for name, check := range s.checks {
		detail, healthy := check()
		if !healthy {
			status = "degraded"
		}
		components[name] = gin.H{"healthy": healthy, "detail": detail}
	}
	body := gin.H{"status": status}
	if len(components) > 0 {
		body["components"] = components
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) RegisterAll(controllers []APIController) error {
	r := s.gin.Group("api")
	for _, c := range controllers {
		if err := c.Register(r.Group(c.BasePath(), c.Handlers()...)); err != nil {
			return err
		}
	}
	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Listen serves until Shutdown is called. It serves TLS when both a
// certificate and a key are configured.
func (s *Server) Listen() error {
	s.log.Info("HTTP server listening", zap.String("address", s.config.ListenAddress))

	var err error
	if s.config.TLSCertFile != "" && s.config.TLSKeyFile != "" {
		err = s.http.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
	} else {
		err = s.http.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return s.http.Shutdown(ctx)
}
