package fakeapi

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kbukum/shopkit/logger"
	"github.com/kbukum/shopkit/version"
)

// Paths served by the backend.
const (
	PathLogin   = "/auth/login"
	PathRefresh = "/auth/refresh"
	PathLogout  = "/auth/logout"
	PathHealth  = "/health"

	headerAppVersion = "X-App-Version"
)

// LogoutCall records one call to the logout endpoint.
type LogoutCall struct {
	RefreshToken string `json:"refresh_token"`
	DeviceToken  string `json:"device_token"`
}

// Server is the fake shop backend.
type Server struct {
	engine *gin.Engine
	tokens *issuer
	log    *logger.Logger

	accessTTL  time.Duration
	refreshTTL time.Duration
	users      map[string]string
	onRefresh  func(ctx context.Context)

	mu            sync.Mutex
	failRefresh   bool
	refreshDelay  time.Duration
	minAppVersion string
	revoked       map[string]bool
	logouts       []LogoutCall

	loginCalls   atomic.Int32
	refreshCalls atomic.Int32
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.log = l.WithComponent("fakeapi") }
}

// WithClock sets the time source used for issuing and checking tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.tokens.now = now }
}

// WithRefreshHook registers fn to run at the start of every refresh call,
// before the configured delay.
func WithRefreshHook(fn func(ctx context.Context)) Option {
	return func(s *Server) { s.onRefresh = fn }
}

// New creates the backend and registers its routes.
func New(cfg Config, opts ...Option) (*Server, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:        gin.New(),
		tokens:        &issuer{secret: []byte(cfg.Secret), name: cfg.Issuer, now: time.Now},
		log:           logger.Nop(),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		users:         cfg.Users,
		failRefresh:   cfg.FailRefresh,
		refreshDelay:  cfg.RefreshDelay,
		minAppVersion: cfg.MinAppVersion,
		revoked:       make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler, for httptest.NewServer or http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.Use(gin.Recovery(), s.requestLogger(), s.versionGate())

	s.engine.GET(PathHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.POST(PathLogin, s.login)
	s.engine.POST(PathRefresh, s.refresh)
	s.engine.POST(PathLogout, s.logout)

	api := s.engine.Group("/api", s.authenticate())
	api.GET("/profile", s.profile)
	api.GET("/orders", s.orders)
	api.GET("/products/:id", s.product)
	api.POST("/cart/items", s.addCartItem)
}

// Issue creates a token pair for subject outside of the login flow. A
// non-positive accessTTL yields an access token that is already expired,
// which makes the first authenticated request answer 401.
func (s *Server) Issue(subject string, accessTTL time.Duration) (TokenPair, error) {
	return s.tokens.pair(subject, accessTTL, s.refreshTTL)
}

// SetFailRefresh switches refresh failures on or off.
func (s *Server) SetFailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

// SetRefreshDelay changes how long refresh responses are held.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

// SetMinAppVersion changes the oldest app version served. Empty disables
// the check.
func (s *Server) SetMinAppVersion(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minAppVersion = v
}

// LoginCalls returns how many times the login endpoint was called.
func (s *Server) LoginCalls() int { return int(s.loginCalls.Load()) }

// RefreshCalls returns how many times the refresh endpoint was called.
func (s *Server) RefreshCalls() int { return int(s.refreshCalls.Load()) }

// LogoutCalls returns a copy of the recorded logout calls.
func (s *Server) LogoutCalls() []LogoutCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LogoutCall(nil), s.logouts...)
}

// requestLogger logs every request at a level chosen by status.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == PathHealth {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := map[string]interface{}{
			logger.FieldMethod:     c.Request.Method,
			logger.FieldPath:       c.Request.URL.Path,
			logger.FieldStatusCode: status,
			logger.FieldDuration:   time.Since(start).Milliseconds(),
		}
		if id := c.GetHeader("X-Request-Id"); id != "" {
			fields[logger.FieldRequestID] = id
		}
		switch {
		case status >= 500:
			s.log.Error("Request completed", fields)
		case status >= 400:
			s.log.Warn("Request completed", fields)
		default:
			s.log.Debug("Request completed", fields)
		}
	}
}

// versionGate answers 426 to clients older than the minimum app version.
func (s *Server) versionGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		minVersion := s.minAppVersion
		s.mu.Unlock()

		if minVersion == "" || c.Request.URL.Path == PathHealth {
			c.Next()
			return
		}
		if !version.AtLeast(c.GetHeader(headerAppVersion), minVersion) {
			c.AbortWithStatusJSON(http.StatusUpgradeRequired, gin.H{
				"error":           "App update required",
				"min_app_version": minVersion,
			})
			return
		}
		c.Next()
	}
}

// authenticate validates Bearer access tokens. Validated claims are stored
// in the Gin context under "claims".
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		if values := c.Request.Header.Values("Authorization"); len(values) > 1 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Duplicate authorization header"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}
		claims, err := s.tokens.parse(parts[1], KindAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		c.Set("claims", claims)
		c.Next()
	}
}
