// Package api exposes the focus daemon over HTTP for the browser extension
// and the CLI.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/deepfocus/internal/api/handler"
	"github.com/eliteGoblin/focusd/deepfocus/internal/api/middleware"
	"github.com/eliteGoblin/focusd/deepfocus/internal/domain"
	"github.com/eliteGoblin/focusd/deepfocus/internal/policy"
	"github.com/eliteGoblin/focusd/deepfocus/internal/usecase"
)

// Config defines the HTTP server settings.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

// DefaultConfig listens on localhost only.
func DefaultConfig() Config {
	return Config{Host: "127.0.0.1", Port: 5000, ShutdownTimeout: 5 * time.Second}
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Deps are the services the routes call into.
type Deps struct {
	Checker  *usecase.AccessChecker
	Stats    *usecase.StatsService
	Rules    domain.RuleStore
	Engine   *policy.Engine
	Focus    handler.FocusSource
	Activity handler.ActivitySource
	Session  handler.CodingState
	Liveness handler.Liveness
	Version  string
}

// Server hosts the Gin engine.
type Server struct {
	engine *gin.Engine
	config Config
	deps   Deps
	log    *zap.Logger
}

// NewServer constructs the HTTP API server.
func NewServer(cfg Config, deps Deps, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Host == "" {
		cfg.Host = DefaultConfig().Host
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultConfig().Port
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS())
	engine.Use(middleware.Logger(log))

	srv := &Server{
		engine: engine,
		config: cfg,
		deps:   deps,
		log:    log,
	}
	srv.setupRoutes()
	return srv
}

// Engine returns the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the configured address.
func (s *Server) Addr() string {
	return s.config.Addr()
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("http api listening", zap.String("addr", httpSrv.Addr))
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
