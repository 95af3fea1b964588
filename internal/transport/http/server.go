// Package tradehttp serves the control and query API: loop commands,
// runtime status, ledger analytics, broker passthrough and metrics.
package tradehttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kabutrade/internal/gateway/kabus"
	"kabutrade/internal/ledger"
	"kabutrade/internal/logger"
	"kabutrade/internal/runner"
)

type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig carries the wired components the API exposes.
type ServerConfig struct {
	Addr      string
	Runner    *runner.Runner
	Store     *ledger.Store
	Broker    *kabus.Client
	LogRing   *logger.Ring
	EnvPath   string   // where /api/secrets persists credentials, empty disables saving
	Watchlist []string // symbols served by /api/watchlist
	Exchange  int
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Runner == nil || cfg.Store == nil || cfg.Broker == nil {
		return nil, errors.New("http server requires runner, store and broker")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.Exchange <= 0 {
		cfg.Exchange = 1
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r := &Router{
		runner:    cfg.Runner,
		store:     cfg.Store,
		broker:    cfg.Broker,
		ring:      cfg.LogRing,
		envPath:   cfg.EnvPath,
		watchlist: cfg.Watchlist,
		exchange:  cfg.Exchange,
	}
	r.Register(engine.Group("/api"))

	return &Server{addr: cfg.Addr, router: engine}, nil
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}
