package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sre-norns/cloudapi/pkg/bark"
	"github.com/sre-norns/cloudapi/pkg/cloudapi"
	"go.uber.org/zap"
)

// Name of the service reported by `/version`
const Name = "cloudapi"

var ErrNoService = errors.New("no listing service provided")

// ReadinessCheck reports if the server can serve requests. Nil error means ready.
type ReadinessCheck func(ctx context.Context) error

// Options configure the HTTP server.
type Options struct {
	Listen          string
	DatacenterName  string
	ShutdownTimeout time.Duration

	// Ready is consulted on every `/ping`. Nil means always ready.
	Ready ReadinessCheck
}

// Server serves the API over HTTP.
type Server struct {
	options  Options
	engine   *gin.Engine
	registry *prometheus.Registry
	log      *zap.Logger
}

// NewRegistry returns a private metrics registry with process and Go runtime collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// New creates a server with all API routes mounted.
// Metrics of the server are registered with reg and exposed on `/metrics`.
func New(options Options, service *cloudapi.Service, reg *prometheus.Registry, log *zap.Logger) (*Server, error) {
	if service == nil {
		return nil, ErrNoService
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if log == nil {
		log = zap.NewNop()
	}

	httpMetrics, err := bark.NewHTTPMetrics(reg, Name)
	if err != nil {
		return nil, err
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(
		bark.RequestID(),
		bark.RequestLogger(log),
		bark.Recovery(log),
		bark.Datacenter(options.DatacenterName),
		httpMetrics.Middleware(),
	)

	engine.NoRoute(func(ctx *gin.Context) {
		bark.AbortWithError(ctx, &bark.ErrorResponse{
			Status:  http.StatusNotFound,
			Code:    "ResourceNotFound",
			Message: ctx.Request.URL.Path + " does not exist",
		})
	})
	engine.NoMethod(func(ctx *gin.Context) {
		bark.AbortWithError(ctx, &bark.ErrorResponse{
			Status:  http.StatusMethodNotAllowed,
			Code:    "BadMethod",
			Message: ctx.Request.Method + " is not allowed on " + ctx.Request.URL.Path,
		})
	})

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	s := &Server{
		options:  options,
		engine:   engine,
		registry: reg,
		log:      log,
	}

	api := engine.Group("/", bark.ContentTypeAPI())
	api.GET("/ping", s.handlePing)
	api.GET("/version", handleVersion)
	service.Register(api)

	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handlePing(ctx *gin.Context) {
	if s.options.Ready != nil {
		if err := s.options.Ready(ctx.Request.Context()); err != nil {
			s.log.Warn("readiness check failed", zap.String("request_id", bark.RequestIDOf(ctx)), zap.Error(err))
			bark.Reply(ctx, http.StatusServiceUnavailable, bark.StatusResponse{Ready: false})
			return
		}
	}

	bark.Reply(ctx, http.StatusOK, bark.StatusResponse{Ready: true})
}

func handleVersion(ctx *gin.Context) {
	bark.Reply(ctx, http.StatusOK, bark.NewVersionResponse(Name))
}

// Run serves requests until ctx is done, then waits up to ShutdownTimeout for in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.options.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %q: %w", s.options.Listen, err)
	}

	return s.Serve(ctx, lis)
}

// Serve is like [Server.Run] with a listener given by the caller. The listener is closed on return.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.log),
	}

	serveErr := make(chan error, 1)
	go func() {
		s.log.Info("serving API", zap.Stringer("address", lis.Addr()))
		serveErr <- srv.Serve(lis)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down", zap.Duration("timeout", s.options.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown gracefully: %w", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
