// Package http provides the gin-based HTTP transport.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/sentinel-advisor/pkg/infra/middleware"
	mwopts "github.com/kart-io/sentinel-advisor/pkg/options/middleware"
	options "github.com/kart-io/sentinel-advisor/pkg/options/server/http"
	apierrors "github.com/kart-io/sentinel-advisor/pkg/utils/errors"
	"github.com/kart-io/sentinel-advisor/pkg/utils/response"
	"github.com/kart-io/sentinel-advisor/pkg/utils/validator"
)

// Server is the HTTP server implementation.
type Server struct {
	opts     *options.Options
	engine   *gin.Engine
	server   *http.Server
	listener net.Listener
	errCh    chan error
}

// NewServer creates an HTTP server with the configured middleware chain applied.
// Middleware is installed before any route so every group inherits it.
func NewServer(serverOpts *options.Options, middlewareOpts *mwopts.Options) (*Server, error) {
	if serverOpts == nil {
		serverOpts = options.NewOptions()
	}

	gin.SetMode(gin.ReleaseMode)
	validator.InstallGin(validator.Global())

	engine := gin.New()
	engine.MaxMultipartMemory = serverOpts.MaxMultipartMemory
	engine.HandleMethodNotAllowed = true

	chain, err := middleware.Build(middlewareOpts)
	if err != nil {
		return nil, err
	}
	engine.Use(chain...)

	engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrRouteNotFound)
	})
	engine.NoMethod(func(c *gin.Context) {
		response.Fail(c, apierrors.ErrMethodNotAllowed)
	})

	return &Server{
		opts:   serverOpts,
		engine: engine,
		errCh:  make(chan error, 1),
	}, nil
}

// Name returns the server name.
func (s *Server) Name() string {
	return "http[gin]"
}

// Engine returns the underlying gin.Engine for route registration.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errCh <- err
		}
		close(s.errCh)
	}()
	return nil
}

// Err reports a serve failure after Start returned.
func (s *Server) Err() <-chan error {
	return s.errCh
}

// Stop stops the HTTP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
