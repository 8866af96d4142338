package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-tenant-guard/audit"
	"github.com/jrsteele09/go-tenant-guard/internal/config"
	"github.com/jrsteele09/go-tenant-guard/isolation"
	"github.com/jrsteele09/go-tenant-guard/rbac"
	"github.com/jrsteele09/go-tenant-guard/tenantctx"
	"github.com/jrsteele09/go-tenant-guard/tenants"
	"github.com/jrsteele09/go-tenant-guard/token/refresh"
	"github.com/jrsteele09/go-tenant-guard/users"
)

// Server wires the tenancy, rbac and token services behind an HTTP mux.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     zerolog.Logger
	config     config.Config
	routes     []string

	resolver *tenantctx.Resolver
	enforcer *isolation.Enforcer
	roles    *rbac.Service
	engine   *refresh.Engine
	sink     audit.Sink

	tenantRepo     tenants.Repo
	userRepo       users.UserRepo
	membershipRepo users.MembershipRepo
}

// Deps holds the service dependencies the server routes over.
type Deps struct {
	Resolver       *tenantctx.Resolver
	Enforcer       *isolation.Enforcer
	Roles          *rbac.Service
	Engine         *refresh.Engine
	Sink           audit.Sink
	TenantRepo     tenants.Repo
	UserRepo       users.UserRepo
	MembershipRepo users.MembershipRepo
}

func New(cfg config.Config, logger zerolog.Logger, deps Deps) *Server {
	mux := http.NewServeMux()
	if deps.Sink == nil {
		deps.Sink = audit.NopSink{}
	}
	s := &Server{
		httpServer: &http.Server{
			Addr:              cfg.GetPort(),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		mux:            mux,
		logger:         logger,
		config:         cfg,
		resolver:       deps.Resolver,
		enforcer:       deps.Enforcer,
		roles:          deps.Roles,
		engine:         deps.Engine,
		sink:           deps.Sink,
		tenantRepo:     deps.TenantRepo,
		userRepo:       deps.UserRepo,
		membershipRepo: deps.MembershipRepo,
	}
	s.initRoutes()
	return s
}

func (s *Server) Start() error {
	s.logRoutes()
	s.logger.Info().Msgf("listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.Start ListenAndServe: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the root handler, used by tests to drive the mux directly.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// RegisterRouteFunc registers a pattern such as "GET /v1/tenant" with the
// standard middleware chain applied.
func (s *Server) RegisterRouteFunc(pattern string, handlerFunc http.HandlerFunc, middleware ...MiddlewareFunc) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, ChainMiddleware(handlerFunc, middleware...))
}

// RegisterRouteHandler registers a plain http.Handler, bypassing the chain.
func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	for _, route := range s.routes {
		s.logger.Info().Msgf("route %s", route)
	}
}
