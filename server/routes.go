package server

import (
	"github.com/jrsteele09/go-tenant-guard/internal/obs"
)

func (s *Server) initRoutes() {
	standard := []MiddlewareFunc{
		RecoverMiddleware(s.logger),
		LoggingMiddleware(s.logger),
		s.tenantMiddleware(),
	}

	s.RegisterRouteFunc("GET /healthz", s.healthHandler())
	s.RegisterRouteHandler("GET /metrics", obs.Handler())

	s.RegisterRouteFunc("GET /v1/tenant", s.tenantHandler(), standard...)
	s.RegisterRouteFunc("GET /v1/features/{name}", s.featureHandler(), standard...)
	s.RegisterRouteFunc("GET /v1/me/permissions", s.permissionsHandler(), standard...)
	s.RegisterRouteFunc("POST /v1/me/tenant", s.switchTenantHandler(), standard...)

	s.RegisterRouteFunc("POST /v1/auth/token", s.issueTokenHandler(), standard...)
	s.RegisterRouteFunc("POST /v1/auth/refresh", s.refreshHandler(), standard...)
	s.RegisterRouteFunc("POST /v1/auth/logout", s.logoutHandler(), standard...)
}
