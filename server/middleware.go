package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-tenant-guard/audit"
	"github.com/jrsteele09/go-tenant-guard/tenantctx"
)

// MiddlewareFunc wraps a handler function with additional behaviour.
type MiddlewareFunc func(next http.HandlerFunc) http.HandlerFunc

// ChainMiddleware applies middleware so the first in the list runs first.
func ChainMiddleware(h http.HandlerFunc, middleware ...MiddlewareFunc) http.HandlerFunc {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

func LoggingMiddleware(logger zerolog.Logger) MiddlewareFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next(w, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("request")
		}
	}
}

func RecoverMiddleware(logger zerolog.Logger) MiddlewareFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("recovered from panic")
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next(w, r)
		}
	}
}

// tenantMiddleware resolves the tenant for the request and binds it onto the
// request context. Requests with no resolvable tenant pass through unbound;
// handlers that need one enforce it through the isolation package.
func (s *Server) tenantMiddleware() MiddlewareFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rc, ok := s.resolver.Resolve(r, s.principal(r))
			if ok {
				r = r.WithContext(tenantctx.Bind(r.Context(), rc))
				s.sink.Record(r.Context(), audit.NewEvent(audit.EventTenantResolved, rc.UserID, rc.TenantID, map[string]string{
					"path": r.URL.Path,
				}))
			}
			next(w, r)
		}
	}
}

// principal builds the caller identity from the upstream gateway headers,
// filling in the user's current tenant when the user is known.
func (s *Server) principal(r *http.Request) *tenantctx.Principal {
	id := r.Header.Get(s.config.GetUserIDHeader())
	if id == "" {
		return nil
	}
	p := &tenantctx.Principal{
		ID:    id,
		Email: r.Header.Get(s.config.GetUserEmailHeader()),
	}
	if s.userRepo != nil {
		if user, err := s.userRepo.GetByID(id); err == nil {
			p.TenantID = user.CurrentTenantID
			if p.Email == "" {
				p.Email = user.Email
			}
		}
	}
	return p
}
