package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jrsteele09/go-tenant-guard/audit"
	"github.com/jrsteele09/go-tenant-guard/internal/errors"
	"github.com/jrsteele09/go-tenant-guard/isolation"
	"github.com/jrsteele09/go-tenant-guard/tenantctx"
	"github.com/jrsteele09/go-tenant-guard/token/refresh"
	"github.com/jrsteele09/go-tenant-guard/users"
)

const timeFormat = time.RFC3339

func (s *Server) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// tenantHandler returns the resolved tenant for the request.
func (s *Server) tenantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, err := s.enforcer.RequireTenant(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, tenant)
	}
}

// activeMembership loads the caller's membership for the resolved tenant and
// refuses anything but a currently active one. Suspended, pending and lapsed
// memberships never yield a role.
func (s *Server) activeMembership(ctx context.Context, rc tenantctx.RequestContext) (*users.Membership, error) {
	membership, err := s.membershipRepo.Get(rc.UserID, rc.TenantID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if !membership.IsActive(now) {
		s.sink.Record(ctx, audit.NewEvent(audit.EventAccessDenied, rc.UserID, rc.TenantID, map[string]string{
			"cause":  string(errors.ReasonMembershipInactive),
			"status": string(membership.EffectiveStatus(now)),
		}))
		return nil, errors.AccessDenied(errors.ReasonMembershipInactive, "membership for tenant %q is not active", rc.TenantID)
	}
	return membership, nil
}

// permissionsHandler lists the caller's effective permissions within the
// resolved tenant, combining the membership role with any direct assignments.
func (s *Server) permissionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc, ok := tenantctx.From(r.Context())
		if !ok || rc.UserID == "" {
			s.writeError(w, errors.AccessDenied(errors.ReasonNoTenantContext, "no tenant context on request"))
			return
		}
		if err := s.enforcer.Enforce(r.Context(), isolation.TenantIsolated); err != nil {
			s.writeError(w, err)
			return
		}
		membership, err := s.activeMembership(r.Context(), rc)
		if err != nil {
			s.writeError(w, err)
			return
		}
		perms, err := s.roles.EffectivePermissions(rc.UserID, membership.Role)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{
			"userId":      rc.UserID,
			"tenantId":    rc.TenantID,
			"role":        membership.Role,
			"permissions": perms,
		})
	}
}

// featureHandler reports whether a plan feature is enabled for the tenant.
func (s *Server) featureHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		enabled, err := s.enforcer.IsFeatureEnabled(r.Context(), name)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{"feature": name, "enabled": enabled})
	}
}

type switchTenantRequest struct {
	TenantID string `json:"tenantId"`
}

// switchTenantHandler moves the caller's current tenant to another one the
// caller holds an active membership in, updating the denormalized
// CurrentTenantID on the user record.
func (s *Server) switchTenantHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc, ok := tenantctx.From(r.Context())
		if !ok || rc.UserID == "" {
			s.writeError(w, errors.AccessDenied(errors.ReasonNoTenantContext, "no tenant context on request"))
			return
		}
		var req switchTenantRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TenantID == "" {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if _, err := s.activeMembership(r.Context(), tenantctx.RequestContext{UserID: rc.UserID, TenantID: req.TenantID}); err != nil {
			s.writeError(w, err)
			return
		}
		user, err := s.userRepo.GetByID(rc.UserID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		previous := user.CurrentTenantID
		user.CurrentTenantID = req.TenantID
		if err := s.userRepo.Upsert(user); err != nil {
			s.writeError(w, err)
			return
		}
		s.sink.Record(r.Context(), audit.NewEvent(audit.EventTenantSwitch, rc.UserID, req.TenantID, map[string]string{
			"previous_tenant_id": previous,
		}))
		s.writeJSON(w, http.StatusOK, map[string]string{"tenantId": req.TenantID})
	}
}

type tokenResponse struct {
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    string `json:"expiresAt"`
}

// issueTokenHandler issues a fresh refresh credential for the authenticated
// caller within the resolved tenant.
func (s *Server) issueTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc, ok := tenantctx.From(r.Context())
		if !ok || rc.UserID == "" {
			s.writeError(w, errors.AccessDenied(errors.ReasonNoTenantContext, "no tenant context on request"))
			return
		}
		if err := s.enforcer.Enforce(r.Context(), isolation.TenantIsolated); err != nil {
			s.writeError(w, err)
			return
		}
		membership, err := s.activeMembership(r.Context(), rc)
		if err != nil {
			s.writeError(w, err)
			return
		}
		subject := refresh.Subject{UserID: rc.UserID, TenantID: rc.TenantID, Role: membership.Role}
		signed, record, err := s.engine.IssueCredential(r.Context(), subject, deviceInfo(r))
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, tokenResponse{
			RefreshToken: signed,
			ExpiresAt:    record.ExpiresAt.Format(timeFormat),
		})
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// refreshHandler rotates a refresh credential, returning the replacement.
func (s *Server) refreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		signed, record, err := s.engine.Rotate(r.Context(), req.RefreshToken)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, tokenResponse{
			RefreshToken: signed,
			ExpiresAt:    record.ExpiresAt.Format(timeFormat),
		})
	}
}

// logoutHandler revokes every refresh credential the caller holds.
func (s *Server) logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc, ok := tenantctx.From(r.Context())
		if !ok || rc.UserID == "" {
			s.writeError(w, errors.AccessDenied(errors.ReasonNoTenantContext, "no tenant context on request"))
			return
		}
		revoked, err := s.engine.RevokeAll(r.Context(), rc.UserID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]int{"revoked": revoked})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("writing response")
	}
}

// writeError maps the error taxonomy onto HTTP statuses without leaking
// internal detail for unclassified errors.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"
	if kind, ok := errors.KindOf(err); ok {
		message = err.Error()
		switch kind {
		case errors.KindAccessDenied:
			status = http.StatusForbidden
		case errors.KindUnauthorized:
			status = http.StatusUnauthorized
		case errors.KindNotFound:
			status = http.StatusNotFound
		case errors.KindInvalidOperation:
			status = http.StatusConflict
		}
	} else {
		s.logger.Error().Err(err).Msg("unclassified error")
	}
	s.writeJSON(w, status, map[string]string{"error": message})
}

func deviceInfo(r *http.Request) refresh.DeviceInfo {
	return refresh.DeviceInfo{
		UserAgent: r.UserAgent(),
		IP:        r.RemoteAddr,
	}
}
