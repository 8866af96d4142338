// Package isolation gates operations on the presence and validity of a
// tenant binding. Handlers call Enforce (or the finer-grained helpers)
// before touching any tenant-owned data; absence of a binding always fails
// closed.
package isolation

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-tenant-guard/audit"
	"github.com/jrsteele09/go-tenant-guard/internal/errors"
	"github.com/jrsteele09/go-tenant-guard/internal/obs"
	"github.com/jrsteele09/go-tenant-guard/tenantctx"
	"github.com/jrsteele09/go-tenant-guard/tenants"
)

// ScopeLevel is the declarative enforcement level attached to an operation.
type ScopeLevel int

const (
	// TenantScoped requires a tenant binding to exist.
	TenantScoped ScopeLevel = iota
	// TenantIsolated additionally validates the bound tenant against the
	// store before any data access.
	TenantIsolated
)

func (l ScopeLevel) String() string {
	switch l {
	case TenantIsolated:
		return "tenant-isolated"
	default:
		return "tenant-scoped"
	}
}

// TenantOwned is implemented by resources that belong to a tenant.
type TenantOwned interface {
	OwnerTenantID() string
}

// Predicate is a tenant equality constraint for storage queries.
type Predicate struct {
	Field string
	Value string
}

// SQL renders the predicate as a parameterised fragment for the given
// placeholder index.
func (p Predicate) SQL(placeholder int) (string, any) {
	return fmt.Sprintf("%s = $%d", p.Field, placeholder), p.Value
}

// Enforcer validates tenant bindings and derives tenant-qualified
// identifiers. The zero value is not usable; construct with New.
type Enforcer struct {
	tenantRepo tenants.Repo
	sink       audit.Sink
	logger     zerolog.Logger
}

type Option func(*Enforcer)

// WithTenantRepo enables TenantIsolated validation and feature lookups when
// the bound context carries no snapshot.
func WithTenantRepo(repo tenants.Repo) Option {
	return func(e *Enforcer) {
		e.tenantRepo = repo
	}
}

func WithAuditSink(sink audit.Sink) Option {
	return func(e *Enforcer) {
		e.sink = sink
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Enforcer) {
		e.logger = logger
	}
}

func New(options ...Option) *Enforcer {
	e := &Enforcer{sink: audit.NopSink{}, logger: zerolog.Nop()}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// HasContext reports whether a tenant binding is present.
func (e *Enforcer) HasContext(ctx context.Context) bool {
	_, ok := tenantctx.TenantID(ctx)
	return ok
}

// RequireTenantID returns the bound tenant id or fails closed.
func (e *Enforcer) RequireTenantID(ctx context.Context) (string, error) {
	tenantID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return "", e.deny(ctx, errors.ReasonNoTenantContext, "", nil)
	}
	return tenantID, nil
}

// RequireTenant returns the bound tenant snapshot, loading it from the repo
// when the binding carries only an id.
func (e *Enforcer) RequireTenant(ctx context.Context) (*tenants.Tenant, error) {
	rc, ok := tenantctx.From(ctx)
	if !ok || rc.TenantID == "" {
		return nil, e.deny(ctx, errors.ReasonNoTenantContext, "", nil)
	}
	if rc.Tenant != nil {
		return rc.Tenant, nil
	}
	if e.tenantRepo == nil {
		return nil, errors.NotFound(errors.ReasonTenant, "no snapshot for tenant %q and no repo configured", rc.TenantID)
	}
	tenant, err := e.tenantRepo.Get(rc.TenantID)
	if err != nil {
		return nil, errors.NotFound(errors.ReasonTenant, "tenant %q", rc.TenantID).WithCause(err)
	}
	return tenant, nil
}

// Enforce applies the declarative scope level for an operation. Handlers
// call it first, before any data access.
func (e *Enforcer) Enforce(ctx context.Context, level ScopeLevel) error {
	tenantID, err := e.RequireTenantID(ctx)
	if err != nil {
		return err
	}
	if level != TenantIsolated {
		return nil
	}
	tenant, err := e.RequireTenant(ctx)
	if err != nil {
		return err
	}
	if !tenant.Active {
		return e.deny(ctx, errors.ReasonNoTenantContext, tenantID, map[string]string{"cause": "tenant_inactive"})
	}
	return nil
}

// ScopedPredicate returns an equality predicate binding the given field to
// the active tenant. The default field is "tenant_id".
func (e *Enforcer) ScopedPredicate(ctx context.Context, field string) (Predicate, error) {
	tenantID, err := e.RequireTenantID(ctx)
	if err != nil {
		return Predicate{}, err
	}
	if field == "" {
		field = "tenant_id"
	}
	return Predicate{Field: field, Value: tenantID}, nil
}

// ValidateOwnership fails when the resource belongs to a different tenant
// than the bound one.
func (e *Enforcer) ValidateOwnership(ctx context.Context, resourceTenantID string) error {
	tenantID, err := e.RequireTenantID(ctx)
	if err != nil {
		return err
	}
	if resourceTenantID != tenantID {
		return e.deny(ctx, errors.ReasonCrossTenant, tenantID, map[string]string{"resource_tenant_id": resourceTenantID})
	}
	return nil
}

// FilterByTenant drops the elements of items that belong to a different
// tenant than the bound one and records how many were removed.
func FilterByTenant[T TenantOwned](e *Enforcer, ctx context.Context, items []T) ([]T, error) {
	tenantID, err := e.RequireTenantID(ctx)
	if err != nil {
		return nil, err
	}
	kept := make([]T, 0, len(items))
	for _, item := range items {
		if item.OwnerTenantID() == tenantID {
			kept = append(kept, item)
		}
	}
	if dropped := len(items) - len(kept); dropped > 0 {
		obs.FilteredRows.Add(float64(dropped))
		e.logger.Warn().
			Str("tenant_id", tenantID).
			Int("dropped", dropped).
			Msg("filtered cross-tenant rows from collection")
	}
	return kept, nil
}

// IsFeatureEnabled reads the bound tenant's feature list.
func (e *Enforcer) IsFeatureEnabled(ctx context.Context, name string) (bool, error) {
	tenant, err := e.RequireTenant(ctx)
	if err != nil {
		return false, err
	}
	return tenant.HasFeature(name), nil
}

// RequireFeature fails with AccessDenied(FeatureDisabled) when the feature
// is not enabled for the bound tenant.
func (e *Enforcer) RequireFeature(ctx context.Context, name string) error {
	enabled, err := e.IsFeatureEnabled(ctx, name)
	if err != nil {
		return err
	}
	if !enabled {
		tenantID, _ := tenantctx.TenantID(ctx)
		return e.deny(ctx, errors.ReasonFeatureDisabled, tenantID, map[string]string{"feature": name})
	}
	return nil
}

// CacheKey derives a tenant-namespaced cache key.
func (e *Enforcer) CacheKey(ctx context.Context, base string) (string, error) {
	tenantID, err := e.RequireTenantID(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("tenant:%s:%s", tenantID, base), nil
}

// SchemaName derives a per-tenant schema identifier safe for SQL use.
func (e *Enforcer) SchemaName(ctx context.Context) (string, error) {
	tenantID, err := e.RequireTenantID(ctx)
	if err != nil {
		return "", err
	}
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, tenantID)
	return "tenant_" + sanitized, nil
}

// deny audits and counts the denial, then returns the AccessDenied error.
func (e *Enforcer) deny(ctx context.Context, reason errors.Reason, tenantID string, metadata map[string]string) error {
	rc, _ := tenantctx.From(ctx)
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadata["reason"] = string(reason)
	e.sink.Record(ctx, audit.NewEvent(audit.EventAccessDenied, rc.UserID, tenantID, metadata))
	obs.AccessDenials.WithLabelValues(string(reason)).Inc()

	switch {
	case reason == errors.ReasonCrossTenant:
		return errors.AccessDenied(reason, "resource belongs to another tenant")
	case reason == errors.ReasonFeatureDisabled:
		return errors.AccessDenied(reason, "feature %q is not enabled for tenant %q", metadata["feature"], tenantID)
	case metadata["cause"] == "tenant_inactive":
		return errors.AccessDenied(reason, "tenant %q is not active", tenantID)
	default:
		return errors.AccessDenied(errors.ReasonNoTenantContext, "no tenant context bound to request")
	}
}
