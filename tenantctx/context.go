// Package tenantctx resolves and propagates the tenant a request belongs
// to. The resolved RequestContext rides on the request's context.Context so
// that concurrent requests can never observe each other's binding.
package tenantctx

import (
	"context"

	"github.com/jrsteele09/go-tenant-guard/tenants"
)

// Principal is the minimal view of an authenticated caller that tenant
// resolution needs.
type Principal struct {
	ID       string
	Email    string
	TenantID string
}

// RequestContext is the per-request tenant binding. It is ephemeral and
// never persisted.
type RequestContext struct {
	TenantID  string
	Tenant    *tenants.Tenant
	UserID    string
	UserEmail string
}

type requestContextKey struct{}

// cleared marks an explicit Clear so that a cleared context stays absent
// even when an ancestor context carries a binding.
var cleared = &RequestContext{}

// Bind establishes rc for the remainder of the unit of work rooted at the
// returned context.
func Bind(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, &rc)
}

// From returns the active binding, or false when absent.
func From(ctx context.Context) (RequestContext, bool) {
	if ctx == nil {
		return RequestContext{}, false
	}
	v, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	if !ok || v == nil || v == cleared {
		return RequestContext{}, false
	}
	return *v, true
}

// TenantID returns the bound tenant id, or false when absent.
func TenantID(ctx context.Context) (string, bool) {
	rc, ok := From(ctx)
	if !ok || rc.TenantID == "" {
		return "", false
	}
	return rc.TenantID, true
}

// Run executes fn with rc temporarily bound. The caller's context is never
// mutated, so the prior binding is intact after fn returns or panics;
// nested Run calls therefore restore in strict LIFO order.
func Run(ctx context.Context, rc RequestContext, fn func(context.Context) error) error {
	return fn(Bind(ctx, rc))
}

// Clear drops the binding for contexts derived from the returned one.
func Clear(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestContextKey{}, cleared)
}
