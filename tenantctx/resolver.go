package tenantctx

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/jrsteele09/go-tenant-guard/tenants"
)

const (
	defaultTenantHeader     = "X-Tenant-Id"
	defaultUserIDHeader     = "X-User-Id"
	defaultUserEmailHeader  = "X-User-Email"
	defaultTenantQueryParam = "tenantId"
)

var defaultReservedSubdomains = []string{"www", "api", "admin", "app", "dev", "staging", "prod"}

var subdomainPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Resolver determines the tenant a request belongs to. Resolution precedence,
// first match wins:
//
//  1. Tenant id carried by an already-authenticated principal.
//  2. The tenant header, optionally paired with user id/email headers.
//  3. The request host's subdomain, excluding reserved names.
//  4. A query-parameter override, refused in production.
//
// No match yields an absent context, never an error.
type Resolver struct {
	tenantRepo         tenants.Repo
	tenantHeader       string
	userIDHeader       string
	userEmailHeader    string
	queryParam         string
	reservedSubdomains map[string]struct{}
	production         bool
}

type ResolverOption func(*Resolver)

// WithTenantRepo attaches a repo so resolved contexts carry a tenant
// snapshot. An unknown tenant id still resolves, with an id-only context.
func WithTenantRepo(repo tenants.Repo) ResolverOption {
	return func(r *Resolver) {
		r.tenantRepo = repo
	}
}

// WithProductionMode disables the query-parameter override.
func WithProductionMode(production bool) ResolverOption {
	return func(r *Resolver) {
		r.production = production
	}
}

// WithHeaderNames overrides the default resolution header names.
func WithHeaderNames(tenantHeader, userIDHeader, userEmailHeader string) ResolverOption {
	return func(r *Resolver) {
		r.tenantHeader = tenantHeader
		r.userIDHeader = userIDHeader
		r.userEmailHeader = userEmailHeader
	}
}

// WithReservedSubdomains replaces the default reserved subdomain list.
func WithReservedSubdomains(subdomains ...string) ResolverOption {
	return func(r *Resolver) {
		r.reservedSubdomains = make(map[string]struct{}, len(subdomains))
		for _, s := range subdomains {
			r.reservedSubdomains[s] = struct{}{}
		}
	}
}

func NewResolver(options ...ResolverOption) *Resolver {
	r := &Resolver{
		tenantHeader:    defaultTenantHeader,
		userIDHeader:    defaultUserIDHeader,
		userEmailHeader: defaultUserEmailHeader,
		queryParam:      defaultTenantQueryParam,
	}
	for _, opt := range options {
		opt(r)
	}
	if r.reservedSubdomains == nil {
		r.reservedSubdomains = make(map[string]struct{}, len(defaultReservedSubdomains))
		for _, s := range defaultReservedSubdomains {
			r.reservedSubdomains[s] = struct{}{}
		}
	}
	return r
}

// Resolve extracts the tenant for the request. principal may be nil for
// unauthenticated requests.
func (r *Resolver) Resolve(req *http.Request, principal *Principal) (RequestContext, bool) {
	if principal != nil && principal.TenantID != "" {
		rc := r.contextFor(principal.TenantID)
		rc.UserID = principal.ID
		rc.UserEmail = principal.Email
		return rc, true
	}

	if tenantID := strings.TrimSpace(req.Header.Get(r.tenantHeader)); tenantID != "" {
		rc := r.contextFor(tenantID)
		rc.UserID = strings.TrimSpace(req.Header.Get(r.userIDHeader))
		rc.UserEmail = strings.TrimSpace(req.Header.Get(r.userEmailHeader))
		return rc, true
	}

	if sub := r.subdomain(req.Host); sub != "" {
		return r.contextFor(sub), true
	}

	if !r.production {
		if tenantID := strings.TrimSpace(req.URL.Query().Get(r.queryParam)); tenantID != "" {
			return r.contextFor(tenantID), true
		}
	}

	return RequestContext{}, false
}

func (r *Resolver) contextFor(tenantID string) RequestContext {
	rc := RequestContext{TenantID: tenantID}
	if r.tenantRepo != nil {
		if tenant, err := r.tenantRepo.Get(tenantID); err == nil {
			rc.Tenant = tenant
		}
	}
	return rc
}

// subdomain extracts the first host label when it is a plausible tenant
// identifier, or "" otherwise.
func (r *Resolver) subdomain(host string) string {
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	if !strings.Contains(host, ".") {
		return ""
	}
	sub := strings.ToLower(strings.SplitN(host, ".", 2)[0])
	if sub == "" || !subdomainPattern.MatchString(sub) {
		return ""
	}
	if _, reserved := r.reservedSubdomains[sub]; reserved {
		return ""
	}
	return sub
}
