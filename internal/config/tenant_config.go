package config

type TenantConfig interface {
	GetTenantHeader() string
	GetUserIDHeader() string
	GetUserEmailHeader() string
	GetTenantQueryParam() string
	GetReservedSubdomains() []string
}

type Tenancy struct{}

var _ TenantConfig = Tenancy{}

func (Tenancy) GetTenantHeader() string {
	return GetEnv("TENANT_HEADER", "X-Tenant-Id")
}

func (Tenancy) GetUserIDHeader() string {
	return GetEnv("USER_ID_HEADER", "X-User-Id")
}

func (Tenancy) GetUserEmailHeader() string {
	return GetEnv("USER_EMAIL_HEADER", "X-User-Email")
}

// GetTenantQueryParam names the development-only query override. The
// resolver refuses it entirely when IsProduction() is true.
func (Tenancy) GetTenantQueryParam() string {
	return "tenantId"
}

// GetReservedSubdomains lists subdomains that never resolve to a tenant.
func (Tenancy) GetReservedSubdomains() []string {
	return []string{"www", "api", "admin", "app", "dev", "staging", "prod"}
}
