package tenants

// Tenant represents an isolated customer organization. The authorization
// core treats tenants as read-only: provisioning workflows create and
// mutate them elsewhere.
type Tenant struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Domain   string            `json:"domain,omitempty"`
	Plan     string            `json:"plan"`
	Features []string          `json:"features,omitempty"`
	Settings map[string]string `json:"settings,omitempty"`
	Active   bool              `json:"active"`
}

// HasFeature reports whether the named feature is enabled for this tenant.
func (t *Tenant) HasFeature(name string) bool {
	if t == nil {
		return false
	}
	for _, f := range t.Features {
		if f == name {
			return true
		}
	}
	return false
}

// Setting returns a settings value, or the given default when absent.
func (t *Tenant) Setting(key, defaultValue string) string {
	if t == nil {
		return defaultValue
	}
	if v, ok := t.Settings[key]; ok {
		return v
	}
	return defaultValue
}
