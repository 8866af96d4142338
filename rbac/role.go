// Package rbac resolves a principal's effective permissions through a
// hierarchical role model. Roles reference their parent by id; hierarchy
// walks happen over a lookup table, never through object pointers.
package rbac

// Resource is an enumerated resource kind a permission applies to.
type Resource string

const (
	ResourceUsers     Resource = "users"
	ResourceTeams     Resource = "teams"
	ResourceRoles     Resource = "roles"
	ResourceTenants   Resource = "tenants"
	ResourceBilling   Resource = "billing"
	ResourceAnalytics Resource = "analytics"
	ResourceSettings  Resource = "settings"
	ResourceTokens    Resource = "tokens"
)

// Action is the operation a permission allows on a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
)

// Scope bounds where a permission applies.
type Scope string

const (
	ScopeGlobal Scope = "global"
	ScopeTenant Scope = "tenant"
	ScopeTeam   Scope = "team"
	ScopeUser   Scope = "user"
)

// Permission is a (resource, action, scope) authorization unit. Identity is
// the (resource, action) pair.
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
	Scope    Scope    `json:"scope"`
}

// Key returns the identity key of the permission.
func (p Permission) Key() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// Role is a named privilege tier. Lower Level means more privileged. A role
// with a ParentID inherits that parent's permissions transitively; the
// parent's level must be strictly lower.
type Role struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Level    int    `json:"level"`
	ParentID string `json:"parent_id,omitempty"`
	System   bool   `json:"system"`
	TenantID string `json:"tenant_id,omitempty"` // empty = system-wide
}

// CanManage reports whether role a may administer role b: a strictly more
// privileged level, or a and b are the same role.
func CanManage(a, b *Role) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Level < b.Level || a.ID == b.ID
}
