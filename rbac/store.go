package rbac

// Store persists roles, role-permission assignments, and user role grants.
// The service layer performs all invariant checks; stores only hold data.
type Store interface {
	UpsertRole(role *Role) error
	GetRole(roleID string) (*Role, error)
	GetRoleByName(name string) (*Role, error)
	DeleteRole(roleID string) error
	ListRoles() ([]*Role, error)

	SetRolePermissions(roleID string, permissions []Permission) error
	GrantPermission(roleID string, permission Permission) error
	RevokePermission(roleID string, permission Permission) error
	RolePermissions(roleID string) ([]Permission, error)

	AssignRole(userID, roleID string) error
	UnassignRole(userID, roleID string) error
	UserRoleIDs(userID string) ([]string, error)
}
