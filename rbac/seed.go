package rbac

// System role ids. System roles are immutable after seeding.
const (
	RoleSuperAdmin = "super_admin"
	RoleOwner      = "owner"
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleMember     = "member"
	RoleViewer     = "viewer"
)

// Privilege levels for the seeded hierarchy. Lower is more privileged.
const (
	LevelOwner   = 1
	LevelAdmin   = 2
	LevelManager = 3
	LevelMember  = 4
	LevelViewer  = 5
)

// SeedSystemRoles installs the built-in role hierarchy and its direct
// permissions. Super Admin shares the Owner privilege level; it is a
// persona, not a stronger tier.
func SeedSystemRoles(store Store) error {
	roles := []*Role{
		{ID: RoleSuperAdmin, Name: "Super Admin", Level: LevelOwner, System: true},
		{ID: RoleOwner, Name: "Owner", Level: LevelOwner, System: true},
		{ID: RoleAdmin, Name: "Admin", Level: LevelAdmin, ParentID: RoleOwner, System: true},
		{ID: RoleManager, Name: "Manager", Level: LevelManager, ParentID: RoleAdmin, System: true},
		{ID: RoleMember, Name: "Member", Level: LevelMember, ParentID: RoleManager, System: true},
		{ID: RoleViewer, Name: "Viewer", Level: LevelViewer, ParentID: RoleMember, System: true},
	}
	for _, role := range roles {
		if err := store.UpsertRole(role); err != nil {
			return err
		}
	}

	perms := map[string][]Permission{
		RoleSuperAdmin: {
			{Resource: ResourceTenants, Action: ActionManage, Scope: ScopeGlobal},
			{Resource: ResourceRoles, Action: ActionManage, Scope: ScopeGlobal},
			{Resource: ResourceUsers, Action: ActionManage, Scope: ScopeGlobal},
			{Resource: ResourceSettings, Action: ActionManage, Scope: ScopeGlobal},
			{Resource: ResourceBilling, Action: ActionManage, Scope: ScopeGlobal},
		},
		RoleOwner: {
			{Resource: ResourceTenants, Action: ActionManage, Scope: ScopeTenant},
			{Resource: ResourceBilling, Action: ActionManage, Scope: ScopeTenant},
			{Resource: ResourceRoles, Action: ActionManage, Scope: ScopeTenant},
		},
		RoleAdmin: {
			{Resource: ResourceUsers, Action: ActionManage, Scope: ScopeTenant},
			{Resource: ResourceSettings, Action: ActionManage, Scope: ScopeTenant},
			{Resource: ResourceTokens, Action: ActionManage, Scope: ScopeTenant},
		},
		RoleManager: {
			{Resource: ResourceTeams, Action: ActionManage, Scope: ScopeTenant},
			{Resource: ResourceAnalytics, Action: ActionRead, Scope: ScopeTenant},
		},
		RoleMember: {
			{Resource: ResourceTeams, Action: ActionRead, Scope: ScopeTenant},
			{Resource: ResourceUsers, Action: ActionRead, Scope: ScopeTenant},
		},
		RoleViewer: {
			{Resource: ResourceAnalytics, Action: ActionRead, Scope: ScopeUser},
		},
	}
	for roleID, rolePerms := range perms {
		if err := store.SetRolePermissions(roleID, rolePerms); err != nil {
			return err
		}
	}
	return nil
}
