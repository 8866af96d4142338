package rbac

import (
	"context"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-tenant-guard/audit"
	"github.com/jrsteele09/go-tenant-guard/internal/errors"
)

const defaultCacheSize = 256

// Service resolves effective permissions and guards role administration.
// Resolution is read-only; resolved permission sets are cached per role and
// the cache is purged on any mutation.
type Service struct {
	store  Store
	cache  *lru.Cache[string, []Permission]
	sink   audit.Sink
	logger zerolog.Logger
}

type ServiceOption func(*Service)

func WithAuditSink(sink audit.Sink) ServiceOption {
	return func(s *Service) {
		s.sink = sink
	}
}

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(store Store, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.NotFound(errors.ReasonRole, "rbac store is required")
	}
	cache, err := lru.New[string, []Permission](defaultCacheSize)
	if err != nil {
		return nil, err
	}
	s := &Service{store: store, cache: cache, sink: audit.NopSink{}, logger: zerolog.Nop()}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// GetAllPermissions returns the deduplicated union of a role's direct
// permissions and every permission inherited through its parent chain.
// Direct permissions order before inherited ones; duplicates resolve by
// (resource, action) identity with the nearest definition winning.
func (s *Service) GetAllPermissions(roleID string) ([]Permission, error) {
	if cached, ok := s.cache.Get(roleID); ok {
		return append([]Permission(nil), cached...), nil
	}

	seen := make(map[string]struct{})
	visited := make(map[string]struct{})
	var result []Permission

	currentID := roleID
	for currentID != "" {
		if _, ok := visited[currentID]; ok {
			return nil, errors.InvalidOperation(errors.ReasonSelfReferentialRole,
				"role parent chain contains a cycle at %q", currentID)
		}
		visited[currentID] = struct{}{}

		role, err := s.store.GetRole(currentID)
		if err != nil {
			if currentID == roleID {
				return nil, err
			}
			return nil, errors.Wrapf(err, "broken parent chain for role %q", roleID)
		}
		perms, err := s.store.RolePermissions(currentID)
		if err != nil {
			return nil, err
		}
		for _, p := range perms {
			if _, dup := seen[p.Key()]; dup {
				continue
			}
			seen[p.Key()] = struct{}{}
			result = append(result, p)
		}
		currentID = role.ParentID
	}

	s.cache.Add(roleID, append([]Permission(nil), result...))
	return result, nil
}

// HasPermission reports whether the role resolves the (resource, action)
// pair, directly or by inheritance.
func (s *Service) HasPermission(roleID string, resource Resource, action Action) (bool, error) {
	perms, err := s.GetAllPermissions(roleID)
	if err != nil {
		return false, err
	}
	key := Permission{Resource: resource, Action: action}.Key()
	for _, p := range perms {
		if p.Key() == key {
			return true, nil
		}
	}
	return false, nil
}

// CanManageRole reports whether the actor role may administer the target
// role.
func (s *Service) CanManageRole(actorRoleID, targetRoleID string) (bool, error) {
	actor, err := s.store.GetRole(actorRoleID)
	if err != nil {
		return false, err
	}
	target, err := s.store.GetRole(targetRoleID)
	if err != nil {
		return false, err
	}
	return CanManage(actor, target), nil
}

// EffectivePermissions unions GetAllPermissions over every role directly
// assigned to the user plus the role carried by the active membership.
func (s *Service) EffectivePermissions(userID, membershipRoleID string) ([]Permission, error) {
	roleIDs, err := s.store.UserRoleIDs(userID)
	if err != nil {
		return nil, err
	}
	if membershipRoleID != "" {
		roleIDs = append(roleIDs, membershipRoleID)
	}

	seen := make(map[string]struct{})
	var result []Permission
	for _, roleID := range roleIDs {
		perms, err := s.GetAllPermissions(roleID)
		if err != nil {
			return nil, err
		}
		for _, p := range perms {
			if _, dup := seen[p.Key()]; dup {
				continue
			}
			seen[p.Key()] = struct{}{}
			result = append(result, p)
		}
	}
	return result, nil
}

// CreateRole validates the parent relation and persists the role.
func (s *Service) CreateRole(ctx context.Context, role *Role) error {
	if role.ID == "" {
		role.ID = uuid.New().String()
	}
	if role.ParentID != "" {
		if err := s.checkParent(role.ID, role.ParentID, role.Level); err != nil {
			return err
		}
	}
	if err := s.store.UpsertRole(role); err != nil {
		return err
	}
	s.invalidate(ctx, "create", role)
	return nil
}

// UpdateRole rejects mutation of system roles and revalidates the parent
// relation.
func (s *Service) UpdateRole(ctx context.Context, role *Role) error {
	existing, err := s.store.GetRole(role.ID)
	if err != nil {
		return err
	}
	if existing.System {
		return errors.InvalidOperation(errors.ReasonSystemRoleImmutable, "system role %q cannot be modified", existing.Name)
	}
	if role.ParentID != "" {
		if err := s.checkParent(role.ID, role.ParentID, role.Level); err != nil {
			return err
		}
	}
	if err := s.store.UpsertRole(role); err != nil {
		return err
	}
	s.invalidate(ctx, "update", role)
	return nil
}

// SetParent reassigns a role's parent after self-reference, level, and
// cycle checks.
func (s *Service) SetParent(ctx context.Context, roleID, parentID string) error {
	role, err := s.store.GetRole(roleID)
	if err != nil {
		return err
	}
	if role.System {
		return errors.InvalidOperation(errors.ReasonSystemRoleImmutable, "system role %q cannot be modified", role.Name)
	}
	if err := s.checkParent(roleID, parentID, role.Level); err != nil {
		return err
	}
	role.ParentID = parentID
	if err := s.store.UpsertRole(role); err != nil {
		return err
	}
	s.invalidate(ctx, "set_parent", role)
	return nil
}

// DeleteRole removes a role. The actor must be able to manage the target
// and system roles are immutable.
func (s *Service) DeleteRole(ctx context.Context, actorRoleID, roleID string) error {
	target, err := s.store.GetRole(roleID)
	if err != nil {
		return err
	}
	if target.System {
		return errors.InvalidOperation(errors.ReasonSystemRoleImmutable, "system role %q cannot be deleted", target.Name)
	}
	if err := s.authorizeManage(actorRoleID, target); err != nil {
		return err
	}
	if err := s.store.DeleteRole(roleID); err != nil {
		return err
	}
	s.invalidate(ctx, "delete", target)
	return nil
}

// GrantPermission adds a direct permission to a role.
func (s *Service) GrantPermission(ctx context.Context, actorRoleID, roleID string, permission Permission) error {
	target, err := s.store.GetRole(roleID)
	if err != nil {
		return err
	}
	if target.System {
		return errors.InvalidOperation(errors.ReasonSystemRoleImmutable, "system role %q cannot be modified", target.Name)
	}
	if err := s.authorizeManage(actorRoleID, target); err != nil {
		return err
	}
	if err := s.store.GrantPermission(roleID, permission); err != nil {
		return err
	}
	s.grantChanged(ctx, "grant", target, permission)
	return nil
}

// RevokePermission removes a direct permission from a role.
func (s *Service) RevokePermission(ctx context.Context, actorRoleID, roleID string, permission Permission) error {
	target, err := s.store.GetRole(roleID)
	if err != nil {
		return err
	}
	if target.System {
		return errors.InvalidOperation(errors.ReasonSystemRoleImmutable, "system role %q cannot be modified", target.Name)
	}
	if err := s.authorizeManage(actorRoleID, target); err != nil {
		return err
	}
	if err := s.store.RevokePermission(roleID, permission); err != nil {
		return err
	}
	s.grantChanged(ctx, "revoke", target, permission)
	return nil
}

// AssignRoleToUser grants the role to a user, gated by the actor's ability
// to manage that role.
func (s *Service) AssignRoleToUser(ctx context.Context, actorRoleID, userID, roleID string) error {
	target, err := s.store.GetRole(roleID)
	if err != nil {
		return err
	}
	if err := s.authorizeManage(actorRoleID, target); err != nil {
		return err
	}
	if err := s.store.AssignRole(userID, roleID); err != nil {
		return err
	}
	s.sink.Record(ctx, audit.NewEvent(audit.EventGrantChanged, userID, target.TenantID, map[string]string{
		"change": "assign_role",
		"role":   target.Name,
	}))
	return nil
}

// UnassignRoleFromUser removes a role grant from a user.
func (s *Service) UnassignRoleFromUser(ctx context.Context, actorRoleID, userID, roleID string) error {
	target, err := s.store.GetRole(roleID)
	if err != nil {
		return err
	}
	if err := s.authorizeManage(actorRoleID, target); err != nil {
		return err
	}
	if err := s.store.UnassignRole(userID, roleID); err != nil {
		return err
	}
	s.sink.Record(ctx, audit.NewEvent(audit.EventGrantChanged, userID, target.TenantID, map[string]string{
		"change": "unassign_role",
		"role":   target.Name,
	}))
	return nil
}

func (s *Service) authorizeManage(actorRoleID string, target *Role) error {
	actor, err := s.store.GetRole(actorRoleID)
	if err != nil {
		return err
	}
	if !CanManage(actor, target) {
		return errors.InvalidOperation(errors.ReasonPrivilegeEscalation,
			"role %q (level %d) cannot manage role %q (level %d)", actor.Name, actor.Level, target.Name, target.Level)
	}
	return nil
}

// checkParent validates a prospective parent assignment: no self-reference,
// parent strictly more privileged, and no cycle through the parent chain.
func (s *Service) checkParent(roleID, parentID string, childLevel int) error {
	if parentID == roleID {
		return errors.InvalidOperation(errors.ReasonSelfReferentialRole, "role %q cannot be its own parent", roleID)
	}
	parent, err := s.store.GetRole(parentID)
	if err != nil {
		return err
	}
	if parent.Level >= childLevel {
		return errors.InvalidOperation(errors.ReasonPrivilegeEscalation,
			"parent role %q (level %d) must be strictly more privileged than child (level %d)", parent.Name, parent.Level, childLevel)
	}

	visited := map[string]struct{}{roleID: {}}
	currentID := parentID
	for currentID != "" {
		if _, ok := visited[currentID]; ok {
			return errors.InvalidOperation(errors.ReasonSelfReferentialRole,
				"assigning parent %q to role %q would create a cycle", parentID, roleID)
		}
		visited[currentID] = struct{}{}
		current, err := s.store.GetRole(currentID)
		if err != nil {
			return errors.Wrapf(err, "broken parent chain at %q", currentID)
		}
		currentID = current.ParentID
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, change string, role *Role) {
	s.cache.Purge()
	s.sink.Record(ctx, audit.NewEvent(audit.EventRoleMutated, "", role.TenantID, map[string]string{
		"change": change,
		"role":   role.Name,
	}))
	s.logger.Debug().Str("role", role.Name).Str("change", change).Msg("permission cache purged")
}

func (s *Service) grantChanged(ctx context.Context, change string, role *Role, permission Permission) {
	s.cache.Purge()
	s.sink.Record(ctx, audit.NewEvent(audit.EventGrantChanged, "", role.TenantID, map[string]string{
		"change":     change,
		"role":       role.Name,
		"permission": permission.Key(),
	}))
}
