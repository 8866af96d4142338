package rbac

import (
	"sort"
	"sync"

	"github.com/jrsteele09/go-tenant-guard/internal/errors"
)

// MemoryStore is an in-memory Store. Roles live in a flat arena keyed by id
// with secondary indexes; parent links are ids, never pointers.
type MemoryStore struct {
	mu          sync.RWMutex
	roles       map[string]*Role
	nameIndex   map[string]string       // role name -> role id
	rolePerms   map[string][]Permission // role id -> direct permissions
	userGrants  map[string]map[string]struct{} // user id -> role ids
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		roles:      make(map[string]*Role),
		nameIndex:  make(map[string]string),
		rolePerms:  make(map[string][]Permission),
		userGrants: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) UpsertRole(role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.roles[role.ID]; ok && existing.Name != role.Name {
		delete(s.nameIndex, existing.Name)
	}
	cp := *role
	s.roles[role.ID] = &cp
	s.nameIndex[role.Name] = role.ID
	return nil
}

func (s *MemoryStore) GetRole(roleID string) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[roleID]
	if !ok {
		return nil, errors.NotFound(errors.ReasonRole, "role %q not found", roleID)
	}
	cp := *role
	return &cp, nil
}

func (s *MemoryStore) GetRoleByName(name string) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roleID, ok := s.nameIndex[name]
	if !ok {
		return nil, errors.NotFound(errors.ReasonRole, "role named %q not found", name)
	}
	cp := *s.roles[roleID]
	return &cp, nil
}

func (s *MemoryStore) DeleteRole(roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[roleID]
	if !ok {
		return errors.NotFound(errors.ReasonRole, "role %q not found", roleID)
	}
	delete(s.nameIndex, role.Name)
	delete(s.roles, roleID)
	delete(s.rolePerms, roleID)
	for _, grants := range s.userGrants {
		delete(grants, roleID)
	}
	return nil
}

func (s *MemoryStore) ListRoles() ([]*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Role, 0, len(s.roles))
	for _, role := range s.roles {
		cp := *role
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

func (s *MemoryStore) SetRolePermissions(roleID string, permissions []Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return errors.NotFound(errors.ReasonRole, "role %q not found", roleID)
	}
	s.rolePerms[roleID] = append([]Permission(nil), permissions...)
	return nil
}

func (s *MemoryStore) GrantPermission(roleID string, permission Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return errors.NotFound(errors.ReasonRole, "role %q not found", roleID)
	}
	for _, p := range s.rolePerms[roleID] {
		if p.Key() == permission.Key() {
			return nil
		}
	}
	s.rolePerms[roleID] = append(s.rolePerms[roleID], permission)
	return nil
}

func (s *MemoryStore) RevokePermission(roleID string, permission Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	perms, ok := s.rolePerms[roleID]
	if !ok {
		return errors.NotFound(errors.ReasonPermission, "role %q has no permission %q", roleID, permission.Key())
	}
	for i, p := range perms {
		if p.Key() == permission.Key() {
			s.rolePerms[roleID] = append(perms[:i], perms[i+1:]...)
			return nil
		}
	}
	return errors.NotFound(errors.ReasonPermission, "role %q has no permission %q", roleID, permission.Key())
}

func (s *MemoryStore) RolePermissions(roleID string) ([]Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.roles[roleID]; !ok {
		return nil, errors.NotFound(errors.ReasonRole, "role %q not found", roleID)
	}
	return append([]Permission(nil), s.rolePerms[roleID]...), nil
}

func (s *MemoryStore) AssignRole(userID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return errors.NotFound(errors.ReasonRole, "role %q not found", roleID)
	}
	if s.userGrants[userID] == nil {
		s.userGrants[userID] = make(map[string]struct{})
	}
	s.userGrants[userID][roleID] = struct{}{}
	return nil
}

func (s *MemoryStore) UnassignRole(userID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.userGrants[userID], roleID)
	return nil
}

func (s *MemoryStore) UserRoleIDs(userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grants := s.userGrants[userID]
	out := make([]string, 0, len(grants))
	for roleID := range grants {
		out = append(out, roleID)
	}
	sort.Strings(out)
	return out, nil
}
