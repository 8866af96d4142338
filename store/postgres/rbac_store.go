package postgres

import (
	"database/sql"
	"fmt"

	"github.com/jrsteele09/go-tenant-guard/internal/errors"
	"github.com/jrsteele09/go-tenant-guard/rbac"
)

// RBACStore implements rbac.Store on PostgreSQL. Parent links are id
// columns; no referential cycles can be expressed in memory because rows
// are only ever materialised one at a time.
type RBACStore struct {
	db *sql.DB
}

var _ rbac.Store = (*RBACStore)(nil)

func NewRBACStore(db *sql.DB) (*RBACStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &RBACStore{db: db}, nil
}

func (s *RBACStore) EnsureSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS roles (
		id VARCHAR(255) PRIMARY KEY,
		name VARCHAR(255) NOT NULL UNIQUE,
		level INTEGER NOT NULL,
		parent_id VARCHAR(255),
		system BOOLEAN NOT NULL DEFAULT FALSE,
		tenant_id VARCHAR(255)
	);

	CREATE TABLE IF NOT EXISTS role_permissions (
		role_id VARCHAR(255) NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		resource VARCHAR(100) NOT NULL,
		action VARCHAR(50) NOT NULL,
		scope VARCHAR(50) NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (role_id, resource, action)
	);

	CREATE TABLE IF NOT EXISTS user_roles (
		user_id VARCHAR(255) NOT NULL,
		role_id VARCHAR(255) NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
		PRIMARY KEY (user_id, role_id)
	);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *RBACStore) UpsertRole(role *rbac.Role) error {
	_, err := s.db.Exec(`
		INSERT INTO roles (id, name, level, parent_id, system, tenant_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''))
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, level = EXCLUDED.level,
			parent_id = EXCLUDED.parent_id, system = EXCLUDED.system,
			tenant_id = EXCLUDED.tenant_id`,
		role.ID, role.Name, role.Level, role.ParentID, role.System, role.TenantID,
	)
	return err
}

const roleColumns = `id, name, level, COALESCE(parent_id, ''), system, COALESCE(tenant_id, '')`

func (s *RBACStore) GetRole(roleID string) (*rbac.Role, error) {
	return s.scanRole(s.db.QueryRow(`SELECT `+roleColumns+` FROM roles WHERE id = $1`, roleID), roleID)
}

func (s *RBACStore) GetRoleByName(name string) (*rbac.Role, error) {
	return s.scanRole(s.db.QueryRow(`SELECT `+roleColumns+` FROM roles WHERE name = $1`, name), name)
}

func (s *RBACStore) scanRole(row *sql.Row, key string) (*rbac.Role, error) {
	var r rbac.Role
	err := row.Scan(&r.ID, &r.Name, &r.Level, &r.ParentID, &r.System, &r.TenantID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound(errors.ReasonRole, "role %q not found", key)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *RBACStore) DeleteRole(roleID string) error {
	res, err := s.db.Exec(`DELETE FROM roles WHERE id = $1`, roleID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.NotFound(errors.ReasonRole, "role %q not found", roleID)
	}
	return nil
}

func (s *RBACStore) ListRoles() ([]*rbac.Role, error) {
	rows, err := s.db.Query(`SELECT ` + roleColumns + ` FROM roles ORDER BY level`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*rbac.Role
	for rows.Next() {
		var r rbac.Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Level, &r.ParentID, &r.System, &r.TenantID); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *RBACStore) SetRolePermissions(roleID string, permissions []rbac.Permission) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
		return err
	}
	for i, p := range permissions {
		if _, err := tx.Exec(`
			INSERT INTO role_permissions (role_id, resource, action, scope, position)
			VALUES ($1, $2, $3, $4, $5)`,
			roleID, p.Resource, p.Action, p.Scope, i,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *RBACStore) GrantPermission(roleID string, permission rbac.Permission) error {
	_, err := s.db.Exec(`
		INSERT INTO role_permissions (role_id, resource, action, scope, position)
		VALUES ($1, $2, $3, $4, (SELECT COALESCE(MAX(position), 0) + 1 FROM role_permissions WHERE role_id = $1))
		ON CONFLICT (role_id, resource, action) DO NOTHING`,
		roleID, permission.Resource, permission.Action, permission.Scope,
	)
	return err
}

func (s *RBACStore) RevokePermission(roleID string, permission rbac.Permission) error {
	res, err := s.db.Exec(`
		DELETE FROM role_permissions WHERE role_id = $1 AND resource = $2 AND action = $3`,
		roleID, permission.Resource, permission.Action,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.NotFound(errors.ReasonPermission, "role %q has no permission %q", roleID, permission.Key())
	}
	return nil
}

func (s *RBACStore) RolePermissions(roleID string) ([]rbac.Permission, error) {
	rows, err := s.db.Query(`
		SELECT resource, action, scope FROM role_permissions
		WHERE role_id = $1 ORDER BY position`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rbac.Permission
	for rows.Next() {
		var p rbac.Permission
		if err := rows.Scan(&p.Resource, &p.Action, &p.Scope); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *RBACStore) AssignRole(userID, roleID string) error {
	_, err := s.db.Exec(`
		INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, roleID)
	return err
}

func (s *RBACStore) UnassignRole(userID, roleID string) error {
	_, err := s.db.Exec(`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	return err
}

func (s *RBACStore) UserRoleIDs(userID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT role_id FROM user_roles WHERE user_id = $1 ORDER BY role_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var roleID string
		if err := rows.Scan(&roleID); err != nil {
			return nil, err
		}
		out = append(out, roleID)
	}
	return out, rows.Err()
}
