// Package postgres provides database-backed stores for the authorization
// core. Query shapes follow the repo interfaces; the engine code never
// sees SQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/jrsteele09/go-tenant-guard/internal/errors"
	"github.com/jrsteele09/go-tenant-guard/token/refresh"
)

// RefreshStore implements refresh.Repo on PostgreSQL.
type RefreshStore struct {
	db *sql.DB
}

var _ refresh.Repo = (*RefreshStore)(nil)

func NewRefreshStore(db *sql.DB) (*RefreshStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &RefreshStore{db: db}, nil
}

// EnsureSchema creates the refresh_tokens table. The partial unique index
// on replaces backs the rotation atomicity guarantee: two transactions can
// never both link a replacement to the same predecessor.
func (s *RefreshStore) EnsureSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS refresh_tokens (
		id UUID PRIMARY KEY,
		user_id VARCHAR(255) NOT NULL,
		tenant_id VARCHAR(255),
		role VARCHAR(100),
		token_id UUID NOT NULL UNIQUE,
		token_hash VARCHAR(64) NOT NULL DEFAULT '',
		expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		revoked BOOLEAN NOT NULL DEFAULT FALSE,
		replaces UUID,
		replaced_by UUID,
		user_agent TEXT,
		ip_address VARCHAR(45)
	);

	CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id);
	CREATE INDEX IF NOT EXISTS idx_refresh_tokens_expires_at ON refresh_tokens(expires_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_refresh_tokens_replaces ON refresh_tokens(replaces) WHERE replaces IS NOT NULL;
	`
	_, err := s.db.Exec(query)
	return err
}

const refreshColumns = `id, user_id, tenant_id, role, token_id, token_hash, expires_at, created_at, revoked, COALESCE(replaces::text, ''), COALESCE(replaced_by::text, ''), COALESCE(user_agent, ''), COALESCE(ip_address, '')`

func (s *RefreshStore) Create(t *refresh.Token) error {
	_, err := s.db.Exec(`
		INSERT INTO refresh_tokens (id, user_id, tenant_id, role, token_id, token_hash, expires_at, created_at, revoked, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.UserID, t.TenantID, t.Role, t.TokenID, t.Hash, t.ExpiresAt, t.CreatedAt, t.Revoked, t.Device.UserAgent, t.Device.IP,
	)
	return err
}

func (s *RefreshStore) Get(tokenID string) (*refresh.Token, error) {
	row := s.db.QueryRow(`SELECT `+refreshColumns+` FROM refresh_tokens WHERE token_id = $1`, tokenID)
	return scanToken(row)
}

func (s *RefreshStore) UpdateHash(tokenID, hash string) error {
	res, err := s.db.Exec(`UPDATE refresh_tokens SET token_hash = $1 WHERE token_id = $2`, hash, tokenID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.Unauthorized(errors.ReasonInvalidToken, "unknown refresh token")
	}
	return nil
}

// Rotate revokes the old token, links the chain, and inserts the new token
// in one transaction. The transaction runs on a background context: an
// aborted request must never leave a rotation half-applied.
func (s *RefreshStore) Rotate(oldTokenID string, newToken *refresh.Token) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var revoked bool
	err = tx.QueryRowContext(ctx,
		`SELECT revoked FROM refresh_tokens WHERE token_id = $1 FOR UPDATE`, oldTokenID,
	).Scan(&revoked)
	if err == sql.ErrNoRows {
		return errors.Unauthorized(errors.ReasonInvalidToken, "unknown refresh token")
	}
	if err != nil {
		return err
	}
	if revoked {
		return errors.Unauthorized(errors.ReasonRevoked, "refresh token already rotated")
	}

	newToken.Replaces = oldTokenID
	_, err = tx.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, tenant_id, role, token_id, token_hash, expires_at, created_at, revoked, replaces, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		newToken.ID, newToken.UserID, newToken.TenantID, newToken.Role, newToken.TokenID, newToken.Hash,
		newToken.ExpiresAt, newToken.CreatedAt, false, oldTokenID, newToken.Device.UserAgent, newToken.Device.IP,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return errors.Unauthorized(errors.ReasonRevoked, "refresh token already rotated")
		}
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, replaced_by = $1 WHERE token_id = $2`,
		newToken.TokenID, oldTokenID,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *RefreshStore) RevokeAllForUser(userID string) (int, error) {
	res, err := s.db.Exec(`UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND NOT revoked`, userID)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

func (s *RefreshStore) DeleteExpired(before time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

func (s *RefreshStore) ListByUser(userID string) ([]*refresh.Token, error) {
	rows, err := s.db.Query(`SELECT `+refreshColumns+` FROM refresh_tokens WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*refresh.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*refresh.Token, error) {
	var t refresh.Token
	err := row.Scan(
		&t.ID, &t.UserID, &t.TenantID, &t.Role, &t.TokenID, &t.Hash,
		&t.ExpiresAt, &t.CreatedAt, &t.Revoked, &t.Replaces, &t.ReplacedBy,
		&t.Device.UserAgent, &t.Device.IP,
	)
	if err == sql.ErrNoRows {
		return nil, errors.Unauthorized(errors.ReasonInvalidToken, "unknown refresh token")
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
