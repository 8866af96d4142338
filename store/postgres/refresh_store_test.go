package postgres_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-tenant-guard/internal/errors"
	"github.com/jrsteele09/go-tenant-guard/store/postgres"
	"github.com/jrsteele09/go-tenant-guard/token/refresh"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func tokenColumns() []string {
	return []string{
		"id", "user_id", "tenant_id", "role", "token_id", "token_hash",
		"expires_at", "created_at", "revoked", "replaces", "replaced_by",
		"user_agent", "ip_address",
	}
}

func sampleToken(now time.Time) *refresh.Token {
	return &refresh.Token{
		ID:        "11111111-1111-1111-1111-111111111111",
		UserID:    "user-1",
		TenantID:  "tenant-1",
		Role:      "admin",
		TokenID:   "22222222-2222-2222-2222-222222222222",
		Hash:      "abc123",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
		Device:    refresh.DeviceInfo{UserAgent: "test", IP: "10.0.0.1"},
	}
}

func TestRefreshStore_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	store, err := postgres.NewRefreshStore(db)
	require.NoError(t, err)

	now := time.Now()
	tok := sampleToken(now)

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(tok.ID, tok.UserID, tok.TenantID, tok.Role, tok.TokenID, tok.Hash,
			tok.ExpiresAt, tok.CreatedAt, tok.Revoked, tok.Device.UserAgent, tok.Device.IP).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Create(tok))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshStore_Get(t *testing.T) {
	db, mock := setupMockDB(t)
	store, err := postgres.NewRefreshStore(db)
	require.NoError(t, err)

	now := time.Now()
	rows := sqlmock.NewRows(tokenColumns()).AddRow(
		"id-1", "user-1", "tenant-1", "admin", "token-1", "hash-1",
		now.Add(time.Hour), now, false, "", "", "test", "10.0.0.1",
	)
	mock.ExpectQuery(`SELECT (.+) FROM refresh_tokens WHERE token_id`).
		WithArgs("token-1").
		WillReturnRows(rows)

	tok, err := store.Get("token-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", tok.UserID)
	require.Equal(t, "hash-1", tok.Hash)
	require.False(t, tok.Revoked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshStore_Get_Unknown(t *testing.T) {
	db, mock := setupMockDB(t)
	store, err := postgres.NewRefreshStore(db)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT (.+) FROM refresh_tokens WHERE token_id`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err = store.Get("ghost")
	require.Error(t, err)
	require.True(t, errors.IsReason(err, errors.ReasonInvalidToken))
}

func TestRefreshStore_UpdateHash_UnknownToken(t *testing.T) {
	db, mock := setupMockDB(t)
	store, err := postgres.NewRefreshStore(db)
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE refresh_tokens SET token_hash`).
		WithArgs("new-hash", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = store.UpdateHash("ghost", "new-hash")
	require.True(t, errors.IsReason(err, errors.ReasonInvalidToken))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshStore_Rotate(t *testing.T) {
	db, mock := setupMockDB(t)
	store, err := postgres.NewRefreshStore(db)
	require.NoError(t, err)

	now := time.Now()
	next := sampleToken(now)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT revoked FROM refresh_tokens WHERE token_id (.+) FOR UPDATE`).
		WithArgs("old-token").
		WillReturnRows(sqlmock.NewRows([]string{"revoked"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(next.ID, next.UserID, next.TenantID, next.Role, next.TokenID, next.Hash,
			next.ExpiresAt, next.CreatedAt, false, "old-token", next.Device.UserAgent, next.Device.IP).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE refresh_tokens SET revoked = TRUE, replaced_by`).
		WithArgs(next.TokenID, "old-token").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Rotate("old-token", next))
	require.Equal(t, "old-token", next.Replaces)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshStore_Rotate_AlreadyRotated(t *testing.T) {
	db, mock := setupMockDB(t)
	store, err := postgres.NewRefreshStore(db)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT revoked FROM refresh_tokens WHERE token_id (.+) FOR UPDATE`).
		WithArgs("old-token").
		WillReturnRows(sqlmock.NewRows([]string{"revoked"}).AddRow(true))
	mock.ExpectRollback()

	err = store.Rotate("old-token", sampleToken(time.Now()))
	require.True(t, errors.IsReason(err, errors.ReasonRevoked))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshStore_Rotate_UnknownToken(t *testing.T) {
	db, mock := setupMockDB(t)
	store, err := postgres.NewRefreshStore(db)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT revoked FROM refresh_tokens WHERE token_id (.+) FOR UPDATE`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err = store.Rotate("ghost", sampleToken(time.Now()))
	require.True(t, errors.IsReason(err, errors.ReasonInvalidToken))
	require.NoError(t, mock.ExpectationsWereMet())
}

// A concurrent transaction that won the insert race trips the partial
// unique index on replaces; the loser reports the token as rotated.
func TestRefreshStore_Rotate_LosesInsertRace(t *testing.T) {
	db, mock := setupMockDB(t)
	store, err := postgres.NewRefreshStore(db)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT revoked FROM refresh_tokens WHERE token_id (.+) FOR UPDATE`).
		WithArgs("old-token").
		WillReturnRows(sqlmock.NewRows([]string{"revoked"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err = store.Rotate("old-token", sampleToken(time.Now()))
	require.True(t, errors.IsReason(err, errors.ReasonRevoked))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshStore_RevokeAllForUser(t *testing.T) {
	db, mock := setupMockDB(t)
	store, err := postgres.NewRefreshStore(db)
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE refresh_tokens SET revoked = TRUE WHERE user_id`).
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	revoked, err := store.RevokeAllForUser("user-1")
	require.NoError(t, err)
	require.Equal(t, 3, revoked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshStore_DeleteExpired(t *testing.T) {
	db, mock := setupMockDB(t)
	store, err := postgres.NewRefreshStore(db)
	require.NoError(t, err)

	before := time.Now()
	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE expires_at`).
		WithArgs(before).
		WillReturnResult(sqlmock.NewResult(0, 2))

	deleted, err := store.DeleteExpired(before)
	require.NoError(t, err)
	require.Equal(t, 2, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshStore_ListByUser(t *testing.T) {
	db, mock := setupMockDB(t)
	store, err := postgres.NewRefreshStore(db)
	require.NoError(t, err)

	now := time.Now()
	rows := sqlmock.NewRows(tokenColumns()).
		AddRow("id-1", "user-1", "tenant-1", "admin", "token-1", "h1", now.Add(time.Hour), now, false, "", "", "", "").
		AddRow("id-2", "user-1", "tenant-1", "admin", "token-2", "h2", now.Add(time.Hour), now, true, "token-1", "", "", "")
	mock.ExpectQuery(`SELECT (.+) FROM refresh_tokens WHERE user_id`).
		WithArgs("user-1").
		WillReturnRows(rows)

	tokens, err := store.ListByUser("user-1")
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	require.Equal(t, "token-1", tokens[1].Replaces)
	require.NoError(t, mock.ExpectationsWereMet())
}
