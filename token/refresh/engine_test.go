package refresh_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-tenant-guard/audit"
	"github.com/jrsteele09/go-tenant-guard/internal/errors"
	"github.com/jrsteele09/go-tenant-guard/token"
	"github.com/jrsteele09/go-tenant-guard/token/refresh"
)

const (
	secretStr    = "test-signing-secret"
	testUserID   = "user-1"
	testTenantID = "tenant-1"
)

type testFixture struct {
	repo     *refresh.InMemoryRepo
	recorder *audit.Recorder
	engine   *refresh.Engine
	now      time.Time
}

func setupTestFixture(t *testing.T, options ...refresh.EngineOption) *testFixture {
	t.Helper()
	f := &testFixture{
		repo:     refresh.NewInMemoryRepo(),
		recorder: audit.NewRecorder(),
		now:      time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}
	opts := append([]refresh.EngineOption{
		refresh.WithAuditSink(f.recorder),
		refresh.WithNowFunc(func() time.Time { return f.now }),
	}, options...)
	f.engine = refresh.NewEngine(f.repo, token.NewHMACSigner(secretStr), opts...)
	return f
}

func (f *testFixture) issue(t *testing.T) (string, *refresh.Token) {
	t.Helper()
	subject := refresh.Subject{UserID: testUserID, TenantID: testTenantID, Role: "admin"}
	signed, record, err := f.engine.IssueCredential(context.Background(), subject, refresh.DeviceInfo{UserAgent: "test", IP: "10.0.0.1"})
	require.NoError(t, err)
	return signed, record
}

func TestIssueCredential(t *testing.T) {
	f := setupTestFixture(t)

	signed, record, err := f.engine.IssueCredential(context.Background(),
		refresh.Subject{UserID: testUserID, TenantID: testTenantID, Role: "admin"},
		refresh.DeviceInfo{UserAgent: "test"})
	require.NoError(t, err)
	require.NotEmpty(t, signed)
	require.NotEmpty(t, record.TokenID)
	require.Equal(t, testUserID, record.UserID)
	require.Equal(t, f.now.Add(7*24*time.Hour), record.ExpiresAt)
	require.False(t, record.Revoked)

	// The stored hash covers the final signed artifact.
	stored, err := f.repo.Get(record.TokenID)
	require.NoError(t, err)
	require.Equal(t, token.StructuralHash(signed), stored.Hash)

	require.Len(t, f.recorder.EventsOfType(audit.EventTokenIssued), 1)
}

func TestValidate(t *testing.T) {
	f := setupTestFixture(t)
	signed, record := f.issue(t)

	got, err := f.engine.Validate(signed)
	require.NoError(t, err)
	require.Equal(t, record.TokenID, got.TokenID)
	require.Equal(t, testUserID, got.UserID)
}

func TestValidate_Expired(t *testing.T) {
	f := setupTestFixture(t)
	signed, _ := f.issue(t)

	f.now = f.now.Add(8 * 24 * time.Hour)

	_, err := f.engine.Validate(signed)
	require.Error(t, err)
	require.True(t, errors.IsKind(err, errors.KindUnauthorized))
	require.True(t, errors.IsReason(err, errors.ReasonExpired))
}

func TestValidate_Revoked(t *testing.T) {
	f := setupTestFixture(t)
	signed, _ := f.issue(t)

	_, err := f.engine.RevokeAll(context.Background(), testUserID)
	require.NoError(t, err)

	_, err = f.engine.Validate(signed)
	require.True(t, errors.IsReason(err, errors.ReasonRevoked))
}

func TestValidate_UnknownToken(t *testing.T) {
	f := setupTestFixture(t)

	// A well-formed credential whose record was never issued here.
	other := refresh.NewEngine(refresh.NewInMemoryRepo(), token.NewHMACSigner(secretStr))
	signed, _, err := other.IssueCredential(context.Background(), refresh.Subject{UserID: testUserID}, refresh.DeviceInfo{})
	require.NoError(t, err)

	_, err = f.engine.Validate(signed)
	require.True(t, errors.IsReason(err, errors.ReasonInvalidToken))
}

func TestValidate_HashMismatchOnForgedCredential(t *testing.T) {
	f := setupTestFixture(t)
	_, record := f.issue(t)

	// Re-sign the same token id with different claims. Signature verifies,
	// but the structural hash no longer matches the stored record.
	signer := token.NewHMACSigner(secretStr)
	forged, err := token.Encode(signer, token.NewRefreshClaims(
		"someone-else", record.TokenID, testTenantID, "owner", f.now, f.now.Add(time.Hour)))
	require.NoError(t, err)

	_, err = f.engine.Validate(forged)
	require.Error(t, err)
	require.True(t, errors.IsReason(err, errors.ReasonHashMismatch))
}

func TestRotate_ChainsRecords(t *testing.T) {
	f := setupTestFixture(t)
	signed1, record1 := f.issue(t)

	signed2, record2, err := f.engine.Rotate(context.Background(), signed1)
	require.NoError(t, err)
	require.NotEqual(t, signed1, signed2)
	require.Equal(t, testUserID, record2.UserID)
	require.Equal(t, record1.TokenID, record2.Replaces)

	old, err := f.repo.Get(record1.TokenID)
	require.NoError(t, err)
	require.True(t, old.Revoked)
	require.Equal(t, record2.TokenID, old.ReplacedBy)

	// The replacement is immediately usable.
	got, err := f.engine.Validate(signed2)
	require.NoError(t, err)
	require.Equal(t, record2.TokenID, got.TokenID)

	require.Len(t, f.recorder.EventsOfType(audit.EventTokenRotated), 1)
}

func TestRotate_ReuseRevokesEverything(t *testing.T) {
	f := setupTestFixture(t)
	signed1, _ := f.issue(t)

	signed2, _, err := f.engine.Rotate(context.Background(), signed1)
	require.NoError(t, err)

	// Presenting the consumed credential again is a reuse attack.
	_, _, err = f.engine.Rotate(context.Background(), signed1)
	require.Error(t, err)
	require.True(t, errors.IsReason(err, errors.ReasonRevoked))

	// Every token in the chain is now dead, including the legitimate one.
	_, err = f.engine.Validate(signed2)
	require.True(t, errors.IsReason(err, errors.ReasonRevoked))

	require.Len(t, f.recorder.EventsOfType(audit.EventTokenReuse), 1)
}

func TestRotate_Expired(t *testing.T) {
	f := setupTestFixture(t)
	signed, _ := f.issue(t)

	f.now = f.now.Add(8 * 24 * time.Hour)

	_, _, err := f.engine.Rotate(context.Background(), signed)
	require.True(t, errors.IsReason(err, errors.ReasonExpired))
}

func TestRotate_PlainRevokedWithoutReplacementIsNotReuse(t *testing.T) {
	f := setupTestFixture(t)
	signed, _ := f.issue(t)

	_, err := f.engine.RevokeAll(context.Background(), testUserID)
	require.NoError(t, err)
	f.recorder.Reset()

	_, _, err = f.engine.Rotate(context.Background(), signed)
	require.True(t, errors.IsReason(err, errors.ReasonRevoked))
	require.Empty(t, f.recorder.EventsOfType(audit.EventTokenReuse))
}

func TestRotate_ConcurrentExactlyOneWins(t *testing.T) {
	f := setupTestFixture(t)
	signed, _ := f.issue(t)

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.engine.Rotate(context.Background(), signed)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		if err == nil {
			wins++
		} else {
			require.True(t, errors.IsKind(err, errors.KindUnauthorized))
			losses++
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, attempts-1, losses)
}

func TestDetectReuse(t *testing.T) {
	f := setupTestFixture(t)
	signed1, _ := f.issue(t)

	reused, err := f.engine.DetectReuse(signed1)
	require.NoError(t, err)
	require.False(t, reused)

	_, _, err = f.engine.Rotate(context.Background(), signed1)
	require.NoError(t, err)

	reused, err = f.engine.DetectReuse(signed1)
	require.NoError(t, err)
	require.True(t, reused)
}

func TestRevokeAll(t *testing.T) {
	f := setupTestFixture(t)
	f.issue(t)
	f.issue(t)

	_, _, err := f.engine.IssueCredential(context.Background(), refresh.Subject{UserID: "user-2"}, refresh.DeviceInfo{})
	require.NoError(t, err)

	revoked, err := f.engine.RevokeAll(context.Background(), testUserID)
	require.NoError(t, err)
	require.Equal(t, 2, revoked)

	// user-2's token is untouched.
	tokens, err := f.repo.ListByUser("user-2")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.False(t, tokens[0].Revoked)

	events := f.recorder.EventsOfType(audit.EventTokensRevoked)
	require.Len(t, events, 1)
	require.Equal(t, "2", events[0].Metadata["revoked"])
}

func TestWithExpiry(t *testing.T) {
	f := setupTestFixture(t, refresh.WithExpiry(time.Hour))
	_, record := f.issue(t)
	require.Equal(t, f.now.Add(time.Hour), record.ExpiresAt)
}

func TestTokenUsable(t *testing.T) {
	now := time.Now()
	tok := &refresh.Token{ExpiresAt: now.Add(time.Hour)}
	require.True(t, tok.Usable(now))

	tok.Revoked = true
	require.False(t, tok.Usable(now))

	tok.Revoked = false
	require.False(t, tok.Usable(now.Add(2*time.Hour)))

	var nilTok *refresh.Token
	require.False(t, nilTok.Usable(now))
}
