package refresh_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-tenant-guard/token/refresh"
)

func TestNewSweeper_RejectsBadSchedule(t *testing.T) {
	_, err := refresh.NewSweeper(refresh.NewInMemoryRepo(), "not a schedule", zerolog.Nop())
	require.Error(t, err)
}

func TestSweeper_DeletesOnlyExpiredTokens(t *testing.T) {
	repo := refresh.NewInMemoryRepo()
	now := time.Now()

	require.NoError(t, repo.Create(&refresh.Token{TokenID: "expired", UserID: "u1", ExpiresAt: now.Add(-time.Hour)}))
	// Revoked but unexpired records survive the sweep for reuse detection.
	require.NoError(t, repo.Create(&refresh.Token{TokenID: "revoked", UserID: "u1", Revoked: true, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.Create(&refresh.Token{TokenID: "live", UserID: "u1", ExpiresAt: now.Add(time.Hour)}))

	sweeper, err := refresh.NewSweeper(repo, "@every 50ms", zerolog.Nop())
	require.NoError(t, err)
	sweeper.Start()
	defer sweeper.Stop()

	require.Eventually(t, func() bool {
		_, err := repo.Get("expired")
		return err != nil
	}, 2*time.Second, 25*time.Millisecond)

	_, err = repo.Get("revoked")
	require.NoError(t, err)
	_, err = repo.Get("live")
	require.NoError(t, err)
}
