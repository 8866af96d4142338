package users_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-tenant-guard/internal/utils"
	"github.com/jrsteele09/go-tenant-guard/users"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "valid", password: "Password123", wantErr: false},
		{name: "too short", password: "Pass1", wantErr: true},
		{name: "no uppercase", password: "password123", wantErr: true},
		{name: "no lowercase", password: "PASSWORD123", wantErr: true},
		{name: "no number", password: "PasswordOnly", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := users.ValidatePasswordStrength(tc.password)
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := users.HashPassword("Password123")
	require.NoError(t, err)
	require.NotEqual(t, "Password123", hash)

	require.True(t, users.CheckPasswordHash("Password123", hash))
	require.False(t, users.CheckPasswordHash("WrongPassword1", hash))
}

func TestMembership_IsActive(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		membership users.Membership
		want       bool
	}{
		{name: "active", membership: users.Membership{Status: users.StatusActive}, want: true},
		{name: "active unexpired", membership: users.Membership{Status: users.StatusActive, ExpiresAt: utils.Ptr(now.Add(time.Hour))}, want: true},
		{name: "active but expired", membership: users.Membership{Status: users.StatusActive, ExpiresAt: utils.Ptr(now.Add(-time.Hour))}, want: false},
		{name: "pending", membership: users.Membership{Status: users.StatusPending}, want: false},
		{name: "suspended", membership: users.Membership{Status: users.StatusSuspended}, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.membership.IsActive(now))
		})
	}
}

func TestMembership_EffectiveStatus(t *testing.T) {
	now := time.Now()
	past := utils.Ptr(now.Add(-time.Hour))

	m := users.Membership{Status: users.StatusActive, ExpiresAt: past}
	require.Equal(t, users.StatusExpired, m.EffectiveStatus(now))

	m = users.Membership{Status: users.StatusActive}
	require.Equal(t, users.StatusActive, m.EffectiveStatus(now))

	m = users.Membership{Status: users.StatusSuspended, ExpiresAt: past}
	require.Equal(t, users.StatusSuspended, m.EffectiveStatus(now))
}

func TestUser_MembershipLookups(t *testing.T) {
	now := time.Now()
	user := &users.User{
		ID: "user-1",
		Memberships: []users.Membership{
			{UserID: "user-1", TenantID: "t1", Role: "admin", Status: users.StatusActive},
			{UserID: "user-1", TenantID: "t2", Role: "viewer", Status: users.StatusActive, ExpiresAt: utils.Ptr(now.Add(-time.Hour))},
		},
	}

	require.True(t, user.HasTenant("t1"))
	require.False(t, user.HasTenant("t3"))

	require.Equal(t, "admin", user.RoleForTenant("t1"))
	require.Equal(t, "", user.RoleForTenant("t3"))

	require.NotNil(t, user.ActiveMembership("t1", now))
	// t2's membership exists but has lapsed.
	require.NotNil(t, user.Membership("t2"))
	require.Nil(t, user.ActiveMembership("t2", now))
}
