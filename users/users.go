package users

import (
	"fmt"
	"time"

	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// MembershipStatus tracks the lifecycle of a user's membership in a tenant.
type MembershipStatus string

const (
	StatusActive    MembershipStatus = "active"
	StatusPending   MembershipStatus = "pending"
	StatusSuspended MembershipStatus = "suspended"
	StatusExpired   MembershipStatus = "expired"
)

// Membership represents a user's relationship to one tenant. The
// (UserID, TenantID) pair is unique.
type Membership struct {
	UserID         string           `json:"user_id"`
	TenantID       string           `json:"tenant_id"`
	Role           string           `json:"role"`
	Status         MembershipStatus `json:"status"`
	JoinedAt       time.Time        `json:"joined_at"`
	LastAccessedAt time.Time        `json:"last_accessed_at,omitempty"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
}

// IsActive reports whether the membership currently grants access. An
// expired ExpiresAt overrides a stored active status.
func (m *Membership) IsActive(now time.Time) bool {
	if m == nil || m.Status != StatusActive {
		return false
	}
	if m.ExpiresAt != nil && !now.Before(*m.ExpiresAt) {
		return false
	}
	return true
}

// EffectiveStatus returns the status with expiry applied.
func (m *Membership) EffectiveStatus(now time.Time) MembershipStatus {
	if m.Status == StatusActive && m.ExpiresAt != nil && !now.Before(*m.ExpiresAt) {
		return StatusExpired
	}
	return m.Status
}

type User struct {
	ID           string    `json:"id,omitempty"`    // Unique identifier for the user
	Email        string    `json:"email,omitempty"` // User's email address
	Username     string    `json:"username,omitempty"`
	PasswordHash string    `json:"-"` // Hashed version of the user's password - never serialize
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	DateJoined   time.Time `json:"date_joined,omitempty"`
	LastLogin    time.Time `json:"last_login,omitempty"`

	// CurrentTenantID is the denormalized "current" tenant, kept consistent
	// only by the tenant-switch operation.
	CurrentTenantID string `json:"current_tenant_id,omitempty"`

	// Memberships holds the user's per-tenant memberships.
	Memberships []Membership `json:"memberships,omitempty"`

	Verified bool `json:"verified,omitempty"`
	Blocked  bool `json:"blocked,omitempty"`
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Membership returns the user's membership for a specific tenant.
func (u *User) Membership(tenantID string) *Membership {
	for i := range u.Memberships {
		if u.Memberships[i].TenantID == tenantID {
			return &u.Memberships[i]
		}
	}
	return nil
}

// HasTenant reports whether the user holds any membership for tenantID.
func (u *User) HasTenant(tenantID string) bool {
	return u.Membership(tenantID) != nil
}

// RoleForTenant returns the user's role within a specific tenant, or "".
func (u *User) RoleForTenant(tenantID string) string {
	if m := u.Membership(tenantID); m != nil {
		return m.Role
	}
	return ""
}

// ActiveMembership returns the membership for tenantID only if it is
// currently active.
func (u *User) ActiveMembership(tenantID string, now time.Time) *Membership {
	m := u.Membership(tenantID)
	if m == nil || !m.IsActive(now) {
		return nil
	}
	return m
}
