// Package refresh issues, validates, rotates, and revokes long-lived
// refresh credentials, and detects replay of already-rotated tokens.
package refresh

import "time"

// DeviceInfo is the client metadata captured at issue time.
type DeviceInfo struct {
	UserAgent string `json:"user_agent,omitempty"`
	IP        string `json:"ip,omitempty"`
}

// Token is the server-side record behind a signed refresh credential. The
// credential embeds only TokenID; Hash covers the signed artifact's
// structural portion. Replaces/ReplacedBy links form the rotation chain.
type Token struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	TenantID   string     `json:"tenant_id,omitempty"`
	Role       string     `json:"role,omitempty"`
	TokenID    string     `json:"token_id"`
	Hash       string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
	Revoked    bool       `json:"revoked"`
	Replaces   string     `json:"replaces,omitempty"`
	ReplacedBy string     `json:"replaced_by,omitempty"`
	Device     DeviceInfo `json:"device,omitempty"`
}

// Usable reports whether the token can still be presented for rotation.
func (t *Token) Usable(now time.Time) bool {
	return t != nil && !t.Revoked && now.Before(t.ExpiresAt)
}
