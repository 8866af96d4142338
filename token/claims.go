// Package token defines the signed refresh credential wire format. The
// rotation engine in token/refresh stores only an opaque token id and a
// hash of the signed artifact; this package owns signing, parsing, and
// hashing.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jrsteele09/go-tenant-guard/internal/errors"
)

// RefreshClaims is the payload of a signed refresh credential. Subject
// carries the user id.
type RefreshClaims struct {
	jwt.RegisteredClaims
	TokenID  string `json:"tid"`
	TenantID string `json:"tenant,omitempty"`
	Role     string `json:"role,omitempty"`
}

// NewRefreshClaims builds the claims for a freshly issued token record.
func NewRefreshClaims(userID, tokenID, tenantID, role string, issuedAt, expiresAt time.Time) RefreshClaims {
	return RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenID:  tokenID,
		TenantID: tenantID,
		Role:     role,
	}
}

// Encode signs the claims into the wire credential.
func Encode(signer Signer, claims RefreshClaims) (string, error) {
	return signer.Sign(claims)
}

// Decode parses and verifies a signed credential. Expiry is checked by the
// rotation engine against the stored record, not here, so that expired
// credentials still resolve to a record for reuse detection.
func Decode(signer Signer, raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims,
		signer.GetVerificationKey,
		jwt.WithValidMethods([]string{signer.GetSigningMethod().Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, errors.Unauthorized(errors.ReasonInvalidToken, "malformed refresh credential").WithCause(err)
	}
	if !parsed.Valid {
		return nil, errors.Unauthorized(errors.ReasonInvalidToken, "refresh credential failed verification")
	}
	if claims.TokenID == "" || claims.Subject == "" {
		return nil, errors.Unauthorized(errors.ReasonInvalidToken, "refresh credential missing required claims")
	}
	return claims, nil
}
