package refresh

import "time"

// Repo persists refresh token records. Tokens are keyed by their opaque
// TokenID (the value embedded in the signed credential), not the row id.
//
// Rotate must be atomic with respect to concurrent rotations of the same
// token: exactly one caller wins; the rest observe the token as revoked.
type Repo interface {
	Create(token *Token) error
	Get(tokenID string) (*Token, error)
	UpdateHash(tokenID, hash string) error

	// Rotate marks the old token revoked, links old.ReplacedBy to the new
	// token, sets newToken.Replaces, and inserts newToken — all in one
	// transactional step. It fails with Unauthorized(Revoked) when the old
	// token was already rotated or revoked.
	Rotate(oldTokenID string, newToken *Token) error

	RevokeAllForUser(userID string) (int, error)
	DeleteExpired(before time.Time) (int, error)
	ListByUser(userID string) ([]*Token, error)
}
