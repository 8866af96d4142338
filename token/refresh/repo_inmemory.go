package refresh

import (
	"sync"
	"time"

	"github.com/jrsteele09/go-tenant-guard/internal/errors"
)

// InMemoryRepo is a mutex-guarded Repo. Rotate performs its check-and-swap
// under the write lock, which gives the same atomicity a storage
// transaction would.
type InMemoryRepo struct {
	mu     sync.RWMutex
	tokens map[string]*Token // keyed by TokenID
}

var _ Repo = (*InMemoryRepo)(nil)

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{tokens: make(map[string]*Token)}
}

func (r *InMemoryRepo) Create(token *Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *token
	r.tokens[token.TokenID] = &cp
	return nil
}

func (r *InMemoryRepo) Get(tokenID string) (*Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[tokenID]
	if !ok {
		return nil, errors.Unauthorized(errors.ReasonInvalidToken, "unknown refresh token")
	}
	cp := *t
	return &cp, nil
}

func (r *InMemoryRepo) UpdateHash(tokenID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenID]
	if !ok {
		return errors.Unauthorized(errors.ReasonInvalidToken, "unknown refresh token")
	}
	t.Hash = hash
	return nil
}

func (r *InMemoryRepo) Rotate(oldTokenID string, newToken *Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.tokens[oldTokenID]
	if !ok {
		return errors.Unauthorized(errors.ReasonInvalidToken, "unknown refresh token")
	}
	if old.Revoked {
		return errors.Unauthorized(errors.ReasonRevoked, "refresh token already rotated")
	}

	old.Revoked = true
	old.ReplacedBy = newToken.TokenID
	newToken.Replaces = oldTokenID

	cp := *newToken
	r.tokens[newToken.TokenID] = &cp
	return nil
}

func (r *InMemoryRepo) RevokeAllForUser(userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	revoked := 0
	for _, t := range r.tokens {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			revoked++
		}
	}
	return revoked, nil
}

func (r *InMemoryRepo) DeleteExpired(before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := 0
	for id, t := range r.tokens {
		if t.ExpiresAt.Before(before) {
			delete(r.tokens, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *InMemoryRepo) ListByUser(userID string) ([]*Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Token
	for _, t := range r.tokens {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}
