package refresh

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-tenant-guard/audit"
	"github.com/jrsteele09/go-tenant-guard/internal/errors"
	"github.com/jrsteele09/go-tenant-guard/internal/obs"
	"github.com/jrsteele09/go-tenant-guard/token"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const defaultExpiry = 7 * 24 * time.Hour

// Subject identifies the owner a credential is issued to.
type Subject struct {
	UserID   string
	TenantID string
	Role     string
}

// Engine implements the refresh token lifecycle: issue, validate, rotate,
// reuse detection, and revocation. It is independent of tenant context.
type Engine struct {
	repo    Repo
	signer  token.Signer
	sink    audit.Sink
	logger  zerolog.Logger
	expiry  time.Duration
	nowFunc func() time.Time
}

type EngineOption func(*Engine)

func WithExpiry(expiry time.Duration) EngineOption {
	return func(e *Engine) {
		e.expiry = expiry
	}
}

func WithNowFunc(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.nowFunc = now
	}
}

func WithAuditSink(sink audit.Sink) EngineOption {
	return func(e *Engine) {
		e.sink = sink
	}
}

func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

func NewEngine(repo Repo, signer token.Signer, options ...EngineOption) *Engine {
	e := &Engine{
		repo:   repo,
		signer: signer,
		sink:   audit.NopSink{},
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(e)
	}
	if e.expiry == 0 {
		e.expiry = defaultExpiry
	}
	if e.nowFunc == nil {
		e.nowFunc = func() time.Time { return NowTimeFunc() }
	}
	return e
}

// Issue creates and persists a new token record with a fresh opaque id.
// The caller signs an outer credential embedding TokenID and then calls
// UpdateHash with the hash of the signed bytes; issuing is two-phase
// because the hash covers the final signed artifact.
func (e *Engine) Issue(subject Subject, device DeviceInfo) (*Token, error) {
	now := e.nowFunc()
	record := &Token{
		ID:        uuid.New().String(),
		UserID:    subject.UserID,
		TenantID:  subject.TenantID,
		Role:      subject.Role,
		TokenID:   uuid.New().String(),
		ExpiresAt: now.Add(e.expiry),
		CreatedAt: now,
		Device:    device,
	}
	if err := e.repo.Create(record); err != nil {
		return nil, errors.Wrapf(err, "refresh.Engine.Issue")
	}
	return record, nil
}

// UpdateHash stores the structural hash of the signed credential for a
// previously issued record.
func (e *Engine) UpdateHash(tokenID, hash string) error {
	return e.repo.UpdateHash(tokenID, hash)
}

// IssueCredential runs the full issue flow: create the record, sign the
// outer credential, and store its structural hash.
func (e *Engine) IssueCredential(ctx context.Context, subject Subject, device DeviceInfo) (string, *Token, error) {
	record, err := e.Issue(subject, device)
	if err != nil {
		return "", nil, err
	}
	signed, err := e.sign(record)
	if err != nil {
		return "", nil, err
	}
	if err := e.UpdateHash(record.TokenID, token.StructuralHash(signed)); err != nil {
		return "", nil, err
	}
	e.sink.Record(ctx, audit.NewEvent(audit.EventTokenIssued, record.UserID, record.TenantID, map[string]string{
		"token_id": record.TokenID,
	}))
	return signed, record, nil
}

// Validate resolves a signed credential to its record and checks it is
// currently usable. On success it returns the record identifying the
// owning principal.
func (e *Engine) Validate(signedCredential string) (*Token, error) {
	record, err := e.resolve(signedCredential)
	if err != nil {
		return nil, err
	}
	now := e.nowFunc()
	if !now.Before(record.ExpiresAt) {
		return nil, errors.Unauthorized(errors.ReasonExpired, "refresh token expired")
	}
	if record.Revoked {
		return nil, errors.Unauthorized(errors.ReasonRevoked, "refresh token revoked")
	}
	return record, nil
}

// Rotate exchanges a currently usable credential for a new one. The old
// record is revoked and chain-linked to its replacement in a single
// transactional repo step, so a second concurrent rotation of the same
// credential observes it as revoked and fails. A detected reuse revokes
// every active token for the user before the error returns.
func (e *Engine) Rotate(ctx context.Context, oldSignedCredential string) (string, *Token, error) {
	old, err := e.resolve(oldSignedCredential)
	if err != nil {
		return "", nil, err
	}

	if old.Revoked && old.ReplacedBy != "" {
		e.handleReuse(ctx, old)
		return "", nil, errors.Unauthorized(errors.ReasonRevoked, "refresh token reuse detected")
	}
	if old.Revoked {
		return "", nil, errors.Unauthorized(errors.ReasonRevoked, "refresh token revoked")
	}
	now := e.nowFunc()
	if !now.Before(old.ExpiresAt) {
		return "", nil, errors.Unauthorized(errors.ReasonExpired, "refresh token expired")
	}

	next := &Token{
		ID:        uuid.New().String(),
		UserID:    old.UserID,
		TenantID:  old.TenantID,
		Role:      old.Role,
		TokenID:   uuid.New().String(),
		ExpiresAt: now.Add(e.expiry),
		CreatedAt: now,
		Device:    old.Device,
	}
	if err := e.repo.Rotate(old.TokenID, next); err != nil {
		return "", nil, err
	}

	signed, err := e.sign(next)
	if err != nil {
		return "", nil, err
	}
	if err := e.repo.UpdateHash(next.TokenID, token.StructuralHash(signed)); err != nil {
		return "", nil, err
	}

	obs.TokenRotations.Inc()
	e.sink.Record(ctx, audit.NewEvent(audit.EventTokenRotated, next.UserID, next.TenantID, map[string]string{
		"old_token_id": old.TokenID,
		"new_token_id": next.TokenID,
	}))
	return signed, next, nil
}

// DetectReuse reports whether the credential resolves to a record that was
// already consumed by a prior rotation and is being replayed.
func (e *Engine) DetectReuse(signedCredential string) (bool, error) {
	record, err := e.resolve(signedCredential)
	if err != nil {
		return false, err
	}
	return record.Revoked && record.ReplacedBy != "", nil
}

// RevokeAll revokes every active refresh token belonging to the user.
func (e *Engine) RevokeAll(ctx context.Context, userID string) (int, error) {
	revoked, err := e.repo.RevokeAllForUser(userID)
	if err != nil {
		return 0, err
	}
	e.sink.Record(ctx, audit.NewEvent(audit.EventTokensRevoked, userID, "", map[string]string{
		"revoked": strconv.Itoa(revoked),
	}))
	return revoked, nil
}

// resolve decodes the credential, loads the record, and verifies the
// stored hash against the presented artifact, defending against forged
// token ids.
func (e *Engine) resolve(signedCredential string) (*Token, error) {
	claims, err := token.Decode(e.signer, signedCredential)
	if err != nil {
		return nil, err
	}
	record, err := e.repo.Get(claims.TokenID)
	if err != nil {
		return nil, errors.Unauthorized(errors.ReasonInvalidToken, "unknown refresh token")
	}
	if record.Hash == "" || !token.HashEquals(record.Hash, token.StructuralHash(signedCredential)) {
		return nil, errors.Unauthorized(errors.ReasonHashMismatch, "refresh token hash mismatch")
	}
	return record, nil
}

func (e *Engine) sign(record *Token) (string, error) {
	claims := token.NewRefreshClaims(record.UserID, record.TokenID, record.TenantID, record.Role, record.CreatedAt, record.ExpiresAt)
	return token.Encode(e.signer, claims)
}

func (e *Engine) handleReuse(ctx context.Context, record *Token) {
	revoked, err := e.repo.RevokeAllForUser(record.UserID)
	if err != nil {
		e.logger.Error().Err(err).Str("user_id", record.UserID).Msg("revoke all after reuse detection failed")
	}
	obs.TokenReuseDetections.Inc()
	e.sink.Record(ctx, audit.NewEvent(audit.EventTokenReuse, record.UserID, record.TenantID, map[string]string{
		"token_id":    record.TokenID,
		"replaced_by": record.ReplacedBy,
		"revoked":     strconv.Itoa(revoked),
	}))
	e.logger.Warn().
		Str("user_id", record.UserID).
		Str("token_id", record.TokenID).
		Msg("refresh token reuse detected, all user tokens revoked")
}

