package errors

import (
	"errors"
	"fmt"
)

// Kind is the broad failure category surfaced to callers. Every error
// produced by the authorization core belongs to exactly one Kind.
type Kind string

const (
	KindAccessDenied     Kind = "access_denied"
	KindUnauthorized     Kind = "unauthorized"
	KindInvalidOperation Kind = "invalid_operation"
	KindNotFound         Kind = "not_found"
)

// Reason narrows a Kind to a specific, machine-readable cause.
type Reason string

const (
	// AccessDenied reasons
	ReasonNoTenantContext    Reason = "no_tenant_context"
	ReasonCrossTenant        Reason = "cross_tenant"
	ReasonFeatureDisabled    Reason = "feature_disabled"
	ReasonMembershipInactive Reason = "membership_inactive"

	// Unauthorized reasons
	ReasonInvalidToken Reason = "invalid_token"
	ReasonExpired      Reason = "expired"
	ReasonRevoked      Reason = "revoked"
	ReasonHashMismatch Reason = "hash_mismatch"

	// InvalidOperation reasons
	ReasonSystemRoleImmutable Reason = "system_role_immutable"
	ReasonPrivilegeEscalation Reason = "privilege_escalation"
	ReasonSelfReferentialRole Reason = "self_referential_role"

	// NotFound reasons
	ReasonRole       Reason = "role"
	ReasonPermission Reason = "permission"
	ReasonTenant     Reason = "tenant"
	ReasonMembership Reason = "membership"
)

// Error carries the Kind/Reason pair alongside a human-readable message and
// an optional wrapped cause.
type Error struct {
	Kind   Kind
	Reason Reason
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind) + ": " + string(e.Reason)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same Kind. A target with an empty
// Reason matches any Reason, so callers can test at either granularity:
//
//	errors.Is(err, &Error{Kind: KindAccessDenied})
//	errors.Is(err, AccessDenied(ReasonCrossTenant, ""))
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind && (t.Reason == "" || e.Reason == t.Reason)
	}
	return false
}

// AccessDenied reports an isolation or feature-gate violation.
func AccessDenied(reason Reason, format string, args ...any) *Error {
	return newError(KindAccessDenied, reason, format, args...)
}

// Unauthorized reports a credential validation failure.
func Unauthorized(reason Reason, format string, args ...any) *Error {
	return newError(KindUnauthorized, reason, format, args...)
}

// InvalidOperation reports a structurally invalid mutation attempt.
func InvalidOperation(reason Reason, format string, args ...any) *Error {
	return newError(KindInvalidOperation, reason, format, args...)
}

// NotFound reports a missing entity of the given kind.
func NotFound(reason Reason, format string, args ...any) *Error {
	return newError(KindNotFound, reason, format, args...)
}

func newError(kind Kind, reason Reason, format string, args ...any) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Reason: reason, Msg: msg}
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// KindOf returns the Kind of err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// ReasonOf returns the Reason of err if it is (or wraps) an *Error.
func ReasonOf(err error) (Reason, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason, true
	}
	return "", false
}

// IsKind reports whether err belongs to the given Kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsReason reports whether err carries the given Reason.
func IsReason(err error, reason Reason) bool {
	r, ok := ReasonOf(err)
	return ok && r == reason
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
