package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrKind is used to map domain errors to HTTP status codes consistently.
type ErrKind string

const (
	KindValidation     ErrKind = "validation"     // 400
	KindAuth           ErrKind = "auth"           // 401
	KindForbidden      ErrKind = "forbidden"      // 403
	KindNotFound       ErrKind = "not_found"      // 404
	KindConflict       ErrKind = "conflict"       // 409
	KindRateLimited    ErrKind = "rate_limited"   // 429
	KindUpstream       ErrKind = "upstream"       // 502
	KindInfrastructure ErrKind = "infrastructure" // 503
	KindConfiguration  ErrKind = "configuration"  // startup only
	KindInternal       ErrKind = "internal"       // 500
)

// Stable codes the flow controller and transport branch on.
const (
	CodeConfiguration         = "configuration_error"
	CodeAuthenticationExpired = "authentication_expired"
	CodeUpstreamProvider      = "upstream_provider_error"
	CodeMalformedProfile      = "malformed_profile_response"
	CodeOAuthDenied           = "oauth_denied"
	CodeRefreshTokenMissing   = "refresh_token_missing"
	CodeNotAuthenticated      = "not_authenticated"
)

// maxDiagnosticBody bounds how much of an upstream body is kept in Meta.
const maxDiagnosticBody = 512

// Error is a structured domain error.
// - Kind: high-level category for HTTP mapping
// - Code: stable machine code (do not change casually)
// - Message: safe summary for clients (avoid leaking sensitive details)
// - Meta: optional details (field, reason, etc.)
// - Cause: wrapped internal error for logging/diagnostics
type Error struct {
	Kind    ErrKind
	Code    string
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind ErrKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind ErrKind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

func WithMeta(err *Error, meta map[string]string) *Error {
	err.Meta = meta
	return err
}

func Is(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// KindOf returns the kind of a domain error, or KindInternal for anything else.
func KindOf(err error) ErrKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// ----------------------
// Configuration (fatal at startup)
// ----------------------

func ErrConfiguration(field, reason string) *Error {
	return WithMeta(New(KindConfiguration, CodeConfiguration, "invalid configuration"), map[string]string{
		"field":  field,
		"reason": reason,
	})
}

// ----------------------
// Validation errors (400)
// ----------------------

func ErrInvalidJSON(cause error) *Error {
	return Wrap(KindValidation, "invalid_json", "invalid JSON body", cause)
}

func ErrMissingField(field string) *Error {
	return WithMeta(New(KindValidation, "missing_field", "missing required field"), map[string]string{
		"field": field,
	})
}

func ErrInvalidField(field, reason string) *Error {
	return WithMeta(New(KindValidation, "invalid_field", "invalid field"), map[string]string{
		"field":  field,
		"reason": reason,
	})
}

func ErrMissingCode() *Error {
	return New(KindValidation, "missing_code", "authorization code missing from callback")
}

// ----------------------
// Auth errors (401)
// ----------------------

// ErrAuthenticationExpired means the provider rejected the token as
// invalid_token. The user has to go through the provider again.
func ErrAuthenticationExpired(description string) *Error {
	e := New(KindAuth, CodeAuthenticationExpired, "authentication expired, please log in again")
	if description != "" {
		e.Meta = map[string]string{"description": description}
	}
	return e
}

func ErrOAuthDenied(code, description string) *Error {
	return WithMeta(New(KindAuth, CodeOAuthDenied, "authorization was denied by the provider"), map[string]string{
		"error":       code,
		"description": description,
	})
}

func ErrRefreshTokenMissing() *Error {
	return New(KindAuth, CodeRefreshTokenMissing, "no refresh token stored for user")
}

func ErrNotAuthenticated() *Error {
	return New(KindAuth, CodeNotAuthenticated, "authentication required")
}

// ----------------------
// Forbidden (403)
// ----------------------

func ErrForbidden() *Error {
	return New(KindForbidden, "forbidden", "forbidden")
}

// ----------------------
// Not Found (404)
// ----------------------

func ErrUserNotFound() *Error {
	return New(KindNotFound, "user_not_found", "user not found")
}

// ----------------------
// Rate limit (429)
// ----------------------

func ErrRateLimited(scope string) *Error {
	return WithMeta(New(KindRateLimited, "rate_limited", "too many requests"), map[string]string{
		"scope": scope,
	})
}

// ----------------------
// Upstream provider (502)
// ----------------------

// ErrUpstreamProvider keeps the status and a truncated body for diagnostics.
// status is 0 when the provider could not be reached at all.
func ErrUpstreamProvider(status int, body string, cause error) *Error {
	return WithMeta(
		Wrap(KindUpstream, CodeUpstreamProvider, "identity provider request failed", cause),
		map[string]string{
			"status": strconv.Itoa(status),
			"body":   truncate(body, maxDiagnosticBody),
		},
	)
}

func ErrMalformedProfile(field string) *Error {
	return WithMeta(New(KindUpstream, CodeMalformedProfile, "identity provider returned an unusable profile"), map[string]string{
		"field": field,
	})
}

// ----------------------
// Infrastructure / internal (5xx)
// ----------------------

func ErrDBUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "db_unavailable", "database unavailable", cause)
}

func ErrRedisUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "redis_unavailable", "cache unavailable", cause)
}

func ErrRabbitUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "rabbit_unavailable", "message broker unavailable", cause)
}

func ErrTokenSignFailed(cause error) *Error {
	return Wrap(KindInternal, "token_sign_failed", "token signing failed", cause)
}

func ErrRandomFailed(cause error) *Error {
	return Wrap(KindInternal, "random_failed", "random generation failed", cause)
}

func ErrInternal(cause error) *Error {
	return Wrap(KindInternal, "internal_error", "internal error", cause)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
