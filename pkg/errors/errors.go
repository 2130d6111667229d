// Package errors defines the application-wide error taxonomy (spec §7).
package errors

import (
	"errors"
	"fmt"
	"regexp"
)

// redactPattern matches key=value pairs whose key looks credential-shaped
// (token, api_key/api-key/apikey, secret, password, authorization) so
// adapter errors never leak them verbatim.
var redactPattern = regexp.MustCompile(`(?i)(token|api[_-]?key|secret|password|authorization)=[^&\s]+`)

// ErrorCode classifies an AppError into one of the spec's error kinds.
type ErrorCode string

const (
	CodeInvalidInput   ErrorCode = "INVALID_INPUT"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeAlreadyExists  ErrorCode = "ALREADY_EXISTS"
	CodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	CodeForbidden      ErrorCode = "FORBIDDEN"
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"

	// Added for the chat/orchestration domain (spec §7).
	CodeRateLimited  ErrorCode = "RATE_LIMITED"
	CodeMuted        ErrorCode = "MUTED"
	CodeBadEnvelope  ErrorCode = "BAD_ENVELOPE"
	CodeTamper       ErrorCode = "TAMPER"
	CodeUnavailable  ErrorCode = "UNAVAILABLE"
	CodeConflict     ErrorCode = "CONFLICT"
	CodePolicy       ErrorCode = "POLICY_VIOLATION"
)

// AppError is the uniform application error envelope. Code is used for
// programmatic dispatch (e.g. session-close decisions, retry policy);
// Message is safe to surface to a client; Err carries the underlying
// cause for logs only.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewInvalidInputError(message string) *AppError {
	return &AppError{Code: CodeInvalidInput, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message}
}

func NewAlreadyExistsError(message string) *AppError {
	return &AppError{Code: CodeAlreadyExists, Message: message}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{Code: CodeUnauthorized, Message: message}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Code: CodeForbidden, Message: message}
}

func NewInternalError(message string) *AppError {
	return &AppError{Code: CodeInternal, Message: message}
}

func NewInternalErrorWithCause(message string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: cause}
}

// NewRateLimitedError marks a request denied by the rate/quota gate (§4.C).
// Never retried server-side; the message is always client-safe.
func NewRateLimitedError(message string) *AppError {
	return &AppError{Code: CodeRateLimited, Message: message}
}

// NewMutedError marks a send blocked by moderation mute status (§3).
func NewMutedError(message string) *AppError {
	return &AppError{Code: CodeMuted, Message: message}
}

// NewBadEnvelopeError marks malformed envelope framing (§4.A): bad base64,
// wrong nonce length, or a shape that is neither legacy plaintext nor a
// well-formed {ciphertext,nonce} object.
func NewBadEnvelopeError(message string) *AppError {
	return &AppError{Code: CodeBadEnvelope, Message: message}
}

// NewTamperError marks an AEAD authentication failure on decrypt (§4.A).
func NewTamperError(message string) *AppError {
	return &AppError{Code: CodeTamper, Message: message}
}

// NewUnavailableErrorWithCause marks a dependency-down condition (durable workflow
// runtime, adapter, LLM). Workflow starts divert to the Deferred Queue on
// this code (§7).
func NewUnavailableErrorWithCause(message string, cause error) *AppError {
	return &AppError{Code: CodeUnavailable, Message: message, Err: cause}
}

// NewConflictError marks an idempotency hit — a duplicate ad-hoc workflow
// start within the dedup window (§4.K).
func NewConflictError(message string) *AppError {
	return &AppError{Code: CodeConflict, Message: message}
}

// NewPolicyError marks a workflow safety-policy violation (§4.K), e.g. a
// payments.withdraw step whose amount or phone number falls outside the
// workflow's policy.
func NewPolicyError(message string) *AppError {
	return &AppError{Code: CodePolicy, Message: message}
}

func IsNotFound(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeNotFound
	}
	return false
}

func IsInvalidInput(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeInvalidInput
	}
	return false
}

// IsConflict reports whether err is a duplicate/idempotency conflict.
func IsConflict(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeConflict
	}
	return false
}

// IsUnavailable reports whether err represents a downstream-dependency
// outage, the trigger for diverting a workflow start to the Deferred Queue.
func IsUnavailable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeUnavailable
	}
	return false
}

// CodeOf extracts the ErrorCode from err, defaulting to CodeInternal for
// errors that are not an *AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// Redact scrubs a raw external-service error of anything that looks like
// a credential before it is allowed into a result/error string returned to
// callers (spec §4.O: adapters must redact credentials from errors).
func Redact(raw string) string {
	return redactPattern.ReplaceAllString(raw, "$1=[REDACTED]")
}
