package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by code and message so sentinel errors
// keep matching after being wrapped with a cause.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// AsDomainError extracts a DomainError from an error chain.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether err carries a DomainError with the given code.
func HasCode(err error, code string) bool {
	de, ok := AsDomainError(err)
	return ok && de.Code == code
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeMisconfigured    = "MISCONFIGURED"
)

// Auth reason codes. Clients match on these, so they are part of the API.
const (
	ErrCodeLoginBadCredentials          = "LOGIN_BAD_CREDENTIALS"
	ErrCodeRegisterUserAlreadyExists    = "REGISTER_USER_ALREADY_EXISTS"
	ErrCodeRegisterInvalidPassword      = "REGISTER_INVALID_PASSWORD"
	ErrCodeUpdateUserEmailExists        = "UPDATE_USER_EMAIL_ALREADY_EXISTS"
	ErrCodeUpdateUserInvalidPassword    = "UPDATE_USER_INVALID_PASSWORD"
	ErrCodeResetPasswordBadToken        = "RESET_PASSWORD_BAD_TOKEN"
	ErrCodeResetPasswordInvalidPassword = "RESET_PASSWORD_INVALID_PASSWORD"
	ErrCodeVerifyUserBadToken           = "VERIFY_USER_BAD_TOKEN"
	ErrCodeVerifyUserAlreadyVerified    = "VERIFY_USER_ALREADY_VERIFIED"
	ErrCodeOAuthStateInvalid            = "OAUTH_STATE_INVALID"
)

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrUnknownField         = NewDomainError(ErrCodeValidation, "unknown field")
	ErrEmptyUpdate          = NewDomainError(ErrCodeValidation, "no fields to update")
	ErrEmptyFilter          = NewDomainError(ErrCodeValidation, "refusing to delete without a filter")
	ErrMultipleResults      = NewDomainError(ErrCodeValidation, "filter matched more than one record")
	ErrInvalidID            = NewDomainError(ErrCodeValidation, "invalid id")
)

// Authorization errors
var (
	ErrMissingOwner  = NewDomainError(ErrCodeUnauthorized, "an owner is required")
	ErrInvalidToken  = NewDomainError(ErrCodeUnauthorized, "invalid token")
	ErrInactiveUser  = NewDomainError(ErrCodeUnauthorized, "user is inactive")
	ErrNotSuperuser  = NewDomainError(ErrCodeForbidden, "superuser privileges required")
	ErrOwnerReadOnly = NewDomainError(ErrCodeForbidden, "owner column cannot be filtered or written")
)

// Auth flow errors
var (
	ErrBadCredentials            = NewDomainError(ErrCodeLoginBadCredentials, "bad credentials")
	ErrRegisterUserExists        = NewDomainError(ErrCodeRegisterUserAlreadyExists, "a user with this email or username already exists")
	ErrUpdateUserEmailExists     = NewDomainError(ErrCodeUpdateUserEmailExists, "a user with this email already exists")
	ErrResetPasswordBadToken     = NewDomainError(ErrCodeResetPasswordBadToken, "reset token is invalid or expired")
	ErrVerifyUserBadToken        = NewDomainError(ErrCodeVerifyUserBadToken, "verification token is invalid or expired")
	ErrVerifyUserAlreadyVerified = NewDomainError(ErrCodeVerifyUserAlreadyVerified, "user is already verified")
	ErrOAuthStateInvalid         = NewDomainError(ErrCodeOAuthStateInvalid, "oauth state is invalid or expired")
)

// Store lifecycle errors
var (
	ErrScopeClosed = NewDomainError(ErrCodeInvalidOperation, "transaction scope is closed")
)

// NotFound reports that no record of the given entity exists (or is visible
// to the caller) under id.
func NotFound(entity string, id any) *DomainError {
	return NewDomainError(ErrCodeNotFound, fmt.Sprintf("%s %v not found", entity, id))
}

// MissingRepository reports an entity that has no repository registered.
func MissingRepository(entity string) *DomainError {
	return NewDomainError(ErrCodeMisconfigured,
		fmt.Sprintf("no repository registered for entity %q", entity))
}

