package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/izpodvypodvert/todoapi/internal/domain"
	"github.com/izpodvypodvert/todoapi/internal/logger"
	"github.com/izpodvypodvert/todoapi/internal/telemetry"
)

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data any `json:"data"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error string `json:"error"`
}

const internalErrorMessage = "internal server error"

// reasonMessages are the client-facing texts of the auth reason codes. An
// empty text keeps the domain message, which already says what is wrong.
var reasonMessages = map[string]string{
	domain.ErrCodeLoginBadCredentials:          "Invalid email or password, or the account is inactive.",
	domain.ErrCodeRegisterUserAlreadyExists:    "A user with this email or username already exists.",
	domain.ErrCodeUpdateUserEmailExists:        "A user with this email already exists.",
	domain.ErrCodeResetPasswordBadToken:        "The password reset link is invalid or has expired.",
	domain.ErrCodeVerifyUserBadToken:           "The verification link is invalid or has expired.",
	domain.ErrCodeVerifyUserAlreadyVerified:    "This account is already verified.",
	domain.ErrCodeOAuthStateInvalid:            "The sign-in session has expired. Please try again.",
	domain.ErrCodeRegisterInvalidPassword:      "",
	domain.ErrCodeUpdateUserInvalidPassword:    "",
	domain.ErrCodeResetPasswordInvalidPassword: "",
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, SuccessResponse{Data: data})
}

// NoContent writes an empty 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DomainErrorToHTTP maps domain errors to HTTP status codes
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}

	switch domainErr.Code {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeAlreadyExists:
		return http.StatusConflict
	case domain.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrCodeForbidden:
		return http.StatusForbidden
	case domain.ErrCodeInvalidOperation:
		return http.StatusBadRequest
	case domain.ErrCodeInternalError, domain.ErrCodeMisconfigured:
		return http.StatusInternalServerError
	}
	if _, ok := reasonMessages[domainErr.Code]; ok {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// ErrorMessage returns the text shown to clients for err. Internal failures
// never leak their details.
func ErrorMessage(err error) string {
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) || DomainErrorToHTTP(err) == http.StatusInternalServerError {
		return internalErrorMessage
	}
	if msg := reasonMessages[domainErr.Code]; msg != "" {
		return msg
	}
	return domainErr.Message
}

// HandleError writes an appropriate error response based on the error type.
// Server-side failures are logged and reported to Sentry.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	status := DomainErrorToHTTP(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		telemetry.CaptureError(r.Context(), err)
	}
	Error(w, status, ErrorMessage(err))
}
