package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrUserNotFound is returned when a user is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrCounselorNotFound is returned when an assignment target is not an existing counselor.
	ErrCounselorNotFound = errors.New("counselor not found")
	// ErrConversationNotFound is returned when a conversation is not found.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrMessageNotFound is returned when a message is not found in the conversation.
	ErrMessageNotFound = errors.New("message not found")
	// ErrForbidden is returned when the caller's role, ownership or assignment does not allow the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrUsernameTaken is returned when registering a username that already exists.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials is returned when username or password is incorrect.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidRecoveryKey is returned when a recovery key does not match.
	ErrInvalidRecoveryKey = errors.New("invalid username or recovery key")
	// ErrInvalidRefreshToken is returned when refresh token is invalid or expired.
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	// ErrInvalidPassword is returned when the current password does not match.
	ErrInvalidPassword = errors.New("current password is incorrect")
	// ErrAccountInactive is returned when the account is deactivated.
	ErrAccountInactive = errors.New("account is not active")
	// ErrInvalidInput is returned when a value passed the request layer but breaks a domain rule.
	ErrInvalidInput = errors.New("invalid input")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

var mappings = []struct {
	target error
	status int
	code   string
}{
	{ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
	{ErrCounselorNotFound, http.StatusNotFound, "COUNSELOR_NOT_FOUND"},
	{ErrConversationNotFound, http.StatusNotFound, "CONVERSATION_NOT_FOUND"},
	{ErrMessageNotFound, http.StatusNotFound, "MESSAGE_NOT_FOUND"},
	{ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{ErrUsernameTaken, http.StatusConflict, "USERNAME_TAKEN"},
	{ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{ErrInvalidRecoveryKey, http.StatusUnauthorized, "INVALID_RECOVERY_KEY"},
	{ErrInvalidRefreshToken, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN"},
	{ErrInvalidPassword, http.StatusBadRequest, "INVALID_PASSWORD"},
	{ErrAccountInactive, http.StatusForbidden, "ACCOUNT_INACTIVE"},
	{ErrInvalidInput, http.StatusBadRequest, "VALIDATION_ERROR"},
}

// MapErrorToHTTP maps domain errors, possibly wrapped, to HTTP errors.
// The message keeps any detail added while wrapping.
func MapErrorToHTTP(err error) *HTTPError {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return NewHTTPError(m.status, err.Error(), m.code)
		}
	}
	return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
}
