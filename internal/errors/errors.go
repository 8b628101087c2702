package errors

import (
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrValidation is returned when input fails format rules.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateIdentity is returned when a username or email is already taken.
	ErrDuplicateIdentity = errors.New("user with this email or username already exists")
	// ErrAlreadyAuthenticated is returned when a logged in caller tries to register.
	ErrAlreadyAuthenticated = errors.New("user is already logged in, please logout first")
	// ErrInvalidCredentials is returned for any failed login, whatever the cause.
	ErrInvalidCredentials = errors.New("please make sure you are verified and check your username and password")
	// ErrUnauthorized is returned when a request carries no usable identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenInvalid is returned for unknown, expired or wrong-kind tokens.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrFileNotFound is returned when no object exists at the addressed key.
	ErrFileNotFound = errors.New("File not found")
	// ErrFileExists is returned when an upload would overwrite an existing object.
	ErrFileExists = errors.New("File already exists")
	// ErrInvalidFileName is returned for names that could escape the owner prefix.
	ErrInvalidFileName = errors.New("invalid file name")
	// ErrFileTooLarge is returned when an uploaded file exceeds the size limit.
	ErrFileTooLarge = errors.New("File too large")
	// ErrNoFilesProvided is returned when a file operation names no files.
	ErrNoFilesProvided = errors.New("no file/files provided")
	// ErrNoFilesUploaded is returned when every file of an upload batch failed.
	ErrNoFilesUploaded = errors.New("no files were uploaded")
	// ErrNothingToUpdate is returned when a profile update carries no fields.
	ErrNothingToUpdate = errors.New("nothing was provided in the request query")
	// ErrRateLimited is returned when a client exceeds the request budget.
	ErrRateLimited = errors.New("too many requests, please try again later")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries field level detail and unwraps to ErrValidation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ErrorResponse represents the JSON envelope of a failed request.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   string       `json:"error"`
	Code    string       `json:"code"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Fields     []FieldError
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
		Success: false,
		Error:   e.Message,
		Code:    e.Code,
		Errors:  e.Fields,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	var verr *ValidationError
	if errors.As(err, &verr) {
		httpErr := NewHTTPError(http.StatusBadRequest, ErrValidation.Error(), "VALIDATION_ERROR")
		httpErr.Fields = verr.Fields
		return httpErr
	}

	switch {
	case errors.Is(err, ErrValidation):
		return NewHTTPError(http.StatusBadRequest, ErrValidation.Error(), "VALIDATION_ERROR")
	case errors.Is(err, ErrDuplicateIdentity):
		return NewHTTPError(http.StatusBadRequest, ErrDuplicateIdentity.Error(), "DUPLICATE_IDENTITY")
	case errors.Is(err, ErrAlreadyAuthenticated):
		return NewHTTPError(http.StatusBadRequest, ErrAlreadyAuthenticated.Error(), "ALREADY_AUTHENTICATED")
	case errors.Is(err, ErrInvalidCredentials):
		return NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error(), "INVALID_CREDENTIALS")
	case errors.Is(err, ErrUnauthorized):
		return NewHTTPError(http.StatusUnauthorized, ErrUnauthorized.Error(), "UNAUTHORIZED")
	case errors.Is(err, ErrTokenInvalid):
		return NewHTTPError(http.StatusUnauthorized, ErrTokenInvalid.Error(), "TOKEN_INVALID")
	case errors.Is(err, ErrFileNotFound):
		return NewHTTPError(http.StatusNotFound, ErrFileNotFound.Error(), "FILE_NOT_FOUND")
	case errors.Is(err, ErrFileExists):
		return NewHTTPError(http.StatusConflict, ErrFileExists.Error(), "FILE_EXISTS")
	case errors.Is(err, ErrInvalidFileName):
		return NewHTTPError(http.StatusBadRequest, ErrInvalidFileName.Error(), "INVALID_FILE_NAME")
	case errors.Is(err, ErrFileTooLarge):
		return NewHTTPError(http.StatusRequestEntityTooLarge, ErrFileTooLarge.Error(), "FILE_TOO_LARGE")
	case errors.Is(err, ErrNoFilesProvided):
		return NewHTTPError(http.StatusBadRequest, ErrNoFilesProvided.Error(), "NO_FILES")
	case errors.Is(err, ErrNoFilesUploaded):
		return NewHTTPError(http.StatusBadRequest, ErrNoFilesUploaded.Error(), "UPLOAD_FAILED")
	case errors.Is(err, ErrNothingToUpdate):
		return NewHTTPError(http.StatusBadRequest, ErrNothingToUpdate.Error(), "NOTHING_TO_UPDATE")
	case errors.Is(err, ErrRateLimited):
		return NewHTTPError(http.StatusTooManyRequests, ErrRateLimited.Error(), "RATE_LIMITED")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

// Message returns the user facing text for err: the domain message for known errors and
// the generic one for everything else.
func Message(err error) string {
	return MapErrorToHTTP(err).Message
}
