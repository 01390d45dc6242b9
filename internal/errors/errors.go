package errors

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// APIError is the error shape every handler returns through the
// error-handler middleware. Status drives the HTTP response code,
// Code is a stable machine-readable tag, Internal is never serialized.
type APIError struct {
	Status   int               `json:"-"`
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Fields   map[string]string `json:"fields,omitempty"`
	Internal error             `json:"-"`
}

func (e *APIError) Error() string {
	if e.Internal != nil {
		return e.Message + ": " + e.Internal.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Internal
}

func New(status int, code, message string, err error) *APIError {
	return &APIError{
		Status:   status,
		Code:     code,
		Message:  message,
		Internal: err,
	}
}

func NotFound(message string, err error) *APIError {
	return New(http.StatusNotFound, "not_found", message, err)
}

func Forbidden(message string, err error) *APIError {
	return New(http.StatusForbidden, "forbidden", message, err)
}

// Conflict covers resource-level collisions: a lock held by another
// party, a finalized review, a duplicate participant.
func Conflict(message string, err error) *APIError {
	return New(http.StatusConflict, "conflict", message, err)
}

// StaleWrite signals that an edit was built on an outdated document
// version. The caller must refetch and retry.
func StaleWrite(message string, currentVersion uint64) *APIError {
	apiErr := New(http.StatusConflict, "stale_write", message, nil)
	apiErr.Fields = map[string]string{
		"current_version": strconv.FormatUint(currentVersion, 10),
	}
	return apiErr
}

func Unauthorized(message string, err error) *APIError {
	return New(http.StatusUnauthorized, "unauthorized", message, err)
}

func BadRequest(message string, err error) *APIError {
	return New(http.StatusBadRequest, "bad_request", message, err)
}

func UnprocessableEntity(message string, err error) *APIError {
	return New(http.StatusUnprocessableEntity, "unprocessable_entity", message, err)
}

func Internal(err error) *APIError {
	return New(http.StatusInternalServerError, "internal", "Internal server error", err)
}

// NewValidationError maps gin binding failures to a 422 with
// per-field detail when the underlying error is from the validator.
func NewValidationError(err error) *APIError {
	apiErr := New(http.StatusUnprocessableEntity, "validation_error", "Invalid request payload", err)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		apiErr.Fields = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			apiErr.Fields[fe.Field()] = "failed on '" + fe.Tag() + "' rule"
		}
	}

	return apiErr
}
