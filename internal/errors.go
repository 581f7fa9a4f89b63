package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation ErrorType = "VALIDATION_ERROR"
	ErrorTypeLoad       ErrorType = "LOAD_ERROR"
	ErrorTypeStoreBuild ErrorType = "STORE_BUILD_ERROR"
	ErrorTypeNoQuery    ErrorType = "NO_QUERY_FOUND"
	ErrorTypeExecution  ErrorType = "EXECUTION_ERROR"
	ErrorTypeInternal   ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal   ErrorType = "EXTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeEmptyQuestion    ErrorCode = "EMPTY_QUESTION"

	ErrCodeSnapshotUnreadable ErrorCode = "SNAPSHOT_UNREADABLE"
	ErrCodeSnapshotMalformed  ErrorCode = "SNAPSHOT_MALFORMED"
	ErrCodeSnapshotInvalid    ErrorCode = "SNAPSHOT_INVALID"

	ErrCodeSchemaFailed   ErrorCode = "SCHEMA_FAILED"
	ErrCodeWriteFailed    ErrorCode = "WRITE_FAILED"
	ErrCodeReplaceFailed  ErrorCode = "REPLACE_FAILED"
	ErrCodeStoreMissing   ErrorCode = "STORE_MISSING"
	ErrCodeNoQueryFound   ErrorCode = "NO_QUERY_FOUND"
	ErrCodeNotReadOnly    ErrorCode = "NOT_READ_ONLY"
	ErrCodeQueryFailed    ErrorCode = "QUERY_FAILED"
	ErrCodeEmptyResult    ErrorCode = "EMPTY_RESULT"
	ErrCodeGenerateFailed ErrorCode = "GENERATE_FAILED"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another *AppError by type and code so sentinel values work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithCause returns a copy carrying cause; sentinels stay untouched.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewLoadError(message string, code ErrorCode, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeLoad,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		Cause:      cause,
	}
}

func NewStoreBuildError(message string, code ErrorCode, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeStoreBuild,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewNoQueryFoundError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeNoQuery,
		Code:       ErrCodeNoQueryFound,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func NewExecutionError(message string, code ErrorCode, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeExecution,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

func NewExternalError(message string, code ErrorCode, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

var (
	ErrNoQueryFound  = NewNoQueryFoundError("no valid SQL query found in response")
	ErrNotReadOnly   = NewExecutionError("only a single SELECT statement may be executed", ErrCodeNotReadOnly, nil)
	ErrEmptyResult   = NewExecutionError("query returned no rows", ErrCodeEmptyResult, nil)
	ErrStoreMissing  = NewStoreBuildError("risk database does not exist", ErrCodeStoreMissing, nil)
	ErrEmptyQuestion = NewValidationError("query must not be empty", ErrCodeEmptyQuestion)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
