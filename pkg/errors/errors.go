// Package errors defines the coded error type shared by the service and CLI.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the application.
const (
	CodeUnknown       = "UNKNOWN_ERROR"
	CodeScanFailure   = "SCAN_FAILURE"
	CodeParseError    = "PARSE_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeStorageError  = "STORAGE_ERROR"
	CodeDatabaseError = "DATABASE_ERROR"
	CodeConfigError   = "CONFIG_ERROR"
)

// exitCodes maps error codes to CLI exit statuses. 1 is reserved for a failed
// reachability expectation.
var exitCodes = map[string]int{
	CodeInvalidInput:  2,
	CodeConfigError:   2,
	CodeNotFound:      3,
	CodeParseError:    4,
	CodeStorageError:  4,
	CodeScanFailure:   5,
	CodeDatabaseError: 6,
}

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code string, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error instances.
var (
	ErrScanFailure   = New(CodeScanFailure, "reachability scan failed")
	ErrParseError    = New(CodeParseError, "parse error")
	ErrNotFound      = New(CodeNotFound, "resource not found")
	ErrInvalidInput  = New(CodeInvalidInput, "invalid input")
	ErrStorageError  = New(CodeStorageError, "storage error")
	ErrDatabaseError = New(CodeDatabaseError, "database error")
	ErrConfigError   = New(CodeConfigError, "configuration error")
)

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsScanFailure checks if the error is a scan failure.
func IsScanFailure(err error) bool {
	return errors.Is(err, ErrScanFailure)
}

// IsDatabaseError checks if the error is a database error.
func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabaseError)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// ExitCode returns the process exit status for err. Errors without a known
// code exit with 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if code, ok := exitCodes[GetErrorCode(err)]; ok {
		return code
	}
	return 1
}
