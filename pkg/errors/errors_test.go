package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			err:      New(CodeNotFound, "class com.example.Z not found"),
			expected: "[NOT_FOUND] class com.example.Z not found",
		},
		{
			name:     "with underlying error",
			err:      Wrap(CodeParseError, "failed to load heap dump", errors.New("unexpected EOF")),
			expected: "[PARSE_ERROR] failed to load heap dump: unexpected EOF",
		},
		{
			name:     "formatted",
			err:      Newf(CodeInvalidInput, "bad root %q", "0xzz"),
			expected: `[INVALID_INPUT] bad root "0xzz"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeScanFailure, "scan failed", underlying)

	assert.Equal(t, underlying, err.Unwrap())
	assert.ErrorIs(t, err, underlying)
}

func TestAppError_Is(t *testing.T) {
	err1 := New(CodeDatabaseError, "error 1")
	err2 := New(CodeDatabaseError, "error 2")
	err3 := New(CodeStorageError, "error 3")

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestPredicates(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", Wrap(CodeScanFailure, "scan failed", errors.New("boom")))

	assert.True(t, IsScanFailure(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.True(t, IsNotFound(New(CodeNotFound, "x")))
	assert.True(t, IsDatabaseError(Wrap(CodeDatabaseError, "insert", nil)))
	assert.False(t, IsDatabaseError(errors.New("plain")))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, CodeParseError, GetErrorCode(fmt.Errorf("wrap: %w", ErrParseError)))
	assert.Equal(t, CodeUnknown, GetErrorCode(errors.New("plain")))
}

func TestGetErrorMessage(t *testing.T) {
	assert.Equal(t, "storage error", GetErrorMessage(ErrStorageError))
	assert.Equal(t, "plain", GetErrorMessage(errors.New("plain")))
	assert.Equal(t, "", GetErrorMessage(nil))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.New("plain"), 1},
		{ErrInvalidInput, 2},
		{ErrConfigError, 2},
		{ErrNotFound, 3},
		{fmt.Errorf("load: %w", ErrParseError), 4},
		{ErrStorageError, 4},
		{ErrScanFailure, 5},
		{ErrDatabaseError, 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "%v", tt.err)
	}
}
