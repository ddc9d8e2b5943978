package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorType_Constants(t *testing.T) {
	tests := []struct {
		name     string
		errType  ErrorType
		expected string
	}{
		{
			name:     "validation error type",
			errType:  ErrTypeValidation,
			expected: "VALIDATION",
		},
		{
			name:     "format error type",
			errType:  ErrTypeFormat,
			expected: "FORMAT",
		},
		{
			name:     "access error type",
			errType:  ErrTypeAccess,
			expected: "ACCESS",
		},
		{
			name:     "structure error type",
			errType:  ErrTypeStructure,
			expected: "STRUCTURE",
		},
		{
			name:     "extraction error type",
			errType:  ErrTypeExtraction,
			expected: "EXTRACTION",
		},
		{
			name:     "mapping error type",
			errType:  ErrTypeMapping,
			expected: "MAPPING",
		},
		{
			name:     "config error type",
			errType:  ErrTypeConfig,
			expected: "CONFIG",
		},
		{
			name:     "not found error type",
			errType:  ErrTypeNotFound,
			expected: "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.errType))
		})
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name        string
		appError    *AppError
		wantMessage string
	}{
		{
			name: "error without cause",
			appError: &AppError{
				Type:    ErrTypeFormat,
				Message: "file extension not supported",
				Cause:   nil,
			},
			wantMessage: "[FORMAT] file extension not supported",
		},
		{
			name: "error with cause",
			appError: &AppError{
				Type:    ErrTypeAccess,
				Message: "failed to open workbook",
				Cause:   fmt.Errorf("permission denied"),
			},
			wantMessage: "[ACCESS] failed to open workbook: permission denied",
		},
		{
			name: "error with wrapped cause",
			appError: &AppError{
				Type:    ErrTypeStructure,
				Message: "template sheet missing",
				Cause:   errors.New("sheet Output Template does not exist"),
			},
			wantMessage: "[STRUCTURE] template sheet missing: sheet Output Template does not exist",
		},
		{
			name: "error with empty message",
			appError: &AppError{
				Type:    ErrTypeValidation,
				Message: "",
				Cause:   nil,
			},
			wantMessage: "[VALIDATION] ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appError.Error()
			assert.Equal(t, tt.wantMessage, got)
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying cause")
	appErr := NewFormatError("bad workbook", cause)

	assert.Equal(t, cause, appErr.Unwrap())
	assert.True(t, errors.Is(appErr, cause))

	noCause := NewAppValidationError("missing field")
	assert.Nil(t, noCause.Unwrap())
}

func TestAppError_WithContext(t *testing.T) {
	appErr := NewExtractionError("no article pairs found", nil).
		WithContext("sheet", "M-Textile").
		WithContext("row", 14)

	require.NotNil(t, appErr.Context)
	assert.Equal(t, "M-Textile", appErr.Context["sheet"])
	assert.Equal(t, 14, appErr.Context["row"])
}

func TestAppError_WithContext_NilMap(t *testing.T) {
	appErr := &AppError{Type: ErrTypeMapping, Message: "no target column"}
	appErr.WithContext("source", "K+L")

	require.NotNil(t, appErr.Context)
	assert.Equal(t, "K+L", appErr.Context["source"])
}

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
	}{
		{"format", NewFormatError("m", cause), ErrTypeFormat},
		{"access", NewAccessError("m", cause), ErrTypeAccess},
		{"structure", NewStructureError("m", cause), ErrTypeStructure},
		{"extraction", NewExtractionError("m", cause), ErrTypeExtraction},
		{"mapping", NewMappingError("m", cause), ErrTypeMapping},
		{"config", NewConfigError("m", cause), ErrTypeConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, cause, tt.err.Cause)
		})
	}

	nf := NewNotFoundError("conversion run")
	assert.Equal(t, ErrTypeNotFound, nf.Type)
	assert.Equal(t, "conversion run not found", nf.Message)

	val := NewAppValidationError("input required")
	assert.Equal(t, ErrTypeValidation, val.Type)
	assert.Nil(t, val.Cause)
}

func TestErrorsAs_ThroughWrapping(t *testing.T) {
	inner := NewStructureError("header row missing", nil)
	wrapped := fmt.Errorf("stage 4: %w", inner)

	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, ErrTypeStructure, appErr.Type)
}
