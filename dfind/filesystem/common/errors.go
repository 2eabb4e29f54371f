package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Common error types used across filesystem packages
var (
	ErrPathEmpty        = errors.New("path cannot be empty")
	ErrPathInvalid      = errors.New("path contains invalid characters")
	ErrRootNotExist     = errors.New("scan root does not exist")
	ErrRootNotDirectory = errors.New("scan root is not a directory")
	ErrScanCancelled    = errors.New("scan cancelled")
	ErrNothingKept      = errors.New("every file of the group is unkept")
	ErrInvalidGroup     = errors.New("group index out of range")
	ErrInvalidFile      = errors.New("file index out of range")
	ErrUnknownAlgorithm = errors.New("unknown hash algorithm")
)

// ValidationUtils provides common validation utilities used across packages
type ValidationUtils struct{}

// NewValidationUtils creates a new ValidationUtils instance
func NewValidationUtils() *ValidationUtils {
	return &ValidationUtils{}
}

// ValidateContextCancellation checks if context is cancelled and returns appropriate error
func (vu *ValidationUtils) ValidateContextCancellation(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// ValidatePath rejects empty paths and paths with NUL bytes
func (vu *ValidationUtils) ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrPathEmpty
	}
	if strings.Contains(path, "\x00") {
		return ErrPathInvalid
	}
	return nil
}

// ErrorUtils provides common error handling utilities
type ErrorUtils struct{}

// NewErrorUtils creates a new ErrorUtils instance
func NewErrorUtils() *ErrorUtils {
	return &ErrorUtils{}
}

// WrapError wraps an error with additional context
func (eu *ErrorUtils) WrapError(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	context := fmt.Sprintf(message, args...)
	return fmt.Errorf("%s: %w", context, err)
}

// HandleOperationError logs a failed operation and wraps it
func (eu *ErrorUtils) HandleOperationError(err error, operation, path string, logError bool) error {
	if err == nil {
		return nil
	}

	if logError {
		slog.Error("Operation failed",
			"operation", operation,
			"path", path,
			"error", err)
	}

	return eu.WrapError(err, "failed to %s %s", operation, path)
}
