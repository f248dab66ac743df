// Package errors provides structured error handling for netsweep operations.
// It defines error codes matching the engine's failure taxonomy and provides
// utilities for creating and classifying errors with target context.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeCanceled      ErrorCode = "CANCELED"

	// Per-unit scan errors. These are recovered locally and never abort
	// sibling units; they surface only through the aggregated error summary.
	CodeProcessSpawn ErrorCode = "PROCESS_SPAWN"
	CodeTimeout      ErrorCode = "TIMEOUT"
	CodeNonZeroExit  ErrorCode = "NON_ZERO_EXIT"
	CodeParse        ErrorCode = "PARSE"

	// File system errors.
	CodeFileNotFound    ErrorCode = "FILE_NOT_FOUND"
	CodeDirectoryCreate ErrorCode = "DIRECTORY_CREATE"
)

// ScanError represents an error that occurred during scan orchestration.
type ScanError struct {
	Code    ErrorCode
	Message string
	Target  string
	UnitID  string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WithUnit attaches the work unit that produced the error.
func (e *ScanError) WithUnit(unitID string) *ScanError {
	e.UnitID = unitID
	return e
}

// WithContext adds context information to the error.
func (e *ScanError) WithContext(key string, value interface{}) *ScanError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewScanErrorWithTarget creates a scan error for a specific target.
func NewScanErrorWithTarget(code ErrorCode, message, target string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
		Context: make(map[string]interface{}),
	}
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// WrapScanErrorWithTarget wraps an error with target information.
func WrapScanErrorWithTarget(code ErrorCode, message, target string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new configuration error.
func NewConfigError(code ErrorCode, message string) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
	}
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Utility functions for common error operations

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error if it has one.
func GetCode(err error) ErrorCode {
	var scanErr *ScanError
	if errors.As(err, &scanErr) {
		return scanErr.Code
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return cfgErr.Code
	}
	return CodeUnknown
}

// IsPerUnit reports whether an error is confined to a single work unit.
// Per-unit errors are recorded into that unit's result and never abort
// the overall scan.
func IsPerUnit(err error) bool {
	switch GetCode(err) {
	case CodeProcessSpawn, CodeTimeout, CodeNonZeroExit, CodeParse:
		return true
	default:
		return false
	}
}

// IsFatal determines if an error should abort a scan before dispatch.
// Only target validation and configuration problems are fatal.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodeValidation, CodeConfiguration:
		return true
	default:
		return false
	}
}

// Common error creation functions

// ErrInvalidTarget creates an error for invalid scan targets.
func ErrInvalidTarget(target string) *ScanError {
	return NewScanErrorWithTarget(CodeValidation, "invalid target specification", target)
}

// ErrEmptyTarget creates an error for empty scan targets.
func ErrEmptyTarget() *ScanError {
	return NewScanError(CodeValidation, "target resolves to zero hosts")
}

// ErrUnitTimeout creates an error for a work unit exceeding its wall-clock budget.
func ErrUnitTimeout(target string) *ScanError {
	return NewScanErrorWithTarget(CodeTimeout, "scan process exceeded time budget", target)
}

// ErrSpawnFailed creates an error for an unlaunchable scan executable.
func ErrSpawnFailed(target string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeProcessSpawn, "failed to start scan process", target, err)
}

// ErrEmptyArtifact creates an error for a missing or empty output artifact.
func ErrEmptyArtifact(path string) *ScanError {
	return NewScanError(CodeParse, "output artifact missing or empty").WithContext("path", path)
}
