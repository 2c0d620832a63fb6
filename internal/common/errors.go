package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Pipeline error taxonomy. Document-level kinds (acquisition, decode, oracle)
// are absorbed by the processor; persistence errors reach the caller.
var (
	ErrAcquisition = errors.New("acquisition failed")
	ErrDecode      = errors.New("decode failed")
	ErrOracle      = errors.New("oracle failed")
	ErrPersistence = errors.New("persistence failed")
)

const (
	CodeAcquisition = "ACQUISITION_ERROR"
	CodeDecode      = "DECODE_ERROR"
	CodeOracle      = "ORACLE_ERROR"
	CodePersistence = "PERSISTENCE_ERROR"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// AcquisitionError reports a fetch failure; errors.Is(err, ErrAcquisition) holds.
func AcquisitionError(message string, cause error) error {
	return NewAppError(CodeAcquisition, message, joinCause(ErrAcquisition, cause))
}

// DecodeError reports bytes that could not be turned into usable text.
func DecodeError(message string, cause error) error {
	return NewAppError(CodeDecode, message, joinCause(ErrDecode, cause))
}

// OracleError reports a failed or unusable extraction service call.
func OracleError(message string, cause error) error {
	return NewAppError(CodeOracle, message, joinCause(ErrOracle, cause))
}

// PersistenceError reports a store write failure.
func PersistenceError(message string, cause error) error {
	return NewAppError(CodePersistence, message, joinCause(ErrPersistence, cause))
}

func joinCause(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return errors.Join(kind, cause)
}

// ErrorCode returns the AppError code found in err's chain, or "".
func ErrorCode(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
