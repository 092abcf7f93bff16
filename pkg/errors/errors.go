package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType categorizes domain errors
type ErrorType string

const (
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeConflict           ErrorType = "conflict"
	ErrorTypeProcess            ErrorType = "process"
	ErrorTypeExecutableNotFound ErrorType = "executable_not_found"
	ErrorTypeTermination        ErrorType = "termination"
	ErrorTypeIO                 ErrorType = "io"
	ErrorTypeNetwork            ErrorType = "network"
	ErrorTypeTimeout            ErrorType = "timeout"
	ErrorTypeCancelled          ErrorType = "cancelled"
	ErrorTypeInternal           ErrorType = "internal"
)

// DomainError is the error type returned by all packages of this module
type DomainError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *DomainError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Type))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches on error type so that sentinel-style comparisons work:
// errors.Is(err, &DomainError{Type: ErrorTypeNotFound})
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Message == "" || t.Message == e.Message)
}

// WithContext attaches a key/value pair for diagnostics and returns the same error
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func newError(errorType ErrorType, message string, cause error) *DomainError {
	return &DomainError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

func NewValidationError(message string, cause error) *DomainError {
	return newError(ErrorTypeValidation, message, cause)
}

func NewNotFoundError(message string, cause error) *DomainError {
	return newError(ErrorTypeNotFound, message, cause)
}

func NewConflictError(message string, cause error) *DomainError {
	return newError(ErrorTypeConflict, message, cause)
}

func NewProcessError(message string, cause error) *DomainError {
	return newError(ErrorTypeProcess, message, cause)
}

func NewExecutableNotFoundError(message string, cause error) *DomainError {
	return newError(ErrorTypeExecutableNotFound, message, cause)
}

func NewTerminationError(message string, cause error) *DomainError {
	return newError(ErrorTypeTermination, message, cause)
}

func NewIOError(message string, cause error) *DomainError {
	return newError(ErrorTypeIO, message, cause)
}

func NewNetworkError(message string, cause error) *DomainError {
	return newError(ErrorTypeNetwork, message, cause)
}

func NewTimeoutError(message string, cause error) *DomainError {
	return newError(ErrorTypeTimeout, message, cause)
}

func NewCancelledError(message string, cause error) *DomainError {
	return newError(ErrorTypeCancelled, message, cause)
}

func NewInternalError(message string, cause error) *DomainError {
	return newError(ErrorTypeInternal, message, cause)
}

// Is and As forward to the standard library so callers need a single errors import
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// TypeOf returns the type of the outermost DomainError in the chain, or "" if there is none
func TypeOf(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

func isType(err error, errorType ErrorType) bool {
	return TypeOf(err) == errorType
}

func IsValidationError(err error) bool         { return isType(err, ErrorTypeValidation) }
func IsNotFoundError(err error) bool           { return isType(err, ErrorTypeNotFound) }
func IsConflictError(err error) bool           { return isType(err, ErrorTypeConflict) }
func IsProcessError(err error) bool            { return isType(err, ErrorTypeProcess) }
func IsExecutableNotFoundError(err error) bool { return isType(err, ErrorTypeExecutableNotFound) }
func IsTerminationError(err error) bool        { return isType(err, ErrorTypeTermination) }
func IsIOError(err error) bool                 { return isType(err, ErrorTypeIO) }
func IsNetworkError(err error) bool            { return isType(err, ErrorTypeNetwork) }
func IsTimeoutError(err error) bool            { return isType(err, ErrorTypeTimeout) }
func IsCancelledError(err error) bool          { return isType(err, ErrorTypeCancelled) }
func IsInternalError(err error) bool           { return isType(err, ErrorTypeInternal) }

// ErrorCollection gathers errors from bulk operations that must not abort on the first failure
type ErrorCollection struct {
	Errors []error
}

func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{}
}

func (ec *ErrorCollection) Add(err error) {
	if err != nil {
		ec.Errors = append(ec.Errors, err)
	}
}

func (ec *ErrorCollection) HasErrors() bool {
	return len(ec.Errors) > 0
}

// ToError returns nil for an empty collection, the single error for one, and a joined error otherwise
func (ec *ErrorCollection) ToError() error {
	switch len(ec.Errors) {
	case 0:
		return nil
	case 1:
		return ec.Errors[0]
	default:
		return &multiError{errs: ec.Errors}
	}
}

type multiError struct {
	errs []error
}

func (m *multiError) Error() string {
	parts := make([]string, 0, len(m.errs))
	for _, err := range m.errs {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("%d errors occurred: %s", len(m.errs), strings.Join(parts, "; "))
}

func (m *multiError) Unwrap() []error {
	return m.errs
}
