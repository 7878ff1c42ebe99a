package connector

import (
	"errors"
	"fmt"

	"github.com/redbco/redb-connector/pkg/dbcapabilities"
)

// Standard connector errors
var (
	// ErrOperationNotSupported is returned when an operation is not supported by the database
	ErrOperationNotSupported = errors.New("operation not supported by this database")

	// ErrConnectionClosed is returned when attempting to use a closed connection
	ErrConnectionClosed = errors.New("connection is closed")

	// ErrConnectionFailed is returned when a connection attempt fails
	ErrConnectionFailed = errors.New("connection failed")

	// ErrInvalidConfiguration is returned when the configuration is invalid
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrAdapterNotFound is returned when an adapter is not registered
	ErrAdapterNotFound = errors.New("adapter not found")

	// ErrRecordNotFound is returned when an operation required a record that does not exist
	ErrRecordNotFound = errors.New("record not found")

	// ErrUniqueConstraint is returned when a write violates a unique index
	ErrUniqueConstraint = errors.New("unique constraint violation")

	// ErrTimeout is returned when a backend call timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrTransactionConflict is returned when a transaction lost a write conflict
	ErrTransactionConflict = errors.New("transaction write conflict")

	// ErrContractViolation is matched by every ProgrammingError
	ErrContractViolation = errors.New("connector contract violation")

	// ErrTransactionClosed is returned when a committed or rolled back transaction is used again
	ErrTransactionClosed = errors.New("transaction has already been committed or rolled back")

	// ErrConnectionBorrowed is returned when a connection is used while one of its transactions is alive
	ErrConnectionBorrowed = errors.New("connection is borrowed by an open transaction")

	// ErrConcurrentUse is returned when a second call is issued while another one is in flight
	ErrConcurrentUse = errors.New("session is already in use by another operation")

	// ErrNotImplemented is returned for operations that have no backend mapping at all
	ErrNotImplemented = errors.New("operation is not implemented")
)

// ErrorKind classifies a backend failure so callers can tell transient
// network trouble apart from data errors.
type ErrorKind string

const (
	KindBackend             ErrorKind = "backend"
	KindConnection          ErrorKind = "connection"
	KindTimeout             ErrorKind = "timeout"
	KindCanceled            ErrorKind = "canceled"
	KindRecordNotFound      ErrorKind = "record_not_found"
	KindUniqueConstraint    ErrorKind = "unique_constraint"
	KindTransactionConflict ErrorKind = "transaction_conflict"
)

// DatabaseError wraps database-specific errors with additional context.
// This provides a consistent error structure across all database types.
type DatabaseError struct {
	DatabaseType dbcapabilities.DatabaseID
	Operation    string
	Kind         ErrorKind
	Code         string
	Message      string
	Transient    bool
	Cause        error
	Context      map[string]interface{}
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s (code %s)", msg, e.Code)
	}
	if len(e.Context) > 0 {
		return fmt.Sprintf("[%s] %s: %s: %s (context: %v)", e.DatabaseType, e.Operation, e.Kind, msg, e.Context)
	}
	return fmt.Sprintf("[%s] %s: %s: %s", e.DatabaseType, e.Operation, e.Kind, msg)
}

// Unwrap returns the underlying error.
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error.
func (e *DatabaseError) Is(target error) bool {
	switch e.Kind {
	case KindConnection:
		if target == ErrConnectionFailed {
			return true
		}
	case KindTimeout:
		if target == ErrTimeout {
			return true
		}
	case KindRecordNotFound:
		if target == ErrRecordNotFound {
			return true
		}
	case KindUniqueConstraint:
		if target == ErrUniqueConstraint {
			return true
		}
	case KindTransactionConflict:
		if target == ErrTransactionConflict {
			return true
		}
	}
	return errors.Is(e.Cause, target)
}

// NewDatabaseError creates a new DatabaseError of kind KindBackend.
func NewDatabaseError(dbType dbcapabilities.DatabaseID, operation string, cause error) *DatabaseError {
	return &DatabaseError{
		DatabaseType: dbType,
		Operation:    operation,
		Kind:         KindBackend,
		Cause:        cause,
		Context:      make(map[string]interface{}),
	}
}

// WithContext adds context to a DatabaseError.
func (e *DatabaseError) WithContext(key string, value interface{}) *DatabaseError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// UnsupportedOperationError is returned when an operation is not supported.
type UnsupportedOperationError struct {
	DatabaseType dbcapabilities.DatabaseID
	Operation    string
	Reason       string
}

// Error implements the error interface.
func (e *UnsupportedOperationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s does not support %s: %s", e.DatabaseType, e.Operation, e.Reason)
	}
	return fmt.Sprintf("%s does not support %s", e.DatabaseType, e.Operation)
}

// Is checks if the error is ErrOperationNotSupported.
func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrOperationNotSupported
}

// NewUnsupportedOperationError creates a new UnsupportedOperationError.
func NewUnsupportedOperationError(dbType dbcapabilities.DatabaseID, operation string, reason string) *UnsupportedOperationError {
	return &UnsupportedOperationError{
		DatabaseType: dbType,
		Operation:    operation,
		Reason:       reason,
	}
}

// ProgrammingError reports a caller contract violation: using a finished
// transaction, using a borrowed connection, overlapping calls on one session
// or calling an operation that has no implementation. It is never the result
// of a runtime condition and must not be retried.
type ProgrammingError struct {
	DatabaseType dbcapabilities.DatabaseID
	Operation    string
	Cause        error
}

// Error implements the error interface.
func (e *ProgrammingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.DatabaseType, e.Operation, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ProgrammingError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is ErrContractViolation or matches the cause.
func (e *ProgrammingError) Is(target error) bool {
	return target == ErrContractViolation || errors.Is(e.Cause, target)
}

// NewProgrammingError creates a new ProgrammingError.
func NewProgrammingError(dbType dbcapabilities.DatabaseID, operation string, cause error) *ProgrammingError {
	return &ProgrammingError{
		DatabaseType: dbType,
		Operation:    operation,
		Cause:        cause,
	}
}

// ConnectionError is returned when a connection error occurs.
type ConnectionError struct {
	DatabaseType dbcapabilities.DatabaseID
	Host         string
	Port         int
	Cause        error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s at %s:%d: %v", e.DatabaseType, e.Host, e.Port, e.Cause)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// Is checks if the error is ErrConnectionFailed.
func (e *ConnectionError) Is(target error) bool {
	if target == ErrConnectionFailed {
		return true
	}
	return errors.Is(e.Cause, target)
}

// NewConnectionError creates a new ConnectionError.
func NewConnectionError(dbType dbcapabilities.DatabaseID, host string, port int, cause error) *ConnectionError {
	return &ConnectionError{
		DatabaseType: dbType,
		Host:         host,
		Port:         port,
		Cause:        cause,
	}
}

// ConfigurationError is returned when a configuration error occurs.
type ConfigurationError struct {
	DatabaseType dbcapabilities.DatabaseID
	Field        string
	Reason       string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration for %s: field '%s': %s", e.DatabaseType, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid configuration for %s: %s", e.DatabaseType, e.Reason)
}

// Is checks if the error is ErrInvalidConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(dbType dbcapabilities.DatabaseID, field string, reason string) *ConfigurationError {
	return &ConfigurationError{
		DatabaseType: dbType,
		Field:        field,
		Reason:       reason,
	}
}

// IsConnectorError reports whether err already belongs to the connector
// vocabulary and must be propagated without another layer of wrapping.
func IsConnectorError(err error) bool {
	var dbErr *DatabaseError
	var unsupported *UnsupportedOperationError
	var programming *ProgrammingError
	var connErr *ConnectionError
	var cfgErr *ConfigurationError
	return errors.As(err, &dbErr) ||
		errors.As(err, &unsupported) ||
		errors.As(err, &programming) ||
		errors.As(err, &connErr) ||
		errors.As(err, &cfgErr)
}

// WrapError wraps an error with database context.
// If the error is already a connector error, it returns it as-is.
func WrapError(dbType dbcapabilities.DatabaseID, operation string, err error) error {
	if err == nil {
		return nil
	}

	// Don't double-wrap
	if IsConnectorError(err) {
		return err
	}

	return NewDatabaseError(dbType, operation, err)
}

// IsUnsupported checks if an error indicates an unsupported operation.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrOperationNotSupported)
}

// IsProgrammingError checks if an error is a caller contract violation.
func IsProgrammingError(err error) bool {
	return errors.Is(err, ErrContractViolation)
}

// IsConnectionError checks if an error is a connection error.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}

// IsConfigurationError checks if an error is a configuration error.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}

// IsTransient checks if an error is a backend failure worth retrying by the caller.
func IsTransient(err error) bool {
	var dbErr *DatabaseError
	return errors.As(err, &dbErr) && dbErr.Transient
}

// KindOf returns the kind of a backend failure, or "" when err is not a DatabaseError.
func KindOf(err error) ErrorKind {
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return dbErr.Kind
	}
	return ""
}
