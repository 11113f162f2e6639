package schema

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedEngine = errors.New("unsupported database engine")
	ErrInvalidURL        = errors.New("invalid database URL")
)

// ConnectionError reports that the database could not be reached or could
// not execute a catalog query. It is never retried.
type ConnectionError struct {
	Engine Engine
	Op     string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s connection error: %v", e.Engine, e.Err)
	}
	return fmt.Sprintf("%s connection error during %s: %v", e.Engine, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TableNotFoundError reports a table missing from the catalog
type TableNotFoundError struct {
	Engine Engine
	Table  string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %s not found in %s catalog", e.Table, e.Engine)
}

// IntrospectionError wraps any failure while building one Table. Table is
// empty when the failure was not tied to a specific table (cancellation).
type IntrospectionError struct {
	Table string
	Err   error
}

func (e *IntrospectionError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("introspection failed: %v", e.Err)
	}
	return fmt.Sprintf("failed to introspect table %s: %v", e.Table, e.Err)
}

func (e *IntrospectionError) Unwrap() error { return e.Err }

// UnsupportedFeatureError reports a catalog capability the engine lacks.
// It is never fatal: the corresponding field stays empty.
type UnsupportedFeatureError struct {
	Engine  Engine
	Feature string
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("%s does not support %s introspection", e.Engine, e.Feature)
}

// IsUnsupported reports whether err is, or wraps, an UnsupportedFeatureError
func IsUnsupported(err error) bool {
	var target *UnsupportedFeatureError
	return errors.As(err, &target)
}

// IsTableNotFound reports whether err is, or wraps, a TableNotFoundError
func IsTableNotFound(err error) bool {
	var target *TableNotFoundError
	return errors.As(err, &target)
}
