package models

import (
	"errors"
	"fmt"
)

// ErrMalformedMessage marks an event with no extractable text.
var ErrMalformedMessage = errors.New("message has no text or caption")

// TransientDependencyError wraps a failed collaborator call.
type TransientDependencyError struct {
	Dependency string
	Err        error
}

func (e *TransientDependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Dependency, e.Err)
}

func (e *TransientDependencyError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a TransientDependencyError. Nil stays nil.
func Transient(dependency string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientDependencyError{Dependency: dependency, Err: err}
}

// IsTransient reports whether err came from a collaborator.
func IsTransient(err error) bool {
	var te *TransientDependencyError
	return errors.As(err, &te)
}

// ConfigurationError reports an unusable team configuration.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}
