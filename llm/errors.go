package llm

import "fmt"

// ErrServiceNotFound is returned when Call targets an unregistered provider.
type ErrServiceNotFound struct {
	Service string
}

func (e *ErrServiceNotFound) Error() string {
	return fmt.Sprintf("llm: provider not registered: %s", e.Service)
}

// ErrPanic wraps a recovered panic value as an error.
type ErrPanic struct {
	Value any
}

func (e *ErrPanic) Error() string {
	return fmt.Sprintf("llm: provider panicked: %v", e.Value)
}

// Error is a provider or transport failure. Callers fall back to a
// deterministic path when they see one.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm: %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
