package hierarchy

import (
	"errors"
	"fmt"
)

// Errors.
var (
	// ErrProviderFailed wraps every error or panic raised by a provider.
	ErrProviderFailed = errors.New("hierarchy: provider failed")
	// ErrUnknownProvider is returned by Restore when a snapshot names a
	// provider that is not registered.
	ErrUnknownProvider = errors.New("hierarchy: unknown provider")
	// ErrNoRoots is returned when constructing a model without root items.
	ErrNoRoots = errors.New("hierarchy: model has no roots")
)

// ProviderError describes a failed provider call.
type ProviderError struct {
	ProviderID string
	Op         string // "prepare", "supertypes" or "subtypes"
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("hierarchy: provider %s %s: %v", e.ProviderID, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is makes every ProviderError match ErrProviderFailed.
func (e *ProviderError) Is(target error) bool { return target == ErrProviderFailed }

// PanicError carries a value recovered from a panicking provider.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
