package types

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a payload that failed shape, enum or
	// required-field checks before any store write.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an id with no matching document in the store.
	ErrNotFound = errors.New("client not found")

	// ErrStore marks an underlying store call failure (network,
	// permission, throttling). Callers retry; this layer does not.
	ErrStore = errors.New("store access failed")
)

// Err joins a sentinel with an inner error and an optional message, so both
// errors.Is(err, sentinel) and the wrapped cause survive.
func Err(sentinel error, inner error, msgTemplate string, args ...any) error {
	if msgTemplate == "" {
		return errors.Join(sentinel, inner)
	}
	return errors.Join(sentinel, inner, fmt.Errorf(msgTemplate, args...))
}
