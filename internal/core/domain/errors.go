package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks out-of-range coordinates or malformed timestamps.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when an id is already live.
	ErrDuplicate = errors.New("duplicate id")
)

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}
