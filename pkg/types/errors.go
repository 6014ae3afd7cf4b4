package types

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeExists is returned when a type name is registered twice.
	ErrTypeExists = errors.New("type already registered")

	// ErrUnknownType is returned when a type name cannot be resolved.
	ErrUnknownType = errors.New("unknown type")

	// ErrConversion is matched by every *ConversionError.
	ErrConversion = errors.New("conversion failed")

	// ErrTypeMismatch is returned when a value does not conform to a descriptor.
	ErrTypeMismatch = errors.New("value does not match type")
)

// ConversionError reports a conversion that has no registered function or whose
// function broke the totality contract.
type ConversionError struct {
	From   string
	To     string
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s to %s: %s", e.From, e.To, e.Reason)
}

// Is makes errors.Is(err, ErrConversion) true for any ConversionError.
func (e *ConversionError) Is(target error) bool {
	return target == ErrConversion
}

// MismatchError describes a value rejected by a descriptor check.
type MismatchError struct {
	Type   string
	Reason string
	Value  any
}

func (e *MismatchError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("type %q: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("type %q: %s (got %T)", e.Type, e.Reason, e.Value)
}

func (e *MismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}
