package service

import (
	"errors"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// InputError carries a caller-facing message and matches ErrInvalidInput.
type InputError struct {
	cause error
}

func invalidInput(cause error) error {
	return &InputError{cause: cause}
}

func (e *InputError) Error() string { return e.cause.Error() }

func (e *InputError) Unwrap() error { return e.cause }

func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }
