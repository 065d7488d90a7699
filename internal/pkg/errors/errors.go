package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalid            = errors.New("invalid")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal")

	// ErrInvalidToken covers every token verification failure. It is a
	// kind of ErrUnauthenticated.
	ErrInvalidToken = fmt.Errorf("invalid or expired token: %w", ErrUnauthenticated)
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// Invalid wraps ErrInvalid with a message that is safe to show to clients.
func Invalid(msg string) error {
	return &invalidErr{msg: msg}
}

type invalidErr struct {
	msg string
}

func (e *invalidErr) Error() string {
	return e.msg
}

func (e *invalidErr) Unwrap() error {
	return ErrInvalid
}
