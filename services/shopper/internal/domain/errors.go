package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork covers transport failures and non-2xx responses.
	ErrNetwork = errors.New("network error")
	// ErrMalformedResponse covers bodies that do not parse or lack required fields.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrServerRejected is returned when the server answers with an explicit
	// failure flag.
	ErrServerRejected = errors.New("server rejected request")
	// ErrTotalMismatch is returned by Verify when the server total differs
	// from the local one.
	ErrTotalMismatch = errors.New("total mismatch")
	ErrUnknownStore  = errors.New("unknown store")
	ErrInvalidPrice  = errors.New("invalid price")
	ErrInvalidName   = errors.New("invalid item name")
)

// ServerRejectedError carries the message the server gave for a rejection.
type ServerRejectedError struct {
	Message string
}

func (e *ServerRejectedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrServerRejected, e.Message)
}

func (e *ServerRejectedError) Unwrap() error {
	return ErrServerRejected
}

// TotalMismatchError reports both sides of a diverged total.
type TotalMismatchError struct {
	Store  Store
	Local  string
	Remote string
}

func (e *TotalMismatchError) Error() string {
	return fmt.Sprintf("%s for %s: local %s, server %s", ErrTotalMismatch, e.Store, e.Local, e.Remote)
}

func (e *TotalMismatchError) Unwrap() error {
	return ErrTotalMismatch
}
