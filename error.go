package bankapp

import (
	"errors"
	"fmt"
)

var (
	ErrInternalServer = errors.New("internal server error")

	// ErrAuth deliberately does not say which of email/password was wrong.
	ErrAuth = errors.New("invalid email or password")

	// ErrAuthRequired means the request carried no usable session.
	ErrAuthRequired = errors.New("not logged in")

	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUnavailable is returned when the store is unreachable, the circuit
	// is open, or the service is shedding load.
	ErrUnavailable = errors.New("service unavailable")
)

type ErrBadRequest struct {
	Fields map[string]string `json:"fields"`
}

func (e ErrBadRequest) Error() string {
	return fmt.Sprintf("missing/invalid params: %v", e.Fields)
}

type ErrNotFound struct {
	ID int64 `json:"id"`
}

func (e ErrNotFound) Error() string {
	return "record not found"
}

// ErrConflict means an account with the same email already exists, whether
// caught by the pre-insert lookup or by the store's unique index.
type ErrConflict struct {
	Email string `json:"email"`
}

func (e ErrConflict) Error() string {
	return "email already exists"
}

// isBusinessErr reports whether err is an expected, recoverable outcome of a
// well-formed request. Anything else counts against the circuit breaker.
func isBusinessErr(err error) bool {
	if errors.Is(err, ErrAuth) ||
		errors.Is(err, ErrAuthRequired) ||
		errors.Is(err, ErrInsufficientFunds) {
		return true
	}
	var (
		ebr ErrBadRequest
		enf ErrNotFound
		ecf ErrConflict
	)
	return errors.As(err, &ebr) || errors.As(err, &enf) || errors.As(err, &ecf)
}
