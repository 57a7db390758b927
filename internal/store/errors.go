package store

import "errors"

// ErrUnavailable is matched by every *UnavailableError.
var ErrUnavailable = errors.New("store unavailable")

// UnavailableError wraps a failure of the storage engine itself (locked,
// closed, I/O). Callers report it as a transient condition.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

func unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}
