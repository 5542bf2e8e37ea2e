package domain

import "errors"

var (
	// ErrDuplicateEmail is the only precondition the registry enforces with
	// an error; every other miss is reported as a nil/false return.
	ErrDuplicateEmail = errors.New("account email already registered")
)
