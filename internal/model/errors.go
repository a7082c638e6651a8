package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrTornDown is returned when an operation is invoked on a session
	// whose teardown has already been requested.
	ErrTornDown = errors.New("session torn down")
	// ErrSetupInProgress is returned when a setup run is requested while
	// another one is already running for the same session.
	ErrSetupInProgress = errors.New("setup already in progress")
)
