package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist (or belongs to another owner).
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when input fails business rule validation
// (e.g. a place with an empty name, a password that is too short).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrParse is returned when an import payload is not a JSON array.
// The whole import is rejected and the collection is left unchanged.
var ErrParse = errors.New("parse error")

// ErrRemote marks a failed call to the remote row store or the auth backend.
// It is reported to the user and never retried automatically.
var ErrRemote = errors.New("remote call failed")

// ErrAuth is returned for invalid credentials, expired or malformed tokens,
// and calls that require a signed-in user without one.
// Handlers should map this to HTTP 401.
var ErrAuth = errors.New("authentication failed")

// ErrConflict is returned when signing up with an already-registered email.
// Handlers should map this to HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrBusy is returned when a mutation targets a place that already has a
// mutation in flight.
var ErrBusy = errors.New("mutation already in flight")
