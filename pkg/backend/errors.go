package backend

import "errors"

// Error conventions a backend reports. Callers translate them into their own
// error taxonomy with errors.Is.
var (
	ErrNotFound     = errors.New("backend: device not found")
	ErrNoHeaders    = errors.New("backend: no important header present")
	ErrIncompatible = errors.New("backend: database format incompatible with engine")
	ErrCorrupt      = errors.New("backend: database is corrupt")
	ErrClosed       = errors.New("backend: handle is closed")
)
