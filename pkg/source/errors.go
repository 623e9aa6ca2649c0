package source

import "errors"

var (
	ErrNotModified     = errors.New("source: database not modified")
	ErrUnreachable     = errors.New("source: unreachable")
	ErrNotFound        = errors.New("source: database not found")
	ErrAccessDenied    = errors.New("source: access denied")
	ErrInvalidLocation = errors.New("source: invalid location")
	ErrInvalidConfig   = errors.New("source: invalid configuration")
)
