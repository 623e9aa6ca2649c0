package native

import "errors"

var (
	ErrReleased  = errors.New("native: handle already released")
	ErrNilHandle = errors.New("native: nil handle")
)
