package devicedb

import "errors"

// ErrUnknownCapability is returned by Load when the capability filter names
// a capability the database does not declare.
var ErrUnknownCapability = errors.New("devicedb: unknown capability in filter")
