package source

import (
	"context"
	"io"
	"time"
)

// Source retrieves device database files for the updater.
type Source interface {
	// Fetch returns the current database file. current is the fingerprint of
	// the payload last published, or empty; when the source still holds that
	// exact file it returns ErrNotModified and no payload.
	Fetch(ctx context.Context, current string) (*Payload, error)
	// String names the source for logs. It must not include credentials.
	String() string
}

// Payload is one retrieved database file. The caller must close Body.
type Payload struct {
	Body io.ReadCloser
	// Fingerprint identifies this version of the file at the source.
	Fingerprint string
	ModTime     time.Time
	// Size is the announced length in bytes, or -1 when unknown.
	Size int64
}
