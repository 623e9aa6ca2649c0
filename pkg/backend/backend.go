package backend

import (
	"context"
	"time"
)

// Loader constructs databases from a root data file.
type Loader interface {
	// Load reads the database at path. Implementations must not retain path
	// after returning: the updater may rename a different file over it.
	Load(ctx context.Context, path string, opts LoadOptions) (Database, error)
	// APIVersion identifies the engine build, independent of any data file.
	APIVersion() string
}

// LoadOptions tunes how a database is loaded.
type LoadOptions struct {
	// Patches are applied in order on top of the root file.
	Patches []string
	// Capabilities restricts the loaded capability set. Empty means all.
	Capabilities []string
}

// Info describes one loaded database.
type Info struct {
	APIVersion  string
	DataVersion string
	Description string
	Format      int
	LoadedAt    time.Time
}

// Database is one loaded device database. Lookups are safe for concurrent use.
type Database interface {
	Info() Info
	// ImportantHeaders lists the request headers that carry detection signal.
	ImportantHeaders() []string
	CapabilityNames() []string
	VirtualCapabilityNames() []string
	DeviceIDs() []string
	// Groups maps a capability group name to its capability names.
	Groups() map[string][]string

	LookupUserAgent(ua string) (Result, error)
	LookupHeaders(headers map[string]string) (Result, error)
	Device(id string) (Result, error)
	DeviceWithHeaders(id string, headers map[string]string) (Result, error)

	// Close frees the database. Results obtained from it must be closed first.
	Close() error
}

// Result is the outcome of one lookup. It may reference memory owned by the
// Database it came from.
type Result interface {
	ID() string
	RootID() string
	IsRoot() bool
	UserAgent() string
	OriginalUserAgent() string
	NormalizedUserAgent() string
	MatchType() MatchType
	Capability(name string) (string, bool)
	VirtualCapability(name string) (string, bool)
	Close() error
}
