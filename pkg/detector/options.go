package detector

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/devicekit/pkg/backend"
	"github.com/dmitrymomot/devicekit/pkg/devicedb"
	"github.com/dmitrymomot/devicekit/pkg/source"
)

const (
	// Daily and Weekly match the publishing cadence of device data feeds.
	Daily  = 24 * time.Hour
	Weekly = 7 * Daily

	// DefaultFetchTimeout bounds one whole update run.
	DefaultFetchTimeout = 10 * time.Minute
	// DefaultMaxDownloadSize caps a downloaded database file.
	DefaultMaxDownloadSize int64 = 512 << 20
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	loader          backend.Loader
	patches         []string
	capabilities    []string
	cacheSize       int
	logger          *slog.Logger
	source          source.Source
	interval        time.Duration
	fetchTimeout    time.Duration
	maxDownloadSize int64
	now             func() time.Time
}

func defaultOptions() *options {
	return &options{
		loader:          devicedb.Loader{},
		logger:          slog.Default(),
		fetchTimeout:    DefaultFetchTimeout,
		maxDownloadSize: DefaultMaxDownloadSize,
		now:             time.Now,
	}
}

// WithLoader selects the backend. The default is the devicedb loader.
func WithLoader(l backend.Loader) Option {
	return func(o *options) {
		if l != nil {
			o.loader = l
		}
	}
}

// WithPatches applies patch files, in order, on every load.
func WithPatches(paths ...string) Option {
	return func(o *options) {
		o.patches = append(o.patches, paths...)
	}
}

// WithCapabilities restricts the loaded capabilities. The baseline set is
// always requested as well.
func WithCapabilities(names ...string) Option {
	return func(o *options) {
		o.capabilities = append(o.capabilities, names...)
	}
}

// WithCacheSize enables a per-snapshot LRU of lookup results. Zero disables
// it.
func WithCacheSize(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.cacheSize = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSource sets where the updater fetches new databases from.
func WithSource(s source.Source) Option {
	return func(o *options) {
		o.source = s
	}
}

// WithUpdateInterval sets the interval Start uses when given none.
func WithUpdateInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithFetchTimeout bounds one update run from fetch to publish.
func WithFetchTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fetchTimeout = d
		}
	}
}

func WithMaxDownloadSize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDownloadSize = n
		}
	}
}

// WithClock overrides time.Now for update timestamps, and for load
// timestamps when the default devicedb loader is used.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
