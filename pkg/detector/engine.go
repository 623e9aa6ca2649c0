package detector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/devicekit/pkg/backend"
	"github.com/dmitrymomot/devicekit/pkg/devicedb"
	"github.com/dmitrymomot/devicekit/pkg/logger"
	"github.com/dmitrymomot/devicekit/pkg/native"
)

// Info describes the loaded database.
type Info = backend.Info

// Engine answers device lookups against the current snapshot of a device
// database and owns the updater that replaces it.
//
// Lookups never block on updates: a lookup pins whatever snapshot is current
// when it starts, and a swap only changes which snapshot later lookups see.
// An Engine is safe for concurrent use.
type Engine struct {
	opts     *options
	rootPath string
	logger   *slog.Logger

	current atomic.Pointer[snapshot]
	closed  atomic.Bool
	once    sync.Once

	updater     *Updater
	ownedSource io.Closer
}

// New loads the database at rootPath and returns a ready engine. It fails
// with ErrLoadFailed or ErrVersionMismatch.
func New(ctx context.Context, rootPath string, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if l, ok := o.loader.(devicedb.Loader); ok && l.Now == nil {
		l.Now = o.now
		o.loader = l
	}
	if rootPath == "" {
		return nil, fmt.Errorf("%w: empty root path", ErrLoadFailed)
	}

	e := &Engine{
		opts:     o,
		rootPath: rootPath,
		logger:   o.logger.With(logger.Component("detector")),
	}

	start := o.now()
	s, err := e.load(ctx, rootPath, "")
	if err != nil {
		return nil, err
	}
	e.current.Store(s)
	e.updater = newUpdater(e)

	e.logger.Info("device database loaded",
		logger.SnapshotID(s.id),
		logger.DataVersion(s.info.DataVersion),
		slog.String("api_version", s.info.APIVersion),
		slog.Int("capabilities", len(s.capNames)),
		logger.Duration(o.now().Sub(start)))

	return e, nil
}

// load builds a snapshot from path. digest is the sha256 of the file when
// the caller already knows it.
func (e *Engine) load(ctx context.Context, path, digest string) (*snapshot, error) {
	if digest == "" {
		d, err := fileDigest(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
		}
		digest = d
	}

	lo := backend.LoadOptions{Patches: slices.Clone(e.opts.patches)}
	if len(e.opts.capabilities) > 0 {
		lo.Capabilities = append(slices.Clone(e.opts.capabilities), BaselineCapabilities...)
	}

	db, err := e.opts.loader.Load(ctx, path, lo)
	if err != nil {
		if errors.Is(err, backend.ErrIncompatible) {
			return nil, fmt.Errorf("%w: %w", ErrVersionMismatch, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	s := newSnapshot(uuid.NewString(), db, digest, e.opts.cacheSize, e.logger)
	if missing := s.missingBaseline(); len(missing) > 0 {
		s.release()
		return nil, fmt.Errorf("%w: missing capabilities %v", ErrLoadFailed, missing)
	}
	return s, nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// acquire pins the current snapshot.
func (e *Engine) acquire() (*snapshot, error) {
	for {
		if e.closed.Load() {
			return nil, ErrEngineClosed
		}
		s := e.current.Load()
		if s == nil {
			return nil, ErrEngineClosed
		}
		if s.acquire() {
			return s, nil
		}
		// s was retired after Load; its replacement is already published.
	}
}

// resolve runs fn against the pinned snapshot s and hands the reference to
// the returned Device. On failure the reference is dropped.
func (e *Engine) resolve(s *snapshot, cacheKey string, fn func(backend.Database) (backend.Result, error)) (*Device, error) {
	handedOff := false
	defer func() {
		if !handedOff {
			s.release()
		}
	}()

	if cacheKey != "" && s.cache != nil {
		if data, ok := s.cache.get(cacheKey); ok {
			handedOff = true
			return newDevice(s, nil, data.asCached()), nil
		}
	}

	db, err := s.db.Get()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	res, err := fn(db)
	if err != nil {
		return nil, translateLookupError(err)
	}

	h := native.New(res, backend.Result.Close)
	data := s.extract(res)
	if cacheKey != "" && s.cache != nil {
		s.cache.put(cacheKey, data)
	}
	handedOff = true
	return newDevice(s, h, data), nil
}

func translateLookupError(err error) error {
	switch {
	case errors.Is(err, backend.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrUnknownDeviceID, err)
	case errors.Is(err, backend.ErrNoHeaders):
		return fmt.Errorf("%w: %w", ErrNoUsableSignal, err)
	default:
		return fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
}

// LookupUserAgent identifies the device behind a user agent string. An
// empty string yields the root device with MatchTypeNone.
func (e *Engine) LookupUserAgent(ua string) (*Device, error) {
	s, err := e.acquire()
	if err != nil {
		return nil, err
	}
	return e.resolve(s, "u\x00"+ua, func(db backend.Database) (backend.Result, error) {
		return db.LookupUserAgent(ua)
	})
}

// LookupHeaders identifies a device from request headers. Only the
// database's important headers count, matched case-insensitively; without
// any of them the lookup fails with ErrNoUsableSignal.
func (e *Engine) LookupHeaders(headers map[string]string) (*Device, error) {
	s, err := e.acquire()
	if err != nil {
		return nil, err
	}
	picked := s.pickHeaders(headers)
	if len(picked) == 0 {
		s.release()
		return nil, ErrNoUsableSignal
	}
	return e.resolve(s, headerKey(picked), func(db backend.Database) (backend.Result, error) {
		return db.LookupHeaders(picked)
	})
}

// LookupDeviceID returns the device with the given id, or ErrUnknownDeviceID.
func (e *Engine) LookupDeviceID(id string) (*Device, error) {
	s, err := e.acquire()
	if err != nil {
		return nil, err
	}
	return e.resolve(s, "", func(db backend.Database) (backend.Result, error) {
		return db.Device(id)
	})
}

// LookupDeviceIDWithHeaders returns the device with the given id, using
// headers only for virtual capabilities. headers may be empty.
func (e *Engine) LookupDeviceIDWithHeaders(id string, headers map[string]string) (*Device, error) {
	s, err := e.acquire()
	if err != nil {
		return nil, err
	}
	picked := s.pickHeaders(headers)
	return e.resolve(s, "", func(db backend.Database) (backend.Result, error) {
		return db.DeviceWithHeaders(id, picked)
	})
}

// with runs fn against the current snapshot; it does nothing once the
// engine is closed.
func (e *Engine) with(fn func(s *snapshot)) {
	s, err := e.acquire()
	if err != nil {
		return
	}
	defer s.release()
	fn(s)
}

// APIVersion reports the backend version, independent of any data file.
func (e *Engine) APIVersion() string { return e.opts.loader.APIVersion() }

// Info describes the current database. Zero after Close.
func (e *Engine) Info() Info {
	var info Info
	e.with(func(s *snapshot) { info = s.info })
	return info
}

// LastLoadTime is when the current database was loaded.
func (e *Engine) LastLoadTime() time.Time { return e.Info().LoadedAt }

// SnapshotID identifies the current database load.
func (e *Engine) SnapshotID() string {
	var id string
	e.with(func(s *snapshot) { id = s.id })
	return id
}

func (e *Engine) CapabilityNames() []string {
	var out []string
	e.with(func(s *snapshot) { out = slices.Clone(s.capNames) })
	return out
}

func (e *Engine) VirtualCapabilityNames() []string {
	var out []string
	e.with(func(s *snapshot) { out = slices.Clone(s.vcapNames) })
	return out
}

func (e *Engine) HasCapability(name string) bool {
	var ok bool
	e.with(func(s *snapshot) { _, ok = s.capSet[name] })
	return ok
}

func (e *Engine) HasVirtualCapability(name string) bool {
	var ok bool
	e.with(func(s *snapshot) { _, ok = s.vcapSet[name] })
	return ok
}

func (e *Engine) ImportantHeaders() []string {
	var out []string
	e.with(func(s *snapshot) { out = slices.Clone(s.headers) })
	return out
}

// Groups maps capability group names to their loaded capabilities.
func (e *Engine) Groups() map[string][]string {
	var out map[string][]string
	e.with(func(s *snapshot) {
		out = make(map[string][]string, len(s.groups))
		for k, v := range s.groups {
			out[k] = slices.Clone(v)
		}
	})
	return out
}

// DeviceIDs lists every device id in the current database.
func (e *Engine) DeviceIDs() []string {
	var out []string
	e.with(func(s *snapshot) {
		if db, err := s.db.Get(); err == nil {
			out = db.DeviceIDs()
		}
	})
	return out
}

// Updater returns the engine's updater.
func (e *Engine) Updater() *Updater { return e.updater }

// Close stops the updater, waits for a running update and drops the
// engine's reference on the current snapshot. Devices still open keep their
// snapshot alive until they are closed. Close is idempotent.
func (e *Engine) Close() error {
	var err error
	e.once.Do(func() {
		e.closed.Store(true)
		e.updater.halt()

		e.updater.runMu.Lock()
		s := e.current.Swap(nil)
		e.updater.runMu.Unlock()
		if s != nil {
			s.release()
		}

		if e.ownedSource != nil {
			err = e.ownedSource.Close()
		}
		e.logger.Info("engine closed")
	})
	return err
}
