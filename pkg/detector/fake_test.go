package detector_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/devicekit/pkg/backend"
	"github.com/dmitrymomot/devicekit/pkg/detector"
	"github.com/dmitrymomot/devicekit/pkg/source"
)

// fakeLoader hands out in-memory databases that record every use after
// Close, so tests can assert the engine never touches a released handle.
type fakeLoader struct {
	caps []string

	mu  sync.Mutex
	dbs []*fakeDB
	err error
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{caps: append([]string(nil), detector.BaselineCapabilities...)}
}

func (l *fakeLoader) APIVersion() string { return "fake/1.0" }

func (l *fakeLoader) Load(ctx context.Context, path string, _ backend.LoadOptions) (backend.Database, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	db := &fakeDB{
		info: backend.Info{
			APIVersion:  "fake/1.0",
			DataVersion: fmt.Sprintf("v%d", len(l.dbs)+1),
			LoadedAt:    time.Now(),
		},
		caps: l.caps,
	}
	l.dbs = append(l.dbs, db)
	return db, nil
}

func (l *fakeLoader) setErr(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}

func (l *fakeLoader) loaded() []*fakeDB {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeDB(nil), l.dbs...)
}

type fakeDB struct {
	info backend.Info
	caps []string

	closed  atomic.Bool
	results atomic.Int64
	misuse  atomic.Int64
}

func (db *fakeDB) touch() {
	if db.closed.Load() {
		db.misuse.Add(1)
	}
}

func (db *fakeDB) Info() backend.Info               { return db.info }
func (db *fakeDB) ImportantHeaders() []string       { return []string{"User-Agent"} }
func (db *fakeDB) CapabilityNames() []string        { return append([]string(nil), db.caps...) }
func (db *fakeDB) VirtualCapabilityNames() []string { return []string{"is_mobile"} }
func (db *fakeDB) DeviceIDs() []string              { return []string{"generic"} }
func (db *fakeDB) Groups() map[string][]string      { return map[string][]string{} }

func (db *fakeDB) LookupHeaders(h map[string]string) (backend.Result, error) {
	return db.LookupUserAgent(h["User-Agent"])
}

func (db *fakeDB) LookupUserAgent(ua string) (backend.Result, error) {
	db.touch()
	if db.closed.Load() {
		return nil, backend.ErrClosed
	}
	db.results.Add(1)
	return &fakeResult{db: db, id: "fake_" + strings.ToLower(ua), ua: ua}, nil
}

func (db *fakeDB) Device(id string) (backend.Result, error) {
	if id != "generic" {
		return nil, backend.ErrNotFound
	}
	return db.LookupUserAgent("")
}

func (db *fakeDB) DeviceWithHeaders(id string, _ map[string]string) (backend.Result, error) {
	return db.Device(id)
}

func (db *fakeDB) Close() error {
	if db.closed.Swap(true) || db.results.Load() != 0 {
		db.misuse.Add(1)
	}
	return nil
}

type fakeResult struct {
	db *fakeDB
	id string
	ua string
}

func (r *fakeResult) ID() string                   { r.db.touch(); return r.id }
func (r *fakeResult) RootID() string               { return "" }
func (r *fakeResult) IsRoot() bool                 { return false }
func (r *fakeResult) UserAgent() string            { return r.ua }
func (r *fakeResult) OriginalUserAgent() string    { return r.ua }
func (r *fakeResult) NormalizedUserAgent() string  { return strings.ToLower(r.ua) }
func (r *fakeResult) MatchType() backend.MatchType { return backend.MatchTypeConclusive }

func (r *fakeResult) Capability(name string) (string, bool) {
	r.db.touch()
	return r.db.info.DataVersion, true
}

func (r *fakeResult) VirtualCapability(name string) (string, bool) {
	r.db.touch()
	return "true", name == "is_mobile"
}

func (r *fakeResult) Close() error {
	r.db.touch()
	r.db.results.Add(-1)
	return nil
}

// counterSource returns new content on every fetch.
type counterSource struct {
	n atomic.Int64
}

func (s *counterSource) Fetch(ctx context.Context, current string) (*source.Payload, error) {
	n := s.n.Add(1)
	body := fmt.Sprintf("payload %d", n)
	return &source.Payload{
		Body:        io.NopCloser(strings.NewReader(body)),
		Fingerprint: fmt.Sprintf("n:%d", n),
		Size:        int64(len(body)),
	}, nil
}

func (s *counterSource) String() string { return "counter://test" }

// sourceFunc adapts a function to source.Source.
type sourceFunc func(ctx context.Context, current string) (*source.Payload, error)

func (f sourceFunc) Fetch(ctx context.Context, current string) (*source.Payload, error) {
	return f(ctx, current)
}

func (sourceFunc) String() string { return "func://test" }
