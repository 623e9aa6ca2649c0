package detector

import (
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/dmitrymomot/devicekit/pkg/backend"
	"github.com/dmitrymomot/devicekit/pkg/logger"
	"github.com/dmitrymomot/devicekit/pkg/native"
)

// BaselineCapabilities must be present in every database the engine
// publishes. A database without them fails to load or validate.
var BaselineCapabilities = []string{
	"brand_name",
	"model_name",
	"device_os",
	"is_wireless_device",
	"is_tablet",
	"pointing_method",
	"resolution_width",
	"resolution_height",
}

// snapshot is one loaded database plus everything derived from it. It is
// immutable except for its reference count and cache. The engine holds one
// reference while the snapshot is current; every Device holds another. The
// native database is released when the count drops to zero.
type snapshot struct {
	id     string
	db     *native.Handle[backend.Database]
	info   backend.Info
	digest string

	capNames    []string
	capSet      map[string]struct{}
	vcapNames   []string
	vcapSet     map[string]struct{}
	headers     []string
	headerIndex map[string]string // lower-case name -> canonical name
	groups      map[string][]string

	cache *lru[string, *deviceData] // nil when caching is disabled

	refs   atomic.Int64
	logger *slog.Logger
}

func newSnapshot(id string, db backend.Database, digest string, cacheSize int, log *slog.Logger) *snapshot {
	s := &snapshot{
		id:          id,
		db:          native.New(db, backend.Database.Close),
		info:        db.Info(),
		digest:      digest,
		capNames:    db.CapabilityNames(),
		vcapNames:   db.VirtualCapabilityNames(),
		headers:     db.ImportantHeaders(),
		groups:      db.Groups(),
		headerIndex: make(map[string]string),
		logger:      log.With(logger.SnapshotID(id)),
	}
	sort.Strings(s.capNames)
	sort.Strings(s.vcapNames)
	s.capSet = toSet(s.capNames)
	s.vcapSet = toSet(s.vcapNames)
	for _, h := range s.headers {
		s.headerIndex[strings.ToLower(h)] = h
	}
	if cacheSize > 0 {
		s.cache = newLRU[string, *deviceData](cacheSize)
	}
	s.refs.Store(1)
	return s
}

// acquire takes a reference unless the snapshot is already retired.
func (s *snapshot) acquire() bool {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release drops a reference and frees the database with the last one.
func (s *snapshot) release() {
	n := s.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		panic("detector: snapshot released more often than acquired")
	}

	if s.cache != nil {
		s.cache.clear()
	}
	if err := s.db.Release(); err != nil {
		s.logger.Error("failed to close device database", logger.Error(err))
		return
	}
	s.logger.Debug("snapshot released")
}

// pickHeaders keeps the important headers, keyed by canonical name.
func (s *snapshot) pickHeaders(headers map[string]string) map[string]string {
	picked := make(map[string]string, len(s.headers))
	for k, v := range headers {
		if v == "" {
			continue
		}
		if name, ok := s.headerIndex[strings.ToLower(k)]; ok {
			picked[name] = v
		}
	}
	return picked
}

// extract copies everything a Device exposes out of a backend result.
func (s *snapshot) extract(res backend.Result) *deviceData {
	d := &deviceData{
		id:           res.ID(),
		rootID:       res.RootID(),
		isRoot:       res.IsRoot(),
		userAgent:    res.UserAgent(),
		originalUA:   res.OriginalUserAgent(),
		normalizedUA: res.NormalizedUserAgent(),
		matchType:    res.MatchType(),
		caps:         make(map[string]string, len(s.capNames)),
		vcaps:        make(map[string]string, len(s.vcapNames)),
	}
	for _, name := range s.capNames {
		if v, ok := res.Capability(name); ok {
			d.caps[name] = v
		}
	}
	for _, name := range s.vcapNames {
		if v, ok := res.VirtualCapability(name); ok {
			d.vcaps[name] = v
		}
	}
	return d
}

func (s *snapshot) missingBaseline() []string {
	var missing []string
	for _, name := range BaselineCapabilities {
		if _, ok := s.capSet[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// headerKey builds a cache key from picked headers, independent of map order.
func headerKey(picked map[string]string) string {
	names := make([]string, 0, len(picked))
	for k := range picked {
		names = append(names, k)
	}
	slices.Sort(names)

	var b strings.Builder
	b.WriteString("h")
	for _, k := range names {
		b.WriteByte(0)
		b.WriteString(k)
		b.WriteByte(0)
		b.WriteString(picked[k])
	}
	return b.String()
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
