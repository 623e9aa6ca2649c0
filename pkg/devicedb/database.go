package devicedb

import (
	"slices"
	"strings"
	"sync/atomic"

	"github.com/dmitrymomot/devicekit/pkg/backend"
)

type device struct {
	id           string
	rootID       string
	isRoot       bool
	userAgent    string
	normalizedUA string
	tokens       []string
	weight       int
	caps         map[string]string
}

func (d *device) matches(normalizedUA string) bool {
	for _, tok := range d.tokens {
		if !strings.Contains(normalizedUA, tok) {
			return false
		}
	}
	return true
}

// database is immutable after build; only the closed flag changes.
type database struct {
	info        backend.Info
	headers     []string
	headerIndex map[string]string // lower-case name -> canonical name
	capNames    []string
	devices     map[string]*device
	ids         []string
	matchers    []*device // heaviest token set first
	groups      map[string][]string
	closed      atomic.Bool
}

var _ backend.Database = (*database)(nil)

func (db *database) Info() backend.Info { return db.info }

func (db *database) ImportantHeaders() []string { return slices.Clone(db.headers) }

func (db *database) CapabilityNames() []string { return slices.Clone(db.capNames) }

func (db *database) VirtualCapabilityNames() []string { return slices.Clone(virtualCapabilityNames) }

func (db *database) DeviceIDs() []string { return slices.Clone(db.ids) }

func (db *database) Groups() map[string][]string {
	out := make(map[string][]string, len(db.groups))
	for k, v := range db.groups {
		out[k] = slices.Clone(v)
	}
	return out
}

func (db *database) LookupUserAgent(ua string) (backend.Result, error) {
	if db.closed.Load() {
		return nil, backend.ErrClosed
	}
	return db.match(ua, nil), nil
}

func (db *database) LookupHeaders(headers map[string]string) (backend.Result, error) {
	if db.closed.Load() {
		return nil, backend.ErrClosed
	}
	picked := db.pickHeaders(headers)
	if len(picked) == 0 {
		return nil, backend.ErrNoHeaders
	}
	return db.match(effectiveUserAgent(picked), picked), nil
}

func (db *database) Device(id string) (backend.Result, error) {
	if db.closed.Load() {
		return nil, backend.ErrClosed
	}
	d, ok := db.devices[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return db.newResult(d, d.userAgent, backend.MatchTypeNone, nil), nil
}

func (db *database) DeviceWithHeaders(id string, headers map[string]string) (backend.Result, error) {
	if db.closed.Load() {
		return nil, backend.ErrClosed
	}
	d, ok := db.devices[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	picked := db.pickHeaders(headers)
	ua := effectiveUserAgent(picked)
	if ua == "" {
		ua = d.userAgent
	}
	return db.newResult(d, ua, backend.MatchTypeNone, picked), nil
}

func (db *database) Close() error {
	db.closed.Store(true)
	return nil
}

// pickHeaders keeps the important headers, keyed by their canonical name.
func (db *database) pickHeaders(headers map[string]string) map[string]string {
	picked := make(map[string]string, len(headers))
	for k, v := range headers {
		if name, ok := db.headerIndex[strings.ToLower(k)]; ok && v != "" {
			picked[name] = v
		}
	}
	return picked
}

// uaHeaders are consulted in order; the stock UA of a proxying browser
// describes the device better than the browser's own User-Agent.
var uaHeaders = []string{"Device-Stock-UA", "X-UCBrowser-Device-UA", "X-OperaMini-Phone-UA", "User-Agent"}

func effectiveUserAgent(headers map[string]string) string {
	for _, name := range uaHeaders {
		if v := lookupFold(headers, name); v != "" {
			return v
		}
	}
	return ""
}

func lookupFold(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// match resolves ua against the device tree: token match first, then a
// generic device picked from the form factor, then the root.
func (db *database) match(ua string, headers map[string]string) *result {
	norm := normalize(ua)
	if norm == "" {
		return db.newResult(db.devices[RootID], ua, backend.MatchTypeNone, headers)
	}

	for _, d := range db.matchers {
		if !d.matches(norm) {
			continue
		}
		mt := backend.MatchTypeConclusive
		if d.normalizedUA != "" && d.normalizedUA == norm {
			mt = backend.MatchTypeExact
		}
		return db.newResult(d, ua, mt, headers)
	}

	sig := classify(norm)
	for _, id := range recoveryIDs[sig.formFactor] {
		if d, ok := db.devices[id]; ok {
			return db.newResult(d, ua, backend.MatchTypeRecovery, headers)
		}
	}
	return db.newResult(db.devices[RootID], ua, backend.MatchTypeCatchall, headers)
}

func (db *database) newResult(d *device, ua string, mt backend.MatchType, headers map[string]string) *result {
	return &result{
		db:         db,
		dev:        d,
		original:   ua,
		normalized: normalize(ua),
		matchType:  mt,
		vcaps:      virtualCapabilities(d.caps, ua, headers),
	}
}

// recoveryIDs lists the generic devices tried, in order, for a form factor.
var recoveryIDs = map[string][]string{
	formFactorSmartphone:   {"generic_smartphone", "generic_mobile"},
	formFactorFeaturePhone: {"generic_mobile"},
	formFactorTablet:       {"generic_tablet", "generic_mobile"},
	formFactorRobot:        {"generic_web_crawler"},
	formFactorDesktop:      {"generic_web_browser"},
	formFactorSmartTV:      {"generic_smarttv"},
}

type result struct {
	db         *database
	dev        *device
	original   string
	normalized string
	matchType  backend.MatchType
	vcaps      map[string]string
	closed     atomic.Bool
}

var _ backend.Result = (*result)(nil)

func (r *result) ID() string                  { return r.dev.id }
func (r *result) RootID() string              { return r.dev.rootID }
func (r *result) IsRoot() bool                { return r.dev.isRoot }
func (r *result) UserAgent() string           { return r.dev.userAgent }
func (r *result) OriginalUserAgent() string   { return r.original }
func (r *result) NormalizedUserAgent() string { return r.normalized }
func (r *result) MatchType() backend.MatchType {
	return r.matchType
}

// Capability reads through to the database; a closed result or database
// answers nothing.
func (r *result) Capability(name string) (string, bool) {
	if r.closed.Load() || r.db.closed.Load() {
		return "", false
	}
	v, ok := r.dev.caps[name]
	return v, ok
}

func (r *result) VirtualCapability(name string) (string, bool) {
	if r.closed.Load() || r.db.closed.Load() {
		return "", false
	}
	v, ok := r.vcaps[name]
	return v, ok
}

func (r *result) Close() error {
	r.closed.Store(true)
	return nil
}
