package detector

import (
	"maps"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/dmitrymomot/devicekit/pkg/backend"
	"github.com/dmitrymomot/devicekit/pkg/native"
)

// MatchType tells how a device was identified.
type MatchType = backend.MatchType

const (
	MatchTypeExact      = backend.MatchTypeExact
	MatchTypeConclusive = backend.MatchTypeConclusive
	MatchTypeRecovery   = backend.MatchTypeRecovery
	MatchTypeCatchall   = backend.MatchTypeCatchall
	MatchTypeNone       = backend.MatchTypeNone
	MatchTypeCached     = backend.MatchTypeCached
)

// deviceData is resolved once per lookup and never modified afterwards, so
// cached entries can be shared between devices.
type deviceData struct {
	id           string
	rootID       string
	isRoot       bool
	userAgent    string
	originalUA   string
	normalizedUA string
	matchType    MatchType
	caps         map[string]string
	vcaps        map[string]string
}

func (d *deviceData) asCached() *deviceData {
	c := *d
	c.matchType = MatchTypeCached
	return &c
}

// lease pins a snapshot, and optionally a native result, for one Device.
type lease struct {
	snap   *snapshot
	result *native.Handle[backend.Result]
	once   sync.Once
	err    error
}

func (l *lease) release() error {
	l.once.Do(func() {
		if l.result != nil {
			l.err = l.result.Release()
		}
		l.snap.release()
	})
	return l.err
}

// Device is the result of a lookup. All of its data is resolved when it is
// created, against the snapshot that was current at that moment; a later
// database update does not change it.
//
// A Device keeps its snapshot alive until Close. A Device that is garbage
// collected without Close releases its snapshot anyway, but callers should
// not rely on that. After Close every accessor reports absence.
//
// A Device is safe for concurrent use.
type Device struct {
	data       *deviceData
	groups     map[string][]string
	snapshotID string
	lease      *lease
	cleanup    runtime.Cleanup
	closed     atomic.Bool
}

func newDevice(s *snapshot, result *native.Handle[backend.Result], data *deviceData) *Device {
	d := &Device{
		data:       data,
		groups:     s.groups,
		snapshotID: s.id,
		lease:      &lease{snap: s, result: result},
	}
	d.cleanup = runtime.AddCleanup(d, func(l *lease) { _ = l.release() }, d.lease)
	return d
}

func (d *Device) view() *deviceData {
	if d == nil || d.closed.Load() {
		return nil
	}
	return d.data
}

func (d *Device) ID() string {
	if v := d.view(); v != nil {
		return v.id
	}
	return ""
}

// RootID is the id of the actual hardware device this one belongs to, or
// empty for generic devices.
func (d *Device) RootID() string {
	if v := d.view(); v != nil {
		return v.rootID
	}
	return ""
}

func (d *Device) IsRoot() bool {
	if v := d.view(); v != nil {
		return v.isRoot
	}
	return false
}

// UserAgent is the device's default user agent from the database.
func (d *Device) UserAgent() string {
	if v := d.view(); v != nil {
		return v.userAgent
	}
	return ""
}

// OriginalUserAgent is the user agent the lookup was made with.
func (d *Device) OriginalUserAgent() string {
	if v := d.view(); v != nil {
		return v.originalUA
	}
	return ""
}

func (d *Device) NormalizedUserAgent() string {
	if v := d.view(); v != nil {
		return v.normalizedUA
	}
	return ""
}

func (d *Device) MatchType() MatchType {
	if v := d.view(); v != nil {
		return v.matchType
	}
	return MatchTypeNone
}

// SnapshotID identifies the database the device was resolved against.
func (d *Device) SnapshotID() string {
	if d.view() == nil {
		return ""
	}
	return d.snapshotID
}

func (d *Device) Capability(name string) (string, bool) {
	v := d.view()
	if v == nil {
		return "", false
	}
	val, ok := v.caps[name]
	return val, ok
}

func (d *Device) VirtualCapability(name string) (string, bool) {
	v := d.view()
	if v == nil {
		return "", false
	}
	val, ok := v.vcaps[name]
	return val, ok
}

func (d *Device) HasCapability(name string) bool {
	_, ok := d.Capability(name)
	return ok
}

func (d *Device) HasVirtualCapability(name string) bool {
	_, ok := d.VirtualCapability(name)
	return ok
}

// Capabilities returns a copy of all loaded capabilities.
func (d *Device) Capabilities() map[string]string {
	if v := d.view(); v != nil {
		return maps.Clone(v.caps)
	}
	return nil
}

// VirtualCapabilities returns a copy of all virtual capabilities.
func (d *Device) VirtualCapabilities() map[string]string {
	if v := d.view(); v != nil {
		return maps.Clone(v.vcaps)
	}
	return nil
}

// CapabilityGroup returns the loaded capabilities of a database group, or
// nil for an unknown group.
func (d *Device) CapabilityGroup(group string) map[string]string {
	names, ok := d.groups[group]
	if !ok {
		return nil
	}
	return d.SelectCapabilities(names...)
}

// SelectCapabilities returns the named capabilities that are loaded.
func (d *Device) SelectCapabilities(names ...string) map[string]string {
	v := d.view()
	if v == nil {
		return nil
	}
	out := make(map[string]string, len(names))
	for _, n := range names {
		if val, ok := v.caps[n]; ok {
			out[n] = val
		}
	}
	return out
}

// SelectVirtualCapabilities returns the named virtual capabilities that are
// known.
func (d *Device) SelectVirtualCapabilities(names ...string) map[string]string {
	v := d.view()
	if v == nil {
		return nil
	}
	out := make(map[string]string, len(names))
	for _, n := range names {
		if val, ok := v.vcaps[n]; ok {
			out[n] = val
		}
	}
	return out
}

// Close releases the device's hold on its snapshot. Only the first call
// has an effect.
func (d *Device) Close() error {
	if d == nil || !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	d.cleanup.Stop()
	return d.lease.release()
}
