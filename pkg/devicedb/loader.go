package devicedb

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/dmitrymomot/devicekit/pkg/backend"
)

// APIVersion is reported by Loader.APIVersion and in every database Info.
const APIVersion = "devicedb/1.4.0"

// RootID is the device every fall_back chain ends at.
const RootID = "generic"

// MandatoryCapabilities are always loaded, whatever the capability filter,
// because virtual capabilities are derived from them.
var MandatoryCapabilities = []string{
	"brand_name",
	"model_name",
	"marketing_name",
	"device_os",
	"device_os_version",
	"is_wireless_device",
	"is_tablet",
	"is_smarttv",
	"pointing_method",
	"resolution_width",
	"resolution_height",
	"mobile_browser",
	"mobile_browser_version",
}

// DefaultImportantHeaders is used when a database does not list its own.
var DefaultImportantHeaders = []string{
	"User-Agent",
	"Device-Stock-UA",
	"X-UCBrowser-Device-UA",
	"X-OperaMini-Phone-UA",
	"X-Requested-With",
	"Sec-CH-UA",
	"Sec-CH-UA-Mobile",
	"Sec-CH-UA-Model",
	"Sec-CH-UA-Platform",
	"Sec-CH-UA-Platform-Version",
}

// Loader reads YAML device databases. The zero value is ready to use.
type Loader struct {
	// Now overrides the load timestamp; used in tests.
	Now func() time.Time
}

var _ backend.Loader = Loader{}

func (Loader) APIVersion() string { return APIVersion }

// Load reads path, applies patches and the capability filter, and returns a
// fully resolved database.
func (l Loader) Load(ctx context.Context, path string, opts backend.LoadOptions) (backend.Database, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	root, err := decode(path)
	if err != nil {
		return nil, err
	}
	if root.Format != Format {
		return nil, fmt.Errorf("%w: %s has format %d, engine supports %d",
			backend.ErrIncompatible, path, root.Format, Format)
	}

	for _, p := range opts.Patches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		patch, err := decode(p)
		if err != nil {
			return nil, err
		}
		if patch.Format != 0 && patch.Format != Format {
			return nil, fmt.Errorf("%w: patch %s has format %d", backend.ErrIncompatible, p, patch.Format)
		}
		applyPatch(root, patch)
	}

	now := time.Now
	if l.Now != nil {
		now = l.Now
	}

	db, err := build(root, opts.Capabilities)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	db.info = backend.Info{
		APIVersion:  APIVersion,
		DataVersion: root.Version,
		Description: root.Description,
		Format:      root.Format,
		LoadedAt:    now(),
	}
	return db, nil
}

// applyPatch merges patch devices into base. Known devices get their
// capabilities overridden key by key; unknown devices are appended.
func applyPatch(base, patch *fileDB) {
	index := make(map[string]int, len(base.Devices))
	for i, d := range base.Devices {
		index[d.ID] = i
	}

	for _, pd := range patch.Devices {
		i, ok := index[pd.ID]
		if !ok {
			base.Devices = append(base.Devices, pd)
			index[pd.ID] = len(base.Devices) - 1
			continue
		}
		d := &base.Devices[i]
		if pd.FallBack != "" {
			d.FallBack = pd.FallBack
		}
		if pd.UserAgent != "" {
			d.UserAgent = pd.UserAgent
		}
		if len(pd.Match) > 0 {
			d.Match = pd.Match
		}
		if pd.ActualDeviceRoot {
			d.ActualDeviceRoot = true
		}
		if d.Capabilities == nil {
			d.Capabilities = make(map[string]string, len(pd.Capabilities))
		}
		for k, v := range pd.Capabilities {
			d.Capabilities[k] = v
		}
	}

	for name, caps := range patch.Groups {
		if base.Groups == nil {
			base.Groups = make(map[string][]string)
		}
		base.Groups[name] = caps
	}
}

func build(f *fileDB, requested []string) (*database, error) {
	raw := make(map[string]*fileDevice, len(f.Devices))
	for i := range f.Devices {
		d := &f.Devices[i]
		if d.ID == "" {
			return nil, fmt.Errorf("%w: device #%d has no id", backend.ErrCorrupt, i)
		}
		if _, dup := raw[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate device %q", backend.ErrCorrupt, d.ID)
		}
		raw[d.ID] = d
	}

	root, ok := raw[RootID]
	if !ok {
		return nil, fmt.Errorf("%w: root device %q missing", backend.ErrCorrupt, RootID)
	}
	if root.FallBack != "" {
		return nil, fmt.Errorf("%w: root device %q must not fall back", backend.ErrCorrupt, RootID)
	}

	declared := make(map[string]struct{}, len(root.Capabilities))
	for name := range root.Capabilities {
		declared[name] = struct{}{}
	}
	for _, name := range MandatoryCapabilities {
		if _, ok := declared[name]; !ok {
			return nil, fmt.Errorf("%w: mandatory capability %q not declared", backend.ErrCorrupt, name)
		}
	}

	keep, err := capabilityFilter(declared, requested)
	if err != nil {
		return nil, err
	}

	db := &database{
		devices: make(map[string]*device, len(raw)),
		groups:  make(map[string][]string, len(f.Groups)),
	}

	for name := range keep {
		db.capNames = append(db.capNames, name)
	}
	sort.Strings(db.capNames)

	for id, d := range raw {
		chain, err := fallBackChain(raw, d)
		if err != nil {
			return nil, err
		}

		dev := &device{
			id:        id,
			isRoot:    d.ActualDeviceRoot,
			userAgent: d.UserAgent,
			caps:      make(map[string]string, len(keep)),
		}
		dev.normalizedUA = normalize(d.UserAgent)

		// chain runs from the device up to the root; apply root first so
		// closer ancestors win.
		for i := len(chain) - 1; i >= 0; i-- {
			for k, v := range chain[i].Capabilities {
				if _, ok := declared[k]; !ok {
					return nil, fmt.Errorf("%w: device %q sets undeclared capability %q",
						backend.ErrCorrupt, chain[i].ID, k)
				}
				if _, ok := keep[k]; ok {
					dev.caps[k] = v
				}
			}
		}
		for _, anc := range chain {
			if anc.ActualDeviceRoot {
				dev.rootID = anc.ID
				break
			}
		}

		for _, tok := range d.Match {
			tok = normalize(tok)
			if tok == "" {
				continue
			}
			dev.tokens = append(dev.tokens, tok)
			dev.weight += len(tok)
		}

		db.devices[id] = dev
		db.ids = append(db.ids, id)
		if len(dev.tokens) > 0 {
			db.matchers = append(db.matchers, dev)
		}
	}

	sort.Strings(db.ids)
	sort.Slice(db.matchers, func(i, j int) bool {
		if db.matchers[i].weight != db.matchers[j].weight {
			return db.matchers[i].weight > db.matchers[j].weight
		}
		return db.matchers[i].id < db.matchers[j].id
	})

	for name, caps := range f.Groups {
		var kept []string
		for _, c := range caps {
			if _, ok := keep[c]; ok {
				kept = append(kept, c)
			}
		}
		if len(kept) > 0 {
			db.groups[name] = kept
		}
	}

	headers := f.ImportantHeaders
	if len(headers) == 0 {
		headers = DefaultImportantHeaders
	}
	db.headers = slices.Clone(headers)
	db.headerIndex = make(map[string]string, len(headers))
	for _, h := range headers {
		db.headerIndex[strings.ToLower(h)] = h
	}

	return db, nil
}

func capabilityFilter(declared map[string]struct{}, requested []string) (map[string]struct{}, error) {
	if len(requested) == 0 {
		return declared, nil
	}

	keep := make(map[string]struct{}, len(requested)+len(MandatoryCapabilities))
	for _, name := range requested {
		if _, ok := declared[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCapability, name)
		}
		keep[name] = struct{}{}
	}
	for _, name := range MandatoryCapabilities {
		keep[name] = struct{}{}
	}
	return keep, nil
}

// fallBackChain returns d followed by its ancestors up to the root.
func fallBackChain(raw map[string]*fileDevice, d *fileDevice) ([]*fileDevice, error) {
	chain := []*fileDevice{d}
	seen := map[string]struct{}{d.ID: {}}

	for cur := d; cur.ID != RootID; {
		if cur.FallBack == "" {
			return nil, fmt.Errorf("%w: device %q has no fall_back", backend.ErrCorrupt, cur.ID)
		}
		next, ok := raw[cur.FallBack]
		if !ok {
			return nil, fmt.Errorf("%w: device %q falls back to unknown %q",
				backend.ErrCorrupt, cur.ID, cur.FallBack)
		}
		if _, loop := seen[next.ID]; loop {
			return nil, fmt.Errorf("%w: fall_back cycle through %q", backend.ErrCorrupt, next.ID)
		}
		seen[next.ID] = struct{}{}
		chain = append(chain, next)
		cur = next
	}
	return chain, nil
}
