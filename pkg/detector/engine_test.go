package detector_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devicekit/internal/devicedbtest"
	"github.com/dmitrymomot/devicekit/pkg/detector"
	"github.com/dmitrymomot/devicekit/pkg/devicedb"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, opts ...detector.Option) (*detector.Engine, string) {
	t.Helper()
	root := devicedbtest.WriteFile(t, t.TempDir(), "1")
	e, err := detector.New(context.Background(), root, append([]detector.Option{detector.WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e, root
}

func TestNew(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t)
	info := e.Info()
	assert.Equal(t, "1", info.DataVersion)
	assert.Equal(t, devicedb.APIVersion, info.APIVersion)
	assert.Equal(t, devicedb.APIVersion, e.APIVersion())
	assert.False(t, e.LastLoadTime().IsZero())
	assert.NotEmpty(t, e.SnapshotID())
}

func TestNew_ClockStampsLoad(t *testing.T) {
	t.Parallel()
	loadedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e, _ := newEngine(t, detector.WithClock(func() time.Time { return loadedAt }))

	assert.Equal(t, loadedAt, e.LastLoadTime())
	assert.Equal(t, loadedAt, e.Info().LoadedAt)
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("empty path", func(t *testing.T) {
		_, err := detector.New(ctx, "", detector.WithLogger(quietLogger()))
		assert.ErrorIs(t, err, detector.ErrLoadFailed)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := detector.New(ctx, filepath.Join(t.TempDir(), "none.yaml"), detector.WithLogger(quietLogger()))
		assert.ErrorIs(t, err, detector.ErrLoadFailed)
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := devicedbtest.WriteRaw(t, t.TempDir(), "devices.yaml", "devices: [")
		_, err := detector.New(ctx, path, detector.WithLogger(quietLogger()))
		assert.ErrorIs(t, err, detector.ErrLoadFailed)
	})

	t.Run("incompatible format", func(t *testing.T) {
		path := devicedbtest.WriteRaw(t, t.TempDir(), "devices.yaml", "format: 7\ndevices: []\n")
		_, err := detector.New(ctx, path, detector.WithLogger(quietLogger()))
		assert.ErrorIs(t, err, detector.ErrVersionMismatch)
		assert.NotErrorIs(t, err, detector.ErrLoadFailed)
	})

	t.Run("missing baseline capability", func(t *testing.T) {
		loader := newFakeLoader()
		loader.caps = []string{"brand_name"}
		path := devicedbtest.WriteRaw(t, t.TempDir(), "devices.bin", "x")

		_, err := detector.New(ctx, path, detector.WithLoader(loader), detector.WithLogger(quietLogger()))
		require.ErrorIs(t, err, detector.ErrLoadFailed)
		assert.Contains(t, err.Error(), "model_name")

		dbs := loader.loaded()
		require.Len(t, dbs, 1)
		assert.True(t, dbs[0].closed.Load())
	})
}

func TestEngine_LookupUserAgent(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)

	dev, err := e.LookupUserAgent(devicedbtest.IPhoneUA)
	require.NoError(t, err)
	defer dev.Close()

	assert.Equal(t, devicedbtest.IPhone14ID, dev.ID())
	assert.Equal(t, devicedbtest.IPhoneID, dev.RootID())
	assert.False(t, dev.IsRoot())
	assert.Equal(t, detector.MatchTypeExact, dev.MatchType())
	assert.Equal(t, devicedbtest.IPhoneUA, dev.OriginalUserAgent())
	assert.Equal(t, e.SnapshotID(), dev.SnapshotID())

	brand, ok := dev.Capability("brand_name")
	require.True(t, ok)
	assert.Equal(t, "apple", brand)
	osVersion, _ := dev.Capability("device_os_version")
	assert.Equal(t, "14.0", osVersion)

	isIOS, ok := dev.VirtualCapability("is_ios")
	require.True(t, ok)
	assert.Equal(t, "true", isIOS)
	assert.True(t, dev.HasCapability("is_wireless_device"))
	assert.False(t, dev.HasCapability("no_such_capability"))
	assert.True(t, dev.HasVirtualCapability("form_factor"))

	caps := dev.Capabilities()
	assert.Equal(t, "iPhone", caps["model_name"])
	caps["model_name"] = "changed"
	model, _ := dev.Capability("model_name")
	assert.Equal(t, "iPhone", model)

	display := dev.CapabilityGroup("display")
	assert.Equal(t, map[string]string{
		"resolution_width":  "375",
		"resolution_height": "667",
		"max_image_width":   "320",
	}, display)
	assert.Nil(t, dev.CapabilityGroup("no_such_group"))

	sel := dev.SelectCapabilities("brand_name", "unknown")
	assert.Equal(t, map[string]string{"brand_name": "apple"}, sel)

	vsel := dev.SelectVirtualCapabilities("is_ios", "is_android", "no_such_vcap")
	assert.Equal(t, map[string]string{"is_ios": "true", "is_android": "false"}, vsel)
}

func TestEngine_LookupUserAgent_Empty(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)

	dev, err := e.LookupUserAgent("")
	require.NoError(t, err)
	defer dev.Close()
	assert.Equal(t, devicedb.RootID, dev.ID())
	assert.Equal(t, detector.MatchTypeNone, dev.MatchType())
}

func TestEngine_LookupHeaders(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)

	t.Run("case-insensitive names", func(t *testing.T) {
		dev, err := e.LookupHeaders(map[string]string{
			"user-agent": devicedbtest.DesktopUA,
			"X-Custom":   "ignored",
		})
		require.NoError(t, err)
		defer dev.Close()
		assert.Equal(t, "generic_web_browser", dev.ID())
	})

	t.Run("stock user agent wins", func(t *testing.T) {
		dev, err := e.LookupHeaders(map[string]string{
			"User-Agent":      devicedbtest.DesktopUA,
			"Device-Stock-UA": devicedbtest.RedmiUA,
		})
		require.NoError(t, err)
		defer dev.Close()
		assert.Equal(t, devicedbtest.RedmiID, dev.ID())
	})

	t.Run("no usable signal", func(t *testing.T) {
		_, err := e.LookupHeaders(map[string]string{"Accept": "*/*"})
		assert.ErrorIs(t, err, detector.ErrNoUsableSignal)

		_, err = e.LookupHeaders(nil)
		assert.ErrorIs(t, err, detector.ErrNoUsableSignal)
	})
}

func TestEngine_LookupDeviceID(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)

	dev, err := e.LookupDeviceID(devicedbtest.GalaxyS21ID)
	require.NoError(t, err)
	defer dev.Close()
	assert.Equal(t, devicedbtest.GalaxyS21ID, dev.ID())
	assert.True(t, dev.IsRoot())
	name, _ := dev.VirtualCapability("complete_device_name")
	assert.Equal(t, "Samsung SM-G991B (Galaxy S21)", name)

	_, err = e.LookupDeviceID("no_such_device")
	assert.ErrorIs(t, err, detector.ErrUnknownDeviceID)
}

func TestEngine_LookupDeviceIDWithHeaders(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)

	dev, err := e.LookupDeviceIDWithHeaders(devicedbtest.RedmiID, map[string]string{
		"X-Requested-With": "com.example.app",
	})
	require.NoError(t, err)
	defer dev.Close()
	webview, _ := dev.VirtualCapability("is_app_webview")
	assert.Equal(t, "true", webview)

	plain, err := e.LookupDeviceIDWithHeaders(devicedbtest.RedmiID, nil)
	require.NoError(t, err)
	defer plain.Close()
	webview, _ = plain.VirtualCapability("is_app_webview")
	assert.Equal(t, "false", webview)

	_, err = e.LookupDeviceIDWithHeaders("no_such_device", nil)
	assert.ErrorIs(t, err, detector.ErrUnknownDeviceID)
}

func TestEngine_Cache(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t, detector.WithCacheSize(16))

	first, err := e.LookupUserAgent(devicedbtest.RedmiUA)
	require.NoError(t, err)
	defer first.Close()
	assert.Equal(t, detector.MatchTypeConclusive, first.MatchType())

	second, err := e.LookupUserAgent(devicedbtest.RedmiUA)
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, detector.MatchTypeCached, second.MatchType())
	assert.Equal(t, first.ID(), second.ID())
	assert.Equal(t, first.Capabilities(), second.Capabilities())

	// Device-id lookups bypass the cache.
	byID, err := e.LookupDeviceID(devicedbtest.RedmiID)
	require.NoError(t, err)
	defer byID.Close()
	assert.Equal(t, detector.MatchTypeNone, byID.MatchType())

	h1, err := e.LookupHeaders(map[string]string{"User-Agent": devicedbtest.IPadUA})
	require.NoError(t, err)
	defer h1.Close()
	h2, err := e.LookupHeaders(map[string]string{"user-agent": devicedbtest.IPadUA})
	require.NoError(t, err)
	defer h2.Close()
	assert.Equal(t, detector.MatchTypeCached, h2.MatchType())
}

func TestEngine_NoCacheByDefault(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)

	for range 2 {
		dev, err := e.LookupUserAgent(devicedbtest.RedmiUA)
		require.NoError(t, err)
		assert.Equal(t, detector.MatchTypeConclusive, dev.MatchType())
		require.NoError(t, dev.Close())
	}
}

func TestEngine_Introspection(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)

	assert.Contains(t, e.CapabilityNames(), "brand_name")
	assert.True(t, e.HasCapability("resolution_width"))
	assert.False(t, e.HasCapability("is_ios"))
	assert.True(t, e.HasVirtualCapability("is_ios"))
	assert.ElementsMatch(t, devicedb.VirtualCapabilityNames(), e.VirtualCapabilityNames())
	assert.Contains(t, e.ImportantHeaders(), "Device-Stock-UA")
	assert.Contains(t, e.DeviceIDs(), devicedbtest.GalaxyTabID)

	groups := e.Groups()
	assert.Equal(t, []string{"device_os", "device_os_version"}, groups["os"])
	groups["os"][0] = "changed"
	assert.Equal(t, "device_os", e.Groups()["os"][0])
}

func TestEngine_Capabilities(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t, detector.WithCapabilities("marketing_name"))

	assert.True(t, e.HasCapability("marketing_name"))
	for _, name := range detector.BaselineCapabilities {
		assert.True(t, e.HasCapability(name), name)
	}
	assert.False(t, e.HasCapability("max_image_width"))
	assert.False(t, e.HasCapability("release_date"))
}

func TestEngine_Patches(t *testing.T) {
	t.Parallel()
	patch := devicedbtest.WritePatch(t, t.TempDir())
	e, _ := newEngine(t, detector.WithPatches(patch))

	dev, err := e.LookupDeviceID(devicedbtest.PatchedID)
	require.NoError(t, err)
	defer dev.Close()
	brand, _ := dev.Capability("brand_name")
	assert.Equal(t, "nokia", brand)

	iphone, err := e.LookupDeviceID(devicedbtest.IPhoneID)
	require.NoError(t, err)
	defer iphone.Close()
	name, _ := iphone.Capability("marketing_name")
	assert.Equal(t, "iPhone (patched)", name)
}

func TestEngine_Close(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)

	dev, err := e.LookupUserAgent(devicedbtest.GalaxyS21UA)
	require.NoError(t, err)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err = e.LookupUserAgent(devicedbtest.IPhoneUA)
	assert.ErrorIs(t, err, detector.ErrEngineClosed)
	_, err = e.LookupHeaders(map[string]string{"User-Agent": devicedbtest.IPhoneUA})
	assert.ErrorIs(t, err, detector.ErrEngineClosed)
	_, err = e.LookupDeviceID(devicedbtest.IPhoneID)
	assert.ErrorIs(t, err, detector.ErrEngineClosed)
	_, err = e.Updater().RunOnce(context.Background())
	assert.ErrorIs(t, err, detector.ErrEngineClosed)

	assert.Empty(t, e.SnapshotID())
	assert.Empty(t, e.CapabilityNames())
	assert.Equal(t, detector.Info{}, e.Info())

	// A device obtained before Close stays usable until it is closed.
	assert.Equal(t, devicedbtest.GalaxyS21ID, dev.ID())
	brand, ok := dev.Capability("brand_name")
	assert.True(t, ok)
	assert.Equal(t, "samsung", brand)
	require.NoError(t, dev.Close())
}

func TestDevice_Close(t *testing.T) {
	t.Parallel()
	e, _ := newEngine(t)

	dev, err := e.LookupUserAgent(devicedbtest.IPhoneUA)
	require.NoError(t, err)
	require.NoError(t, dev.Close())
	require.NoError(t, dev.Close())

	assert.Empty(t, dev.ID())
	assert.Empty(t, dev.SnapshotID())
	assert.Equal(t, detector.MatchTypeNone, dev.MatchType())
	_, ok := dev.Capability("brand_name")
	assert.False(t, ok)
	_, ok = dev.VirtualCapability("is_ios")
	assert.False(t, ok)
	assert.Nil(t, dev.Capabilities())
	assert.Nil(t, dev.SelectCapabilities("brand_name"))
	assert.Nil(t, dev.SelectVirtualCapabilities("is_ios"))
}

func TestEngine_ReleasesDatabases(t *testing.T) {
	t.Parallel()
	loader := newFakeLoader()
	path := devicedbtest.WriteRaw(t, t.TempDir(), "devices.bin", "x")
	e, err := detector.New(context.Background(), path, detector.WithLoader(loader), detector.WithLogger(quietLogger()))
	require.NoError(t, err)

	dev, err := e.LookupUserAgent("Some UA")
	require.NoError(t, err)
	db := loader.loaded()[0]

	require.NoError(t, e.Close())
	assert.False(t, db.closed.Load(), "database freed while a device still holds it")

	v, ok := dev.Capability("brand_name")
	assert.True(t, ok)
	assert.Equal(t, "v1", v)

	require.NoError(t, dev.Close())
	assert.True(t, db.closed.Load())
	assert.Zero(t, db.misuse.Load())
	assert.Zero(t, db.results.Load())
}

func TestEngine_LookupError(t *testing.T) {
	t.Parallel()
	loader := newFakeLoader()
	path := devicedbtest.WriteRaw(t, t.TempDir(), "devices.bin", "x")
	e, err := detector.New(context.Background(), path, detector.WithLoader(loader), detector.WithLogger(quietLogger()))
	require.NoError(t, err)
	defer e.Close()

	_, err = e.LookupDeviceID("missing")
	assert.True(t, errors.Is(err, detector.ErrUnknownDeviceID))
}
