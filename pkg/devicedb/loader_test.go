package devicedb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devicekit/internal/devicedbtest"
	"github.com/dmitrymomot/devicekit/pkg/backend"
	"github.com/dmitrymomot/devicekit/pkg/devicedb"
)

func load(t *testing.T, path string, opts backend.LoadOptions) backend.Database {
	t.Helper()
	db, err := devicedb.Loader{}.Load(context.Background(), path, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	t.Run("plain yaml", func(t *testing.T) {
		t.Parallel()

		loadedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		path := devicedbtest.WriteFile(t, t.TempDir(), "2024-05-01")
		db, err := devicedb.Loader{Now: func() time.Time { return loadedAt }}.
			Load(context.Background(), path, backend.LoadOptions{})
		require.NoError(t, err)
		defer db.Close()

		info := db.Info()
		assert.Equal(t, devicedb.APIVersion, info.APIVersion)
		assert.Equal(t, "2024-05-01", info.DataVersion)
		assert.Equal(t, devicedb.Format, info.Format)
		assert.Equal(t, loadedAt, info.LoadedAt)
		assert.Contains(t, db.DeviceIDs(), devicedbtest.IPhoneID)
		assert.Contains(t, db.CapabilityNames(), "ajax_support_javascript")
		assert.Contains(t, db.ImportantHeaders(), "Device-Stock-UA")
		assert.ElementsMatch(t, devicedb.VirtualCapabilityNames(), db.VirtualCapabilityNames())
	})

	t.Run("zip archive", func(t *testing.T) {
		t.Parallel()

		db := load(t, devicedbtest.WriteZip(t, t.TempDir(), "zipped"), backend.LoadOptions{})
		assert.Equal(t, "zipped", db.Info().DataVersion)
	})

	t.Run("patches override and add devices", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db := load(t, devicedbtest.WriteFile(t, dir, "v1"), backend.LoadOptions{
			Patches: []string{devicedbtest.WritePatch(t, dir)},
		})

		res, err := db.Device(devicedbtest.IPhoneID)
		require.NoError(t, err)
		v, ok := res.Capability("marketing_name")
		assert.True(t, ok)
		assert.Equal(t, "iPhone (patched)", v)

		res, err = db.Device(devicedbtest.PatchedID)
		require.NoError(t, err)
		v, _ = res.Capability("brand_name")
		assert.Equal(t, "nokia", v)
	})

	t.Run("capability filter keeps mandatory set", func(t *testing.T) {
		t.Parallel()

		db := load(t, devicedbtest.WriteFile(t, t.TempDir(), "v1"), backend.LoadOptions{
			Capabilities: []string{"release_date"},
		})

		names := db.CapabilityNames()
		assert.Contains(t, names, "release_date")
		assert.Contains(t, names, "brand_name")
		assert.NotContains(t, names, "ajax_support_javascript")

		groups := db.Groups()
		assert.NotContains(t, groups, "ajax")
		assert.ElementsMatch(t, []string{"brand_name", "model_name", "marketing_name", "release_date"}, groups["product_info"])
	})

	t.Run("unknown filtered capability", func(t *testing.T) {
		t.Parallel()

		_, err := devicedb.Loader{}.Load(context.Background(),
			devicedbtest.WriteFile(t, t.TempDir(), "v1"),
			backend.LoadOptions{Capabilities: []string{"no_such_capability"}})
		assert.ErrorIs(t, err, devicedb.ErrUnknownCapability)
	})
}

func TestLoader_LoadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{name: "not yaml", content: "devices: [", want: backend.ErrCorrupt},
		{name: "wrong format", content: "format: 7\ndevices: []\n", want: backend.ErrIncompatible},
		{name: "missing root", content: "format: 1\ndevices:\n  - id: a\n    fall_back: generic\n", want: backend.ErrCorrupt},
		{
			name:    "unknown fall_back",
			content: devicedbtest.YAML("v1") + "  - id: orphan\n    fall_back: nowhere\n",
			want:    backend.ErrCorrupt,
		},
		{
			name: "undeclared capability",
			content: devicedbtest.YAML("v1") +
				"  - id: odd\n    fall_back: generic\n    capabilities:\n      colour: blue\n",
			want: backend.ErrCorrupt,
		},
		{
			name:    "duplicate id",
			content: devicedbtest.YAML("v1") + "  - id: generic_mobile\n    fall_back: generic\n",
			want:    backend.ErrCorrupt,
		},
		{
			name:    "mandatory capability missing",
			content: "format: 1\ndevices:\n  - id: generic\n    capabilities:\n      brand_name: \"\"\n",
			want:    backend.ErrCorrupt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := devicedbtest.WriteRaw(t, t.TempDir(), "db.yaml", tt.content)
			_, err := devicedb.Loader{}.Load(context.Background(), path, backend.LoadOptions{})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := devicedb.Loader{}.Load(context.Background(), "/nonexistent/devices.yaml", backend.LoadOptions{})
		assert.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := devicedb.Loader{}.Load(ctx, devicedbtest.WriteFile(t, t.TempDir(), "v1"), backend.LoadOptions{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
