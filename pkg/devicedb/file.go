package devicedb

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/devicekit/pkg/backend"
)

// Format is the database layout version this package understands.
const Format = 1

var zipMagic = []byte("PK\x03\x04")

// fileDB is the on-disk layout of a database or patch file.
type fileDB struct {
	Format           int                 `yaml:"format"`
	Version          string              `yaml:"version"`
	Description      string              `yaml:"description"`
	ImportantHeaders []string            `yaml:"important_headers"`
	Groups           map[string][]string `yaml:"groups"`
	Devices          []fileDevice        `yaml:"devices"`
}

type fileDevice struct {
	ID               string            `yaml:"id"`
	FallBack         string            `yaml:"fall_back"`
	UserAgent        string            `yaml:"user_agent"`
	Match            []string          `yaml:"match"`
	ActualDeviceRoot bool              `yaml:"actual_device_root"`
	Capabilities     map[string]string `yaml:"capabilities"`
}

// readFile loads a database file, unpacking it when it is a zip archive.
// The archive must hold exactly one YAML entry.
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devicedb: read %s: %w", path, err)
	}
	if !bytes.HasPrefix(data, zipMagic) {
		return data, nil
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open archive %s: %v", backend.ErrCorrupt, path, err)
	}

	var entry *zip.File
	for _, f := range zr.File {
		ext := strings.ToLower(filepath.Ext(f.Name))
		if f.FileInfo().IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		if entry != nil {
			return nil, fmt.Errorf("%w: archive %s holds more than one database", backend.ErrCorrupt, path)
		}
		entry = f
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: archive %s holds no database", backend.ErrCorrupt, path)
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s in %s: %v", backend.ErrCorrupt, entry.Name, path, err)
	}
	defer func() { _ = rc.Close() }()

	out, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s in %s: %v", backend.ErrCorrupt, entry.Name, path, err)
	}
	return out, nil
}

func decode(path string) (*fileDB, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var f fileDB
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", backend.ErrCorrupt, path, err)
	}
	return &f, nil
}
