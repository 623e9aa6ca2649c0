package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// FileSource reads the database from a local path, for example a file
// dropped by a configuration management tool.
type FileSource struct {
	path string
}

// NewFileSource returns a source for path.
func NewFileSource(path string) (*FileSource, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidLocation)
	}
	return &FileSource{path: path}, nil
}

// Fetch fingerprints the file by size and modification time.
func (s *FileSource) Fetch(ctx context.Context, current string) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fi, err := os.Stat(s.path)
	if err != nil {
		return nil, classifyFileError(err, s.path)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidLocation, s.path)
	}

	fp := fmt.Sprintf("file:%d:%d", fi.Size(), fi.ModTime().UnixNano())
	if fp == current {
		return nil, ErrNotModified
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, classifyFileError(err, s.path)
	}
	return &Payload{
		Body:        f,
		Fingerprint: fp,
		ModTime:     fi.ModTime(),
		Size:        fi.Size(),
	}, nil
}

func (s *FileSource) String() string { return "file://" + s.path }

func classifyFileError(err error, path string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrAccessDenied, path)
	default:
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
}
