package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
)

// Local stores files on the local file system.
type Local struct{}

func (Local) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	return os.Open(location)
}

// Create truncates an existing file.
func (Local) Create(ctx context.Context, location string) (io.WriteCloser, error) {
	return os.Create(location)
}

func (Local) Exists(ctx context.Context, location string) (bool, error) {
	_, err := os.Stat(location)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, nil
}
