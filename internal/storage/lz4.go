package storage

import (
	"context"
	"io"

	"github.com/pierrec/lz4/v4"
	"go.uber.org/multierr"
)

// OpenContainer opens location on store and unwraps its container.
func OpenContainer(ctx context.Context, store Store, location string, container Container) (io.ReadCloser, error) {
	r, err := store.Open(ctx, location)
	if err != nil {
		return nil, err
	}

	if container.Resolve(location) != ContainerLZ4 {
		return r, nil
	}
	return &lz4ReadCloser{Reader: lz4.NewReader(r), underlying: r}, nil
}

// CreateContainer creates location on store and wraps it in its container. Closing the
// returned writer flushes the container before closing the destination.
func CreateContainer(ctx context.Context, store Store, location string, container Container) (io.WriteCloser, error) {
	w, err := store.Create(ctx, location)
	if err != nil {
		return nil, err
	}

	if container.Resolve(location) != ContainerLZ4 {
		return w, nil
	}
	return &lz4WriteCloser{Writer: lz4.NewWriter(w), underlying: w}, nil
}

type lz4ReadCloser struct {
	*lz4.Reader
	underlying io.Closer
}

func (r *lz4ReadCloser) Close() error {
	return r.underlying.Close()
}

type lz4WriteCloser struct {
	*lz4.Writer
	underlying io.Closer
}

func (w *lz4WriteCloser) Close() error {
	// The destination is closed even when the final frame cannot be written
	return multierr.Append(w.Writer.Close(), w.underlying.Close())
}
