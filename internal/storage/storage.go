// Package storage opens conversion sources and destinations by location. A location is a
// local path or an s3://bucket/key URI. Either can be wrapped in an LZ4 frame container.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

var ErrInvalidContainer = fmt.Errorf("invalid container")

type Store interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
	Create(ctx context.Context, location string) (io.WriteCloser, error)
	Exists(ctx context.Context, location string) (bool, error)
}

// Router dispatches locations to the local file system or to S3. The S3 client is created
// the first time an s3:// location is used.
type Router struct {
	Local     Local
	S3Options S3Options

	once  sync.Once
	s3    *S3
	s3Err error
}

func NewRouter(s3Options S3Options) *Router {
	return &Router{S3Options: s3Options}
}

func (r *Router) storeFor(ctx context.Context, location string) (Store, error) {
	if !IsS3(location) {
		return r.Local, nil
	}

	r.once.Do(func() {
		r.s3, r.s3Err = NewS3(ctx, r.S3Options)
	})
	if r.s3Err != nil {
		return nil, r.s3Err
	}
	return r.s3, nil
}

func (r *Router) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	store, err := r.storeFor(ctx, location)
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, location)
}

func (r *Router) Create(ctx context.Context, location string) (io.WriteCloser, error) {
	store, err := r.storeFor(ctx, location)
	if err != nil {
		return nil, err
	}
	return store.Create(ctx, location)
}

func (r *Router) Exists(ctx context.Context, location string) (bool, error) {
	store, err := r.storeFor(ctx, location)
	if err != nil {
		return false, err
	}
	return store.Exists(ctx, location)
}

// Container is the framing wrapped around the raw byte stream.
type Container int

const (
	// ContainerAuto selects LZ4 for locations ending in .lz4 and raw otherwise.
	ContainerAuto Container = iota
	ContainerRaw
	ContainerLZ4
)

func (c Container) String() string {
	switch c {
	case ContainerAuto:
		return "auto"
	case ContainerRaw:
		return "raw"
	case ContainerLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("invalid(%d)", int(c))
	}
}

func ParseContainer(s string) (Container, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ContainerAuto, nil
	case "raw", "none":
		return ContainerRaw, nil
	case "lz4":
		return ContainerLZ4, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidContainer, s)
	}
}

// Resolve replaces ContainerAuto with the container implied by the location.
func (c Container) Resolve(location string) Container {
	if c != ContainerAuto {
		return c
	}
	if strings.HasSuffix(strings.ToLower(location), ".lz4") {
		return ContainerLZ4
	}
	return ContainerRaw
}
