// Package pipeline runs one conversion: read the source into words, optionally run-length
// encode or decode them, then write them as binary or as an includeable hex listing.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"go.uber.org/multierr"

	"github.com/ZaninAndrea/bsgen/internal/cache"
	"github.com/ZaninAndrea/bsgen/internal/storage"
	"github.com/ZaninAndrea/bsgen/pkg/compression"
	"github.com/ZaninAndrea/bsgen/pkg/events"
	"github.com/ZaninAndrea/bsgen/pkg/framing"
	"github.com/ZaninAndrea/bsgen/pkg/include"
)

type Stage int

const (
	StageRead Stage = iota
	StageTransform
	StageWrite
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageRead:
		return "read"
	case StageTransform:
		return "transform"
	case StageWrite:
		return "write"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Report describes a run. Stages lists the stages that were entered, in order.
type Report struct {
	Stages       []Stage
	WordsRead    int
	WordsWritten int
	BytesWritten int
	CacheHit     bool
}

type Pipeline struct {
	store Store
	cache *cache.Cache
	sink  events.Sink
}

// Store is the subset of storage.Store the pipeline needs.
type Store = storage.Store

type Option func(*Pipeline)

func WithStore(store Store) Option {
	return func(p *Pipeline) { p.store = store }
}

// WithCache enables the conversion cache. The pipeline does not close it.
func WithCache(c *cache.Cache) Option {
	return func(p *Pipeline) { p.cache = c }
}

func WithSink(sink events.Sink) Option {
	return func(p *Pipeline) { p.sink = events.OrDiscard(sink) }
}

func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		store: storage.NewRouter(storage.S3Options{}),
		sink:  events.Discard,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the stages strictly in sequence. A fatal error aborts the run and is
// returned wrapped in one of the package sentinels; use CodeOf to map it to a result code.
// Recoverable conditions are reported to the sink only.
func (p *Pipeline) Run(ctx context.Context, cfg Config) (Report, error) {
	var report Report

	if err := cfg.Validate(); err != nil {
		return report, err
	}

	report.Stages = append(report.Stages, StageRead)
	source, err := p.readSource(ctx, cfg)
	if err != nil {
		return report, err
	}

	var key string
	var output []byte
	if p.cache != nil {
		var entry cache.Entry
		key = cache.Key(source, cfg.Fingerprint())
		entry, report.CacheHit = p.lookup(key)
		output, report.WordsWritten = entry.Output, entry.Words
	}

	if !report.CacheHit {
		words, err := framing.Decode(source, cfg.Width, cfg.SourceEndian, p.sink)
		if err != nil {
			return report, fmt.Errorf("%w: %w", ErrSource, err)
		}
		report.WordsRead = len(words)
		p.sink.Emit(events.WordsRead{Count: len(words)})

		if cfg.Compression != ModeNone {
			report.Stages = append(report.Stages, StageTransform)
		}
		words, err = p.transform(cfg, words)
		if err != nil {
			return report, err
		}

		report.WordsWritten = len(words)
		output, err = render(cfg, words)
		if err != nil {
			return report, fmt.Errorf("%w: %w", ErrDestination, err)
		}
	}

	report.Stages = append(report.Stages, StageWrite)
	written, err := p.writeDestination(ctx, cfg, output)
	report.BytesWritten = int(written)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrDestination, err)
	}
	p.sink.Emit(events.WordsWritten{Count: report.WordsWritten, Bytes: report.BytesWritten})

	if p.cache != nil && !report.CacheHit {
		if err := p.cache.Put(key, cache.Entry{Words: report.WordsWritten, Output: output}); err != nil {
			p.sink.Emit(events.CacheFailure{Op: "write", Err: err})
		}
	}

	report.Stages = append(report.Stages, StageDone)
	return report, nil
}

func (p *Pipeline) lookup(key string) (cache.Entry, bool) {
	entry, found, err := p.cache.Get(key)
	if err != nil {
		p.sink.Emit(events.CacheFailure{Op: "read", Err: err})
		return cache.Entry{}, false
	}
	if found {
		p.sink.Emit(events.CacheHit{Key: key})
	}
	return entry, found
}

func (p *Pipeline) readSource(ctx context.Context, cfg Config) ([]byte, error) {
	exists, err := p.store.Exists(ctx, cfg.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSource, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: the source file %s does not exist", ErrInvalidConfig, cfg.SourcePath)
	}

	data, err := p.readAll(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSource, err)
	}
	return data, nil
}

func (p *Pipeline) readAll(ctx context.Context, cfg Config) (data []byte, err error) {
	r, err := storage.OpenContainer(ctx, p.store, cfg.SourcePath, cfg.SourceContainer)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, r.Close())
	}()
	p.sink.Emit(events.SourceOpened{Location: cfg.SourcePath})

	return io.ReadAll(r)
}

func (p *Pipeline) transform(cfg Config, words []framing.Word) ([]framing.Word, error) {
	switch cfg.Compression {
	case ModeEncode:
		return compression.EncodeRunLength(words, cfg.Width, p.sink), nil
	case ModeDecode:
		decoded, err := compression.DecodeRunLengthLimit(words, cfg.MaxDecodedWords, p.sink)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSource, err)
		}
		return decoded, nil
	default:
		p.sink.Emit(events.Passthrough{})
		return words, nil
	}
}

func render(cfg Config, words []framing.Word) ([]byte, error) {
	if cfg.DestFormat == FormatBinary {
		return framing.Encode(words, cfg.Width, cfg.DestEndian), nil
	}

	var buf bytes.Buffer
	opts := include.Options{Style: cfg.TextStyle, LineEnding: cfg.LineEnding}
	if err := include.Write(&buf, words, cfg.Width, cfg.DestEndian, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeDestination returns the number of bytes that reached the destination.
func (p *Pipeline) writeDestination(ctx context.Context, cfg Config, output []byte) (written uint64, err error) {
	if exists, err := p.store.Exists(ctx, cfg.DestPath); err == nil && exists {
		p.sink.Emit(events.DestinationOverwrite{Location: cfg.DestPath})
	}

	w, err := storage.CreateContainer(ctx, p.store, cfg.DestPath, cfg.DestContainer)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = multierr.Append(err, w.Close())
	}()
	p.sink.Emit(events.DestinationOpened{Location: cfg.DestPath})

	fw, err := framing.NewWriter(w, cfg.Width, cfg.DestEndian)
	if err != nil {
		return 0, err
	}
	_, err = fw.Write(output)
	return fw.Offset(), err
}
