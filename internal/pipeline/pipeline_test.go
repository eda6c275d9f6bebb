package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaninAndrea/bsgen/internal/cache"
	"github.com/ZaninAndrea/bsgen/internal/pipeline"
	"github.com/ZaninAndrea/bsgen/internal/storage"
	"github.com/ZaninAndrea/bsgen/internal/storage/s3test"
	"github.com/ZaninAndrea/bsgen/pkg/compression"
	"github.com/ZaninAndrea/bsgen/pkg/events"
	"github.com/ZaninAndrea/bsgen/pkg/framing"
	"github.com/ZaninAndrea/bsgen/pkg/include"
)

func writeSource(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.bin")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func newConfig(t *testing.T, source []byte) pipeline.Config {
	t.Helper()
	cfg := pipeline.DefaultConfig()
	cfg.SourcePath = writeSource(t, source)
	cfg.DestPath = filepath.Join(t.TempDir(), "dest.out")
	return cfg
}

func readDest(t *testing.T, cfg pipeline.Config) []byte {
	t.Helper()
	data, err := os.ReadFile(cfg.DestPath)
	require.NoError(t, err)
	return data
}

func TestRunInclude(t *testing.T) {
	cfg := newConfig(t, []byte{0x00, 0x1a, 0xff})
	var rec events.Recorder

	report, err := pipeline.New(pipeline.WithSink(&rec)).Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, pipeline.CodeSuccess, pipeline.CodeOf(err))

	assert.Equal(t, "0x00,0x1a,0xff", string(readDest(t, cfg)))
	assert.Equal(t, []pipeline.Stage{pipeline.StageRead, pipeline.StageWrite, pipeline.StageDone}, report.Stages)
	assert.Equal(t, 3, report.WordsRead)
	assert.Equal(t, 3, report.WordsWritten)

	_, ok := events.Find[events.Passthrough](&rec)
	assert.True(t, ok)
	assert.Empty(t, rec.Warnings())
}

func TestRunBinaryEndianSwap(t *testing.T) {
	cfg := newConfig(t, []byte{0x12, 0x34, 0x56, 0x78})
	cfg.Width = framing.Width2
	cfg.SourceEndian = framing.BigEndian
	cfg.DestEndian = framing.LittleEndian
	cfg.DestFormat = pipeline.FormatBinary

	report, err := pipeline.New().Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x34, 0x12, 0x78, 0x56}, readDest(t, cfg))
	assert.Equal(t, 2, report.WordsWritten)
	assert.Equal(t, 4, report.BytesWritten)
}

func TestRunEncodeDecode(t *testing.T) {
	source := []byte{5, 5, 5, 5, 9, 9, 1}
	cfg := newConfig(t, source)
	cfg.Compression = pipeline.ModeEncode
	cfg.DestFormat = pipeline.FormatBinary

	report, err := pipeline.New().Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []pipeline.Stage{pipeline.StageRead, pipeline.StageTransform, pipeline.StageWrite, pipeline.StageDone}, report.Stages)

	encoded := readDest(t, cfg)
	assert.Equal(t, []byte{4, 5, 2, 9, 1, 1}, encoded)

	back := pipeline.DefaultConfig()
	back.SourcePath = cfg.DestPath
	back.DestPath = filepath.Join(t.TempDir(), "decoded.bin")
	back.Compression = pipeline.ModeDecode
	back.DestFormat = pipeline.FormatBinary

	_, err = pipeline.New().Run(context.Background(), back)
	require.NoError(t, err)
	assert.Equal(t, source, readDest(t, back))
}

func TestRunRecoverableConditions(t *testing.T) {
	t.Run("Truncated source", func(t *testing.T) {
		cfg := newConfig(t, []byte{1, 2, 3, 4, 5})
		cfg.Width = framing.Width2
		var rec events.Recorder

		report, err := pipeline.New(pipeline.WithSink(&rec)).Run(context.Background(), cfg)
		require.NoError(t, err)
		assert.Equal(t, 2, report.WordsRead)
		assert.Equal(t, "0x01,0x02,0x03,0x04", string(readDest(t, cfg)))

		truncated, ok := events.Find[events.TruncatedInput](&rec)
		require.True(t, ok)
		assert.Equal(t, 1, truncated.DroppedBytes)
	})

	t.Run("Odd decode input", func(t *testing.T) {
		cfg := newConfig(t, []byte{3, 0xaa, 5})
		cfg.Compression = pipeline.ModeDecode
		var rec events.Recorder

		_, err := pipeline.New(pipeline.WithSink(&rec)).Run(context.Background(), cfg)
		require.NoError(t, err)
		assert.Equal(t, "0xaa,0xaa,0xaa", string(readDest(t, cfg)))

		_, ok := events.Find[events.DanglingRunLength](&rec)
		assert.True(t, ok)
	})

	t.Run("Expansion", func(t *testing.T) {
		cfg := newConfig(t, []byte{1, 2})
		cfg.Compression = pipeline.ModeEncode
		var rec events.Recorder

		_, err := pipeline.New(pipeline.WithSink(&rec)).Run(context.Background(), cfg)
		require.NoError(t, err)
		assert.Equal(t, "0x01,0x01,0x01,0x02", string(readDest(t, cfg)))

		_, ok := events.Find[events.Expanded](&rec)
		assert.True(t, ok)
	})

	t.Run("Existing destination", func(t *testing.T) {
		cfg := newConfig(t, []byte{1})
		require.NoError(t, os.WriteFile(cfg.DestPath, []byte("old content"), 0644))
		var rec events.Recorder

		_, err := pipeline.New(pipeline.WithSink(&rec)).Run(context.Background(), cfg)
		require.NoError(t, err)
		assert.Equal(t, "0x01", string(readDest(t, cfg)))

		_, ok := events.Find[events.DestinationOverwrite](&rec)
		assert.True(t, ok)
	})
}

func TestRunConfigErrors(t *testing.T) {
	t.Run("Missing paths", func(t *testing.T) {
		store := &recordingStore{Store: storage.Local{}}
		_, err := pipeline.New(pipeline.WithStore(store)).Run(context.Background(), pipeline.DefaultConfig())
		assert.Equal(t, pipeline.CodeArgumentInvalid, pipeline.CodeOf(err))
		assert.Zero(t, store.calls, "no I/O before validation")
	})

	t.Run("Missing source file", func(t *testing.T) {
		cfg := pipeline.DefaultConfig()
		cfg.SourcePath = filepath.Join(t.TempDir(), "nope.bin")
		cfg.DestPath = filepath.Join(t.TempDir(), "dest.inc")

		_, err := pipeline.New().Run(context.Background(), cfg)
		assert.Equal(t, pipeline.CodeArgumentInvalid, pipeline.CodeOf(err))
		assert.NoFileExists(t, cfg.DestPath)
	})

	t.Run("Invalid option wins over invalid argument", func(t *testing.T) {
		cfg := pipeline.DefaultConfig()
		cfg.Width = framing.Width(3)
		_, err := pipeline.New().Run(context.Background(), cfg)
		assert.Equal(t, pipeline.CodeOptionInvalid, pipeline.CodeOf(err))
		assert.ErrorIs(t, err, pipeline.ErrInvalidConfig)
	})
}

// recordingStore counts store calls and can inject failures.
type recordingStore struct {
	storage.Store
	calls     int
	readErr   error
	createErr error
	writeErr  error
}

func (s *recordingStore) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	s.calls++
	r, err := s.Store.Open(ctx, location)
	if err != nil || s.readErr == nil {
		return r, err
	}
	return &failingReadCloser{ReadCloser: r, err: s.readErr}, nil
}

func (s *recordingStore) Create(ctx context.Context, location string) (io.WriteCloser, error) {
	s.calls++
	if s.createErr != nil {
		return nil, s.createErr
	}
	w, err := s.Store.Create(ctx, location)
	if err != nil || s.writeErr == nil {
		return w, err
	}
	return &failingWriteCloser{WriteCloser: w, err: s.writeErr}, nil
}

func (s *recordingStore) Exists(ctx context.Context, location string) (bool, error) {
	s.calls++
	return s.Store.Exists(ctx, location)
}

type failingReadCloser struct {
	io.ReadCloser
	err error
}

func (f *failingReadCloser) Read([]byte) (int, error) { return 0, f.err }

type failingWriteCloser struct {
	io.WriteCloser
	err error
}

func (f *failingWriteCloser) Write([]byte) (int, error) { return 0, f.err }

func TestRunFatalErrors(t *testing.T) {
	t.Run("Source read failure", func(t *testing.T) {
		cfg := newConfig(t, []byte{1, 2, 3})
		deviceErr := errors.New("device error")
		store := &recordingStore{Store: storage.Local{}, readErr: deviceErr}

		report, err := pipeline.New(pipeline.WithStore(store)).Run(context.Background(), cfg)
		assert.Equal(t, pipeline.CodeSourceFatal, pipeline.CodeOf(err))
		assert.ErrorIs(t, err, deviceErr)
		assert.Equal(t, []pipeline.Stage{pipeline.StageRead}, report.Stages)
		assert.NoFileExists(t, cfg.DestPath)
	})

	t.Run("Destination create failure", func(t *testing.T) {
		cfg := newConfig(t, []byte{1, 2, 3})
		store := &recordingStore{Store: storage.Local{}, createErr: errors.New("read-only file system")}

		_, err := pipeline.New(pipeline.WithStore(store)).Run(context.Background(), cfg)
		assert.Equal(t, pipeline.CodeDestFatal, pipeline.CodeOf(err))
	})

	t.Run("Destination write failure", func(t *testing.T) {
		cfg := newConfig(t, []byte{1, 2, 3})
		store := &recordingStore{Store: storage.Local{}, writeErr: errors.New("disk full")}

		report, err := pipeline.New(pipeline.WithStore(store)).Run(context.Background(), cfg)
		assert.Equal(t, pipeline.CodeDestFatal, pipeline.CodeOf(err))
		assert.ErrorContains(t, err, "disk full")
		assert.NotContains(t, report.Stages, pipeline.StageDone)
		assert.Zero(t, report.BytesWritten)
	})

	t.Run("Decode limit", func(t *testing.T) {
		cfg := newConfig(t, []byte{0xff, 0xff, 0xff, 0xff, 0, 0, 0, 1})
		cfg.Width = framing.Width4
		cfg.Compression = pipeline.ModeDecode
		cfg.MaxDecodedWords = 1 << 20

		_, err := pipeline.New().Run(context.Background(), cfg)
		assert.Equal(t, pipeline.CodeSourceFatal, pipeline.CodeOf(err))
		assert.NoFileExists(t, cfg.DestPath)
	})

	t.Run("Default decode limit", func(t *testing.T) {
		cfg := newConfig(t, []byte{0xff, 0xff, 0xff, 0xff, 0, 0, 0, 1})
		cfg.Width = framing.Width4
		cfg.Compression = pipeline.ModeDecode
		require.Equal(t, pipeline.DefaultMaxDecodedWords, cfg.MaxDecodedWords)

		_, err := pipeline.New().Run(context.Background(), cfg)
		assert.ErrorIs(t, err, compression.ErrOutputLimit)
		assert.Equal(t, pipeline.CodeSourceFatal, pipeline.CodeOf(err))
		assert.NoFileExists(t, cfg.DestPath)
	})
}

func TestRunCache(t *testing.T) {
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	defer c.Close()

	cfg := newConfig(t, []byte{7, 7, 7})
	cfg.Compression = pipeline.ModeEncode

	first, err := pipeline.New(pipeline.WithCache(c)).Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	var rec events.Recorder
	cfg.DestPath = filepath.Join(t.TempDir(), "second.inc")
	second, err := pipeline.New(pipeline.WithCache(c), pipeline.WithSink(&rec)).Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, "0x03,0x07", string(readDest(t, cfg)))
	assert.Equal(t, first.WordsWritten, second.WordsWritten)
	assert.Equal(t, 2, second.WordsWritten)
	assert.Equal(t, len("0x03,0x07"), second.BytesWritten)
	assert.Zero(t, second.WordsRead)

	written, ok := events.Find[events.WordsWritten](&rec)
	require.True(t, ok)
	assert.Equal(t, events.WordsWritten{Count: 2, Bytes: 9}, written)

	_, ok = events.Find[events.CacheHit](&rec)
	assert.True(t, ok)

	// A different setting misses the cache
	cfg.TextStyle = include.WordTokens
	cfg.Width = framing.Width1
	cfg.LineEnding = "\r\n"
	third, err := pipeline.New(pipeline.WithCache(c)).Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
}

func TestRunLZ4Destination(t *testing.T) {
	cfg := newConfig(t, bytes.Repeat([]byte{0x42}, 64))
	cfg.DestPath = filepath.Join(t.TempDir(), "asset.inc.lz4")

	_, err := pipeline.New().Run(context.Background(), cfg)
	require.NoError(t, err)

	f, err := os.Open(cfg.DestPath)
	require.NoError(t, err)
	defer f.Close()

	text, err := io.ReadAll(lz4.NewReader(f))
	require.NoError(t, err)
	assert.Len(t, bytes.Split(text, []byte("\n")), 4)
}

func TestParse(t *testing.T) {
	format, err := pipeline.ParseFormat("BIN")
	require.NoError(t, err)
	assert.Equal(t, pipeline.FormatBinary, format)
	_, err = pipeline.ParseFormat("hex")
	assert.ErrorIs(t, err, pipeline.ErrInvalidOption)

	mode, err := pipeline.ParseMode("rld")
	require.NoError(t, err)
	assert.Equal(t, pipeline.ModeDecode, mode)
	_, err = pipeline.ParseMode("lzw")
	assert.Equal(t, pipeline.CodeOptionInvalid, pipeline.CodeOf(err))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, pipeline.CodeUnknown, pipeline.CodeOf(errors.New("other")))
	assert.Equal(t, "destination fatal error", pipeline.CodeDestFatal.String())
	assert.Equal(t, 0x21, int(pipeline.CodeDestFatal))

	coded := &pipeline.CodedError{Err: fmt.Errorf("%w", pipeline.ErrInvalidOption), Code: pipeline.CodeSourceFatal}
	assert.Equal(t, pipeline.CodeSourceFatal, pipeline.CodeOf(fmt.Errorf("wrapped: %w", coded)))
	assert.ErrorIs(t, coded, pipeline.ErrInvalidOption)
}

func TestRunS3(t *testing.T) {
	srv := s3test.NewServer(t)
	srv.PutObject("firmware", "assets/logo.bin", []byte{0xca, 0xfe, 0xba, 0xbe})
	p := pipeline.New(pipeline.WithStore(storage.NewRouter(srv.Options())))

	cfg := pipeline.DefaultConfig()
	cfg.SourcePath = "s3://firmware/assets/logo.bin"
	cfg.DestPath = "s3://firmware/generated/logo.inc"
	cfg.Width = framing.Width2

	report, err := p.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, report.WordsRead)

	out, ok := srv.Object("firmware", "generated/logo.inc")
	require.True(t, ok)
	assert.Equal(t, "0xca,0xfe,0xba,0xbe", string(out))
	assert.Equal(t, len(out), report.BytesWritten)

	t.Run("Missing object", func(t *testing.T) {
		cfg := cfg
		cfg.SourcePath = "s3://firmware/assets/missing.bin"

		_, err := p.Run(context.Background(), cfg)
		assert.Equal(t, pipeline.CodeArgumentInvalid, pipeline.CodeOf(err))
	})

	t.Run("Overwrite", func(t *testing.T) {
		var rec events.Recorder
		p := pipeline.New(pipeline.WithStore(storage.NewRouter(srv.Options())), pipeline.WithSink(&rec))

		_, err := p.Run(context.Background(), cfg)
		require.NoError(t, err)
		overwrite, ok := events.Find[events.DestinationOverwrite](&rec)
		require.True(t, ok)
		assert.Equal(t, cfg.DestPath, overwrite.Location)
	})
}
