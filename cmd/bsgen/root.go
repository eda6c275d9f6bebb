package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ZaninAndrea/bsgen/internal/batch"
	"github.com/ZaninAndrea/bsgen/internal/cache"
	"github.com/ZaninAndrea/bsgen/internal/logging"
	"github.com/ZaninAndrea/bsgen/internal/pipeline"
	"github.com/ZaninAndrea/bsgen/internal/storage"
	"github.com/ZaninAndrea/bsgen/pkg/events"
)

type globalFlags struct {
	LogLevel  string
	LogFormat string
	CacheDir  string
	S3        storage.S3Options
}

type convertFlags struct {
	batch.Job
	crlf     bool
	maxWords int
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return int(pipeline.CodeSuccess)
	}

	code := pipeline.CodeOf(err)
	var logged *loggedError
	if !errors.As(err, &logged) {
		fmt.Fprintf(stderr, "bsgen: %v (%s)\n", err, code)
	}
	return int(code)
}

// loggedError marks an error already reported through the logger.
type loggedError struct {
	err error
}

func (e *loggedError) Error() string { return e.err.Error() }
func (e *loggedError) Unwrap() error { return e.err }

func newRootCommand(logOut io.Writer) *cobra.Command {
	var global globalFlags
	var convert convertFlags

	root := &cobra.Command{
		Use:   "bsgen",
		Short: "Convert binary data into includeable hex listings or re-encoded binaries",
		Long: `bsgen reads a binary source as fixed-width words and writes them either as a
comma separated list of hexadecimal literals ready to be included in source code, or
as a binary file with a different byte order. The words can be run-length encoded or
decoded on the way.

Sources and destinations are local paths or s3://bucket/key locations. A .lz4 suffix
selects the LZ4 frame container.`,
		Example: `  bsgen --src logo.bin --dst logo.inc
  bsgen --src table.bin --dst table.rle --iw w --enc rle --df bin
  bsgen batch assets.yaml`,
		Args:          noStrayArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			job := convert.Job
			if cmd.Flags().Changed("crlf") {
				job.CRLF = &convert.crlf
			}
			if cmd.Flags().Changed("max-words") {
				job.MaxWords = &convert.maxWords
			}
			cfg, err := job.Config()
			if err != nil {
				return err
			}

			return withPipeline(global, logOut, func(logger *zap.Logger, p *pipeline.Pipeline) error {
				report, err := p.Run(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				logReport(logger, cfg.DestPath, report)
				return nil
			})
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", pipeline.ErrInvalidOption, err)
	})

	persistent := root.PersistentFlags()
	persistent.StringVar(&global.LogLevel, "log-level", "info", "log level: debug|info|warn|error")
	persistent.StringVar(&global.LogFormat, "log-format", "console", "log format: console|json")
	persistent.StringVar(&global.CacheDir, "cache-dir", "", "directory of the conversion cache (disabled when empty)")
	persistent.StringVar(&global.S3.Region, "s3-region", "", "region of the S3 bucket")
	persistent.StringVar(&global.S3.Endpoint, "s3-endpoint", "", "custom S3 endpoint URL")
	persistent.BoolVar(&global.S3.UsePathStyle, "s3-path-style", false, "use path style S3 addressing")

	flags := root.Flags()
	flags.StringVar(&convert.Source, "src", "", "source location")
	flags.StringVar(&convert.Dest, "dst", "", "destination location")
	flags.StringVar(&convert.Width, "iw", "", "word width: b|w|l (default b)")
	flags.StringVar(&convert.SourceEndian, "ie", "", "source byte order: b|l (default b)")
	flags.StringVar(&convert.DestEndian, "oe", "", "destination byte order: b|l (default b)")
	flags.StringVar(&convert.DestFormat, "df", "", "destination format: inc|bin (default inc)")
	flags.StringVar(&convert.Compression, "enc", "", "compression: raw|rle|rld (default raw)")
	flags.StringVar(&convert.Style, "style", "", "literal style of include output: byte|word (default byte)")
	flags.BoolVar(&convert.crlf, "crlf", false, "end include lines with CRLF")
	flags.IntVar(&convert.maxWords, "max-words", pipeline.DefaultMaxDecodedWords, "maximum number of words produced by rld (0 is unlimited)")
	flags.StringVar(&convert.SourceContainer, "src-container", "", "source container: auto|raw|lz4")
	flags.StringVar(&convert.DestContainer, "dst-container", "", "destination container: auto|raw|lz4")

	root.AddCommand(newBatchCommand(&global, logOut))
	return root
}

// noStrayArgs rejects tokens that are neither flags nor flag values.
func noStrayArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("%w: unexpected argument %q", pipeline.ErrInvalidOption, args[0])
	}
	return nil
}

func positionalArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%w: %s expects %d argument(s), got %d", pipeline.ErrInvalidConfig, cmd.Name(), n, len(args))
		}
		return nil
	}
}

// withPipeline builds the logger, the optional cache and the pipeline, then calls fn.
func withPipeline(global globalFlags, logOut io.Writer, fn func(*zap.Logger, *pipeline.Pipeline) error) error {
	logger, err := logging.New(global.LogLevel, global.LogFormat, logOut)
	if err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrInvalidOption, err)
	}
	defer func() {
		// Sync fails on terminals, nothing to do about it.
		_ = logger.Sync()
	}()

	sink := logging.Sink(logger)
	opts := []pipeline.Option{
		pipeline.WithSink(sink),
		pipeline.WithStore(storage.NewRouter(global.S3)),
	}

	if global.CacheDir != "" {
		c, err := cache.Open(global.CacheDir)
		if err != nil {
			sink.Emit(events.CacheFailure{Op: "open", Err: err})
		} else {
			defer func() {
				if err := c.Close(); err != nil {
					sink.Emit(events.CacheFailure{Op: "close", Err: err})
				}
			}()
			opts = append(opts, pipeline.WithCache(c))
		}
	}

	err = fn(logger, pipeline.New(opts...))
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	logger.Error("conversion failed", zap.Error(err), zap.Stringer("code", pipeline.CodeOf(err)))
	return &loggedError{err: err}
}

func logReport(logger *zap.Logger, dest string, report pipeline.Report) {
	logger.Info("conversion completed",
		zap.String("destination", dest),
		zap.Int("words_read", report.WordsRead),
		zap.Int("words_written", report.WordsWritten),
		zap.Int("bytes_written", report.BytesWritten),
		zap.Bool("cache_hit", report.CacheHit),
	)
}
