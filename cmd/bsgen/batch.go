package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ZaninAndrea/bsgen/internal/batch"
	"github.com/ZaninAndrea/bsgen/internal/pipeline"
)

func newBatchCommand(global *globalFlags, logOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "batch FILE",
		Short: "Run every conversion listed in a YAML job file",
		Long: `batch runs the jobs of a YAML file in order. Each job accepts the options of the
root command under their flag names (src, dst, iw, ie, oe, df, enc, style, crlf,
max_words, src_container, dst_container) and inherits unset ones from the defaults
section. A failing job does not stop the others; the exit code is the code of the
first failure.`,
		Args: positionalArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := batch.Load(args[0])
			if err != nil {
				if errors.Is(err, pipeline.ErrInvalidOption) {
					return err
				}
				return fmt.Errorf("%w: %w", pipeline.ErrInvalidConfig, err)
			}

			return withPipeline(*global, logOut, func(logger *zap.Logger, p *pipeline.Pipeline) error {
				outcomes, err := f.Run(cmd.Context(), p)
				for _, o := range outcomes {
					if o.Err != nil {
						logger.Warn("job failed", zap.String("job", o.Name), zap.Error(o.Err), zap.Stringer("code", o.Code()))
						continue
					}
					logReport(logger.With(zap.String("job", o.Name)), o.Dest, o.Report)
				}
				return err
			})
		},
	}
}
