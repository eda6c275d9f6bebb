// Package batch runs a list of conversions described in a YAML job file.
//
//	defaults:
//	  iw: w
//	  df: inc
//	jobs:
//	  - src: assets/logo.bin
//	    dst: generated/logo.inc
//	    enc: rle
//	  - src: s3://firmware/tables/sine.bin
//	    dst: generated/sine.bin
//	    df: bin
//	    oe: l
//
// Every job field overrides the matching default. Relative local paths are resolved
// against the directory of the job file.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/ZaninAndrea/bsgen/internal/pipeline"
	"github.com/ZaninAndrea/bsgen/internal/storage"
	"github.com/ZaninAndrea/bsgen/pkg/framing"
	"github.com/ZaninAndrea/bsgen/pkg/include"
)

// Job uses the command line option names. Empty fields are unset.
type Job struct {
	Name            string `yaml:"name"`
	Source          string `yaml:"src"`
	Dest            string `yaml:"dst"`
	Width           string `yaml:"iw"`
	SourceEndian    string `yaml:"ie"`
	DestEndian      string `yaml:"oe"`
	DestFormat      string `yaml:"df"`
	Compression     string `yaml:"enc"`
	Style           string `yaml:"style"`
	CRLF            *bool  `yaml:"crlf"`
	MaxWords        *int   `yaml:"max_words"`
	SourceContainer string `yaml:"src_container"`
	DestContainer   string `yaml:"dst_container"`
}

type File struct {
	Defaults Job   `yaml:"defaults"`
	Jobs     []Job `yaml:"jobs"`

	dir string
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.dir = filepath.Dir(path)
	return f, nil
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", pipeline.ErrInvalidOption, err)
	}
	return &f, nil
}

// merge returns job with every unset field taken from defaults.
func merge(defaults, job Job) Job {
	pick := func(value, fallback string) string {
		if value != "" {
			return value
		}
		return fallback
	}

	merged := Job{
		Name:            job.Name,
		Source:          pick(job.Source, defaults.Source),
		Dest:            pick(job.Dest, defaults.Dest),
		Width:           pick(job.Width, defaults.Width),
		SourceEndian:    pick(job.SourceEndian, defaults.SourceEndian),
		DestEndian:      pick(job.DestEndian, defaults.DestEndian),
		DestFormat:      pick(job.DestFormat, defaults.DestFormat),
		Compression:     pick(job.Compression, defaults.Compression),
		Style:           pick(job.Style, defaults.Style),
		SourceContainer: pick(job.SourceContainer, defaults.SourceContainer),
		DestContainer:   pick(job.DestContainer, defaults.DestContainer),
		CRLF:            job.CRLF,
		MaxWords:        job.MaxWords,
	}
	if merged.CRLF == nil {
		merged.CRLF = defaults.CRLF
	}
	if merged.MaxWords == nil {
		merged.MaxWords = defaults.MaxWords
	}
	return merged
}

// Config converts a job into a pipeline configuration. Parse failures wrap
// pipeline.ErrInvalidOption.
func (j Job) Config() (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()
	cfg.SourcePath = j.Source
	cfg.DestPath = j.Dest

	var err error
	if j.Width != "" {
		width, parseErr := framing.ParseWidth(j.Width)
		err = multierr.Append(err, optionErr(parseErr))
		cfg.Width = width
	}
	if j.SourceEndian != "" {
		endian, parseErr := framing.ParseEndian(j.SourceEndian)
		err = multierr.Append(err, optionErr(parseErr))
		cfg.SourceEndian = endian
	}
	if j.DestEndian != "" {
		endian, parseErr := framing.ParseEndian(j.DestEndian)
		err = multierr.Append(err, optionErr(parseErr))
		cfg.DestEndian = endian
	}
	if j.DestFormat != "" {
		format, parseErr := pipeline.ParseFormat(j.DestFormat)
		err = multierr.Append(err, parseErr)
		cfg.DestFormat = format
	}
	if j.Compression != "" {
		mode, parseErr := pipeline.ParseMode(j.Compression)
		err = multierr.Append(err, parseErr)
		cfg.Compression = mode
	}
	if j.Style != "" {
		style, parseErr := include.ParseStyle(j.Style)
		err = multierr.Append(err, optionErr(parseErr))
		cfg.TextStyle = style
	}
	if j.SourceContainer != "" {
		container, parseErr := storage.ParseContainer(j.SourceContainer)
		err = multierr.Append(err, optionErr(parseErr))
		cfg.SourceContainer = container
	}
	if j.DestContainer != "" {
		container, parseErr := storage.ParseContainer(j.DestContainer)
		err = multierr.Append(err, optionErr(parseErr))
		cfg.DestContainer = container
	}
	if j.CRLF != nil && *j.CRLF {
		cfg.LineEnding = "\r\n"
	}
	if j.MaxWords != nil {
		cfg.MaxDecodedWords = *j.MaxWords
	}

	return cfg, err
}

func optionErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", pipeline.ErrInvalidOption, err)
}

// resolve makes a relative local path relative to the job file directory.
func (f *File) resolve(location string) string {
	if location == "" || f.dir == "" || storage.IsS3(location) || filepath.IsAbs(location) {
		return location
	}
	return filepath.Join(f.dir, location)
}

// Configs converts every job, in file order.
func (f *File) Configs() ([]pipeline.Config, error) {
	configs := make([]pipeline.Config, 0, len(f.Jobs))
	for i, job := range f.Jobs {
		cfg, err := merge(f.Defaults, job).Config()
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", f.jobName(i), err)
		}
		cfg.SourcePath = f.resolve(cfg.SourcePath)
		cfg.DestPath = f.resolve(cfg.DestPath)
		configs = append(configs, cfg)
	}
	return configs, nil
}

func (f *File) jobName(i int) string {
	if name := f.Jobs[i].Name; name != "" {
		return name
	}
	return fmt.Sprintf("#%d", i+1)
}

// Outcome is the result of one job.
type Outcome struct {
	Name   string
	Dest   string
	Report pipeline.Report
	Err    error
}

func (o Outcome) Code() pipeline.Code {
	return pipeline.CodeOf(o.Err)
}

// Run executes the jobs in order. A failing job does not stop the following ones. The
// returned error combines every failure and carries the code of the first one.
func (f *File) Run(ctx context.Context, p *pipeline.Pipeline) ([]Outcome, error) {
	configs, err := f.Configs()
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(configs))
	var runErr error
	for i, cfg := range configs {
		report, err := p.Run(ctx, cfg)
		outcomes = append(outcomes, Outcome{Name: f.jobName(i), Dest: cfg.DestPath, Report: report, Err: err})
		if err != nil {
			runErr = multierr.Append(runErr, fmt.Errorf("job %s: %w", f.jobName(i), err))
		}
	}
	if runErr != nil {
		return outcomes, &pipeline.CodedError{Err: runErr, Code: FirstCode(outcomes)}
	}
	return outcomes, nil
}

// FirstCode is the result code of the first failed job, or CodeSuccess.
func FirstCode(outcomes []Outcome) pipeline.Code {
	for _, o := range outcomes {
		if o.Err != nil {
			return o.Code()
		}
	}
	return pipeline.CodeSuccess
}
