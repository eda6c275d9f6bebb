package pipeline

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/ZaninAndrea/bsgen/internal/storage"
	"github.com/ZaninAndrea/bsgen/pkg/framing"
	"github.com/ZaninAndrea/bsgen/pkg/include"
)

// Format is the representation written to the destination.
type Format int

const (
	FormatInclude Format = iota
	FormatBinary
)

func (f Format) String() string {
	switch f {
	case FormatInclude:
		return "include"
	case FormatBinary:
		return "binary"
	default:
		return fmt.Sprintf("invalid(%d)", int(f))
	}
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inc", "include", "text":
		return FormatInclude, nil
	case "bin", "binary":
		return FormatBinary, nil
	default:
		return 0, fmt.Errorf("%w: destination format %q", ErrInvalidOption, s)
	}
}

// Mode selects the run-length transform applied between reading and writing.
type Mode int

const (
	ModeNone Mode = iota
	ModeEncode
	ModeDecode
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "no encode"
	case ModeEncode:
		return "run-length encode"
	case ModeDecode:
		return "run-length decode"
	default:
		return fmt.Sprintf("invalid(%d)", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raw", "none":
		return ModeNone, nil
	case "rle", "encode":
		return ModeEncode, nil
	case "rld", "decode":
		return ModeDecode, nil
	default:
		return 0, fmt.Errorf("%w: compression type %q", ErrInvalidOption, s)
	}
}

// Config describes one conversion.
type Config struct {
	SourcePath   string
	DestPath     string
	Width        framing.Width
	SourceEndian framing.Endian
	DestEndian   framing.Endian
	DestFormat   Format
	Compression  Mode

	// TextStyle and LineEnding only apply to FormatInclude.
	TextStyle  include.Style
	LineEnding string

	// MaxDecodedWords caps run-length decoding output. 0 means no limit.
	MaxDecodedWords int

	SourceContainer storage.Container
	DestContainer   storage.Container
}

// DefaultMaxDecodedWords bounds run-length decoding unless configured otherwise: 16Mi words,
// 64 MiB of 4-byte words.
const DefaultMaxDecodedWords = 1 << 24

func DefaultConfig() Config {
	return Config{
		Width:           framing.Width1,
		SourceEndian:    framing.BigEndian,
		DestEndian:      framing.BigEndian,
		DestFormat:      FormatInclude,
		Compression:     ModeNone,
		TextStyle:       include.ByteTokens,
		LineEnding:      "\n",
		MaxDecodedWords: DefaultMaxDecodedWords,
	}
}

// Validate reports every problem found. Enumeration values out of range wrap
// ErrInvalidOption, missing paths wrap ErrInvalidConfig.
func (c Config) Validate() error {
	var err error

	if !c.Width.Valid() {
		err = multierr.Append(err, fmt.Errorf("%w: data byte width %d", ErrInvalidOption, int(c.Width)))
	}
	if c.SourceEndian != framing.BigEndian && c.SourceEndian != framing.LittleEndian {
		err = multierr.Append(err, fmt.Errorf("%w: source endian %v", ErrInvalidOption, c.SourceEndian))
	}
	if c.DestEndian != framing.BigEndian && c.DestEndian != framing.LittleEndian {
		err = multierr.Append(err, fmt.Errorf("%w: destination endian %v", ErrInvalidOption, c.DestEndian))
	}
	if c.DestFormat != FormatInclude && c.DestFormat != FormatBinary {
		err = multierr.Append(err, fmt.Errorf("%w: destination format %v", ErrInvalidOption, c.DestFormat))
	}
	if c.Compression < ModeNone || c.Compression > ModeDecode {
		err = multierr.Append(err, fmt.Errorf("%w: compression type %v", ErrInvalidOption, c.Compression))
	}
	if c.TextStyle != include.ByteTokens && c.TextStyle != include.WordTokens {
		err = multierr.Append(err, fmt.Errorf("%w: text style %v", ErrInvalidOption, c.TextStyle))
	}
	if c.MaxDecodedWords < 0 {
		err = multierr.Append(err, fmt.Errorf("%w: negative decode limit %d", ErrInvalidOption, c.MaxDecodedWords))
	}

	if c.SourcePath == "" {
		err = multierr.Append(err, fmt.Errorf("%w: no source file is specified", ErrInvalidConfig))
	}
	if c.DestPath == "" {
		err = multierr.Append(err, fmt.Errorf("%w: no destination file is specified", ErrInvalidConfig))
	}

	return err
}

// Fingerprint summarizes every setting that affects the rendered output bytes.
// Paths and containers are excluded: they change where bytes go, not what they are.
func (c Config) Fingerprint() string {
	return fmt.Sprintf("v1 width=%d ie=%v oe=%v df=%v enc=%v style=%v eol=%q max=%d",
		int(c.Width), c.SourceEndian, c.DestEndian, c.DestFormat, c.Compression, c.TextStyle, c.LineEnding, c.MaxDecodedWords)
}
