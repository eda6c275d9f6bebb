// Package include renders words as a listing of hexadecimal literals that can be pasted
// into an initializer in C-like source code.
//
// Tokens are separated by commas. Every line except the last one ends with a comma, so
// consecutive lines stay a single valid initializer list. No brackets or declarations are
// emitted.
package include

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/ZaninAndrea/bsgen/pkg/framing"
)

// Style selects how a word is split into tokens.
type Style int

const (
	// ByteTokens renders every byte of a word as its own 0x%02x literal.
	ByteTokens Style = iota
	// WordTokens renders a whole word as one literal with 2*width hex digits.
	WordTokens
)

var ErrInvalidStyle = fmt.Errorf("invalid text style")

func (s Style) String() string {
	switch s {
	case ByteTokens:
		return "byte"
	case WordTokens:
		return "word"
	default:
		return fmt.Sprintf("invalid(%d)", int(s))
	}
}

func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "byte", "bytes":
		return ByteTokens, nil
	case "word", "words":
		return WordTokens, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidStyle, s)
	}
}

type Options struct {
	Style Style
	// LineEnding defaults to "\n".
	LineEnding string
}

// TokensPerLine is the number of literals on a full line for the given width.
func TokensPerLine(width framing.Width) int {
	switch width {
	case framing.Width2:
		return 12
	case framing.Width4:
		return 8
	default:
		return 16
	}
}

// Formatter writes the listing incrementally. Errors from the underlying writer are sticky:
// once a write fails every later call returns the same error.
type Formatter struct {
	w       *bufio.Writer
	width   framing.Width
	endian  framing.Endian
	style   Style
	eol     string
	perLine int

	tokens int
	words  int
	err    error

	word  [4]byte
	token []byte
}

func NewFormatter(w io.Writer, width framing.Width, endian framing.Endian, opts Options) *Formatter {
	eol := opts.LineEnding
	if eol == "" {
		eol = "\n"
	}

	return &Formatter{
		w:       bufio.NewWriter(w),
		width:   width,
		endian:  endian,
		style:   opts.Style,
		eol:     eol,
		perLine: TokensPerLine(width),
		token:   make([]byte, 0, 2+2*4),
	}
}

func (f *Formatter) WriteWord(v framing.Word) error {
	if f.err != nil {
		return f.err
	}

	framing.PutWord(f.word[:], v, f.width, f.endian)
	raw := f.word[:f.width]

	if f.style == WordTokens {
		f.writeToken(raw)
	} else {
		for i := range raw {
			f.writeToken(raw[i : i+1])
		}
	}

	f.words++
	return f.err
}

func (f *Formatter) WriteWords(words []framing.Word) error {
	for _, v := range words {
		if err := f.WriteWord(v); err != nil {
			return err
		}
	}
	return nil
}

func (f *Formatter) writeToken(raw []byte) {
	if f.tokens > 0 {
		if f.tokens%f.perLine == 0 {
			f.writeString(",")
			f.writeString(f.eol)
		} else {
			f.writeString(",")
		}
	}

	f.token = append(f.token[:0], '0', 'x')
	f.token = hex.AppendEncode(f.token, raw)
	if _, err := f.w.Write(f.token); err != nil && f.err == nil {
		f.err = err
	}
	f.tokens++
}

func (f *Formatter) writeString(s string) {
	if _, err := f.w.WriteString(s); err != nil && f.err == nil {
		f.err = err
	}
}

// Words is the number of words written so far.
func (f *Formatter) Words() int {
	return f.words
}

// Flush writes any buffered text to the underlying writer.
func (f *Formatter) Flush() error {
	if f.err != nil {
		return f.err
	}
	f.err = f.w.Flush()
	return f.err
}

// Write renders words to w.
func Write(w io.Writer, words []framing.Word, width framing.Width, endian framing.Endian, opts Options) error {
	formatter := NewFormatter(w, width, endian, opts)
	if err := formatter.WriteWords(words); err != nil {
		return err
	}
	return formatter.Flush()
}

// Format renders words to a string.
func Format(words []framing.Word, width framing.Width, endian framing.Endian, opts Options) string {
	var sb strings.Builder
	// strings.Builder never fails
	_ = Write(&sb, words, width, endian, opts)
	return sb.String()
}
