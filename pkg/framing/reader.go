package framing

import (
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/ZaninAndrea/bsgen/pkg/containers"
	"github.com/ZaninAndrea/bsgen/pkg/events"
)

// TruncatedError is returned when the stream ends in the middle of a word.
type TruncatedError struct {
	DroppedBytes int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("stream ended %d byte(s) into a word", e.DroppedBytes)
}

// Reader reads fixed-width words from an underlying reader.
type Reader struct {
	r      io.Reader
	width  Width
	endian Endian
	buf    [4]byte
}

func NewReader(r io.Reader, width Width, endian Endian) (*Reader, error) {
	if !width.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}
	return &Reader{r: r, width: width, endian: endian}, nil
}

// ReadWord reads the next word. It returns io.EOF when the stream ends on a word boundary
// and a *TruncatedError when it ends inside a word. Any other error comes from the
// underlying reader.
func (r *Reader) ReadWord() (Word, error) {
	n, err := io.ReadFull(r.r, r.buf[:r.width])
	switch {
	case err == io.EOF:
		return 0, io.EOF
	case err == io.ErrUnexpectedEOF:
		return 0, &TruncatedError{DroppedBytes: n}
	case err != nil:
		return 0, err
	}

	return WordFromBytes(r.buf[:], r.width, r.endian), nil
}

// Words returns an iterator over the remaining words. The sequence ends silently at a
// word boundary; a truncated tail or a read failure is yielded as a final Err result.
func (r *Reader) Words() iter.Seq[containers.Result[Word]] {
	return func(yield func(containers.Result[Word]) bool) {
		for {
			w, err := r.ReadWord()
			if err == io.EOF {
				return
			} else if err != nil {
				yield(containers.Err[Word](err))
				return
			}

			if !yield(containers.Ok(w)) {
				return
			}
		}
	}
}

// ReadAll reads words until the stream is exhausted. A truncated tail is not an error:
// it is reported to sink and the words read so far are returned.
func ReadAll(r io.Reader, width Width, endian Endian, sink events.Sink) ([]Word, error) {
	reader, err := NewReader(r, width, endian)
	if err != nil {
		return nil, err
	}

	words, err := containers.Collect(reader.Words())
	if words == nil {
		words = []Word{}
	}

	var truncated *TruncatedError
	if errors.As(err, &truncated) {
		events.OrDiscard(sink).Emit(events.TruncatedInput{DroppedBytes: truncated.DroppedBytes})
		return words, nil
	} else if err != nil {
		return nil, err
	}

	return words, nil
}
