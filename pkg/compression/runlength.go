package compression

import (
	"fmt"

	"github.com/ZaninAndrea/bsgen/pkg/events"
	"github.com/ZaninAndrea/bsgen/pkg/framing"
)

var ErrOutputLimit = fmt.Errorf("decoded output exceeds the configured limit")

var _ Encoder[framing.Word] = (*RunLengthEncoder)(nil)
var _ Decoder[framing.Word] = (*RunLengthDecoder)(nil)

// RunLengthEncoder turns a stream of words into (length, value) pairs. Run lengths use the
// same width as the data, so a run is flushed as soon as it reaches width.MaxValue().
type RunLengthEncoder struct {
	maxRunLength framing.Word
	sink         events.Sink

	started   bool
	runValue  framing.Word
	runLength framing.Word

	consumed int
	produced int
}

func NewRunLengthEncoder(width framing.Width, sink events.Sink) *RunLengthEncoder {
	return &RunLengthEncoder{
		maxRunLength: width.MaxValue(),
		sink:         events.OrDiscard(sink),
	}
}

// Encode consumes values and returns the pairs of every run closed by them.
func (e *RunLengthEncoder) Encode(values []framing.Word) []framing.Word {
	var pairs []framing.Word
	for _, v := range values {
		if !e.started || e.runLength == 0 {
			// A run flushed at the ceiling restarts here, whatever its value
			e.started = true
			e.runValue = v
			e.runLength = 1
		} else if e.runValue == v {
			e.runLength++
		}

		if e.runValue != v || e.runLength == e.maxRunLength {
			pairs = append(pairs, e.runLength, e.runValue)

			if e.runLength == e.maxRunLength {
				// The next word opens the new run, even when it repeats v
				e.runLength = 0
			} else {
				e.runLength = 1
			}
			e.runValue = v
		}
	}

	e.consumed += len(values)
	e.produced += len(pairs)
	return pairs
}

// Flush closes the open run. It always emits one trailing pair: (0, 0) for an empty input
// and (0, v) when the input ended right after a run hit the ceiling.
func (e *RunLengthEncoder) Flush() []framing.Word {
	pairs := []framing.Word{e.runLength, e.runValue}
	e.produced += len(pairs)

	e.sink.Emit(events.RunLengthEncoded{Before: e.consumed, After: e.produced})
	if e.produced > e.consumed {
		e.sink.Emit(events.Expanded{Before: e.consumed, After: e.produced})
	}

	return pairs
}

// RunLengthDecoder expands (length, value) pairs. A length split from its value across two
// Decode calls is carried over.
type RunLengthDecoder struct {
	sink  events.Sink
	limit int

	pending    framing.Word
	hasPending bool

	consumed int
	produced int
}

// NewRunLengthDecoder returns a decoder that fails with ErrOutputLimit once it would produce
// more than limit words. A limit of 0 disables the check.
func NewRunLengthDecoder(sink events.Sink, limit int) *RunLengthDecoder {
	return &RunLengthDecoder{
		sink:  events.OrDiscard(sink),
		limit: limit,
	}
}

func (d *RunLengthDecoder) Decode(encoded []framing.Word) ([]framing.Word, error) {
	decoded := []framing.Word{}
	d.consumed += len(encoded)

	for _, v := range encoded {
		if !d.hasPending {
			d.pending = v
			d.hasPending = true
			continue
		}

		runLength := uint64(d.pending)
		d.hasPending = false

		if d.limit > 0 && uint64(d.produced)+runLength > uint64(d.limit) {
			return decoded, fmt.Errorf("%w: %d words", ErrOutputLimit, d.limit)
		}

		for i := uint64(0); i < runLength; i++ {
			decoded = append(decoded, v)
		}
		d.produced += int(runLength)
	}

	return decoded, nil
}

// Flush reports a trailing run length that never received its value. It is dropped with
// a warning rather than failing the decode.
func (d *RunLengthDecoder) Flush() ([]framing.Word, error) {
	if d.hasPending {
		d.sink.Emit(events.DanglingRunLength{Length: uint32(d.pending)})
		d.hasPending = false
	}

	d.sink.Emit(events.RunLengthDecoded{Before: d.consumed, After: d.produced})
	return nil, nil
}

// EncodeRunLength encodes a whole sequence. The output length is always even.
func EncodeRunLength(values []framing.Word, width framing.Width, sink events.Sink) []framing.Word {
	encoder := NewRunLengthEncoder(width, sink)
	encoded := encoder.Encode(values)
	return append(encoded, encoder.Flush()...)
}

// DecodeRunLength decodes a whole sequence without an output limit.
func DecodeRunLength(encoded []framing.Word, sink events.Sink) []framing.Word {
	decoded, _ := DecodeRunLengthLimit(encoded, 0, sink)
	return decoded
}

func DecodeRunLengthLimit(encoded []framing.Word, limit int, sink events.Sink) ([]framing.Word, error) {
	decoder := NewRunLengthDecoder(sink, limit)
	decoded, err := decoder.Decode(encoded)
	if err != nil {
		return nil, err
	}

	tail, err := decoder.Flush()
	if err != nil {
		return nil, err
	}

	return append(decoded, tail...), nil
}
