package framing

import (
	"bytes"
	"fmt"

	"github.com/ZaninAndrea/bsgen/pkg/events"
)

// PutWord writes the low width bytes of v into dst in the given byte order.
// dst must hold at least width bytes. Endianness is ignored for single bytes.
func PutWord(dst []byte, v Word, width Width, endian Endian) {
	switch width {
	case Width1:
		dst[0] = byte(v)
	case Width2:
		endian.byteOrder().PutUint16(dst, uint16(v))
	case Width4:
		endian.byteOrder().PutUint32(dst, uint32(v))
	default:
		panic(fmt.Sprintf("framing: %v", width))
	}
}

// WordFromBytes combines the first width bytes of b into a Word.
func WordFromBytes(b []byte, width Width, endian Endian) Word {
	switch width {
	case Width1:
		return Word(b[0])
	case Width2:
		return Word(endian.byteOrder().Uint16(b))
	case Width4:
		return Word(endian.byteOrder().Uint32(b))
	default:
		panic(fmt.Sprintf("framing: %v", width))
	}
}

// Encode serializes every word to exactly width bytes, concatenated without separators.
// It panics on an invalid width.
func Encode(words []Word, width Width, endian Endian) []byte {
	var buf bytes.Buffer
	fw, err := NewWriter(&buf, width, endian)
	if err != nil {
		panic(fmt.Sprintf("framing: %v", err))
	}

	buf.Grow(len(words) * int(width))
	// bytes.Buffer never fails
	_ = fw.WriteWords(words)
	return buf.Bytes()
}

// Decode splits data into words. Trailing bytes that cannot fill a whole word are dropped
// and reported to sink as events.TruncatedInput; the words before them are still returned.
func Decode(data []byte, width Width, endian Endian, sink events.Sink) ([]Word, error) {
	return ReadAll(bytes.NewReader(data), width, endian, sink)
}
