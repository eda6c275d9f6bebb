// Package framing converts between raw byte streams and sequences of fixed-width words.
package framing

import (
	"encoding/binary"
	"fmt"
	"strings"
)

var ErrInvalidWidth = fmt.Errorf("invalid word width")
var ErrInvalidEndian = fmt.Errorf("invalid endianness")

// Word is one unsigned value of at most 4 bytes.
type Word uint32

// Width is the number of bytes of a Word in the stream: 1, 2 or 4.
type Width int

const (
	Width1 Width = 1
	Width2 Width = 2
	Width4 Width = 4
)

func (w Width) Valid() bool {
	return w == Width1 || w == Width2 || w == Width4
}

// MaxValue is the largest value representable in w bytes.
func (w Width) MaxValue() Word {
	return Word(uint64(1)<<(8*uint(w)) - 1)
}

func (w Width) String() string {
	switch w {
	case Width1:
		return "1 (single byte)"
	case Width2:
		return "2 (word)"
	case Width4:
		return "4 (long)"
	default:
		return fmt.Sprintf("invalid(%d)", int(w))
	}
}

// ParseWidth accepts the short option spelling (b, w, l), the byte count or the long name.
func ParseWidth(s string) (Width, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "b", "1", "byte":
		return Width1, nil
	case "w", "2", "word":
		return Width2, nil
	case "l", "4", "long":
		return Width4, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidWidth, s)
	}
}

type Endian int

const (
	BigEndian Endian = iota
	LittleEndian
)

func (e Endian) String() string {
	switch e {
	case BigEndian:
		return "big"
	case LittleEndian:
		return "little"
	default:
		return fmt.Sprintf("invalid(%d)", int(e))
	}
}

func (e Endian) byteOrder() binary.ByteOrder {
	if e == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func ParseEndian(s string) (Endian, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "b", "big":
		return BigEndian, nil
	case "l", "little":
		return LittleEndian, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidEndian, s)
	}
}
