package framing

import (
	"fmt"
	"io"
)

// Writer writes fixed-width words to an underlying writer and tracks the byte offset.
type Writer struct {
	w      io.Writer
	width  Width
	endian Endian
	offset uint64
	buf    [4]byte
}

func NewWriter(w io.Writer, width Width, endian Endian) (*Writer, error) {
	if !width.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}
	return &Writer{w: w, width: width, endian: endian}, nil
}

// Write writes raw bytes with no framing.
func (fw *Writer) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	fw.offset += uint64(n)
	return n, err
}

func (fw *Writer) Offset() uint64 {
	return fw.offset
}

// WriteWord writes v as exactly width bytes.
func (fw *Writer) WriteWord(v Word) error {
	PutWord(fw.buf[:], v, fw.width, fw.endian)
	n, err := fw.Write(fw.buf[:fw.width])
	if err == nil && n != int(fw.width) {
		return io.ErrShortWrite
	}
	return err
}

func (fw *Writer) WriteWords(words []Word) error {
	for _, w := range words {
		if err := fw.WriteWord(w); err != nil {
			return err
		}
	}
	return nil
}
