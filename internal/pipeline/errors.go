package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOption = fmt.Errorf("the specified option is invalid")
	ErrInvalidConfig = fmt.Errorf("the specified argument is invalid")
	ErrSource        = fmt.Errorf("source fatal error")
	ErrDestination   = fmt.Errorf("destination fatal error")
)

// Code is the process-level result of a run.
type Code int

const (
	CodeSuccess         Code = 0x0000
	CodeOptionInvalid   Code = 0x0001
	CodeArgumentInvalid Code = 0x0002
	CodeSourceFatal     Code = 0x0012
	CodeDestFatal       Code = 0x0021
	CodeUnknown         Code = 0xffff
)

func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeOptionInvalid:
		return "option invalid"
	case CodeArgumentInvalid:
		return "argument invalid"
	case CodeSourceFatal:
		return "source fatal error"
	case CodeDestFatal:
		return "destination fatal error"
	default:
		return fmt.Sprintf("unknown(%#04x)", int(c))
	}
}

// CodedError pins the result code of an error that combines several failures.
type CodedError struct {
	Err  error
	Code Code
}

func (e *CodedError) Error() string { return e.Err.Error() }
func (e *CodedError) Unwrap() error { return e.Err }

// CodeOf maps an error returned by Run to its result code. Invalid options take
// precedence over invalid arguments.
func CodeOf(err error) Code {
	var coded *CodedError
	switch {
	case err == nil:
		return CodeSuccess
	case errors.As(err, &coded):
		return coded.Code
	case errors.Is(err, ErrInvalidOption):
		return CodeOptionInvalid
	case errors.Is(err, ErrInvalidConfig):
		return CodeArgumentInvalid
	case errors.Is(err, ErrSource):
		return CodeSourceFatal
	case errors.Is(err, ErrDestination):
		return CodeDestFatal
	default:
		return CodeUnknown
	}
}
