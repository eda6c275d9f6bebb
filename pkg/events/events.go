// Package events defines the structured notifications emitted by the conversion stages.
//
// Stages never print. Every informational or recoverable condition is reported to a
// caller-supplied Sink, which decides how (or whether) to present it.
package events

import "fmt"

type Severity int

const (
	Info Severity = iota
	Warning
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

type Event interface {
	Severity() Severity
	Message() string
}

// Sink receives events in the order they are produced.
type Sink interface {
	Emit(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

type discard struct{}

func (discard) Emit(Event) {}

// Discard drops every event.
var Discard Sink = discard{}

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}

// Recorder keeps every emitted event in memory.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(e Event) {
	r.Events = append(r.Events, e)
}

// Warnings returns the recorded events with Warning severity.
func (r *Recorder) Warnings() []Event {
	var out []Event
	for _, e := range r.Events {
		if e.Severity() == Warning {
			out = append(out, e)
		}
	}
	return out
}

// Find returns the first recorded event of type T.
func Find[T Event](r *Recorder) (T, bool) {
	for _, e := range r.Events {
		if typed, ok := e.(T); ok {
			return typed, true
		}
	}
	var zero T
	return zero, false
}

type SourceOpened struct {
	Location string
}

func (SourceOpened) Severity() Severity { return Info }
func (e SourceOpened) Message() string {
	return fmt.Sprintf("the source %s has been opened", e.Location)
}

type WordsRead struct {
	Count int
}

func (WordsRead) Severity() Severity { return Info }
func (e WordsRead) Message() string {
	return fmt.Sprintf("%d piece(s) of data have been read", e.Count)
}

// TruncatedInput reports trailing source bytes that could not fill a whole word.
type TruncatedInput struct {
	DroppedBytes int
}

func (TruncatedInput) Severity() Severity { return Warning }
func (e TruncatedInput) Message() string {
	return fmt.Sprintf("the source is not a whole number of words, the last %d byte(s) will not be read", e.DroppedBytes)
}

type Passthrough struct{}

func (Passthrough) Severity() Severity { return Info }
func (Passthrough) Message() string    { return "no data will be encoded" }

type RunLengthEncoded struct {
	Before int
	After  int
}

func (RunLengthEncoded) Severity() Severity { return Info }
func (e RunLengthEncoded) Message() string {
	return fmt.Sprintf("%d piece(s) of data have been encoded into %d piece(s)", e.Before, e.After)
}

// Expanded is informational: run-length encoding produced more words than it consumed.
type Expanded struct {
	Before int
	After  int
}

func (Expanded) Severity() Severity { return Info }
func (e Expanded) Message() string {
	return fmt.Sprintf("encoding has increased the number of pieces of data from %d to %d", e.Before, e.After)
}

type RunLengthDecoded struct {
	Before int
	After  int
}

func (RunLengthDecoded) Severity() Severity { return Info }
func (e RunLengthDecoded) Message() string {
	return fmt.Sprintf("%d piece(s) of data have been decoded into %d piece(s)", e.Before, e.After)
}

// DanglingRunLength reports a run length at the end of an encoded stream with no value after it.
type DanglingRunLength struct {
	Length uint32
}

func (DanglingRunLength) Severity() Severity { return Warning }
func (e DanglingRunLength) Message() string {
	return fmt.Sprintf("the encoded data has an odd length, the trailing run length %d will be missing", e.Length)
}

type DestinationOpened struct {
	Location string
}

func (DestinationOpened) Severity() Severity { return Info }
func (e DestinationOpened) Message() string {
	return fmt.Sprintf("the destination %s has been opened", e.Location)
}

type DestinationOverwrite struct {
	Location string
}

func (DestinationOverwrite) Severity() Severity { return Warning }
func (e DestinationOverwrite) Message() string {
	return fmt.Sprintf("%s already exists and will be overwritten", e.Location)
}

type WordsWritten struct {
	Count int
	Bytes int
}

func (WordsWritten) Severity() Severity { return Info }
func (e WordsWritten) Message() string {
	return fmt.Sprintf("%d piece(s) of data have been written (%d bytes)", e.Count, e.Bytes)
}

type CacheHit struct {
	Key string
}

func (CacheHit) Severity() Severity { return Info }
func (e CacheHit) Message() string {
	return fmt.Sprintf("output found in the conversion cache (%s)", e.Key)
}

// CacheFailure is a cache read or write that failed; the conversion goes on without the cache.
type CacheFailure struct {
	Op  string
	Err error
}

func (CacheFailure) Severity() Severity { return Warning }
func (e CacheFailure) Message() string {
	return fmt.Sprintf("conversion cache %s failed: %v", e.Op, e.Err)
}
