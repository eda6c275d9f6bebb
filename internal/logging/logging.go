// Package logging builds the zap logger used by the command line and adapts pipeline
// events into structured log entries.
package logging

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ZaninAndrea/bsgen/pkg/events"
)

var ErrInvalidLevel = fmt.Errorf("invalid log level")
var ErrInvalidFormat = fmt.Errorf("invalid log format")

// New creates a logger writing to w. format is "console" (or "text") or "json".
func New(level, format string, w io.Writer) (*zap.Logger, error) {
	var lvl zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = zapcore.DebugLevel
	case "", "info":
		lvl = zapcore.InfoLevel
	case "warn", "warning":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidLevel, level)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = ""

	var encoder zapcore.Encoder
	switch strings.ToLower(format) {
	case "", "console", "text":
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), zap.NewAtomicLevelAt(lvl))
	return zap.New(core), nil
}

// Sink logs every event: informational events at Info, warnings at Warn.
func Sink(logger *zap.Logger) events.Sink {
	return events.SinkFunc(func(e events.Event) {
		fields := Fields(e)
		if e.Severity() == events.Warning {
			logger.Warn(e.Message(), fields...)
		} else {
			logger.Info(e.Message(), fields...)
		}
	})
}

// Fields returns the structured attributes of an event.
func Fields(e events.Event) []zap.Field {
	switch ev := e.(type) {
	case events.SourceOpened:
		return []zap.Field{zap.String("source", ev.Location)}
	case events.WordsRead:
		return []zap.Field{zap.Int("words", ev.Count)}
	case events.TruncatedInput:
		return []zap.Field{zap.Int("dropped_bytes", ev.DroppedBytes)}
	case events.RunLengthEncoded:
		return []zap.Field{zap.Int("before", ev.Before), zap.Int("after", ev.After)}
	case events.Expanded:
		return []zap.Field{zap.Int("before", ev.Before), zap.Int("after", ev.After)}
	case events.RunLengthDecoded:
		return []zap.Field{zap.Int("before", ev.Before), zap.Int("after", ev.After)}
	case events.DanglingRunLength:
		return []zap.Field{zap.Uint32("run_length", ev.Length)}
	case events.DestinationOpened:
		return []zap.Field{zap.String("destination", ev.Location)}
	case events.DestinationOverwrite:
		return []zap.Field{zap.String("destination", ev.Location)}
	case events.WordsWritten:
		return []zap.Field{zap.Int("words", ev.Count), zap.Int("bytes", ev.Bytes)}
	case events.CacheHit:
		return []zap.Field{zap.String("key", ev.Key)}
	case events.CacheFailure:
		return []zap.Field{zap.String("op", ev.Op), zap.Error(ev.Err)}
	default:
		return nil
	}
}
