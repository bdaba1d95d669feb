package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	zl     zerolog.Logger
	base   []Field
	digest *Digest
}

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer
	switch cfg.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		output = file
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}
	zerolog.TimeFieldFormat = timeFormat

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: timeFormat}
	}

	zl := zerolog.New(output).
		With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()

	return &Logger{zl: zl}, nil
}

// Nop returns a logger that discards everything. Used by tests and as a
// fallback when a component is built without a logger.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger that attaches fields to every entry.
func (l *Logger) With(fields ...Field) *Logger {
	base := make([]Field, 0, len(l.base)+len(fields))
	base = append(base, l.base...)
	base = append(base, fields...)
	return &Logger{zl: l.zl, base: base, digest: l.digest}
}

func (l *Logger) emit(event *zerolog.Event, msg string, fields []Field) {
	for _, f := range l.base {
		f.AddTo(event)
	}
	for _, f := range fields {
		f.AddTo(event)
	}
	event.Msg(msg)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.emit(l.zl.Info(), msg, fields)
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.emit(l.zl.Debug(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.emit(l.zl.Warn(), msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.emit(l.zl.Error(), msg, fields)
	l.toDigest(msg, fields)
}

func (l *Logger) toDigest(msg string, fields []Field) {
	if l.digest == nil {
		return
	}
	caller := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		if i := strings.Index(file, "DCAClock"); i >= 0 {
			file = file[i+len("DCAClock"):]
		}
		caller = fmt.Sprintf("%s:%d", file, line)
	}
	kv := make(map[string]interface{}, len(l.base)+len(fields))
	for _, f := range l.base {
		k, v := f.GetKeyValue()
		kv[k] = v
	}
	for _, f := range fields {
		k, v := f.GetKeyValue()
		kv[k] = v
	}
	l.digest.Add(msg, kv, caller)
}

// AttachDigest routes error entries into an aggregating digest.
func (l *Logger) AttachDigest(cfg *DigestConfig) {
	if l.digest != nil {
		l.digest.Close()
	}
	l.digest = NewDigest(cfg)
}

// DetachDigest flushes and stops the digest, if any.
func (l *Logger) DetachDigest() {
	if l.digest != nil {
		l.digest.Close()
		l.digest = nil
	}
}

// Field types for structured logging.
type Field interface {
	AddTo(event *zerolog.Event)
	GetKeyValue() (string, interface{})
}

type StringField struct {
	Key   string
	Value string
}

func (f StringField) AddTo(event *zerolog.Event) { event.Str(f.Key, f.Value) }

func (f StringField) GetKeyValue() (string, interface{}) { return f.Key, f.Value }

type IntField struct {
	Key   string
	Value int
}

func (f IntField) AddTo(event *zerolog.Event) { event.Int(f.Key, f.Value) }

func (f IntField) GetKeyValue() (string, interface{}) { return f.Key, f.Value }

type Int64Field struct {
	Key   string
	Value int64
}

func (f Int64Field) AddTo(event *zerolog.Event) { event.Int64(f.Key, f.Value) }

func (f Int64Field) GetKeyValue() (string, interface{}) { return f.Key, f.Value }

type FloatField struct {
	Key   string
	Value float64
}

func (f FloatField) AddTo(event *zerolog.Event) { event.Float64(f.Key, f.Value) }

func (f FloatField) GetKeyValue() (string, interface{}) { return f.Key, f.Value }

type ErrorField struct {
	Value error
}

func (f ErrorField) AddTo(event *zerolog.Event) { event.Err(f.Value) }

func (f ErrorField) GetKeyValue() (string, interface{}) {
	if f.Value == nil {
		return "error", ""
	}
	return "error", f.Value.Error()
}

type BoolField struct {
	Key   string
	Value bool
}

func (f BoolField) AddTo(event *zerolog.Event) { event.Bool(f.Key, f.Value) }

func (f BoolField) GetKeyValue() (string, interface{}) { return f.Key, f.Value }

// --- Field constructors ---

func String(key, value string) Field { return StringField{Key: key, Value: value} }

func Int(key string, value int) Field { return IntField{Key: key, Value: value} }

func Int64(key string, value int64) Field { return Int64Field{Key: key, Value: value} }

func Float(key string, value float64) Field { return FloatField{Key: key, Value: value} }

func Error(err error) Field { return ErrorField{Value: err} }

func Bool(key string, value bool) Field { return BoolField{Key: key, Value: value} }

// Duration logs milliseconds.
func Duration(key string, value time.Duration) Field {
	return Int64Field{Key: key, Value: value.Milliseconds()}
}

func Strings(key string, value []string) Field {
	return String(key, strings.Join(value, ", "))
}

// Stringer covers decimal amounts, times and other fmt.Stringer values.
func Stringer(key string, value fmt.Stringer) Field {
	if value == nil {
		return String(key, "")
	}
	return String(key, value.String())
}
