package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with typed structured fields.
type Logger struct {
	zl zerolog.Logger
}

type Config struct {
	Level      string // debug, info, warn, error, fatal, panic
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
	case "stdout", "":
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

	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
			NoColor:    false,
		}
	}

	logger := zerolog.New(output).
		With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()

	return &Logger{zl: logger}, nil
}

func (l *Logger) Debug(msg string, fields ...Field) { l.emit(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.emit(l.zl.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.emit(l.zl.Warn(), msg, fields) }
func (l *Logger) Error(msg string, fields ...Field) { l.emit(l.zl.Error(), msg, fields) }
func (l *Logger) Fatal(msg string, fields ...Field) { l.emit(l.zl.Fatal(), msg, fields) }

func (l *Logger) emit(event *zerolog.Event, msg string, fields []Field) {
	for _, field := range fields {
		field.AddTo(event)
	}
	event.Msg(msg)
}

// Field types for structured logging.
type Field interface {
	AddTo(event *zerolog.Event)
}

type stringField struct {
	key string
	val string
}

func (f stringField) AddTo(e *zerolog.Event) { e.Str(f.key, f.val) }

type stringsField struct {
	key  string
	vals []string
}

func (f stringsField) AddTo(e *zerolog.Event) { e.Strs(f.key, f.vals) }

type intField struct {
	key string
	val int
}

func (f intField) AddTo(e *zerolog.Event) { e.Int(f.key, f.val) }

type float64Field struct {
	key string
	val float64
}

func (f float64Field) AddTo(e *zerolog.Event) { e.Float64(f.key, f.val) }

type durationField struct {
	key string
	val time.Duration
}

func (f durationField) AddTo(e *zerolog.Event) { e.Dur(f.key, f.val) }

type errorField struct {
	err error
}

func (f errorField) AddTo(e *zerolog.Event) { e.Err(f.err) }

type anyField struct {
	key string
	val interface{}
}

func (f anyField) AddTo(e *zerolog.Event) { e.Interface(f.key, f.val) }

func String(key, val string) Field              { return stringField{key, val} }
func Strings(key string, vals []string) Field   { return stringsField{key, vals} }
func Int(key string, val int) Field             { return intField{key, val} }
func Float64(key string, val float64) Field     { return float64Field{key, val} }
func Duration(key string, d time.Duration) Field { return durationField{key, d} }
func Error(err error) Field                     { return errorField{err} }
func Any(key string, val interface{}) Field     { return anyField{key, val} }
