// Package logger wraps zerolog behind a small process-wide facade.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level represents the logging level
type Level string

// Available log levels
const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// Format represents the logging format
type Format string

// Available log formats
const (
	FormatJSON   Format = "json"
	FormatPretty Format = "pretty"
)

// Fields are attached to a single log entry.
type Fields map[string]interface{}

// Config holds logger configuration
type Config struct {
	// Level sets the minimum log level to output
	Level Level `yaml:"level"`
	// Format defines the output format (json, pretty)
	Format Format `yaml:"format"`
	// Output defines where logs are written (stdout, stderr, file)
	Output string `yaml:"output"`
	// File is the file path when Output is set to "file"
	File string `yaml:"file,omitempty"`
	// IncludeCaller adds caller information to log entries
	IncludeCaller bool `yaml:"includeCaller"`
	// TimeFormat specifies the time format for logs
	TimeFormat string `yaml:"timeFormat,omitempty"`
	// DisableTimestamp disables adding timestamp to logs
	DisableTimestamp bool `yaml:"disableTimestamp,omitempty"`
}

// DefaultConfig is used when nothing was initialized explicitly.
var DefaultConfig = Config{
	Level:      LevelInfo,
	Format:     FormatJSON,
	Output:     "stderr",
	TimeFormat: time.RFC3339,
}

var (
	mu       sync.RWMutex
	instance zerolog.Logger
	ready    bool
)

// ParseLevel maps a Level onto zerolog, defaulting to info.
func ParseLevel(l Level) zerolog.Level {
	switch Level(strings.ToLower(string(l))) {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func withDefaults(cfg Config) Config {
	if cfg.Level == "" {
		cfg.Level = DefaultConfig.Level
	}
	if cfg.Format == "" {
		cfg.Format = DefaultConfig.Format
	}
	if cfg.Output == "" {
		cfg.Output = DefaultConfig.Output
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = DefaultConfig.TimeFormat
	}
	return cfg
}

// openOutput resolves cfg.Output to a writer. A log file that cannot be opened
// falls back to stderr and the returned error says why.
func openOutput(cfg Config) (io.Writer, error) {
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		return os.Stdout, nil
	case "file":
		if cfg.File == "" {
			return os.Stderr, nil
		}
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return os.Stderr, err
		}
		return file, nil
	default:
		return os.Stderr, nil
	}
}

// Initialize sets up the logger with the provided configuration
func Initialize(cfg Config) {
	cfg = withDefaults(cfg)
	output, err := openOutput(cfg)

	if strings.EqualFold(string(cfg.Format), string(FormatPretty)) && cfg.Output != "file" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: cfg.TimeFormat}
	}

	InitializeWithWriter(cfg, output)
	if err != nil {
		Error("Failed to open log file, using stderr", err)
	}
}

// InitializeWithWriter builds the logger on top of an arbitrary writer.
func InitializeWithWriter(cfg Config, w io.Writer) {
	cfg = withDefaults(cfg)

	zerolog.TimeFieldFormat = cfg.TimeFormat
	ctx := zerolog.New(w).Level(ParseLevel(cfg.Level)).With()
	if !cfg.DisableTimestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.IncludeCaller {
		ctx = ctx.Caller()
	}

	mu.Lock()
	instance = ctx.Logger()
	ready = true
	mu.Unlock()

	Debug("Logger initialized", Fields{"level": string(cfg.Level), "format": string(cfg.Format)})
}

// GetLogger returns the configured zerolog logger
func GetLogger() *zerolog.Logger {
	mu.RLock()
	if ready {
		l := instance
		mu.RUnlock()
		return &l
	}
	mu.RUnlock()

	Initialize(DefaultConfig)
	return GetLogger()
}

func emit(event *zerolog.Event, msg string, err error, fields []Fields) {
	if err != nil {
		event = event.Err(err)
	}
	for _, f := range fields {
		for k, v := range f {
			event = event.Interface(k, v)
		}
	}
	event.Msg(msg)
}

// Debug logs a message at debug level with optional fields.
func Debug(msg string, fields ...Fields) {
	emit(GetLogger().Debug(), msg, nil, fields)
}

// Info logs a message at info level with optional fields.
func Info(msg string, fields ...Fields) {
	emit(GetLogger().Info(), msg, nil, fields)
}

// Warn logs a message at warn level with optional fields.
func Warn(msg string, fields ...Fields) {
	emit(GetLogger().Warn(), msg, nil, fields)
}

// Error logs a message at error level
func Error(msg string, err error, fields ...Fields) {
	emit(GetLogger().Error(), msg, err, fields)
}

// Fatal logs a message at fatal level and then exits
func Fatal(msg string, err error, fields ...Fields) {
	emit(GetLogger().Fatal(), msg, err, fields)
}
