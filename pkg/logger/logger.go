// Package logger provides the leveled component loggers shared by the server and client.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the minimum severity a logger emits
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// String returns the upper-case name of the level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel converts a level name into a LogLevel. Unknown names are an error.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, nil
	case "INFO", "":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

// globalLevel is shared by every logger created through New.
var globalLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// SetGlobalLogLevel changes the level of all component loggers at once
func SetGlobalLogLevel(level LogLevel) {
	globalLevel.SetLevel(level.zapLevel())
}

// Logger is a named, printf-style logger backed by zap
type Logger struct {
	name string

	mu    sync.RWMutex
	sugar *zap.SugaredLogger
	file  *os.File
	exit  func(int)
}

var (
	// Server is the logger used by the lobby server
	Server = New("SERVER")
	// Client is the logger used by the interactive client
	Client = New("CLIENT")
)

// New creates a console logger for the named component
func New(name string) *Logger {
	l := &Logger{name: name, exit: os.Exit}
	l.sugar = buildSugar(name, consoleCore(), nil)
	return l
}

// NewNop returns a logger that discards everything. Intended for tests.
func NewNop() *Logger {
	return &Logger{name: "NOP", sugar: zap.NewNop().Sugar(), exit: func(int) {}}
}

func consoleCore() zapcore.Core {
	cfg := encoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(os.Stderr), globalLevel)
}

func fileCore(f *os.File) zapcore.Core {
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.AddSync(f), globalLevel)
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.CallerKey = ""
	cfg.StacktraceKey = ""
	return cfg
}

func buildSugar(name string, console zapcore.Core, f *os.File) *zap.SugaredLogger {
	core := console
	if f != nil {
		core = zapcore.NewTee(console, fileCore(f))
	}
	return zap.New(core).Named(name).Sugar()
}

// SetFile duplicates the logger output into the given file (appending)
func (l *Logger) SetFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
	}
	l.file = f
	l.sugar = buildSugar(l.name, consoleCore(), f)
	return nil
}

// Close flushes buffered entries and closes the log file, if any
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_ = l.sugar.Sync()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.sugar = buildSugar(l.name, consoleCore(), nil)
	return err
}

// InitializeFileLogging sends the server and client loggers to dated files in dir
func InitializeFileLogging(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	date := time.Now().Format("2006-01-02")
	if err := Server.SetFile(filepath.Join(dir, "server-"+date+".log")); err != nil {
		return err
	}
	return Client.SetFile(filepath.Join(dir, "client-"+date+".log"))
}

// With returns a child logger carrying structured key/value pairs on every entry
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Logger{name: l.name, sugar: l.sugar.With(keysAndValues...), exit: l.exit}
}

func (l *Logger) get() *zap.SugaredLogger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sugar
}

// Debug logs a formatted debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.get().Debugf(format, args...)
}

// Info logs a formatted informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.get().Infof(format, args...)
}

// Warn logs a formatted warning
func (l *Logger) Warn(format string, args ...interface{}) {
	l.get().Warnf(format, args...)
}

// Error logs a formatted error
func (l *Logger) Error(format string, args ...interface{}) {
	l.get().Errorf(format, args...)
}

// Fatal logs a formatted error, flushes and exits with status 1
func (l *Logger) Fatal(format string, args ...interface{}) {
	s := l.get()
	s.Errorf(format, args...)
	_ = s.Sync()
	l.exit(1)
}
