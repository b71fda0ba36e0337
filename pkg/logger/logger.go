package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the severity level of log messages.
type LogLevel int

// Log level constants defining message severity.
const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLogLevel converts a string log level to its LogLevel constant.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// RotationConfig holds the lumberjack settings shared by every log file.
type RotationConfig struct {
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// DefaultRotation keeps three 10 MB backups for 28 days.
var DefaultRotation = RotationConfig{MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}

// Logger provides leveled logging to stdout and a rotated file.
type Logger struct {
	loggers map[LogLevel]*log.Logger
	closer  io.Closer
	level   LogLevel
	mu      sync.RWMutex
}

var instance *Logger
var once sync.Once

// InitWithConfig initializes the global logger instance with custom log rotation configuration.
func InitWithConfig(logPath string, level LogLevel, maxSize, maxBackups, maxAge int, compress bool) {
	once.Do(func() {
		l, err := New(logPath, level, RotationConfig{MaxSize: maxSize, MaxBackups: maxBackups, MaxAge: maxAge, Compress: compress})
		if err != nil {
			log.Fatalf("init logger: %v", err)
		}
		instance = l
	})
}

// newRotatingFile prepares the log directory and returns a rotating writer.
func newRotatingFile(logPath string, rotation RotationConfig) (*lumberjack.Logger, error) {
	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    rotation.MaxSize,
		MaxBackups: rotation.MaxBackups,
		MaxAge:     rotation.MaxAge,
		Compress:   rotation.Compress,
	}, nil
}

// New creates a logger writing to stdout and to logPath.
func New(logPath string, level LogLevel, rotation RotationConfig) (*Logger, error) {
	file, err := newRotatingFile(logPath, rotation)
	if err != nil {
		return nil, err
	}
	l := NewWithWriter(io.MultiWriter(os.Stdout, file), level)
	l.closer = file
	return l, nil
}

// NewWithWriter creates a logger writing to w only.
func NewWithWriter(w io.Writer, level LogLevel) *Logger {
	l := &Logger{loggers: make(map[LogLevel]*log.Logger, len(levelNames)), level: level}
	for lvl, name := range levelNames {
		l.loggers[lvl] = log.New(w, "["+name+"] ", log.LstdFlags|log.Lshortfile)
	}
	return l
}

// SetLevel changes the minimum log level for filtering messages.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current minimum log level.
func (l *Logger) GetLevel() LogLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// Close releases the rotated file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *Logger) output(depth int, level LogLevel, msg string) {
	if level < l.GetLevel() {
		return
	}
	l.loggers[level].Output(depth+1, msg)
	if level == FATAL {
		os.Exit(1)
	}
}

// Debugf logs a formatted debug-level message.
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.output(2, DEBUG, fmt.Sprintf(format, v...))
}

// Infof logs a formatted info-level message.
func (l *Logger) Infof(format string, v ...interface{}) { l.output(2, INFO, fmt.Sprintf(format, v...)) }

// Warnf logs a formatted warning-level message.
func (l *Logger) Warnf(format string, v ...interface{}) { l.output(2, WARN, fmt.Sprintf(format, v...)) }

// Errorf logs a formatted error-level message.
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.output(2, ERROR, fmt.Sprintf(format, v...))
}

// Fatalf logs a formatted fatal-level message and exits the program.
func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.output(2, FATAL, fmt.Sprintf(format, v...))
}

// Global convenience functions

func global(level LogLevel, format string, v ...interface{}) {
	if instance != nil {
		instance.output(3, level, fmt.Sprintf(format, v...))
	}
}

// Debugf logs a formatted debug-level message using the global logger instance.
func Debugf(format string, v ...interface{}) { global(DEBUG, format, v...) }

// Infof logs a formatted info-level message using the global logger instance.
func Infof(format string, v ...interface{}) { global(INFO, format, v...) }

// Warnf logs a formatted warning-level message using the global logger instance.
func Warnf(format string, v ...interface{}) { global(WARN, format, v...) }

// Errorf logs a formatted error-level message using the global logger instance.
func Errorf(format string, v ...interface{}) { global(ERROR, format, v...) }

// Fatalf logs a formatted fatal-level message and exits the program using the global logger instance.
func Fatalf(format string, v ...interface{}) {
	if instance == nil {
		log.Fatalf(format, v...)
	}
	global(FATAL, format, v...)
}

// SetLevel changes the minimum log level for the global logger instance.
func SetLevel(level LogLevel) {
	if instance != nil {
		instance.SetLevel(level)
	}
}

// GetLevel returns the current minimum log level of the global logger instance.
func GetLevel() LogLevel {
	if instance != nil {
		return instance.GetLevel()
	}
	return INFO
}

// Sync closes the global logger's file.
func Sync() error {
	if instance != nil {
		return instance.Close()
	}
	return nil
}
