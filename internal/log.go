package internal

import (
	"fmt"
	"io"
	"os"
	"sync"
)

type Logger struct {
	mu      sync.Mutex
	f       *os.File
	verbose bool
}

func NewLogger(path string) (*Logger, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Logger{f: f}, nil
}

// SetVerbose echoes warnings and errors to stderr in addition to the log file.
func (l *Logger) SetVerbose(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verbose = v
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.write("INFO", format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.write("WARN", format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.write("ERROR", format, args...)
}

func (l *Logger) write(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf("[%s] %s\n", level, fmt.Sprintf(format, args...))
	io.WriteString(l.f, line)
	if l.verbose && level != "INFO" {
		io.WriteString(os.Stderr, line)
	}
}

func (l *Logger) Close() error {
	return l.f.Close()
}
