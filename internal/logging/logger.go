package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger writes levelled lines to the console. Warnings and errors are also
// appended to a diagnostics file so failures can be inspected after a run.
type Logger struct {
	info  *log.Logger
	warn  *log.Logger
	error *log.Logger
	debug *log.Logger

	verbose bool
	path    string
	closer  io.Closer
	now     func() time.Time
}

// New builds a Logger over explicit writers. diag may be nil.
func New(stdout, stderr, diag io.Writer, verbose bool) *Logger {
	warnOut, errOut := stdout, stderr
	if diag != nil {
		warnOut = io.MultiWriter(stdout, diag)
		errOut = io.MultiWriter(stderr, diag)
	}
	flags := log.Lmsgprefix
	return &Logger{
		info:    log.New(stdout, "[INFO]  ", flags),
		warn:    log.New(warnOut, "[WARN]  ", flags),
		error:   log.New(errOut, "[ERROR] ", flags),
		debug:   log.New(stdout, "[DEBUG] ", flags),
		verbose: verbose,
		now:     time.Now,
	}
}

// Open returns a console Logger whose diagnostics go to a size-rotated file
// at path.
func Open(path string, verbose bool) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	rot := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    1, // megabytes
		MaxBackups: 3,
		MaxAge:     28,
	}
	l := New(os.Stdout, os.Stderr, rot, verbose)
	l.path = path
	l.closer = rot
	return l, nil
}

// Discard drops everything. Used by tests and library callers.
func Discard() *Logger {
	return New(io.Discard, io.Discard, nil, false)
}

// Path is the diagnostics file, or "" when there is none.
func (l *Logger) Path() string { return l.path }

func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *Logger) prefix() string {
	return fmt.Sprintf(" %s ", l.now().Format("2006-01-02 15:04:05"))
}

func (l *Logger) Info(msg string, args ...any) {
	l.info.Printf(l.prefix()+msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.warn.Printf(l.prefix()+msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.error.Printf(l.prefix()+msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	if !l.verbose {
		return
	}
	l.debug.Printf(l.prefix()+msg, args...)
}
