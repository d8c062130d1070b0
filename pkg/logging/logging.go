// Package logging prints "[TAG] message" lines to the console and, when a
// log file is configured, appends timestamped copies to a rotating file.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/synrais/ROLL-GO/pkg/config"
)

var (
	mu      sync.Mutex
	console io.Writer = os.Stdout
	file    io.WriteCloser
	debug   bool
)

// Setup points the file sink at cfg.File (rotated by lumberjack) and sets the
// debug flag. Calling it again replaces the previous sink.
func Setup(cfg config.LogConfig) {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		_ = file.Close()
		file = nil
	}
	debug = cfg.Debug
	if cfg.File == "" {
		return
	}
	file = &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
}

// SetOutput redirects console output. Used by tests and the TUI.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	console = w
}

// Close flushes and closes the file sink.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

// Logger writes lines under a fixed tag.
type Logger struct {
	tag string
}

func New(tag string) Logger {
	return Logger{tag: tag}
}

func (l Logger) Printf(format string, args ...any) {
	write(l.tag, fmt.Sprintf(format, args...))
}

func (l Logger) Println(args ...any) {
	write(l.tag, strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

// Errorf is Printf with an ERROR marker, for failures that are logged and
// otherwise ignored.
func (l Logger) Errorf(format string, args ...any) {
	write(l.tag, "ERROR: "+fmt.Sprintf(format, args...))
}

// Debugf only prints when [log] debug is enabled.
func (l Logger) Debugf(format string, args ...any) {
	mu.Lock()
	on := debug
	mu.Unlock()
	if !on {
		return
	}
	write(l.tag, fmt.Sprintf(format, args...))
}

func write(tag, msg string) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(console, "[%s] %s\n", tag, msg)
	if file != nil {
		fmt.Fprintf(file, "[%s] [%s] %s\n", time.Now().Format(time.RFC3339), tag, msg)
	}
}
