// Package debug provides conditional debug logging for dropdash.
//
// Debug logging is enabled by setting the DROPDASH_DEBUG environment variable:
//
//	DROPDASH_DEBUG=1 dropdash --source dir --dir ./uploads
//
// When enabled, messages are written to stderr through a zerolog console
// writer. When disabled (default), all functions are no-ops.
//
// Usage:
//
//	debug.Log("built forest with %d clients", n)
//	defer debug.LogFunc("refresh done")()
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu      sync.RWMutex
	enabled bool
	logger  zerolog.Logger
)

func init() {
	if os.Getenv("DROPDASH_DEBUG") != "" {
		enabled = true
		logger = newLogger(os.Stderr)
	}
}

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}).With().Timestamp().Str("component", "dropdash").Logger()
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// SetEnabled allows programmatic control of debug logging.
func SetEnabled(e bool) {
	mu.Lock()
	defer mu.Unlock()
	if e && !enabled {
		logger = newLogger(os.Stderr)
	}
	enabled = e
}

// SetOutput redirects debug output. The TUI uses this to keep log lines off
// the alternate screen.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w)
}

func current() (zerolog.Logger, bool) {
	mu.RLock()
	defer mu.RUnlock()
	return logger, enabled
}

// Log writes a debug message if debug logging is enabled.
// Uses printf-style formatting.
func Log(format string, args ...any) {
	l, ok := current()
	if !ok {
		return
	}
	l.Debug().Msgf(format, args...)
}

// Warn writes a warning-level message if debug logging is enabled.
func Warn(format string, args ...any) {
	l, ok := current()
	if !ok {
		return
	}
	l.Warn().Msgf(format, args...)
}

// LogTiming writes a timing message if debug logging is enabled.
func LogTiming(name string, d time.Duration) {
	l, ok := current()
	if !ok {
		return
	}
	l.Debug().Str("op", name).Dur("took", d).Msg("timing")
}

// LogIf writes a debug message only if the condition is true.
func LogIf(cond bool, format string, args ...any) {
	if !cond {
		return
	}
	Log(format, args...)
}

// LogFunc returns a function that logs a debug message when called.
//
//	defer debug.LogFunc("refresh done")()
func LogFunc(msg string) func() {
	if !Enabled() {
		return func() {}
	}
	return func() {
		Log("%s", msg)
	}
}

// Fields logs a message with structured key/value pairs. Keys must be strings;
// a trailing key without a value is ignored.
func Fields(msg string, kv ...any) {
	l, ok := current()
	if !ok {
		return
	}
	ev := l.Debug()
	for i := 0; i+1 < len(kv); i += 2 {
		key, isStr := kv[i].(string)
		if !isStr {
			key = fmt.Sprint(kv[i])
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}
