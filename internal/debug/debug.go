// Package debug provides a process-wide diagnostic log sink for lspd.
//
// Output is off by default; it is enabled either at build time
// (-ldflags "-X .../internal/debug.EnableDebug=true") or at runtime via
// the PROBE_DEBUG or CODE_SEARCH_DEBUG environment variables, both
// accepted for compatibility with the tooling this daemon sits behind.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EnableDebug is a build flag for debug mode, settable via -ldflags -X.
var EnableDebug = "false"

var (
	debugOutput io.Writer
	debugFile   *os.File
	debugMutex  sync.Mutex
)

// SetDebugOutput sets a custom writer for debug output. Pass nil to
// disable debug output entirely.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
}

// InitDebugLogFile initializes debug logging to a timestamped file under
// os.TempDir()/lspd-debug-logs. Returns the log path, or an error.
// Call CloseDebugLog when done.
func InitDebugLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "lspd-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("create debug log file: %w", err)
	}

	debugFile = file
	debugOutput = file
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		err := debugFile.Close()
		debugFile = nil
		debugOutput = nil
		return err
	}
	return nil
}

// IsDebugEnabled reports whether verbose diagnostics should be emitted.
func IsDebugEnabled() bool {
	if EnableDebug == "true" {
		return true
	}
	if v := os.Getenv("PROBE_DEBUG"); v == "1" || v == "true" {
		return true
	}
	if v := os.Getenv("CODE_SEARCH_DEBUG"); v == "1" || v == "true" {
		return true
	}
	return false
}

func getDebugWriter() io.Writer {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	return debugOutput
}

// Printf prints debug information only when debug mode is enabled and
// an output sink is configured.
func Printf(format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	w := getDebugWriter()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG] "+format, args...)
}

// Log provides structured debug logging tagged with a component name.
func Log(component, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	w := getDebugWriter()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG:%s] "+format, append([]interface{}{component}, args...)...)
}

// LogDispatch logs dispatcher-level events (C9).
func LogDispatch(format string, args ...interface{}) { Log("DISPATCH", format, args...) }

// LogPool logs LSP pool lifecycle events (C8).
func LogPool(format string, args ...interface{}) { Log("POOL", format, args...) }

// LogCache logs cache adapter events (C3).
func LogCache(format string, args ...interface{}) { Log("CACHE", format, args...) }

// LogWatchdog logs watchdog/process-monitor events (C10).
func LogWatchdog(format string, args ...interface{}) { Log("WATCHDOG", format, args...) }

// LogConfig logs config loading and hot-reload events.
func LogConfig(format string, args ...interface{}) { Log("CONFIG", format, args...) }

// Warn logs a recoverable, user-invisible warning (e.g. a storage read
// that failed and degraded to a cache miss, per the spec's error
// propagation policy).
func Warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	w := getDebugWriter()
	if w != nil {
		fmt.Fprintf(w, "[WARN] %s\n", msg)
		return
	}
	// Always surface warnings even with no sink configured and debug off,
	// since these indicate a degraded (not failed) request.
	fmt.Fprintf(os.Stderr, "[lspd][WARN] %s\n", msg)
}
