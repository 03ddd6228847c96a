// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3

	// LogWarn passes errors and warnings only.  It ranks between
	// LogQuiet and LogNormal but is not a -v count.
	LogWarn LogLevel = 4
)

// ParseLogLevel accepts a level name ("quiet", "error", "info",
// "warning", "verbose", "debug") or its numeric value.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quiet", "error", "critical":
		return LogQuiet, nil
	case "warn", "warning":
		return LogWarn, nil
	case "info", "normal":
		return LogNormal, nil
	case "verbose":
		return LogVerbose, nil
	case "debug", "all":
		return LogDebug, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < int(LogQuiet) || n > int(LogDebug) {
		return LogQuiet, fmt.Errorf("unknown log level %q", s)
	}
	return LogLevel(n), nil
}

func (l LogLevel) String() string {
	switch l {
	case LogQuiet:
		return "quiet"
	case LogWarn:
		return "warning"
	case LogNormal:
		return "info"
	case LogVerbose:
		return "verbose"
	case LogDebug:
		return "debug"
	default:
		return strconv.Itoa(int(l))
	}
}

// rank orders levels from least to most permissive.
func (l LogLevel) rank() int {
	switch {
	case l == LogWarn:
		return 1
	case l <= LogQuiet:
		return 0
	case l > LogDebug:
		return int(LogDebug) + 1
	default:
		return int(l) + 1
	}
}

// allows reports whether a logger or sink at level l shows sev.
func (l LogLevel) allows(sev severity) bool { return l.rank() >= sev.rank }

// severity describes one kind of record: its local prefix, the name
// used by sinks, and the rank a level needs to show it.
type severity struct {
	tag  string
	name string
	rank int
}

var (
	sevError   = severity{"ERR", "ERROR", LogQuiet.rank()}
	sevWarn    = severity{"WRN", "WARNING", LogWarn.rank()}
	sevInfo    = severity{"INF", "INFO", LogNormal.rank()}
	sevVerbose = severity{"VRB", "VERBOSE", LogVerbose.rank()}
	sevDebug   = severity{"DBG", "DEBUG", LogDebug.rank()}
)

// sink is an attached writer that receives formatted records for as
// long as it stays attached.
type sink struct {
	w     io.Writer
	level LogLevel
}

// Logger writes levelled messages to stderr with optional timestamps
// and level prefixes.  Additional writers can be attached with
// [Logger.Attach]; each filters records by its own level.
type Logger struct {
	level      LogLevel
	output     io.Writer
	mu         sync.Mutex
	timestamps bool // if true, prepend RFC3339 timestamps
	sinks      []*sink
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
func NewLogger(verbosity int) *Logger {
	return &Logger{
		level:      LogLevel(verbosity),
		output:     os.Stderr,
		timestamps: verbosity == int(LogDebug), // auto-enable timestamps in debug mode
	}
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) { l.timestamps = on }

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) { l.output = w }

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// Attach starts relaying records at or below level to w, formatted as
// "LEVEL    message".  The returned function detaches the writer; it is
// safe to call more than once.
func (l *Logger) Attach(w io.Writer, level LogLevel) (detach func()) {
	s := &sink{w: w, level: level}

	l.mu.Lock()
	l.sinks = append(l.sinks, s)
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, cur := range l.sinks {
				if cur == s {
					l.sinks = append(l.sinks[:i], l.sinks[i+1:]...)
					break
				}
			}
		})
	}
}

// Sinks returns the number of currently attached writers.
func (l *Logger) Sinks() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sinks)
}

// Info prints when verbosity ≥ 1.  Prefixed with [INF].
func (l *Logger) Info(format string, args ...interface{}) {
	l.write(sevInfo, format, args...)
}

// Warn prints when verbosity ≥ 1.  Prefixed with [WRN].
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(sevWarn, format, args...)
}

// Verbose prints when verbosity ≥ 2.  Prefixed with [VRB].
func (l *Logger) Verbose(format string, args ...interface{}) {
	l.write(sevVerbose, format, args...)
}

// Debug prints when verbosity ≥ 3.  Prefixed with [DBG].
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(sevDebug, format, args...)
}

// Error always prints regardless of verbosity.  Prefixed with [ERR].
func (l *Logger) Error(format string, args ...interface{}) {
	l.write(sevError, format, args...)
}

func (l *Logger) write(sev severity, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	local := l.level.allows(sev)
	if !local && len(l.sinks) == 0 {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if local {
		if l.timestamps {
			ts := time.Now().Format("15:04:05.000")
			fmt.Fprintf(l.output, "%s [%s] %s\n", ts, sev.tag, msg)
		} else {
			fmt.Fprintf(l.output, "[%s] %s\n", sev.tag, msg)
		}
	}

	for _, s := range l.sinks {
		if s.level.allows(sev) {
			// A failing sink belongs to a dying connection; its owner
			// notices on its own writes.
			fmt.Fprintf(s.w, "%-8s %s\n", sev.name, msg) //nolint:errcheck
		}
	}
}
