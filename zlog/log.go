// Package zlog is a small leveled logger used across zlib-go's components.
// It intentionally does not depend on a structured-logging library: every
// call site logs a single human-readable line, matching the rest of this
// module's ambient style.
package zlog

import (
	"fmt"
	"io"
	"os"
	"time"
)

type level int32

const (
	DebugLevel level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "?"
	}
}

// Level controls the minimum level that gets printed. Drivers set this at
// startup (e.g. InfoLevel normally, DebugLevel under a --verbose flag).
var Level level = InfoLevel

// Output is where log lines are written. Defaults to stderr; tests may
// redirect it to capture output.
var Output io.Writer = os.Stderr

func logf(l level, format string, args ...any) {
	if l < Level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(Output, "%s [%s] %s\n", time.Now().Format(time.RFC3339), l, msg)
}

func Debugf(format string, args ...any) { logf(DebugLevel, format, args...) }
func Infof(format string, args ...any)  { logf(InfoLevel, format, args...) }
func Warnf(format string, args ...any)  { logf(WarnLevel, format, args...) }
func Errorf(format string, args ...any) { logf(ErrorLevel, format, args...) }
