// Package logger provides the leveled console logger used across overseer.
//
// Output is thread-safe, prefixed with [HH:MM:SS] timestamps, and colorized
// per level when the destination is a TTY.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Log levels, lowest to highest severity.
const (
	levelTrace = iota
	levelDebug
	levelInfo
	levelWarn
	levelError
)

var levelNames = map[string]int{
	"trace": levelTrace,
	"debug": levelDebug,
	"info":  levelInfo,
	"warn":  levelWarn,
	"error": levelError,
}

// ConsoleLogger writes leveled, timestamped log lines to a writer.
// A nil writer silently discards all output.
type ConsoleLogger struct {
	writer   io.Writer
	level    int
	mu       sync.Mutex
	useColor bool

	warnColor  *color.Color
	errorColor *color.Color
	debugColor *color.Color
}

// New creates a ConsoleLogger writing to w at the given minimum level.
// Valid levels are trace, debug, info, warn, error (case-insensitive);
// empty or unknown values default to info. Color is enabled only when w is
// os.Stdout or os.Stderr and the fatih/color TTY detection allows it.
func New(w io.Writer, level string) *ConsoleLogger {
	lvl, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		lvl = levelInfo
	}

	useColor := (w == os.Stdout || w == os.Stderr) && !color.NoColor

	return &ConsoleLogger{
		writer:     w,
		level:      lvl,
		useColor:   useColor,
		warnColor:  color.New(color.FgYellow),
		errorColor: color.New(color.FgRed),
		debugColor: color.New(color.FgHiBlack),
	}
}

// Discard returns a logger that drops everything. Useful as a default when
// callers pass nil.
func Discard() *ConsoleLogger {
	return New(nil, "error")
}

func (l *ConsoleLogger) log(level int, format string, args ...any) {
	if l == nil || l.writer == nil || level < l.level {
		return
	}

	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("[%s] %s\n", time.Now().Format("15:04:05"), msg)

	if l.useColor {
		switch level {
		case levelWarn:
			line = l.warnColor.Sprint(line)
		case levelError:
			line = l.errorColor.Sprint(line)
		case levelTrace, levelDebug:
			line = l.debugColor.Sprint(line)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprint(l.writer, line)
}

// Tracef logs at trace level.
func (l *ConsoleLogger) Tracef(format string, args ...any) {
	l.log(levelTrace, format, args...)
}

// Debugf logs at debug level.
func (l *ConsoleLogger) Debugf(format string, args ...any) {
	l.log(levelDebug, format, args...)
}

// Infof logs at info level.
func (l *ConsoleLogger) Infof(format string, args ...any) {
	l.log(levelInfo, format, args...)
}

// Warnf logs at warn level.
func (l *ConsoleLogger) Warnf(format string, args ...any) {
	l.log(levelWarn, format, args...)
}

// Errorf logs at error level.
func (l *ConsoleLogger) Errorf(format string, args ...any) {
	l.log(levelError, format, args...)
}
