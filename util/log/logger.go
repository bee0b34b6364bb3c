package log

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Levels are ordered by verbosity: a logger at level L prints every level <= L.
const (
	LevelError = iota
	LevelWarn
	LevelInfo
	LevelDebug

	PrefixError = "\033[31m[ERROR]\033[0m \u001B[34m"
	PrefixWarn  = "\033[33m[WARN]\033[0m \u001B[34m"
	PrefixInfo  = "\033[32m[INFO]\033[0m \u001B[34m"
	PrefixDebug = "\033[36m[DEBUG]\033[0m \u001B[34m"
)

var (
	prefixs     = []string{PrefixError, PrefixWarn, PrefixInfo, PrefixDebug}
	levelNames  = []string{"error", "warn", "info", "debug"}
	globalMutex sync.RWMutex
	globalOut   io.Writer = os.Stderr
	global                = NewLogger(LevelDebug, os.Stderr)
)

type Logger struct {
	loggers []*log.Logger
}

func NewLogger(level int, out io.Writer) *Logger {
	if level < 0 {
		panic(errors.New("invalid log level"))
	}
	if level > LevelDebug {
		level = LevelDebug
	}
	l := new(Logger)
	l.loggers = make([]*log.Logger, LevelDebug+1)
	i := 0
	for ; i <= level; i++ {
		if i == LevelInfo {
			l.loggers[i] = log.New(out, prefixs[i], log.LstdFlags)
		} else {
			l.loggers[i] = log.New(out, prefixs[i], log.LstdFlags|log.Lshortfile)
		}
	}
	for ; i <= LevelDebug; i++ {
		l.loggers[i] = log.New(io.Discard, "", 0)
	}
	return l
}

// ParseLevel accepts the level names used in config files.
func ParseLevel(name string) (int, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	for i, n := range levelNames {
		if n == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

// calldepth skips output and the exported wrapper so Lshortfile points at the caller.
const calldepth = 3

func (l *Logger) output(level int, format string, args ...interface{}) {
	_ = l.loggers[level].Output(calldepth, fmt.Sprintf("\033[0m"+format, args...))
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.output(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.output(LevelWarn, format, args...)
}

func (l *Logger) Error(err error) {
	l.output(LevelError, "%s", err.Error())
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.output(LevelError, format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.output(LevelDebug, format, args...)
}

func (l *Logger) SetOutput(out io.Writer) {
	for _, logger := range l.loggers {
		if logger.Writer() != io.Discard {
			logger.SetOutput(out)
		}
	}
}

// Debugf, Infof, Warnf and Fatalf complete the printf style set expected by
// event loop engines that accept an external logger.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.output(LevelDebug, format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.output(LevelInfo, format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.output(LevelWarn, format, args...)
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.output(LevelError, format, args...)
	os.Exit(1)
}

// Default returns the logger behind the package level functions.
func Default() *Logger {
	globalMutex.RLock()
	defer globalMutex.RUnlock()
	return global
}

// SetLevel rebuilds the global logger with the given verbosity, keeping its output.
func SetLevel(level int) {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	global = NewLogger(level, globalOut)
}

func SetOutput(out io.Writer) {
	globalMutex.Lock()
	defer globalMutex.Unlock()
	globalOut = out
	global.SetOutput(out)
}

// SetFile sends the global logger to a size rotated file. maxSizeMB <= 0
// keeps lumberjack's default of 100 megabytes.
func SetFile(path string, maxSizeMB int) io.Closer {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
		Compress:   true,
	}
	SetOutput(w)
	return w
}

func Info(format string, args ...interface{}) {
	Default().output(LevelInfo, format, args...)
}

func Warn(format string, args ...interface{}) {
	Default().output(LevelWarn, format, args...)
}

func Error(err error) {
	Default().output(LevelError, "%s", err.Error())
}

func Errorf(format string, args ...interface{}) {
	Default().output(LevelError, format, args...)
}

func Debug(format string, args ...interface{}) {
	Default().output(LevelDebug, format, args...)
}
