// Package logger provides per-subsystem leveled loggers that all write
// through a shared rotating log file, the way a long-running node needs to
// keep its log directory bounded without losing history.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jrick/logrotate/rotator"
)

// Level is a logger's verbosity threshold.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRC"
	case LevelDebug:
		return "DBG"
	case LevelInfo:
		return "INF"
	case LevelWarn:
		return "WRN"
	case LevelError:
		return "ERR"
	case LevelCritical:
		return "CRT"
	default:
		return "OFF"
	}
}

func levelFromString(s string) (Level, bool) {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace, true
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn":
		return LevelWarn, true
	case "error":
		return LevelError, true
	case "critical":
		return LevelCritical, true
	}
	return LevelInfo, false
}

// Logger writes tagged, leveled lines to the shared backend writer.
type Logger struct {
	tag string

	mu    sync.Mutex
	level Level
	out   *log.Logger
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	cur := l.level
	l.mu.Unlock()
	if level < cur {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.out.Printf("[%s] %s: %s", level, l.tag, msg)
}

func (l *Logger) Tracef(format string, args ...interface{})    { l.log(LevelTrace, format, args...) }
func (l *Logger) Debugf(format string, args ...interface{})    { l.log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})     { l.log(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})     { l.log(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{})    { l.log(LevelError, format, args...) }
func (l *Logger) Criticalf(format string, args ...interface{}) { l.log(LevelCritical, format, args...) }

// Subsystem tags, one per major component.
const (
	SubsystemConsensus = "CONS"
	SubsystemChainStore = "CHST"
	SubsystemMempool    = "POOL"
	SubsystemMiner      = "MINE"
	SubsystemPeerLink   = "PEER"
	SubsystemSecChannel = "SCHN"
	SubsystemNode       = "NODE"
)

var (
	backendMu sync.Mutex
	backend   io.Writer = os.Stdout
	rotators  []*rotator.Rotator

	loggers = map[string]*Logger{}
)

func init() {
	for _, tag := range []string{
		SubsystemConsensus, SubsystemChainStore, SubsystemMempool,
		SubsystemMiner, SubsystemPeerLink, SubsystemSecChannel, SubsystemNode,
	} {
		registerLogger(tag)
	}
}

func registerLogger(tag string) *Logger {
	l := &Logger{tag: tag, level: LevelInfo, out: log.New(&fanoutWriter{}, "", log.Ldate|log.Ltime)}
	loggers[tag] = l
	return l
}

// fanoutWriter forwards every Write to the current backend, so existing
// *log.Logger instances keep writing after InitLogRotator swaps backend.
type fanoutWriter struct{}

func (fanoutWriter) Write(p []byte) (int, error) {
	backendMu.Lock()
	w := backend
	backendMu.Unlock()
	return w.Write(p)
}

// InitLogRotator opens logFile for rotating output (rolls over at 10 MiB,
// keeping 3 rolled files) and directs every subsystem logger's output there
// in addition to stdout.
func InitLogRotator(logFile string) error {
	dir, _ := filepath.Split(logFile)
	if dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("logger: create log directory: %w", err)
		}
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("logger: open log rotator: %w", err)
	}
	backendMu.Lock()
	rotators = append(rotators, r)
	backend = io.MultiWriter(os.Stdout, r)
	backendMu.Unlock()
	return nil
}

// Close flushes and closes every open rotator, called on shutdown.
func Close() {
	backendMu.Lock()
	defer backendMu.Unlock()
	for _, r := range rotators {
		r.Close()
	}
	rotators = nil
}

// Get returns the logger registered for tag, creating one at LevelInfo if
// the tag is new.
func Get(tag string) *Logger {
	backendMu.Lock()
	defer backendMu.Unlock()
	if l, ok := loggers[tag]; ok {
		return l
	}
	return registerLogger(tag)
}

// SetLevel sets the verbosity of a single subsystem by tag. Unknown tags
// are ignored.
func SetLevel(tag, levelName string) {
	l, ok := loggers[tag]
	if !ok {
		return
	}
	level, ok := levelFromString(levelName)
	if !ok {
		level = LevelInfo
	}
	l.SetLevel(level)
}

// SetLevels sets every registered subsystem to the same verbosity.
func SetLevels(levelName string) {
	for tag := range loggers {
		SetLevel(tag, levelName)
	}
}

// Subsystems returns every registered subsystem tag, sorted.
func Subsystems() []string {
	out := make([]string, 0, len(loggers))
	for tag := range loggers {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
