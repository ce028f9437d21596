// Package log provides a small levelled logger shared by every medusa
// package.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level represents the level of logging.
type Level int

// Different levels of logging.
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	DisabledLevel
)

var levelNames = map[Level]string{
	DebugLevel:    "debug",
	InfoLevel:     "info",
	WarnLevel:     "warn",
	ErrorLevel:    "error",
	DisabledLevel: "disabled",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel converts a textual level, as found in configuration files,
// into a Level.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	for l, name := range levelNames {
		if name == s {
			return l, nil
		}
	}
	return InfoLevel, fmt.Errorf("log: unknown level %q", s)
}

// The set of default loggers for each log level.
var (
	Debug = &logger{level: DebugLevel, tag: "DEBUG "}
	Info  = &logger{level: InfoLevel, tag: "INFO  "}
	Warn  = &logger{level: WarnLevel, tag: "WARN  "}
	Error = &logger{level: ErrorLevel, tag: "ERROR "}
)

type globalState struct {
	currentLevel  Level
	defaultLogger *log.Logger
}

type logger struct {
	level Level
	tag   string
}

var (
	mu    sync.RWMutex
	state = globalState{
		currentLevel:  InfoLevel,
		defaultLogger: newDefaultLogger(os.Stderr),
	}
)

func newDefaultLogger(w io.Writer) *log.Logger {
	return log.New(w, "", log.Ldate|log.Ltime|log.LUTC|log.Lmicroseconds)
}

func globals() globalState {
	mu.RLock()
	defer mu.RUnlock()
	return state
}

// SetLevel discards every message logged below l.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	state.currentLevel = l
}

// CurrentLevel returns the level in use.
func CurrentLevel() Level {
	return globals().currentLevel
}

// SetOutput redirects every logger to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	state.defaultLogger = newDefaultLogger(w)
}

// Printf writes a formatted message to the log.
func Printf(format string, v ...interface{}) {
	Info.Printf(format, v...)
}

// Print writes a message to the log.
func Print(v ...interface{}) {
	Info.Print(v...)
}

// Println writes a line to the log.
func Println(v ...interface{}) {
	Info.Println(v...)
}

func (l *logger) output(s string) {
	g := globals()

	if l.level < g.currentLevel {
		return // Don't log at lower levels.
	}
	if g.defaultLogger != nil {
		g.defaultLogger.Output(3, l.tag+s)
	}
}

// Printf writes a formatted message to the log.
func (l *logger) Printf(format string, v ...interface{}) {
	l.output(fmt.Sprintf(format, v...))
}

// Print writes a message to the log.
func (l *logger) Print(v ...interface{}) {
	l.output(fmt.Sprint(v...))
}

// Println writes a line to the log.
func (l *logger) Println(v ...interface{}) {
	l.output(fmt.Sprintln(v...))
}
