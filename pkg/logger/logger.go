package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = newLogger(os.Stderr, false)
)

func newLogger(w io.Writer, jsonOutput bool) zerolog.Logger {
	if !jsonOutput {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}

// SetOutput replaces the log destination. JSON output is used when
// jsonOutput is true, otherwise a human readable console format.
func SetOutput(w io.Writer, jsonOutput bool) {
	mu.Lock()
	defer mu.Unlock()

	lvl := log.GetLevel()
	log = newLogger(w, jsonOutput).Level(lvl)
}

// SetLevel sets the minimum level. Unknown names fall back to info.
func SetLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	mu.Lock()
	defer mu.Unlock()
	log = log.Level(lvl)
}

func event(lvl zerolog.Level, component, msg string, fields map[string]any) {
	mu.RLock()
	l := log
	mu.RUnlock()

	e := l.WithLevel(lvl)
	if e == nil {
		return
	}
	if component != "" {
		e = e.Str("component", component)
	}
	if len(fields) > 0 {
		e = e.Fields(fields)
	}
	e.Msg(msg)
}

func DebugC(component, msg string) { event(zerolog.DebugLevel, component, msg, nil) }
func InfoC(component, msg string) { event(zerolog.InfoLevel, component, msg, nil) }
func WarnC(component, msg string) { event(zerolog.WarnLevel, component, msg, nil) }
func ErrorC(component, msg string) { event(zerolog.ErrorLevel, component, msg, nil) }

func DebugCF(component, msg string, fields map[string]any) {
	event(zerolog.DebugLevel, component, msg, fields)
}

func InfoCF(component, msg string, fields map[string]any) {
	event(zerolog.InfoLevel, component, msg, fields)
}

func WarnCF(component, msg string, fields map[string]any) {
	event(zerolog.WarnLevel, component, msg, fields)
}

func ErrorCF(component, msg string, fields map[string]any) {
	event(zerolog.ErrorLevel, component, msg, fields)
}
