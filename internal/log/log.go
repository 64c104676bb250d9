// Package log wraps apex/log with the server's level handling and line format.
package log

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
)

// Fields is re-exported so callers need not import apex/log.
type Fields = log.Fields

// InitLogger installs the line handler writing to stderr and sets the level.
// Unknown levels fall back to info.
func InitLogger(level string) {
	log.SetHandler(NewHandler(os.Stderr))
	log.SetLevel(ParseLevel(level))
}

func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// Handler writes one line per entry: time, level letter, message, fields.
type Handler struct {
	mu sync.Mutex
	w  io.Writer
}

func NewHandler(w io.Writer) *Handler {
	return &Handler{w: w}
}

// HandleLog implements the log.Handler interface
func (h *Handler) HandleLog(e *log.Entry) error {
	var b strings.Builder
	b.WriteString(e.Timestamp.Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(levelLetter(e.Level))
	b.WriteByte(' ')
	b.WriteString(e.Message)

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields[name])
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func levelLetter(level log.Level) string {
	switch level {
	case log.DebugLevel:
		return "D"
	case log.InfoLevel:
		return "I"
	case log.WarnLevel:
		return "W"
	case log.ErrorLevel:
		return "E"
	case log.FatalLevel:
		return "F"
	default:
		return "?"
	}
}

func Debugf(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	log.Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

// WithError returns an entry with error.
func WithError(err error) *log.Entry {
	return log.WithError(err)
}

// WithFields returns an entry carrying fields.
func WithFields(fields Fields) *log.Entry {
	return log.WithFields(fields)
}
