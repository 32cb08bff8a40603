// Package logger writes levelled, component-tagged log lines. Messages and
// fields pass through the redaction package before they are written.
package logger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bookowl/botross/pkg/redaction"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// LogEntry is the JSON shape of one line in the log file.
type LogEntry struct {
	Level     string         `json:"level"`
	Timestamp string         `json:"timestamp"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
	Caller    string         `json:"caller,omitempty"`
}

var (
	mu       sync.RWMutex
	minLevel = INFO
	jsonFile *os.File
)

// ParseLevel maps a level name (case-insensitive) to a LogLevel. An empty
// name means INFO.
func ParseLevel(name string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", name)
}

func SetLevel(level LogLevel) {
	mu.Lock()
	minLevel = level
	mu.Unlock()
}

// EnableFileLogging additionally appends every entry as a JSON line to
// path. A previously enabled file is closed.
func EnableFileLogging(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if jsonFile != nil {
		jsonFile.Close()
	}
	jsonFile = f
	return nil
}

func DisableFileLogging() {
	mu.Lock()
	defer mu.Unlock()
	if jsonFile != nil {
		jsonFile.Close()
		jsonFile = nil
	}
}

func write(level LogLevel, component, message string, fields map[string]any) {
	mu.RLock()
	defer mu.RUnlock()
	if level < minLevel {
		return
	}

	entry := LogEntry{
		Level:     level.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Component: component,
		Message:   redaction.Redact(message),
	}
	if fields != nil {
		entry.Fields = redaction.RedactFields(fields)
	}

	if jsonFile != nil {
		// Caller is only worth the lookup for the file sink.
		if _, file, line, ok := runtime.Caller(2); ok {
			entry.Caller = fmt.Sprintf("%s:%d", file, line)
		}
		if data, err := json.Marshal(entry); err == nil {
			jsonFile.Write(append(data, '\n'))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s]", entry.Timestamp, entry.Level)
	if component != "" {
		fmt.Fprintf(&b, " %s:", component)
	}
	b.WriteString(" " + entry.Message)
	if len(entry.Fields) > 0 {
		b.WriteString(" " + formatFields(entry.Fields))
	}
	log.Print(b.String())
}

func formatFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, fields[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func DebugC(component, message string) { write(DEBUG, component, message, nil) }

func DebugCF(component, message string, fields map[string]any) {
	write(DEBUG, component, message, fields)
}

func InfoC(component, message string) { write(INFO, component, message, nil) }

func InfoCF(component, message string, fields map[string]any) {
	write(INFO, component, message, fields)
}

func WarnC(component, message string) { write(WARN, component, message, nil) }

func WarnCF(component, message string, fields map[string]any) {
	write(WARN, component, message, fields)
}

func ErrorCF(component, message string, fields map[string]any) {
	write(ERROR, component, message, fields)
}
