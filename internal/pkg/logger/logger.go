package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// ParseLevel maps a config string ("debug", "info", "warn", "error") to a
// Level. Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// output is shared by the root logger and every child so that writes from
// all of them are serialized.
type output struct {
	mu        sync.Mutex
	w         io.Writer
	level     Level
	redactPII bool
}

// Logger provides structured JSON logging with optional PII redaction.
// Child loggers created with With share the parent's output and settings.
type Logger struct {
	out    *output
	fields []interface{}
}

var defaultLogger = &Logger{out: &output{w: os.Stderr, level: INFO, redactPII: true}}

// Default returns the process-wide logger.
func Default() *Logger { return defaultLogger }

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) {
	defaultLogger.out.mu.Lock()
	defaultLogger.out.level = l
	defaultLogger.out.mu.Unlock()
}

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) {
	defaultLogger.out.mu.Lock()
	defaultLogger.out.redactPII = r
	defaultLogger.out.mu.Unlock()
}

// SetOutput redirects the default logger. Tests use it to capture entries.
func SetOutput(w io.Writer) {
	defaultLogger.out.mu.Lock()
	defaultLogger.out.w = w
	defaultLogger.out.mu.Unlock()
}

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields...) }

// With returns a child of the default logger that adds the given key-value
// pairs to every entry.
func With(fields ...interface{}) *Logger { return defaultLogger.With(fields...) }

// With returns a child logger that adds the given key-value pairs to every entry.
func (l *Logger) With(fields ...interface{}) *Logger {
	merged := make([]interface{}, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &Logger{out: l.out, fields: merged}
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(DEBUG, msg, fields...) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.log(INFO, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.log(WARN, msg, fields...) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(ERROR, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	if level < l.out.level {
		return
	}

	entry := map[string]interface{}{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": levelNames[level],
		"msg":   msg,
	}

	all := fields
	if len(l.fields) > 0 {
		all = append(append([]interface{}{}, l.fields...), fields...)
	}

	// Parse key-value pairs from fields
	for i := 0; i < len(all)-1; i += 2 {
		key := fmt.Sprintf("%v", all[i])
		val := fmt.Sprintf("%v", all[i+1])
		if l.out.redactPII {
			val = redactPIIValue(key, val)
		}
		entry[key] = val
	}

	data, _ := json.Marshal(entry)
	fmt.Fprintln(l.out.w, string(data))
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

var piiKeys = []string{"email", "participant", "attendee", "subscriber"}

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	for _, k := range piiKeys {
		if strings.Contains(key, k) {
			if !emailRegex.MatchString(val) {
				return "[redacted]"
			}
			return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
		}
	}
	// Redact any embedded emails in generic fields
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
