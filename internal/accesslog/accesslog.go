// Package accesslog implements the structured JSON access logger §10.1
// specifies, one line per completed request/response. Grounded on
// bolt/middleware/logger.go's LogEntry/logJSON shape, adapted from a
// per-request middleware invocation to a logger the connection
// orchestrator calls once per drained request. Uses stdlib encoding/json,
// not goccy/go-json, matching the teacher's own choice for this
// non-hot-path concern.
package accesslog

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"time"
)

// Entry is one access-log line.
type Entry struct {
	Time       string  `json:"time"`
	Method     string  `json:"method"`
	Path       string  `json:"path"`
	Status     int     `json:"status"`
	DurationMS float64 `json:"duration_ms"`
	Bytes      int64   `json:"bytes"`
	Error      string  `json:"error,omitempty"`
}

// Logger writes one JSON-encoded Entry per call to Log.
type Logger struct {
	out io.Writer
}

// New returns a Logger writing to os.Stdout.
func New() *Logger {
	return &Logger{out: os.Stdout}
}

// NewWithWriter returns a Logger writing to w.
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{out: w}
}

// Log emits one structured access-log entry. start is the request's
// arrival time; bytesWritten is the response body size; handlerErr, if
// non-nil, is recorded as the entry's error string.
func (l *Logger) Log(start time.Time, method, path string, status int, bytesWritten int64, handlerErr error) {
	entry := Entry{
		Time:       start.Format(time.RFC3339),
		Method:     method,
		Path:       path,
		Status:     status,
		DurationMS: float64(time.Since(start).Microseconds()) / 1000.0,
		Bytes:      bytesWritten,
	}
	if handlerErr != nil {
		entry.Error = handlerErr.Error()
	}
	if err := json.NewEncoder(l.out).Encode(entry); err != nil {
		log.Printf("accesslog: failed to write entry: %v", err)
	}
}
