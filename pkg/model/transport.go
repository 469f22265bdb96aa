package model

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/samanhappy/selectly/pkg/paths"
)

const maxLoggedBody = 10000

// networkLogEntry is one line of network.jsonl. Headers are deliberately
// not recorded: the Authorization credential must never reach disk, and
// nothing reads the rest.
type networkLogEntry struct {
	Timestamp      time.Time     `json:"timestamp"`
	Method         string        `json:"method"`
	URL            string        `json:"url"`
	RequestBody    string        `json:"request_body,omitempty"`
	ResponseStatus int           `json:"response_status,omitempty"`
	ResponseBody   string        `json:"response_body,omitempty"`
	Duration       time.Duration `json:"duration_ms"`
	Error          string        `json:"error,omitempty"`
}

// LoggingTransport appends one JSONL entry per request to network.jsonl
// when enabled; disabled it is a pass-through.
type LoggingTransport struct {
	base http.RoundTripper

	mu      sync.Mutex
	logFile *os.File
}

// NewLoggingTransport wraps base. With enabled false no log file is opened
// and RoundTrip delegates directly.
func NewLoggingTransport(base http.RoundTripper, enabled bool) *LoggingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	lt := &LoggingTransport{base: base}
	if enabled {
		lt.logFile = openNetworkLog()
	}
	return lt
}

// openNetworkLog opens the append-only log. Prompts travel through here, so
// the file and its directory stay private to the user. Any failure disables
// logging rather than the transport.
func openNetworkLog() *os.File {
	logDir := paths.LogsBaseDir()
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return nil
	}
	_ = os.Chmod(logDir, 0o700)

	f, err := os.OpenFile(filepath.Join(logDir, "network.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil
	}
	_ = f.Chmod(0o600)
	return f
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t == nil {
		return http.DefaultTransport.RoundTrip(req)
	}
	if t.logFile == nil {
		return t.base.RoundTrip(req)
	}

	entry := networkLogEntry{
		Timestamp: time.Now(),
		Method:    req.Method,
		URL:       req.URL.String(),
	}
	if req.Body != nil && req.Body != http.NoBody {
		if body, err := io.ReadAll(req.Body); err == nil {
			entry.RequestBody = clipBody(body)
			req.Body = io.NopCloser(bytes.NewReader(body))
		}
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	entry.Duration = time.Since(start)
	if err != nil {
		entry.Error = err.Error()
		t.write(entry)
		return nil, err
	}

	entry.ResponseStatus = resp.StatusCode
	switch {
	case req.Header.Get("Accept") == "text/event-stream":
		// SSE bodies are consumed incrementally by the caller; buffering
		// them here would stall delta delivery.
		entry.ResponseBody = "[streaming - body not captured]"
	case resp.Body != nil:
		if body, readErr := io.ReadAll(resp.Body); readErr == nil {
			entry.ResponseBody = clipBody(body)
			resp.Body = io.NopCloser(bytes.NewReader(body))
		}
	}

	t.write(entry)
	return resp, nil
}

func (t *LoggingTransport) write(entry networkLogEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.logFile == nil {
		return
	}
	t.logFile.Write(data)
	t.logFile.Write([]byte("\n"))
}

// Close releases the log file if one is open.
func (t *LoggingTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.logFile == nil {
		return nil
	}
	err := t.logFile.Close()
	t.logFile = nil
	return err
}

func clipBody(body []byte) string {
	if len(body) > maxLoggedBody {
		return string(body[:maxLoggedBody]) + "\n...[truncated]"
	}
	return string(body)
}
