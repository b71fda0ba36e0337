package logger

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// EventEntry is one line of the event log.
type EventEntry struct {
	Time      time.Time       `json:"time"`
	Queue     string          `json:"queue"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	ProfileID int64           `json:"profileId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// EventLogger writes consumed messages and their outcome as JSON lines.
type EventLogger struct {
	mu  sync.Mutex
	enc *json.Encoder
	w   io.Writer
}

// NewEventLogger writes JSON lines to w.
func NewEventLogger(w io.Writer) *EventLogger {
	return &EventLogger{enc: json.NewEncoder(w), w: w}
}

// NewFileEventLogger writes JSON lines to a rotated file at path.
func NewFileEventLogger(path string, rotation RotationConfig) (*EventLogger, error) {
	file, err := newRotatingFile(path, rotation)
	if err != nil {
		return nil, err
	}
	return NewEventLogger(file), nil
}

// Log appends entry. A zero Time is replaced by the current time.
func (l *EventLogger) Log(entry EventEntry) {
	if l == nil {
		return
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	if len(entry.Payload) > 0 && !json.Valid(entry.Payload) {
		quoted, _ := json.Marshal(string(entry.Payload))
		entry.Payload = quoted
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(entry); err != nil {
		Errorf("event log write failed: %v", err)
	}
}

// Info records a successfully handled message.
func (l *EventLogger) Info(queue, message string, profileID int64, payload []byte) {
	l.Log(EventEntry{Queue: queue, Level: INFO.String(), Message: message, ProfileID: profileID, Payload: payload})
}

// Error records a message whose handling failed.
func (l *EventLogger) Error(queue, message string, profileID int64, payload []byte, err error) {
	entry := EventEntry{Queue: queue, Level: ERROR.String(), Message: message, ProfileID: profileID, Payload: payload}
	if err != nil {
		entry.Error = err.Error()
	}
	l.Log(entry)
}

// Close closes the underlying writer when it supports it.
func (l *EventLogger) Close() error {
	if l == nil {
		return nil
	}
	if c, ok := l.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
