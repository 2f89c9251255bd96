// Package notify delivers decision outcomes to the operator.
// The interrupt core reports every terminal result (submitted, ignored,
// resolved, failed) through a Notifier; sinks render it on the terminal
// or publish it on NATS for other surfaces. Delivery is fire-and-forget:
// a sink must never propagate an error back into the core.
package notify

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Kind is the severity of a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is one user-facing toast.
type Notification struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Message     string    `json:"message"`
	Description string    `json:"description,omitempty"`
	ThreadID    string    `json:"thread_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// JSON renders the notification for wire sinks.
func (n *Notification) JSON() []byte {
	data, _ := json.Marshal(n)
	return data
}

// ParseNotification decodes a wire notification.
func ParseNotification(data []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// Notifier is the toast sink consumed by the interrupt core.
type Notifier interface {
	// Success reports a completed action.
	Success(message string)

	// Error reports a failed action with optional detail text.
	Error(message, description string)
}

// Writer renders notifications to an io.Writer (typically the terminal).
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriter creates a terminal notifier.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

func (w *Writer) Success(message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "✓ %s\n", message)
}

func (w *Writer) Error(message, description string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if description != "" {
		fmt.Fprintf(w.out, "✗ %s: %s\n", message, description)
		return
	}
	fmt.Fprintf(w.out, "✗ %s\n", message)
}

// Multi fans a notification out to several sinks.
type Multi []Notifier

func (m Multi) Success(message string) {
	for _, n := range m {
		if n != nil {
			n.Success(message)
		}
	}
}

func (m Multi) Error(message, description string) {
	for _, n := range m {
		if n != nil {
			n.Error(message, description)
		}
	}
}

// Nop discards all notifications. Used in tests and headless contexts
// where another surface owns user feedback.
type Nop struct{}

func (Nop) Success(string)       {}
func (Nop) Error(string, string) {}

// Recorder captures notifications for assertions in tests.
type Recorder struct {
	mu            sync.Mutex
	Notifications []Notification
}

func (r *Recorder) Success(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notifications = append(r.Notifications, Notification{
		Kind:      KindSuccess,
		Message:   message,
		Timestamp: time.Now(),
	})
}

func (r *Recorder) Error(message, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notifications = append(r.Notifications, Notification{
		Kind:        KindError,
		Message:     message,
		Description: description,
		Timestamp:   time.Now(),
	})
}

// Last returns the most recent notification, or nil if none were sent.
func (r *Recorder) Last() *Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Notifications) == 0 {
		return nil
	}
	n := r.Notifications[len(r.Notifications)-1]
	return &n
}

// Count returns how many notifications were recorded.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Notifications)
}
