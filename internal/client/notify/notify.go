// Package notify delivers short user-facing notices (the CLI's toasts).
package notify

import (
	"fmt"
	"io"
	"sync"
)

type Level string

const (
	Info    Level = "info"
	Success Level = "success"
	Warning Level = "warning"
	Error   Level = "error"
)

type Notice struct {
	Level   Level
	Message string
}

// Notifier shows a notice to the user. Implementations must be safe for
// concurrent use; search responses arrive on their own goroutines.
type Notifier interface {
	Notify(n Notice)
}

// Console writes "[level] message" lines to W.
type Console struct {
	mu sync.Mutex
	W  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{W: w}
}

func (c *Console) Notify(n Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.W, "[%s] %s\n", n.Level, n.Message)
}

// Recorder keeps every notice in order.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of what has been recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Count returns how many recorded notices match level and message.
func (r *Recorder) Count(level Level, msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, x := range r.notices {
		if x.Level == level && x.Message == msg {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.notices = nil
	r.mu.Unlock()
}

// Discard drops every notice.
type Discard struct{}

func (Discard) Notify(Notice) {}
