// Package notify reports user-facing outcomes of wizard, search and folder
// operations.
package notify

import (
	"fmt"
	"io"
	"sync"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
)

// Notifier is the user-facing message sink.
type Notifier interface {
	Notify(level Level, message string)
}

// Noop discards every message.
type Noop struct{}

func (Noop) Notify(Level, string) {}

// OrNoop returns n, or Noop when n is nil.
func OrNoop(n Notifier) Notifier {
	if n == nil {
		return Noop{}
	}
	return n
}

// Terminal writes one prefixed line per message.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

func (t *Terminal) Notify(level Level, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintf(t.out, "%s %s\n", prefix(level), message)
}

func prefix(level Level) string {
	switch level {
	case LevelSuccess:
		return "[ok]"
	case LevelWarn:
		return "[warn]"
	case LevelError:
		return "[error]"
	default:
		return "[..]"
	}
}

// Entry is one recorded message.
type Entry struct {
	Level   Level
	Message string
}

// Recorder keeps messages in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) Notify(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: message})
}

func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Last returns the most recent entry, or the zero Entry.
func (r *Recorder) Last() Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return Entry{}
	}
	return r.entries[len(r.entries)-1]
}
