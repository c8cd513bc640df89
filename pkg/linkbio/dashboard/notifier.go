package dashboard

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level of a notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is the user-facing outcome of a mutation
type Notification struct {
	ProfileID uint      `json:"profile_id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

// Notifier surfaces mutation outcomes
type Notifier interface {
	Notify(n Notification)
}

// LogNotifier writes notifications to the log
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(n Notification) {
	ev := l.logger.Info()
	if n.Level == LevelError {
		ev = l.logger.Warn()
	}
	ev.Uint("profile_id", n.ProfileID).Str("level", string(n.Level)).Msg(n.Message)
}

// Inbox keeps the most recent notifications for the owner to read
type Inbox struct {
	mu    sync.Mutex
	items []Notification
	size  int
}

// NewInbox creates an inbox holding up to size notifications
func NewInbox(size int) *Inbox {
	if size < 1 {
		size = 1
	}
	return &Inbox{size: size}
}

func (b *Inbox) Notify(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, n)
	if len(b.items) > b.size {
		b.items = append(b.items[:0:0], b.items[len(b.items)-b.size:]...)
	}
}

// Recent returns the kept notifications, newest first
func (b *Inbox) Recent() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notification, len(b.items))
	for i, n := range b.items {
		out[len(b.items)-1-i] = n
	}
	return out
}

// Notifiers fans a notification out to several notifiers
type Notifiers []Notifier

func (ns Notifiers) Notify(n Notification) {
	for _, x := range ns {
		x.Notify(n)
	}
}
