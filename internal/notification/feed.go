package notification

import (
	"sync"

	"devconsole/internal/domain"
)

const DefaultFeedSize = 10

// Feed is the client-side view of the channel: connection acks are dropped,
// alerts are kept most recent first up to a fixed size.
type Feed struct {
	mu     sync.Mutex
	size   int
	events []domain.Notification
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{size: size}
}

// Receive records an event and reports whether it should interrupt the user.
func (f *Feed) Receive(event domain.Notification) (recorded, interrupt bool) {
	if event.Type == domain.NotificationTypeConnection {
		return false, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append([]domain.Notification{event}, f.events...)
	if len(f.events) > f.size {
		f.events = f.events[:f.size]
	}
	return true, event.Interruptive()
}

func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// Items returns a copy of the visible list.
func (f *Feed) Items() []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]domain.Notification, len(f.events))
	copy(items, f.events)
	return items
}
