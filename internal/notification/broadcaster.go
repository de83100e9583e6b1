package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"devconsole/internal/domain"

	"github.com/google/uuid"
)

const DefaultInterval = 15 * time.Second

// Sink delivers events to one connected client.
type Sink interface {
	Send(ctx context.Context, event domain.Notification) error
}

type Observer interface {
	OnSessionOpened()
	OnSessionClosed()
	OnNotificationSent(event domain.Notification)
}

type Config struct {
	Interval time.Duration
	Selector Selector
	Observer Observer
}

// Broadcaster runs one independent timer per open connection. Sessions never
// share state, so there is no ordering between connections.
type Broadcaster struct {
	interval time.Duration
	selector Selector
	observer Observer
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]context.CancelFunc
	closed   bool
}

var ErrBroadcasterClosed = errors.New("broadcaster closed")

func NewBroadcaster(cfg Config) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Selector == nil {
		cfg.Selector = NewRandomSelector(DefaultCatalog, time.Now().UnixNano())
	}
	return &Broadcaster{
		interval: cfg.Interval,
		selector: cfg.Selector,
		observer: cfg.Observer,
		now:      time.Now,
		sessions: make(map[string]context.CancelFunc),
	}
}

// Serve drives one connection from Open to Closed. It sends the
// acknowledgement, then one selected alert per tick, and returns when ctx is
// cancelled, Close is called, or a send fails. A failed send is an implicit
// close and is not reported as an error.
func (b *Broadcaster) Serve(ctx context.Context, sink Sink) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	id, err := b.register(cancel)
	if err != nil {
		return err
	}
	defer b.unregister(id)

	logger := slog.With("session", id)
	logger.Info("notification session opened")
	defer logger.Info("notification session closed")

	if err := b.send(ctx, sink, ConnectionAck(b.now())); err != nil {
		logger.Debug("ack send failed", "err", err)
		return nil
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := b.send(ctx, sink, b.selector.Next()); err != nil {
				logger.Debug("notification send failed", "err", err)
				return nil
			}
		}
	}
}

// Active returns the number of open sessions.
func (b *Broadcaster) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// Close cancels every open session and refuses new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, cancel := range b.sessions {
		cancel()
	}
}

func (b *Broadcaster) send(ctx context.Context, sink Sink, event domain.Notification) error {
	if err := sink.Send(ctx, event); err != nil {
		return err
	}
	if b.observer != nil && event.Type != domain.NotificationTypeConnection {
		b.observer.OnNotificationSent(event)
	}
	return nil
}

func (b *Broadcaster) register(cancel context.CancelFunc) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", ErrBroadcasterClosed
	}
	id := uuid.NewString()
	b.sessions[id] = cancel
	if b.observer != nil {
		b.observer.OnSessionOpened()
	}
	return id, nil
}

func (b *Broadcaster) unregister(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[id]; !ok {
		return
	}
	delete(b.sessions, id)
	if b.observer != nil {
		b.observer.OnSessionClosed()
	}
}
