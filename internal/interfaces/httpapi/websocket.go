package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"devconsole/internal/domain"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

// wsSink writes notification events to one websocket connection. Only the
// broadcaster session goroutine calls Send.
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) Send(ctx context.Context, event domain.Notification) error {
	deadline := time.Now().Add(wsWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteJSON(event)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The channel is receive-only for clients; reading only detects close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	slog.Debug("notification channel opened", "remote", r.RemoteAddr)
	if err := s.services.Broadcaster.Serve(ctx, &wsSink{conn: conn}); err != nil {
		slog.Warn("notification channel refused", "remote", r.RemoteAddr, "err", err)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	slog.Debug("notification channel closed", "remote", r.RemoteAddr)
}
