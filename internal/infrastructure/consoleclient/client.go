package consoleclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"devconsole/internal/application"
	"devconsole/internal/domain"

	"github.com/gorilla/websocket"
)

// Client talks to a running console over its HTTP and websocket surface.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	dialer     *websocket.Dialer
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// StatusError is returned for non-2xx responses and carries the server's
// message.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("console status %d", e.Code)
	}
	return fmt.Sprintf("console status %d: %s", e.Code, e.Message)
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("console url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid console url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid console url scheme %q", base.Scheme)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		dialer:     &websocket.Dialer{HandshakeTimeout: cfg.Timeout},
	}, nil
}

func (c *Client) Execute(ctx context.Context, command string, projectID int64) (application.ExecutionResult, error) {
	var result application.ExecutionResult
	err := c.call(ctx, http.MethodPost, "/api/execute", map[string]any{
		"command":   command,
		"projectId": projectID,
	}, &result)
	return result, err
}

func (c *Client) History(ctx context.Context, projectID int64, limit int) ([]domain.HistoryEntry, error) {
	path := "/api/projects/" + strconv.FormatInt(projectID, 10) + "/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var entries []domain.HistoryEntry
	err := c.call(ctx, http.MethodGet, path, nil, &entries)
	return entries, err
}

func (c *Client) Pending(ctx context.Context) ([]domain.TransactionRequest, error) {
	var pending []domain.TransactionRequest
	err := c.call(ctx, http.MethodGet, "/api/transactions/pending", nil, &pending)
	return pending, err
}

func (c *Client) SetStatus(ctx context.Context, id int64, status domain.TransactionStatus) (domain.TransactionRequest, error) {
	var tx domain.TransactionRequest
	err := c.call(ctx, http.MethodPut, "/api/transactions/"+strconv.FormatInt(id, 10), map[string]string{
		"status": string(status),
	}, &tx)
	return tx, err
}

func (c *Client) Projects(ctx context.Context) ([]domain.Project, error) {
	var projects []domain.Project
	err := c.call(ctx, http.MethodGet, "/api/projects", nil, &projects)
	return projects, err
}

func (c *Client) QuickCommands(ctx context.Context, projectID int64) ([]domain.QuickCommand, error) {
	var commands []domain.QuickCommand
	err := c.call(ctx, http.MethodGet, "/api/projects/"+strconv.FormatInt(projectID, 10)+"/commands", nil, &commands)
	return commands, err
}

// Watch opens the notification channel and hands every event to handle until
// ctx is cancelled, the server closes the channel, or handle fails.
func (c *Client) Watch(ctx context.Context, handle func(domain.Notification) error) error {
	wsURL := *c.baseURL
	if wsURL.Scheme == "https" {
		wsURL.Scheme = "wss"
	} else {
		wsURL.Scheme = "ws"
	}
	wsURL.Path = strings.TrimRight(wsURL.Path, "/") + "/ws"

	conn, _, err := c.dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("dial notification channel: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		var event domain.Notification
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read notification: %w", err)
		}
		if err := handle(event); err != nil {
			return err
		}
	}
}

func (c *Client) call(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &StatusError{Code: resp.StatusCode, Message: payload.Message}
	}
	if result == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}
