package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"devconsole/internal/application"
	"devconsole/internal/config"
	"devconsole/internal/domain"
	"devconsole/internal/infrastructure/memory"
	"devconsole/internal/notification"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server      *httptest.Server
	store       *memory.Repository
	broadcaster *notification.Broadcaster
}

func newTestEnv(t *testing.T, interval time.Duration, ledgerCfg application.LedgerConfig) *testEnv {
	t.Helper()

	store := memory.NewRepository()
	metrics := NewMetrics()
	ledger, err := application.NewLedger(store, nil, metrics, ledgerCfg)
	require.NoError(t, err)
	history, err := application.NewHistoryLog(store, nil)
	require.NoError(t, err)
	interpreter, err := application.NewInterpreter(ledger, history, metrics)
	require.NoError(t, err)
	directory, err := application.NewDirectory(store)
	require.NoError(t, err)
	broadcaster := notification.NewBroadcaster(notification.Config{Interval: interval, Observer: metrics})

	srv, err := NewServer(config.Config{}, Services{
		Interpreter: interpreter,
		Ledger:      ledger,
		History:     history,
		Directory:   directory,
		Broadcaster: broadcaster,
		Store:       store,
	}, metrics, BuildInfo{Version: "test"})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		broadcaster.Close()
		ts.Close()
	})
	return &testEnv{server: ts, store: store, broadcaster: broadcaster}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var value T
	require.NoError(t, json.Unmarshal(data, &value))
	return value
}

func TestExecuteRequiresCommandAndProject(t *testing.T) {
	env := newTestEnv(t, time.Hour, application.LedgerConfig{})

	for _, body := range []map[string]any{
		{"projectId": 1},
		{"command": "mm-snap build"},
		{"command": "", "projectId": 1},
	} {
		status, data := env.do(t, http.MethodPost, "/api/execute", body)
		require.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Command and project ID are required", decode[map[string]string](t, data)["message"])
	}

	status, _ := env.do(t, http.MethodPost, "/api/execute", "not an object")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestExecuteBuildAndUnknown(t *testing.T) {
	env := newTestEnv(t, time.Hour, application.LedgerConfig{})

	status, data := env.do(t, http.MethodPost, "/api/execute", map[string]any{"command": "mm-snap build", "projectId": 1})
	require.Equal(t, http.StatusOK, status)
	result := decode[application.ExecutionResult](t, data)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Output, "Build completed successfully")

	status, data = env.do(t, http.MethodPost, "/api/execute", map[string]any{"command": "rm -rf", "projectId": 1})
	require.Equal(t, http.StatusOK, status)
	result = decode[application.ExecutionResult](t, data)
	assert.Equal(t, 1, result.ExitCode)
	assert.True(t, strings.HasPrefix(result.Output, "Unknown command: rm -rf\n"))

	status, data = env.do(t, http.MethodGet, "/api/projects/1/history", nil)
	require.Equal(t, http.StatusOK, status)
	entries := decode[[]domain.HistoryEntry](t, data)
	require.Len(t, entries, 2)
	assert.Equal(t, "rm -rf", entries[0].Command)
	assert.Equal(t, "mm-snap build", entries[1].Command)
}

func TestDeployThenConfirmRemovesFromPending(t *testing.T) {
	env := newTestEnv(t, time.Hour, application.LedgerConfig{})

	status, data := env.do(t, http.MethodPost, "/api/execute", map[string]any{
		"command":   "mm-snap deploy --network testnet",
		"projectId": 7,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, decode[application.ExecutionResult](t, data).ExitCode)

	status, data = env.do(t, http.MethodGet, "/api/projects/7/history", nil)
	require.Equal(t, http.StatusOK, status)
	entries := decode[[]domain.HistoryEntry](t, data)
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].ExitCode)

	status, data = env.do(t, http.MethodGet, "/api/transactions/pending", nil)
	require.Equal(t, http.StatusOK, status)
	pending := decode[[]domain.TransactionRequest](t, data)
	require.Len(t, pending, 1)
	tx := pending[0]
	assert.Equal(t, "testnet", tx.Network)
	assert.Equal(t, "TokenContract", tx.ContractName)
	assert.Equal(t, domain.TransactionPending, tx.Status)
	assert.Equal(t, int64(7), tx.ProjectID)

	status, data = env.do(t, http.MethodPut, "/api/transactions/"+strconv.FormatInt(tx.ID, 10), map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, domain.TransactionConfirmed, decode[domain.TransactionRequest](t, data).Status)

	status, data = env.do(t, http.MethodGet, "/api/transactions/pending", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decode[[]domain.TransactionRequest](t, data))
}

func TestSetStatusErrors(t *testing.T) {
	env := newTestEnv(t, time.Hour, application.LedgerConfig{StrictTransitions: true})

	status, data := env.do(t, http.MethodPut, "/api/transactions/1", map[string]string{})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Status is required", decode[map[string]string](t, data)["message"])

	status, _ = env.do(t, http.MethodPut, "/api/transactions/99", map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodPut, "/api/transactions/abc", map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusBadRequest, status)

	_, _ = env.do(t, http.MethodPost, "/api/execute", map[string]any{"command": "mm-snap deploy defi", "projectId": 2})
	status, _ = env.do(t, http.MethodPut, "/api/transactions/1", map[string]string{"status": "pending"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPut, "/api/transactions/1", map[string]string{"status": "rejected"})
	require.Equal(t, http.StatusOK, status)
	status, _ = env.do(t, http.MethodPut, "/api/transactions/1", map[string]string{"status": "confirmed"})
	assert.Equal(t, http.StatusConflict, status)
}

func TestStrictSetStatusConcurrentRequests(t *testing.T) {
	env := newTestEnv(t, time.Hour, application.LedgerConfig{StrictTransitions: true})
	status, _ := env.do(t, http.MethodPost, "/api/execute", map[string]any{"command": "mm-snap deploy --network mainnet", "projectId": 3})
	require.Equal(t, http.StatusOK, status)

	statuses := make(chan int, 2)
	var wg sync.WaitGroup
	for _, next := range []string{"confirmed", "rejected"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := strings.NewReader(`{"status":"` + next + `"}`)
			req, err := http.NewRequest(http.MethodPut, env.server.URL+"/api/transactions/1", body)
			if err != nil {
				t.Error(err)
				return
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := env.server.Client().Do(req)
			if err != nil {
				t.Error(err)
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	var got []int
	for code := range statuses {
		got = append(got, code)
	}
	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusConflict}, got)
}

func TestProjectsAndQuickCommands(t *testing.T) {
	env := newTestEnv(t, time.Hour, application.LedgerConfig{})

	status, data := env.do(t, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "[]\n", string(data))

	status, _ = env.do(t, http.MethodPost, "/api/projects", map[string]any{"name": "DApp"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, data = env.do(t, http.MethodPost, "/api/projects", map[string]any{
		"name": "Ethereum DApp", "path": "/projects/ethereum-dapp", "framework": "Hardhat", "userId": 1,
	})
	require.Equal(t, http.StatusCreated, status)
	project := decode[domain.Project](t, data)
	id := strconv.FormatInt(project.ID, 10)

	status, data = env.do(t, http.MethodGet, "/api/projects/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Ethereum DApp", decode[domain.Project](t, data).Name)

	status, data = env.do(t, http.MethodGet, "/api/projects/404", nil)
	require.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Project not found", decode[map[string]string](t, data)["message"])

	status, _ = env.do(t, http.MethodPost, "/api/projects/"+id+"/commands", map[string]string{
		"command": "mm-snap build", "description": "Build the project",
	})
	require.Equal(t, http.StatusCreated, status)

	status, data = env.do(t, http.MethodGet, "/api/projects/"+id+"/commands", nil)
	require.Equal(t, http.StatusOK, status)
	commands := decode[[]domain.QuickCommand](t, data)
	require.Len(t, commands, 1)
	assert.Equal(t, "mm-snap build", commands[0].Command)
	assert.Equal(t, "Build the project", commands[0].Description)
}

func TestOpsEndpoints(t *testing.T) {
	env := newTestEnv(t, time.Hour, application.LedgerConfig{})

	status, _ := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)

	status, data := env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", decode[map[string]any](t, data)["status"])

	status, data = env.do(t, http.MethodGet, "/version", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "test", decode[BuildInfo](t, data).Version)

	_, _ = env.do(t, http.MethodPost, "/api/execute", map[string]any{"command": "mm-snap help", "projectId": 1})
	status, data = env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(data), `devconsole_commands_executed_total{class="help",exit_code="0"} 1`)
	assert.Contains(t, string(data), "devconsole_http_requests_total")
}

func TestInsightEndpoints(t *testing.T) {
	env := newTestEnv(t, time.Hour, application.LedgerConfig{})

	status, data := env.do(t, http.MethodGet, "/api/defi/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "$542,891,245", decode[deFiMetrics](t, data).TVL)

	status, data = env.do(t, http.MethodGet, "/api/cross-chain/status", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[crossChainStatus](t, data).Chains, 4)

	status, data = env.do(t, http.MethodGet, "/api/security/analysis", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, decode[securityAnalysis](t, data).Vulnerabilities.High)
}

func TestWebSocketSendsAckThenAlerts(t *testing.T) {
	env := newTestEnv(t, 20*time.Millisecond, application.LedgerConfig{})

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var ack domain.Notification
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, domain.NotificationTypeConnection, ack.Type)

	feed := notification.NewFeed(notification.DefaultFeedSize)
	recorded, _ := feed.Receive(ack)
	assert.False(t, recorded)
	assert.Zero(t, feed.Len())

	var alert domain.Notification
	require.NoError(t, conn.ReadJSON(&alert))
	assert.NotEqual(t, domain.NotificationTypeConnection, alert.Type)
	assert.Contains(t, []domain.Severity{domain.SeverityInfo, domain.SeverityWarning, domain.SeverityCritical}, alert.Severity)
	assert.NotEmpty(t, alert.Message)
	assert.False(t, alert.Timestamp.IsZero())

	recorded, _ = feed.Receive(alert)
	assert.True(t, recorded)
	assert.Equal(t, 1, feed.Len())

	require.Eventually(t, func() bool { return env.broadcaster.Active() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return env.broadcaster.Active() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHistoryReportsEffectiveLimit(t *testing.T) {
	env := newTestEnv(t, time.Hour, application.LedgerConfig{})
	for _, command := range []string{"npm test", "git status"} {
		status, _ := env.do(t, http.MethodPost, "/api/execute", map[string]any{"command": command, "projectId": 2})
		require.Equal(t, http.StatusOK, status)
	}

	cases := []struct {
		query   string
		limit   string
		entries int
	}{
		{query: "", limit: "1000", entries: 2},
		{query: "?limit=1", limit: "1", entries: 1},
		{query: "?limit=0", limit: "1000", entries: 2},
		{query: "?limit=5000", limit: "1000", entries: 2},
	}
	for _, tc := range cases {
		resp, err := env.server.Client().Get(env.server.URL + "/api/projects/2/history" + tc.query)
		require.NoError(t, err)
		var entries []domain.HistoryEntry
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, tc.query)
		assert.Equal(t, tc.limit, resp.Header.Get("X-History-Limit"), tc.query)
		assert.Len(t, entries, tc.entries, tc.query)
	}
}
