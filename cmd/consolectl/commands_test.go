package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"devconsole/internal/domain"
	"devconsole/internal/streaming"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, server *httptest.Server, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--url", server.URL}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestExecCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Command   string `json:"command"`
			ProjectID int64  `json:"projectId"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		exit := 0
		if body.Command != "mm-snap build" {
			exit = 1
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"output": "ran " + body.Command, "exitCode": exit})
	}))
	defer server.Close()

	out, err := runCLI(t, server, "exec", "--project", "4", "mm-snap", "build")
	require.NoError(t, err)
	assert.Contains(t, out, "ran mm-snap build")

	_, err = runCLI(t, server, "exec", "nonsense")
	require.Error(t, err)
}

func TestApproveCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/transactions/5", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(domain.TransactionRequest{ID: 5, Status: domain.TransactionStatus(body["status"]), Details: "Deploy TokenContract to testnet"})
	}))
	defer server.Close()

	out, err := runCLI(t, server, "approve", "5")
	require.NoError(t, err)
	assert.Equal(t, "transaction 5 confirmed: Deploy TokenContract to testnet\n", out)

	_, err = runCLI(t, server, "reject", "abc")
	require.Error(t, err)
}

func TestPrintEvent(t *testing.T) {
	var out bytes.Buffer
	printEvent(&out, streaming.Message{
		Type:        streaming.MessageTypeTransaction,
		ProjectID:   7,
		OccurredAt:  time.Now(),
		Transaction: &domain.TransactionRequest{ID: 3, Status: domain.TransactionRejected, Details: "Deploy DeFiProtocol to mainnet"},
	})
	assert.Contains(t, out.String(), "project=7 id=3 status=rejected Deploy DeFiProtocol to mainnet")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitList(" a:9092, ,b:9092 "))
	assert.Nil(t, splitList(""))
}

func TestExecPassesCommandFlagsThrough(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Command string `json:"command"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got = body.Command
		_ = json.NewEncoder(w).Encode(map[string]any{"output": "ok", "exitCode": 0})
	}))
	defer server.Close()

	_, err := runCLI(t, server, "exec", "-p", "7", "mm-snap", "deploy", "--network", "testnet")
	require.NoError(t, err)
	assert.Equal(t, "mm-snap deploy --network testnet", got)
}
