package application

import (
	"context"
	"errors"
	"testing"

	"devconsole/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInterpreter(t *testing.T, store *fakeStore, events EventPublisher, observer *countingObserver) (*Interpreter, *Ledger, *HistoryLog) {
	t.Helper()
	// Avoid wrapping a nil *countingObserver in a non-nil interface value.
	var ledgerObserver LedgerObserver
	var commandObserver CommandObserver
	if observer != nil {
		ledgerObserver, commandObserver = observer, observer
	}
	ledger, err := NewLedger(store, events, ledgerObserver, LedgerConfig{})
	require.NoError(t, err)
	history, err := NewHistoryLog(store, events)
	require.NoError(t, err)
	interpreter, err := NewInterpreter(ledger, history, commandObserver)
	require.NoError(t, err)
	return interpreter, ledger, history
}

func TestClassify_PriorityOrder(t *testing.T) {
	cases := map[string]CommandClass{
		"mm-snap build":                    ClassBuild,
		"rebuild everything":               ClassBuild,
		"mm-snap build test deploy":        ClassBuild,
		"mm-snap test":                     ClassTest,
		"mm-snap test deploy":              ClassTest,
		"mm-snap deploy --network testnet": ClassDeploy,
		"mm-snap deploy --network mainnet": ClassDeploy,
		"mm-snap verify --network testnet": ClassVerify,
		"mm-snap monitor --defi":           ClassMonitor,
		"mm-snap analyze --security":       ClassAnalyze,
		"mm-snap cross-chain --setup":      ClassCrossChain,
		"mm-snap help":                     ClassHelp,
		"mm-snap BUILD":                    ClassUnknown,
		"ls -la":                           ClassUnknown,
	}
	for command, want := range cases {
		assert.Equal(t, want, Classify(command), command)
	}
}

func TestDeployTarget(t *testing.T) {
	network, contract := DeployTarget("mm-snap deploy --network testnet")
	assert.Equal(t, "testnet", network)
	assert.Equal(t, "TokenContract", contract)

	network, contract = DeployTarget("mm-snap deploy defi")
	assert.Equal(t, "mainnet", network)
	assert.Equal(t, "DeFiProtocol", contract)
}

func TestExecute_BuildSucceeds(t *testing.T) {
	store := newFakeStore()
	interpreter, _, _ := newTestInterpreter(t, store, nil, newCountingObserver())

	for _, command := range []string{"mm-snap build", "build", "prebuild --fast"} {
		result, err := interpreter.Execute(context.Background(), command, 1)
		require.NoError(t, err)
		assert.Equal(t, 0, result.ExitCode)
		assert.Contains(t, result.Output, "Build completed successfully")
	}
	assert.Len(t, store.history, 3)
	assert.Empty(t, store.transactions)
}

func TestExecute_UnknownCommand(t *testing.T) {
	store := newFakeStore()
	interpreter, _, _ := newTestInterpreter(t, store, nil, newCountingObserver())

	result, err := interpreter.Execute(context.Background(), "rm -rf /tmp/x", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode)
	assert.Equal(t, "Unknown command: rm -rf /tmp/x\nType 'mm-snap help' for a list of available commands", result.Output)

	require.Len(t, store.history, 1)
	assert.Equal(t, 1, store.history[0].ExitCode)
	assert.Equal(t, result.Output, store.history[0].Output)
}

func TestExecute_RecognizedClassesExitZero(t *testing.T) {
	store := newFakeStore()
	interpreter, _, _ := newTestInterpreter(t, store, nil, newCountingObserver())

	for _, command := range []string{"mm-snap test", "mm-snap verify", "mm-snap monitor --defi", "mm-snap analyze", "mm-snap cross-chain --setup", "mm-snap help"} {
		result, err := interpreter.Execute(context.Background(), command, 3)
		require.NoError(t, err)
		assert.Equal(t, 0, result.ExitCode, command)
		assert.NotEmpty(t, result.Output, command)
	}
	assert.Empty(t, store.transactions)
}

func TestExecute_DeployCreatesTransaction(t *testing.T) {
	store := newFakeStore()
	events := &recordingPublisher{}
	observer := newCountingObserver()
	interpreter, ledger, _ := newTestInterpreter(t, store, events, observer)

	result, err := interpreter.Execute(context.Background(), "mm-snap deploy --network testnet", 7)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Output, "Awaiting signature approval")

	pending, err := ledger.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	tx := pending[0]
	assert.Equal(t, "testnet", tx.Network)
	assert.Equal(t, "TokenContract", tx.ContractName)
	assert.Equal(t, "deploy", tx.Type)
	assert.Equal(t, domain.TransactionPending, tx.Status)
	assert.Equal(t, "1,245,678", tx.GasLimit)
	assert.Equal(t, "5 Gwei", tx.GasPrice)
	assert.Equal(t, "Deploy TokenContract to testnet", tx.Details)
	assert.Equal(t, int64(7), tx.ProjectID)

	require.Len(t, store.history, 1)
	assert.Equal(t, 0, store.history[0].ExitCode)
	assert.Len(t, events.transactions, 1)
	assert.Len(t, events.history, 1)
	assert.Equal(t, 1, observer.created)
	assert.Equal(t, 1, observer.commands[ClassDeploy])
}

func TestExecute_DeployDefaultsToMainnet(t *testing.T) {
	store := newFakeStore()
	interpreter, _, _ := newTestInterpreter(t, store, nil, nil)

	_, err := interpreter.Execute(context.Background(), "mm-snap deploy defi", 1)
	require.NoError(t, err)
	require.Len(t, store.transactions, 1)
	assert.Equal(t, "mainnet", store.transactions[0].Network)
	assert.Equal(t, "DeFiProtocol", store.transactions[0].ContractName)
}

func TestExecute_Validation(t *testing.T) {
	store := newFakeStore()
	interpreter, _, _ := newTestInterpreter(t, store, nil, nil)

	_, err := interpreter.Execute(context.Background(), "   ", 1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = interpreter.Execute(context.Background(), "mm-snap build", 0)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, store.history)
}

func TestExecute_PersistenceFailurePropagates(t *testing.T) {
	store := newFakeStore()
	store.historyErr = errors.New("disk full")
	interpreter, _, _ := newTestInterpreter(t, store, nil, nil)

	_, err := interpreter.Execute(context.Background(), "mm-snap build", 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)

	store.historyErr = nil
	store.txErr = errors.New("db down")
	_, err = interpreter.Execute(context.Background(), "mm-snap deploy", 1)
	require.Error(t, err)
	assert.Empty(t, store.history)
}

func TestExecute_PublisherFailureIsNotFatal(t *testing.T) {
	store := newFakeStore()
	events := &recordingPublisher{err: errors.New("broker unavailable")}
	interpreter, _, _ := newTestInterpreter(t, store, events, nil)

	result, err := interpreter.Execute(context.Background(), "mm-snap deploy --network testnet", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Len(t, store.transactions, 1)
}
