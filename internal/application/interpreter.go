package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"devconsole/internal/domain"
)

type CommandClass string

const (
	ClassBuild      CommandClass = "build"
	ClassTest       CommandClass = "test"
	ClassDeploy     CommandClass = "deploy"
	ClassVerify     CommandClass = "verify"
	ClassMonitor    CommandClass = "monitor"
	ClassAnalyze    CommandClass = "analyze"
	ClassCrossChain CommandClass = "cross-chain"
	ClassHelp       CommandClass = "help"
	ClassUnknown    CommandClass = "unknown"
)

// Priority order for keyword matching; first match wins.
var classOrder = []CommandClass{
	ClassBuild,
	ClassTest,
	ClassDeploy,
	ClassVerify,
	ClassMonitor,
	ClassAnalyze,
	ClassCrossChain,
	ClassHelp,
}

const (
	mockGasLimit = "1,245,678"
	mockGasPrice = "5 Gwei"

	networkTestnet = "testnet"
	networkMainnet = "mainnet"

	contractDeFi  = "DeFiProtocol"
	contractToken = "TokenContract"
)

var classOutputs = map[CommandClass]string{
	ClassBuild: "Building project...\n" +
		"Installing dependencies...\n" +
		"✓ Dependencies installed successfully\n" +
		"Compiling contracts...\n" +
		"✓ 3 contracts compiled successfully\n" +
		"Building frontend...\n" +
		"✓ Frontend build complete\n" +
		"✓ Build completed successfully in 4.2s",
	ClassTest: "Running test suite...\n" +
		"✓ Contract: Token - 8 passing\n" +
		"✓ Contract: Marketplace - 12 passing\n" +
		"⚠ Contract: Auction - 9 passing, 1 pending\n" +
		"✓ All tests passed! (29 passing, 1 pending)",
	ClassVerify: "Verifying contract on block explorer...\n" +
		"Preparing contract source code...\n" +
		"Submitting verification request...\n" +
		"✓ Contract successfully verified",
	ClassMonitor: "Starting DeFi protocol monitoring...\n" +
		"Connecting to on-chain data providers...\n" +
		"✓ Connected to Ethereum mainnet\n" +
		"✓ Connected to liquidity pools\n" +
		"Monitoring active - transaction notifications enabled",
	ClassAnalyze: "Analyzing risk profile for DeFi protocol...\n" +
		"Checking security vulnerabilities...\n" +
		"✓ No critical vulnerabilities found\n" +
		"⚠ Medium risk: Oracle dependency identified\n" +
		"Analyzing gas efficiency...\n" +
		"✓ Gas optimization opportunities found\n" +
		"Generating report...",
	ClassCrossChain: "Setting up cross-chain monitoring...\n" +
		"Connecting to multiple networks:\n" +
		"✓ Ethereum mainnet connected\n" +
		"✓ Polygon connected\n" +
		"✓ Arbitrum connected\n" +
		"✓ Optimism connected\n" +
		"Cross-chain transaction monitoring active",
	ClassHelp: "Available commands:\n" +
		"- mm-snap build: Build your project\n" +
		"- mm-snap test: Run your test suite\n" +
		"- mm-snap deploy --network <network>: Deploy contracts to the specified network\n" +
		"- mm-snap verify --network <network>: Verify contract source code on block explorer\n" +
		"- mm-snap monitor --defi: Monitor DeFi protocol for events and transactions\n" +
		"- mm-snap analyze --security: Perform risk analysis on smart contracts\n" +
		"- mm-snap cross-chain --setup: Configure cross-chain transaction monitoring",
}

// ExecutionResult is the mock outcome of a command.
type ExecutionResult struct {
	Output   string `json:"output"`
	ExitCode int    `json:"exitCode"`
}

// Classify buckets a command by case-sensitive substring match. The network
// name "testnet" is masked first so it never reads as the test keyword.
func Classify(command string) CommandClass {
	text := strings.ReplaceAll(command, networkTestnet, " ")
	for _, class := range classOrder {
		if strings.Contains(text, string(class)) {
			return class
		}
	}
	return ClassUnknown
}

// DeployTarget derives the network and contract for a deploy command.
func DeployTarget(command string) (network, contract string) {
	network = networkMainnet
	if strings.Contains(command, networkTestnet) {
		network = networkTestnet
	}
	contract = contractToken
	if strings.Contains(command, "defi") {
		contract = contractDeFi
	}
	return network, contract
}

// Interpreter maps command text to a deterministic mock result, recording
// every invocation in the history log and raising a transaction request for
// deploys.
type Interpreter struct {
	ledger   *Ledger
	history  *HistoryLog
	observer CommandObserver
}

func NewInterpreter(ledger *Ledger, history *HistoryLog, observer CommandObserver) (*Interpreter, error) {
	if ledger == nil || history == nil {
		return nil, errors.New("interpreter dependencies must not be nil")
	}
	return &Interpreter{ledger: ledger, history: history, observer: observer}, nil
}

func (i *Interpreter) Execute(ctx context.Context, command string, projectID int64) (ExecutionResult, error) {
	if strings.TrimSpace(command) == "" {
		return ExecutionResult{}, fmt.Errorf("%w: command is required", ErrValidation)
	}
	if projectID <= 0 {
		return ExecutionResult{}, fmt.Errorf("%w: project id is required", ErrValidation)
	}

	class := Classify(command)
	result := ExecutionResult{Output: classOutputs[class]}
	switch class {
	case ClassDeploy:
		network, contract := DeployTarget(command)
		result.Output = deployOutput(contract)
		if _, err := i.ledger.Create(ctx, domain.TransactionInput{
			Type:         domain.TransactionTypeDeploy,
			Details:      fmt.Sprintf("Deploy %s to %s", contract, network),
			GasLimit:     mockGasLimit,
			GasPrice:     mockGasPrice,
			Network:      network,
			ContractName: contract,
			ProjectID:    projectID,
		}); err != nil {
			return ExecutionResult{}, fmt.Errorf("execute command: %w", err)
		}
	case ClassUnknown:
		result.Output = fmt.Sprintf("Unknown command: %s\nType 'mm-snap help' for a list of available commands", command)
		result.ExitCode = 1
	}

	if _, err := i.history.Append(ctx, domain.HistoryInput{
		Command:   command,
		Output:    result.Output,
		ExitCode:  result.ExitCode,
		ProjectID: projectID,
	}); err != nil {
		return ExecutionResult{}, fmt.Errorf("execute command: %w", err)
	}

	slog.Info("command executed", "project", projectID, "class", class, "exit_code", result.ExitCode)
	if i.observer != nil {
		i.observer.OnCommandExecuted(class, result.ExitCode)
	}
	return result, nil
}

func deployOutput(contract string) string {
	return "Preparing deployment...\n" +
		"⚠ Deployment requires transaction signing\n" +
		"Transaction details:\n" +
		"- Contract: " + contract + "\n" +
		"- Estimated gas: " + mockGasLimit + "\n" +
		"- Gas price: " + mockGasPrice + "\n" +
		"Awaiting signature approval in MetaMask..."
}
