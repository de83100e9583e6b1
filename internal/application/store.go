package application

import (
	"context"

	"devconsole/internal/domain"
)

type ProjectStore interface {
	ListProjects(ctx context.Context) ([]domain.Project, error)
	GetProject(ctx context.Context, id int64) (domain.Project, bool, error)
	CreateProject(ctx context.Context, input domain.ProjectInput) (domain.Project, error)
	QuickCommands(ctx context.Context, projectID int64) ([]domain.QuickCommand, error)
	CreateQuickCommand(ctx context.Context, input domain.QuickCommandInput) (domain.QuickCommand, error)
}

// HistoryStore must assign ids in append order; listings are most recent first.
type HistoryStore interface {
	AppendHistory(ctx context.Context, input domain.HistoryInput) (domain.HistoryEntry, error)
	HistoryByProject(ctx context.Context, filter HistoryQueryFilter) ([]domain.HistoryEntry, error)
}

// TransactionStore returns ErrNotFound (wrapped) for unknown ids.
// ResolveTransaction changes the status only while the request is still
// pending, atomically with that check, and returns ErrTerminalState (wrapped)
// when the request was already resolved.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, input domain.TransactionInput) (domain.TransactionRequest, error)
	GetTransaction(ctx context.Context, id int64) (domain.TransactionRequest, error)
	PendingTransactions(ctx context.Context) ([]domain.TransactionRequest, error)
	UpdateTransactionStatus(ctx context.Context, id int64, status domain.TransactionStatus) (domain.TransactionRequest, error)
	ResolveTransaction(ctx context.Context, id int64, status domain.TransactionStatus) (domain.TransactionRequest, error)
}

type Store interface {
	ProjectStore
	HistoryStore
	TransactionStore
	Ping(ctx context.Context) error
	Close() error
}

// EventPublisher receives an audit copy of every history and ledger write.
type EventPublisher interface {
	PublishHistory(ctx context.Context, entry domain.HistoryEntry) error
	PublishTransaction(ctx context.Context, tx domain.TransactionRequest) error
}

type CommandObserver interface {
	OnCommandExecuted(class CommandClass, exitCode int)
}

type LedgerObserver interface {
	OnTransactionCreated(tx domain.TransactionRequest)
	OnTransactionStatus(tx domain.TransactionRequest)
}
