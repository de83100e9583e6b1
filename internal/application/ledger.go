package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"devconsole/internal/domain"
)

type LedgerConfig struct {
	// StrictTransitions rejects status changes on already resolved requests.
	StrictTransitions bool
}

// Ledger tracks transaction requests from pending to confirmed or rejected.
type Ledger struct {
	store    TransactionStore
	events   EventPublisher
	observer LedgerObserver
	cfg      LedgerConfig
}

func NewLedger(store TransactionStore, events EventPublisher, observer LedgerObserver, cfg LedgerConfig) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("transaction store is required")
	}
	return &Ledger{store: store, events: events, observer: observer, cfg: cfg}, nil
}

// Create records a new request. Status is always pending on creation.
func (l *Ledger) Create(ctx context.Context, input domain.TransactionInput) (domain.TransactionRequest, error) {
	if input.Type == "" {
		input.Type = domain.TransactionTypeDeploy
	}
	if input.Network == "" {
		return domain.TransactionRequest{}, fmt.Errorf("%w: network is required", ErrValidation)
	}
	tx, err := l.store.CreateTransaction(ctx, input)
	if err != nil {
		return domain.TransactionRequest{}, fmt.Errorf("create transaction: %w", err)
	}
	slog.Info("transaction request created", "id", tx.ID, "project", tx.ProjectID, "network", tx.Network, "contract", tx.ContractName)
	if l.observer != nil {
		l.observer.OnTransactionCreated(tx)
	}
	l.publish(ctx, tx)
	return tx, nil
}

// ListPending returns pending requests, most recent first.
func (l *Ledger) ListPending(ctx context.Context) ([]domain.TransactionRequest, error) {
	pending, err := l.store.PendingTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending transactions: %w", err)
	}
	filtered := make([]domain.TransactionRequest, 0, len(pending))
	for _, tx := range pending {
		if tx.Status == domain.TransactionPending {
			filtered = append(filtered, tx)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if !filtered[i].Timestamp.Equal(filtered[j].Timestamp) {
			return filtered[i].Timestamp.After(filtered[j].Timestamp)
		}
		return filtered[i].ID > filtered[j].ID
	})
	return filtered, nil
}

// Actionable returns the head of the pending list, the only request the
// approval surface acts on.
func (l *Ledger) Actionable(ctx context.Context) (domain.TransactionRequest, bool, error) {
	pending, err := l.ListPending(ctx)
	if err != nil {
		return domain.TransactionRequest{}, false, err
	}
	if len(pending) == 0 {
		return domain.TransactionRequest{}, false, nil
	}
	return pending[0], true, nil
}

// SetStatus resolves a request. Outside strict mode the prior status is not
// checked, so a resolved request may flip between confirmed and rejected, but
// never back to pending. In strict mode only a pending request is resolved and
// concurrent callers race inside the store, so exactly one of them wins.
func (l *Ledger) SetStatus(ctx context.Context, id int64, status domain.TransactionStatus) (domain.TransactionRequest, error) {
	if !status.Terminal() {
		return domain.TransactionRequest{}, fmt.Errorf("%w: status must be confirmed or rejected", ErrValidation)
	}
	var (
		tx  domain.TransactionRequest
		err error
	)
	if l.cfg.StrictTransitions {
		tx, err = l.store.ResolveTransaction(ctx, id, status)
	} else {
		tx, err = l.store.UpdateTransactionStatus(ctx, id, status)
	}
	if err != nil {
		return domain.TransactionRequest{}, fmt.Errorf("update transaction %d: %w", id, err)
	}
	slog.Info("transaction status changed", "id", tx.ID, "status", tx.Status)
	if l.observer != nil {
		l.observer.OnTransactionStatus(tx)
	}
	l.publish(ctx, tx)
	return tx, nil
}

func (l *Ledger) publish(ctx context.Context, tx domain.TransactionRequest) {
	if l.events == nil {
		return
	}
	if err := l.events.PublishTransaction(ctx, tx); err != nil {
		slog.Warn("transaction event publish failed", "id", tx.ID, "err", err)
	}
}
