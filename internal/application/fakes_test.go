package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"devconsole/internal/domain"
)

type fakeStore struct {
	mu           sync.Mutex
	clock        time.Time
	history      []domain.HistoryEntry
	transactions []domain.TransactionRequest
	historyErr   error
	txErr        error
	// getDelay stalls GetTransaction to widen any read-then-write window.
	getDelay time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{clock: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) AppendHistory(ctx context.Context, input domain.HistoryInput) (domain.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return domain.HistoryEntry{}, f.historyErr
	}
	entry := domain.HistoryEntry{
		ID:        int64(len(f.history) + 1),
		Command:   input.Command,
		Output:    input.Output,
		ExitCode:  input.ExitCode,
		ProjectID: input.ProjectID,
		Timestamp: f.tick(),
	}
	f.history = append(f.history, entry)
	return entry, nil
}

func (f *fakeStore) HistoryByProject(ctx context.Context, filter HistoryQueryFilter) ([]domain.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []domain.HistoryEntry
	for i := len(f.history) - 1; i >= 0; i-- {
		if f.history[i].ProjectID == filter.ProjectID {
			entries = append(entries, f.history[i])
		}
	}
	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	return entries, nil
}

func (f *fakeStore) CreateTransaction(ctx context.Context, input domain.TransactionInput) (domain.TransactionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.txErr != nil {
		return domain.TransactionRequest{}, f.txErr
	}
	tx := domain.TransactionRequest{
		ID:           int64(len(f.transactions) + 1),
		Type:         input.Type,
		Status:       domain.TransactionPending,
		Details:      input.Details,
		GasLimit:     input.GasLimit,
		GasPrice:     input.GasPrice,
		Network:      input.Network,
		ContractName: input.ContractName,
		ProjectID:    input.ProjectID,
		Timestamp:    f.tick(),
	}
	f.transactions = append(f.transactions, tx)
	return tx, nil
}

func (f *fakeStore) GetTransaction(ctx context.Context, id int64) (domain.TransactionRequest, error) {
	if f.getDelay > 0 {
		time.Sleep(f.getDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.transactions {
		if tx.ID == id {
			return tx, nil
		}
	}
	return domain.TransactionRequest{}, fmt.Errorf("%w: transaction %d", ErrNotFound, id)
}

// PendingTransactions returns oldest first; ordering is left to the ledger.
func (f *fakeStore) PendingTransactions(ctx context.Context) ([]domain.TransactionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pending []domain.TransactionRequest
	for _, tx := range f.transactions {
		if tx.Status == domain.TransactionPending {
			pending = append(pending, tx)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending, nil
}

func (f *fakeStore) UpdateTransactionStatus(ctx context.Context, id int64, status domain.TransactionStatus) (domain.TransactionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.transactions {
		if f.transactions[i].ID == id {
			f.transactions[i].Status = status
			return f.transactions[i], nil
		}
	}
	return domain.TransactionRequest{}, fmt.Errorf("%w: transaction %d", ErrNotFound, id)
}

func (f *fakeStore) ResolveTransaction(ctx context.Context, id int64, status domain.TransactionStatus) (domain.TransactionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.transactions {
		if f.transactions[i].ID != id {
			continue
		}
		if f.transactions[i].Status.Terminal() {
			return domain.TransactionRequest{}, fmt.Errorf("%w: transaction %d is %s", ErrTerminalState, id, f.transactions[i].Status)
		}
		f.transactions[i].Status = status
		return f.transactions[i], nil
	}
	return domain.TransactionRequest{}, fmt.Errorf("%w: transaction %d", ErrNotFound, id)
}

type recordingPublisher struct {
	mu           sync.Mutex
	history      []domain.HistoryEntry
	transactions []domain.TransactionRequest
	err          error
}

func (p *recordingPublisher) PublishHistory(ctx context.Context, entry domain.HistoryEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, entry)
	return p.err
}

func (p *recordingPublisher) PublishTransaction(ctx context.Context, tx domain.TransactionRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transactions = append(p.transactions, tx)
	return p.err
}

type countingObserver struct {
	mu       sync.Mutex
	commands map[CommandClass]int
	created  int
	resolved int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{commands: make(map[CommandClass]int)}
}

func (o *countingObserver) OnCommandExecuted(class CommandClass, exitCode int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.commands[class]++
}

func (o *countingObserver) OnTransactionCreated(tx domain.TransactionRequest) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.created++
}

func (o *countingObserver) OnTransactionStatus(tx domain.TransactionRequest) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resolved++
}
