package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"devconsole/internal/application"
	"devconsole/internal/domain"
)

// Repository keeps every entity in process memory keyed by auto-incrementing
// ids. A single mutex serializes writes, which also fixes history append order.
type Repository struct {
	mu           sync.RWMutex
	now          func() time.Time
	projects     map[int64]domain.Project
	commands     map[int64]domain.QuickCommand
	history      map[int64]domain.HistoryEntry
	transactions map[int64]domain.TransactionRequest
	nextProject  int64
	nextCommand  int64
	nextHistory  int64
	nextTx       int64
}

func NewRepository() *Repository {
	return &Repository{
		now:          time.Now,
		projects:     make(map[int64]domain.Project),
		commands:     make(map[int64]domain.QuickCommand),
		history:      make(map[int64]domain.HistoryEntry),
		transactions: make(map[int64]domain.TransactionRequest),
	}
}

// WithClock replaces the timestamp source.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
	return r
}

func (r *Repository) ListProjects(ctx context.Context) ([]domain.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	projects := make([]domain.Project, 0, len(r.projects))
	for _, project := range r.projects {
		projects = append(projects, project)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })
	return projects, nil
}

func (r *Repository) GetProject(ctx context.Context, id int64) (domain.Project, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	project, ok := r.projects[id]
	return project, ok, nil
}

func (r *Repository) CreateProject(ctx context.Context, input domain.ProjectInput) (domain.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextProject++
	project := domain.Project{
		ID:        r.nextProject,
		Name:      input.Name,
		Path:      input.Path,
		Framework: input.Framework,
		LastBuild: input.LastBuild,
		UserID:    input.UserID,
	}
	r.projects[project.ID] = project
	return project, nil
}

func (r *Repository) QuickCommands(ctx context.Context, projectID int64) ([]domain.QuickCommand, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var commands []domain.QuickCommand
	for _, cmd := range r.commands {
		if cmd.ProjectID == projectID {
			commands = append(commands, cmd)
		}
	}
	sort.Slice(commands, func(i, j int) bool { return commands[i].ID < commands[j].ID })
	return commands, nil
}

func (r *Repository) CreateQuickCommand(ctx context.Context, input domain.QuickCommandInput) (domain.QuickCommand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextCommand++
	cmd := domain.QuickCommand{
		ID:          r.nextCommand,
		Command:     input.Command,
		Description: input.Description,
		ProjectID:   input.ProjectID,
	}
	r.commands[cmd.ID] = cmd
	return cmd, nil
}

func (r *Repository) AppendHistory(ctx context.Context, input domain.HistoryInput) (domain.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextHistory++
	entry := domain.HistoryEntry{
		ID:        r.nextHistory,
		Command:   input.Command,
		Output:    input.Output,
		ExitCode:  input.ExitCode,
		Timestamp: r.now().UTC(),
		ProjectID: input.ProjectID,
	}
	r.history[entry.ID] = entry
	return entry, nil
}

func (r *Repository) HistoryByProject(ctx context.Context, filter application.HistoryQueryFilter) ([]domain.HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var entries []domain.HistoryEntry
	for _, entry := range r.history {
		if entry.ProjectID == filter.ProjectID {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID > entries[j].ID })
	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	return entries, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, input domain.TransactionInput) (domain.TransactionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextTx++
	tx := domain.TransactionRequest{
		ID:           r.nextTx,
		Type:         input.Type,
		Status:       domain.TransactionPending,
		Details:      input.Details,
		GasLimit:     input.GasLimit,
		GasPrice:     input.GasPrice,
		Network:      input.Network,
		ContractName: input.ContractName,
		ProjectID:    input.ProjectID,
		Timestamp:    r.now().UTC(),
	}
	r.transactions[tx.ID] = tx
	return tx, nil
}

func (r *Repository) GetTransaction(ctx context.Context, id int64) (domain.TransactionRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.transactions[id]
	if !ok {
		return domain.TransactionRequest{}, fmt.Errorf("%w: transaction %d", application.ErrNotFound, id)
	}
	return tx, nil
}

func (r *Repository) PendingTransactions(ctx context.Context) ([]domain.TransactionRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var pending []domain.TransactionRequest
	for _, tx := range r.transactions {
		if tx.Status == domain.TransactionPending {
			pending = append(pending, tx)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ID > pending[j].ID })
	return pending, nil
}

func (r *Repository) UpdateTransactionStatus(ctx context.Context, id int64, status domain.TransactionStatus) (domain.TransactionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.transactions[id]
	if !ok {
		return domain.TransactionRequest{}, fmt.Errorf("%w: transaction %d", application.ErrNotFound, id)
	}
	tx.Status = status
	r.transactions[id] = tx
	return tx, nil
}

func (r *Repository) ResolveTransaction(ctx context.Context, id int64, status domain.TransactionStatus) (domain.TransactionRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.transactions[id]
	if !ok {
		return domain.TransactionRequest{}, fmt.Errorf("%w: transaction %d", application.ErrNotFound, id)
	}
	if tx.Status.Terminal() {
		return domain.TransactionRequest{}, fmt.Errorf("%w: transaction %d is %s", application.ErrTerminalState, id, tx.Status)
	}
	tx.Status = status
	r.transactions[id] = tx
	return tx, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return nil
}

func (r *Repository) Close() error {
	return nil
}
