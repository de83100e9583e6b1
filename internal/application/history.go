package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"devconsole/internal/domain"
)

// HistoryLog is the append-only record of executed commands.
type HistoryLog struct {
	store  HistoryStore
	events EventPublisher
}

func NewHistoryLog(store HistoryStore, events EventPublisher) (*HistoryLog, error) {
	if store == nil {
		return nil, errors.New("history store is required")
	}
	return &HistoryLog{store: store, events: events}, nil
}

func (h *HistoryLog) Append(ctx context.Context, input domain.HistoryInput) (domain.HistoryEntry, error) {
	entry, err := h.store.AppendHistory(ctx, input)
	if err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("append history: %w", err)
	}
	if h.events != nil {
		if err := h.events.PublishHistory(ctx, entry); err != nil {
			slog.Warn("history event publish failed", "id", entry.ID, "err", err)
		}
	}
	return entry, nil
}

func (h *HistoryLog) ListByProject(ctx context.Context, projectID int64, limit int) ([]domain.HistoryEntry, error) {
	if projectID <= 0 {
		return nil, fmt.Errorf("%w: project id is required", ErrValidation)
	}
	entries, err := h.store.HistoryByProject(ctx, HistoryQueryFilter{
		ProjectID: projectID,
		Limit:     NormalizeHistoryLimit(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return entries, nil
}
