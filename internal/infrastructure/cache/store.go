package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"devconsole/internal/application"
	"devconsole/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	pendingVersionKey = "devconsole:pending:version"
	pendingKeyPrefix  = "devconsole:pending:v"
	historyVersionKey = "devconsole:history:version"
	historyKeyPrefix  = "devconsole:history:v"
	defaultCacheTTL   = time.Minute
)

type Config struct {
	Addr string
	TTL  time.Duration
}

// Store decorates an application.Store with a Redis read cache for the
// pending transaction list and per-project history. Writes bump a version
// key so stale entries are never served.
type Store struct {
	application.Store
	cache *redis.Client
	ttl   time.Duration
}

func NewStore(base application.Store, cfg Config) (*Store, error) {
	if base == nil {
		return nil, errors.New("base store is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return &Store{Store: base}, nil
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Store{Store: base, cache: client, ttl: cfg.TTL}, nil
}

func (s *Store) Enabled() bool {
	return s.cache != nil
}

func (s *Store) AppendHistory(ctx context.Context, input domain.HistoryInput) (domain.HistoryEntry, error) {
	entry, err := s.Store.AppendHistory(ctx, input)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	s.invalidate(ctx, historyVersionKey)
	return entry, nil
}

func (s *Store) HistoryByProject(ctx context.Context, filter application.HistoryQueryFilter) ([]domain.HistoryEntry, error) {
	if s.cache == nil {
		return s.Store.HistoryByProject(ctx, filter)
	}
	version, ok := s.version(ctx, historyVersionKey)
	if !ok {
		return s.Store.HistoryByProject(ctx, filter)
	}
	key := historyKeyPrefix + version +
		":project=" + strconv.FormatInt(filter.ProjectID, 10) +
		":limit=" + strconv.Itoa(application.NormalizeHistoryLimit(filter.Limit))
	var entries []domain.HistoryEntry
	if s.lookup(ctx, key, &entries) {
		return entries, nil
	}
	entries, err := s.Store.HistoryByProject(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, key, entries)
	return entries, nil
}

func (s *Store) CreateTransaction(ctx context.Context, input domain.TransactionInput) (domain.TransactionRequest, error) {
	tx, err := s.Store.CreateTransaction(ctx, input)
	if err != nil {
		return domain.TransactionRequest{}, err
	}
	s.invalidate(ctx, pendingVersionKey)
	return tx, nil
}

func (s *Store) UpdateTransactionStatus(ctx context.Context, id int64, status domain.TransactionStatus) (domain.TransactionRequest, error) {
	tx, err := s.Store.UpdateTransactionStatus(ctx, id, status)
	if err != nil {
		return domain.TransactionRequest{}, err
	}
	s.invalidate(ctx, pendingVersionKey)
	return tx, nil
}

func (s *Store) ResolveTransaction(ctx context.Context, id int64, status domain.TransactionStatus) (domain.TransactionRequest, error) {
	tx, err := s.Store.ResolveTransaction(ctx, id, status)
	if err != nil {
		return domain.TransactionRequest{}, err
	}
	s.invalidate(ctx, pendingVersionKey)
	return tx, nil
}

func (s *Store) PendingTransactions(ctx context.Context) ([]domain.TransactionRequest, error) {
	if s.cache == nil {
		return s.Store.PendingTransactions(ctx)
	}
	version, ok := s.version(ctx, pendingVersionKey)
	if !ok {
		return s.Store.PendingTransactions(ctx)
	}
	key := pendingKeyPrefix + version
	var pending []domain.TransactionRequest
	if s.lookup(ctx, key, &pending) {
		return pending, nil
	}
	pending, err := s.Store.PendingTransactions(ctx)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, key, pending)
	return pending, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.Store.Ping(ctx); err != nil {
		return err
	}
	if s.cache == nil {
		return nil
	}
	return s.cache.Ping(ctx).Err()
}

func (s *Store) Close() error {
	var cacheErr error
	if s.cache != nil {
		cacheErr = s.cache.Close()
	}
	return errors.Join(s.Store.Close(), cacheErr)
}

func (s *Store) lookup(ctx context.Context, key string, dest any) bool {
	cached, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(cached), dest) == nil
}

func (s *Store) fill(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, key, payload, s.ttl).Err()
}

func (s *Store) version(ctx context.Context, versionKey string) (string, bool) {
	version, err := s.cache.Get(ctx, versionKey).Result()
	if err == nil {
		return version, true
	}
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	return "", false
}

func (s *Store) invalidate(ctx context.Context, versionKey string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Incr(ctx, versionKey).Err()
}
