package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/dgnsrekt/casewatch/internal/extract"
)

const (
	KeyLastScrape = "lastScrape"
	KeyShowBody   = "showBody"
)

// ErrStaleWrite rejects a record older than the one already cached.
var ErrStaleWrite = errors.New("cache: record older than cached record")

// Store is the result cache. It holds exactly one record; every successful
// Set replaces it.
type Store struct {
	kv         KV
	staleGuard bool

	// mu serializes read-compare-write for the stale guard.
	mu sync.Mutex
}

// Option customises a Store.
type Option func(*Store)

// WithStaleGuard rejects writes whose timestamp is older than the cached one.
func WithStaleGuard(on bool) Option { return func(s *Store) { s.staleGuard = on } }

func NewStore(kv KV, opts ...Option) *Store {
	s := &Store{kv: kv}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the cached record. ok is false when nothing was cached yet.
func (s *Store) Get(ctx context.Context) (extract.Record, bool, error) {
	data, err := s.kv.Get(ctx, KeyLastScrape)
	if errors.Is(err, ErrNotFound) {
		return extract.Record{}, false, nil
	}
	if err != nil {
		return extract.Record{}, false, err
	}
	var rec extract.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return extract.Record{}, false, fmt.Errorf("cache: decode %s: %w", KeyLastScrape, err)
	}
	return rec.Normalize(), true, nil
}

// Set replaces the cached record.
func (s *Store) Set(ctx context.Context, rec extract.Record) error {
	data, err := json.Marshal(rec.Normalize())
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", KeyLastScrape, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.staleGuard {
		prev, ok, err := s.Get(ctx)
		if err != nil {
			slog.Debug("cache stale guard read failed, overwriting", "error", err)
		} else if ok && rec.Timestamp < prev.Timestamp {
			return fmt.Errorf("%w: %d < %d", ErrStaleWrite, rec.Timestamp, prev.Timestamp)
		}
	}
	return s.kv.Set(ctx, KeyLastScrape, data)
}

// ShowBody reports the raw-text visibility preference. Unset means true.
func (s *Store) ShowBody(ctx context.Context) (bool, error) {
	data, err := s.kv.Get(ctx, KeyShowBody)
	if errors.Is(err, ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return true, err
	}
	v, err := strconv.ParseBool(string(data))
	if err != nil {
		slog.Debug("cache invalid showBody value, using default", "value", string(data), "error", err)
		return true, nil
	}
	return v, nil
}

func (s *Store) SetShowBody(ctx context.Context, show bool) error {
	return s.kv.Set(ctx, KeyShowBody, []byte(strconv.FormatBool(show)))
}

// ToggleShowBody persists the negation of the current preference and
// returns the new value.
func (s *Store) ToggleShowBody(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.ShowBody(ctx)
	if err != nil {
		return cur, err
	}
	next := !cur
	if err := s.SetShowBody(ctx, next); err != nil {
		return cur, err
	}
	return next, nil
}

func (s *Store) Close() error {
	return s.kv.Close()
}
