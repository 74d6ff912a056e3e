package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tradelog/journal-engine/internal/model"
)

// CachedStore wraps a primary Store with a Redis read-through cache for the
// two hot lookups: position-by-id (hit on every trade append and detail
// view) and latest-price-by-underlying (hit on every P&L refresh). Writes go
// to the primary store and invalidate the affected keys; journal entries and
// list queries pass through uncached.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func positionKey(id string) string { return fmt.Sprintf("position:%s", id) }

func latestPriceKey(underlying string) string { return fmt.Sprintf("price:latest:%s", underlying) }

// --- Positions ---

func (s *CachedStore) CreatePosition(ctx context.Context, p *model.Position) error {
	if err := s.primary.CreatePosition(ctx, p); err != nil {
		return err
	}
	s.cachePosition(ctx, p)
	return nil
}

func (s *CachedStore) PutPosition(ctx context.Context, p *model.Position) error {
	if err := s.primary.PutPosition(ctx, p); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, positionKey(p.ID))
	return nil
}

func (s *CachedStore) GetPosition(ctx context.Context, id string) (*model.Position, error) {
	data, err := s.rdb.Get(ctx, positionKey(id)).Bytes()
	if err == nil {
		var p model.Position
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetPosition(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cachePosition(ctx, p)
	return p, nil
}

func (s *CachedStore) ListPositions(ctx context.Context) ([]model.Position, error) {
	return s.primary.ListPositions(ctx)
}

func (s *CachedStore) DeletePosition(ctx context.Context, id string) error {
	if err := s.primary.DeletePosition(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, positionKey(id))
	return nil
}

func (s *CachedStore) ClearPositions(ctx context.Context) error {
	if err := s.primary.ClearPositions(ctx); err != nil {
		return err
	}
	// Best-effort sweep of every cached position.
	iter := s.rdb.Scan(ctx, 0, "position:*", 0).Iterator()
	for iter.Next(ctx) {
		s.rdb.Del(ctx, iter.Val())
	}
	return nil
}

// --- Journal entries (passthrough, not cached) ---

func (s *CachedStore) PutJournalEntry(ctx context.Context, e *model.JournalEntry) error {
	return s.primary.PutJournalEntry(ctx, e)
}

func (s *CachedStore) GetJournalEntry(ctx context.Context, id string) (*model.JournalEntry, error) {
	return s.primary.GetJournalEntry(ctx, id)
}

func (s *CachedStore) ListJournalEntriesByPosition(ctx context.Context, positionID string) ([]model.JournalEntry, error) {
	return s.primary.ListJournalEntriesByPosition(ctx, positionID)
}

func (s *CachedStore) ListJournalEntriesByTrade(ctx context.Context, tradeID string) ([]model.JournalEntry, error) {
	return s.primary.ListJournalEntriesByTrade(ctx, tradeID)
}

func (s *CachedStore) ListJournalEntriesByType(ctx context.Context, entryType model.EntryType) ([]model.JournalEntry, error) {
	return s.primary.ListJournalEntriesByType(ctx, entryType)
}

func (s *CachedStore) DeleteJournalEntry(ctx context.Context, id string) error {
	return s.primary.DeleteJournalEntry(ctx, id)
}

func (s *CachedStore) DeleteJournalEntriesByPosition(ctx context.Context, positionID string) (int, error) {
	return s.primary.DeleteJournalEntriesByPosition(ctx, positionID)
}

// --- Price history ---

func (s *CachedStore) UpsertPrice(ctx context.Context, r *model.PriceRecord) error {
	if err := s.primary.UpsertPrice(ctx, r); err != nil {
		return err
	}
	// The write may or may not change which record is latest; drop the key
	// and let the next read decide.
	s.rdb.Del(ctx, latestPriceKey(r.Underlying))
	return nil
}

func (s *CachedStore) GetPrice(ctx context.Context, underlying, date string) (*model.PriceRecord, error) {
	return s.primary.GetPrice(ctx, underlying, date)
}

func (s *CachedStore) GetLatestPrice(ctx context.Context, underlying string) (*model.PriceRecord, error) {
	data, err := s.rdb.Get(ctx, latestPriceKey(underlying)).Bytes()
	if err == nil {
		var r model.PriceRecord
		if json.Unmarshal(data, &r) == nil {
			return &r, nil
		}
	}

	r, err := s.primary.GetLatestPrice(ctx, underlying)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(r); err == nil {
		s.rdb.Set(ctx, latestPriceKey(underlying), data, s.ttl)
	}
	return r, nil
}

func (s *CachedStore) ListPricesByUnderlying(ctx context.Context, underlying string) ([]model.PriceRecord, error) {
	return s.primary.ListPricesByUnderlying(ctx, underlying)
}

// --- Cache helpers ---

func (s *CachedStore) cachePosition(ctx context.Context, p *model.Position) {
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, positionKey(p.ID), data, s.ttl)
	}
}
