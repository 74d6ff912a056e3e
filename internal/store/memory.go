package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tradelog/journal-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for real journaling (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	positions map[string]*model.Position
	entries   map[string]*model.JournalEntry
	prices    map[string]*model.PriceRecord // keyed by underlying|date
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		positions: make(map[string]*model.Position),
		entries:   make(map[string]*model.JournalEntry),
		prices:    make(map[string]*model.PriceRecord),
	}
}

func priceMapKey(underlying, date string) string {
	return underlying + "|" + date
}

// Records are stored and returned as copies to avoid external mutation.
// Position and JournalEntry carry slices and pointers, so the copies go one
// level deep.

func clonePosition(p *model.Position) *model.Position {
	c := *p
	if p.JournalEntryIDs != nil {
		c.JournalEntryIDs = append([]string(nil), p.JournalEntryIDs...)
	}
	if p.Trades != nil {
		c.Trades = append([]model.Trade(nil), p.Trades...)
	}
	if p.Option != nil {
		o := *p.Option
		c.Option = &o
	}
	return &c
}

func cloneEntry(e *model.JournalEntry) *model.JournalEntry {
	c := *e
	if e.Fields != nil {
		c.Fields = append([]model.EntryField(nil), e.Fields...)
	}
	if e.ExecutedAt != nil {
		ts := *e.ExecutedAt
		c.ExecutedAt = &ts
	}
	return &c
}

// --- Positions ---

func (s *MemoryStore) CreatePosition(_ context.Context, p *model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[p.ID]; ok {
		return fmt.Errorf("position %s: %w", p.ID, ErrDuplicate)
	}
	s.positions[p.ID] = clonePosition(p)
	return nil
}

func (s *MemoryStore) PutPosition(_ context.Context, p *model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions[p.ID] = clonePosition(p)
	return nil
}

func (s *MemoryStore) GetPosition(_ context.Context, id string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[id]
	if !ok {
		return nil, fmt.Errorf("position %s: %w", id, ErrNotFound)
	}
	return clonePosition(p), nil
}

func (s *MemoryStore) ListPositions(_ context.Context) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	positions := make([]model.Position, 0, len(s.positions))
	for _, p := range s.positions {
		positions = append(positions, *clonePosition(p))
	}
	sort.Slice(positions, func(i, j int) bool {
		if !positions[i].CreatedAt.Equal(positions[j].CreatedAt) {
			return positions[i].CreatedAt.After(positions[j].CreatedAt)
		}
		return positions[i].ID > positions[j].ID
	})
	return positions, nil
}

func (s *MemoryStore) DeletePosition(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[id]; !ok {
		return fmt.Errorf("position %s: %w", id, ErrNotFound)
	}
	delete(s.positions, id)
	return nil
}

func (s *MemoryStore) ClearPositions(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions = make(map[string]*model.Position)
	return nil
}

// --- Journal entries ---

func (s *MemoryStore) PutJournalEntry(_ context.Context, e *model.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[e.ID] = cloneEntry(e)
	return nil
}

func (s *MemoryStore) GetJournalEntry(_ context.Context, id string) (*model.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("journal entry %s: %w", id, ErrNotFound)
	}
	return cloneEntry(e), nil
}

func (s *MemoryStore) ListJournalEntriesByPosition(_ context.Context, positionID string) ([]model.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []model.JournalEntry
	for _, e := range s.entries {
		if e.PositionID == positionID {
			matches = append(matches, *cloneEntry(e))
		}
	}
	sortEntries(matches, false)
	return matches, nil
}

func (s *MemoryStore) ListJournalEntriesByTrade(_ context.Context, tradeID string) ([]model.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []model.JournalEntry
	for _, e := range s.entries {
		if e.TradeID == tradeID {
			matches = append(matches, *cloneEntry(e))
		}
	}
	sortEntries(matches, true)
	return matches, nil
}

func (s *MemoryStore) ListJournalEntriesByType(_ context.Context, entryType model.EntryType) ([]model.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []model.JournalEntry
	for _, e := range s.entries {
		if e.EntryType == entryType {
			matches = append(matches, *cloneEntry(e))
		}
	}
	sortEntries(matches, false)
	return matches, nil
}

// sortEntries orders by creation time with the ULID id as tiebreak, so two
// entries minted in the same instant still list deterministically.
func sortEntries(entries []model.JournalEntry, oldestFirst bool) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if oldestFirst {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

func (s *MemoryStore) DeleteJournalEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return fmt.Errorf("journal entry %s: %w", id, ErrNotFound)
	}
	delete(s.entries, id)
	return nil
}

func (s *MemoryStore) DeleteJournalEntriesByPosition(_ context.Context, positionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, e := range s.entries {
		if e.PositionID == positionID {
			delete(s.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

// --- Price history ---

func (s *MemoryStore) UpsertPrice(_ context.Context, r *model.PriceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *r
	s.prices[priceMapKey(r.Underlying, r.Date)] = &c
	return nil
}

func (s *MemoryStore) GetPrice(_ context.Context, underlying, date string) (*model.PriceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.prices[priceMapKey(underlying, date)]
	if !ok {
		return nil, fmt.Errorf("price %s/%s: %w", underlying, date, ErrNotFound)
	}
	c := *r
	return &c, nil
}

func (s *MemoryStore) GetLatestPrice(_ context.Context, underlying string) (*model.PriceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *model.PriceRecord
	for _, r := range s.prices {
		if r.Underlying != underlying {
			continue
		}
		if latest == nil || r.Date > latest.Date {
			latest = r
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("price %s: %w", underlying, ErrNotFound)
	}
	c := *latest
	return &c, nil
}

func (s *MemoryStore) ListPricesByUnderlying(_ context.Context, underlying string) ([]model.PriceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []model.PriceRecord
	for _, r := range s.prices {
		if r.Underlying == underlying {
			records = append(records, *r)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Date < records[j].Date
	})
	return records, nil
}
