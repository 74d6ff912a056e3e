package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/tradelog/journal-engine/internal/id"
	"github.com/tradelog/journal-engine/internal/model"
	"github.com/tradelog/journal-engine/internal/store"
	"github.com/tradelog/journal-engine/internal/validate"
)

// JournalService manages free-text reflections. Entries own the back-link to
// their position or trade; the position's journal-entry-id list is a
// convenience the planner maintains, so creating an entry here never mutates
// the position record.
type JournalService struct {
	store store.Store
}

// NewJournalService creates a journal service over the given store.
func NewJournalService(st store.Store) *JournalService {
	return &JournalService{store: st}
}

// Create validates and persists a new journal entry. The id and creation
// timestamp are minted when absent; an absent entry classification defaults
// by reference: trade-linked entries become trade_execution, the rest
// position_plan.
func (s *JournalService) Create(ctx context.Context, e model.JournalEntry) (*model.JournalEntry, error) {
	if err := validate.JournalEntry(e); err != nil {
		return nil, err
	}
	if e.ID == "" {
		e.ID = id.NewULID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.EntryType == "" {
		e.EntryType = model.EntryPositionPlan
		if e.TradeID != "" {
			e.EntryType = model.EntryTradeExecution
		}
	}

	if err := s.store.PutJournalEntry(ctx, &e); err != nil {
		return nil, err
	}

	slog.Info("journal entry created",
		"entry_id", e.ID,
		"entry_type", e.EntryType,
		"position_id", e.PositionID,
		"trade_id", e.TradeID,
	)
	return &e, nil
}

// GetByID retrieves one entry.
func (s *JournalService) GetByID(ctx context.Context, entryID string) (*model.JournalEntry, error) {
	return s.store.GetJournalEntry(ctx, entryID)
}

// GetByPositionID returns a position's entries, newest first.
func (s *JournalService) GetByPositionID(ctx context.Context, positionID string) ([]model.JournalEntry, error) {
	return s.store.ListJournalEntriesByPosition(ctx, positionID)
}

// GetByTradeID returns a trade's entries in the order they were written.
func (s *JournalService) GetByTradeID(ctx context.Context, tradeID string) ([]model.JournalEntry, error) {
	return s.store.ListJournalEntriesByTrade(ctx, tradeID)
}

// GetByType returns every entry of one classification, newest first.
func (s *JournalService) GetByType(ctx context.Context, entryType model.EntryType) ([]model.JournalEntry, error) {
	return s.store.ListJournalEntriesByType(ctx, entryType)
}

// Delete removes a single entry.
func (s *JournalService) Delete(ctx context.Context, entryID string) error {
	return s.store.DeleteJournalEntry(ctx, entryID)
}

// DeleteByPositionID is the explicit cascade: it removes every entry
// referencing the position and reports how many went. Deleting a position
// without calling this leaves its entries readable by id and by trade.
func (s *JournalService) DeleteByPositionID(ctx context.Context, positionID string) (int, error) {
	n, err := s.store.DeleteJournalEntriesByPosition(ctx, positionID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("journal entries cascaded", "position_id", positionID, "deleted", n)
	}
	return n, nil
}
