// Package store defines the persistence interface for the trading journal.
// Implementations include SQLite (the default, embedded single-file store),
// PostgreSQL, Redis (a read-through cache wrapping another Store), and
// in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/tradelog/journal-engine/internal/model"
)

// Sentinel errors. Implementations translate driver-level failures into
// these; services branch on them with errors.Is and propagate everything
// else untouched.
var (
	// ErrNotFound reports that no record matched the given key.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate reports an insert that collided with an existing key.
	ErrDuplicate = errors.New("record already exists")
)

// Store is the persistence interface. Trades are embedded in their owning
// position record; journal entries and price history are stored separately.
// Stores are dumb CRUD: schema-version migration and status derivation
// happen in the service layer, never here.
type Store interface {
	// --- Positions ---

	// CreatePosition inserts a new position. Fails with ErrDuplicate when
	// the id is already taken.
	CreatePosition(ctx context.Context, p *model.Position) error

	// PutPosition inserts or fully replaces a position.
	PutPosition(ctx context.Context, p *model.Position) error

	// GetPosition retrieves a position by id.
	GetPosition(ctx context.Context, id string) (*model.Position, error)

	// ListPositions returns all positions, newest first.
	ListPositions(ctx context.Context) ([]model.Position, error)

	// DeletePosition removes a position by id.
	DeletePosition(ctx context.Context, id string) error

	// ClearPositions removes every position.
	ClearPositions(ctx context.Context) error

	// --- Journal entries ---

	// PutJournalEntry inserts or fully replaces a journal entry.
	PutJournalEntry(ctx context.Context, e *model.JournalEntry) error

	// GetJournalEntry retrieves a journal entry by id.
	GetJournalEntry(ctx context.Context, id string) (*model.JournalEntry, error)

	// ListJournalEntriesByPosition returns a position's entries, newest first.
	ListJournalEntriesByPosition(ctx context.Context, positionID string) ([]model.JournalEntry, error)

	// ListJournalEntriesByTrade returns a trade's entries, oldest first.
	ListJournalEntriesByTrade(ctx context.Context, tradeID string) ([]model.JournalEntry, error)

	// ListJournalEntriesByType returns entries of one classification, newest first.
	ListJournalEntriesByType(ctx context.Context, entryType model.EntryType) ([]model.JournalEntry, error)

	// DeleteJournalEntry removes an entry by id.
	DeleteJournalEntry(ctx context.Context, id string) error

	// DeleteJournalEntriesByPosition removes every entry referencing the
	// position and reports how many were deleted.
	DeleteJournalEntriesByPosition(ctx context.Context, positionID string) (int, error)

	// --- Price history ---

	// UpsertPrice inserts or overwrites the record for its (underlying, date)
	// pair. The pair is unique at the storage level.
	UpsertPrice(ctx context.Context, r *model.PriceRecord) error

	// GetPrice retrieves the record for an exact (underlying, date) pair.
	GetPrice(ctx context.Context, underlying, date string) (*model.PriceRecord, error)

	// GetLatestPrice returns the record with the greatest date string for an
	// underlying. Date strings are YYYY-MM-DD, so lexicographic max is the
	// most recent observation.
	GetLatestPrice(ctx context.Context, underlying string) (*model.PriceRecord, error)

	// ListPricesByUnderlying returns all records for an underlying in
	// chronological order.
	ListPricesByUnderlying(ctx context.Context, underlying string) ([]model.PriceRecord, error)
}
