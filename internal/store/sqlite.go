package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/tradelog/journal-engine/internal/model"
)

// SQLiteStore implements Store on a single local database file. It is the
// default backend: a personal journal wants a zero-setup, single-file store.
// Monetary values are stored as TEXT so decimals round-trip exactly; the
// embedded trade list, journal-entry ids, and option details are JSON
// columns, since the position record owns them and they are never queried
// independently.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database file at path and
// ensures the schema exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSQLiteSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS positions (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    strategy_type TEXT NOT NULL DEFAULT '',
    trade_kind TEXT NOT NULL DEFAULT '',
    target_entry_price TEXT NOT NULL,
    target_quantity TEXT NOT NULL,
    profit_target TEXT NOT NULL,
    stop_loss TEXT NOT NULL,
    thesis TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    journal_entry_ids TEXT NOT NULL DEFAULT '[]',
    trades TEXT NOT NULL DEFAULT '[]',
    option_details TEXT,
    schema_version INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_symbol ON positions(symbol);
CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);

CREATE TABLE IF NOT EXISTS journal_entries (
    id TEXT PRIMARY KEY,
    position_id TEXT NOT NULL DEFAULT '',
    trade_id TEXT NOT NULL DEFAULT '',
    entry_type TEXT NOT NULL,
    fields TEXT NOT NULL DEFAULT '[]',
    created_at DATETIME NOT NULL,
    executed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_journal_position ON journal_entries(position_id, created_at);
CREATE INDEX IF NOT EXISTS idx_journal_trade ON journal_entries(trade_id, created_at);
CREATE INDEX IF NOT EXISTS idx_journal_type ON journal_entries(entry_type, created_at);

CREATE TABLE IF NOT EXISTS price_history (
    underlying TEXT NOT NULL,
    date TEXT NOT NULL,
    open TEXT NOT NULL,
    high TEXT NOT NULL,
    low TEXT NOT NULL,
    close TEXT NOT NULL,
    updated_at DATETIME NOT NULL,
    PRIMARY KEY (underlying, date)
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// isSQLiteConstraint reports whether err is a primary-key or uniqueness
// violation.
func isSQLiteConstraint(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		serr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// --- Positions ---

const positionColumns = `id, symbol, strategy_type, trade_kind,
       target_entry_price, target_quantity, profit_target, stop_loss,
       thesis, status, journal_entry_ids, trades, option_details,
       schema_version, created_at`

func (s *SQLiteStore) CreatePosition(ctx context.Context, p *model.Position) error {
	args, err := positionArgs(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO positions (`+positionColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if isSQLiteConstraint(err) {
		return fmt.Errorf("position %s: %w", p.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PutPosition(ctx context.Context, p *model.Position) error {
	args, err := positionArgs(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO positions (`+positionColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    symbol=excluded.symbol,
    strategy_type=excluded.strategy_type,
    trade_kind=excluded.trade_kind,
    target_entry_price=excluded.target_entry_price,
    target_quantity=excluded.target_quantity,
    profit_target=excluded.profit_target,
    stop_loss=excluded.stop_loss,
    thesis=excluded.thesis,
    status=excluded.status,
    journal_entry_ids=excluded.journal_entry_ids,
    trades=excluded.trades,
    option_details=excluded.option_details,
    schema_version=excluded.schema_version,
    created_at=excluded.created_at`, args...)
	if err != nil {
		return fmt.Errorf("put position: %w", err)
	}
	return nil
}

// positionArgs flattens a position into the column order of positionColumns.
func positionArgs(p *model.Position) ([]any, error) {
	entryIDs, err := json.Marshal(idsOrEmpty(p.JournalEntryIDs))
	if err != nil {
		return nil, fmt.Errorf("marshal journal_entry_ids: %w", err)
	}
	trades, err := json.Marshal(tradesOrEmpty(p.Trades))
	if err != nil {
		return nil, fmt.Errorf("marshal trades: %w", err)
	}
	var option any
	if p.Option != nil {
		b, err := json.Marshal(p.Option)
		if err != nil {
			return nil, fmt.Errorf("marshal option details: %w", err)
		}
		option = string(b)
	}
	return []any{
		p.ID, p.Symbol, string(p.StrategyType), string(p.TradeKind),
		p.TargetEntryPrice.String(), p.TargetQuantity.String(),
		p.ProfitTarget.String(), p.StopLoss.String(),
		p.Thesis, string(p.Status), string(entryIDs), string(trades), option,
		p.SchemaVersion, p.CreatedAt.UTC(),
	}, nil
}

func idsOrEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func tradesOrEmpty(trades []model.Trade) []model.Trade {
	if trades == nil {
		return []model.Trade{}
	}
	return trades
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePosition(row rowScanner) (*model.Position, error) {
	var p model.Position
	var strategy, kind, status string
	var entryS, qtyS, targetS, stopS string
	var entryIDs, trades string
	var option sql.NullString

	err := row.Scan(&p.ID, &p.Symbol, &strategy, &kind,
		&entryS, &qtyS, &targetS, &stopS,
		&p.Thesis, &status, &entryIDs, &trades, &option,
		&p.SchemaVersion, &p.CreatedAt)
	if err != nil {
		return nil, err
	}

	p.StrategyType = model.StrategyType(strategy)
	p.TradeKind = model.TradeKind(kind)
	p.Status = model.PositionStatus(status)
	p.TargetEntryPrice, _ = decimal.NewFromString(entryS)
	p.TargetQuantity, _ = decimal.NewFromString(qtyS)
	p.ProfitTarget, _ = decimal.NewFromString(targetS)
	p.StopLoss, _ = decimal.NewFromString(stopS)

	if err := json.Unmarshal([]byte(entryIDs), &p.JournalEntryIDs); err != nil {
		return nil, fmt.Errorf("unmarshal journal_entry_ids: %w", err)
	}
	if err := json.Unmarshal([]byte(trades), &p.Trades); err != nil {
		return nil, fmt.Errorf("unmarshal trades: %w", err)
	}
	if option.Valid && option.String != "" {
		var o model.OptionDetails
		if err := json.Unmarshal([]byte(option.String), &o); err != nil {
			return nil, fmt.Errorf("unmarshal option details: %w", err)
		}
		p.Option = &o
	}
	return &p, nil
}

func (s *SQLiteStore) GetPosition(ctx context.Context, id string) (*model.Position, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+positionColumns+` FROM positions WHERE id = ?`, id)

	p, err := scanSQLitePosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("position %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get position %s: %w", id, err)
	}
	return p, nil
}

func (s *SQLiteStore) ListPositions(ctx context.Context) ([]model.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+positionColumns+` FROM positions ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		p, err := scanSQLitePosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}

func (s *SQLiteStore) DeletePosition(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM positions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete position %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("position %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ClearPositions(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM positions`); err != nil {
		return fmt.Errorf("clear positions: %w", err)
	}
	return nil
}

// --- Journal entries ---

func (s *SQLiteStore) PutJournalEntry(ctx context.Context, e *model.JournalEntry) error {
	fields, err := json.Marshal(e.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	var executed sql.NullTime
	if e.ExecutedAt != nil {
		executed = sql.NullTime{Time: e.ExecutedAt.UTC(), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO journal_entries (id, position_id, trade_id, entry_type, fields, created_at, executed_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    position_id=excluded.position_id,
    trade_id=excluded.trade_id,
    entry_type=excluded.entry_type,
    fields=excluded.fields,
    created_at=excluded.created_at,
    executed_at=excluded.executed_at`,
		e.ID, e.PositionID, e.TradeID, string(e.EntryType), string(fields),
		e.CreatedAt.UTC(), executed)
	if err != nil {
		return fmt.Errorf("put journal entry: %w", err)
	}
	return nil
}

func scanSQLiteEntry(row rowScanner) (*model.JournalEntry, error) {
	var e model.JournalEntry
	var entryType, fields string
	var executed sql.NullTime

	err := row.Scan(&e.ID, &e.PositionID, &e.TradeID, &entryType, &fields,
		&e.CreatedAt, &executed)
	if err != nil {
		return nil, err
	}
	e.EntryType = model.EntryType(entryType)
	if err := json.Unmarshal([]byte(fields), &e.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	if executed.Valid {
		ts := executed.Time
		e.ExecutedAt = &ts
	}
	return &e, nil
}

const journalColumns = `id, position_id, trade_id, entry_type, fields, created_at, executed_at`

func (s *SQLiteStore) GetJournalEntry(ctx context.Context, id string) (*model.JournalEntry, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+journalColumns+` FROM journal_entries WHERE id = ?`, id)

	e, err := scanSQLiteEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get journal entry %s: %w", id, err)
	}
	return e, nil
}

func (s *SQLiteStore) listEntries(ctx context.Context, query string, arg any) ([]model.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	var entries []model.JournalEntry
	for rows.Next() {
		e, err := scanSQLiteEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) ListJournalEntriesByPosition(ctx context.Context, positionID string) ([]model.JournalEntry, error) {
	return s.listEntries(ctx, `
SELECT `+journalColumns+` FROM journal_entries
WHERE position_id = ? ORDER BY created_at DESC, id DESC`, positionID)
}

func (s *SQLiteStore) ListJournalEntriesByTrade(ctx context.Context, tradeID string) ([]model.JournalEntry, error) {
	return s.listEntries(ctx, `
SELECT `+journalColumns+` FROM journal_entries
WHERE trade_id = ? ORDER BY created_at ASC, id ASC`, tradeID)
}

func (s *SQLiteStore) ListJournalEntriesByType(ctx context.Context, entryType model.EntryType) ([]model.JournalEntry, error) {
	return s.listEntries(ctx, `
SELECT `+journalColumns+` FROM journal_entries
WHERE entry_type = ? ORDER BY created_at DESC, id DESC`, string(entryType))
}

func (s *SQLiteStore) DeleteJournalEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM journal_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete journal entry %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("journal entry %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteJournalEntriesByPosition(ctx context.Context, positionID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM journal_entries WHERE position_id = ?`, positionID)
	if err != nil {
		return 0, fmt.Errorf("delete journal entries for position %s: %w", positionID, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// --- Price history ---

func (s *SQLiteStore) UpsertPrice(ctx context.Context, r *model.PriceRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO price_history (underlying, date, open, high, low, close, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(underlying, date) DO UPDATE SET
    open=excluded.open,
    high=excluded.high,
    low=excluded.low,
    close=excluded.close,
    updated_at=excluded.updated_at`,
		r.Underlying, r.Date,
		r.Open.String(), r.High.String(), r.Low.String(), r.Close.String(),
		r.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert price %s/%s: %w", r.Underlying, r.Date, err)
	}
	return nil
}

func scanSQLitePrice(row rowScanner) (*model.PriceRecord, error) {
	var r model.PriceRecord
	var openS, highS, lowS, closeS string

	err := row.Scan(&r.Underlying, &r.Date, &openS, &highS, &lowS, &closeS, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Open, _ = decimal.NewFromString(openS)
	r.High, _ = decimal.NewFromString(highS)
	r.Low, _ = decimal.NewFromString(lowS)
	r.Close, _ = decimal.NewFromString(closeS)
	return &r, nil
}

func (s *SQLiteStore) GetPrice(ctx context.Context, underlying, date string) (*model.PriceRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT underlying, date, open, high, low, close, updated_at
FROM price_history WHERE underlying = ? AND date = ?`, underlying, date)

	r, err := scanSQLitePrice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("price %s/%s: %w", underlying, date, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get price %s/%s: %w", underlying, date, err)
	}
	return r, nil
}

func (s *SQLiteStore) GetLatestPrice(ctx context.Context, underlying string) (*model.PriceRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT underlying, date, open, high, low, close, updated_at
FROM price_history WHERE underlying = ?
ORDER BY date DESC LIMIT 1`, underlying)

	r, err := scanSQLitePrice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("price %s: %w", underlying, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get latest price %s: %w", underlying, err)
	}
	return r, nil
}

func (s *SQLiteStore) ListPricesByUnderlying(ctx context.Context, underlying string) ([]model.PriceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT underlying, date, open, high, low, close, updated_at
FROM price_history WHERE underlying = ? ORDER BY date ASC`, underlying)
	if err != nil {
		return nil, fmt.Errorf("list prices %s: %w", underlying, err)
	}
	defer rows.Close()

	var records []model.PriceRecord
	for rows.Next() {
		r, err := scanSQLitePrice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}
