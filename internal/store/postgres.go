package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tradelog/journal-engine/internal/model"
)

// PostgresStore implements Store on PostgreSQL, for journals shared across
// machines. Monetary values are stored as NUMERIC for exact decimal
// precision; the embedded trade list, journal-entry ids, and option details
// live in JSONB columns.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS positions (
    id TEXT PRIMARY KEY,
    symbol TEXT NOT NULL,
    strategy_type TEXT NOT NULL DEFAULT '',
    trade_kind TEXT NOT NULL DEFAULT '',
    target_entry_price NUMERIC NOT NULL,
    target_quantity NUMERIC NOT NULL,
    profit_target NUMERIC NOT NULL,
    stop_loss NUMERIC NOT NULL,
    thesis TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    journal_entry_ids JSONB NOT NULL DEFAULT '[]',
    trades JSONB NOT NULL DEFAULT '[]',
    option_details JSONB,
    schema_version INT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_positions_symbol ON positions(symbol);
CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);

CREATE TABLE IF NOT EXISTS journal_entries (
    id TEXT PRIMARY KEY,
    position_id TEXT NOT NULL DEFAULT '',
    trade_id TEXT NOT NULL DEFAULT '',
    entry_type TEXT NOT NULL,
    fields JSONB NOT NULL DEFAULT '[]',
    created_at TIMESTAMPTZ NOT NULL,
    executed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_journal_position ON journal_entries(position_id, created_at);
CREATE INDEX IF NOT EXISTS idx_journal_trade ON journal_entries(trade_id, created_at);
CREATE INDEX IF NOT EXISTS idx_journal_type ON journal_entries(entry_type, created_at);

CREATE TABLE IF NOT EXISTS price_history (
    underlying TEXT NOT NULL,
    date TEXT NOT NULL,
    open NUMERIC NOT NULL,
    high NUMERIC NOT NULL,
    low NUMERIC NOT NULL,
    close NUMERIC NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (underlying, date)
);
`

// InitSchema creates the journal tables if they do not exist. Safe to run
// at every startup.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("init postgres schema: %w", err)
	}
	return nil
}

// isPGUnique reports whether err is a uniqueness violation (SQLSTATE 23505).
func isPGUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Positions ---

const pgPositionColumns = `id, symbol, strategy_type, trade_kind,
       target_entry_price::TEXT, target_quantity::TEXT,
       profit_target::TEXT, stop_loss::TEXT,
       thesis, status, journal_entry_ids, trades, option_details,
       schema_version, created_at`

func (s *PostgresStore) CreatePosition(ctx context.Context, p *model.Position) error {
	args, err := pgPositionArgs(p)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO positions (id, symbol, strategy_type, trade_kind,
        target_entry_price, target_quantity, profit_target, stop_loss,
        thesis, status, journal_entry_ids, trades, option_details,
        schema_version, created_at)
VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC,
        $9, $10, $11, $12, $13, $14, $15)`, args...)
	if isPGUnique(err) {
		return fmt.Errorf("position %s: %w", p.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

func (s *PostgresStore) PutPosition(ctx context.Context, p *model.Position) error {
	args, err := pgPositionArgs(p)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO positions (id, symbol, strategy_type, trade_kind,
        target_entry_price, target_quantity, profit_target, stop_loss,
        thesis, status, journal_entry_ids, trades, option_details,
        schema_version, created_at)
VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC,
        $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO UPDATE SET
    symbol = excluded.symbol,
    strategy_type = excluded.strategy_type,
    trade_kind = excluded.trade_kind,
    target_entry_price = excluded.target_entry_price,
    target_quantity = excluded.target_quantity,
    profit_target = excluded.profit_target,
    stop_loss = excluded.stop_loss,
    thesis = excluded.thesis,
    status = excluded.status,
    journal_entry_ids = excluded.journal_entry_ids,
    trades = excluded.trades,
    option_details = excluded.option_details,
    schema_version = excluded.schema_version,
    created_at = excluded.created_at`, args...)
	if err != nil {
		return fmt.Errorf("put position: %w", err)
	}
	return nil
}

func pgPositionArgs(p *model.Position) ([]any, error) {
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

func scanPGPosition(row pgx.Row) (*model.Position, error) {
	var p model.Position
	var strategy, kind, status string
	var entryS, qtyS, targetS, stopS string
	var entryIDs, trades, option []byte

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

	if err := json.Unmarshal(entryIDs, &p.JournalEntryIDs); err != nil {
		return nil, fmt.Errorf("unmarshal journal_entry_ids: %w", err)
	}
	if err := json.Unmarshal(trades, &p.Trades); err != nil {
		return nil, fmt.Errorf("unmarshal trades: %w", err)
	}
	if len(option) > 0 {
		var o model.OptionDetails
		if err := json.Unmarshal(option, &o); err != nil {
			return nil, fmt.Errorf("unmarshal option details: %w", err)
		}
		p.Option = &o
	}
	return &p, nil
}

func (s *PostgresStore) GetPosition(ctx context.Context, id string) (*model.Position, error) {
	row := s.pool.QueryRow(ctx, `
SELECT `+pgPositionColumns+` FROM positions WHERE id = $1`, id)

	p, err := scanPGPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("position %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get position %s: %w", id, err)
	}
	return p, nil
}

func (s *PostgresStore) ListPositions(ctx context.Context) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+pgPositionColumns+` FROM positions ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		p, err := scanPGPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}

func (s *PostgresStore) DeletePosition(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM positions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("position %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ClearPositions(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM positions`); err != nil {
		return fmt.Errorf("clear positions: %w", err)
	}
	return nil
}

// --- Journal entries ---

func (s *PostgresStore) PutJournalEntry(ctx context.Context, e *model.JournalEntry) error {
	fields, err := json.Marshal(e.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	var executed sql.NullTime
	if e.ExecutedAt != nil {
		executed = sql.NullTime{Time: e.ExecutedAt.UTC(), Valid: true}
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO journal_entries (id, position_id, trade_id, entry_type, fields, created_at, executed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    position_id = excluded.position_id,
    trade_id = excluded.trade_id,
    entry_type = excluded.entry_type,
    fields = excluded.fields,
    created_at = excluded.created_at,
    executed_at = excluded.executed_at`,
		e.ID, e.PositionID, e.TradeID, string(e.EntryType), string(fields),
		e.CreatedAt.UTC(), executed)
	if err != nil {
		return fmt.Errorf("put journal entry: %w", err)
	}
	return nil
}

func scanPGEntry(row pgx.Row) (*model.JournalEntry, error) {
	var e model.JournalEntry
	var entryType string
	var fields []byte
	var executed sql.NullTime

	err := row.Scan(&e.ID, &e.PositionID, &e.TradeID, &entryType, &fields,
		&e.CreatedAt, &executed)
	if err != nil {
		return nil, err
	}
	e.EntryType = model.EntryType(entryType)
	if err := json.Unmarshal(fields, &e.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	if executed.Valid {
		ts := executed.Time
		e.ExecutedAt = &ts
	}
	return &e, nil
}

const pgJournalColumns = `id, position_id, trade_id, entry_type, fields, created_at, executed_at`

func (s *PostgresStore) GetJournalEntry(ctx context.Context, id string) (*model.JournalEntry, error) {
	row := s.pool.QueryRow(ctx, `
SELECT `+pgJournalColumns+` FROM journal_entries WHERE id = $1`, id)

	e, err := scanPGEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("journal entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get journal entry %s: %w", id, err)
	}
	return e, nil
}

func (s *PostgresStore) listEntries(ctx context.Context, query string, arg any) ([]model.JournalEntry, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}
	defer rows.Close()

	var entries []model.JournalEntry
	for rows.Next() {
		e, err := scanPGEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) ListJournalEntriesByPosition(ctx context.Context, positionID string) ([]model.JournalEntry, error) {
	return s.listEntries(ctx, `
SELECT `+pgJournalColumns+` FROM journal_entries
WHERE position_id = $1 ORDER BY created_at DESC, id DESC`, positionID)
}

func (s *PostgresStore) ListJournalEntriesByTrade(ctx context.Context, tradeID string) ([]model.JournalEntry, error) {
	return s.listEntries(ctx, `
SELECT `+pgJournalColumns+` FROM journal_entries
WHERE trade_id = $1 ORDER BY created_at ASC, id ASC`, tradeID)
}

func (s *PostgresStore) ListJournalEntriesByType(ctx context.Context, entryType model.EntryType) ([]model.JournalEntry, error) {
	return s.listEntries(ctx, `
SELECT `+pgJournalColumns+` FROM journal_entries
WHERE entry_type = $1 ORDER BY created_at DESC, id DESC`, string(entryType))
}

func (s *PostgresStore) DeleteJournalEntry(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM journal_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete journal entry %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("journal entry %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteJournalEntriesByPosition(ctx context.Context, positionID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM journal_entries WHERE position_id = $1`, positionID)
	if err != nil {
		return 0, fmt.Errorf("delete journal entries for position %s: %w", positionID, err)
	}
	return int(tag.RowsAffected()), nil
}

// --- Price history ---

func (s *PostgresStore) UpsertPrice(ctx context.Context, r *model.PriceRecord) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO price_history (underlying, date, open, high, low, close, updated_at)
VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7)
ON CONFLICT (underlying, date) DO UPDATE SET
    open = excluded.open,
    high = excluded.high,
    low = excluded.low,
    close = excluded.close,
    updated_at = excluded.updated_at`,
		r.Underlying, r.Date,
		r.Open.String(), r.High.String(), r.Low.String(), r.Close.String(),
		r.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert price %s/%s: %w", r.Underlying, r.Date, err)
	}
	return nil
}

func scanPGPrice(row pgx.Row) (*model.PriceRecord, error) {
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

const pgPriceColumns = `underlying, date, open::TEXT, high::TEXT, low::TEXT, close::TEXT, updated_at`

func (s *PostgresStore) GetPrice(ctx context.Context, underlying, date string) (*model.PriceRecord, error) {
	row := s.pool.QueryRow(ctx, `
SELECT `+pgPriceColumns+` FROM price_history
WHERE underlying = $1 AND date = $2`, underlying, date)

	r, err := scanPGPrice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("price %s/%s: %w", underlying, date, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get price %s/%s: %w", underlying, date, err)
	}
	return r, nil
}

func (s *PostgresStore) GetLatestPrice(ctx context.Context, underlying string) (*model.PriceRecord, error) {
	row := s.pool.QueryRow(ctx, `
SELECT `+pgPriceColumns+` FROM price_history
WHERE underlying = $1 ORDER BY date DESC LIMIT 1`, underlying)

	r, err := scanPGPrice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("price %s: %w", underlying, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get latest price %s: %w", underlying, err)
	}
	return r, nil
}

func (s *PostgresStore) ListPricesByUnderlying(ctx context.Context, underlying string) ([]model.PriceRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+pgPriceColumns+` FROM price_history
WHERE underlying = $1 ORDER BY date ASC`, underlying)
	if err != nil {
		return nil, fmt.Errorf("list prices %s: %w", underlying, err)
	}
	defer rows.Close()

	var records []model.PriceRecord
	for rows.Next() {
		r, err := scanPGPrice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}
