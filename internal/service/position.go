package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradelog/journal-engine/internal/calc"
	"github.com/tradelog/journal-engine/internal/id"
	"github.com/tradelog/journal-engine/internal/migrate"
	"github.com/tradelog/journal-engine/internal/model"
	"github.com/tradelog/journal-engine/internal/store"
	"github.com/tradelog/journal-engine/internal/validate"
)

// PositionService manages the position lifecycle. Reads always pass through
// the schema migration before anything else sees the record; writes always
// re-derive the status from the trade list so the stored value can never
// drift from the derived truth.
type PositionService struct {
	store store.Store
}

// NewPositionService creates a position service over the given store.
func NewPositionService(st store.Store) *PositionService {
	return &PositionService{store: st}
}

// Create validates and persists a new position. The id, creation timestamp,
// and trade kind are minted when the caller leaves them out; the strategy
// classification is not: new records must name their strategy explicitly,
// the read-time backfill exists only for legacy data. Option-variant
// positions get the second validation pass, which also pins the expiration
// date strictly after today.
func (s *PositionService) Create(ctx context.Context, p model.Position) (*model.Position, error) {
	if p.ID == "" {
		p.ID = id.NewPosition()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.TradeKind == "" {
		p.TradeKind = model.TradeKindStock
		if p.Option != nil {
			p.TradeKind = model.TradeKindOption
		}
	}
	if p.JournalEntryIDs == nil {
		p.JournalEntryIDs = []string{}
	}
	if p.Trades == nil {
		p.Trades = []model.Trade{}
	}
	p.Status = calc.Status(p.Trades)
	p.SchemaVersion = model.CurrentPositionVersion

	if err := validate.Position(p); err != nil {
		return nil, err
	}
	if p.IsOption() || p.StrategyType == model.StrategyShortPut {
		if err := validate.OptionPosition(p); err != nil {
			return nil, err
		}
	}

	if err := s.store.CreatePosition(ctx, &p); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, errPositionExists(p.ID)
		}
		return nil, err
	}

	slog.Info("position created",
		"id", p.ID,
		"symbol", p.Symbol,
		"strategy", p.StrategyType,
		"status", p.Status,
	)
	return &p, nil
}

// GetByID retrieves one position, lifted to the current schema version.
func (s *PositionService) GetByID(ctx context.Context, positionID string) (*model.Position, error) {
	stored, err := s.store.GetPosition(ctx, positionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errPositionNotFound(positionID)
		}
		return nil, err
	}
	p := migrate.Position(*stored)
	return &p, nil
}

// GetAll returns every position, newest first, each lifted to the current
// schema version. Migration happens per read; nothing is written back.
func (s *PositionService) GetAll(ctx context.Context) ([]model.Position, error) {
	positions, err := s.store.ListPositions(ctx)
	if err != nil {
		return nil, err
	}
	return migrate.Positions(positions), nil
}

// Update fully replaces a stored position. A nil trade list or entry-id list
// keeps whatever is stored, so a plain field edit cannot drop fills or entry
// links; status is re-derived from the trade list that ends up on the
// record. The option validation pass is creation-only; an aged option
// position would no longer clear the expiration check here.
func (s *PositionService) Update(ctx context.Context, p model.Position) (*model.Position, error) {
	current, err := s.GetByID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if p.Trades == nil {
		p.Trades = current.Trades
	}
	if p.JournalEntryIDs == nil {
		p.JournalEntryIDs = current.JournalEntryIDs
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = current.CreatedAt
	}
	p.Status = calc.Status(p.Trades)
	p.SchemaVersion = model.CurrentPositionVersion

	if err := validate.Position(p); err != nil {
		return nil, err
	}
	if err := s.store.PutPosition(ctx, &p); err != nil {
		return nil, err
	}

	slog.Info("position updated", "id", p.ID, "status", p.Status)
	return &p, nil
}

// Delete removes one position. Journal entries referencing it stay put;
// JournalService.DeleteByPositionID is the explicit cascade.
func (s *PositionService) Delete(ctx context.Context, positionID string) error {
	if err := s.store.DeletePosition(ctx, positionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errPositionNotFound(positionID)
		}
		return err
	}
	slog.Info("position deleted", "id", positionID)
	return nil
}

// ClearAll removes every position.
func (s *PositionService) ClearAll(ctx context.Context) error {
	if err := s.store.ClearPositions(ctx); err != nil {
		return err
	}
	slog.Info("positions cleared")
	return nil
}

// Risk computes the risk/reward profile for a position plan.
func (s *PositionService) Risk(ctx context.Context, positionID string) (*calc.RiskProfile, error) {
	p, err := s.GetByID(ctx, positionID)
	if err != nil {
		return nil, err
	}
	profile := calc.RiskReward(*p)
	return &profile, nil
}

// TargetLevels is a position's profit target and stop loss expressed as
// absolute dollar amounts.
type TargetLevels struct {
	PositionID   string          `json:"position_id"`
	ProfitTarget decimal.Decimal `json:"profit_target"`
	StopLoss     decimal.Decimal `json:"stop_loss"`
}

// TargetLevels converts the stored profit target and stop loss to dollar
// amounts. Stock positions pass through unchanged; option positions convert
// each level under its own basis selector, with targetType tagging how the
// stored values are expressed.
func (s *PositionService) TargetLevels(ctx context.Context, positionID string, targetType model.TargetType) (*TargetLevels, error) {
	p, err := s.GetByID(ctx, positionID)
	if err != nil {
		return nil, err
	}
	levels := &TargetLevels{
		PositionID:   p.ID,
		ProfitTarget: p.ProfitTarget,
		StopLoss:     p.StopLoss,
	}
	if p.Option != nil {
		o := p.Option
		levels.ProfitTarget = calc.OptionTargetDollar(o.ProfitTargetBasis, targetType, p.ProfitTarget, o.StrikePrice, o.PremiumPerContract)
		levels.StopLoss = calc.OptionTargetDollar(o.StopLossBasis, targetType, p.StopLoss, o.StrikePrice, o.PremiumPerContract)
	}
	return levels, nil
}

// PnLReport is the unrealized profit summary for one position. PnL is nil
// when no traded underlying has any price history; "no data" and "flat"
// are different answers.
type PnLReport struct {
	PositionID string           `json:"position_id"`
	CostBasis  decimal.Decimal  `json:"cost_basis"`
	PnL        *decimal.Decimal `json:"pnl"`
	PnLPercent decimal.Decimal  `json:"pnl_percent"`
}

// UnrealizedPnL marks the position's buys against the latest stored close
// for each traded underlying. Underlyings with no price history are skipped;
// if none have any, PnL stays nil.
func (s *PositionService) UnrealizedPnL(ctx context.Context, positionID string) (*PnLReport, error) {
	p, err := s.GetByID(ctx, positionID)
	if err != nil {
		return nil, err
	}

	priceMap := make(map[string]model.PriceRecord)
	for _, t := range p.Trades {
		if _, ok := priceMap[t.Underlying]; ok {
			continue
		}
		rec, err := s.store.GetLatestPrice(ctx, t.Underlying)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		priceMap[t.Underlying] = *rec
	}

	report := &PnLReport{
		PositionID: p.ID,
		CostBasis:  calc.TotalCostBasis(p.Trades),
	}
	if pnl, ok := calc.PositionPnL(*p, priceMap); ok {
		report.PnL = &pnl
		report.PnLPercent = calc.PnLPercentage(pnl, report.CostBasis)
	}
	return report, nil
}
