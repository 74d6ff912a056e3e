package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradelog/journal-engine/internal/calc"
	"github.com/tradelog/journal-engine/internal/id"
	"github.com/tradelog/journal-engine/internal/migrate"
	"github.com/tradelog/journal-engine/internal/model"
	"github.com/tradelog/journal-engine/internal/store"
	"github.com/tradelog/journal-engine/internal/validate"
)

// TradeService records fills against positions. Trades are immutable once
// recorded and live embedded in their owning position, so every mutation is
// a read-modify-write of one position record; a service-level mutex
// serializes those so two concurrent fills against the same position cannot
// lose each other's append.
type TradeService struct {
	store store.Store
	mu    sync.Mutex
}

// NewTradeService creates a trade service over the given store.
func NewTradeService(st store.Store) *TradeService {
	return &TradeService{store: st}
}

// AddTrade appends a fill to its owning position and returns the full
// updated trade list. The trade's id and timestamp are minted when absent,
// and the underlying is backfilled from the position symbol so single-leg
// journals never have to repeat it. Sells are checked against the currently
// open quantity before anything is written; the position's status is
// re-derived from the new trade list before the write.
func (s *TradeService) AddTrade(ctx context.Context, t model.Trade) ([]model.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.loadPosition(ctx, t.PositionID)
	if err != nil {
		return nil, err
	}

	if t.ID == "" {
		t.ID = id.NewULID()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	if t.Underlying == "" {
		t.Underlying = p.Symbol
	}

	if err := validate.Trade(t); err != nil {
		return nil, err
	}
	if t.Direction == model.DirectionSell {
		if err := validate.ExitTrade(calc.OpenQuantity(p.Trades), t.Quantity, t.Price); err != nil {
			return nil, err
		}
	}

	p.Trades = append(p.Trades, t)
	p.Status = calc.Status(p.Trades)

	if err := s.store.PutPosition(ctx, p); err != nil {
		return nil, err
	}

	slog.Info("trade recorded",
		"trade_id", t.ID,
		"position_id", p.ID,
		"direction", t.Direction,
		"quantity", t.Quantity.String(),
		"price", t.Price.String(),
		"status", p.Status,
	)
	return p.Trades, nil
}

// GetTradesByPositionID returns a position's trades in recording order.
func (s *TradeService) GetTradesByPositionID(ctx context.Context, positionID string) ([]model.Trade, error) {
	p, err := s.loadPosition(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if p.Trades == nil {
		return []model.Trade{}, nil
	}
	return p.Trades, nil
}

// CostBasis is the aggregate purchase-cost summary for one position.
// AverageCost falls back to the planned entry price while no trades exist.
type CostBasis struct {
	PositionID    string          `json:"position_id"`
	AverageCost   decimal.Decimal `json:"average_cost"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	OpenQuantity  decimal.Decimal `json:"open_quantity"`
	FirstBuyPrice decimal.Decimal `json:"first_buy_price"`
}

// CostBasis computes the cost-basis summary for a position.
func (s *TradeService) CostBasis(ctx context.Context, positionID string) (*CostBasis, error) {
	p, err := s.loadPosition(ctx, positionID)
	if err != nil {
		return nil, err
	}
	return &CostBasis{
		PositionID:    p.ID,
		AverageCost:   calc.AverageCost(p.Trades, p.TargetEntryPrice),
		TotalCost:     calc.TotalCostBasis(p.Trades),
		OpenQuantity:  calc.OpenQuantity(p.Trades),
		FirstBuyPrice: calc.FirstBuyPrice(p.Trades),
	}, nil
}

// PositionStatus derives a position's lifecycle status from its trade list.
func (s *TradeService) PositionStatus(ctx context.Context, positionID string) (model.PositionStatus, error) {
	p, err := s.loadPosition(ctx, positionID)
	if err != nil {
		return "", err
	}
	return calc.Status(p.Trades), nil
}

// loadPosition resolves a position and lifts it to the current schema
// version, translating a store miss into the not-found contract message.
func (s *TradeService) loadPosition(ctx context.Context, positionID string) (*model.Position, error) {
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
