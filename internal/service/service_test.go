package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradelog/journal-engine/internal/model"
	"github.com/tradelog/journal-engine/internal/store"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// newServices builds a fresh store plus every service over it. Each test
// case constructs its own; nothing is shared or reset between tests.
func newServices() (*store.MemoryStore, *PositionService, *TradeService, *JournalService, *PriceService) {
	st := store.NewMemoryStore()
	return st,
		NewPositionService(st),
		NewTradeService(st),
		NewJournalService(st),
		NewPriceService(st, decimal.Zero)
}

func validPosition() model.Position {
	return model.Position{
		Symbol:           "AAPL",
		StrategyType:     model.StrategyLongStock,
		TargetEntryPrice: d("150"),
		TargetQuantity:   d("100"),
		ProfitTarget:     d("165"),
		StopLoss:         d("135"),
		Thesis:           "Breakout over resistance with sector strength.",
	}
}

func validOptionPosition() model.Position {
	p := validPosition()
	p.StrategyType = model.StrategyShortPut
	p.TradeKind = model.TradeKindOption
	p.TargetEntryPrice = d("100")
	p.TargetQuantity = d("1")
	p.ProfitTarget = d("50")
	p.StopLoss = d("200")
	p.Option = &model.OptionDetails{
		OptionType:         model.OptionPut,
		StrikePrice:        d("100"),
		ExpirationDate:     time.Now().UTC().AddDate(0, 1, 0),
		PremiumPerContract: d("3"),
		ProfitTargetBasis:  model.BasisOptionPrice,
		StopLossBasis:      model.BasisOptionPrice,
	}
	return p
}

func buyTrade(positionID, qty, price string) model.Trade {
	return model.Trade{
		PositionID: positionID,
		Direction:  model.DirectionBuy,
		Quantity:   d(qty),
		Price:      d(price),
	}
}

func sellTrade(positionID, qty, price string) model.Trade {
	return model.Trade{
		PositionID: positionID,
		Direction:  model.DirectionSell,
		Quantity:   d(qty),
		Price:      d(price),
	}
}

// failingStore wraps a Store and injects failures on selected operations,
// for exercising rollback and propagation paths.
type failingStore struct {
	store.Store
	createPositionErr error
	putPositionErr    error
	deleteEntryErr    error
}

func (f *failingStore) CreatePosition(ctx context.Context, p *model.Position) error {
	if f.createPositionErr != nil {
		return f.createPositionErr
	}
	return f.Store.CreatePosition(ctx, p)
}

func (f *failingStore) PutPosition(ctx context.Context, p *model.Position) error {
	if f.putPositionErr != nil {
		return f.putPositionErr
	}
	return f.Store.PutPosition(ctx, p)
}

func (f *failingStore) DeleteJournalEntry(ctx context.Context, id string) error {
	if f.deleteEntryErr != nil {
		return f.deleteEntryErr
	}
	return f.Store.DeleteJournalEntry(ctx, id)
}
