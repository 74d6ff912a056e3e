package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradelog/journal-engine/internal/model"
	"github.com/tradelog/journal-engine/internal/store"
	"github.com/tradelog/journal-engine/internal/validate"
)

// DefaultConfirmThreshold is the absolute percent change against the latest
// stored close above which a manually entered price needs confirmation.
// Prices are hand-typed in this system; a fat-fingered digit moves a price
// far more than one trading day usually does.
var DefaultConfirmThreshold = decimal.NewFromInt(20)

// PriceService manages manually entered OHLC observations, keyed one record
// per (underlying, date) pair.
type PriceService struct {
	store            store.Store
	confirmThreshold decimal.Decimal
}

// NewPriceService creates a price service over the given store. A zero or
// negative confirmThreshold selects DefaultConfirmThreshold.
func NewPriceService(st store.Store, confirmThreshold decimal.Decimal) *PriceService {
	if confirmThreshold.Sign() <= 0 {
		confirmThreshold = DefaultConfirmThreshold
	}
	return &PriceService{store: st, confirmThreshold: confirmThreshold}
}

// CreateOrUpdate validates and upserts one observation. The upsert is
// idempotent on the (underlying, date) key: re-entering a day's prices
// overwrites rather than duplicates. The last-updated stamp is always set
// here, never taken from the caller.
func (s *PriceService) CreateOrUpdate(ctx context.Context, r model.PriceRecord) (*model.PriceRecord, error) {
	if err := validate.PriceRecord(r); err != nil {
		return nil, err
	}
	r.UpdatedAt = time.Now().UTC()

	if err := s.store.UpsertPrice(ctx, &r); err != nil {
		return nil, err
	}

	slog.Info("price recorded",
		"underlying", r.Underlying,
		"date", r.Date,
		"close", r.Close.String(),
	)
	return &r, nil
}

// CreateOrUpdateSimple records an observation from a single closing price,
// filling open, high, and low with the same value. This is the common path:
// most users only journal the close.
func (s *PriceService) CreateOrUpdateSimple(ctx context.Context, underlying, date string, close decimal.Decimal) (*model.PriceRecord, error) {
	return s.CreateOrUpdate(ctx, model.PriceRecord{
		Underlying: underlying,
		Date:       date,
		Open:       close,
		High:       close,
		Low:        close,
		Close:      close,
	})
}

// GetLatest returns the most recent observation for an underlying.
func (s *PriceService) GetLatest(ctx context.Context, underlying string) (*model.PriceRecord, error) {
	return s.store.GetLatestPrice(ctx, underlying)
}

// Get returns the observation for an exact (underlying, date) pair.
func (s *PriceService) Get(ctx context.Context, underlying, date string) (*model.PriceRecord, error) {
	return s.store.GetPrice(ctx, underlying, date)
}

// History returns every observation for an underlying in date order.
func (s *PriceService) History(ctx context.Context, underlying string) ([]model.PriceRecord, error) {
	records, err := s.store.ListPricesByUnderlying(ctx, underlying)
	if err != nil {
		return nil, err
	}
	if records == nil {
		return []model.PriceRecord{}, nil
	}
	return records, nil
}

// PriceChangeCheck is the result of screening a manually entered price
// against the latest stored close. PreviousClose is nil when the underlying
// has no history, in which case the change is zero and nothing is flagged.
type PriceChangeCheck struct {
	Underlying           string           `json:"underlying"`
	NewPrice             decimal.Decimal  `json:"new_price"`
	PreviousClose        *decimal.Decimal `json:"previous_close"`
	PercentChange        decimal.Decimal  `json:"percent_change"`
	RequiresConfirmation bool             `json:"requires_confirmation"`
}

// ValidatePriceChange compares a new price against the latest stored close
// and flags it for confirmation when the absolute percent change exceeds the
// service threshold. The signed change is rounded to two decimals; a change
// of exactly the threshold passes unflagged.
func (s *PriceService) ValidatePriceChange(ctx context.Context, underlying string, newPrice decimal.Decimal) (*PriceChangeCheck, error) {
	if newPrice.Sign() <= 0 {
		return nil, &validate.Error{Field: "new_price", Msg: "new_price must be positive"}
	}

	check := &PriceChangeCheck{
		Underlying:    underlying,
		NewPrice:      newPrice,
		PercentChange: decimal.Zero,
	}

	latest, err := s.store.GetLatestPrice(ctx, underlying)
	if errors.Is(err, store.ErrNotFound) {
		// First observation for this underlying; nothing to compare against.
		return check, nil
	}
	if err != nil {
		return nil, err
	}

	prev := latest.Close
	check.PreviousClose = &prev
	if prev.IsZero() {
		return check, nil
	}

	hundred := decimal.NewFromInt(100)
	check.PercentChange = newPrice.Sub(prev).Div(prev).Mul(hundred).Round(2)
	check.RequiresConfirmation = check.PercentChange.Abs().GreaterThan(s.confirmThreshold)

	if check.RequiresConfirmation {
		slog.Warn("price change needs confirmation",
			"underlying", underlying,
			"previous_close", prev.String(),
			"new_price", newPrice.String(),
			"percent_change", check.PercentChange.String(),
		)
	}
	return check, nil
}
