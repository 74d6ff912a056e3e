package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tradelog/journal-engine/internal/model"
	"github.com/tradelog/journal-engine/internal/store"
)

func TestAddTradePositionNotFound(t *testing.T) {
	ctx := context.Background()
	_, _, trades, _, _ := newServices()

	_, err := trades.AddTrade(ctx, buyTrade("nope", "10", "100"))
	if err == nil || err.Error() != "Position not found: nope" {
		t.Fatalf("err = %v, want Position not found: nope", err)
	}
}

func TestAddTradeMintsDefaultsAndOpensPosition(t *testing.T) {
	ctx := context.Background()
	_, positions, trades, _, _ := newServices()

	created, err := positions.Create(ctx, validPosition())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	list, err := trades.AddTrade(ctx, buyTrade(created.ID, "50", "150"))
	if err != nil {
		t.Fatalf("AddTrade: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("trade list length = %d, want 1", len(list))
	}

	got := list[0]
	if got.ID == "" {
		t.Error("expected a minted trade id")
	}
	if got.Timestamp.IsZero() {
		t.Error("expected a minted timestamp")
	}
	if got.Underlying != "AAPL" {
		t.Errorf("Underlying = %q, want backfill from position symbol", got.Underlying)
	}

	status, err := trades.PositionStatus(ctx, created.ID)
	if err != nil {
		t.Fatalf("PositionStatus: %v", err)
	}
	if status != model.StatusOpen {
		t.Fatalf("status = %q, want %q", status, model.StatusOpen)
	}
}

func TestAddTradeKeepsExplicitUnderlying(t *testing.T) {
	ctx := context.Background()
	_, positions, trades, _, _ := newServices()

	created, err := positions.Create(ctx, validPosition())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	tr := buyTrade(created.ID, "1", "2.50")
	tr.Underlying = "AAPL260619P00140000"
	list, err := trades.AddTrade(ctx, tr)
	if err != nil {
		t.Fatalf("AddTrade: %v", err)
	}
	if list[0].Underlying != "AAPL260619P00140000" {
		t.Fatalf("Underlying = %q, explicit value overwritten", list[0].Underlying)
	}
}

// The planned → open → closed lifecycle, derived purely from the trade list.
func TestTradeLifecycle(t *testing.T) {
	ctx := context.Background()
	_, positions, trades, _, _ := newServices()

	created, err := positions.Create(ctx, validPosition())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != model.StatusPlanned {
		t.Fatalf("new position status = %q, want planned", created.Status)
	}

	if _, err := trades.AddTrade(ctx, buyTrade(created.ID, "50", "150")); err != nil {
		t.Fatalf("buy 50: %v", err)
	}
	p, err := positions.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if p.Status != model.StatusOpen {
		t.Fatalf("status after buy = %q, want open", p.Status)
	}

	basis, err := trades.CostBasis(ctx, created.ID)
	if err != nil {
		t.Fatalf("CostBasis: %v", err)
	}
	if !basis.TotalCost.Equal(d("7500")) {
		t.Errorf("TotalCost = %s, want 7500", basis.TotalCost)
	}
	if !basis.AverageCost.Equal(d("150")) {
		t.Errorf("AverageCost = %s, want 150", basis.AverageCost)
	}

	// Partial exit keeps it open.
	if _, err := trades.AddTrade(ctx, sellTrade(created.ID, "20", "160")); err != nil {
		t.Fatalf("sell 20: %v", err)
	}
	status, err := trades.PositionStatus(ctx, created.ID)
	if err != nil {
		t.Fatalf("PositionStatus: %v", err)
	}
	if status != model.StatusOpen {
		t.Fatalf("status after partial exit = %q, want open", status)
	}

	// Exiting the remainder closes it.
	if _, err := trades.AddTrade(ctx, sellTrade(created.ID, "30", "160")); err != nil {
		t.Fatalf("sell 30: %v", err)
	}
	p, err = positions.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if p.Status != model.StatusClosed {
		t.Fatalf("status after full exit = %q, want closed", p.Status)
	}

	basis, err = trades.CostBasis(ctx, created.ID)
	if err != nil {
		t.Fatalf("CostBasis: %v", err)
	}
	if !basis.OpenQuantity.IsZero() {
		t.Fatalf("OpenQuantity = %s, want 0", basis.OpenQuantity)
	}
	// Sells never reduce the buy-side basis.
	if !basis.TotalCost.Equal(d("7500")) {
		t.Fatalf("TotalCost after exits = %s, want 7500", basis.TotalCost)
	}
	if !basis.FirstBuyPrice.Equal(d("150")) {
		t.Fatalf("FirstBuyPrice = %s, want 150", basis.FirstBuyPrice)
	}

	// A fresh fill reopens; closed is not terminal.
	if _, err := trades.AddTrade(ctx, buyTrade(created.ID, "10", "155")); err != nil {
		t.Fatalf("re-entry buy: %v", err)
	}
	status, _ = trades.PositionStatus(ctx, created.ID)
	if status != model.StatusOpen {
		t.Fatalf("status after re-entry = %q, want open", status)
	}
}

func TestAddTradeRejectsOversell(t *testing.T) {
	ctx := context.Background()
	_, positions, trades, _, _ := newServices()

	created, err := positions.Create(ctx, validPosition())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := trades.AddTrade(ctx, buyTrade(created.ID, "50", "150")); err != nil {
		t.Fatalf("buy: %v", err)
	}

	_, err = trades.AddTrade(ctx, sellTrade(created.ID, "60", "160"))
	if err == nil || err.Error() != "exit quantity 60 exceeds open quantity 50" {
		t.Fatalf("oversell = %v, want exit quantity 60 exceeds open quantity 50", err)
	}

	// The rejected sell must not have touched the record.
	list, err := trades.GetTradesByPositionID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetTradesByPositionID: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("trade list length = %d after rejected exit, want 1", len(list))
	}
}

func TestAddTradeSellAtZeroPrice(t *testing.T) {
	ctx := context.Background()
	_, positions, trades, _, _ := newServices()

	// A short put assigned worthless: the exit records a sell at 0.
	created, err := positions.Create(ctx, validOptionPosition())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := trades.AddTrade(ctx, buyTrade(created.ID, "1", "3")); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := trades.AddTrade(ctx, sellTrade(created.ID, "1", "0")); err != nil {
		t.Fatalf("sell at 0: %v", err)
	}

	status, err := trades.PositionStatus(ctx, created.ID)
	if err != nil {
		t.Fatalf("PositionStatus: %v", err)
	}
	if status != model.StatusClosed {
		t.Fatalf("status = %q, want closed", status)
	}
}

func TestAddTradeValidationMessages(t *testing.T) {
	ctx := context.Background()
	_, positions, trades, _, _ := newServices()

	created, err := positions.Create(ctx, validPosition())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	zeroBuy := buyTrade(created.ID, "10", "0")
	if _, err := trades.AddTrade(ctx, zeroBuy); err == nil || err.Error() != "buy price must be positive" {
		t.Fatalf("zero-price buy = %v, want buy price must be positive", err)
	}

	future := buyTrade(created.ID, "10", "100")
	future.Timestamp = time.Now().Add(48 * time.Hour)
	if _, err := trades.AddTrade(ctx, future); err == nil || err.Error() != "timestamp cannot be in the future" {
		t.Fatalf("future timestamp = %v, want timestamp cannot be in the future", err)
	}

	sideways := buyTrade(created.ID, "10", "100")
	sideways.Direction = "hold"
	if _, err := trades.AddTrade(ctx, sideways); err == nil || err.Error() != "direction must be buy or sell" {
		t.Fatalf("bad direction = %v, want direction must be buy or sell", err)
	}

	negQty := buyTrade(created.ID, "-5", "100")
	if _, err := trades.AddTrade(ctx, negQty); err == nil || err.Error() != "quantity must be positive" {
		t.Fatalf("negative quantity = %v, want quantity must be positive", err)
	}
}

// Store failures pass through untranslated; only validation and constraint
// errors carry contract messages.
func TestAddTradePropagatesStoreError(t *testing.T) {
	ctx := context.Background()
	writeErr := errors.New("disk full")
	st := &failingStore{Store: store.NewMemoryStore(), putPositionErr: writeErr}
	positions := NewPositionService(st)
	trades := NewTradeService(st)

	created, err := positions.Create(ctx, validPosition())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = trades.AddTrade(ctx, buyTrade(created.ID, "10", "150"))
	if !errors.Is(err, writeErr) {
		t.Fatalf("err = %v, want the raw store failure", err)
	}
}

func TestGetTradesByPositionID(t *testing.T) {
	ctx := context.Background()
	_, positions, trades, _, _ := newServices()

	if _, err := trades.GetTradesByPositionID(ctx, "nope"); err == nil || err.Error() != "Position not found: nope" {
		t.Fatalf("err = %v, want Position not found: nope", err)
	}

	created, err := positions.Create(ctx, validPosition())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	list, err := trades.GetTradesByPositionID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetTradesByPositionID: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("fresh position trades = %v, want empty non-nil list", list)
	}

	if _, err := trades.AddTrade(ctx, buyTrade(created.ID, "10", "150")); err != nil {
		t.Fatalf("AddTrade: %v", err)
	}
	if _, err := trades.AddTrade(ctx, buyTrade(created.ID, "5", "152")); err != nil {
		t.Fatalf("AddTrade: %v", err)
	}

	list, err = trades.GetTradesByPositionID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetTradesByPositionID: %v", err)
	}
	if len(list) != 2 || !list[0].Price.Equal(d("150")) || !list[1].Price.Equal(d("152")) {
		t.Fatalf("trades out of recording order: %+v", list)
	}
}

func TestCostBasisMixedDirections(t *testing.T) {
	ctx := context.Background()
	_, positions, trades, _, _ := newServices()

	created, err := positions.Create(ctx, validPosition())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := trades.AddTrade(ctx, buyTrade(created.ID, "10", "100")); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := trades.AddTrade(ctx, sellTrade(created.ID, "5", "110")); err != nil {
		t.Fatalf("sell: %v", err)
	}

	basis, err := trades.CostBasis(ctx, created.ID)
	if err != nil {
		t.Fatalf("CostBasis: %v", err)
	}
	if !basis.TotalCost.Equal(d("1000")) {
		t.Errorf("TotalCost = %s, want 1000 (buys only)", basis.TotalCost)
	}
	if !basis.OpenQuantity.Equal(d("5")) {
		t.Errorf("OpenQuantity = %s, want 5", basis.OpenQuantity)
	}
	// Average is the unweighted mean across both directions.
	if !basis.AverageCost.Equal(d("105")) {
		t.Errorf("AverageCost = %s, want 105", basis.AverageCost)
	}
	if !basis.FirstBuyPrice.Equal(d("100")) {
		t.Errorf("FirstBuyPrice = %s, want 100", basis.FirstBuyPrice)
	}
}

// With no trades the average cost anchors on the planned entry price.
func TestCostBasisEmptyFallsBackToTarget(t *testing.T) {
	ctx := context.Background()
	_, positions, trades, _, _ := newServices()

	created, err := positions.Create(ctx, validPosition())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	basis, err := trades.CostBasis(ctx, created.ID)
	if err != nil {
		t.Fatalf("CostBasis: %v", err)
	}
	if !basis.AverageCost.Equal(d("150")) {
		t.Errorf("AverageCost = %s, want target entry 150", basis.AverageCost)
	}
	if !basis.TotalCost.IsZero() || !basis.OpenQuantity.IsZero() || !basis.FirstBuyPrice.IsZero() {
		t.Errorf("empty-position basis = %+v, want zeros", basis)
	}
}
