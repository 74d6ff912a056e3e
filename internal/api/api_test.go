package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tradelog/journal-engine/internal/api"
	"github.com/tradelog/journal-engine/internal/calc"
	"github.com/tradelog/journal-engine/internal/model"
	"github.com/tradelog/journal-engine/internal/service"
	"github.com/tradelog/journal-engine/internal/store"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// newTestEnv wires the full service stack over an in-memory store and mounts
// the routes the way cmd/server does.
func newTestEnv(t *testing.T) chi.Router {
	t.Helper()
	ms := store.NewMemoryStore()
	positions := service.NewPositionService(ms)
	trades := service.NewTradeService(ms)
	journal := service.NewJournalService(ms)
	prices := service.NewPriceService(ms, decimal.Zero)
	planner := service.NewPlanner(positions, journal)
	h := api.NewHandler(positions, trades, journal, prices, planner, nil)

	r := chi.NewRouter()
	r.Mount("/api/v1", h.Routes())
	return r
}

func do(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errMsg(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body not JSON: %v: %s", err, w.Body.String())
	}
	return body["error"]
}

func stockPosition() model.Position {
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

func putPosition() model.Position { // short put variant
	p := stockPosition()
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

// seedPosition creates a position over the API and returns the stored record.
func seedPosition(t *testing.T, router chi.Router, p model.Position) model.Position {
	t.Helper()
	w := do(t, router, "POST", "/api/v1/positions", p)
	if w.Code != http.StatusCreated {
		t.Fatalf("seed position: %d %s", w.Code, w.Body.String())
	}
	var created model.Position
	json.Unmarshal(w.Body.Bytes(), &created)
	return created
}

// --- Position tests ---

func TestCreatePosition_Valid(t *testing.T) {
	router := newTestEnv(t)

	w := do(t, router, "POST", "/api/v1/positions", stockPosition())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var created model.Position
	json.Unmarshal(w.Body.Bytes(), &created)

	if created.ID == "" {
		t.Error("expected non-empty id")
	}
	if created.Status != model.StatusPlanned {
		t.Errorf("expected status=planned, got %s", created.Status)
	}
	if created.TradeKind != model.TradeKindStock {
		t.Errorf("expected trade_kind=stock, got %s", created.TradeKind)
	}
	if created.SchemaVersion != model.CurrentPositionVersion {
		t.Errorf("expected schema_version=%d, got %d", model.CurrentPositionVersion, created.SchemaVersion)
	}
}

func TestCreatePosition_Invalid(t *testing.T) {
	router := newTestEnv(t)

	p := stockPosition()
	p.TargetEntryPrice = decimal.Zero
	w := do(t, router, "POST", "/api/v1/positions", p)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if msg := errMsg(t, w); msg != "target_entry_price must be positive" {
		t.Errorf("unexpected error message: %q", msg)
	}

	// Nothing is written on a rejected create.
	list := do(t, router, "GET", "/api/v1/positions", nil)
	var positions []model.Position
	json.Unmarshal(list.Body.Bytes(), &positions)
	if len(positions) != 0 {
		t.Errorf("expected 0 positions, got %d", len(positions))
	}
}

func TestCreatePosition_Duplicate(t *testing.T) {
	router := newTestEnv(t)

	p := stockPosition()
	p.ID = "pos-dup"
	if w := do(t, router, "POST", "/api/v1/positions", p); w.Code != http.StatusCreated {
		t.Fatalf("first create: %d %s", w.Code, w.Body.String())
	}

	w := do(t, router, "POST", "/api/v1/positions", p)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if msg := errMsg(t, w); msg != "position already exists: pos-dup" {
		t.Errorf("unexpected error message: %q", msg)
	}
}

func TestGetPosition_NotFound(t *testing.T) {
	router := newTestEnv(t)

	w := do(t, router, "GET", "/api/v1/positions/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if msg := errMsg(t, w); msg != "Position not found: missing" {
		t.Errorf("unexpected error message: %q", msg)
	}
}

func TestUpdatePosition_PreservesTrades(t *testing.T) {
	router := newTestEnv(t)
	created := seedPosition(t, router, stockPosition())

	buy := do(t, router, "POST", "/api/v1/positions/"+created.ID+"/trades", model.Trade{
		Direction: model.DirectionBuy,
		Quantity:  d("100"),
		Price:     d("150"),
	})
	if buy.Code != http.StatusCreated {
		t.Fatalf("buy: %d %s", buy.Code, buy.Body.String())
	}

	edit := stockPosition()
	edit.Thesis = "Updated thesis after the earnings call went well."
	w := do(t, router, "PUT", "/api/v1/positions/"+created.ID, edit)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var updated model.Position
	json.Unmarshal(w.Body.Bytes(), &updated)
	if updated.Thesis != edit.Thesis {
		t.Errorf("thesis not updated: %q", updated.Thesis)
	}
	if len(updated.Trades) != 1 {
		t.Fatalf("expected the buy to survive the edit, got %d trades", len(updated.Trades))
	}
	if updated.Status != model.StatusOpen {
		t.Errorf("expected status=open, got %s", updated.Status)
	}
}

func TestDeletePosition(t *testing.T) {
	router := newTestEnv(t)
	created := seedPosition(t, router, stockPosition())

	if w := do(t, router, "DELETE", "/api/v1/positions/"+created.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := do(t, router, "GET", "/api/v1/positions/"+created.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", w.Code)
	}
	if w := do(t, router, "DELETE", "/api/v1/positions/"+created.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 deleting twice, got %d", w.Code)
	}
}

func TestClearPositions(t *testing.T) {
	router := newTestEnv(t)
	seedPosition(t, router, stockPosition())
	seedPosition(t, router, stockPosition())

	if w := do(t, router, "DELETE", "/api/v1/positions", nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	list := do(t, router, "GET", "/api/v1/positions", nil)
	var positions []model.Position
	json.Unmarshal(list.Body.Bytes(), &positions)
	if len(positions) != 0 {
		t.Errorf("expected 0 positions after clear, got %d", len(positions))
	}
}

// --- Calculator endpoints ---

func TestGetRisk(t *testing.T) {
	router := newTestEnv(t)
	created := seedPosition(t, router, stockPosition())

	w := do(t, router, "GET", "/api/v1/positions/"+created.ID+"/risk", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var profile calc.RiskProfile
	json.Unmarshal(w.Body.Bytes(), &profile)

	if !profile.TotalInvestment.Equal(d("15000")) {
		t.Errorf("total investment = %s, want 15000", profile.TotalInvestment)
	}
	if !profile.MaxProfit.Equal(d("1500")) || !profile.MaxLoss.Equal(d("1500")) {
		t.Errorf("profit/loss = %s/%s, want 1500/1500", profile.MaxProfit, profile.MaxLoss)
	}
	if profile.RiskRewardRatio != "1:1" {
		t.Errorf("ratio = %q, want 1:1", profile.RiskRewardRatio)
	}
}

func TestGetTargets_OptionPercentage(t *testing.T) {
	router := newTestEnv(t)
	created := seedPosition(t, router, putPosition())

	w := do(t, router, "GET", "/api/v1/positions/"+created.ID+"/targets?type=percentage", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var levels service.TargetLevels
	json.Unmarshal(w.Body.Bytes(), &levels)

	// (100 - 3) scaled by 50% and 200%.
	if !levels.ProfitTarget.Equal(d("48.5")) {
		t.Errorf("profit target = %s, want 48.5", levels.ProfitTarget)
	}
	if !levels.StopLoss.Equal(d("194")) {
		t.Errorf("stop loss = %s, want 194", levels.StopLoss)
	}

	if w := do(t, router, "GET", "/api/v1/positions/"+created.ID+"/targets?type=weekly", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown target type, got %d", w.Code)
	}
}

func TestGetTargets_StockPassThrough(t *testing.T) {
	router := newTestEnv(t)
	created := seedPosition(t, router, stockPosition())

	w := do(t, router, "GET", "/api/v1/positions/"+created.ID+"/targets", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var levels service.TargetLevels
	json.Unmarshal(w.Body.Bytes(), &levels)
	if !levels.ProfitTarget.Equal(d("165")) || !levels.StopLoss.Equal(d("135")) {
		t.Errorf("levels = %s/%s, want 165/135", levels.ProfitTarget, levels.StopLoss)
	}
}

func TestGetPnL(t *testing.T) {
	router := newTestEnv(t)
	created := seedPosition(t, router, stockPosition())

	do(t, router, "POST", "/api/v1/positions/"+created.ID+"/trades", model.Trade{
		Direction: model.DirectionBuy,
		Quantity:  d("100"),
		Price:     d("150"),
	})

	// No price history yet: pnl must be null, not zero.
	w := do(t, router, "GET", "/api/v1/positions/"+created.ID+"/pnl", nil)
	var report service.PnLReport
	json.Unmarshal(w.Body.Bytes(), &report)
	if report.PnL != nil {
		t.Errorf("expected null pnl with no prices, got %s", report.PnL)
	}

	do(t, router, "POST", "/api/v1/prices/close", api.ClosePriceRequest{
		Underlying: "AAPL", Date: "2026-03-02", Close: d("155"),
	})

	w = do(t, router, "GET", "/api/v1/positions/"+created.ID+"/pnl", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	json.Unmarshal(w.Body.Bytes(), &report)

	if report.PnL == nil || !report.PnL.Equal(d("500")) {
		t.Fatalf("pnl = %v, want 500", report.PnL)
	}
	if !report.CostBasis.Equal(d("15000")) {
		t.Errorf("cost basis = %s, want 15000", report.CostBasis)
	}
	if !report.PnLPercent.Equal(d("3.33")) {
		t.Errorf("pnl percent = %s, want 3.33", report.PnLPercent)
	}
}

// --- Trade tests ---

func TestAddTrade_Lifecycle(t *testing.T) {
	router := newTestEnv(t)
	created := seedPosition(t, router, stockPosition())
	base := "/api/v1/positions/" + created.ID

	w := do(t, router, "POST", base+"/trades", model.Trade{
		Direction: model.DirectionBuy,
		Quantity:  d("100"),
		Price:     d("150"),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("buy: %d %s", w.Code, w.Body.String())
	}

	var resp api.TradeResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != model.StatusOpen {
		t.Errorf("status after buy = %s, want open", resp.Status)
	}
	if len(resp.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(resp.Trades))
	}
	if resp.Trades[0].Underlying != "AAPL" {
		t.Errorf("underlying = %q, want backfilled AAPL", resp.Trades[0].Underlying)
	}
	if resp.Trades[0].ID == "" || resp.Trades[0].Timestamp.IsZero() {
		t.Error("expected minted trade id and timestamp")
	}

	// Partial exit keeps the position open.
	w = do(t, router, "POST", base+"/trades", model.Trade{
		Direction: model.DirectionSell,
		Quantity:  d("40"),
		Price:     d("160"),
	})
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != model.StatusOpen {
		t.Errorf("status after partial exit = %s, want open", resp.Status)
	}

	// Closing the rest flips the status.
	w = do(t, router, "POST", base+"/trades", model.Trade{
		Direction: model.DirectionSell,
		Quantity:  d("60"),
		Price:     d("165"),
	})
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != model.StatusClosed {
		t.Errorf("status after full exit = %s, want closed", resp.Status)
	}

	// Selling out of a flat position conflicts.
	w = do(t, router, "POST", base+"/trades", model.Trade{
		Direction: model.DirectionSell,
		Quantity:  d("1"),
		Price:     d("165"),
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for oversell, got %d", w.Code)
	}
	if msg := errMsg(t, w); msg != "exit quantity 1 exceeds open quantity 0" {
		t.Errorf("unexpected error message: %q", msg)
	}

	status := do(t, router, "GET", base+"/status", nil)
	var statusBody map[string]string
	json.Unmarshal(status.Body.Bytes(), &statusBody)
	if statusBody["status"] != "closed" {
		t.Errorf("status endpoint = %q, want closed", statusBody["status"])
	}
}

func TestAddTrade_Validation(t *testing.T) {
	router := newTestEnv(t)
	created := seedPosition(t, router, stockPosition())

	w := do(t, router, "POST", "/api/v1/positions/"+created.ID+"/trades", model.Trade{
		Direction: "hold",
		Quantity:  d("10"),
		Price:     d("150"),
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if msg := errMsg(t, w); msg != "direction must be buy or sell" {
		t.Errorf("unexpected error message: %q", msg)
	}
}

func TestAddTrade_PositionNotFound(t *testing.T) {
	router := newTestEnv(t)

	w := do(t, router, "POST", "/api/v1/positions/missing/trades", model.Trade{
		Direction: model.DirectionBuy,
		Quantity:  d("10"),
		Price:     d("150"),
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if msg := errMsg(t, w); msg != "Position not found: missing" {
		t.Errorf("unexpected error message: %q", msg)
	}
}

func TestGetCostBasis(t *testing.T) {
	router := newTestEnv(t)
	created := seedPosition(t, router, stockPosition())
	base := "/api/v1/positions/" + created.ID

	do(t, router, "POST", base+"/trades", model.Trade{
		Direction: model.DirectionBuy, Quantity: d("100"), Price: d("150"),
	})

	w := do(t, router, "GET", base+"/cost-basis", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var basis service.CostBasis
	json.Unmarshal(w.Body.Bytes(), &basis)
	if !basis.TotalCost.Equal(d("15000")) {
		t.Errorf("total cost = %s, want 15000", basis.TotalCost)
	}
	if !basis.AverageCost.Equal(d("150")) || !basis.FirstBuyPrice.Equal(d("150")) {
		t.Errorf("average/first = %s/%s, want 150/150", basis.AverageCost, basis.FirstBuyPrice)
	}
	if !basis.OpenQuantity.Equal(d("100")) {
		t.Errorf("open quantity = %s, want 100", basis.OpenQuantity)
	}
}

// --- Plan tests ---

func TestCreatePlan(t *testing.T) {
	router := newTestEnv(t)

	w := do(t, router, "POST", "/api/v1/plans", api.CreatePlanRequest{
		Position: stockPosition(),
		Fields: []model.EntryField{
			{Name: "thesis", Prompt: "Why this trade?", Response: "Momentum continuation into product launch."},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp api.PlanResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Position == nil || resp.Entry == nil {
		t.Fatal("expected both records in response")
	}
	if resp.Entry.PositionID != resp.Position.ID {
		t.Errorf("entry position id = %q, want %q", resp.Entry.PositionID, resp.Position.ID)
	}
	if len(resp.Position.JournalEntryIDs) != 1 || resp.Position.JournalEntryIDs[0] != resp.Entry.ID {
		t.Errorf("position entry ids = %v, want [%s]", resp.Position.JournalEntryIDs, resp.Entry.ID)
	}

	entries := do(t, router, "GET", "/api/v1/positions/"+resp.Position.ID+"/entries", nil)
	var list []model.JournalEntry
	json.Unmarshal(entries.Body.Bytes(), &list)
	if len(list) != 1 || list[0].EntryType != model.EntryPositionPlan {
		t.Fatalf("entries = %+v, want the plan entry", list)
	}
}

func TestCreatePlan_RollsBack(t *testing.T) {
	router := newTestEnv(t)

	bad := stockPosition()
	bad.TargetEntryPrice = decimal.Zero
	w := do(t, router, "POST", "/api/v1/plans", api.CreatePlanRequest{
		Position: bad,
		Fields:   []model.EntryField{{Name: "thesis", Response: "A plan that will not survive validation."}},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	if msg := errMsg(t, w); msg != "target_entry_price must be positive" {
		t.Errorf("unexpected error message: %q", msg)
	}

	// The plan entry must not survive the failed position create.
	entries := do(t, router, "GET", "/api/v1/entries?type=position_plan", nil)
	var list []model.JournalEntry
	json.Unmarshal(entries.Body.Bytes(), &list)
	if len(list) != 0 {
		t.Errorf("expected 0 orphaned entries, got %d", len(list))
	}
}

// --- Journal entry tests ---

func TestEntryEndpoints(t *testing.T) {
	router := newTestEnv(t)
	created := seedPosition(t, router, stockPosition())

	w := do(t, router, "POST", "/api/v1/entries", model.JournalEntry{
		PositionID: created.ID,
		Fields:     []model.EntryField{{Name: "note", Response: "Watching for a pullback."}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var entry model.JournalEntry
	json.Unmarshal(w.Body.Bytes(), &entry)
	if entry.EntryType != model.EntryPositionPlan {
		t.Errorf("entry type = %s, want position_plan", entry.EntryType)
	}

	// Trade-linked entries default to trade_execution.
	w = do(t, router, "POST", "/api/v1/entries", model.JournalEntry{
		TradeID: "t-1",
		Fields:  []model.EntryField{{Name: "fill_notes", Response: "Filled in two lots."}},
	})
	var execEntry model.JournalEntry
	json.Unmarshal(w.Body.Bytes(), &execEntry)
	if execEntry.EntryType != model.EntryTradeExecution {
		t.Errorf("entry type = %s, want trade_execution", execEntry.EntryType)
	}

	byTrade := do(t, router, "GET", "/api/v1/trades/t-1/entries", nil)
	var list []model.JournalEntry
	json.Unmarshal(byTrade.Body.Bytes(), &list)
	if len(list) != 1 || list[0].ID != execEntry.ID {
		t.Fatalf("trade entries = %+v, want the execution entry", list)
	}

	if w := do(t, router, "GET", "/api/v1/entries/"+entry.ID, nil); w.Code != http.StatusOK {
		t.Errorf("get entry: expected 200, got %d", w.Code)
	}
	w = do(t, router, "GET", "/api/v1/entries/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if msg := errMsg(t, w); msg != "journal entry not found" {
		t.Errorf("unexpected error message: %q", msg)
	}

	if w := do(t, router, "GET", "/api/v1/entries", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without type param, got %d", w.Code)
	}

	// Cascade delete reports the count.
	w = do(t, router, "DELETE", "/api/v1/positions/"+created.ID+"/entries", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cascade: expected 200, got %d", w.Code)
	}
	var deleted map[string]int
	json.Unmarshal(w.Body.Bytes(), &deleted)
	if deleted["deleted"] != 1 {
		t.Errorf("deleted = %d, want 1", deleted["deleted"])
	}
}

func TestCreateEntry_RequiresReference(t *testing.T) {
	router := newTestEnv(t)

	w := do(t, router, "POST", "/api/v1/entries", model.JournalEntry{
		Fields: []model.EntryField{{Name: "note", Response: "floating reflection"}},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if msg := errMsg(t, w); msg != "journal entry requires a position_id or trade_id" {
		t.Errorf("unexpected error message: %q", msg)
	}
}

// --- Price tests ---

func TestPriceEndpoints(t *testing.T) {
	router := newTestEnv(t)

	w := do(t, router, "POST", "/api/v1/prices", model.PriceRecord{
		Underlying: "AAPL",
		Date:       "2026-03-01",
		Open:       d("94"),
		High:       d("96"),
		Low:        d("93"),
		Close:      d("95"),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, router, "POST", "/api/v1/prices/close", api.ClosePriceRequest{
		Underlying: "AAPL", Date: "2026-03-02", Close: d("100"),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("close shortcut: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var rec model.PriceRecord
	json.Unmarshal(w.Body.Bytes(), &rec)
	if !rec.Open.Equal(d("100")) || !rec.High.Equal(d("100")) || !rec.Low.Equal(d("100")) {
		t.Errorf("OHLC not filled from close: %+v", rec)
	}

	history := do(t, router, "GET", "/api/v1/prices/AAPL", nil)
	var records []model.PriceRecord
	json.Unmarshal(history.Body.Bytes(), &records)
	if len(records) != 2 || records[0].Date != "2026-03-01" {
		t.Fatalf("history = %+v, want 2 records in date order", records)
	}

	latest := do(t, router, "GET", "/api/v1/prices/AAPL/latest", nil)
	json.Unmarshal(latest.Body.Bytes(), &rec)
	if rec.Date != "2026-03-02" {
		t.Errorf("latest date = %s, want 2026-03-02", rec.Date)
	}

	byDate := do(t, router, "GET", "/api/v1/prices/AAPL/2026-03-01", nil)
	if byDate.Code != http.StatusOK {
		t.Fatalf("by date: expected 200, got %d", byDate.Code)
	}
	json.Unmarshal(byDate.Body.Bytes(), &rec)
	if !rec.Close.Equal(d("95")) {
		t.Errorf("close = %s, want 95", rec.Close)
	}

	w = do(t, router, "GET", "/api/v1/prices/TSLA/latest", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if msg := errMsg(t, w); msg != "no prices recorded for TSLA" {
		t.Errorf("unexpected error message: %q", msg)
	}
}

func TestUpsertPrice_Invalid(t *testing.T) {
	router := newTestEnv(t)

	w := do(t, router, "POST", "/api/v1/prices", model.PriceRecord{
		Underlying: "AAPL",
		Date:       "2026-03-01",
		Open:       d("10"),
		High:       d("12"),
		Low:        d("11"),
		Close:      d("10.5"),
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if msg := errMsg(t, w); msg != "low must not exceed open or close" {
		t.Errorf("unexpected error message: %q", msg)
	}
}

func TestCheckPriceChange(t *testing.T) {
	router := newTestEnv(t)

	do(t, router, "POST", "/api/v1/prices/close", api.ClosePriceRequest{
		Underlying: "AAPL", Date: "2026-03-02", Close: d("100"),
	})

	w := do(t, router, "POST", "/api/v1/prices/AAPL/check", api.PriceCheckRequest{NewPrice: d("125")})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var check service.PriceChangeCheck
	json.Unmarshal(w.Body.Bytes(), &check)
	if !check.RequiresConfirmation || !check.PercentChange.Equal(d("25")) {
		t.Errorf("check = %+v, want +25%% flagged", check)
	}

	w = do(t, router, "POST", "/api/v1/prices/AAPL/check", api.PriceCheckRequest{NewPrice: d("110")})
	json.Unmarshal(w.Body.Bytes(), &check)
	if check.RequiresConfirmation {
		t.Errorf("a 10%% move must not be flagged: %+v", check)
	}

	w = do(t, router, "POST", "/api/v1/prices/AAPL/check", api.PriceCheckRequest{NewPrice: decimal.Zero})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if msg := errMsg(t, w); msg != "new_price must be positive" {
		t.Errorf("unexpected error message: %q", msg)
	}

	// No history: nothing to compare against, nothing flagged.
	w = do(t, router, "POST", "/api/v1/prices/TSLA/check", api.PriceCheckRequest{NewPrice: d("250")})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	json.Unmarshal(w.Body.Bytes(), &check)
	if check.RequiresConfirmation || check.PreviousClose != nil {
		t.Errorf("check = %+v, want unflagged with nil previous close", check)
	}
}
