// Package api provides the HTTP handlers for the trading journal: position
// lifecycle, fills, journal entries, price history, and the planned-position
// compound create.
//
// All monetary values use shopspring/decimal — never float64 for money.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tradelog/journal-engine/internal/calc"
	"github.com/tradelog/journal-engine/internal/metrics"
	"github.com/tradelog/journal-engine/internal/model"
	"github.com/tradelog/journal-engine/internal/service"
	"github.com/tradelog/journal-engine/internal/store"
	"github.com/tradelog/journal-engine/internal/validate"
)

// Handler exposes the journal services over HTTP. Each handler decodes,
// delegates to a service, and maps the error to a status; no domain rules
// live here.
type Handler struct {
	positions *service.PositionService
	trades    *service.TradeService
	journal   *service.JournalService
	prices    *service.PriceService
	planner   *service.Planner
	hub       *Hub // optional WebSocket hub for real-time broadcasts
}

// NewHandler creates the HTTP handler set over the given services.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewHandler(
	positions *service.PositionService,
	trades *service.TradeService,
	journal *service.JournalService,
	prices *service.PriceService,
	planner *service.Planner,
	hub *Hub,
) *Handler {
	return &Handler{
		positions: positions,
		trades:    trades,
		journal:   journal,
		prices:    prices,
		planner:   planner,
		hub:       hub,
	}
}

// Routes builds the router for everything under /api/v1.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/positions", func(r chi.Router) {
		r.Get("/", h.ListPositions)
		r.Post("/", h.CreatePosition)
		r.Delete("/", h.ClearPositions)
		r.Route("/{positionID}", func(r chi.Router) {
			r.Get("/", h.GetPosition)
			r.Put("/", h.UpdatePosition)
			r.Delete("/", h.DeletePosition)
			r.Get("/risk", h.GetRisk)
			r.Get("/targets", h.GetTargets)
			r.Get("/pnl", h.GetPnL)
			r.Get("/cost-basis", h.GetCostBasis)
			r.Get("/status", h.GetStatus)
			r.Get("/trades", h.ListTrades)
			r.Post("/trades", h.AddTrade)
			r.Get("/entries", h.ListPositionEntries)
			r.Delete("/entries", h.DeletePositionEntries)
		})
	})

	r.Post("/plans", h.CreatePlan)

	r.Route("/entries", func(r chi.Router) {
		r.Get("/", h.ListEntriesByType)
		r.Post("/", h.CreateEntry)
		r.Get("/{entryID}", h.GetEntry)
		r.Delete("/{entryID}", h.DeleteEntry)
	})

	r.Get("/trades/{tradeID}/entries", h.ListTradeEntries)

	r.Route("/prices", func(r chi.Router) {
		r.Post("/", h.UpsertPrice)
		r.Post("/close", h.UpsertClose)
		r.Route("/{underlying}", func(r chi.Router) {
			r.Get("/", h.ListPrices)
			r.Get("/latest", h.GetLatestPrice)
			r.Get("/{date}", h.GetPrice)
			r.Post("/check", h.CheckPriceChange)
		})
	})

	if h.hub != nil {
		r.Get("/ws", h.hub.HandleWS)
	}

	return r
}

// --- Request/Response types ---

// TradeResponse is the JSON body returned from POST /positions/{id}/trades:
// the full updated trade list plus the status it derives to.
type TradeResponse struct {
	PositionID string               `json:"position_id"`
	Status     model.PositionStatus `json:"status"`
	Trades     []model.Trade        `json:"trades"`
}

// CreatePlanRequest is the JSON body for POST /plans.
type CreatePlanRequest struct {
	Position model.Position     `json:"position"`
	Fields   []model.EntryField `json:"fields"`
}

// PlanResponse is the JSON body returned from POST /plans.
type PlanResponse struct {
	Position *model.Position     `json:"position"`
	Entry    *model.JournalEntry `json:"entry"`
}

// ClosePriceRequest is the JSON body for POST /prices/close, the single-value
// shortcut that fills a full OHLC record from one closing price.
type ClosePriceRequest struct {
	Underlying string          `json:"underlying"`
	Date       string          `json:"date"`
	Close      decimal.Decimal `json:"close"`
}

// PriceCheckRequest is the JSON body for POST /prices/{underlying}/check.
type PriceCheckRequest struct {
	NewPrice decimal.Decimal `json:"new_price"`
}

// --- Position handlers ---

// CreatePosition handles POST /api/v1/positions
func (h *Handler) CreatePosition(w http.ResponseWriter, r *http.Request) {
	var p model.Position
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	created, err := h.positions.Create(r.Context(), p)
	if err != nil {
		writeError(w, err.Error(), statusFromError(err))
		return
	}

	metrics.PositionsCreated.Inc()
	if h.hub != nil {
		h.hub.Broadcast(Event{
			Type:       "position_created",
			PositionID: created.ID,
			Symbol:     created.Symbol,
			Status:     string(created.Status),
		})
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListPositions handles GET /api/v1/positions
func (h *Handler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.GetAll(r.Context())
	if err != nil {
		writeError(w, "failed to list positions", http.StatusInternalServerError)
		return
	}
	if positions == nil {
		positions = []model.Position{}
	}
	writeJSON(w, http.StatusOK, positions)
}

// GetPosition handles GET /api/v1/positions/{positionID}
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	p, err := h.positions.GetByID(r.Context(), chi.URLParam(r, "positionID"))
	if err != nil {
		writeError(w, err.Error(), statusFromError(err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdatePosition handles PUT /api/v1/positions/{positionID}
// The path id wins over whatever the body carries.
func (h *Handler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	var p model.Position
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	p.ID = chi.URLParam(r, "positionID")

	updated, err := h.positions.Update(r.Context(), p)
	if err != nil {
		writeError(w, err.Error(), statusFromError(err))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeletePosition handles DELETE /api/v1/positions/{positionID}
// Journal entries referencing the position stay; DELETE .../entries is the
// explicit cascade.
func (h *Handler) DeletePosition(w http.ResponseWriter, r *http.Request) {
	if err := h.positions.Delete(r.Context(), chi.URLParam(r, "positionID")); err != nil {
		writeError(w, err.Error(), statusFromError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearPositions handles DELETE /api/v1/positions
func (h *Handler) ClearPositions(w http.ResponseWriter, r *http.Request) {
	if err := h.positions.ClearAll(r.Context()); err != nil {
		writeError(w, "failed to clear positions", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetRisk handles GET /api/v1/positions/{positionID}/risk
func (h *Handler) GetRisk(w http.ResponseWriter, r *http.Request) {
	profile, err := h.positions.Risk(r.Context(), chi.URLParam(r, "positionID"))
	if err != nil {
		writeError(w, err.Error(), statusFromError(err))
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// GetTargets handles GET /api/v1/positions/{positionID}/targets
// The optional ?type= parameter tags how stored option targets are expressed
// (percentage or dollar); it defaults to percentage.
func (h *Handler) GetTargets(w http.ResponseWriter, r *http.Request) {
	targetType := model.TargetPercentage
	switch v := r.URL.Query().Get("type"); v {
	case "", string(model.TargetPercentage):
	case string(model.TargetDollar):
		targetType = model.TargetDollar
	default:
		writeError(w, "type must be percentage or dollar", http.StatusBadRequest)
		return
	}

	levels, err := h.positions.TargetLevels(r.Context(), chi.URLParam(r, "positionID"), targetType)
	if err != nil {
		writeError(w, err.Error(), statusFromError(err))
		return
	}
	writeJSON(w, http.StatusOK, levels)
}

// GetPnL handles GET /api/v1/positions/{positionID}/pnl
func (h *Handler) GetPnL(w http.ResponseWriter, r *http.Request) {
	report, err := h.positions.UnrealizedPnL(r.Context(), chi.URLParam(r, "positionID"))
	if err != nil {
		writeError(w, err.Error(), statusFromError(err))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetCostBasis handles GET /api/v1/positions/{positionID}/cost-basis
func (h *Handler) GetCostBasis(w http.ResponseWriter, r *http.Request) {
	basis, err := h.trades.CostBasis(r.Context(), chi.URLParam(r, "positionID"))
	if err != nil {
		writeError(w, err.Error(), statusFromError(err))
		return
	}
	writeJSON(w, http.StatusOK, basis)
}

// GetStatus handles GET /api/v1/positions/{positionID}/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	positionID := chi.URLParam(r, "positionID")
	status, err := h.trades.PositionStatus(r.Context(), positionID)
	if err != nil {
		writeError(w, err.Error(), statusFromError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"position_id": positionID,
		"status":      string(status),
	})
}

// --- Trade handlers ---

// AddTrade handles POST /api/v1/positions/{positionID}/trades
func (h *Handler) AddTrade(w http.ResponseWriter, r *http.Request) {
	var t model.Trade
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	t.PositionID = chi.URLParam(r, "positionID")

	trades, err := h.trades.AddTrade(r.Context(), t)
	if err != nil {
		writeError(w, err.Error(), statusFromError(err))
		return
	}

	status := calc.Status(trades)
	metrics.TradesRecorded.WithLabelValues(string(t.Direction)).Inc()
	if h.hub != nil {
		h.hub.Broadcast(Event{
			Type:       "trade_recorded",
			PositionID: t.PositionID,
			Status:     string(status),
			Direction:  string(t.Direction),
			Quantity:   t.Quantity.String(),
			Price:      t.Price.String(),
		})
	}
	writeJSON(w, http.StatusCreated, TradeResponse{
		PositionID: t.PositionID,
		Status:     status,
		Trades:     trades,
	})
}

// ListTrades handles GET /api/v1/positions/{positionID}/trades
func (h *Handler) ListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.trades.GetTradesByPositionID(r.Context(), chi.URLParam(r, "positionID"))
	if err != nil {
		writeError(w, err.Error(), statusFromError(err))
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

// --- Plan handler ---

// CreatePlan handles POST /api/v1/plans
// Creates a position together with its position_plan journal entry,
// cross-referenced both ways.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	position, entry, err := h.planner.CreatePlannedPosition(r.Context(), req.Position, req.Fields)
	if err != nil {
		writeError(w, err.Error(), statusFromError(err))
		return
	}

	metrics.PositionsCreated.Inc()
	if h.hub != nil {
		h.hub.Broadcast(Event{
			Type:       "position_created",
			PositionID: position.ID,
			Symbol:     position.Symbol,
			Status:     string(position.Status),
		})
	}
	writeJSON(w, http.StatusCreated, PlanResponse{Position: position, Entry: entry})
}

// --- Journal entry handlers ---

// CreateEntry handles POST /api/v1/entries
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var e model.JournalEntry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	created, err := h.journal.Create(r.Context(), e)
	if err != nil {
		writeError(w, err.Error(), statusFromError(err))
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetEntry handles GET /api/v1/entries/{entryID}
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.journal.GetByID(r.Context(), chi.URLParam(r, "entryID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "journal entry not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// DeleteEntry handles DELETE /api/v1/entries/{entryID}
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	err := h.journal.Delete(r.Context(), chi.URLParam(r, "entryID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "journal entry not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListEntriesByType handles GET /api/v1/entries?type=<entry_type>
func (h *Handler) ListEntriesByType(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query().Get("type")
	if v == "" {
		writeError(w, "type query parameter is required", http.StatusBadRequest)
		return
	}
	entryType := model.EntryType(v)
	if entryType != model.EntryPositionPlan && entryType != model.EntryTradeExecution {
		writeError(w, "unknown entry type: "+v, http.StatusBadRequest)
		return
	}

	entries, err := h.journal.GetByType(r.Context(), entryType)
	if err != nil {
		writeError(w, "failed to list entries", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ListPositionEntries handles GET /api/v1/positions/{positionID}/entries
// Entries come back newest first.
func (h *Handler) ListPositionEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.journal.GetByPositionID(r.Context(), chi.URLParam(r, "positionID"))
	if err != nil {
		writeError(w, "failed to list entries", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// DeletePositionEntries handles DELETE /api/v1/positions/{positionID}/entries
// This is the explicit journal cascade for a deleted position.
func (h *Handler) DeletePositionEntries(w http.ResponseWriter, r *http.Request) {
	n, err := h.journal.DeleteByPositionID(r.Context(), chi.URLParam(r, "positionID"))
	if err != nil {
		writeError(w, "failed to delete entries", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// ListTradeEntries handles GET /api/v1/trades/{tradeID}/entries
// Entries come back in the order they were written.
func (h *Handler) ListTradeEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.journal.GetByTradeID(r.Context(), chi.URLParam(r, "tradeID"))
	if err != nil {
		writeError(w, "failed to list entries", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Price handlers ---

// UpsertPrice handles POST /api/v1/prices
func (h *Handler) UpsertPrice(w http.ResponseWriter, r *http.Request) {
	var rec model.PriceRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.upsertPrice(w, r, rec)
}

// UpsertClose handles POST /api/v1/prices/close
func (h *Handler) UpsertClose(w http.ResponseWriter, r *http.Request) {
	var req ClosePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.upsertPrice(w, r, model.PriceRecord{
		Underlying: req.Underlying,
		Date:       req.Date,
		Open:       req.Close,
		High:       req.Close,
		Low:        req.Close,
		Close:      req.Close,
	})
}

func (h *Handler) upsertPrice(w http.ResponseWriter, r *http.Request, rec model.PriceRecord) {
	saved, err := h.prices.CreateOrUpdate(r.Context(), rec)
	if err != nil {
		writeError(w, err.Error(), statusFromError(err))
		return
	}

	metrics.PriceUpserts.Inc()
	if h.hub != nil {
		h.hub.Broadcast(Event{
			Type:       "price_updated",
			Underlying: saved.Underlying,
			Date:       saved.Date,
			Price:      saved.Close.String(),
		})
	}
	writeJSON(w, http.StatusCreated, saved)
}

// ListPrices handles GET /api/v1/prices/{underlying}
func (h *Handler) ListPrices(w http.ResponseWriter, r *http.Request) {
	records, err := h.prices.History(r.Context(), chi.URLParam(r, "underlying"))
	if err != nil {
		writeError(w, "failed to list prices", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// GetLatestPrice handles GET /api/v1/prices/{underlying}/latest
func (h *Handler) GetLatestPrice(w http.ResponseWriter, r *http.Request) {
	underlying := chi.URLParam(r, "underlying")
	rec, err := h.prices.GetLatest(r.Context(), underlying)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "no prices recorded for "+underlying, http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetPrice handles GET /api/v1/prices/{underlying}/{date}
func (h *Handler) GetPrice(w http.ResponseWriter, r *http.Request) {
	underlying := chi.URLParam(r, "underlying")
	date := chi.URLParam(r, "date")
	rec, err := h.prices.Get(r.Context(), underlying, date)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, "no price recorded for "+underlying+" on "+date, http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CheckPriceChange handles POST /api/v1/prices/{underlying}/check
// Screens a manually entered price against the latest stored close before
// the client commits it.
func (h *Handler) CheckPriceChange(w http.ResponseWriter, r *http.Request) {
	var req PriceCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	check, err := h.prices.ValidatePriceChange(r.Context(), chi.URLParam(r, "underlying"), req.NewPrice)
	if err != nil {
		writeError(w, err.Error(), statusFromError(err))
		return
	}
	if check.RequiresConfirmation {
		metrics.PriceConfirmations.Inc()
	}
	writeJSON(w, http.StatusOK, check)
}

// --- Error mapping ---

// statusFromError maps domain errors to HTTP statuses: constraint violations
// and duplicates conflict, validation failures are bad requests, store misses
// are not found, anything else is internal.
func statusFromError(err error) int {
	var constraint *validate.ConstraintError
	if errors.As(err, &constraint) {
		return http.StatusConflict
	}
	var invalid *validate.Error
	if errors.As(err, &invalid) {
		return http.StatusBadRequest
	}
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, store.ErrDuplicate) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes a JSON success response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
