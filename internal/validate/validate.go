// Package validate contains the pure record validators for journal-engine.
// Validators never touch the store and have no side effects; services run
// them before any persistence call.
//
// Message text is part of the service contract: tests and UI collaborators
// match on it verbatim. Field-specific range checks run before the aggregate
// required-field check, so a zero or negative numeric field is reported with
// its specific message even though it would also fail the generic check.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/tradelog/journal-engine/internal/model"
)

// Error is a validation failure. Msg carries the contractual message text;
// Field names the offending input when one field is identifiable.
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string { return e.Msg }

// ConstraintError is a domain-constraint violation: the input is well formed
// but the operation is not allowed in the record's current state (for
// example, selling more than is open). Callers map it to a conflict rather
// than a bad request.
type ConstraintError struct {
	Field string
	Msg   string
}

func (e *ConstraintError) Error() string { return e.Msg }

// Aggregate required-field failures. These fire only after every
// field-specific check has passed.
var (
	ErrInvalidPosition = &Error{Msg: "Invalid position data"}
	ErrInvalidOption   = &Error{Msg: "Invalid option position data"}
	ErrInvalidTrade    = &Error{Msg: "Invalid trade data"}
)

// dateRegex matches the YYYY-MM-DD date keys used by price history.
var dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Position checks the shape and range invariants of a position record.
// StrategyType values are not restricted to the known constants, but one
// must be present.
func Position(p model.Position) error {
	if p.TargetEntryPrice.Sign() <= 0 {
		return &Error{Field: "target_entry_price", Msg: "target_entry_price must be positive"}
	}
	if p.TargetQuantity.Sign() <= 0 {
		return &Error{Field: "target_quantity", Msg: "target_quantity must be positive"}
	}
	if p.ID == "" || p.Symbol == "" || p.StrategyType == "" ||
		p.ProfitTarget.IsZero() || p.StopLoss.IsZero() ||
		strings.TrimSpace(p.Thesis) == "" {
		return ErrInvalidPosition
	}
	return nil
}

// OptionPosition runs the option-variant pass. Services trigger it only when
// the position's trade kind is the option variant, and only at creation time:
// the expiration check compares against the current date, so an aged option
// record would no longer pass it on update.
func OptionPosition(p model.Position) error {
	o := p.Option
	if o == nil {
		return ErrInvalidOption
	}
	if o.StrikePrice.Sign() <= 0 {
		return &Error{Field: "strike_price", Msg: "strike_price must be positive"}
	}
	if !o.ExpirationDate.IsZero() && !afterToday(o.ExpirationDate) {
		// Same-day expiration is rejected: the date must be strictly in the future.
		return &Error{Field: "expiration_date", Msg: "expiration_date must be in the future"}
	}
	if o.OptionType == "" || o.ExpirationDate.IsZero() ||
		o.ProfitTargetBasis == "" || o.StopLossBasis == "" {
		return ErrInvalidOption
	}
	return nil
}

// afterToday reports whether ts falls on a calendar day strictly after the
// current one. Comparison is day-granular via the ISO date string so that
// an expiration entered without a time component behaves predictably.
func afterToday(ts time.Time) bool {
	return ts.Format("2006-01-02") > time.Now().Format("2006-01-02")
}

// Trade checks a single fill record. Underlying is optional input (the trade
// service backfills it from the position symbol) but once set it must not be
// blank.
func Trade(t model.Trade) error {
	if t.Direction != "" && t.Direction != model.DirectionBuy && t.Direction != model.DirectionSell {
		return &Error{Field: "direction", Msg: "direction must be buy or sell"}
	}
	if t.Quantity.Sign() <= 0 {
		return &Error{Field: "quantity", Msg: "quantity must be positive"}
	}
	if t.Price.Sign() < 0 {
		return &Error{Field: "price", Msg: "price cannot be negative"}
	}
	// A sell at 0 records a worthless option expiration; a buy never can.
	if t.Direction == model.DirectionBuy && t.Price.Sign() <= 0 {
		return &Error{Field: "price", Msg: "buy price must be positive"}
	}
	if t.Timestamp.After(time.Now()) {
		return &Error{Field: "timestamp", Msg: "timestamp cannot be in the future"}
	}
	if t.Underlying != "" && strings.TrimSpace(t.Underlying) == "" {
		return &Error{Field: "underlying", Msg: "underlying must not be blank"}
	}
	if t.ID == "" || t.PositionID == "" || t.Direction == "" || t.Timestamp.IsZero() {
		return ErrInvalidTrade
	}
	return nil
}

// ExitTrade enforces the no-overselling constraint: a sell may not exceed
// the position's currently open quantity. openQty is the net open quantity
// derived from the position's trade list (calc.OpenQuantity).
func ExitTrade(openQty, exitQty, exitPrice decimal.Decimal) error {
	if exitPrice.Sign() < 0 {
		return &Error{Field: "price", Msg: "price cannot be negative"}
	}
	if exitQty.Sign() <= 0 {
		return &Error{Field: "quantity", Msg: "quantity must be positive"}
	}
	if exitQty.GreaterThan(openQty) {
		return &ConstraintError{
			Field: "quantity",
			Msg:   fmt.Sprintf("exit quantity %s exceeds open quantity %s", exitQty, openQty),
		}
	}
	return nil
}

// JournalEntry checks the shape of a reflection entry: it must reference a
// position or a trade, carry at least one field, and a field named "thesis"
// must satisfy the thesis length rule.
func JournalEntry(e model.JournalEntry) error {
	if e.PositionID == "" && e.TradeID == "" {
		return &Error{Field: "position_id", Msg: "journal entry requires a position_id or trade_id"}
	}
	if len(e.Fields) == 0 {
		return &Error{Field: "fields", Msg: "journal entry requires at least one field"}
	}
	for _, f := range e.Fields {
		if f.Name == "thesis" {
			if err := ThesisResponse(f.Response); err != nil {
				return err
			}
		}
	}
	return nil
}

// PriceRecord checks an OHLC observation: positive values, low/high ordering
// against open and close, a well-formed date key, and a non-blank underlying.
func PriceRecord(r model.PriceRecord) error {
	if strings.TrimSpace(r.Underlying) == "" {
		return &Error{Field: "underlying", Msg: "underlying is required"}
	}
	if !dateRegex.MatchString(r.Date) {
		return &Error{Field: "date", Msg: "date must be in YYYY-MM-DD format"}
	}
	if _, err := time.Parse("2006-01-02", r.Date); err != nil {
		return &Error{Field: "date", Msg: "date must be in YYYY-MM-DD format"}
	}
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"open", r.Open},
		{"high", r.High},
		{"low", r.Low},
		{"close", r.Close},
	} {
		if f.value.Sign() <= 0 {
			return &Error{Field: f.name, Msg: f.name + " must be positive"}
		}
	}
	if r.Low.GreaterThan(r.Open) || r.Low.GreaterThan(r.Close) {
		return &Error{Field: "low", Msg: "low must not exceed open or close"}
	}
	if r.High.LessThan(r.Open) || r.High.LessThan(r.Close) {
		return &Error{Field: "high", Msg: "high must not be less than open or close"}
	}
	return nil
}

// ThesisResponse checks the length rule for a journal entry's thesis field:
// between 10 and 2000 characters after trimming, inclusive.
func ThesisResponse(response string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(response))
	if n < 10 || n > 2000 {
		return &Error{Field: "thesis", Msg: "thesis must be between 10 and 2000 characters"}
	}
	return nil
}
