// Package model defines the core domain records shared across journal-engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrentPositionVersion is the schema version stamped onto every position
// written by this release. Records read back with an older (or absent)
// version pass through migrate.Position before anything else sees them.
const CurrentPositionVersion = 1

// StrategyType classifies the trade thesis behind a position.
type StrategyType string

const (
	StrategyLongStock StrategyType = "Long Stock"
	StrategyShortPut  StrategyType = "Short Put"
)

// TradeKind distinguishes plain stock positions from option positions.
type TradeKind string

const (
	TradeKindStock  TradeKind = "stock"
	TradeKindOption TradeKind = "option"
)

// PositionStatus is the lifecycle state of a position. It is derived from
// the trade list (see calc.Status), never authored independently.
type PositionStatus string

const (
	StatusPlanned PositionStatus = "planned"
	StatusOpen    PositionStatus = "open"
	StatusClosed  PositionStatus = "closed"
)

// TradeDirection is the side of a fill.
type TradeDirection string

const (
	DirectionBuy  TradeDirection = "buy"
	DirectionSell TradeDirection = "sell"
)

// OptionType is the contract type of an option position.
type OptionType string

const (
	OptionCall OptionType = "call"
	OptionPut  OptionType = "put"
)

// PriceBasis selects whether a profit target or stop loss is denominated in
// underlying stock price or in option contract price.
type PriceBasis string

const (
	BasisStockPrice  PriceBasis = "stock_price"
	BasisOptionPrice PriceBasis = "option_price"
)

// TargetType tags how a profit-target or stop-loss value is expressed:
// a percentage of option value, or an absolute dollar level.
type TargetType string

const (
	TargetPercentage TargetType = "percentage"
	TargetDollar     TargetType = "dollar"
)

// EntryType classifies a journal entry.
type EntryType string

const (
	EntryPositionPlan   EntryType = "position_plan"
	EntryTradeExecution EntryType = "trade_execution"
)

// Position is a planned or active trade thesis. A position exclusively owns
// its embedded trade list; trades are never shared across positions. The
// journal-entry ids are weak references; the entries themselves own the
// back-link to the position.
type Position struct {
	ID               string          `json:"id" db:"id"`
	Symbol           string          `json:"symbol" db:"symbol"`
	StrategyType     StrategyType    `json:"strategy_type" db:"strategy_type"`
	TradeKind        TradeKind       `json:"trade_kind" db:"trade_kind"`
	TargetEntryPrice decimal.Decimal `json:"target_entry_price" db:"target_entry_price"`
	TargetQuantity   decimal.Decimal `json:"target_quantity" db:"target_quantity"`
	ProfitTarget     decimal.Decimal `json:"profit_target" db:"profit_target"`
	StopLoss         decimal.Decimal `json:"stop_loss" db:"stop_loss"`
	Thesis           string          `json:"thesis" db:"thesis"`
	Status           PositionStatus  `json:"status" db:"status"`
	JournalEntryIDs  []string        `json:"journal_entry_ids" db:"journal_entry_ids"`
	Trades           []Trade         `json:"trades" db:"trades"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`

	// SchemaVersion is 0 for legacy records written before versioning was
	// introduced; migrate.Position normalizes those on read.
	SchemaVersion int `json:"schema_version" db:"schema_version"`

	// Option carries the option-strategy attributes. Nil for stock positions.
	Option *OptionDetails `json:"option,omitempty" db:"option"`
}

// IsOption reports whether the position is the option-strategy variant.
func (p *Position) IsOption() bool {
	return p.TradeKind == TradeKindOption
}

// OptionDetails holds the extra attributes of an option position. The two
// basis selectors are independent: a profit target may be set against the
// stock price while the stop loss tracks option value, or vice versa.
type OptionDetails struct {
	OptionType         OptionType      `json:"option_type"`
	StrikePrice        decimal.Decimal `json:"strike_price"`
	ExpirationDate     time.Time       `json:"expiration_date"`
	PremiumPerContract decimal.Decimal `json:"premium_per_contract"`
	ProfitTargetBasis  PriceBasis      `json:"profit_target_basis"`
	StopLossBasis      PriceBasis      `json:"stop_loss_basis"`
}

// Trade is one fill against a position. Trades are immutable once recorded;
// the core exposes no update or delete operation for them.
type Trade struct {
	ID         string          `json:"id" db:"id"`
	PositionID string          `json:"position_id" db:"position_id"`
	Direction  TradeDirection  `json:"direction" db:"direction"`
	Quantity   decimal.Decimal `json:"quantity" db:"quantity"`
	Price      decimal.Decimal `json:"price" db:"price"` // 0 allowed on sells (worthless expiration)
	Underlying string          `json:"underlying" db:"underlying"`
	Notes      string          `json:"notes,omitempty" db:"notes"`
	Timestamp  time.Time       `json:"timestamp" db:"timestamp"`
}

// EntryField is one named prompt/response pair within a journal entry.
type EntryField struct {
	Name     string `json:"name"`
	Prompt   string `json:"prompt,omitempty"`
	Response string `json:"response"`
}

// JournalEntry is a free-text reflection tied to a position and/or a trade.
// At least one of PositionID/TradeID must be set. Deleting a position does
// not implicitly delete its entries; JournalService.DeleteByPositionID is
// the explicit cascade.
type JournalEntry struct {
	ID         string       `json:"id" db:"id"`
	PositionID string       `json:"position_id,omitempty" db:"position_id"`
	TradeID    string       `json:"trade_id,omitempty" db:"trade_id"`
	EntryType  EntryType    `json:"entry_type" db:"entry_type"`
	Fields     []EntryField `json:"fields" db:"fields"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
	ExecutedAt *time.Time   `json:"executed_at,omitempty" db:"executed_at"`
}

// PriceRecord is one OHLC observation for an (underlying, date) pair.
// At most one record exists per pair; the store enforces the uniqueness.
// Date is kept as a YYYY-MM-DD string so that lexicographic order is
// chronological order.
type PriceRecord struct {
	Underlying string          `json:"underlying" db:"underlying"`
	Date       string          `json:"date" db:"date"`
	Open       decimal.Decimal `json:"open" db:"open"`
	High       decimal.Decimal `json:"high" db:"high"`
	Low        decimal.Decimal `json:"low" db:"low"`
	Close      decimal.Decimal `json:"close" db:"close"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}
