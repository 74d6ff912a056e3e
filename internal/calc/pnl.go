package calc

import (
	"github.com/shopspring/decimal"

	"github.com/tradelog/journal-engine/internal/model"
)

// TradePnL returns the unrealized profit of a single fill marked against the
// given close. Sell fills are already realized and contribute zero.
func TradePnL(t model.Trade, latest model.PriceRecord) decimal.Decimal {
	if t.Direction == model.DirectionSell {
		return decimal.Zero
	}
	return latest.Close.Sub(t.Price).Mul(t.Quantity)
}

// PositionPnL sums unrealized P&L across the position's trades using the
// per-underlying latest prices in priceMap. The boolean separates "no price
// data" from a genuine zero: it is false when the position has no trades, or
// when none of its trades' underlyings appear in the map.
func PositionPnL(p model.Position, priceMap map[string]model.PriceRecord) (decimal.Decimal, bool) {
	sum := decimal.Zero
	matched := false
	for _, t := range p.Trades {
		rec, ok := priceMap[t.Underlying]
		if !ok {
			continue
		}
		matched = true
		sum = sum.Add(TradePnL(t, rec))
	}
	return sum, matched
}

// PnLPercentage expresses pnl as a percentage of cost basis, rounded to two
// decimals. A zero basis yields zero rather than a division by it.
func PnLPercentage(pnl, costBasis decimal.Decimal) decimal.Decimal {
	if costBasis.IsZero() {
		return decimal.Zero
	}
	return pnl.Div(costBasis).Mul(hundred).Round(2)
}
