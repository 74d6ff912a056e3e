// Package calc implements the pure domain calculators: cost basis, risk and
// reward metrics, option price-basis conversion, position status derivation,
// and unrealized P&L. Every function is stateless and deterministic over its
// inputs; nothing in this package touches the store.
package calc

import (
	"github.com/shopspring/decimal"

	"github.com/tradelog/journal-engine/internal/model"
)

// AverageCost returns the unweighted mean price across every trade in the
// list, buys and sells alike. With no trades it returns targetPrice, the
// position's planned entry, so planning views always have a price to anchor
// on.
func AverageCost(trades []model.Trade, targetPrice decimal.Decimal) decimal.Decimal {
	if len(trades) == 0 {
		return targetPrice
	}
	sum := decimal.Zero
	for _, t := range trades {
		sum = sum.Add(t.Price)
	}
	return sum.Div(decimal.NewFromInt(int64(len(trades))))
}

// TotalCostBasis sums price times quantity over buy trades only. Sells do
// not reduce the basis here; realized-exit accounting is a P&L concern.
func TotalCostBasis(trades []model.Trade) decimal.Decimal {
	total := decimal.Zero
	for _, t := range trades {
		if t.Direction == model.DirectionBuy {
			total = total.Add(t.Price.Mul(t.Quantity))
		}
	}
	return total
}

// OpenQuantity returns the net open quantity, buys minus sells. The result
// can go negative on an oversold trade list; validated flows never produce
// one, but the arithmetic must stay honest when handed legacy data.
func OpenQuantity(trades []model.Trade) decimal.Decimal {
	net := decimal.Zero
	for _, t := range trades {
		switch t.Direction {
		case model.DirectionBuy:
			net = net.Add(t.Quantity)
		case model.DirectionSell:
			net = net.Sub(t.Quantity)
		}
	}
	return net
}

// FirstBuyPrice returns the price of the first buy in list order, or zero
// when the list contains no buys.
func FirstBuyPrice(trades []model.Trade) decimal.Decimal {
	for _, t := range trades {
		if t.Direction == model.DirectionBuy {
			return t.Price
		}
	}
	return decimal.Zero
}
