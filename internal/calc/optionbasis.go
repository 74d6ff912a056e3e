package calc

import (
	"github.com/shopspring/decimal"

	"github.com/tradelog/journal-engine/internal/model"
)

var hundred = decimal.NewFromInt(100)

// OptionTargetDollar converts a profit-target or stop-loss value into an
// absolute dollar amount according to the basis selector.
//
// Under the stock_price basis the value is already a price level on the
// underlying and passes through unchanged. Under the option_price basis the
// value scales the option's net value (strike minus premium): a percentage
// target divides by 100 first, a dollar target multiplies as-is. Note the
// dollar tag under option_price is NOT an absolute amount; it acts as a
// raw fraction of option value. Stored targets were written against that
// behavior, so it must not change without a data migration.
func OptionTargetDollar(basis model.PriceBasis, targetType model.TargetType, value, strike, premium decimal.Decimal) decimal.Decimal {
	if basis != model.BasisOptionPrice {
		return value
	}
	fraction := value
	if targetType == model.TargetPercentage {
		fraction = value.Div(hundred)
	}
	return strike.Sub(premium).Mul(fraction)
}
