package calc

import (
	"github.com/shopspring/decimal"

	"github.com/tradelog/journal-engine/internal/model"
)

// contractSize is the share multiplier for a standard US option contract.
var contractSize = decimal.NewFromInt(100)

// RiskProfile is the computed risk/reward summary for a position plan.
type RiskProfile struct {
	TotalInvestment decimal.Decimal `json:"total_investment"`
	MaxProfit       decimal.Decimal `json:"max_profit"`
	MaxLoss         decimal.Decimal `json:"max_loss"`
	RiskRewardRatio string          `json:"risk_reward_ratio"`
}

// RiskReward computes capital at work, best case, worst case, and the
// "1:<reward per unit risk>" label for a position plan.
//
// Long Stock (and any unrecognized strategy) measures against the planned
// entry price. Short Put measures cash-secured collateral, with assignment
// at a worthless underlying as the worst case. Zero-valued inputs flow
// through the arithmetic as zeros.
func RiskReward(p model.Position) RiskProfile {
	var investment, profit, loss decimal.Decimal
	switch p.StrategyType {
	case model.StrategyShortPut:
		var strike, premium decimal.Decimal
		if p.Option != nil {
			strike = p.Option.StrikePrice
			premium = p.Option.PremiumPerContract
		}
		shares := p.TargetQuantity.Mul(contractSize)
		investment = strike.Mul(shares)
		profit = premium.Mul(shares)
		loss = strike.Sub(premium).Mul(shares)
	default:
		investment = p.TargetEntryPrice.Mul(p.TargetQuantity)
		profit = p.ProfitTarget.Sub(p.TargetEntryPrice).Mul(p.TargetQuantity)
		loss = p.TargetEntryPrice.Sub(p.StopLoss).Mul(p.TargetQuantity)
	}
	return RiskProfile{
		TotalInvestment: investment,
		MaxProfit:       profit,
		MaxLoss:         loss,
		RiskRewardRatio: formatRatio(profit, loss),
	}
}

// formatRatio renders "1:<profit/loss>" rounded to two decimals. Trailing
// zeros drop out, so an even ratio reads "1:1" rather than "1:1.00". When
// either side is non-positive the plan has no meaningful ratio and the
// label is "0:0".
func formatRatio(profit, loss decimal.Decimal) string {
	if profit.Sign() <= 0 || loss.Sign() <= 0 {
		return "0:0"
	}
	return "1:" + profit.Div(loss).Round(2).String()
}
