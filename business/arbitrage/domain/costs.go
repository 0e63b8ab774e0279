package domain

import (
	"github.com/shopspring/decimal"
)

var bpsDenominator = decimal.NewFromInt(10_000)

// TradePlan sizes an opportunity: spend AmountIn of the quote token on the source venue and
// sell everything on the target venue.
type TradePlan struct {
	AmountIn       decimal.Decimal
	ExpectedOut    decimal.Decimal
	ExpectedProfit decimal.Decimal
	// MinReturn accepts losing up to SlippageBps of the expected profit, never the principal.
	MinReturn   decimal.Decimal
	SlippageBps int64
}

// PlanTrade computes expected proceeds for amountIn at the opportunity's prices.
func PlanTrade(opp Opportunity, amountIn decimal.Decimal, slippageBps int64) TradePlan {
	plan := TradePlan{AmountIn: amountIn, SlippageBps: slippageBps}
	if !opp.BuyPrice.IsPositive() || !amountIn.IsPositive() {
		plan.ExpectedOut = amountIn
		plan.MinReturn = amountIn
		return plan
	}

	tokens := amountIn.Div(opp.BuyPrice)
	plan.ExpectedOut = tokens.Mul(opp.SellPrice)
	plan.ExpectedProfit = plan.ExpectedOut.Sub(amountIn)

	if slippageBps < 0 {
		slippageBps = 0
	}
	if slippageBps > 10_000 {
		slippageBps = 10_000
	}
	kept := bpsDenominator.Sub(decimal.NewFromInt(slippageBps)).Div(bpsDenominator)
	plan.MinReturn = amountIn.Add(plan.ExpectedProfit.Mul(kept))
	return plan
}
