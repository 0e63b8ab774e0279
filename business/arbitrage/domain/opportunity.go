// Package domain contains the core domain types for the arbitrage context.
package domain

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pricingDomain "github.com/fd1az/dexarb/business/pricing/domain"
	"github.com/fd1az/dexarb/internal/asset"
)

// Opportunity is a buy-low/sell-high price discrepancy for one token between two venues.
// Profit is per whole token in quote units; ProfitPercentage is Profit / BuyPrice × 100.
type Opportunity struct {
	ID               string
	CycleID          uint64
	Token            asset.Token
	SourceVenue      string
	TargetVenue      string
	BuyPrice         decimal.Decimal
	SellPrice        decimal.Decimal
	Profit           decimal.Decimal
	ProfitPercentage decimal.Decimal
	GeneratedAt      time.Time
}

// NewOpportunity builds an opportunity from two quotes of the same token.
// ok is false when the prices are equal.
func NewOpportunity(cycleID uint64, a, b pricingDomain.Quote, at time.Time) (Opportunity, bool) {
	spread := pricingDomain.CalculateSpread(a.Price, b.Price)
	if spread.IsZero() {
		return Opportunity{}, false
	}

	low, high := a, b
	if b.Price.LessThan(a.Price) {
		low, high = b, a
	}

	return Opportunity{
		ID:               uuid.NewString(),
		CycleID:          cycleID,
		Token:            a.Token,
		SourceVenue:      low.Venue,
		TargetVenue:      high.Venue,
		BuyPrice:         spread.Low,
		SellPrice:        spread.High,
		Profit:           spread.Absolute,
		ProfitPercentage: spread.Percentage,
		GeneratedAt:      at,
	}, true
}

// PairKey identifies the unordered (token, venue pair) an opportunity was derived from.
type PairKey struct {
	Token  common.Address
	VenueA string
	VenueB string
}

// Key returns the opportunity's unordered pair key.
func (o Opportunity) Key() PairKey {
	a, b := o.SourceVenue, o.TargetVenue
	if b < a {
		a, b = b, a
	}
	return PairKey{Token: o.Token.Address(), VenueA: a, VenueB: b}
}

// Route renders the trade direction, e.g. "Uniswap→Sushiswap".
func (o Opportunity) Route() string {
	return o.SourceVenue + "→" + o.TargetVenue
}

type opportunityJSON struct {
	ID               string          `json:"id"`
	CycleID          uint64          `json:"cycleId"`
	Token            string          `json:"token"`
	TokenAddress     string          `json:"tokenAddress"`
	SourceExchange   string          `json:"sourceExchange"`
	TargetExchange   string          `json:"targetExchange"`
	BuyPrice         decimal.Decimal `json:"buyPrice"`
	SellPrice        decimal.Decimal `json:"sellPrice"`
	PotentialProfit  decimal.Decimal `json:"potentialProfit"`
	ProfitPercentage decimal.Decimal `json:"profitPercentage"`
	Timestamp        time.Time       `json:"timestamp"`
}

// MarshalJSON renders the dashboard shape.
func (o Opportunity) MarshalJSON() ([]byte, error) {
	return json.Marshal(opportunityJSON{
		ID:               o.ID,
		CycleID:          o.CycleID,
		Token:            o.Token.Symbol(),
		TokenAddress:     o.Token.Address().Hex(),
		SourceExchange:   o.SourceVenue,
		TargetExchange:   o.TargetVenue,
		BuyPrice:         o.BuyPrice,
		SellPrice:        o.SellPrice,
		PotentialProfit:  o.Profit,
		ProfitPercentage: o.ProfitPercentage,
		Timestamp:        o.GeneratedAt.UTC(),
	})
}
