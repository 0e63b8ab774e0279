package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/asset"
)

// PricePlaces is the fixed-point precision of every price, in quote-token units.
const PricePlaces int32 = 6

// Quote is one venue's price for one whole unit of Token, denominated in the quote token.
type Quote struct {
	Token      asset.Token
	Venue      string
	Price      decimal.Decimal
	ObservedAt time.Time
}

// NormalizePrice truncates p to PricePlaces and rejects non-positive results.
func NormalizePrice(p decimal.Decimal) (decimal.Decimal, error) {
	n := p.Truncate(PricePlaces)
	if !n.IsPositive() {
		return decimal.Zero, apperror.QuoteUnavailable("non-positive price "+p.String(), nil)
	}
	return n, nil
}

// NewQuote builds a quote with a normalized price.
func NewQuote(token asset.Token, venue string, price decimal.Decimal, observedAt time.Time) (Quote, error) {
	n, err := NormalizePrice(price)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Token: token, Venue: venue, Price: n, ObservedAt: observedAt}, nil
}
