package httpquote

import "github.com/shopspring/decimal"

// priceResponse is the body of GET /price.
type priceResponse struct {
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"timestamp"`
}
