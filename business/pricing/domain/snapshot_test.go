package domain

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/asset"
)

var testVenues = []Venue{
	{Name: "Uniswap", Kind: KindUniswapV2},
	{Name: "Sushiswap", Kind: KindUniswapV2},
	{Name: "Aerodrome", Kind: KindSolidly},
}

func mustQuote(t *testing.T, token asset.Token, venue, price string) Quote {
	t.Helper()
	q, err := NewQuote(token, venue, decimal.RequireFromString(price), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return q
}

func TestAssembly_PartialFailureExcludesToken(t *testing.T) {
	tokens := []asset.Token{asset.WETH, asset.USDC}
	a := NewAssembly(1, tokens, testVenues, time.Now())

	// WETH quoted on one venue only.
	a.Add(mustQuote(t, asset.WETH, "Uniswap", "3400"))
	a.Fail(asset.WETH, "Sushiswap", apperror.ConnectionFailure("timeout", errors.New("deadline")))
	a.Fail(asset.WETH, "Aerodrome", apperror.QuoteUnavailable("no pool", nil))

	a.Add(mustQuote(t, asset.USDC, "Aerodrome", "0.995"))
	a.Add(mustQuote(t, asset.USDC, "Uniswap", "0.995"))
	a.Add(mustQuote(t, asset.USDC, "Sushiswap", "1.005"))
	a.SetGasPrice(decimal.NewFromInt(2), nil)

	s := a.Seal(time.Now())

	tradable := s.Tradable()
	if len(tradable) != 1 || !tradable[0].Equals(asset.USDC) {
		t.Fatalf("Tradable = %v, want [USDC]", tradable)
	}

	if _, ok := s.Quote(asset.WETH, "Sushiswap"); ok {
		t.Error("failed pair must be absent")
	}

	quotes := s.Quotes(asset.USDC)
	if len(quotes) != 3 || quotes[0].Venue != "Uniswap" || quotes[2].Venue != "Aerodrome" {
		t.Errorf("Quotes not in venue order: %+v", quotes)
	}

	if s.QuoteCount() != 4 {
		t.Errorf("QuoteCount = %d, want 4", s.QuoteCount())
	}
	byCode := s.FailuresByCode()
	if byCode[apperror.CodeConnectionFailure] != 1 || byCode[apperror.CodeQuoteUnavailable] != 1 {
		t.Errorf("FailuresByCode = %v", byCode)
	}
	if !s.HasConnectionFailure() {
		t.Error("expected HasConnectionFailure")
	}
	if gas, ok := s.GasPriceGwei(); !ok || !gas.Equal(decimal.NewFromInt(2)) {
		t.Errorf("gas = %s,%v", gas, ok)
	}
}

func TestAssembly_ConcurrentAdds(t *testing.T) {
	a := NewAssembly(2, []asset.Token{asset.USDC}, testVenues, time.Now())

	var wg sync.WaitGroup
	for _, v := range testVenues {
		q := mustQuote(t, asset.USDC, v.Name, "1")
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Add(q)
		}()
	}
	wg.Wait()

	a.SetGasPrice(decimal.Zero, apperror.ConnectionFailure("gas", nil))
	s := a.Seal(time.Now())
	if s.QuoteCount() != 3 {
		t.Errorf("QuoteCount = %d, want 3", s.QuoteCount())
	}
	if _, ok := s.GasPriceGwei(); ok {
		t.Error("gas should be unknown")
	}
	if !s.HasConnectionFailure() {
		t.Error("gas connection failure should count")
	}
}
