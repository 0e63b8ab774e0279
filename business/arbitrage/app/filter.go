package app

import (
	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/business/arbitrage/domain"
	"github.com/fd1az/dexarb/internal/config"
)

// FilterConfig holds the profitability thresholds. MinProfitPercentage is in percent units.
type FilterConfig struct {
	MinProfitAbsolute   decimal.Decimal
	MinProfitPercentage decimal.Decimal
	MaxGasPriceGwei     decimal.Decimal
}

// FilterConfigFrom reads thresholds from configuration.
func FilterConfigFrom(t config.ThresholdsConfig) FilterConfig {
	return FilterConfig{
		MinProfitAbsolute:   t.MinProfitAbsoluteDecimal(),
		MinProfitPercentage: t.MinProfitPercentageDecimal(),
		MaxGasPriceGwei:     t.MaxGasPriceGweiDecimal(),
	}
}

// ProfitabilityFilter drops opportunities that are not worth executing.
type ProfitabilityFilter struct {
	cfg FilterConfig
}

// NewProfitabilityFilter creates a filter.
func NewProfitabilityFilter(cfg FilterConfig) *ProfitabilityFilter {
	return &ProfitabilityFilter{cfg: cfg}
}

// Config returns the active thresholds.
func (f *ProfitabilityFilter) Config() FilterConfig {
	return f.cfg
}

// Passes applies the three threshold checks. An unknown gas price fails.
func (f *ProfitabilityFilter) Passes(opp domain.Opportunity, gasGwei decimal.Decimal, gasKnown bool) bool {
	if !gasKnown || gasGwei.GreaterThan(f.cfg.MaxGasPriceGwei) {
		return false
	}
	if opp.Profit.LessThan(f.cfg.MinProfitAbsolute) {
		return false
	}
	return opp.ProfitPercentage.GreaterThanOrEqual(f.cfg.MinProfitPercentage)
}

// Filter keeps, per token, the passing opportunity with the highest profit percentage.
// Ties keep the earlier one. Output follows the order in which each token first passed.
func (f *ProfitabilityFilter) Filter(opps []domain.Opportunity, gasGwei decimal.Decimal, gasKnown bool) []domain.Opportunity {
	best := make(map[string]int)
	out := make([]domain.Opportunity, 0, len(opps))

	for _, opp := range opps {
		if !f.Passes(opp, gasGwei, gasKnown) {
			continue
		}
		key := opp.Token.Address().Hex()
		idx, seen := best[key]
		if !seen {
			best[key] = len(out)
			out = append(out, opp)
			continue
		}
		if opp.ProfitPercentage.GreaterThan(out[idx].ProfitPercentage) {
			out[idx] = opp
		}
	}
	return out
}
