package app

import (
	"iter"
	"time"

	"github.com/fd1az/dexarb/business/arbitrage/domain"
	pricingDomain "github.com/fd1az/dexarb/business/pricing/domain"
)

// SpreadDetector enumerates price discrepancies within one snapshot.
type SpreadDetector struct {
	now func() time.Time
}

// NewSpreadDetector creates a detector.
func NewSpreadDetector() *SpreadDetector {
	return &SpreadDetector{now: time.Now}
}

// Detect yields one opportunity per unordered venue pair with differing prices, for every
// tradable token. Tokens follow configuration order and pairs follow venue order (i < j).
func (d *SpreadDetector) Detect(snap *pricingDomain.Snapshot) iter.Seq[domain.Opportunity] {
	return func(yield func(domain.Opportunity) bool) {
		at := d.now()
		for _, token := range snap.Tradable() {
			quotes := snap.Quotes(token)
			for i := 0; i < len(quotes); i++ {
				for j := i + 1; j < len(quotes); j++ {
					opp, ok := domain.NewOpportunity(snap.CycleID(), quotes[i], quotes[j], at)
					if !ok {
						continue
					}
					if !yield(opp) {
						return
					}
				}
			}
		}
	}
}
