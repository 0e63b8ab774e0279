// Package domain contains the core domain types for the pricing context.
package domain

// VenueKind selects the adapter that quotes a venue.
type VenueKind string

const (
	KindUniswapV2 VenueKind = "uniswap_v2"
	KindSolidly   VenueKind = "solidly"
	KindHTTP      VenueKind = "http"
)

// Venue is a DEX the engine reads prices from. Names are unique within a configuration.
type Venue struct {
	Name string
	Kind VenueKind
}

func (v Venue) String() string {
	return v.Name
}
