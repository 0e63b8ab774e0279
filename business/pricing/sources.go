package pricing

import (
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/dexarb/business/pricing/app"
	"github.com/fd1az/dexarb/business/pricing/domain"
	"github.com/fd1az/dexarb/business/pricing/infra/httpquote"
	"github.com/fd1az/dexarb/business/pricing/infra/onchain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/asset"
	"github.com/fd1az/dexarb/internal/config"
	"github.com/fd1az/dexarb/internal/logger"
	"github.com/fd1az/dexarb/internal/ratelimit"
)

// SourceDeps are the shared collaborators every adapter constructor may use.
type SourceDeps struct {
	Config   *config.Config
	Caller   ethereum.ContractCaller
	Limiter  *ratelimit.Limiter
	Registry *asset.Registry
	Quote    asset.Token
	Logger   logger.LoggerInterface
}

type sourceFactory func(v config.VenueConfig, deps SourceDeps) (app.PriceSource, error)

var sourceFactories = map[domain.VenueKind]sourceFactory{
	domain.KindUniswapV2: newPairSource,
	domain.KindSolidly:   newPairSource,
	domain.KindHTTP:      newHTTPSource,
}

// BuildSources creates one PriceSource per configured venue, preserving config order.
func BuildSources(deps SourceDeps) ([]app.PriceSource, error) {
	sources := make([]app.PriceSource, 0, len(deps.Config.Venues))
	for i, v := range deps.Config.Venues {
		factory, ok := sourceFactories[domain.VenueKind(v.Kind)]
		if !ok {
			return nil, apperror.Configuration(fmt.Sprintf("venues[%d]: unknown kind %q", i, v.Kind))
		}
		src, err := factory(v, deps)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

func newPairSource(v config.VenueConfig, deps SourceDeps) (app.PriceSource, error) {
	pools := make(map[common.Address]common.Address)
	for _, t := range deps.Registry.All() {
		if addr, ok := v.PoolFor(t.Symbol()); ok {
			pools[t.Address()] = addr
		}
	}
	return onchain.NewPairSource(onchain.Config{
		Venue:      domain.Venue{Name: v.Name, Kind: domain.VenueKind(v.Kind)},
		Factory:    v.FactoryHex(),
		QuoteToken: deps.Quote,
		Pools:      pools,
	}, deps.Caller, deps.Limiter, deps.Logger)
}

func newHTTPSource(v config.VenueConfig, deps SourceDeps) (app.PriceSource, error) {
	return httpquote.NewSource(
		domain.Venue{Name: v.Name, Kind: domain.KindHTTP},
		v.BaseURL,
		v.Headers,
		deps.Quote,
		deps.Config.Engine.CallTimeout,
		deps.Logger,
	)
}
