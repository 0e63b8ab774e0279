// Package httpquote quotes venues that expose prices over a JSON HTTP API.
package httpquote

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/fd1az/dexarb/business/pricing/app"
	"github.com/fd1az/dexarb/business/pricing/domain"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/asset"
	"github.com/fd1az/dexarb/internal/httpclient"
	"github.com/fd1az/dexarb/internal/logger"
)

var _ app.PriceSource = (*Source)(nil)

// JSONGetter is the subset of httpclient.Client used here.
type JSONGetter interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}

// Source quotes a token with GET {base}/price?token=<addr>&quote=<addr>.
type Source struct {
	venue  domain.Venue
	quote  asset.Token
	client JSONGetter
	logger logger.LoggerInterface
	now    func() time.Time
}

// NewSource builds an HTTP-backed source for venue at baseURL. headers, such as an API key,
// are sent with every request.
func NewSource(venue domain.Venue, baseURL string, headers map[string]string, quote asset.Token, timeout time.Duration, log logger.LoggerInterface) (*Source, error) {
	if baseURL == "" {
		return nil, apperror.Configuration("venue " + venue.Name + ": base_url required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, apperror.Configuration("venue " + venue.Name + ": invalid base_url " + baseURL)
	}

	client, err := httpclient.New(
		httpclient.WithBaseURL(baseURL),
		httpclient.WithProviderName(venue.Name),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithHeaders(headers),
	)
	if err != nil {
		return nil, err
	}
	return NewSourceWithClient(venue, quote, client, log), nil
}

// NewSourceWithClient builds a source over an existing client.
func NewSourceWithClient(venue domain.Venue, quote asset.Token, client JSONGetter, log logger.LoggerInterface) *Source {
	return &Source{venue: venue, quote: quote, client: client, logger: log, now: time.Now}
}

// Venue returns the venue this source quotes.
func (s *Source) Venue() domain.Venue {
	return s.venue
}

// Quote fetches the current price of one whole token in quote-token units.
func (s *Source) Quote(ctx context.Context, token asset.Token) (domain.Quote, error) {
	what := token.Symbol() + "@" + s.venue.Name
	query := url.Values{
		"token": {token.Address().Hex()},
		"quote": {s.quote.Address().Hex()},
	}

	var resp priceResponse
	if err := s.client.GetJSON(ctx, "/price", query, &resp); err != nil {
		return domain.Quote{}, classify(what, err)
	}

	observed := s.now()
	if resp.Timestamp > 0 {
		observed = time.Unix(resp.Timestamp, 0)
	}

	q, err := domain.NewQuote(token, s.venue.Name, resp.Price, observed)
	if err != nil {
		return domain.Quote{}, apperror.QuoteUnavailable(what+": "+resp.Price.String(), err)
	}
	return q, nil
}

func classify(what string, err error) error {
	var se *httpclient.StatusError
	switch {
	case errors.As(err, &se) && se.StatusCode >= http.StatusInternalServerError:
		return apperror.ConnectionFailure(what, err)
	case errors.As(err, &se):
		return apperror.QuoteUnavailable(what, err)
	case httpclient.IsTransport(err):
		return apperror.ConnectionFailure(what, err)
	default:
		return apperror.QuoteUnavailable(what+": malformed response", err)
	}
}
