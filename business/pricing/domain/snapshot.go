package domain

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/asset"
)

// FetchFailure records a (token, venue) pair that produced no quote.
type FetchFailure struct {
	Token asset.Token
	Venue string
	Code  apperror.Code
	Err   error
}

// Snapshot is one cycle's immutable view of prices. Absent quotes are never represented as zero.
type Snapshot struct {
	cycleID     uint64
	startedAt   time.Time
	completedAt time.Time
	tokens      []asset.Token
	venues      []Venue
	quotes      map[common.Address]map[string]Quote
	failures    []FetchFailure
	gasPrice    decimal.Decimal
	gasKnown    bool
	gasErr      error
}

func (s *Snapshot) CycleID() uint64 { return s.cycleID }
func (s *Snapshot) StartedAt() time.Time { return s.startedAt }
func (s *Snapshot) CompletedAt() time.Time { return s.completedAt }
func (s *Snapshot) Venues() []Venue { return append([]Venue(nil), s.venues...) }
func (s *Snapshot) Tokens() []asset.Token { return append([]asset.Token(nil), s.tokens...) }
func (s *Snapshot) Failures() []FetchFailure { return append([]FetchFailure(nil), s.failures...) }

// GasPriceGwei returns the gas price observed during the cycle. ok is false when the gas oracle failed.
func (s *Snapshot) GasPriceGwei() (price decimal.Decimal, ok bool) {
	return s.gasPrice, s.gasKnown
}

// GasError returns the gas oracle failure, if any.
func (s *Snapshot) GasError() error {
	return s.gasErr
}

// Quote returns the quote for (token, venue).
func (s *Snapshot) Quote(token asset.Token, venue string) (Quote, bool) {
	q, ok := s.quotes[token.Address()][venue]
	return q, ok
}

// Quotes returns token's quotes ordered by venue configuration order.
func (s *Snapshot) Quotes(token asset.Token) []Quote {
	byVenue := s.quotes[token.Address()]
	out := make([]Quote, 0, len(byVenue))
	for _, v := range s.venues {
		if q, ok := byVenue[v.Name]; ok {
			out = append(out, q)
		}
	}
	return out
}

// Tradable returns tokens with at least two quotes, in token order.
func (s *Snapshot) Tradable() []asset.Token {
	out := make([]asset.Token, 0, len(s.tokens))
	for _, t := range s.tokens {
		if len(s.quotes[t.Address()]) >= 2 {
			out = append(out, t)
		}
	}
	return out
}

// QuoteCount returns the total number of quotes.
func (s *Snapshot) QuoteCount() int {
	n := 0
	for _, byVenue := range s.quotes {
		n += len(byVenue)
	}
	return n
}

// FailuresByCode groups fetch failures by error code.
func (s *Snapshot) FailuresByCode() map[apperror.Code]int {
	out := make(map[apperror.Code]int)
	for _, f := range s.failures {
		out[f.Code]++
	}
	return out
}

// HasConnectionFailure reports whether any fetch, or the gas oracle, was unreachable.
func (s *Snapshot) HasConnectionFailure() bool {
	if apperror.IsConnectionFailure(s.gasErr) {
		return true
	}
	for _, f := range s.failures {
		if f.Code == apperror.CodeConnectionFailure {
			return true
		}
	}
	return false
}

// Assembly collects results while a snapshot is being fetched. Safe for concurrent use.
// Seal produces the immutable Snapshot; the assembly must not be used afterwards.
type Assembly struct {
	mu   sync.Mutex
	snap *Snapshot
}

// NewAssembly starts a snapshot for the given universe.
func NewAssembly(cycleID uint64, tokens []asset.Token, venues []Venue, startedAt time.Time) *Assembly {
	return &Assembly{snap: &Snapshot{
		cycleID:   cycleID,
		startedAt: startedAt,
		tokens:    append([]asset.Token(nil), tokens...),
		venues:    append([]Venue(nil), venues...),
		quotes:    make(map[common.Address]map[string]Quote, len(tokens)),
	}}
}

// Add records a successful quote.
func (a *Assembly) Add(q Quote) {
	a.mu.Lock()
	defer a.mu.Unlock()
	byVenue, ok := a.snap.quotes[q.Token.Address()]
	if !ok {
		byVenue = make(map[string]Quote, len(a.snap.venues))
		a.snap.quotes[q.Token.Address()] = byVenue
	}
	byVenue[q.Venue] = q
}

// Fail records a failed fetch.
func (a *Assembly) Fail(token asset.Token, venue string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snap.failures = append(a.snap.failures, FetchFailure{
		Token: token,
		Venue: venue,
		Code:  apperror.GetCode(err),
		Err:   err,
	})
}

// SetGasPrice records the gas oracle result. A non-nil err marks the price unknown.
func (a *Assembly) SetGasPrice(gwei decimal.Decimal, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snap.gasPrice = gwei
	a.snap.gasKnown = err == nil
	a.snap.gasErr = err
}

// Seal finalizes the snapshot.
func (a *Assembly) Seal(completedAt time.Time) *Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.snap
	a.snap = nil
	s.completedAt = completedAt
	return s
}
