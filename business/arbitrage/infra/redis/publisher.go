package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fd1az/dexarb/business/arbitrage/app"
	"github.com/fd1az/dexarb/business/arbitrage/domain"
	"github.com/fd1az/dexarb/internal/logger"
)

const publishTimeout = time.Second

// Event types on the channel.
const (
	EventCycle   = "cycle"
	EventAttempt = "attempt"
)

// Event is the JSON envelope published for every report.
type Event struct {
	Type    string          `json:"type"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// cycleSummary is the published form of a CycleReport.
type cycleSummary struct {
	CycleID         uint64               `json:"cycleId"`
	StartedAt       time.Time            `json:"startedAt"`
	DurationMs      int64                `json:"durationMs"`
	QuotesByToken   map[string]int       `json:"quotesByToken"`
	FailuresByCode  map[string]int       `json:"failuresByCode,omitempty"`
	ConnectionIssue bool                 `json:"connectionIssue"`
	GasPriceGwei    *string              `json:"gasPriceGwei,omitempty"`
	Detected        int                  `json:"detected"`
	Filtered        int                  `json:"filtered"`
	Scheduled       int                  `json:"scheduled"`
	Skipped         int                  `json:"skipped"`
	Opportunities   []domain.Opportunity `json:"opportunities"`
	Error           string               `json:"error,omitempty"`
}

var _ app.Reporter = (*Publisher)(nil)

// Publisher pushes reports to a Redis pub/sub channel. Publishing is best effort.
type Publisher struct {
	rdb     *redis.Client
	channel string
	logger  logger.LoggerInterface
	now     func() time.Time
}

// NewPublisher creates a publisher for channel.
func NewPublisher(rdb *redis.Client, channel string, log logger.LoggerInterface) *Publisher {
	return &Publisher{rdb: rdb, channel: channel, logger: log, now: time.Now}
}

// ReportCycle implements app.Reporter.
func (p *Publisher) ReportCycle(ctx context.Context, rep domain.CycleReport) {
	p.publish(ctx, EventCycle, summarize(rep))
}

// ReportAttempt implements app.Reporter.
func (p *Publisher) ReportAttempt(ctx context.Context, a domain.Attempt) {
	p.publish(ctx, EventAttempt, a)
}

func (p *Publisher) publish(ctx context.Context, typ string, payload any) {
	msg, err := encodeEvent(typ, p.now(), payload)
	if err != nil {
		p.logger.Warn(ctx, "encode event", "type", typ, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.rdb.Publish(ctx, p.channel, msg).Err(); err != nil {
		p.logger.Warn(ctx, "redis publish failed", "channel", p.channel, "error", err)
	}
}

func encodeEvent(typ string, at time.Time, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: typ, At: at.UTC(), Payload: raw})
}

func summarize(rep domain.CycleReport) cycleSummary {
	s := cycleSummary{
		CycleID:         rep.CycleID,
		StartedAt:       rep.StartedAt.UTC(),
		DurationMs:      rep.Duration().Milliseconds(),
		QuotesByToken:   rep.QuotesByToken,
		ConnectionIssue: rep.ConnectionIssue,
		Detected:        rep.Detected,
		Filtered:        rep.Filtered,
		Scheduled:       rep.Scheduled,
		Skipped:         rep.Skipped,
		Opportunities:   rep.Opportunities,
	}
	if s.Opportunities == nil {
		s.Opportunities = []domain.Opportunity{}
	}
	if len(rep.FailuresByCode) > 0 {
		s.FailuresByCode = make(map[string]int, len(rep.FailuresByCode))
		for code, n := range rep.FailuresByCode {
			s.FailuresByCode[string(code)] = n
		}
	}
	if rep.GasPriceKnown {
		g := rep.GasPriceGwei.String()
		s.GasPriceGwei = &g
	}
	if rep.Err != nil {
		s.Error = rep.Err.Error()
	}
	return s
}
