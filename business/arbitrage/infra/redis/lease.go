package redis

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fd1az/dexarb/business/arbitrage/app"
	"github.com/fd1az/dexarb/internal/apperror"
	"github.com/fd1az/dexarb/internal/asset"
	"github.com/fd1az/dexarb/internal/logger"
)

// releaseLua deletes the lease only if it still carries the caller's token.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const releaseTimeout = 5 * time.Second

var _ app.Lease = (*Lease)(nil)

// Lease claims a token across engine replicas with SET NX and a TTL.
// The TTL must exceed call_timeout + confirmation_timeout so a live attempt never loses its lease.
type Lease struct {
	rdb     *redis.Client
	release *redis.Script
	ttl     time.Duration
	prefix  string
	logger  logger.LoggerInterface
}

// NewLease creates a lease keyed under prefix.
func NewLease(rdb *redis.Client, prefix string, ttl time.Duration, log logger.LoggerInterface) *Lease {
	return &Lease{
		rdb:     rdb,
		release: redis.NewScript(releaseLua),
		ttl:     ttl,
		prefix:  prefix,
		logger:  log,
	}
}

func leaseKey(prefix string, token asset.Token) string {
	return prefix + ":lease:" + token.ID().String()
}

// leaseValue identifies the holder; the random suffix makes the value unique per claim.
func leaseValue(holder string) string {
	return holder + "/" + uuid.NewString()
}

func holderOf(value string) string {
	h, _, _ := strings.Cut(value, "/")
	return h
}

// Acquire implements app.Lease. Release is safe to call more than once.
func (l *Lease) Acquire(ctx context.Context, token asset.Token, holder string) (func(context.Context), bool, error) {
	key := leaseKey(l.prefix, token)
	value := leaseValue(holder)

	ok, err := l.rdb.SetNX(ctx, key, value, l.ttl).Result()
	if err != nil {
		return nil, false, apperror.ConnectionFailure("redis: acquire "+key, err)
	}
	if !ok {
		if current, err := l.rdb.Get(ctx, key).Result(); err == nil {
			l.logger.Debug(ctx, "lease held elsewhere", "token", token.Symbol(), "holder", holderOf(current))
		}
		return nil, false, nil
	}

	released := false
	release := func(ctx context.Context) {
		if released {
			return
		}
		released = true

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := l.release.Run(ctx, l.rdb, []string{key}, value).Err(); err != nil {
			l.logger.Warn(ctx, "lease release failed, it will expire", "key", key, "error", err)
		}
	}
	return release, true, nil
}
