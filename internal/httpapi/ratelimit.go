package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	auth "github.com/eidcore/authsteps"
)

// Window is the fixed interval a request quota applies to.
type Window time.Duration

const (
	// PerSecond applies a quota to one second intervals.
	PerSecond = Window(time.Second)
	// PerMinute applies a quota to one minute intervals.
	PerMinute = Window(time.Minute)
)

type rediser interface {
	TxPipelined(ctx context.Context, fn func(pipe redis.Pipeliner) error) ([]redis.Cmder, error)
}

// Limiter enforces a request quota.
type Limiter interface {
	// RateLimit counts an HTTP request against its quota.
	RateLimit(r *http.Request) error
}

// LimiterFactory creates new Limiters.
type LimiterFactory interface {
	// NewLimiter returns a Limiter allowing max requests per window
	// under the given counter prefix.
	NewLimiter(prefix string, per Window, max int64) Limiter
}

type factory struct {
	rdb rediser
}

type limiter struct {
	rdb    rediser
	per    Window
	max    int64
	prefix string
}

// NewLimiter creates a new Limiter.
func (f *factory) NewLimiter(prefix string, per Window, max int64) Limiter {
	return &limiter{
		rdb:    f.rdb,
		prefix: prefix,
		per:    per,
		max:    max,
	}
}

// RateLimit counts the request against the current window and rejects
// it once the quota is exhausted. Counters live in redis so every
// instance of the service shares one quota per client.
func (l *limiter) RateLimit(r *http.Request) error {
	id := GetIdentifier(r)
	if id == "" {
		id = GetIP(r)
	}

	// One counter per client and window ordinal. The counter expires
	// with its window so idle clients leave nothing behind.
	window := time.Duration(l.per)
	slot := time.Now().UnixNano() / int64(window)
	key := fmt.Sprintf("quota:%s:%s:%d", l.prefix, id, slot)

	ctx := r.Context()

	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to increment counter")
	}

	if incr.Val() > l.max {
		return auth.ErrThrottle("requests are throttled, try again later")
	}

	return nil
}

// NewRateLimiter returns a LimiterFactory backed by a shared redis DB.
func NewRateLimiter(db rediser) LimiterFactory {
	return &factory{rdb: db}
}
