package security

import (
	"strconv"
	"sync"
	"time"

	"github.com/fluxorio/todo-service/pkg/web"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate per client; 0 disables limiting
	RequestsPerMinute int

	// Burst is the bucket size; defaults to RequestsPerMinute
	Burst int

	// IdleTTL drops a client's bucket after this long without requests
	IdleTTL time.Duration

	// KeyFunc extracts a key from the request to identify the client
	// Default: uses IP address
	KeyFunc func(ctx *web.FastRequestContext) string

	// OnLimitReached is called when rate limit is exceeded
	// If nil, returns 429 Too Many Requests
	OnLimitReached func(ctx *web.FastRequestContext) error
}

// DefaultRateLimitConfig returns a default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 100,
		IdleTTL:           5 * time.Minute,
		KeyFunc:           clientIP,
	}
}

func clientIP(ctx *web.FastRequestContext) string {
	return ctx.RequestCtx.RemoteIP().String()
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client key
type rateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiter(config RateLimitConfig) *rateLimiter {
	burst := config.Burst
	if burst <= 0 {
		burst = config.RequestsPerMinute
	}
	idleTTL := config.IdleTTL
	if idleTTL <= 0 {
		idleTTL = 5 * time.Minute
	}
	return &rateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(float64(config.RequestsPerMinute) / 60.0),
		burst:    burst,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// reserve reports whether key may proceed and, if not, how long until it may
func (rl *rateLimiter) reserve(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweepLocked(now)

	entry, ok := rl.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now

	r := entry.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// sweepLocked drops idle buckets at most once per idleTTL
func (rl *rateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.idleTTL {
		return
	}
	rl.lastSweep = now
	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > rl.idleTTL {
			delete(rl.limiters, key)
		}
	}
}

// RateLimit middleware limits requests per client. A zero
// RequestsPerMinute returns a pass-through middleware.
func RateLimit(config RateLimitConfig) web.FastMiddleware {
	if config.RequestsPerMinute <= 0 {
		return func(next web.FastRequestHandler) web.FastRequestHandler {
			return next
		}
	}
	if config.KeyFunc == nil {
		config.KeyFunc = clientIP
	}
	limiter := newRateLimiter(config)

	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			ok, retryAfter := limiter.reserve(config.KeyFunc(ctx))
			if ok {
				return next(ctx)
			}
			if config.OnLimitReached != nil {
				return config.OnLimitReached(ctx)
			}
			seconds := int(retryAfter.Seconds() + 0.999)
			if seconds < 1 {
				seconds = 1
			}
			ctx.RequestCtx.Response.Header.Set("Retry-After", strconv.Itoa(seconds))
			return ctx.Fail(fasthttp.StatusTooManyRequests, "Too many requests")
		}
	}
}
