package resilience

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyedOpts configures the per-key limiter.
type KeyedOpts struct {
	// Max is the number of requests a key may make per Window.
	Max int
	// Window is the period over which Max requests refill.
	Window time.Duration
}

// DefaultKeyedOpts allows 100 requests per client per 15 minutes.
var DefaultKeyedOpts = KeyedOpts{Max: 100, Window: 15 * time.Minute}

// Decision is the outcome of one Allow call, shaped for RateLimit-* headers.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// Reset is how long until the key has at least one request available.
	Reset time.Duration
}

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// KeyedLimiter keeps one token bucket per key (client IP). Buckets refill at
// Max/Window with a burst of Max. Keys idle for a whole Window are dropped.
type KeyedLimiter struct {
	mu        sync.Mutex
	opts      KeyedOpts
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time // for testing
}

// NewKeyedLimiter creates a per-key limiter.
func NewKeyedLimiter(opts KeyedOpts) *KeyedLimiter {
	if opts.Max <= 0 {
		opts.Max = DefaultKeyedOpts.Max
	}
	if opts.Window <= 0 {
		opts.Window = DefaultKeyedOpts.Window
	}
	return &KeyedLimiter{
		opts:     opts,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Allow consumes one request for key if available.
func (k *KeyedLimiter) Allow(key string) Decision {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	k.sweep(now)

	v, ok := k.visitors[key]
	if !ok {
		every := k.opts.Window / time.Duration(k.opts.Max)
		v = &visitor{lim: rate.NewLimiter(rate.Every(every), k.opts.Max)}
		k.visitors[key] = v
	}
	v.seen = now

	allowed := v.lim.AllowN(now, 1)
	tokens := v.lim.TokensAt(now)
	d := Decision{
		Allowed:   allowed,
		Limit:     k.opts.Max,
		Remaining: int(math.Max(0, math.Floor(tokens))),
	}
	if tokens < 1 {
		perSec := float64(v.lim.Limit())
		d.Reset = time.Duration((1 - tokens) / perSec * float64(time.Second))
	}
	return d
}

// Len returns the number of tracked keys.
func (k *KeyedLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.visitors)
}

// sweep drops keys not seen for a full window. Must hold mu.
func (k *KeyedLimiter) sweep(now time.Time) {
	if now.Sub(k.lastSweep) < k.opts.Window {
		return
	}
	k.lastSweep = now
	for key, v := range k.visitors {
		if now.Sub(v.seen) >= k.opts.Window {
			delete(k.visitors, key)
		}
	}
}
