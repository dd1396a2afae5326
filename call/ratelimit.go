package call

import (
	"sync"
	"time"
)

// peerLimiter is a per-peer token bucket with exponential backoff on
// repeated overflow: each time a message is dropped while the bucket
// is empty, the refill rate is halved (down to a floor) until a
// successful admission resets it. This punishes a peer that keeps
// hammering the inbound queue harder than one that briefly bursts.
type peerLimiter struct {
	mu           sync.Mutex
	tokens       float64
	capacity     float64
	refillPerSec float64
	baseRate     float64
	lastRefill   time.Time
	now          func() time.Time
}

const minRefillFraction = 0.125

func newPeerLimiter(ratePerSecond int, now func() time.Time) *peerLimiter {
	rate := float64(ratePerSecond)
	if rate <= 0 {
		rate = 1
	}
	return &peerLimiter{
		tokens:       rate,
		capacity:     rate,
		refillPerSec: rate,
		baseRate:     rate,
		lastRefill:   now(),
		now:          now,
	}
}

// Allow reports whether one message from this peer may be admitted
// right now, consuming a token if so. On rejection, it halves the
// refill rate (down to baseRate/8) as a backoff penalty.
func (l *peerLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed > 0 {
		l.tokens += elapsed * l.refillPerSec
		if l.tokens > l.capacity {
			l.tokens = l.capacity
		}
		l.lastRefill = now
	}

	if l.tokens < 1 {
		floor := l.baseRate * minRefillFraction
		l.refillPerSec /= 2
		if l.refillPerSec < floor {
			l.refillPerSec = floor
		}
		return false
	}

	l.tokens -= 1
	l.refillPerSec = l.baseRate
	return true
}

// rateLimiter tracks one peerLimiter per peer identity.
type rateLimiter struct {
	mu            sync.Mutex
	perPeer       map[string]*peerLimiter
	ratePerSecond int
	now           func() time.Time
}

func newRateLimiter(ratePerSecond int, now func() time.Time) *rateLimiter {
	if now == nil {
		now = time.Now
	}
	return &rateLimiter{
		perPeer:       make(map[string]*peerLimiter),
		ratePerSecond: ratePerSecond,
		now:           now,
	}
}

func (r *rateLimiter) Allow(peer string) bool {
	r.mu.Lock()
	l, ok := r.perPeer[peer]
	if !ok {
		l = newPeerLimiter(r.ratePerSecond, r.now)
		r.perPeer[peer] = l
	}
	r.mu.Unlock()
	return l.Allow()
}
