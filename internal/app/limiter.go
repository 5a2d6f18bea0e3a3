package app

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type Category string

const (
	CategoryMessage  Category = "message"
	CategoryTyping   Category = "typing"
	CategoryMutation Category = "mutation"
	CategoryReceipt  Category = "receipt"
)

// Quota allows Points actions per Window. Once exceeded, the key is refused
// for Block (when set) instead of just until the next token.
type Quota struct {
	Points int           `mapstructure:"points"`
	Window time.Duration `mapstructure:"window"`
	Block  time.Duration `mapstructure:"block"`
}

func DefaultQuotas() map[Category]Quota {
	return map[Category]Quota{
		CategoryMessage:  {Points: 10, Window: time.Second, Block: time.Minute},
		CategoryTyping:   {Points: 5, Window: time.Second},
		CategoryMutation: {Points: 5, Window: time.Second},
		CategoryReceipt:  {Points: 10, Window: time.Second},
	}
}

type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds up and never reports less than one second for a
// refusal.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	s := int(math.Ceil(d.RetryAfter.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

type bucketKey struct {
	cat Category
	key string
}

// bucket is a fixed window of Points that opens on the first consume after
// the previous window expired.
type bucket struct {
	windowStart  time.Time
	used         int
	blockedUntil time.Time
}

// RateLimiterBank keeps one bucket per (category, key). Buckets are never
// evicted.
type RateLimiterBank struct {
	clock  clock.Clock
	quotas map[Category]Quota

	mu      sync.Mutex
	buckets map[bucketKey]*bucket
}

func NewRateLimiterBank(clk clock.Clock, quotas map[Category]Quota) *RateLimiterBank {
	if clk == nil {
		clk = clock.New()
	}
	if quotas == nil {
		quotas = DefaultQuotas()
	}
	return &RateLimiterBank{
		clock:   clk,
		quotas:  quotas,
		buckets: make(map[bucketKey]*bucket),
	}
}

// Consume takes one point from key's bucket in cat. Categories without a
// quota are unlimited.
func (b *RateLimiterBank) Consume(cat Category, key string) Decision {
	q, ok := b.quotas[cat]
	if !ok || q.Points <= 0 || q.Window <= 0 {
		return Decision{Allowed: true}
	}

	now := b.clock.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	k := bucketKey{cat: cat, key: key}
	bk, ok := b.buckets[k]
	if !ok {
		bk = &bucket{}
		b.buckets[k] = bk
	}

	if now.Before(bk.blockedUntil) {
		return Decision{RetryAfter: bk.blockedUntil.Sub(now)}
	}
	if bk.windowStart.IsZero() || !now.Before(bk.windowStart.Add(q.Window)) {
		bk.windowStart = now
		bk.used = 0
	}
	if bk.used < q.Points {
		bk.used++
		return Decision{Allowed: true}
	}

	if q.Block > 0 {
		bk.blockedUntil = now.Add(q.Block)
		return Decision{RetryAfter: q.Block}
	}
	return Decision{RetryAfter: bk.windowStart.Add(q.Window).Sub(now)}
}
