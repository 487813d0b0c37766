package collector

import (
	"time"

	"golang.org/x/time/rate"

	"contentpulse/internal/model"
)

// Limits is the request budget and retry policy of one platform client.
// Zero fields fall back to the platform's built-in value.
type Limits struct {
	RPS         float64
	Burst       int
	MaxAttempts int
	BaseBackoff time.Duration
}

var baseLimits = Limits{RPS: 2, Burst: 5, MaxAttempts: 4, BaseBackoff: 500 * time.Millisecond}

// builtinLimits follow each API's documented quota.
var builtinLimits = map[model.Platform]Limits{
	model.PlatformYouTube:  {RPS: 5, Burst: 10},
	model.PlatformReddit:   {RPS: 1, Burst: 2},   // unauthenticated JSON
	model.PlatformTwitter:  {RPS: 0.5, Burst: 1}, // v2 tweet lookup, basic tier
	model.PlatformLinkedIn: {RPS: 1, Burst: 3, MaxAttempts: 3},
}

// DefaultLimits returns the built-in limits for p.
func DefaultLimits(p model.Platform) Limits {
	return builtinLimits[p].Or(baseLimits)
}

// Or fills the zero fields of l from def.
func (l Limits) Or(def Limits) Limits {
	if l.RPS <= 0 {
		l.RPS = def.RPS
	}
	if l.Burst <= 0 {
		l.Burst = def.Burst
	}
	if l.MaxAttempts <= 0 {
		l.MaxAttempts = def.MaxAttempts
	}
	if l.BaseBackoff <= 0 {
		l.BaseBackoff = def.BaseBackoff
	}
	return l
}

func (l Limits) limiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(l.RPS), l.Burst)
}
