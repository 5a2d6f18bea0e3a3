package signal

import (
	"github.com/dkeye/chatrelay/internal/core"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// floodGuard caps raw inbound frames on one connection, before any decoding.
// Per-action quotas live in the orchestrator; this only stops a client from
// spinning the read loop.
type floodGuard struct {
	lim     *rate.Limiter
	dropped int
}

func newFloodGuard(perSecond float64, burst int) *floodGuard {
	if perSecond <= 0 {
		return &floodGuard{lim: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < 1 {
		burst = 1
	}
	return &floodGuard{lim: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (g *floodGuard) Allow(sess *core.Session) bool {
	if g.lim.Allow() {
		if g.dropped > 0 {
			log.Warn().Str("module", "signal").Str("sid", string(sess.ID)).Int("dropped", g.dropped).Msg("inbound flood ended")
			g.dropped = 0
		}
		return true
	}
	g.dropped++
	if g.dropped == 1 {
		log.Warn().Str("module", "signal").Str("sid", string(sess.ID)).Msg("inbound flood, dropping frames")
	}
	return false
}
