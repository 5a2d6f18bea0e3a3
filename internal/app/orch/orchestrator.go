package orch

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dkeye/chatrelay/internal/app"
	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/dkeye/chatrelay/internal/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

// Orchestrator owns every relay table and runs each inbound event against
// them. Handlers never hold a table lock while emitting or calling Store.
type Orchestrator struct {
	Registry *app.Registry
	Presence *app.Presence
	Rooms    core.Fanout
	Calls    *app.CallTable
	Limits   *app.RateLimiterBank
	Policy   app.Policy
	Store    core.Store
	Metrics  *metrics.Metrics
	Clock    clock.Clock

	StoreTimeout   time.Duration
	OnlineDebounce time.Duration
}

func (o *Orchestrator) now() time.Time {
	if o.Clock == nil {
		return time.Now()
	}
	return o.Clock.Now()
}

// Connect admits an authenticated session. Presence is declared separately
// with UserConnect.
func (o *Orchestrator) Connect(s *core.Session) {
	o.Registry.Bind(s)
	o.Metrics.ConnOpened()
}

// Kick closes a slow or misbehaving connection and reconciles its state.
func (o *Orchestrator) Kick(s *core.Session) {
	log.Warn().Str("module", "orch").Str("sid", string(s.ID)).Msg("kick session")
	s.Detach()
	o.OnDisconnect(context.Background(), s)
}

func (o *Orchestrator) emit(s *core.Session, event string, data any) {
	f, err := core.Encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", event).Msg("encode")
		return
	}
	if err := s.Signal().TrySend(f); err != nil {
		o.applyPolicy(core.PublishResult{Dropped: []*core.Session{s}})
	}
}

func (o *Orchestrator) toRoom(room domain.RoomID, except core.SessionID, event string, data any) core.PublishResult {
	f, err := core.Encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", event).Msg("encode")
		return core.PublishResult{}
	}
	res := o.Rooms.ToRoom(room, except, f)
	log.Debug().Str("module", "orch").Str("room", string(room)).Str("event", event).
		Int("sent", res.SendTo).Int("dropped", len(res.Dropped)).Msg("room fan-out")
	o.applyPolicy(res)
	return res
}

func (o *Orchestrator) toAll(event string, data any) {
	f, err := core.Encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", event).Msg("encode")
		return
	}
	o.applyPolicy(o.Registry.Broadcast(f))
}

func (o *Orchestrator) applyPolicy(res core.PublishResult) {
	o.Metrics.Dropped(len(res.Dropped))
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		if _, live := o.Registry.GetSession(slow.ID); !live {
			continue
		}
		switch o.Policy.OnBackPressure(slow) {
		case app.KickMember:
			o.Kick(slow)
		case app.MarkSlow, app.DropFrame, app.NoAction:
		}
	}
}

// storeCtx bounds a durable call. It survives cancellation of the caller so
// teardown writes still run after the connection is gone.
func (o *Orchestrator) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithoutCancel(ctx)
	if o.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.StoreTimeout)
}

// allow gates an action of s. The system relay is never limited.
func (o *Orchestrator) allow(s *core.Session, cat app.Category) app.Decision {
	if s.IsSystem() || o.Limits == nil {
		return app.Decision{Allowed: true}
	}
	d := o.Limits.Consume(cat, s.RateKey())
	if !d.Allowed {
		o.Metrics.RateLimited(string(cat))
		log.Warn().Str("module", "orch").Str("sid", string(s.ID)).Str("category", string(cat)).
			Dur("retry_after", d.RetryAfter).Msg("rate limited")
	}
	return d
}
