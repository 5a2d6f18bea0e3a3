package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingToken   = errors.New("missing token")
	ErrMalformedToken = errors.New("invalid token format")
	ErrUserNotFound   = errors.New("user not found")
	ErrUserBanned     = errors.New("user is banned")
	ErrLookupFailed   = errors.New("authentication unavailable")
)

// UserFinder is the slice of the durable store the gatekeeper needs.
type UserFinder interface {
	FindUserByID(ctx context.Context, id domain.UserID) (*domain.User, error)
}

type token struct {
	Value string `validate:"required,uuid"`
}

// Gatekeeper resolves a connection credential before the websocket upgrade.
type Gatekeeper struct {
	users       UserFinder
	systemToken string
	timeout     time.Duration
	validate    *validator.Validate
	cache       *expirable.LRU[domain.UserID, domain.User]
}

func NewGatekeeper(users UserFinder, systemToken string, cacheSize int, cacheTTL, timeout time.Duration) *Gatekeeper {
	g := &Gatekeeper{
		users:       users,
		systemToken: systemToken,
		timeout:     timeout,
		validate:    validator.New(),
	}
	if cacheSize > 0 && cacheTTL > 0 {
		g.cache = expirable.NewLRU[domain.UserID, domain.User](cacheSize, nil, cacheTTL)
	}
	return g
}

// Authenticate maps a credential to a principal. The system token wins over
// user lookup; anything else must be a user id in uuid form.
func (g *Gatekeeper) Authenticate(ctx context.Context, credential string) (core.Principal, error) {
	if credential == "" {
		return nil, ErrMissingToken
	}
	if g.systemToken != "" && subtle.ConstantTimeCompare([]byte(credential), []byte(g.systemToken)) == 1 {
		log.Info().Str("module", "app.gate").Msg("system relay authenticated")
		return core.SystemRelay{}, nil
	}
	if err := g.validate.Struct(token{Value: credential}); err != nil {
		return nil, ErrMalformedToken
	}

	user, err := g.lookup(ctx, domain.UserID(credential))
	if err != nil {
		return nil, err
	}
	if user.Banned() {
		log.Warn().Str("module", "app.gate").Str("user", string(user.ID)).Msg("banned user refused")
		return nil, ErrUserBanned
	}
	return core.EndUser{User: *user}, nil
}

func (g *Gatekeeper) lookup(ctx context.Context, id domain.UserID) (*domain.User, error) {
	if g.cache != nil {
		if u, ok := g.cache.Get(id); ok {
			return &u, nil
		}
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	u, err := g.users.FindUserByID(ctx, id)
	switch {
	case errors.Is(err, core.ErrNotFound):
		return nil, ErrUserNotFound
	case err != nil:
		log.Error().Err(err).Str("module", "app.gate").Str("user", string(id)).Msg("user lookup")
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	case u == nil:
		return nil, ErrUserNotFound
	}
	if g.cache != nil && !u.Banned() {
		g.cache.Add(id, *u)
	}
	return u, nil
}
