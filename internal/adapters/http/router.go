package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/dkeye/chatrelay/internal/adapters/rtc"
	"github.com/dkeye/chatrelay/internal/adapters/signal"
	"github.com/dkeye/chatrelay/internal/app"
	"github.com/dkeye/chatrelay/internal/app/orch"
	"github.com/dkeye/chatrelay/internal/config"
	"github.com/dkeye/chatrelay/internal/core"
	"github.com/dkeye/chatrelay/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	sessionName     = "RelaySessions"
	sessionTokenKey = "token"
	systemHeader    = "X-System-Token"
)

// Authenticator resolves the handshake credential.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (core.Principal, error)
}

type Deps struct {
	Orch     *orch.Orchestrator
	Gate     Authenticator
	Signal   *signal.SignalWSController
	Gatherer prometheus.Gatherer
}

func sessionSecret(cfg *config.Config) []byte {
	if cfg.Secret != "" {
		return []byte(cfg.Secret)
	}
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	log.Warn().Str("module", "adapters.http").Msg("no session secret configured, using a random one")
	return []byte(hex.EncodeToString(b))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrUserBanned):
		return http.StatusForbidden
	case errors.Is(err, app.ErrLookupFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}

func errorText(err error) string {
	for _, target := range []error{app.ErrMissingToken, app.ErrMalformedToken, app.ErrUserNotFound, app.ErrUserBanned, app.ErrLookupFailed} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return err.Error()
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore(sessionSecret(cfg))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": d.Orch.Registry.Count()})
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")

	iceServers := rtc.Configuration(cfg.ICEServers).ICEServers
	api.GET("/rtc/config", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": iceServers})
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": d.Orch.ListRooms()})
	})

	api.GET("/ws", func(c *gin.Context) {
		handshake(ctx, c, d)
	})

	api.POST("/internal/broadcast", func(c *gin.Context) {
		broadcastSaved(c, d)
	})

	return r
}

// handshake authenticates before upgrading. A token given in the query is
// remembered in the session cookie for later reconnects.
func handshake(ctx context.Context, c *gin.Context, d Deps) {
	sess := sessions.Default(c)
	credential := c.Query("token")
	fromQuery := credential != ""
	if !fromQuery {
		if v, ok := sess.Get(sessionTokenKey).(string); ok {
			credential = v
		}
	}

	p, err := d.Gate.Authenticate(c.Request.Context(), credential)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Str("ip", c.ClientIP()).Msg("handshake refused")
		if !fromQuery && credential != "" {
			sess.Delete(sessionTokenKey)
			_ = sess.Save()
		}
		c.AbortWithStatusJSON(statusFor(err), gin.H{"error": errorText(err)})
		return
	}

	header := http.Header{}
	if _, ok := p.(core.EndUser); ok && fromQuery {
		sess.Set(sessionTokenKey, credential)
		if err := sess.Save(); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
		}
		for _, v := range c.Writer.Header().Values("Set-Cookie") {
			header.Add("Set-Cookie", v)
		}
	}

	d.Signal.HandleSignal(ctx, c.Writer, c.Request, p, header)
}

// nopSignal is the transport of a one-shot HTTP system caller.
type nopSignal struct{}

func (nopSignal) TrySend(core.Frame) error { return nil }
func (nopSignal) Close()                   {}

// broadcastSaved runs send-message on behalf of the persistence layer.
func broadcastSaved(c *gin.Context, d Deps) {
	p, err := d.Gate.Authenticate(c.Request.Context(), c.GetHeader(systemHeader))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errorText(err)})
		return
	}
	if _, ok := p.(core.SystemRelay); !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "system token required"})
		return
	}

	var msg domain.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, core.AckResponse{Error: orch.ErrTextMissingFields})
		return
	}

	caller := core.NewSession(core.SessionID("http-"+uuid.NewString()), core.SystemRelay{}, nopSignal{}, time.Now())
	var resp core.AckResponse
	d.Orch.SendMessage(caller, msg, func(r core.AckResponse) { resp = r })
	if !resp.Success {
		c.JSON(http.StatusBadRequest, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
