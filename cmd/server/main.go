package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/chatrelay/internal/adapters/http"
	"github.com/dkeye/chatrelay/internal/adapters/rtc"
	ws "github.com/dkeye/chatrelay/internal/adapters/signal"
	"github.com/dkeye/chatrelay/internal/adapters/store"
	"github.com/dkeye/chatrelay/internal/app"
	"github.com/dkeye/chatrelay/internal/app/orch"
	"github.com/dkeye/chatrelay/internal/config"
	"github.com/dkeye/chatrelay/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	switch cfg.Mode {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "release":
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	iceCfg := rtc.Configuration(cfg.ICEServers)
	if err := rtc.Validate(iceCfg); err != nil {
		log.Fatal().Err(err).Msg("invalid ice_servers")
	}

	db, err := store.Open(cfg.Store.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer func() { _ = db.Close() }()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	clk := clock.New()
	o := &orch.Orchestrator{
		Registry:       app.NewRegistry(),
		Presence:       app.NewPresence(),
		Rooms:          app.NewRoomManager(),
		Calls:          app.NewCallTable(),
		Limits:         app.NewRateLimiterBank(clk, cfg.Limits.Quotas()),
		Policy:         app.PolicyByName(cfg.Backpressure),
		Store:          db,
		Metrics:        metrics.New(promReg),
		Clock:          clk,
		StoreTimeout:   cfg.Store.Timeout,
		OnlineDebounce: cfg.Presence.Debounce,
	}

	gate := app.NewGatekeeper(db, cfg.SystemToken, cfg.Auth.CacheSize, cfg.Auth.CacheTTL, cfg.Store.Timeout)
	ctl := ws.NewSignalWSController(o, ws.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		PongWait:   cfg.PongWait,
		WriteWait:  cfg.WriteWait,
		SendBuffer: cfg.SendBuffer,
		FrameRate:  cfg.FrameRate,
		FrameBurst: cfg.FrameBurst,
	})

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch:     o,
		Gate:     gate,
		Signal:   ctl,
		Gatherer: promReg,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("chat relay started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
