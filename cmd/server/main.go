package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Spotlight/internal/adapters/http"
	sig "github.com/dkeye/Spotlight/internal/adapters/signal"
	"github.com/dkeye/Spotlight/internal/app"
	"github.com/dkeye/Spotlight/internal/app/orch"
	"github.com/dkeye/Spotlight/internal/app/reconcile"
	"github.com/dkeye/Spotlight/internal/config"
	"github.com/dkeye/Spotlight/internal/metrics"
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
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	met := metrics.New()
	o := orch.New(ctx,
		app.NewRegistry(),
		app.NewRoomManager(),
		app.NewDropCountPolicy(cfg.Signal.MaxDrops),
		met,
		orch.StageOptions{
			Retry: reconcile.Policy{
				Base:        cfg.Stage.RetryBase,
				Step:        cfg.Stage.RetryStep,
				MaxAttempts: cfg.Stage.RetryAttempts,
			},
			InboxSize: cfg.Stage.InboxSize,
		},
	)
	ctl := sig.NewSignalWSController(o,
		sig.NewRoomRateLimiter(cfg.Signal.RateLimit, cfg.Signal.RateInterval),
		sig.Options{
			ReadLimit:  cfg.ReadLimit,
			PingPeriod: cfg.PingPeriod,
			SendBuffer: cfg.Signal.SendBuffer,
			ICEServers: cfg.ICEServers,
		},
	)

	r := router.SetupRouter(ctx, cfg, router.Deps{Orch: o, Signal: ctl, Metrics: met})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Spotlight server started")
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
