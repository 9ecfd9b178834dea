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

	router "github.com/ostrenko/confab/internal/adapters/http"
	wssignal "github.com/ostrenko/confab/internal/adapters/signal"
	"github.com/ostrenko/confab/internal/app"
	"github.com/ostrenko/confab/internal/chat"
	"github.com/ostrenko/confab/internal/config"
	"github.com/ostrenko/confab/internal/mail"
	"github.com/ostrenko/confab/internal/meeting"
	"github.com/ostrenko/confab/internal/notify"
	"github.com/ostrenko/confab/internal/store"
	"github.com/ostrenko/confab/internal/store/memory"
	redisstore "github.com/ostrenko/confab/internal/store/redis"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var st store.Store
	if cfg.Mode == "debug" && cfg.Redis.Addr == "" {
		// Dev mode without redis: everything evaporates on restart.
		st = memory.New()
		log.Warn().Msg("using in-memory store")
	} else {
		rs, err := redisstore.Connect(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer rs.Close()
		st = rs
	}

	reg := app.NewRegistry()
	orch := &app.Orchestrator{
		Registry: reg,
		Rooms:    app.NewRoomManager(),
		Policy:   app.DropPolicy{},
	}
	events := &wssignal.Events{Orch: orch}

	mailer := &mail.SMTPSender{Addr: cfg.SMTP.Addr, From: cfg.SMTP.From}

	scheduler := notify.NewScheduler(st, st, st, events, nil)
	defer scheduler.Close()
	if err := scheduler.RecoverySweep(ctx); err != nil {
		log.Error().Err(err).Msg("notification recovery sweep")
	}

	meetings := meeting.NewService(st, st, scheduler, events, mailer, cfg.PublicBase, nil)
	chatSvc := chat.NewService(st, events, nil)

	sigCtl := &wssignal.Controller{
		Orch:       orch,
		Meetings:   meetings,
		Chat:       chatSvc,
		Users:      st,
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
	}

	h := router.NewHandlers(cfg, meetings, chatSvc, st, sigCtl)
	r := router.SetupRouter(ctx, h)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("confab server started")
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
