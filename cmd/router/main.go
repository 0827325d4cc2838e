package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/datorot93/matching-engine-sub000/internal/config"
	"github.com/datorot93/matching-engine-sub000/internal/router"
)

func main() {
	configPath := flag.String("config", "configs/router.yaml", "path to router config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := config.LoadRouter(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load router config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid router config")
	}

	rt := router.New(cfg)
	srv := rt.Server()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("router shutdown")
		}
	}()

	log.Info().Int("port", cfg.HTTPPort).Msg("router starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("router exited with error")
	}
}
