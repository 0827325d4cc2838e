package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/datorot93/matching-engine-sub000/internal/config"
	"github.com/datorot93/matching-engine-sub000/internal/shard"
)

func main() {
	configPath := flag.String("config", "configs/shard.yaml", "path to shard config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	cfg, err := config.LoadShard(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load shard config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid shard config")
	}

	s, err := shard.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("wire shard")
	}

	log.Info().Str("shardId", cfg.ShardID).Strs("symbols", cfg.ShardSymbols).Msg("shard starting")
	if err := s.Run(ctx); err != nil {
		log.Error().Err(err).Msg("shard exited with error")
	}
}
