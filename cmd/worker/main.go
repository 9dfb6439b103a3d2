package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/vaultlink/internal/app"
	"github.com/dharsanguruparan/vaultlink/internal/config"
	"github.com/dharsanguruparan/vaultlink/internal/logger"
	"github.com/dharsanguruparan/vaultlink/internal/queue"
	"github.com/dharsanguruparan/vaultlink/internal/worker"
)

func main() {
	opt := logger.FromEnv()
	opt.Service = "worker"
	logger.Init(opt)
	log := *logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if cfg.RedisAddr == "" {
		log.Fatal().Msg("VAULTLINK_REDIS_ADDR is required for the worker")
	}

	store, err := app.OpenStore(ctx, cfg, true)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer store.Close()

	core, err := app.Build(ctx, cfg, store, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build pipeline")
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.ProcessingPool,
		Queues:      map[string]int{queue.IngestQueue: 1},
		Logger:      worker.NewAsynqLogger(log),
	})
	processor := worker.NewProcessor(core.Pipeline, log)

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	log.Info().Int("concurrency", cfg.ProcessingPool).Msg("worker started")
	if err := server.Run(processor.Handler()); err != nil {
		log.Error().Err(err).Msg("worker stopped")
		os.Exit(1)
	}
}
