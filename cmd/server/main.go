// Command server runs the bot: it polls Telegram for updates, batches channel
// uploads into links, answers searches and deep links, and serves the HTTP
// health, metrics and read API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/vaultlink/internal/app"
	"github.com/dharsanguruparan/vaultlink/internal/bot"
	"github.com/dharsanguruparan/vaultlink/internal/config"
	"github.com/dharsanguruparan/vaultlink/internal/ingest"
	"github.com/dharsanguruparan/vaultlink/internal/logger"
	"github.com/dharsanguruparan/vaultlink/internal/processing"
	"github.com/dharsanguruparan/vaultlink/internal/queue"
	"github.com/dharsanguruparan/vaultlink/internal/server"
	"github.com/dharsanguruparan/vaultlink/internal/session"
	"github.com/dharsanguruparan/vaultlink/internal/telegram"
)

func main() {
	opt := logger.FromEnv()
	opt.Service = "server"
	logger.Init(opt)
	log := *logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, log zerolog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireBot(); err != nil {
		return err
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("connect telegram: %w", err)
	}
	if cfg.BotUsername == "" {
		cfg.BotUsername = api.Self.UserName
	}
	log.Info().Str("bot", cfg.BotUsername).Int64("channel_id", cfg.ChannelID).Msg("telegram connected")

	store, err := app.OpenStore(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer store.Close()

	core, err := app.Build(ctx, cfg, store, log)
	if err != nil {
		return err
	}

	// Batches outlive the signal context so that shutdown can drain them.
	workCtx := context.WithoutCancel(ctx)

	var (
		dispatcher ingest.Dispatcher
		pool       *processing.Processor
	)
	switch cfg.IngestMode {
	case config.IngestQueue:
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		dispatcher = queue.NewEnqueuer(client)
	default:
		pool = processing.New(core.Pipeline, cfg.ProcessingPool, log)
		pool.Start(workCtx)
		dispatcher = pool
	}

	batcher := ingest.NewBatcher(dispatcher, ingest.BatcherOptions{
		Window:      cfg.MediaGroupDelay,
		Logger:      log,
		BaseContext: workCtx,
	})
	sessions := session.NewRegistry(session.Options{TTL: cfg.SessionTTL})

	linkURL := func(id string) string {
		if cfg.BotUsername == "" {
			return ""
		}
		return cfg.DeepLink(id)
	}
	handler := bot.NewHandler(batcher, core.Search, sessions, core.Links, telegram.NewClient(api, cfg.SendRate), bot.Options{
		ChannelID:      cfg.ChannelID,
		PageSize:       cfg.PageSize,
		MaxQueryLength: cfg.MaxQueryLength,
		LinkURL:        linkURL,
		Logger:         log,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpDone := make(chan error, 1)
	srv := server.New(store, core.Links, core.Search, server.Options{
		Address:        cfg.Address,
		PageSize:       cfg.PageSize,
		MaxQueryLength: cfg.MaxQueryLength,
		LinkURL:        linkURL,
		Logger:         log,
	})
	go func() {
		err := srv.Run(runCtx)
		if err != nil {
			log.Error().Err(err).Msg("http server failed")
		}
		cancel()
		httpDone <- err
	}()

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 60
	updates := api.GetUpdatesChan(updateCfg)
	telegram.NewLoop(handler, cfg.HandlerConcurrency, log).Run(runCtx, updates)

	log.Info().Msg("shutting down")
	api.StopReceivingUpdates()
	batcher.Close(workCtx)
	if pool != nil {
		pool.Stop()
	}
	cancel()
	return <-httpDone
}
