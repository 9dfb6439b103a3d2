package telegram

import (
	"context"
	"runtime/debug"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/vaultlink/internal/bot"
)

var updatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vaultlink_telegram_updates_total",
	Help: "Telegram updates received, by outcome.",
}, []string{"outcome"})

// Handler consumes converted updates. *bot.Handler satisfies it.
type Handler interface {
	Handle(ctx context.Context, u bot.Update) error
}

// Loop fans updates out to the handler, at most concurrency at a time.
type Loop struct {
	handler Handler
	sem     chan struct{}
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewLoop builds a Loop. concurrency <= 0 means 1.
func NewLoop(handler Handler, concurrency int, log zerolog.Logger) *Loop {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Loop{
		handler: handler,
		sem:     make(chan struct{}, concurrency),
		log:     log.With().Str("component", "telegram").Logger(),
	}
}

// Run reads updates until the channel closes or ctx is done, then waits for
// in-flight handlers to return. Channel posts are handled on the loop
// goroutine so that posts of one media group reach the batcher in arrival
// order; commands and callbacks fan out.
func (l *Loop) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	defer l.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			converted, ok := Convert(u)
			if !ok {
				updatesTotal.WithLabelValues("ignored").Inc()
				continue
			}
			if _, isPost := converted.(bot.ChannelPost); isPost {
				l.handle(ctx, u.UpdateID, converted)
				continue
			}
			select {
			case l.sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			l.wg.Add(1)
			go func() {
				defer func() {
					<-l.sem
					l.wg.Done()
				}()
				l.handle(ctx, u.UpdateID, converted)
			}()
		}
	}
}

func (l *Loop) handle(ctx context.Context, updateID int, u bot.Update) {
	defer func() {
		if r := recover(); r != nil {
			updatesTotal.WithLabelValues("panic").Inc()
			l.log.Error().Interface("panic", r).Int("update_id", updateID).Bytes("stack", debug.Stack()).Msg("update handler panicked")
		}
	}()
	if err := l.handler.Handle(ctx, u); err != nil {
		updatesTotal.WithLabelValues("error").Inc()
		l.log.Error().Err(err).Int("update_id", updateID).Msg("handle update")
		return
	}
	updatesTotal.WithLabelValues("handled").Inc()
}
