package bot

import (
	"context"
	"time"

	"scribo/internal/admission"
	"scribo/internal/config"
	"scribo/internal/queue"
	"scribo/internal/storage"
	"scribo/internal/transport"
	"scribo/pkg/logger"

	tele "gopkg.in/telebot.v4"
)

// TranscriptHistory is the read side of the transcript store, used by the
// /history command. Nil when no store is configured.
type TranscriptHistory interface {
	RecentTranscripts(ctx context.Context, chatID int64, limit int) ([]storage.Transcript, error)
}

// Bot is the producer side: it turns inbound Telegram messages into
// admitted, enqueued jobs. Workers pick them up from the shared queue.
type Bot struct {
	cfg       *config.Config
	tb        *tele.Bot
	queue     *queue.JobQueue
	admission *admission.Control
	transport transport.Transport
	history   TranscriptHistory

	// workers is the number of workers that actually came up, which may be
	// fewer than configured when some recognizers failed to initialize.
	workers int
}

func NewBot(
	cfg *config.Config,
	tb *tele.Bot,
	q *queue.JobQueue,
	adm *admission.Control,
	tp transport.Transport,
	history TranscriptHistory,
	workers int,
) *Bot {
	b := &Bot{
		cfg:       cfg,
		tb:        tb,
		queue:     q,
		admission: adm,
		transport: tp,
		history:   history,
		workers:   workers,
	}
	b.registerHandlers()
	return b
}

func (b *Bot) registerHandlers() {
	b.tb.Handle("/start", b.handleStart)
	b.tb.Handle("/help", b.handleHelp)
	b.tb.Handle("/history", b.handleHistory)
	b.tb.Handle(tele.OnVoice, b.handleVoice)
	b.tb.Handle(tele.OnAudio, b.handleAudio)
	b.tb.Handle(tele.OnDocument, b.handleDocument)
}

// NewTelebot builds the underlying Telegram client with long polling.
func NewTelebot(token string) (*tele.Bot, error) {
	return tele.NewBot(tele.Settings{
		Token: token,
		Poller: &tele.LongPoller{
			Timeout: 10 * time.Second,
		},
	})
}

func (b *Bot) Start() {
	logger.Info("Bot started")
	b.tb.Start()
}

func (b *Bot) Stop() {
	b.tb.Stop()
	logger.Info("Bot stopped")
}
