// Package bot exposes the chat router over Telegram long polling.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"gitlab.com/yelinaung/ledger-chat/internal/ledger"
	"gitlab.com/yelinaung/ledger-chat/internal/logger"
)

// MessageHandler turns one inbound message into a reply.
type MessageHandler interface {
	Handle(ctx context.Context, senderID, text string) string
}

// Bot wraps the Telegram bot with application dependencies.
type Bot struct {
	bot      *bot.Bot
	router   MessageHandler
	ledger   ledger.Lister
	loc      *time.Location
	currency string
	now      func() time.Time
}

// New creates a new Bot instance.
func New(token string, router MessageHandler, lister ledger.Lister, loc *time.Location, currency string) (*Bot, error) {
	if loc == nil {
		loc = time.UTC
	}
	b := &Bot{
		router:   router,
		ledger:   lister,
		loc:      loc,
		currency: currency,
		now:      time.Now,
	}

	opts := []bot.Option{
		bot.WithMiddlewares(b.logMiddleware),
		bot.WithDefaultHandler(b.defaultHandler),
	}

	telegramBot, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b.bot = telegramBot
	b.registerHandlers()

	return b, nil
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	logger.Log.Info().Msg("Bot started polling")
	b.bot.Start(ctx)
}

func (b *Bot) registerHandlers() {
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, b.handleStart)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, b.handleHelp)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/chart", bot.MatchTypePrefix, b.handleChart)
}

// logMiddleware drops updates without a message and logs the rest.
func (b *Bot) logMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, tgBot *bot.Bot, update *tgmodels.Update) {
		if update.Message == nil {
			return
		}

		msg := update.Message
		event := logger.Log.Info().
			Str("sender_hash", logger.HashSender(senderID(msg.Chat.ID)))
		if msg.Text != "" {
			event = event.Str("text", logger.SanitizeText(msg.Text))
		}
		event.Msg("User input")

		next(ctx, tgBot, update)
	}
}

// senderID namespaces Telegram chats so they never collide with webhook senders.
func senderID(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}
