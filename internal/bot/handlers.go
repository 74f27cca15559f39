package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"gitlab.com/yelinaung/ledger-chat/internal/logger"
	"gitlab.com/yelinaung/ledger-chat/internal/stats"
)

const (
	welcomePrefix      = "👋 Welcome!\n\n"
	chartUsage         = "❌ Invalid chart period.\n\nUsage: /chart today, /chart week or /chart month"
	chartFailed        = "❌ Failed to generate chart. Please try again."
	chartSendFailed    = "❌ Failed to send chart. Please try again."
	unsupportedMessage = "Please send your expense as a text message."
)

func (b *Bot) handleStart(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleStartCore(ctx, tgBot, update)
}

// handleStartCore greets the user and shows usage.
func (b *Bot) handleStartCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	reply := b.router.Handle(ctx, senderID(chatID), "help")
	b.reply(ctx, tg, chatID, welcomePrefix+reply)
}

func (b *Bot) handleHelp(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleHelpCore(ctx, tgBot, update)
}

// handleHelpCore shows usage.
func (b *Bot) handleHelpCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	b.reply(ctx, tg, chatID, b.router.Handle(ctx, senderID(chatID), "help"))
}

func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleTextCore(ctx, tgBot, update)
}

// handleTextCore routes free text, and slash forms of the router's
// commands, through the shared conversation router.
func (b *Bot) handleTextCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	text := strings.TrimSpace(update.Message.Text)
	if text == "" {
		b.reply(ctx, tg, chatID, unsupportedMessage)
		return
	}
	if strings.HasPrefix(text, "/") {
		text = commandWord(text)
	}

	b.reply(ctx, tg, chatID, b.router.Handle(ctx, senderID(chatID), text))
}

func (b *Bot) handleChart(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleChartCore(ctx, tgBot, update)
}

// handleChartCore sends a per-category pie chart for the requested window.
func (b *Bot) handleChartCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	window := stats.Month
	if args := strings.Fields(update.Message.Text); len(args) > 1 {
		w, ok := stats.ParseWindow(args[1])
		if !ok {
			b.reply(ctx, tg, chatID, chartUsage)
			return
		}
		window = w
	}

	rows, err := b.ledger.ListExpenses(ctx)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to fetch expenses for chart")
		b.reply(ctx, tg, chatID, chartFailed)
		return
	}

	now := b.now().In(b.loc)
	summary := stats.Summarize(rows, window, now)

	chartData, err := stats.RenderChart(summary)
	if errors.Is(err, stats.ErrNoData) {
		b.reply(ctx, tg, chatID, stats.Render(summary, b.currency))
		return
	}
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to generate chart")
		b.reply(ctx, tg, chatID, chartFailed)
		return
	}

	filename := fmt.Sprintf("expenses_%s_%s.png", window, now.Format("20060102"))
	_, err = tg.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:   chatID,
		Document: &models.InputFileUpload{Filename: filename, Data: bytes.NewReader(chartData)},
		Caption:  stats.Render(summary, b.currency),
	})
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to send chart document")
		b.reply(ctx, tg, chatID, chartSendFailed)
		return
	}

	logger.Log.Info().
		Str("window", window.String()).
		Int("categories", len(summary.Categories)).
		Int("expense_count", summary.Count).
		Msg("Chart generated successfully")
}

func (b *Bot) reply(ctx context.Context, tg TelegramAPI, chatID int64, text string) {
	if text == "" {
		return
	}
	if _, err := tg.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		logger.Log.Error().Err(err).Msg("Failed to send reply")
	}
}

// commandWord turns "/week@ledger_bot" into "week".
func commandWord(text string) string {
	word := strings.TrimPrefix(text, "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	return word
}
