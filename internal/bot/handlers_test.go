package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/yelinaung/ledger-chat/internal/bot/mocks"
	"gitlab.com/yelinaung/ledger-chat/internal/ledger"
	"gitlab.com/yelinaung/ledger-chat/internal/models"
)

const testChatID int64 = 12345

type fakeRouter struct {
	mu    sync.Mutex
	calls []string
}

func (r *fakeRouter) Handle(_ context.Context, sender, text string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, sender+"|"+text)
	return "reply to " + text
}

func (r *fakeRouter) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func setupTestBot(t *testing.T) (*Bot, *fakeRouter, *ledger.MemoryStore) {
	t.Helper()

	router := &fakeRouter{}
	store := ledger.NewMemoryStore()
	b := &Bot{
		router:   router,
		ledger:   store,
		loc:      time.UTC,
		currency: "₹",
		now:      func() time.Time { return time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC) },
	}
	return b, router, store
}

func TestHandleStartCore(t *testing.T) {
	t.Parallel()

	b, router, _ := setupTestBot(t)
	mockBot := mocks.NewMockBot()

	b.handleStartCore(context.Background(), mockBot, mocks.CommandUpdate(testChatID, 1, "/start"))

	require.Equal(t, []string{"tg:12345|help"}, router.recorded())
	msg := mockBot.LastSentMessage()
	require.NotNil(t, msg)
	require.Equal(t, testChatID, msg.ChatID)
	require.Equal(t, welcomePrefix+"reply to help", msg.Text)
}

func TestHandleHelpCore(t *testing.T) {
	t.Parallel()

	b, router, _ := setupTestBot(t)
	mockBot := mocks.NewMockBot()

	b.handleHelpCore(context.Background(), mockBot, mocks.CommandUpdate(testChatID, 1, "/help"))

	require.Equal(t, []string{"tg:12345|help"}, router.recorded())
	require.Equal(t, "reply to help", mockBot.LastSentMessage().Text)
}

func TestHandleTextCore(t *testing.T) {
	t.Parallel()

	t.Run("routes free text", func(t *testing.T) {
		t.Parallel()
		b, router, _ := setupTestBot(t)
		mockBot := mocks.NewMockBot()

		b.handleTextCore(context.Background(), mockBot, mocks.MessageUpdate(testChatID, 1, "  Diesel 1200 today "))

		require.Equal(t, []string{"tg:12345|Diesel 1200 today"}, router.recorded())
		require.Equal(t, "reply to Diesel 1200 today", mockBot.LastSentMessage().Text)
	})

	t.Run("slash commands map to router commands", func(t *testing.T) {
		t.Parallel()
		b, router, _ := setupTestBot(t)
		mockBot := mocks.NewMockBot()

		b.handleTextCore(context.Background(), mockBot, mocks.CommandUpdate(testChatID, 1, "/week@ledger_bot"))
		b.handleTextCore(context.Background(), mockBot, mocks.CommandUpdate(testChatID, 1, "/cancel"))

		require.Equal(t, []string{"tg:12345|week", "tg:12345|cancel"}, router.recorded())
	})

	t.Run("chats are separate senders", func(t *testing.T) {
		t.Parallel()
		b, router, _ := setupTestBot(t)
		mockBot := mocks.NewMockBot()

		b.handleTextCore(context.Background(), mockBot, mocks.MessageUpdate(1, 1, "a"))
		b.handleTextCore(context.Background(), mockBot, mocks.MessageUpdate(2, 1, "b"))

		require.Equal(t, []string{"tg:1|a", "tg:2|b"}, router.recorded())
	})

	t.Run("non-text message gets a hint", func(t *testing.T) {
		t.Parallel()
		b, router, _ := setupTestBot(t)
		mockBot := mocks.NewMockBot()

		b.handleTextCore(context.Background(), mockBot, mocks.MessageUpdate(testChatID, 1, ""))

		require.Empty(t, router.recorded())
		require.Equal(t, unsupportedMessage, mockBot.LastSentMessage().Text)
	})

	t.Run("nil message is ignored", func(t *testing.T) {
		t.Parallel()
		b, router, _ := setupTestBot(t)
		mockBot := mocks.NewMockBot()

		b.handleTextCore(context.Background(), mockBot, mocks.NewUpdateBuilder().Build())

		require.Empty(t, router.recorded())
		require.Equal(t, 0, mockBot.SentMessageCount())
	})

	t.Run("send failure is swallowed", func(t *testing.T) {
		t.Parallel()
		b, router, _ := setupTestBot(t)
		mockBot := mocks.NewMockBot()
		mockBot.SendMessageError = errors.New("telegram down")

		b.handleTextCore(context.Background(), mockBot, mocks.MessageUpdate(testChatID, 1, "hi"))

		require.Len(t, router.recorded(), 1)
		require.Equal(t, 0, mockBot.SentMessageCount())
	})
}

func TestHandleChartCore(t *testing.T) {
	t.Parallel()

	seed := func(store *ledger.MemoryStore) {
		store.AddRow(models.LedgerRow{Date: "16-10-2026", Amount: "4000", Description: "labour", Category: "Labour"})
		store.AddRow(models.LedgerRow{Date: "12-10-2026", Amount: "1200", Description: "diesel", Category: "Fuel"})
		store.AddRow(models.LedgerRow{Date: "01-09-2026", Amount: "900", Description: "old", Category: "Fuel"})
	}

	t.Run("defaults to month", func(t *testing.T) {
		t.Parallel()
		b, _, store := setupTestBot(t)
		seed(store)
		mockBot := mocks.NewMockBot()

		b.handleChartCore(context.Background(), mockBot, mocks.CommandUpdate(testChatID, 1, "/chart"))

		require.Equal(t, 1, mockBot.SentDocumentCount())
		doc := mockBot.LastSentDocument()
		require.Equal(t, testChatID, doc.ChatID)
		require.Equal(t, "expenses_month_20261016.png", doc.Filename)
		require.Contains(t, doc.Caption, "Total: ₹5200.00 across 2 transactions")
		require.Greater(t, len(doc.Data), 8)
		require.Equal(t, "\x89PNG", string(doc.Data[:4]))
	})

	t.Run("explicit window", func(t *testing.T) {
		t.Parallel()
		b, _, store := setupTestBot(t)
		seed(store)
		mockBot := mocks.NewMockBot()

		b.handleChartCore(context.Background(), mockBot, mocks.CommandUpdate(testChatID, 1, "/chart today"))

		doc := mockBot.LastSentDocument()
		require.NotNil(t, doc)
		require.Equal(t, "expenses_today_20261016.png", doc.Filename)
		require.Contains(t, doc.Caption, "Labour: ₹4000.00 (1)")
		require.NotContains(t, doc.Caption, "Fuel")
	})

	t.Run("invalid window", func(t *testing.T) {
		t.Parallel()
		b, _, _ := setupTestBot(t)
		mockBot := mocks.NewMockBot()

		b.handleChartCore(context.Background(), mockBot, mocks.CommandUpdate(testChatID, 1, "/chart year"))

		require.Equal(t, 0, mockBot.SentDocumentCount())
		require.Equal(t, chartUsage, mockBot.LastSentMessage().Text)
	})

	t.Run("empty window sends text", func(t *testing.T) {
		t.Parallel()
		b, _, _ := setupTestBot(t)
		mockBot := mocks.NewMockBot()

		b.handleChartCore(context.Background(), mockBot, mocks.CommandUpdate(testChatID, 1, "/chart week"))

		require.Equal(t, 0, mockBot.SentDocumentCount())
		require.Equal(t, "No expenses recorded in the last 7 days.", mockBot.LastSentMessage().Text)
	})

	t.Run("ledger read failure", func(t *testing.T) {
		t.Parallel()
		b, _, store := setupTestBot(t)
		store.SetErrors(nil, errors.New("sheet unavailable"), nil, nil)
		mockBot := mocks.NewMockBot()

		b.handleChartCore(context.Background(), mockBot, mocks.CommandUpdate(testChatID, 1, "/chart"))

		require.Equal(t, chartFailed, mockBot.LastSentMessage().Text)
	})

	t.Run("upload failure", func(t *testing.T) {
		t.Parallel()
		b, _, store := setupTestBot(t)
		seed(store)
		mockBot := mocks.NewMockBot()
		mockBot.SendDocumentError = errors.New("too large")

		b.handleChartCore(context.Background(), mockBot, mocks.CommandUpdate(testChatID, 1, "/chart"))

		require.Equal(t, chartSendFailed, mockBot.LastSentMessage().Text)
	})
}

func TestCommandWord(t *testing.T) {
	t.Parallel()

	require.Equal(t, "today", commandWord("/today"))
	require.Equal(t, "last", commandWord("/last@ledger_bot"))
	require.Equal(t, "month extra", commandWord("/month extra"))
}

func TestSenderID(t *testing.T) {
	t.Parallel()

	require.Equal(t, "tg:-100200", senderID(-100200))
}
