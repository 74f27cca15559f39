// Package chat routes inbound messages through commands, pending sessions
// and expense extraction, and composes the reply for each one.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"gitlab.com/yelinaung/ledger-chat/internal/categories"
	"gitlab.com/yelinaung/ledger-chat/internal/dates"
	"gitlab.com/yelinaung/ledger-chat/internal/ledger"
	"gitlab.com/yelinaung/ledger-chat/internal/logger"
	"gitlab.com/yelinaung/ledger-chat/internal/models"
	"gitlab.com/yelinaung/ledger-chat/internal/session"
	"gitlab.com/yelinaung/ledger-chat/internal/stats"
)

const meterName = "gitlab.com/yelinaung/ledger-chat/internal/chat"

// Message outcomes recorded on the chat.messages counter.
const (
	outcomeCommand    = "command"
	outcomeCompleted  = "completed"
	outcomeOpened     = "session_opened"
	outcomeAdvanced   = "session_advanced"
	outcomeReprompted = "reprompted"
	outcomeFailed     = "failed"
)

// Extractor turns free text into expense fields.
type Extractor interface {
	ExtractExpense(ctx context.Context, message string, now time.Time, categories []string) (models.Extraction, error)
}

// DateInterpreter resolves date replies the local resolver rejects.
type DateInterpreter interface {
	InterpretDate(ctx context.Context, input string, now time.Time) (time.Time, error)
}

// CategorySource serves the category menu and registers custom names.
type CategorySource interface {
	Menu(ctx context.Context) ([]string, error)
	Register(ctx context.Context, name string) (string, error)
}

// Queue accepts completed expenses for background writing.
type Queue interface {
	Enqueue(senderID string, e models.Expense) error
}

// Deps are the collaborators of a Router. Interpreter may be nil.
type Deps struct {
	Extractor   Extractor
	Interpreter DateInterpreter
	Categories  CategorySource
	Ledger      ledger.Lister
	Writer      Queue
	Sessions    *session.Store
	Location    *time.Location
	Currency    string
}

// Router is the per-message state machine. It is safe for concurrent use;
// messages from the same sender are handled one at a time.
type Router struct {
	extractor   Extractor
	interpreter DateInterpreter
	categories  CategorySource
	ledger      ledger.Lister
	writer      Queue
	sessions    *session.Store
	loc         *time.Location
	currency    string
	clock       func() time.Time

	messages metric.Int64Counter
}

// NewRouter creates a Router.
func NewRouter(deps Deps) *Router {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	sessions := deps.Sessions
	if sessions == nil {
		sessions = session.NewStore(0)
	}

	messages, err := otel.Meter(meterName).Int64Counter("chat.messages",
		metric.WithDescription("Inbound chat messages by outcome"))
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to create chat.messages counter")
	}

	return &Router{
		extractor:   deps.Extractor,
		interpreter: deps.Interpreter,
		categories:  deps.Categories,
		ledger:      deps.Ledger,
		writer:      deps.Writer,
		sessions:    sessions,
		loc:         loc,
		currency:    deps.Currency,
		clock:       time.Now,
		messages:    messages,
	}
}

// Handle processes one inbound message and returns the reply text.
func (r *Router) Handle(ctx context.Context, senderID, text string) string {
	slot := r.sessions.Lock(senderID)
	defer slot.Unlock()

	t := turn{
		Router:     r,
		slot:       slot,
		senderID:   senderID,
		senderHash: logger.HashSender(senderID),
		now:        r.clock().In(r.loc),
	}

	reply, outcome := t.handle(ctx, strings.TrimSpace(text))
	if r.messages != nil {
		r.messages.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	return reply
}

// turn carries the state of a single Handle call.
type turn struct {
	*Router
	slot       *session.Slot
	senderID   string
	senderHash string
	now        time.Time
}

func (t *turn) handle(ctx context.Context, text string) (string, string) {
	switch cmd := strings.ToLower(text); cmd {
	case "cancel", "reset":
		return t.cancel(), outcomeCommand
	case "today", "week", "month":
		w, _ := stats.ParseWindow(cmd)
		return t.stats(ctx, w), outcomeCommand
	case "last", "last expense":
		return t.last(ctx), outcomeCommand
	case "help":
		return helpText, outcomeCommand
	}

	if p, ok := t.slot.Get(); ok {
		return t.advance(ctx, p, text)
	}
	return t.start(ctx, text)
}

func (t *turn) cancel() string {
	p, ok := t.slot.Get()
	t.slot.Clear()
	if !ok {
		return replyNothingToCancel
	}
	t.transition(p.WaitingFor, 0)
	return replyCancelled
}

func (t *turn) stats(ctx context.Context, w stats.Window) string {
	rows, err := t.ledger.ListExpenses(ctx)
	if err != nil {
		logger.Log.Warn().Err(err).Str("sender_hash", t.senderHash).Str("window", w.String()).Msg("Stats query failed")
		return replyReadFailed
	}
	return stats.Render(stats.Summarize(rows, w, t.now), t.currency)
}

func (t *turn) last(ctx context.Context) string {
	rows, err := t.ledger.ListExpenses(ctx)
	if err != nil {
		logger.Log.Warn().Err(err).Str("sender_hash", t.senderHash).Msg("Last expense query failed")
		return replyReadFailed
	}
	if len(rows) == 0 {
		return replyNoExpenses
	}
	return lastExpense(rows[len(rows)-1], t.currency)
}

// start extracts a new expense and either completes it or opens a session.
func (t *turn) start(ctx context.Context, text string) (string, string) {
	menu, err := t.categories.Menu(ctx)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Category fetch failed, extracting with fixed categories")
		menu = categories.BuildMenu(nil)
	}

	ext, err := t.extractor.ExtractExpense(ctx, text, t.now, menu[:len(menu)-1])
	if err != nil {
		logger.Log.Warn().Err(err).Str("sender_hash", t.senderHash).Msg("Extraction failed")
		return replyNotUnderstood, outcomeFailed
	}
	if !ext.IsUsable() {
		logger.Log.Debug().Str("sender_hash", t.senderHash).Msg("Extraction missing amount or description")
		return replyNotUnderstood, outcomeFailed
	}

	p := session.Pending{
		Date:        ext.Date,
		Amount:      ext.Amount,
		Description: ext.Description,
		Category:    ext.Category,
	}

	switch {
	case !ext.HasDate():
		return t.move(p, session.WaitingForDate, promptDate), outcomeOpened
	case ext.Category.Kind == models.CategoryOther:
		return t.move(p, session.WaitingForCustomCategory, promptCustomCategory), outcomeOpened
	case !ext.Category.IsConcrete():
		return t.move(p, session.WaitingForCategory, categoryPrompt(menu, false)), outcomeOpened
	default:
		return t.complete(p, 0, ext.Category.Name), outcomeCompleted
	}
}

// advance feeds text to the open session according to what it waits for.
func (t *turn) advance(ctx context.Context, p session.Pending, text string) (string, string) {
	switch p.WaitingFor {
	case session.WaitingForDate:
		return t.advanceDate(ctx, p, text)
	case session.WaitingForCategory:
		return t.advanceCategory(ctx, p, text)
	case session.WaitingForCustomCategory:
		return t.advanceCustomCategory(ctx, p, text)
	default:
		logger.Log.Error().Str("sender_hash", t.senderHash).Int("waiting_for", int(p.WaitingFor)).Msg("Invalid session state, clearing")
		t.slot.Clear()
		return replyNotUnderstood, outcomeFailed
	}
}

func (t *turn) advanceDate(ctx context.Context, p session.Pending, text string) (string, string) {
	date, err := t.resolveDate(ctx, text)
	if err != nil {
		return promptDateRetry, outcomeReprompted
	}
	p.Date = date

	switch p.Category.Kind {
	case models.CategoryConcrete:
		if p.Category.IsConcrete() {
			return t.complete(p, session.WaitingForDate, p.Category.Name), outcomeCompleted
		}
	case models.CategoryOther:
		return t.move(p, session.WaitingForCustomCategory, promptCustomCategory), outcomeAdvanced
	}

	menu, err := t.categories.Menu(ctx)
	if err != nil {
		logger.Log.Warn().Err(err).Str("sender_hash", t.senderHash).Msg("Category menu unavailable")
		menu = categories.BuildMenu(nil)
	}
	return t.move(p, session.WaitingForCategory, categoryPrompt(menu, false)), outcomeAdvanced
}

func (t *turn) resolveDate(ctx context.Context, text string) (time.Time, error) {
	date, err := dates.Resolve(text, t.now)
	if err == nil || t.interpreter == nil {
		return date, err
	}

	date, ierr := t.interpreter.InterpretDate(ctx, text, t.now)
	if ierr != nil {
		if !errors.Is(ierr, dates.ErrUnresolvable) {
			logger.Log.Warn().Err(ierr).Str("sender_hash", t.senderHash).Msg("Date interpretation failed")
		}
		return time.Time{}, err
	}
	return date, nil
}

func (t *turn) advanceCategory(ctx context.Context, p session.Pending, text string) (string, string) {
	menu, err := t.categories.Menu(ctx)
	if err != nil {
		logger.Log.Warn().Err(err).Str("sender_hash", t.senderHash).Msg("Category menu unavailable")
		return replyReadFailed, outcomeReprompted
	}

	choice, err := categories.Resolve(text, menu)
	if err != nil {
		return categoryPrompt(menu, true), outcomeReprompted
	}
	if choice.Kind == models.CategoryOther {
		p.Category = choice
		return t.move(p, session.WaitingForCustomCategory, promptCustomCategory), outcomeAdvanced
	}
	return t.complete(p, session.WaitingForCategory, choice.Name), outcomeCompleted
}

func (t *turn) advanceCustomCategory(ctx context.Context, p session.Pending, text string) (string, string) {
	name, err := categories.ValidateName(text)
	if err != nil || strings.EqualFold(name, models.OtherCategory) {
		return promptCustomRetry, outcomeReprompted
	}

	if registered, err := t.categories.Register(ctx, name); err != nil {
		logger.Log.Warn().Err(err).Str("sender_hash", t.senderHash).Str("category", name).
			Msg("Custom category registration failed, recording expense anyway")
	} else {
		name = registered
	}
	return t.complete(p, session.WaitingForCustomCategory, name), outcomeCompleted
}

func (t *turn) move(p session.Pending, to session.WaitingFor, prompt string) string {
	from := p.WaitingFor
	p.WaitingFor = to
	t.slot.Set(p)
	t.transition(from, to)
	return prompt
}

// complete clears the session, composes the confirmation and only then
// hands the expense to the background writer.
func (t *turn) complete(p session.Pending, from session.WaitingFor, category string) string {
	e := p.Expense(category)
	t.slot.Clear()
	t.transition(from, 0)

	reply := confirmation(e, t.currency)

	if err := t.writer.Enqueue(t.senderID, e); err != nil {
		logger.Log.Error().Err(err).Str("sender_hash", t.senderHash).Msg("Failed to queue expense")
	}
	return reply
}

func (t *turn) transition(from, to session.WaitingFor) {
	logger.Log.Debug().
		Str("sender_hash", t.senderHash).
		Str("from_state", from.String()).
		Str("to_state", to.String()).
		Msg("Session transition")
}
