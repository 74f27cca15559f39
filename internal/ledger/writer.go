package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/yelinaung/ledger-chat/internal/logger"
	"gitlab.com/yelinaung/ledger-chat/internal/models"
)

var (
	// ErrQueueFull is returned when the write queue has no free slot.
	ErrQueueFull = errors.New("write queue is full")
	// ErrQueueClosed is returned after Shutdown has been called.
	ErrQueueClosed = errors.New("write queue is closed")
)

const meterName = "gitlab.com/yelinaung/ledger-chat/internal/ledger"

// WriterConfig controls queue capacity and retry behaviour.
type WriterConfig struct {
	QueueSize       int
	MaxAttempts     int
	AttemptTimeout  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (c WriterConfig) withDefaults() WriterConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 100
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 10 * time.Second
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = backoff.DefaultInitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 10 * time.Second
	}
	return c
}

type writeJob struct {
	senderHash string
	expense    models.Expense
}

// Writer appends expenses in the background so replies never wait on the ledger.
// Jobs are processed one at a time in enqueue order.
type Writer struct {
	store Appender
	sink  DeadLetterSink
	cfg   WriterConfig

	mu     sync.RWMutex
	closed bool
	queue  chan writeJob
	wg     sync.WaitGroup

	writes      metric.Int64Counter
	deadLetters metric.Int64Counter
}

// NewWriter creates a Writer. A nil sink logs dead letters.
func NewWriter(store Appender, sink DeadLetterSink, cfg WriterConfig) *Writer {
	cfg = cfg.withDefaults()
	if sink == nil {
		sink = LogDeadLetter{}
	}

	meter := otel.Meter(meterName)
	writes, err := meter.Int64Counter("ledger.writes",
		metric.WithDescription("Background ledger appends by result"))
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to create ledger.writes counter")
	}
	deadLetters, err := meter.Int64Counter("ledger.dead_letters",
		metric.WithDescription("Expenses moved to the dead-letter sink"))
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to create ledger.dead_letters counter")
	}

	return &Writer{
		store:       store,
		sink:        sink,
		cfg:         cfg,
		queue:       make(chan writeJob, cfg.QueueSize),
		writes:      writes,
		deadLetters: deadLetters,
	}
}

// Start launches the worker goroutine.
func (w *Writer) Start() {
	w.wg.Go(func() {
		for job := range w.queue {
			w.process(job)
		}
	})
}

// Enqueue schedules e for writing without blocking. A full queue sends the
// expense straight to the dead-letter sink and returns ErrQueueFull.
func (w *Writer) Enqueue(senderID string, e models.Expense) error {
	job := writeJob{senderHash: logger.HashSender(senderID), expense: e}

	if err := w.push(job); err != nil {
		if errors.Is(err, ErrQueueFull) {
			w.deadLetter(context.Background(), job, 0, err)
		}
		return err
	}

	logger.Log.Debug().
		Str("sender_hash", job.senderHash).
		Msg("Expense queued for ledger")
	return nil
}

func (w *Writer) push(job writeJob) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrQueueClosed
	}

	select {
	case w.queue <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits until queued jobs are written
// or ctx is done.
func (w *Writer) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		logger.Log.Info().Int("remaining_writes", len(w.queue)).Msg("Draining ledger writes before shutdown")
		close(w.queue)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued jobs.
func (w *Writer) Pending() int {
	return len(w.queue)
}

func (w *Writer) process(job writeJob) {
	ctx, span := otel.Tracer(meterName).Start(context.Background(), "ledger.append",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("sender_hash", job.senderHash)))
	defer span.End()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.cfg.InitialInterval
	b.MaxInterval = w.cfg.MaxInterval

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, w.cfg.AttemptTimeout)
		defer cancel()
		return struct{}{}, w.store.AppendExpense(attemptCtx, job.expense)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(w.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Log.Warn().Err(err).
				Str("sender_hash", job.senderHash).
				Dur("retry_in", next).
				Msg("Ledger append failed, retrying")
		}),
	)
	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		w.count(ctx, w.writes, "failed")
		w.deadLetter(ctx, job, attempts, err)
		return
	}

	w.count(ctx, w.writes, "ok")
	logger.Log.Info().
		Str("sender_hash", job.senderHash).
		Str("date", job.expense.FormattedDate()).
		Str("category", job.expense.Category).
		Int("attempts", attempts).
		Msg("Expense written to ledger")
}

func (w *Writer) deadLetter(ctx context.Context, job writeJob, attempts int, cause error) {
	d := newDeadLetter(job.senderHash, job.expense, attempts, cause)
	w.count(ctx, w.deadLetters, "")
	if err := w.sink.Publish(ctx, d); err != nil {
		logger.Log.Error().Err(err).
			Str("dead_letter_id", d.ID).
			Msg("Failed to publish dead letter")
	}
}

func (w *Writer) count(ctx context.Context, c metric.Int64Counter, result string) {
	if c == nil {
		return
	}
	if result == "" {
		c.Add(ctx, 1)
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
