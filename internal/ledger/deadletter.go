package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"gitlab.com/yelinaung/ledger-chat/internal/logger"
	"gitlab.com/yelinaung/ledger-chat/internal/models"
)

// DeadLetter is an expense the writer gave up on.
type DeadLetter struct {
	ID         string
	SenderHash string
	Expense    models.Expense
	Attempts   int
	Err        string
	FailedAt   time.Time
}

// deadLetterMessage is the wire form of a DeadLetter.
type deadLetterMessage struct {
	ID          string    `json:"id"`
	SenderHash  string    `json:"sender_hash"`
	Date        string    `json:"date"`
	Amount      string    `json:"amount"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Attempts    int       `json:"attempts"`
	Error       string    `json:"error"`
	FailedAt    time.Time `json:"failed_at"`
}

func newDeadLetter(senderHash string, e models.Expense, attempts int, err error) DeadLetter {
	return DeadLetter{
		ID:         uuid.NewString(),
		SenderHash: senderHash,
		Expense:    e,
		Attempts:   attempts,
		Err:        err.Error(),
		FailedAt:   time.Now().UTC(),
	}
}

// MarshalJSON encodes the dead letter with the expense fields flattened.
func (d DeadLetter) MarshalJSON() ([]byte, error) {
	return json.Marshal(deadLetterMessage{
		ID:          d.ID,
		SenderHash:  d.SenderHash,
		Date:        d.Expense.FormattedDate(),
		Amount:      d.Expense.Amount.String(),
		Description: d.Expense.Description,
		Category:    d.Expense.Category,
		Attempts:    d.Attempts,
		Error:       d.Err,
		FailedAt:    d.FailedAt,
	})
}

// DeadLetterSink receives expenses that could not be written.
type DeadLetterSink interface {
	Publish(ctx context.Context, d DeadLetter) error
}

// LogDeadLetter records dead letters in the structured log.
type LogDeadLetter struct{}

// Publish logs d at error level. The description is sanitized.
func (LogDeadLetter) Publish(_ context.Context, d DeadLetter) error {
	logger.Log.Error().
		Str("dead_letter_id", d.ID).
		Str("sender_hash", d.SenderHash).
		Str("date", d.Expense.FormattedDate()).
		Str("amount", d.Expense.Amount.String()).
		Str("category", d.Expense.Category).
		Str("description", logger.SanitizeDescription(d.Expense.Description)).
		Int("attempts", d.Attempts).
		Str("error", d.Err).
		Msg("Expense moved to dead letter")
	return nil
}

// publisher is the subset of *amqp.Channel used for dead letters.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPDeadLetter publishes dead letters to a durable queue and also logs them.
type AMQPDeadLetter struct {
	conn     *amqp.Connection
	channel  publisher
	exchange string
	queue    string
	timeout  time.Duration
}

// NewAMQPDeadLetter dials url and declares a direct exchange bound to queue.
func NewAMQPDeadLetter(url, exchange, queue string) (*AMQPDeadLetter, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareDeadLetterQueue(ch, exchange, queue); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &AMQPDeadLetter{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		queue:    queue,
		timeout:  5 * time.Second,
	}, nil
}

func declareDeadLetterQueue(ch *amqp.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeDirect,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name.
	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Publish logs d and sends it to the dead-letter queue.
func (a *AMQPDeadLetter) Publish(ctx context.Context, d DeadLetter) error {
	_ = LogDeadLetter{}.Publish(ctx, d)

	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err = a.channel.PublishWithContext(
		ctx,
		a.exchange,
		a.queue,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    d.ID,
			Timestamp:    d.FailedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish dead letter: %w", err)
	}

	logger.Log.Debug().
		Str("dead_letter_id", d.ID).
		Str("exchange", a.exchange).
		Str("queue", a.queue).
		Msg("Published dead letter")
	return nil
}

// Close closes the broker connection.
func (a *AMQPDeadLetter) Close() error {
	if a.conn != nil {
		return a.conn.Close()
	}
	return nil
}
