package mailer

import (
	"context"
	"fmt"

	"github.com/cinevault/apiserver/internal/logging"
	"github.com/cinevault/apiserver/internal/metrics"
	"github.com/cinevault/apiserver/internal/mq"
	"github.com/goccy/go-json"
)

const attrKind = "kind"
const kindEmail = "email"

// Publisher is the subset of the broker used to enqueue mail.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Subscriber is the subset of the broker used by the delivery worker.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// QueueMailer hands messages to the broker for the worker to deliver.
type QueueMailer struct {
	publisher Publisher
	channel   string
}

func NewQueueMailer(publisher Publisher, channel string) *QueueMailer {
	return &QueueMailer{publisher: publisher, channel: channel}
}

func (q *QueueMailer) Send(ctx context.Context, email Email) error {
	if len(email.To) == 0 {
		return errNoRecipients
	}
	data, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}
	id, err := q.publisher.Publish(ctx, q.channel, data, map[string]string{attrKind: kindEmail})
	if err != nil {
		metrics.MailDeliveriesTotal.WithLabelValues("queue", "error").Inc()
		return fmt.Errorf("enqueue email: %w", err)
	}
	metrics.MailDeliveriesTotal.WithLabelValues("queue", "enqueued").Inc()
	logging.Ctx(ctx).Debug().Str("message_id", id).Str("channel", q.channel).Msg("email enqueued")
	return nil
}

// Worker consumes queued mail and delivers it through a Sender.
type Worker struct {
	subscriber Subscriber
	channel    string
	sender     Sender
}

func NewWorker(subscriber Subscriber, channel string, sender Sender) *Worker {
	return &Worker{subscriber: subscriber, channel: channel, sender: sender}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (w *Worker) Run(ctx context.Context) error {
	logging.Info().Str("channel", w.channel).Msg("mail worker started")
	return w.subscriber.Subscribe(ctx, w.channel, w.handle)
}

// handle acknowledges undecodable messages so they are not redelivered forever.
func (w *Worker) handle(ctx context.Context, msg mq.Message) error {
	var email Email
	if err := json.Unmarshal(msg.Data, &email); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("message_id", msg.ID).Msg("dropping malformed mail message")
		return nil
	}
	if err := w.sender.Send(ctx, email); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("message_id", msg.ID).Msg("mail delivery failed")
		return err
	}
	return nil
}
