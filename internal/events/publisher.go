package events

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPPublisher publishes events to a durable RabbitMQ queue. It dials per
// publish: record intake is low volume and this keeps the publisher free
// of reconnect state. Errors are logged and returned so the caller can
// decide whether to fall back.
type AMQPPublisher struct {
	url   string
	queue string
	log   *zap.Logger
}

func NewAMQPPublisher(url, queue string, log *zap.Logger) *AMQPPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &AMQPPublisher{url: url, queue: queue, log: log.Named("publisher")}
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.log.Warn("queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         string(ev.Kind()),
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.log.Warn("publish failed", zap.String("event", ev.ID), zap.Error(err))
		return err
	}
	return nil
}

// Fallback publishes through Primary and, when that fails, hands the
// event to Secondary. Used to run the pipeline inline while the broker is
// unreachable.
type Fallback struct {
	Primary   Publisher
	Secondary Publisher
	Log       *zap.Logger
}

func (f Fallback) Publish(ctx context.Context, ev Event) error {
	err := f.Primary.Publish(ctx, ev)
	if err == nil {
		return nil
	}
	if f.Log != nil {
		f.Log.Warn("broker publish failed, delivering inline",
			zap.String("event", ev.ID), zap.String("kind", string(ev.Kind())), zap.Error(err))
	}
	return f.Secondary.Publish(ctx, ev)
}
