package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/xmr-billing/internal/models"
)

// PublishMessage публикует сообщение в RabbitMQ в виде JSON.
func PublishMessage(ch *amqp.Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Publisher публикует задачи провижининга в один канал.
type Publisher struct {
	mu         sync.Mutex
	ch         *amqp.Channel
	exchange   string
	routingKey string
}

// NewPublisher создаёт публикатора задач провижининга.
func NewPublisher(ch *amqp.Channel) *Publisher {
	return &Publisher{
		ch:         ch,
		exchange:   ProvisioningExchange,
		routingKey: ProvisioningRoutingKey,
	}
}

// PublishProvisioning отправляет задачу активации пользователя.
func (p *Publisher) PublishProvisioning(ctx context.Context, job models.ProvisioningJob) error {
	const op = "rabbitmq.PublishProvisioning"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := PublishMessage(p.ch, p.exchange, p.routingKey, job); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
