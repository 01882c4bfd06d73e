package amqp

import (
	"fmt"

	amqplib "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeName = "safeexec.direct"
	routingKey   = "execute"
	queueName    = "execution_tasks"

	dlxName = "safeexec.dlx"
	dlqName = "execution_tasks.dlq"
)

// declareTopology declares the exchange, the work queue and its dead-letter
// queue. Producer and consumer both call it, so the queue arguments must
// stay identical on both sides.
func declareTopology(ch *amqplib.Channel) error {
	if err := ch.ExchangeDeclare(exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp declare exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(dlxName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqName, "", dlxName, false, nil); err != nil {
		return fmt.Errorf("amqp bind DLQ: %w", err)
	}

	_, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqplib.Table{
			"x-queue-type":           "quorum",
			"x-dead-letter-exchange": dlxName,
		},
	)
	if err != nil {
		return fmt.Errorf("amqp queue declare: %w", err)
	}
	if err := ch.QueueBind(queueName, routingKey, exchangeName, false, nil); err != nil {
		return fmt.Errorf("amqp bind queue: %w", err)
	}
	return nil
}
