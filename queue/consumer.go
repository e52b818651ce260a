package queue

import amqp "github.com/rabbitmq/amqp091-go"

// Consume reads deliveries from the bound queue.
func (c *Connection) Consume(queueName string, autoAck bool) (<-chan amqp.Delivery, error) {
	return c.Ch.Consume(
		queueName,
		"",
		autoAck,
		false,
		false,
		false,
		nil,
	)
}
