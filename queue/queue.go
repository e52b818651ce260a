package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

func declareQueue(ch *amqp.Channel, config Config, queueConfig QueueConfig) (amqp.Queue, error) {
	args := amqp.Table{}
	for k, v := range queueConfig.Args {
		args[k] = v
	}
	if queueConfig.Type != "" {
		args["x-queue-type"] = string(queueConfig.Type)
	}

	durable := config.Durable || queueConfig.Type == QueueTypeQuorum || queueConfig.Type == QueueTypeStream
	q, err := ch.QueueDeclare(
		queueConfig.Name,
		durable,
		queueConfig.AutoDelete,
		false,
		false,
		args,
	)
	if err != nil {
		return amqp.Queue{}, err
	}

	if err := ch.QueueBind(q.Name, queueConfig.BindingKey, config.Exchange, false, nil); err != nil {
		return amqp.Queue{}, err
	}
	return q, nil
}
