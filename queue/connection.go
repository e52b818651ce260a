package queue

import (
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/octabyte/bm-session/utils/logger"
)

type Connection struct {
	Conn   *amqp.Connection
	Ch     *amqp.Channel
	config Config
}

// NewConnection dials the broker, opens a channel and declares the event
// exchange (and the optional bound queue).
func NewConnection(config Config) (*Connection, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.withDefaults()

	// Establish a connection to the AMQP server
	conn, err := amqp.Dial(config.URI)
	if err != nil {
		return nil, err
	}

	// Open a new channel over the connection
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(
		config.Exchange,
		config.ExchangeKind,
		config.Durable,
		false,
		false,
		false,
		nil,
	); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if config.Queue != nil {
		if _, err := declareQueue(ch, config, *config.Queue); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	logger.LogInfof("connected to rabbitmq exchange %s", config.Exchange)
	return &Connection{Conn: conn, Ch: ch, config: config}, nil
}

func (c *Connection) Config() Config {
	return c.config
}

func (c *Connection) Close() error {
	return c.Conn.Close()
}
