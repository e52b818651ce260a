package queue

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange         = "bm.session.events"
	DefaultExchangeKind     = amqp.ExchangeTopic
	DefaultRoutingKeyPrefix = "bm"
)

type Config struct {
	// URI: The RabbitMQ connection URI, including credentials and vhost.
	URI string `mapstructure:"uri" validate:"required,uri"`
	// Exchange: The exchange session events are published to. It is declared
	// on connect.
	Exchange string `mapstructure:"exchange"`
	// ExchangeKind: direct, fanout, topic or headers. Defaults to topic.
	ExchangeKind string `mapstructure:"exchange_kind" validate:"omitempty,oneof=direct fanout topic headers"`
	// RoutingKeyPrefix is joined with the event type, e.g. bm.session.login.
	RoutingKeyPrefix string `mapstructure:"routing_key_prefix"`
	// Durable: Whether the exchange (and queue) survive a broker restart.
	Durable bool `mapstructure:"durable"`
	// Queue: Optional queue declared and bound to the exchange, for consumers
	// such as an audit log.
	Queue *QueueConfig `mapstructure:"queue"`
}

type QueueConfig struct {
	// Name: The name of the queue to be declared and bound.
	Name string `mapstructure:"name" validate:"required"`
	// Type: The queue type, see QueueType.
	Type QueueType `mapstructure:"type" validate:"omitempty,oneof=classic quorum stream"`
	// BindingKey: The binding pattern; defaults to every event under the prefix.
	BindingKey string `mapstructure:"binding_key"`
	// AutoDelete: Whether the queue is deleted once the last consumer leaves.
	AutoDelete bool `mapstructure:"auto_delete"`
	// Args: Additional arguments for the declaration, e.g. x-message-ttl.
	Args map[string]interface{} `mapstructure:"args"`
}

func (c Config) withDefaults() Config {
	if c.Exchange == "" {
		c.Exchange = DefaultExchange
	}
	if c.ExchangeKind == "" {
		c.ExchangeKind = DefaultExchangeKind
	}
	if c.RoutingKeyPrefix == "" {
		c.RoutingKeyPrefix = DefaultRoutingKeyPrefix
	}
	if c.Queue != nil && c.Queue.BindingKey == "" {
		q := *c.Queue
		q.BindingKey = c.RoutingKeyPrefix + ".#"
		c.Queue = &q
	}
	return c
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid queue config: %w", err)
	}
	return nil
}

// See https://www.rabbitmq.com/tutorials/amqp-concepts-tutorial.html
