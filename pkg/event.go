package pkg

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"
)

const consumerGroupPrefix = "svc-ticketledger."

var marshaler = cqrs.JSONMarshaler{
	GenerateName: cqrs.StructName,
}

func NewEventBus(pub message.Publisher) (*cqrs.EventBus, error) {
	return cqrs.NewEventBusWithConfig(pub, cqrs.EventBusConfig{
		GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
			return "events." + params.EventName, nil
		},
		Marshaler: marshaler,
	})
}

func NewCommandBus(pub message.Publisher) (*cqrs.CommandBus, error) {
	return cqrs.NewCommandBusWithConfig(pub, cqrs.CommandBusConfig{
		GeneratePublishTopic: func(params cqrs.CommandBusGeneratePublishTopicParams) (string, error) {
			return "commands." + params.CommandName, nil
		},
		Marshaler: marshaler,
	})
}

// SubscriberConstructor builds one subscriber per handler, so each handler
// gets its own consumer group.
type SubscriberConstructor func(handlerName string) (message.Subscriber, error)

func RedisSubscriberConstructor(rdb *redis.Client, logger watermill.LoggerAdapter) SubscriberConstructor {
	return func(handlerName string) (message.Subscriber, error) {
		return redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        rdb,
			ConsumerGroup: consumerGroupPrefix + handlerName,
		}, logger)
	}
}

func RegisterEventHandlers(
	newSubscriber SubscriberConstructor,
	router *message.Router,
	handlers []cqrs.EventHandler,
	logger watermill.LoggerAdapter,
) error {
	ep, err := cqrs.NewEventProcessorWithConfig(
		router,
		cqrs.EventProcessorConfig{
			SubscriberConstructor: func(params cqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
				return newSubscriber(params.HandlerName)
			},
			GenerateSubscribeTopic: func(params cqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
				return "events." + params.EventName, nil
			},
			Marshaler: marshaler,
			Logger:    logger,
		})
	if err != nil {
		return fmt.Errorf("could not create event processor: %w", err)
	}

	err = ep.AddHandlers(handlers...)
	if err != nil {
		return fmt.Errorf("could not add handlers to event processor: %w", err)
	}
	return nil
}

func RegisterCommandHandlers(
	newSubscriber SubscriberConstructor,
	router *message.Router,
	handlers []cqrs.CommandHandler,
	logger watermill.LoggerAdapter,
) error {
	cp, err := cqrs.NewCommandProcessorWithConfig(
		router,
		cqrs.CommandProcessorConfig{
			SubscriberConstructor: func(params cqrs.CommandProcessorSubscriberConstructorParams) (message.Subscriber, error) {
				return newSubscriber(params.HandlerName)
			},
			GenerateSubscribeTopic: func(params cqrs.CommandProcessorGenerateSubscribeTopicParams) (string, error) {
				return "commands." + params.CommandName, nil
			},
			Marshaler: marshaler,
			Logger:    logger,
		},
	)
	if err != nil {
		return fmt.Errorf("could not create command processor: %w", err)
	}

	err = cp.AddHandlers(handlers...)
	if err != nil {
		return fmt.Errorf("could not add handlers to command processor: %w", err)
	}
	return nil
}
