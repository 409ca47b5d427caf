package pubsub

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"

	"ticketledger/pkg"
	"ticketledger/pubsub/command"
	"ticketledger/pubsub/event"
)

type RouterConfig struct {
	// OutboxSubscriber reads the Postgres outbox. Nil disables forwarding.
	OutboxSubscriber message.Subscriber
	Publisher        message.Publisher
	NewSubscriber    pkg.SubscriberConstructor
}

func NewWatermillRouter(
	config RouterConfig,
	eventHandler event.Handler,
	commandHandler command.Handler,
	watermillLogger watermill.LoggerAdapter,
) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{}, watermillLogger)
	if err != nil {
		return nil, fmt.Errorf("could not create router: %w", err)
	}

	useMiddlewares(router, watermillLogger)

	if config.OutboxSubscriber != nil {
		_, err = forwarder.NewForwarder(
			config.OutboxSubscriber,
			config.Publisher,
			watermillLogger,
			forwarder.Config{
				ForwarderTopic: pkg.OutboxTopic,
				Router:         router,
			},
		)
		if err != nil {
			return nil, fmt.Errorf("could not create forwarder: %w", err)
		}
	}

	err = pkg.RegisterEventHandlers(
		config.NewSubscriber,
		router,
		eventHandler.Handlers(),
		watermillLogger,
	)
	if err != nil {
		return nil, err
	}

	err = pkg.RegisterCommandHandlers(
		config.NewSubscriber,
		router,
		commandHandler.Handlers(),
		watermillLogger,
	)
	if err != nil {
		return nil, err
	}

	return router, nil
}
