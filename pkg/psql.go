package pkg

import (
	sql2 "database/sql"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-sql/v2/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
)

// OutboxTopic is the Postgres topic the forwarder drains into Redis.
const OutboxTopic = "events_to_forward"

func NewPsqlSubscriber(db *sql2.DB, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return sql.NewSubscriber(db, sql.SubscriberConfig{
		SchemaAdapter:    sql.DefaultPostgreSQLSchema{},
		OffsetsAdapter:   sql.DefaultPostgreSQLOffsetsAdapter{},
		InitializeSchema: true,
	}, logger)
}

// NewPsqlPublisher publishes inside tx, so the messages are committed or
// rolled back together with the rest of the transaction.
func NewPsqlPublisher(
	tx *sql2.Tx,
	logger watermill.LoggerAdapter,
) (message.Publisher, error) {
	var publisher message.Publisher
	sqlPublisher, err := sql.NewPublisher(
		tx,
		sql.PublisherConfig{
			SchemaAdapter: sql.DefaultPostgreSQLSchema{},
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	publisher = forwarder.NewPublisher(sqlPublisher, forwarder.PublisherConfig{
		ForwarderTopic: OutboxTopic,
	})

	return publisher, nil
}

// InitializeOutbox creates the outbox tables, so publishing works before the
// forwarder has subscribed for the first time.
func InitializeOutbox(db *sql2.DB, logger watermill.LoggerAdapter) error {
	sub, err := NewPsqlSubscriber(db, logger)
	if err != nil {
		return err
	}
	defer sub.Close()

	return sub.(message.SubscribeInitializer).SubscribeInitialize(OutboxTopic)
}
