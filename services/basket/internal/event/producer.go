package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/andrewbyteforge/pricecomparison/pkg/kafka"
	"github.com/andrewbyteforge/pricecomparison/services/basket/internal/domain"
)

// Kafka topics for basket domain events.
var (
	TopicItemAdded   = pkgkafka.Topic("basket", "item_added")
	TopicItemRemoved = pkgkafka.Topic("basket", "item_removed")
	TopicEmptied     = pkgkafka.Topic("basket", "emptied")
)

const (
	AggregateTypeBasket = "basket"
	SourceBasketService = "basket-service"
)

// ItemAddedData is the payload for a basket.item_added event.
type ItemAddedData struct {
	UserID string `json:"user_id"`
	ItemID string `json:"item_id"`
	Store  string `json:"store"`
	Name   string `json:"name"`
	Price  string `json:"price"`
}

// ItemRemovedData is the payload for a basket.item_removed event.
type ItemRemovedData struct {
	UserID string `json:"user_id"`
	ItemID string `json:"item_id"`
}

// EmptiedData is the payload for a basket.emptied event.
type EmptiedData struct {
	UserID  string `json:"user_id"`
	Removed int    `json:"removed"`
}

type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes basket domain events to Kafka. A Producer built with a
// nil publisher drops events, which is how the service runs without Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the basket service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	if kafka == nil {
		return &Producer{logger: logger}
	}
	return &Producer{kafka: kafka, logger: logger}
}

// PublishItemAdded publishes a basket.item_added event.
func (p *Producer) PublishItemAdded(ctx context.Context, userID string, item domain.Item) error {
	return p.publish(ctx, TopicItemAdded, userID, ItemAddedData{
		UserID: userID,
		ItemID: item.ID,
		Store:  string(item.Store),
		Name:   item.Name,
		Price:  item.Price.StringFixed(2),
	})
}

// PublishItemRemoved publishes a basket.item_removed event.
func (p *Producer) PublishItemRemoved(ctx context.Context, userID, itemID string) error {
	return p.publish(ctx, TopicItemRemoved, userID, ItemRemovedData{UserID: userID, ItemID: itemID})
}

// PublishEmptied publishes a basket.emptied event.
func (p *Producer) PublishEmptied(ctx context.Context, userID string, removed int) error {
	return p.publish(ctx, TopicEmptied, userID, EmptiedData{UserID: userID, Removed: removed})
}

func (p *Producer) publish(ctx context.Context, topic, userID string, data any) error {
	if p.kafka == nil {
		return nil
	}

	event, err := pkgkafka.NewEvent(topic, userID, AggregateTypeBasket, SourceBasketService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published basket event",
		slog.String("topic", topic),
		slog.String("user_id", userID),
	)
	return nil
}
