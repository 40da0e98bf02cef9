package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/amitcrm/campaign-pipeline/internal/entity"
	"github.com/amitcrm/campaign-pipeline/pkg/kafka/producer"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type Topics struct {
	Dispatch string
	Delivery string
	Status   string
}

// EventProducer publishes campaign pipeline messages over one long-lived
// writer shared for the whole process lifetime.
type EventProducer struct {
	*producer.Producer
	topics Topics
}

func NewEventProducer(producer *producer.Producer, topics Topics) *EventProducer {
	return &EventProducer{
		producer,
		topics,
	}
}

func (ep *EventProducer) PublishDispatch(ctx context.Context, msg entity.DispatchMessage) error {
	err := ep.publish(ctx, ep.topics.Dispatch, msg.CampaignID, msg)
	if err != nil {
		return fmt.Errorf("EventProducer - PublishDispatch: %w", err)
	}

	return nil
}

func (ep *EventProducer) PublishDeliveryBatch(ctx context.Context, batch entity.DeliveryBatch) error {
	err := ep.publish(ctx, ep.topics.Delivery, batch.CampaignID, batch)
	if err != nil {
		return fmt.Errorf("EventProducer - PublishDeliveryBatch: %w", err)
	}

	return nil
}

func (ep *EventProducer) PublishStatus(ctx context.Context, snapshot entity.StatusSnapshot) error {
	err := ep.publish(ctx, ep.topics.Status, snapshot.CampaignID, snapshot)
	if err != nil {
		return fmt.Errorf("EventProducer - PublishStatus: %w", err)
	}

	return nil
}

func (ep *EventProducer) publish(ctx context.Context, topic string, key uuid.UUID, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key.String()),
		Value: value,
	}

	err = ep.Writer.WriteMessages(ctx, msg)
	if err != nil {
		return fmt.Errorf("ep.Writer.WriteMessages: %w", err)
	}

	return nil
}

func (ep *EventProducer) Close() error {
	err := ep.Producer.Close()
	if err != nil {
		return fmt.Errorf("EventProducer - Close: %w", err)
	}

	return nil
}
