package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"pos-system/internal/config"
	"pos-system/internal/logger"
	"pos-system/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Producer publishes domain events to Kafka.
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topics   *config.Topics
}

// NewProducer creates a synchronous Kafka producer.
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.Info("Successfully connected to Kafka")

	return &Producer{
		producer: producer,
		log:      log,
		topics:   &cfg.Topics,
	}, nil
}

// Close shuts down the producer.
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// PublishDiscountApplied publishes a discount.applied event.
func (p *Producer) PublishDiscountApplied(orderID, orderDiscountID uuid.UUID, discountID *uuid.UUID, amount float64) error {
	data := map[string]interface{}{
		"order_id":          orderID.String(),
		"order_discount_id": orderDiscountID.String(),
		"amount":            amount,
	}
	if discountID != nil {
		data["discount_id"] = discountID.String()
	}
	return p.publishEvent(p.topics.Discounts, models.Event{
		ID:        uuid.New(),
		Type:      models.EventTypeDiscountApplied,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// PublishDiscountRemoved publishes a discount.removed event.
func (p *Producer) PublishDiscountRemoved(orderID, orderDiscountID uuid.UUID, amount float64) error {
	return p.publishEvent(p.topics.Discounts, models.Event{
		ID:        uuid.New(),
		Type:      models.EventTypeDiscountRemoved,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"order_id":          orderID.String(),
			"order_discount_id": orderDiscountID.String(),
			"amount":            amount,
		},
	})
}

// PublishOrderTotalsUpdated publishes the recomputed totals after an apply/remove.
func (p *Producer) PublishOrderTotalsUpdated(orderID uuid.UUID, totals models.OrderTotals) error {
	return p.publishEvent(p.topics.Orders, models.Event{
		ID:        uuid.New(),
		Type:      models.EventTypeOrderTotalsUpdated,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"order_id":          orderID.String(),
			"discount_amount":   totals.DiscountAmount,
			"tax_amount":        totals.TaxAmount,
			"total":             totals.Total,
			"remaining_balance": totals.RemainingBalance,
		},
	})
}

// publishEvent serializes the event and sends it to the topic, keyed by event id.
func (p *Producer) publishEvent(topic string, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.ID.String()),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message to topic %s: %w", topic, err)
	}

	p.log.WithFields(map[string]interface{}{
		"topic":     topic,
		"partition": partition,
		"offset":    offset,
		"type":      event.Type,
	}).Debug("Event published")

	return nil
}
