package kafka

import (
	"testing"

	"pos-system/internal/config"
	"pos-system/internal/logger"
	"pos-system/internal/models"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
)

func TestPublishEvent(t *testing.T) {
	cfg := sarama.NewConfig()
	mp := mocks.NewSyncProducer(t, cfg)
	mp.ExpectSendMessageAndSucceed()

	event := models.Event{ID: uuid.New(), Type: models.EventTypeDiscountApplied}
	p := &Producer{
		producer: mp,
		log:      logger.New(&config.LoggerConfig{Level: "error", Format: "json"}),
		topics:   &config.Topics{Discounts: "discounts"},
	}
	if err := p.publishEvent("discounts", event); err != nil {
		t.Fatalf("expected publish success, got %v", err)
	}

	if err := mp.Close(); err != nil {
		t.Fatalf("failed to close mock producer: %v", err)
	}
}

func TestProducer_WrapperMethods(t *testing.T) {
	cfg := sarama.NewConfig()
	mp := mocks.NewSyncProducer(t, cfg)
	for i := 0; i < 3; i++ {
		mp.ExpectSendMessageAndSucceed()
	}

	p := &Producer{
		producer: mp,
		log:      logger.New(&config.LoggerConfig{Level: "error", Format: "json"}),
		topics:   &config.Topics{Discounts: "discounts", Orders: "orders"},
	}

	orderID := uuid.New()
	orderDiscountID := uuid.New()
	discountID := uuid.New()

	if err := p.PublishDiscountApplied(orderID, orderDiscountID, &discountID, 12.5); err != nil {
		t.Fatalf("PublishDiscountApplied failed: %v", err)
	}
	if err := p.PublishDiscountRemoved(orderID, orderDiscountID, 12.5); err != nil {
		t.Fatalf("PublishDiscountRemoved failed: %v", err)
	}
	if err := p.PublishOrderTotalsUpdated(orderID, models.OrderTotals{Total: 87.5}); err != nil {
		t.Fatalf("PublishOrderTotalsUpdated failed: %v", err)
	}
}

func TestProducer_PublishEvent_Failure(t *testing.T) {
	cfg := sarama.NewConfig()
	mp := mocks.NewSyncProducer(t, cfg)
	mp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := &Producer{
		producer: mp,
		log:      logger.New(&config.LoggerConfig{Level: "error", Format: "json"}),
		topics:   &config.Topics{Discounts: "discounts"},
	}

	ev := models.Event{ID: uuid.New(), Type: models.EventTypeDiscountApplied}
	if err := p.publishEvent("discounts", ev); err == nil {
		t.Fatalf("expected error on send failure")
	}
	_ = p.Close()
}

func TestNewProducer_Error(t *testing.T) {
	log := logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
	cfg := &config.KafkaConfig{Brokers: []string{"localhost:0"}}
	if _, err := NewProducer(cfg, log); err == nil {
		t.Fatalf("expected error creating producer")
	}
}

func TestProducer_CloseNil(t *testing.T) {
	var p *Producer
	if err := p.Close(); err != nil {
		t.Fatalf("expected nil error on nil producer")
	}
	p = &Producer{}
	if err := p.Close(); err != nil {
		t.Fatalf("expected nil error on empty producer, got %v", err)
	}
}
