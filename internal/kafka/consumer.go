package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"pos-system/internal/config"
	"pos-system/internal/logger"
	"pos-system/internal/models"

	"github.com/IBM/sarama"
)

// EventHandler processes one consumed domain event.
type EventHandler func(ctx context.Context, event *models.Event) error

// Consumer reads domain events from Kafka and dispatches them to registered handlers.
type Consumer struct {
	group    sarama.ConsumerGroup
	topics   []string
	log      *logger.Logger
	handlers map[models.EventType]EventHandler
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewConsumer creates a consumer group subscribed to the configured topics.
func NewConsumer(cfg *config.KafkaConfig, log *logger.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		group:    group,
		topics:   []string{cfg.Topics.Discounts, cfg.Topics.Orders},
		log:      log,
		handlers: make(map[models.EventType]EventHandler),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// RegisterHandler registers a handler for an event type. Must be called before Start.
func (c *Consumer) RegisterHandler(eventType models.EventType, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = handler
}

// HandlerCount returns the number of registered handlers.
func (c *Consumer) HandlerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handlers)
}

// Start begins consuming in a background goroutine.
func (c *Consumer) Start() error {
	if c.group == nil {
		return fmt.Errorf("consumer group is not initialized")
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.group.Consume(c.ctx, c.topics, c); err != nil {
				c.log.WithError(err).Error("Kafka consume error")
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()

	c.log.WithField("topics", c.topics).Info("Kafka consumer started")
	return nil
}

// Stop cancels consumption and closes the group.
func (c *Consumer) Stop() error {
	if c == nil {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if c.group != nil {
		return c.group.Close()
	}
	return nil
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim implements sarama.ConsumerGroupHandler.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.processMessage(msg); err != nil {
				c.log.WithError(err).WithField("topic", msg.Topic).Error("Failed to process message")
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// processMessage decodes the event and dispatches it to the registered handler.
// Events without a handler are skipped.
func (c *Consumer) processMessage(msg *sarama.ConsumerMessage) error {
	var event models.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	c.mu.RLock()
	handler, ok := c.handlers[event.Type]
	c.mu.RUnlock()

	if !ok {
		c.log.WithFields(map[string]interface{}{
			"type":  event.Type,
			"topic": msg.Topic,
		}).Debug("No handler registered for event")
		return nil
	}

	if err := handler(c.ctx, &event); err != nil {
		return fmt.Errorf("handler for %s failed: %w", event.Type, err)
	}

	return nil
}
