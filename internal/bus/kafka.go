package bus

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/ricesearch/qac-eval/internal/pkg/errors"
	"github.com/ricesearch/qac-eval/internal/pkg/logger"
)

// KafkaBus is a Kafka-based event bus implementation. The consumer group
// is joined on the first Subscribe, so publish-only callers never join it.
type KafkaBus struct {
	config   KafkaConfig
	client   sarama.Client
	producer sarama.SyncProducer
	group    sarama.ConsumerGroup
	log      *logger.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler
	closed   bool

	// consumeCtx is cancelled by Close to stop every consumer loop.
	consumeCtx context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	Brokers       []string // Kafka broker addresses
	ConsumerGroup string   // Consumer group ID
	ClientID      string   // Client identifier
	Version       string   // Kafka version (e.g., "2.8.0")
	Logger        *logger.Logger
}

// newSaramaConfig validates cfg, fills defaults and builds the client config.
func newSaramaConfig(cfg *KafkaConfig) (*sarama.Config, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.CodeValidation, "kafka brokers cannot be empty")
	}
	if cfg.ConsumerGroup == "" {
		return nil, errors.New(errors.CodeValidation, "kafka consumer group cannot be empty")
	}

	if cfg.ClientID == "" {
		cfg.ClientID = "qac-eval"
	}
	if cfg.Version == "" {
		cfg.Version = "2.8.0"
	}

	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "invalid kafka version", err)
	}

	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Version = version
	kafkaConfig.ClientID = cfg.ClientID
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Return.Errors = true
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	kafkaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	kafkaConfig.Consumer.Return.Errors = true
	kafkaConfig.Net.DialTimeout = 10 * time.Second
	kafkaConfig.Net.ReadTimeout = 10 * time.Second
	kafkaConfig.Net.WriteTimeout = 10 * time.Second

	return kafkaConfig, nil
}

// NewKafkaBus creates a new Kafka-based event bus.
func NewKafkaBus(cfg KafkaConfig) (*KafkaBus, error) {
	kafkaConfig, err := newSaramaConfig(&cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	client, err := sarama.NewClient(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "failed to create kafka client", err)
	}

	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(errors.CodeUnavailable, "failed to create kafka producer", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &KafkaBus{
		config:     cfg,
		client:     client,
		producer:   producer,
		log:        cfg.Logger,
		handlers:   make(map[string][]Handler),
		consumeCtx: ctx,
		cancel:     cancel,
	}, nil
}

// Publish publishes an event to a Kafka topic.
func (b *KafkaBus) Publish(ctx context.Context, topic string, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	msg, err := newProducerMessage(topic, event)
	if err != nil {
		return err
	}

	if _, _, err := b.producer.SendMessage(msg); err != nil {
		return errors.Wrap(errors.CodeUnavailable, "failed to publish to kafka", err)
	}

	return nil
}

// newProducerMessage serializes event as JSON keyed by its ID.
func newProducerMessage(topic string, event Event) (*sarama.ProducerMessage, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, "failed to marshal event", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(data),
		Key:   sarama.StringEncoder(event.ID),
	}

	if event.CorrelationID != "" {
		msg.Headers = []sarama.RecordHeader{
			{
				Key:   []byte("correlation_id"),
				Value: []byte(event.CorrelationID),
			},
		}
	}

	return msg, nil
}

// Subscribe registers a handler for events on a Kafka topic. The first
// handler for a topic starts a consumer loop that runs until Close.
func (b *KafkaBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	if b.group == nil {
		group, err := sarama.NewConsumerGroupFromClient(b.config.ConsumerGroup, b.client)
		if err != nil {
			return errors.Wrap(errors.CodeUnavailable, "failed to join kafka consumer group", err)
		}
		b.group = group

		b.wg.Add(1)
		go b.logGroupErrors(group)
	}

	first := len(b.handlers[topic]) == 0
	b.handlers[topic] = append(b.handlers[topic], handler)
	if first {
		b.wg.Add(1)
		go b.consume(topic)
	}

	return nil
}

// consume joins consumer group sessions for topic until the bus closes.
// Consume returns at every rebalance, so it is called in a loop.
func (b *KafkaBus) consume(topic string) {
	defer b.wg.Done()

	claims := &topicClaims{bus: b, topic: topic}
	for b.consumeCtx.Err() == nil {
		err := b.group.Consume(b.consumeCtx, []string{topic}, claims)
		if stderrors.Is(err, sarama.ErrClosedConsumerGroup) {
			return
		}
		if err != nil {
			b.log.Warn("Kafka consume failed", "topic", topic, "error", err.Error())
			select {
			case <-b.consumeCtx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

// logGroupErrors drains the group's error channel, which blocks the
// consumer when Consumer.Return.Errors is set and nobody reads it.
func (b *KafkaBus) logGroupErrors(group sarama.ConsumerGroup) {
	defer b.wg.Done()
	for err := range group.Errors() {
		b.log.Warn("Kafka consumer group error", "error", err.Error())
	}
}

// dispatch hands event to every handler registered for topic.
func (b *KafkaBus) dispatch(ctx context.Context, topic string, event Event) {
	b.mu.RLock()
	handlers := b.handlers[topic]
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			b.log.Warn("Bus handler failed", "topic", topic, "event_id", event.ID, "error", err.Error())
		}
	}
}

// Close stops consumers, then closes the producer and client.
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	group := b.group
	b.mu.Unlock()

	b.cancel()

	var errs []error
	if group != nil {
		// Closing the group ends Consume and the Errors channel.
		if err := group.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close consumer group: %w", err))
		}
	}
	b.wg.Wait()

	if err := b.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close producer: %w", err))
	}
	if err := b.client.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close client: %w", err))
	}

	if len(errs) > 0 {
		return errors.New(errors.CodeInternal, fmt.Sprintf("errors during close: %v", errs))
	}
	return nil
}

// topicClaims implements sarama.ConsumerGroupHandler for a single topic.
type topicClaims struct {
	bus   *KafkaBus
	topic string
}

func (c *topicClaims) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *topicClaims) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim decodes each message and dispatches it. Undecodable messages
// are logged and committed so they are not redelivered.
func (c *topicClaims) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			event, err := decodeMessage(msg)
			if err != nil {
				c.bus.log.Warn("Dropping undecodable kafka message",
					"topic", c.topic,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err.Error(),
				)
			} else {
				c.bus.dispatch(ctx, c.topic, event)
			}
			session.MarkMessage(msg, "")
		}
	}
}

// decodeMessage is the inverse of newProducerMessage. The correlation_id
// header fills CorrelationID when the body lacks it.
func decodeMessage(msg *sarama.ConsumerMessage) (Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return Event{}, err
	}
	if event.CorrelationID == "" {
		for _, h := range msg.Headers {
			if h != nil && string(h.Key) == "correlation_id" {
				event.CorrelationID = string(h.Value)
			}
		}
	}
	return event, nil
}

// ParseKafkaBrokers parses a comma-separated string of Kafka brokers.
func ParseKafkaBrokers(brokersStr string) []string {
	if strings.TrimSpace(brokersStr) == "" {
		return nil
	}
	var brokers []string
	for _, b := range strings.Split(brokersStr, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
