package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/expirians/storefront/internal/domain"
)

// Producer публикует доменные события в Kafka.
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry
}

// NewProducer создаёт sync-producer с идемпотентной записью.
func NewProducer(brokers []string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1 // требование идемпотентного продюсера

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &Producer{
		producer: producer,
		logger:   log.WithField("component", "kafka-producer"),
	}, nil
}

// PublishEvent сериализует событие в JSON и отправляет в топик.
func (p *Producer) PublishEvent(topic, key string, event any) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.publish(topic, key, eventData)
}

func (p *Producer) publish(topic, key string, value []byte) error {
	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"topic": topic,
			"key":   key,
		}).Error("failed to send message to kafka")
		return fmt.Errorf("send message: %w", err)
	}

	p.logger.WithFields(log.Fields{
		"topic":     topic,
		"key":       key,
		"partition": partition,
		"offset":    offset,
	}).Debug("message sent to kafka")

	return nil
}

// Close закрывает producer.
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}

// OutboxPublisher адаптирует Producer под domain.OutboxPublisher:
// топик выбирается по типу агрегата, ключ — идентификатор агрегата,
// payload публикуется как есть.
type OutboxPublisher struct {
	producer *Producer
}

// NewOutboxPublisher создаёт адаптер поверх producer.
func NewOutboxPublisher(producer *Producer) *OutboxPublisher {
	return &OutboxPublisher{producer: producer}
}

// Publish отправляет outbox-сообщение в соответствующий топик.
func (p *OutboxPublisher) Publish(event domain.OutboxMessage) error {
	topic := TopicOrderEvents
	if event.AggregateType == AggregateReview {
		topic = TopicReviewEvents
	}
	return p.producer.publish(topic, event.AggregateID, event.Payload)
}

var _ domain.OutboxPublisher = (*OutboxPublisher)(nil)

// DLQPublisher направляет сообщения, исчерпавшие попытки публикации,
// в dead-letter топик.
type DLQPublisher struct {
	producer *Producer
}

// NewDLQPublisher создаёт адаптер dead-letter очереди поверх producer.
func NewDLQPublisher(producer *Producer) *DLQPublisher {
	return &DLQPublisher{producer: producer}
}

// Publish отправляет сообщение в dead-letter топик.
func (p *DLQPublisher) Publish(event domain.OutboxMessage) error {
	return p.producer.publish(TopicDeadLetterQueue, event.AggregateID, event.Payload)
}

var _ domain.OutboxPublisher = (*DLQPublisher)(nil)
