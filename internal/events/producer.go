// Package events публикует доменные события заказов в Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/mmeshcher/delivery-settlement/internal/model"
)

// DefaultTopic - топик доменных событий заказов.
const DefaultTopic = "settlement.events"

// Producer отправляет события через асинхронный продюсер sarama.
// Ключом сообщения служит идентификатор заказа, поэтому события одного заказа попадают в одну партицию.
type Producer struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *zap.Logger
	done     chan struct{}
}

// NewConfig возвращает настройки продюсера.
func NewConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 500 * time.Millisecond
	config.Producer.Retry.Max = 5
	config.Producer.Partitioner = sarama.NewHashPartitioner
	return config
}

// NewProducer подключается к брокерам и создаёт продюсер.
func NewProducer(brokers []string, topic string, logger *zap.Logger) (*Producer, error) {
	producer, err := sarama.NewAsyncProducer(brokers, NewConfig())
	if err != nil {
		return nil, fmt.Errorf("start kafka producer: %w", err)
	}
	return NewProducerFrom(producer, topic, logger), nil
}

// NewProducerFrom оборачивает готовый продюсер.
func NewProducerFrom(producer sarama.AsyncProducer, topic string, logger *zap.Logger) *Producer {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Producer{
		producer: producer,
		topic:    topic,
		logger:   logger,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(p.done)
		for err := range producer.Errors() {
			p.logger.Error("failed to send kafka message", zap.String("topic", err.Msg.Topic), zap.Error(err.Err))
		}
	}()

	return p
}

// Publish ставит событие в очередь отправки.
func (p *Producer) Publish(ctx context.Context, e model.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.OrderID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("type"), Value: []byte(e.Type)},
		},
	}

	select {
	case p.producer.Input() <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close дожидается отправки очереди и закрывает продюсер.
func (p *Producer) Close() error {
	p.producer.AsyncClose()
	<-p.done
	return nil
}
