package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/example/localdelivery/pkg/config"
	"github.com/example/localdelivery/pkg/models"
	"github.com/example/localdelivery/pkg/repository"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

const auditService = "orders"

type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *repository.AuditLog) error
}

// AuditSink records each event in the Mongo audit log.
type AuditSink struct {
	writer AuditWriter
}

func NewAuditSink(writer AuditWriter) *AuditSink {
	return &AuditSink{writer: writer}
}

func (s *AuditSink) Name() string { return "audit" }

func (s *AuditSink) Deliver(ctx context.Context, event models.OrderEvent) error {
	return s.writer.CreateAuditLog(ctx, &repository.AuditLog{
		ID:       uuid.NewString(),
		Service:  auditService,
		Action:   string(event.Type),
		EntityID: event.OrderID,
		Data: bson.M{
			"user_id":        event.UserID,
			"status":         string(event.Status),
			"payment_status": string(event.PaymentStatus),
			"total_amount":   event.TotalAmount,
		},
		CreatedAt: event.OccurredAt,
	})
}

// KafkaSink publishes each event as JSON keyed by order id, so all events
// of one order land on the same partition.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaSink(cfg *config.KafkaConfig) (*KafkaSink, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return NewKafkaSinkWithProducer(producer, cfg.Topic), nil
}

func NewKafkaSinkWithProducer(producer sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Deliver(_ context.Context, event models.OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", event.Type, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(event.OrderID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", event.Type, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
