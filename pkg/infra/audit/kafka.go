package audit

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/cyberguard/guardian/pkg/config"
	"github.com/cyberguard/guardian/pkg/domain/moderation"
)

// Exporter streams every moderation event to a kafka topic for offline
// audit. The pipeline itself keeps no history, so this is the only durable
// trace of decisions when enabled.
type Exporter interface {
	Export(event moderation.ModerationEvent) error
	Close()
}

type kafkaExporter struct {
	topic    string
	producer *kafka.Producer
}

func NewKafkaExporter(cfg config.AuditConfig) (Exporter, error) {
	if cfg.Host == "" || cfg.Port == "" {
		return nil, errors.New("kafka host and port are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &kafkaExporter{topic: cfg.Topic, producer: producer}, nil
}

func (e *kafkaExporter) Export(event moderation.ModerationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	deliveryChan := make(chan kafka.Event)
	err = e.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &e.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.Platform),
		Value:          data,
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	evt := <-deliveryChan
	close(deliveryChan)

	m, ok := evt.(*kafka.Message)
	if !ok {
		return fmt.Errorf("unexpected delivery event type %T", evt)
	}
	if m.TopicPartition.Error != nil {
		return fmt.Errorf("delivery failed: %w", m.TopicPartition.Error)
	}
	return nil
}

func (e *kafkaExporter) Close() {
	e.producer.Flush(5000)
	e.producer.Close()
}
