package events

import (
	"fmt"

	"tourbook/pkg/config"
	"tourbook/pkg/kafka"
	kafka_config "tourbook/pkg/kafka/config"
	kafka_middleware "tourbook/pkg/kafka/middleware"
)

// DLQTopic is the dead letter topic used when KAFKA_DLQ_TOPIC is unset.
func DLQTopic(cfg *config.Config) string {
	return cfg.KafkaTopic + ".dlq"
}

// NewPublisherFromConfig returns a Kafka publisher when events are enabled
// and a log-only publisher otherwise. The returned func releases the
// producer.
func NewPublisherFromConfig(cfg *config.Config) (Publisher, func(), error) {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka events disabled, events are only logged")
		return NewLogPublisher(cfg.Log), func() {}, nil
	}

	kcfg, err := kafka_config.Load(cfg.KafkaBrokers, DLQTopic(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid kafka configuration: %w", err)
	}
	producer, err := kafka.NewProducer(kcfg, cfg.KafkaTopic, cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	metrics := &kafka_middleware.Metrics{}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(metrics.ProducerMiddleware())

	cfg.Log.Info("Kafka event publisher ready",
		"topic", cfg.KafkaTopic,
		"brokers", cfg.KafkaBrokers,
	)
	closer := func() {
		cfg.Log.Info("Kafka producer metrics", metrics.Snapshot().LogAttrs()...)
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close kafka producer", "error", err)
		}
	}
	return NewKafkaPublisher(producer, cfg.ServiceName), closer, nil
}

// NewReconcilerWorker subscribes r to the events topic. Messages that keep
// failing are moved to the dead letter topic.
func NewReconcilerWorker(cfg *config.Config, r *Reconciler) (*ConsumerWorker, error) {
	kcfg, err := kafka_config.Load(cfg.KafkaBrokers, DLQTopic(cfg))
	if err != nil {
		return nil, fmt.Errorf("invalid kafka configuration: %w", err)
	}
	consumer, err := kafka.NewConsumer(kcfg, cfg.KafkaTopic, cfg.KafkaGroupID, r.Handle, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	metrics := &kafka_middleware.Metrics{}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(metrics.ConsumerMiddleware())
	return NewConsumerWorker(consumer), nil
}
