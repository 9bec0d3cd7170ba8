package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	consumerMessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_consumer_messages_received_total",
		Help: "Messages fetched from the broker",
	}, []string{"topic", "consumer_group"})

	consumerMessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_consumer_messages_processed_total",
		Help: "Messages handled successfully",
	}, []string{"topic", "consumer_group"})

	consumerMessagesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_consumer_messages_failed_total",
		Help: "Messages that exhausted handler retries",
	}, []string{"topic", "consumer_group"})

	consumerMessagesDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_consumer_messages_duplicate_total",
		Help: "Messages skipped by the idempotency guard",
	}, []string{"event_type"})

	consumerDLQPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_consumer_dlq_published_total",
		Help: "Messages copied to a dead-letter topic",
	}, []string{"topic", "consumer_group"})

	consumerProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kafka_consumer_processing_duration_seconds",
		Help:    "Handler time per message including retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic", "consumer_group"})

	producerMessagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_producer_messages_published_total",
		Help: "Messages published",
	}, []string{"topic"})

	producerPublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_producer_publish_errors_total",
		Help: "Publish failures",
	}, []string{"topic"})

	producerPublishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kafka_producer_publish_duration_seconds",
		Help:    "Publish latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
)
