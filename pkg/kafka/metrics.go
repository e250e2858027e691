package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var publishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "kafka_producer_messages_total",
		Help: "Kafka messages the producer attempted to publish, by outcome",
	},
	[]string{"topic", "result"},
)
