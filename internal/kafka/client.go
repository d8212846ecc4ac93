// Package kafka provides a client for Kafka.
package kafka

import (
	kafkaLib "github.com/segmentio/kafka-go"
)

// Topics
const (
	topicAuditEvents   = "authsteps.events.audit"
	topicNotifications = "authsteps.notifications"
)

// Client contains a Kafka writer for every topic we are interested in.
type Client struct {
	EventWriter        *kafkaLib.Writer
	NotificationWriter *kafkaLib.Writer
}

// NewClient returns a new Client.
func NewClient(brokers []string) *Client {
	return &Client{
		EventWriter:        newWriter(brokers, topicAuditEvents),
		NotificationWriter: newWriter(brokers, topicNotifications),
	}
}

func newWriter(brokers []string, topic string) *kafkaLib.Writer {
	return kafkaLib.NewWriter(kafkaLib.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
		// Partition per user so a client's events stay ordered.
		Balancer: &kafkaLib.Hash{},
		// kafka-go defaults the capacity to 100.
		QueueCapacity: 200,
	})
}
