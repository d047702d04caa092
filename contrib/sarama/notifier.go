// Package sarama publishes profiler reports to kafka.
package sarama

import (
	"context"

	"github.com/Shopify/sarama"
	"github.com/volcengine/apminsight-tick-profiler-go/profiler"
)

// Notifier sends each report as one message: key is the subject, value the report body.
type Notifier struct {
	producer sarama.SyncProducer
	topic    string
}

var _ profiler.Notifier = (*Notifier)(nil)

func NewNotifier(producer sarama.SyncProducer, topic string) *Notifier {
	if producer == nil {
		panic("sarama producer is nil")
	}
	return &Notifier{producer: producer, topic: topic}
}

// NewSyncNotifier dials brokers with a config suitable for SyncProducer.
func NewSyncNotifier(brokers []string, topic string) (*Notifier, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return NewNotifier(producer, topic), nil
}

func (n *Notifier) Notify(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := n.producer.SendMessage(&sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(subject),
		Value: sarama.StringEncoder(body),
	})
	return err
}

func (n *Notifier) Close() error {
	return n.producer.Close()
}
