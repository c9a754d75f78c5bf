// Package events publishes task lifecycle transitions to Kafka for
// downstream audit. Publishing is fire-and-forget from the orchestrator's
// point of view; a nil Producer disables it.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
)

type Producer interface {
	PublishTransition(ctx context.Context, event *TransitionEvent) error
	Close() error
}

// TransitionEvent records one orchestrator state change for a task.
type TransitionEvent struct {
	TaskID     string    `json:"task_id"`
	OwnerID    string    `json:"owner_id"`
	FromState  string    `json:"from_state"`
	ToState    string    `json:"to_state"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type producer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewProducer(brokers []string, topic string) (Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return &producer{producer: p, topic: topic}, nil
}

func (p *producer) PublishTransition(ctx context.Context, event *TransitionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.TaskID),
		Value: sarama.ByteEncoder(data),
	}

	_, _, err = p.producer.SendMessage(msg)
	return err
}

func (p *producer) Close() error {
	return p.producer.Close()
}
