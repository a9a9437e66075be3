// Package notify publishes terminal job events to a message broker.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuongbtq/quantum-imaging/internal/domain"
)

const contentType = "application/json"

// Broker is satisfied by *rabbitmq.Client.
type Broker interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Publisher is a worker sink that sends one JSON message per finished job.
type Publisher struct {
	broker Broker
}

func NewPublisher(broker Broker) *Publisher {
	return &Publisher{broker: broker}
}

func (p *Publisher) Name() string { return "events" }

func (p *Publisher) Send(ctx context.Context, ev domain.JobEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal job event: %w", err)
	}

	if err := p.broker.PublishWithRetry(ctx, body, contentType); err != nil {
		return fmt.Errorf("failed to publish event for job %s: %w", ev.JobID, err)
	}
	return nil
}
