// Package mq carries the outbound async traffic of the attendance system:
// mail jobs consumed by the in-process mail worker and clock events for
// downstream consumers. The broker is pluggable (RabbitMQ or GCP Pub/Sub).
package mq

import (
	"context"
	"encoding/json"
	"time"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MailJob is a queued email delivery request.
type MailJob struct {
	To       string            `json:"to"`
	Name     string            `json:"name"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data"`
}

// ClockEvent is published after every attendance transition.
type ClockEvent struct {
	ActorType string    `json:"actorType"`
	ActorID   string    `json:"actorId"`
	Action    string    `json:"action"`
	VisitType string    `json:"visitType"`
	At        time.Time `json:"at"`
}

// Bus wraps a backend with typed publish helpers.
type Bus struct {
	backend      Backend
	mailChannel  string
	clockChannel string
}

// NewBus constructs a Bus over the provided backend and channel names.
func NewBus(backend Backend, mailChannel, clockChannel string) *Bus {
	return &Bus{backend: backend, mailChannel: mailChannel, clockChannel: clockChannel}
}

// PublishMailJob enqueues a mail delivery request.
func (b *Bus) PublishMailJob(ctx context.Context, job MailJob) (string, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	return b.backend.Publish(ctx, b.mailChannel, data, map[string]string{"kind": "mail"})
}

// PublishClockEvent emits an attendance transition event.
func (b *Bus) PublishClockEvent(ctx context.Context, event ClockEvent) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return b.backend.Publish(ctx, b.clockChannel, data, map[string]string{"kind": "clock"})
}

// SubscribeMailJobs consumes mail jobs until ctx is cancelled.
func (b *Bus) SubscribeMailJobs(ctx context.Context, handle func(ctx context.Context, job MailJob) error) error {
	return b.backend.Subscribe(ctx, b.mailChannel, func(ctx context.Context, msg Message) error {
		var job MailJob
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			// Malformed payloads are dropped, not retried.
			return nil
		}
		return handle(ctx, job)
	})
}

// Close closes the underlying backend.
func (b *Bus) Close() error {
	return b.backend.Close()
}
