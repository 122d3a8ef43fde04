// Package bus provides event bus implementations for Magpie and helpers for
// the loyalty event envelope.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/magpie/internal/domain"
)

var (
	// ErrTenantRequired is returned when a bus call has no tenant.
	ErrTenantRequired = errors.New("tenantID is required")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("bus is closed")
)

// New creates a new event bus based on configuration.
// Community edition gets a ChannelBus, Pro gets a NATSBus.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel", "":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

// PublishEvent encodes a loyalty event and publishes it on its topic.
func PublishEvent(ctx context.Context, b domain.EventBus, event *domain.LoyaltyEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.Topic, err)
	}
	return b.Publish(ctx, event.TenantID, event.Topic, payload)
}

// DecodeEvent decodes the loyalty event carried by a message.
func DecodeEvent(msg *domain.Message) (*domain.LoyaltyEvent, error) {
	var event domain.LoyaltyEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode event %s: %w", msg.ID, err)
	}
	if event.TenantID == "" {
		event.TenantID = msg.TenantID
	}
	if event.Topic == "" {
		event.Topic = msg.Topic
	}
	return &event, nil
}

func newMessage(tenantID, topic string, payload []byte) *domain.Message {
	return &domain.Message{
		ID:        newID(),
		TenantID:  tenantID,
		Topic:     topic,
		Payload:   payload,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UnixNano(),
	}
}
