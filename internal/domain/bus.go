package domain

import (
	"context"
	"time"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (Community) or NATS (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community)
	ChannelBufferSize int

	// NATS settings (Pro)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Loyalty event topics.
const (
	TopicPointsEarned     = "magpie.points.earned"
	TopicRewardRedeemed   = "magpie.reward.redeemed"
	TopicCheckInCompleted = "magpie.checkin.completed"
	TopicPurchaseVerified = "magpie.purchase.verified"
	TopicPointsAdjusted   = "magpie.points.adjusted"
	TopicPointsExpired    = "magpie.points.expired"
	TopicCustomerEnrolled = "magpie.customer.enrolled"
)

// AllTopics lists every loyalty topic.
func AllTopics() []string {
	return []string{
		TopicPointsEarned,
		TopicRewardRedeemed,
		TopicCheckInCompleted,
		TopicPurchaseVerified,
		TopicPointsAdjusted,
		TopicPointsExpired,
		TopicCustomerEnrolled,
	}
}

// LoyaltyEvent is the payload published for every committed ledger change.
type LoyaltyEvent struct {
	Topic         string       `json:"topic"`
	TenantID      string       `json:"tenantId"`
	CustomerID    string       `json:"customerId"`
	ActorID       string       `json:"actorId,omitempty"`
	Transaction   *Transaction `json:"transaction,omitempty"`
	PointsBalance int64        `json:"pointsBalance"`
	Tier          Tier         `json:"tier"`
	Message       string       `json:"message,omitempty"`
	OccurredAt    time.Time    `json:"occurredAt"`
}
