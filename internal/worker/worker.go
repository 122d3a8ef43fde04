// Package worker consumes loyalty events from the EventBus and writes the
// audit trail.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/opensource-finance/magpie/internal/bus"
	"github.com/opensource-finance/magpie/internal/domain"
)

// Worker subscribes to every loyalty topic of its tenants and persists an
// audit entry per event.
type Worker struct {
	bus  domain.EventBus
	repo domain.Repository

	mu            sync.Mutex
	tenants       map[string]bool
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs are subscribed at start. More can be added with EnsureTenant.
	TenantIDs []string
}

// NewWorker creates a new audit worker.
func NewWorker(eventBus domain.EventBus, repo domain.Repository) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     eventBus,
		repo:    repo,
		tenants: make(map[string]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins consuming events for the configured tenants.
func (w *Worker) Start(cfg Config) error {
	for _, tenantID := range cfg.TenantIDs {
		if err := w.EnsureTenant(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
		}
	}

	slog.Info("audit worker started", "tenant_count", len(cfg.TenantIDs))
	return nil
}

// EnsureTenant subscribes to a tenant's topics unless already subscribed.
func (w *Worker) EnsureTenant(tenantID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.tenants[tenantID] {
		return nil
	}
	if err := w.ctx.Err(); err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}

	var subs []domain.Subscription
	for _, topic := range domain.AllTopics() {
		sub, err := w.bus.Subscribe(w.ctx, tenantID, topic, w.handleEvent)
		if err != nil {
			for _, s := range subs {
				_ = s.Unsubscribe()
			}
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		subs = append(subs, sub)
	}

	w.subscriptions = append(w.subscriptions, subs...)
	w.tenants[tenantID] = true

	slog.Debug("tenant worker started", "tenant_id", tenantID, "topics", len(subs))
	return nil
}

// handleEvent turns a loyalty event into an audit entry.
func (w *Worker) handleEvent(ctx context.Context, msg *domain.Message) error {
	event, err := bus.DecodeEvent(msg)
	if err != nil {
		slog.Error("failed to parse loyalty event",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	entry := NewAuditEntry(event)
	if err := w.repo.SaveAuditEntry(ctx, event.TenantID, entry); err != nil {
		return fmt.Errorf("failed to save audit entry for %s: %w", event.Topic, err)
	}

	slog.Debug("audit entry recorded",
		"tenant_id", event.TenantID,
		"customer_id", event.CustomerID,
		"action", entry.Action,
	)
	return nil
}

// NewAuditEntry maps a loyalty event onto an audit row.
func NewAuditEntry(event *domain.LoyaltyEvent) *domain.AuditEntry {
	details := map[string]any{
		"pointsBalance": event.PointsBalance,
		"tier":          string(event.Tier),
	}
	if event.Message != "" {
		details["message"] = event.Message
	}
	if tx := event.Transaction; tx != nil {
		details["transactionId"] = tx.ID
		details["type"] = string(tx.Type)
		details["amount"] = tx.Amount
		details["pointsEarned"] = tx.PointsEarned
		details["pointsRedeemed"] = tx.PointsRedeemed
		if tx.RewardID != "" {
			details["rewardId"] = tx.RewardID
		}
	}

	return &domain.AuditEntry{
		ID:         uuid.New().String(),
		TenantID:   event.TenantID,
		Action:     event.Topic,
		CustomerID: event.CustomerID,
		ActorID:    event.ActorID,
		Details:    details,
		Timestamp:  event.OccurredAt,
	}
}

// Stop unsubscribes from every topic.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil
	w.tenants = make(map[string]bool)

	slog.Info("audit worker stopped")
	return nil
}

// Stats reports the worker's subscriptions.
type Stats struct {
	TenantCount       int      `json:"tenantCount"`
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		TenantCount:       len(w.tenants),
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
