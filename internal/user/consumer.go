// Package user keeps the downstream user registry consistent with the
// authentication events published by the login handoff.
package user

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/ovaphlow/authhub/internal/event"
	"github.com/ovaphlow/authhub/internal/metrics"
)

// ConsumerGroup identifies this consumer on the bus.
const ConsumerGroup = "user-service"

// Registry is the contract with the user store. Insert must tolerate a
// concurrent insert of the same subject and report whether a row was
// actually created.
type Registry interface {
	ExistsBySubject(ctx context.Context, subject string) (bool, error)
	Insert(ctx context.Context, subject, email, name string) (bool, error)
	UpdateLastLogin(ctx context.Context, subject string) error
}

// SyncConsumer reconciles authenticated events against the registry and
// derives exactly one registered or logged-in event per authentication.
// The handler is idempotent in effect: a redelivered event after a
// successful insert takes the repeat-login branch and only bumps last-login
// again.
type SyncConsumer struct {
	registry Registry
	bus      event.Bus
	metrics  *metrics.Collector
	logger   *zap.SugaredLogger
}

func NewSyncConsumer(registry Registry, bus event.Bus, m *metrics.Collector, logger *zap.SugaredLogger) *SyncConsumer {
	return &SyncConsumer{registry: registry, bus: bus, metrics: m, logger: logger}
}

// Start subscribes the consumer to the authenticated topic.
func (c *SyncConsumer) Start() error {
	return c.bus.Subscribe(event.TopicUserAuthenticated, ConsumerGroup, c.onAuthenticated)
}

func (c *SyncConsumer) onAuthenticated(ctx context.Context, msg event.Message) error {
	var ev event.UserAuthenticated
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		// A malformed payload can never succeed; redelivering it would
		// wedge the partition. Loudly drop and ack.
		c.logger.Errorw("dropping malformed authenticated event",
			"message_id", msg.ID, "key", msg.Key, "err", err)
		c.metrics.RecordSyncOutcome("malformed")
		return nil
	}
	if ev.Subject == "" {
		c.logger.Errorw("dropping authenticated event without subject", "message_id", msg.ID)
		c.metrics.RecordSyncOutcome("malformed")
		return nil
	}

	// Registry and publish failures propagate: no ack, the bus redelivers.
	exists, err := c.registry.ExistsBySubject(ctx, ev.Subject)
	if err != nil {
		return fmt.Errorf("check subject %s: %w", ev.Subject, err)
	}
	if exists {
		return c.recordRepeatLogin(ctx, ev.Subject)
	}

	created, err := c.registry.Insert(ctx, ev.Subject, ev.Email, ev.Name)
	if err != nil {
		return fmt.Errorf("insert subject %s: %w", ev.Subject, err)
	}
	if !created {
		// Lost a race with a concurrent first login; the row exists now.
		return c.recordRepeatLogin(ctx, ev.Subject)
	}

	reg := event.UserRegistered{Subject: ev.Subject, Email: ev.Email, Name: ev.Name}
	if err := c.bus.Publish(ctx, event.TopicUserRegistered, ev.Subject, reg); err != nil {
		return fmt.Errorf("publish registered event: %w", err)
	}
	c.metrics.RecordSyncOutcome("registered")
	c.logger.Infow("user registered", "subject", ev.Subject)
	return nil
}

func (c *SyncConsumer) recordRepeatLogin(ctx context.Context, subject string) error {
	if err := c.registry.UpdateLastLogin(ctx, subject); err != nil {
		return fmt.Errorf("update last login for %s: %w", subject, err)
	}
	if err := c.bus.Publish(ctx, event.TopicUserLoggedIn, subject, event.UserLoggedIn{Subject: subject}); err != nil {
		return fmt.Errorf("publish logged-in event: %w", err)
	}
	c.metrics.RecordSyncOutcome("logged_in")
	return nil
}
