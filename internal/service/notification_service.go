package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/bug-tracker/internal/config"
	"github.com/spec-kit/bug-tracker/internal/events"
)

// Publisher fans events out of the process. persistence.Redis satisfies it.
type Publisher interface {
	Enabled() bool
	Publish(ctx context.Context, channel string, payload []byte) error
}

// EventRecorder counts events; observability.Metrics satisfies it.
type EventRecorder interface {
	RecordEvent(eventType string)
}

// NotificationService logs bug events and forwards them to the configured
// pub/sub channel.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  Publisher
	recorder   EventRecorder
	logger     *zap.Logger
	cfg        config.EventsConfig
}

// NewNotificationService creates the service. publisher and recorder may be nil.
func NewNotificationService(dispatcher events.Dispatcher, publisher Publisher, recorder EventRecorder, logger *zap.Logger, cfg config.EventsConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		recorder:   recorder,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to every bug event.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	events.SubscribeAll(n.dispatcher, n.handle)
}

func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	n.logger.Info("bug event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("bug_id", event.BugID),
		zap.String("actor_id", event.Actor.ID),
		zap.Any("payload", event.Payload))
	if n.recorder != nil {
		n.recorder.RecordEvent(string(event.Type))
	}
	return n.forward(ctx, event)
}

func (n *NotificationService) forward(ctx context.Context, event events.Event) error {
	if n.publisher == nil || !n.publisher.Enabled() || n.cfg.RedisChannel == "" {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := n.publisher.Publish(ctx, n.cfg.RedisChannel, payload); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}
