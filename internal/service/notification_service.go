package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/case-workflow-service/internal/config"
	"github.com/spec-kit/case-workflow-service/internal/events"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventCaseCreated,
		events.EventCaseAssigned,
		events.EventCaseStarted,
		events.EventCaseEscalated,
		events.EventCaseReturned,
		events.EventCaseReassigned,
		events.EventCaseDispositioned,
	} {
		n.dispatcher.Subscribe(eventType, n.handleCaseEvent)
	}
}

func (n *NotificationService) handleCaseEvent(ctx context.Context, event events.Event) error {
	n.logger.Info("case event",
		zap.String("type", string(event.Type)),
		zap.String("case_id", event.CaseID),
		zap.String("actor", event.Actor.UserID),
	)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendWebhookNotificationStub(ctx context.Context, event events.Event) {
	if n.cfg.WebhookURL == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("case_id", event.CaseID),
		zap.String("event_type", string(event.Type)))
}
