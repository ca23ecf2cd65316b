package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/bug-tracker/internal/events"
	"github.com/spec-kit/bug-tracker/internal/service"
)

// StartNotificationWorker registers notification handlers on the dispatcher.
// Handlers run inline with Publish, so there is no goroutine to stop.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
	logger.Info("notification worker subscribed", zap.Int("event_types", len(events.AllEventTypes)))
}
