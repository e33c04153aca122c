package worker

import (
	"github.com/blockhaven/ticketd/internal/service"
)

// StartNotificationWorker registers the in-game fanout and, when present,
// the external event bridge on the dispatcher.
func StartNotificationWorker(notifications *service.NotificationService, bridge *service.EventBridge) {
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	if bridge != nil {
		bridge.RegisterHandlers()
	}
}
