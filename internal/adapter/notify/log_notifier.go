package notify

import (
	"context"

	"github.com/campusiq/campusiq/internal/domain"
	"github.com/campusiq/campusiq/internal/ports"
	"github.com/campusiq/campusiq/internal/service/logger"
)

// LogNotifier delivers notifications to the structured log. It stands in
// for a real delivery channel (email, chat webhook) and is always
// best-effort.
type LogNotifier struct {
	log logger.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(log logger.Logger) ports.Notifier {
	return &LogNotifier{log: log}
}

// Notify writes the event to the log
func (n *LogNotifier) Notify(ctx context.Context, actor domain.Actor, event string, payload map[string]interface{}) error {
	fields := map[string]interface{}{
		"event":   event,
		"user_id": actor.UserID,
		"role":    string(actor.Role),
	}
	for key, value := range payload {
		fields[key] = value
	}
	n.log.Info(ctx, "notification dispatched", fields)
	return nil
}
