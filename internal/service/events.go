package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/rpams/tontine-core/internal/port/messagequeue"
)

// publishEvent emits a fire-and-forget notification event. Failures are
// logged and never propagated: the core does not depend on delivery.
func publishEvent(ctx context.Context, queue messagequeue.Queue, subject string, payload any) {
	if queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal event", "subject", subject, "error", err)
		return
	}
	if err := queue.Publish(ctx, subject, data); err != nil {
		slog.Error("publish event", "subject", subject, "error", err)
	}
}
