package events

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"anchorid/pkg/requestcontext"
)

// Sink receives published events.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Publisher stamps and forwards events to its sink. Publishing is
// best-effort: sink failures are logged, never propagated, because a lost
// event must not unwind a completed stage.
type Publisher struct {
	sink   Sink
	logger *slog.Logger
}

func NewPublisher(sink Sink, logger *slog.Logger) *Publisher {
	return &Publisher{sink: sink, logger: logger}
}

// Emit fills in id, category, and timestamp, then publishes.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Category == "" {
		event.Category = CategoryOf(event.Type)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RunID == "" {
		event.RunID = requestcontext.RunID(ctx)
	}

	if err := p.sink.Publish(ctx, event); err != nil {
		p.logger.WarnContext(ctx, "stage event publish failed",
			"event_type", event.Type,
			"run_id", event.RunID,
			"error", err,
		)
	}
}
