package events

import (
	"context"
	"log/slog"
)

// AsyncSink decouples stage execution from sink latency: Publish enqueues,
// a Worker drains into the inner sink. The buffer drops on overflow rather
// than blocking a pipeline stage on a slow broker.
type AsyncSink struct {
	inbox chan Event
}

func NewAsyncSink(buffer int) *AsyncSink {
	return &AsyncSink{inbox: make(chan Event, buffer)}
}

func (s *AsyncSink) Publish(_ context.Context, event Event) error {
	select {
	case s.inbox <- event:
		return nil
	default:
		return ErrBufferFull
	}
}

// Worker consumes queued events and forwards them to the inner sink until
// ctx is cancelled.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(s *AsyncSink, inner Sink, logger *slog.Logger) *Worker {
	return &Worker{sink: inner, inbox: s.inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Publish(ctx, event); err != nil {
				w.logger.WarnContext(ctx, "event delivery failed",
					"event_type", event.Type,
					"run_id", event.RunID,
					"error", err,
				)
			}
		}
	}
}

var _ Sink = (*AsyncSink)(nil)
