package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"anchorid/pkg/sentinel"
)

// RunState is the registry's view of a run.
type RunState string

const (
	RunStateRunning RunState = "running"
	RunStateDone    RunState = "done"
)

// RunStatus pairs the registry state with the summary so far.
type RunStatus struct {
	State   RunState `json:"state"`
	Summary Summary  `json:"summary"`
}

// Runner starts pipeline runs in the background and keeps their summaries
// queryable. A run can outlive the HTTP request that started it (the poll
// budget alone is minutes), so runs execute on the server's base context,
// not the request's.
type Runner struct {
	pipeline *Pipeline
	baseCtx  context.Context
	logger   *slog.Logger

	mu   sync.RWMutex
	runs map[string]RunStatus
}

func NewRunner(baseCtx context.Context, p *Pipeline, logger *slog.Logger) *Runner {
	return &Runner{
		pipeline: p,
		baseCtx:  baseCtx,
		logger:   logger,
		runs:     make(map[string]RunStatus),
	}
}

// Start launches a run and returns its tracking id immediately.
func (r *Runner) Start(req RunRequest) string {
	trackingID := uuid.NewString()

	r.mu.Lock()
	r.runs[trackingID] = RunStatus{State: RunStateRunning, Summary: Summary{InvestorID: req.InvestorID}}
	r.mu.Unlock()

	go func() {
		summary, err := r.pipeline.Execute(r.baseCtx, req)
		if err != nil {
			r.logger.Error("pipeline run ended with blocking failure",
				"tracking_id", trackingID,
				"investor_id", req.InvestorID,
				"error", err,
			)
		}
		r.mu.Lock()
		r.runs[trackingID] = RunStatus{State: RunStateDone, Summary: summary}
		r.mu.Unlock()
	}()

	return trackingID
}

// Status reports a run by tracking id.
func (r *Runner) Status(trackingID string) (RunStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	status, ok := r.runs[trackingID]
	if !ok {
		return RunStatus{}, sentinel.ErrNotFound
	}
	return status, nil
}
