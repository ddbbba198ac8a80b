// Package poller watches a settlement transaction until it reaches a
// terminal ledger state or the wall-clock budget runs out.
package poller

import (
	"context"
	"log/slog"
	"time"

	"anchorid/internal/identity/models"
	"anchorid/internal/platform/metrics"
)

// State is the poller's view of the confirmation.
type State string

const (
	StatePending   State = "Pending"
	StateConfirmed State = "Confirmed"
	StateFailed    State = "Failed"
	StateTimedOut  State = "TimedOut"
)

// StatusSource answers status queries for a transaction id.
type StatusSource interface {
	GetStatus(ctx context.Context, transactionID string) (models.SettlementTransaction, error)
}

// Result is the poll outcome. Transaction is the tracked record with every
// observed update merged in.
type Result struct {
	State       State                        `json:"state"`
	Transaction models.SettlementTransaction `json:"transaction"`
	Ticks       int                          `json:"ticks"`
	Elapsed     time.Duration                `json:"elapsed"`
}

// Poller queries at a fixed interval, bounded by a maximum wait. There is no
// external cancel signal beyond ctx; termination is terminal status or
// budget exhaustion.
type Poller struct {
	source   StatusSource
	interval time.Duration
	maxWait  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	// Injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(source StatusSource, interval, maxWait time.Duration, logger *slog.Logger, m *metrics.Metrics) *Poller {
	return &Poller{
		source:   source,
		interval: interval,
		maxWait:  maxWait,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Await polls until Confirmed, Failed, or TimedOut. TimedOut is advisory:
// settlement is still in flight, not failed, and the result carries the last
// observed transaction state. Transient query errors are logged and treated
// as no-op ticks; they neither terminate polling nor reset the budget.
func (p *Poller) Await(ctx context.Context, tx models.SettlementTransaction) Result {
	start := p.now()
	deadline := start.Add(p.maxWait)
	tracked := tx
	ticks := 0

	for {
		ticks++
		p.metrics.PollTicks.Inc()

		update, err := p.source.GetStatus(ctx, tracked.ID)
		if err != nil {
			p.logger.WarnContext(ctx, "status query failed, continuing",
				"transaction_id", tracked.ID,
				"tick", ticks,
				"error", err,
			)
		} else {
			tracked = tracked.Merge(update)

			switch {
			case tracked.Status == models.TxStatusCompleted:
				p.logger.InfoContext(ctx, "settlement confirmed",
					"transaction_id", tracked.ID,
					"tx_hash", tracked.TxHash,
					"ticks", ticks,
				)
				return Result{State: StateConfirmed, Transaction: tracked, Ticks: ticks, Elapsed: p.now().Sub(start)}
			case tracked.Status.Terminal():
				p.logger.ErrorContext(ctx, "settlement failed on ledger",
					"transaction_id", tracked.ID,
					"status", tracked.Status,
					"ticks", ticks,
				)
				return Result{State: StateFailed, Transaction: tracked, Ticks: ticks, Elapsed: p.now().Sub(start)}
			}
		}

		if !p.now().Add(p.interval).Before(deadline) {
			p.logger.WarnContext(ctx, "confirmation poll budget exhausted, settlement still in flight",
				"transaction_id", tracked.ID,
				"ticks", ticks,
				"budget", p.maxWait,
			)
			return Result{State: StateTimedOut, Transaction: tracked, Ticks: ticks, Elapsed: p.now().Sub(start)}
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return Result{State: StateTimedOut, Transaction: tracked, Ticks: ticks, Elapsed: p.now().Sub(start)}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
