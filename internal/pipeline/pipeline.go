// Package pipeline orchestrates the DID lifecycle: key generation,
// identifier assembly, anchoring submission, settlement, and confirmation.
//
// The run is a single linear sequence; each stage's input is the previous
// stage's output, carried in an explicit run state rather than shared
// mutable fields. Every stage checkpoints its outcome, and a resumed run
// reads checkpoints before re-executing completed stages.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"anchorid/internal/checkpoint"
	"anchorid/internal/events"
	"anchorid/internal/identity/builder"
	"anchorid/internal/identity/models"
	"anchorid/internal/platform/metrics"
	"anchorid/internal/poller"
	"anchorid/internal/settlement"
	dErrors "anchorid/pkg/domain-errors"
	"anchorid/pkg/requestcontext"
	"anchorid/pkg/sentinel"
)

// Stage names used for error keying and event emission.
const (
	stageKeys         = "keys"
	stageIdentifier   = "identifier"
	stageAnchoring    = "anchoring"
	stageSettlement   = "settlement"
	stageConfirmation = "confirmation"
)

// KeyProvider generates the full role set of key pairs.
type KeyProvider interface {
	GenerateAll(ctx context.Context) (map[models.KeyRole]models.KeyPair, error)
}

// IdentifierBuilder assembles document, identity, and create operation.
type IdentifierBuilder interface {
	Build(ctx context.Context, investorID string, wallets builder.WalletAddresses, keys map[models.KeyRole]models.KeyPair) (builder.Result, error)
}

// AnchorSubmitter resolves the create operation to a submission result. It
// never fails; the degraded tier always produces a result.
type AnchorSubmitter interface {
	Submit(ctx context.Context, op models.CreateOperation, identity models.DIDIdentity) models.SubmissionResult
}

// SettlementManager issues the settlement transaction.
type SettlementManager interface {
	CreateTransaction(ctx context.Context, meta settlement.Metadata) (models.SettlementTransaction, error)
}

// ConfirmationPoller awaits the transaction's terminal state.
type ConfirmationPoller interface {
	Await(ctx context.Context, tx models.SettlementTransaction) poller.Result
}

// RunRequest starts one pipeline run. Resume makes each stage consult its
// checkpoint before executing, so a partially failed run picks up where it
// stopped.
type RunRequest struct {
	InvestorID string                  `json:"investorId"`
	Wallets    builder.WalletAddresses `json:"wallets"`
	Resume     bool                    `json:"resume"`
}

// Summary is the run's final report: partial results plus the full error
// collection, so an interrupted pipeline still yields inspectable state.
type Summary struct {
	RunID        string                        `json:"runId"`
	InvestorID   string                        `json:"investorId"`
	StartedAt    time.Time                     `json:"startedAt"`
	CompletedAt  time.Time                     `json:"completedAt"`
	Success      bool                          `json:"success"`
	ErrorCount   int                           `json:"errorCount"`
	Errors       map[string]string             `json:"errors,omitempty"`
	Advisories   []string                      `json:"advisories,omitempty"`
	Identity     *models.DIDIdentity           `json:"identity,omitempty"`
	Submission   *models.SubmissionResult      `json:"submission,omitempty"`
	Transaction  *models.SettlementTransaction `json:"transaction,omitempty"`
	Confirmation *poller.Result                `json:"confirmation,omitempty"`
}

// Pipeline wires the stages together.
type Pipeline struct {
	keys        KeyProvider
	builder     IdentifierBuilder
	submitter   AnchorSubmitter
	settlements SettlementManager
	poller      ConfirmationPoller
	checkpoints checkpoint.Store
	events      *events.Publisher
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func New(
	keys KeyProvider,
	identifierBuilder IdentifierBuilder,
	submitter AnchorSubmitter,
	settlements SettlementManager,
	confirmations ConfirmationPoller,
	checkpoints checkpoint.Store,
	publisher *events.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		keys:        keys,
		builder:     identifierBuilder,
		submitter:   submitter,
		settlements: settlements,
		poller:      confirmations,
		checkpoints: checkpoints,
		events:      publisher,
		metrics:     m,
		logger:      logger,
	}
}

// Execute runs the pipeline end to end. The returned error is non-nil only
// for failures that block all subsequent stages (missing input, key
// generation, identifier assembly); every other failure lands in the
// summary's error collection and the run completes with partial results.
func (p *Pipeline) Execute(ctx context.Context, req RunRequest) (Summary, error) {
	summary := Summary{
		RunID:      uuid.NewString(),
		InvestorID: req.InvestorID,
		StartedAt:  requestcontext.Now(ctx),
		Errors:     make(map[string]string),
	}
	ctx = requestcontext.WithRunID(ctx, summary.RunID)

	p.metrics.RunsStarted.Inc()
	p.events.Emit(ctx, events.Event{
		Type:       events.TypeRunStarted,
		InvestorID: req.InvestorID,
	})

	if req.InvestorID == "" {
		err := dErrors.New(dErrors.CodeValidation, "investor id is required")
		summary.Errors["run"] = err.Error()
		return p.finish(ctx, summary), err
	}

	// Stage 1: key material.
	keys, err := p.runKeys(ctx, req, &summary)
	if err != nil {
		return p.finish(ctx, summary), err
	}

	// Stage 2: identifier.
	built, err := p.runIdentifier(ctx, req, keys, &summary)
	if err != nil {
		return p.finish(ctx, summary), err
	}
	summary.Identity = &built.Identity

	// Stage 3: anchoring. Degrades rather than failing.
	submission := p.runAnchoring(ctx, req, built, &summary)
	summary.Submission = &submission

	// Stage 4: settlement. Fatal to settlement only; the identifier stands.
	tx, ok := p.runSettlement(ctx, req, built, &summary)
	if !ok {
		return p.finish(ctx, summary), nil
	}
	summary.Transaction = &tx

	// Stage 5: confirmation.
	result := p.runConfirmation(ctx, req, tx, &summary)
	summary.Confirmation = &result
	merged := tx.Merge(result.Transaction)
	summary.Transaction = &merged

	return p.finish(ctx, summary), nil
}

func (p *Pipeline) runKeys(ctx context.Context, req RunRequest, summary *Summary) (map[models.KeyRole]models.KeyPair, error) {
	finish := p.stageStarted(ctx, req.InvestorID, stageKeys)

	if req.Resume {
		var bundle keysBundle
		if found, _ := p.loadBundle(ctx, checkpoint.StageKeys, req.InvestorID, &bundle); found {
			p.logger.InfoContext(ctx, "resumed key material from checkpoint", "investor_id", req.InvestorID)
			finish(nil)
			return keyMap(bundle.Keys), nil
		}
		// No checkpoint is recoverable here: generate fresh material.
	}

	keys, err := p.keys.GenerateAll(ctx)
	if err != nil {
		summary.Errors[stageKeys] = err.Error()
		finish(err)
		return nil, err
	}

	p.saveBundle(ctx, checkpoint.StageKeys, req.InvestorID, keysBundle{
		InvestorID: req.InvestorID,
		Keys:       keyList(keys),
	}, summary)
	finish(nil)
	return keys, nil
}

func (p *Pipeline) runIdentifier(ctx context.Context, req RunRequest, keys map[models.KeyRole]models.KeyPair, summary *Summary) (builder.Result, error) {
	finish := p.stageStarted(ctx, req.InvestorID, stageIdentifier)

	if req.Resume {
		var bundle identifierBundle
		if found, _ := p.loadBundle(ctx, checkpoint.StageIdentifier, req.InvestorID, &bundle); found && len(bundle.Operations) > 0 {
			p.logger.InfoContext(ctx, "resumed identifier from checkpoint",
				"investor_id", req.InvestorID,
				"short_form", bundle.Identity.ShortForm,
			)
			finish(nil)
			return builder.Result{
				Document:  bundle.Document,
				Identity:  bundle.Identity,
				Operation: bundle.Operations[0],
			}, nil
		}
	}

	built, err := p.builder.Build(ctx, req.InvestorID, req.Wallets, keys)
	if err != nil {
		summary.Errors[stageIdentifier] = err.Error()
		finish(err)
		return builder.Result{}, err
	}

	p.saveBundle(ctx, checkpoint.StageIdentifier, req.InvestorID, identifierBundle{
		InvestorID: req.InvestorID,
		Document:   built.Document,
		Identity:   built.Identity,
		Operations: []models.CreateOperation{built.Operation},
		Keys:       keyList(keys),
	}, summary)
	p.saveBundle(ctx, checkpoint.StagePublicBundle, req.InvestorID, publicBundle{
		InvestorID: req.InvestorID,
		Document:   built.Document,
		Identity:   built.Identity,
		PublicKeys: redactAll(keyList(keys)),
	}, summary)
	finish(nil)
	return built, nil
}

func (p *Pipeline) runAnchoring(ctx context.Context, req RunRequest, built builder.Result, summary *Summary) models.SubmissionResult {
	finish := p.stageStarted(ctx, req.InvestorID, stageAnchoring)

	if req.Resume {
		var bundle anchorBundle
		if found, _ := p.loadBundle(ctx, checkpoint.StageAnchoring, req.InvestorID, &bundle); found && bundle.Submission.Status != "" {
			p.logger.InfoContext(ctx, "resumed anchoring result from checkpoint",
				"investor_id", req.InvestorID,
				"status", bundle.Submission.Status,
			)
			finish(nil)
			return bundle.Submission
		}
	}

	submission := p.submitter.Submit(ctx, built.Operation, built.Identity)

	p.saveBundle(ctx, checkpoint.StageAnchoring, req.InvestorID, anchorBundle{
		InvestorID: req.InvestorID,
		Submission: submission,
	}, summary)
	finish(nil)
	return submission
}

func (p *Pipeline) runSettlement(ctx context.Context, req RunRequest, built builder.Result, summary *Summary) (models.SettlementTransaction, bool) {
	finish := p.stageStarted(ctx, req.InvestorID, stageSettlement)

	if req.Resume {
		var bundle settlementBundle
		if found, _ := p.loadBundle(ctx, checkpoint.StageSettlement, req.InvestorID, &bundle); found && bundle.Transaction.ID != "" {
			p.logger.InfoContext(ctx, "resumed settlement transaction from checkpoint",
				"investor_id", req.InvestorID,
				"transaction_id", bundle.Transaction.ID,
			)
			finish(nil)
			return bundle.Transaction, true
		}
	}

	tx, err := p.settlements.CreateTransaction(ctx, settlement.Metadata{
		InvestorID: req.InvestorID,
		ShortForm:  built.Identity.ShortForm,
		Operation:  built.Operation,
	})
	if err != nil {
		summary.Errors[stageSettlement] = err.Error()
		finish(err)
		return models.SettlementTransaction{}, false
	}

	p.saveBundle(ctx, checkpoint.StageSettlement, req.InvestorID, settlementBundle{
		InvestorID:  req.InvestorID,
		Transaction: tx,
	}, summary)
	finish(nil)
	return tx, true
}

func (p *Pipeline) runConfirmation(ctx context.Context, req RunRequest, tx models.SettlementTransaction, summary *Summary) poller.Result {
	finish := p.stageStarted(ctx, req.InvestorID, stageConfirmation)

	result := p.poller.Await(ctx, tx)

	switch result.State {
	case poller.StateFailed:
		summary.Errors[stageConfirmation] = fmt.Sprintf(
			"settlement transaction %s terminal status %s", result.Transaction.ID, result.Transaction.Status)
		finish(errors.New(summary.Errors[stageConfirmation]))
	case poller.StateTimedOut:
		// Advisory: settlement is still in flight, not failed.
		summary.Advisories = append(summary.Advisories,
			"confirmation poll budget exhausted; settlement still in flight, check transaction "+result.Transaction.ID+" later")
		finish(nil)
	default:
		finish(nil)
	}

	p.saveBundle(ctx, checkpoint.StageConfirmation, req.InvestorID, settlementBundle{
		InvestorID:   req.InvestorID,
		Transaction:  result.Transaction,
		Confirmation: &result,
	}, summary)
	return result
}

// finish closes the summary: tallies errors, decides success, emits the run
// completion event.
func (p *Pipeline) finish(ctx context.Context, summary Summary) Summary {
	summary.CompletedAt = requestcontext.Now(ctx)
	summary.ErrorCount = len(summary.Errors)
	summary.Success = summary.ErrorCount == 0 && summary.Identity != nil

	outcome := "success"
	if !summary.Success {
		outcome = "failure"
	}
	p.metrics.RunsCompleted.WithLabelValues(outcome).Inc()

	p.events.Emit(ctx, events.Event{
		Type:       events.TypeRunCompleted,
		InvestorID: summary.InvestorID,
		Status:     outcome,
	})
	p.logger.InfoContext(ctx, "pipeline run finished",
		"run_id", summary.RunID,
		"investor_id", summary.InvestorID,
		"success", summary.Success,
		"error_count", summary.ErrorCount,
	)
	return summary
}

// stageStarted emits the stage-start event and returns the closer that
// emits completion or failure with the stage duration.
func (p *Pipeline) stageStarted(ctx context.Context, investorID, stage string) func(error) {
	start := time.Now()
	p.events.Emit(ctx, events.Event{
		Type:       events.TypeStageStarted,
		InvestorID: investorID,
		Stage:      stage,
	})

	return func(err error) {
		p.metrics.ObserveStage(stage, time.Since(start))
		if err != nil {
			p.events.Emit(ctx, events.Event{
				Type:       events.TypeStageFailed,
				InvestorID: investorID,
				Stage:      stage,
				Error:      err.Error(),
			})
			return
		}
		p.events.Emit(ctx, events.Event{
			Type:       events.TypeStageCompleted,
			InvestorID: investorID,
			Stage:      stage,
		})
	}
}

// saveBundle checkpoints best-effort: a failed write is logged and noted as
// an advisory, never unwinding the completed stage.
func (p *Pipeline) saveBundle(ctx context.Context, stage checkpoint.Stage, investorID string, payload any, summary *Summary) {
	if _, err := p.checkpoints.Save(ctx, stage, investorID, payload); err != nil {
		p.metrics.CheckpointWrites.WithLabelValues(string(stage), "error").Inc()
		p.logger.ErrorContext(ctx, "checkpoint write failed",
			"stage", stage,
			"investor_id", investorID,
			"error", dErrors.Wrap(dErrors.CodePersistence, "save checkpoint", err),
		)
		summary.Advisories = append(summary.Advisories,
			fmt.Sprintf("checkpoint write failed for stage %s", stage))
		return
	}
	p.metrics.CheckpointWrites.WithLabelValues(string(stage), "ok").Inc()
}

// loadBundle reads the latest checkpoint into out. NotFound is not an error
// here; callers decide whether to regenerate or refuse.
func (p *Pipeline) loadBundle(ctx context.Context, stage checkpoint.Stage, investorID string, out any) (bool, error) {
	record, err := p.checkpoints.LoadLatest(ctx, stage, investorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		p.logger.WarnContext(ctx, "checkpoint read failed",
			"stage", stage,
			"investor_id", investorID,
			"error", err,
		)
		return false, err
	}
	if err := json.Unmarshal(record.Payload, out); err != nil {
		p.logger.WarnContext(ctx, "checkpoint payload corrupt, ignoring",
			"stage", stage,
			"investor_id", investorID,
			"error", err,
		)
		return false, nil
	}
	return true, nil
}
