// Package httptransport exposes run control over HTTP. Handlers stay thin:
// decode, delegate, translate errors.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"anchorid/internal/checkpoint"
	"anchorid/internal/identity/builder"
	"anchorid/internal/pipeline"
	dErrors "anchorid/pkg/domain-errors"
	"anchorid/pkg/platform/httputil"
)

// RunService starts runs and answers status queries.
type RunService interface {
	Start(req pipeline.RunRequest) string
	Status(trackingID string) (pipeline.RunStatus, error)
}

// CheckpointReader serves persisted artifacts.
type CheckpointReader interface {
	LoadLatest(ctx context.Context, stage checkpoint.Stage, investorID string) (checkpoint.Record, error)
}

// Handler wires run endpoints to the pipeline runner.
type Handler struct {
	runs        RunService
	checkpoints CheckpointReader
	logger      *slog.Logger
}

func NewHandler(runs RunService, checkpoints CheckpointReader, logger *slog.Logger) *Handler {
	return &Handler{runs: runs, checkpoints: checkpoints, logger: logger}
}

// Register mounts the run control endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Post("/runs", h.handleStartRun)
	r.Get("/runs/{trackingID}", h.handleRunStatus)
	r.Get("/investors/{investorID}/checkpoints/{stage}", h.handleCheckpoint)
}

type startRunRequest struct {
	InvestorID      string `json:"investorId"`
	BitcoinAddress  string `json:"bitcoinAddress"`
	EthereumAddress string `json:"ethereumAddress"`
	SolanaAddress   string `json:"solanaAddress"`
	Resume          bool   `json:"resume"`
}

type startRunResponse struct {
	TrackingID string `json:"trackingId"`
}

func (h *Handler) handleStartRun(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[startRunRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.InvestorID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "investorId is required"))
		return
	}

	trackingID := h.runs.Start(pipeline.RunRequest{
		InvestorID: req.InvestorID,
		Wallets: builder.WalletAddresses{
			Bitcoin:  req.BitcoinAddress,
			Ethereum: req.EthereumAddress,
			Solana:   req.SolanaAddress,
		},
		Resume: req.Resume,
	})

	h.logger.InfoContext(r.Context(), "pipeline run accepted",
		"tracking_id", trackingID,
		"investor_id", req.InvestorID,
	)
	httputil.WriteJSON(w, http.StatusAccepted, startRunResponse{TrackingID: trackingID})
}

func (h *Handler) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	trackingID := chi.URLParam(r, "trackingID")

	status, err := h.runs.Status(trackingID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

// shareableStages are the artifacts the API serves. The keys and identifier
// bundles carry private key material and are never exposed over HTTP.
var shareableStages = map[checkpoint.Stage]bool{
	checkpoint.StagePublicBundle: true,
	checkpoint.StageAnchoring:    true,
	checkpoint.StageSettlement:   true,
	checkpoint.StageConfirmation: true,
}

type checkpointResponse struct {
	Stage      checkpoint.Stage `json:"stage"`
	InvestorID string           `json:"investorId"`
	Timestamp  string           `json:"timestamp"`
	Payload    json.RawMessage  `json:"payload"`
}

func (h *Handler) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	investorID := chi.URLParam(r, "investorID")
	stage := checkpoint.Stage(chi.URLParam(r, "stage"))

	if !shareableStages[stage] {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "stage %q is not shareable", stage))
		return
	}

	record, err := h.checkpoints.LoadLatest(r.Context(), stage, investorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, checkpointResponse{
		Stage:      record.Stage,
		InvestorID: record.InvestorID,
		Timestamp:  record.Timestamp,
		Payload:    record.Payload,
	})
}
