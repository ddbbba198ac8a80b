package anchor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"anchorid/internal/identity/models"
	"anchorid/internal/platform/metrics"
)

// Submitter resolves a create operation to a SubmissionResult through an
// ordered fallback chain. Tiers run strictly sequentially: an earlier tier's
// side effects (rate-limit consumption, proof-of-work budget) can affect
// later tiers, and concurrent attempts could double-submit the operation.
//
// The caller's long-form identifier is usable immediately regardless of
// anchoring success, so Submit never fails: tier 3 synthesizes a local
// acknowledgment when no network path is reachable.
//
// The network's acknowledgment is recorded as-is and never verified against
// the operation that was sent. That is a known, accepted gap (the network is
// treated as trust-but-verify-later); do not silently add verification here
// without revisiting the resolution path.
type Submitter struct {
	client           Client
	httpc            *http.Client
	solutionEndpoint string
	logger           *slog.Logger
	metrics          *metrics.Metrics
	now              func() time.Time
}

func NewSubmitter(client Client, httpc *http.Client, solutionEndpoint string, logger *slog.Logger, m *metrics.Metrics) *Submitter {
	return &Submitter{
		client:           client,
		httpc:            httpc,
		solutionEndpoint: solutionEndpoint,
		logger:           logger,
		metrics:          m,
		now:              time.Now,
	}
}

// Submit attempts each tier in order and returns the first success. The
// result always carries a status; the degraded tier cannot fail.
func (s *Submitter) Submit(ctx context.Context, op models.CreateOperation, identity models.DIDIdentity) models.SubmissionResult {
	if result, err := s.primary(ctx, op); err == nil {
		s.metrics.SubmissionTiers.WithLabelValues(string(models.TierPrimary)).Inc()
		return result
	} else {
		s.logger.WarnContext(ctx, "primary anchoring tier failed", "error", err)
	}

	if result, err := s.direct(ctx, op); err == nil {
		s.metrics.SubmissionTiers.WithLabelValues(string(models.TierDirect)).Inc()
		return result
	} else {
		s.logger.WarnContext(ctx, "direct anchoring tier failed", "error", err)
	}

	s.metrics.SubmissionTiers.WithLabelValues(string(models.TierDegraded)).Inc()
	return s.degraded(ctx, identity)
}

func (s *Submitter) primary(ctx context.Context, op models.CreateOperation) (models.SubmissionResult, error) {
	ack, err := s.client.Submit(ctx, op)
	if err != nil {
		return models.SubmissionResult{}, err
	}
	return models.SubmissionResult{
		Status:      statusFrom(ack),
		Tier:        models.TierPrimary,
		Raw:         ack,
		SubmittedAt: s.now(),
	}, nil
}

// direct posts the serialized operation straight to the solution endpoint.
// A non-2xx response is a failure of this tier.
func (s *Submitter) direct(ctx context.Context, op models.CreateOperation) (models.SubmissionResult, error) {
	body, err := json.Marshal(op)
	if err != nil {
		return models.SubmissionResult{}, fmt.Errorf("marshal operation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.solutionEndpoint, bytes.NewReader(body))
	if err != nil {
		return models.SubmissionResult{}, fmt.Errorf("build direct request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return models.SubmissionResult{}, fmt.Errorf("post operation: %w", err)
	}
	defer resp.Body.Close()

	ack, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.SubmissionResult{}, fmt.Errorf("read acknowledgment: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.SubmissionResult{}, fmt.Errorf("solution endpoint returned %d", resp.StatusCode)
	}

	return models.SubmissionResult{
		Status:      statusFrom(ack),
		Tier:        models.TierDirect,
		Raw:         ack,
		SubmittedAt: s.now(),
	}, nil
}

// degraded synthesizes a local acknowledgment so the pipeline can proceed
// with the immediately-usable long-form identifier. This tier never fails.
func (s *Submitter) degraded(ctx context.Context, identity models.DIDIdentity) models.SubmissionResult {
	status := models.SubmissionStatusSimulated
	if identity.LongForm != "" {
		status = models.SubmissionStatusSubmittedLongform
	}

	stamp := s.now()
	ack, _ := json.Marshal(map[string]string{
		"status":    status,
		"didSuffix": identity.Suffix(),
		"stampedAt": stamp.UTC().Format(time.RFC3339Nano),
	})

	s.logger.InfoContext(ctx, "anchoring degraded to local acknowledgment",
		"status", status,
		"did_suffix", identity.Suffix(),
	)
	return models.SubmissionResult{
		Status:      status,
		Tier:        models.TierDegraded,
		Raw:         ack,
		SubmittedAt: stamp,
	}
}

// statusFrom pulls the status field out of a network acknowledgment, falling
// back to pending when the network did not report one.
func statusFrom(ack json.RawMessage) string {
	var probe struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(ack, &probe); err == nil && probe.Status != "" {
		return probe.Status
	}
	return models.SubmissionStatusPending
}
