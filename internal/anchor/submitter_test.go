package anchor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"anchorid/internal/identity/models"
	"anchorid/internal/platform/metrics"
)

type fakeClient struct {
	ack json.RawMessage
	err error
}

func (f *fakeClient) Submit(context.Context, models.CreateOperation) (json.RawMessage, error) {
	return f.ack, f.err
}

func testOperation() models.CreateOperation {
	return models.CreateOperation{
		Type:       "create",
		SuffixData: json.RawMessage(`{"deltaHash":"h","recoveryCommitment":"c"}`),
		Delta:      json.RawMessage(`{"patches":[]}`),
	}
}

func testIdentity() models.DIDIdentity {
	return models.DIDIdentity{
		LongForm:  "did:ion:EiAbc?-ion-initial-state=x.y",
		ShortForm: "did:ion:EiAbc",
	}
}

type SubmitterSuite struct {
	suite.Suite
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func (s *SubmitterSuite) SetupTest() {
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.metrics = metrics.NewWith(prometheus.NewRegistry())
}

func TestSubmitterSuite(t *testing.T) {
	suite.Run(t, new(SubmitterSuite))
}

func (s *SubmitterSuite) TestPrimaryTier() {
	client := &fakeClient{ack: json.RawMessage(`{"status":"accepted","operationId":"op-1"}`)}
	submitter := NewSubmitter(client, http.DefaultClient, "http://unused", s.logger, s.metrics)

	result := submitter.Submit(context.Background(), testOperation(), testIdentity())
	s.Require().Equal(models.TierPrimary, result.Tier)
	s.Require().Equal("accepted", result.Status)
	s.Require().JSONEq(string(client.ack), string(result.Raw))
	s.Require().False(result.SubmittedAt.IsZero())
}

func (s *SubmitterSuite) TestDirectTierAfterPrimaryFailure() {
	var received models.CreateOperation
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"queued"}`))
	}))
	defer server.Close()

	client := &fakeClient{err: errors.New("challenge endpoint unreachable")}
	submitter := NewSubmitter(client, server.Client(), server.URL, s.logger, s.metrics)

	result := submitter.Submit(context.Background(), testOperation(), testIdentity())
	s.Require().Equal(models.TierDirect, result.Tier)
	s.Require().Equal("queued", result.Status)
	s.Require().Equal("create", received.Type)
}

func (s *SubmitterSuite) TestDegradedTier() {
	s.Run("long form present yields submitted_longform", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := &fakeClient{err: errors.New("down")}
		submitter := NewSubmitter(client, server.Client(), server.URL, s.logger, s.metrics)

		result := submitter.Submit(context.Background(), testOperation(), testIdentity())
		s.Require().Equal(models.TierDegraded, result.Tier)
		s.Require().Equal(models.SubmissionStatusSubmittedLongform, result.Status)

		var ack map[string]string
		s.Require().NoError(json.Unmarshal(result.Raw, &ack))
		s.Require().Equal("EiAbc", ack["didSuffix"])
		s.Require().NotEmpty(ack["stampedAt"])
	})

	s.Run("no identity yields simulated", func() {
		client := &fakeClient{err: errors.New("down")}
		submitter := NewSubmitter(client, http.DefaultClient, "http://127.0.0.1:1", s.logger, s.metrics)

		result := submitter.Submit(context.Background(), testOperation(), models.DIDIdentity{})
		s.Require().Equal(models.TierDegraded, result.Tier)
		s.Require().Equal(models.SubmissionStatusSimulated, result.Status)
	})
}

func (s *SubmitterSuite) TestDirectTierRejectsNon2xx() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"malformed"}`))
	}))
	defer server.Close()

	client := &fakeClient{err: errors.New("down")}
	submitter := NewSubmitter(client, server.Client(), server.URL, s.logger, s.metrics)

	// Direct tier fails on 400, so the chain lands on degraded.
	result := submitter.Submit(context.Background(), testOperation(), testIdentity())
	s.Require().Equal(models.TierDegraded, result.Tier)
}

func TestStatusFrom(t *testing.T) {
	if got := statusFrom(json.RawMessage(`{"status":"anchored"}`)); got != "anchored" {
		t.Fatalf("statusFrom = %q, want anchored", got)
	}
	if got := statusFrom(json.RawMessage(`{"other":"field"}`)); got != models.SubmissionStatusPending {
		t.Fatalf("statusFrom = %q, want pending fallback", got)
	}
	if got := statusFrom(json.RawMessage(`not json`)); got != models.SubmissionStatusPending {
		t.Fatalf("statusFrom = %q, want pending fallback", got)
	}
}
