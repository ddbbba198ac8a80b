package httptransport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"anchorid/internal/checkpoint"
	"anchorid/internal/pipeline"
	"anchorid/pkg/sentinel"
)

type fakeRuns struct {
	started  []pipeline.RunRequest
	statuses map[string]pipeline.RunStatus
}

func (f *fakeRuns) Start(req pipeline.RunRequest) string {
	f.started = append(f.started, req)
	return "track-1"
}

func (f *fakeRuns) Status(trackingID string) (pipeline.RunStatus, error) {
	status, ok := f.statuses[trackingID]
	if !ok {
		return pipeline.RunStatus{}, sentinel.ErrNotFound
	}
	return status, nil
}

type HandlerSuite struct {
	suite.Suite
	runs   *fakeRuns
	store  *checkpoint.InMemoryStore
	router http.Handler
}

func (s *HandlerSuite) SetupTest() {
	s.runs = &fakeRuns{statuses: make(map[string]pipeline.RunStatus)}
	s.store = checkpoint.NewInMemoryStore()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = NewRouter(NewHandler(s.runs, s.store, logger))
}

func (s *HandlerSuite) SetupSubTest() {
	s.SetupTest()
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestStartRun() {
	s.Run("accepts a run request", func() {
		rec := s.do(http.MethodPost, "/runs",
			`{"investorId":"inv-1","bitcoinAddress":"bc1q","ethereumAddress":"0xabc","solanaAddress":"SoL","resume":true}`)

		s.Require().Equal(http.StatusAccepted, rec.Code)

		var resp struct {
			TrackingID string `json:"trackingId"`
		}
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Require().Equal("track-1", resp.TrackingID)

		s.Require().Len(s.runs.started, 1)
		started := s.runs.started[0]
		s.Require().Equal("inv-1", started.InvestorID)
		s.Require().Equal("bc1q", started.Wallets.Bitcoin)
		s.Require().True(started.Resume)
	})

	s.Run("rejects a missing investor id", func() {
		rec := s.do(http.MethodPost, "/runs", `{"bitcoinAddress":"bc1q"}`)
		s.Require().Equal(http.StatusBadRequest, rec.Code)
		s.Require().Empty(s.runs.started)
	})

	s.Run("rejects a malformed body", func() {
		rec := s.do(http.MethodPost, "/runs", `{"investorId":`)
		s.Require().Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestRunStatus() {
	s.Run("known run", func() {
		s.runs.statuses["track-1"] = pipeline.RunStatus{
			State:   pipeline.RunStateDone,
			Summary: pipeline.Summary{RunID: "run-1", InvestorID: "inv-1", Success: true},
		}

		rec := s.do(http.MethodGet, "/runs/track-1", "")
		s.Require().Equal(http.StatusOK, rec.Code)

		var status pipeline.RunStatus
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&status))
		s.Require().Equal(pipeline.RunStateDone, status.State)
		s.Require().True(status.Summary.Success)
	})

	s.Run("unknown run", func() {
		rec := s.do(http.MethodGet, "/runs/ghost", "")
		s.Require().Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestCheckpoint() {
	s.Run("serves a shareable stage", func() {
		_, err := s.store.Save(context.Background(), checkpoint.StagePublicBundle, "inv-1",
			map[string]string{"shortForm": "did:ion:EiAbc"})
		s.Require().NoError(err)

		rec := s.do(http.MethodGet, "/investors/inv-1/checkpoints/public-bundle", "")
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp struct {
			Stage      string          `json:"stage"`
			InvestorID string          `json:"investorId"`
			Payload    json.RawMessage `json:"payload"`
		}
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Require().Equal("public-bundle", resp.Stage)
		s.Require().Equal("inv-1", resp.InvestorID)
		s.Require().Contains(string(resp.Payload), "did:ion:EiAbc")
	})

	s.Run("refuses stages carrying private material", func() {
		_, err := s.store.Save(context.Background(), checkpoint.StageKeys, "inv-1",
			map[string]string{"privateJwk": "secret"})
		s.Require().NoError(err)

		for _, stage := range []string{"keys", "identifier"} {
			rec := s.do(http.MethodGet, "/investors/inv-1/checkpoints/"+stage, "")
			s.Require().Equal(http.StatusBadRequest, rec.Code, "stage %s", stage)
			s.Require().NotContains(rec.Body.String(), "secret")
		}
	})

	s.Run("missing checkpoint is 404", func() {
		rec := s.do(http.MethodGet, "/investors/inv-9/checkpoints/anchoring", "")
		s.Require().Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestHealthz() {
	rec := s.do(http.MethodGet, "/healthz", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().JSONEq(`{"status":"ok"}`, rec.Body.String())
}

func (s *HandlerSuite) TestRequestIDEcho() {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	s.Require().Equal("req-42", rec.Header().Get("X-Request-ID"))

	// A request without the header gets one minted.
	rec = s.do(http.MethodGet, "/healthz", "")
	s.Require().NotEmpty(rec.Header().Get("X-Request-ID"))
}
