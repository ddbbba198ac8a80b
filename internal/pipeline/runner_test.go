package pipeline

import (
	"context"
	"time"

	"anchorid/pkg/sentinel"
)

func (s *PipelineSuite) TestRunner() {
	logger := s.pipeline.logger
	runner := NewRunner(context.Background(), s.pipeline, logger)

	s.Run("start returns immediately and the run completes", func() {
		trackingID := runner.Start(s.request())
		s.Require().NotEmpty(trackingID)

		status, err := runner.Status(trackingID)
		s.Require().NoError(err)
		s.Require().Equal("inv-1", status.Summary.InvestorID)

		s.Require().Eventually(func() bool {
			status, err := runner.Status(trackingID)
			return err == nil && status.State == RunStateDone
		}, time.Second, 10*time.Millisecond)

		status, err = runner.Status(trackingID)
		s.Require().NoError(err)
		s.Require().True(status.Summary.Success)
	})

	s.Run("unknown tracking id", func() {
		_, err := runner.Status("ghost")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("concurrent runs are tracked independently", func() {
		first := runner.Start(s.request())
		second := runner.Start(s.request())
		s.Require().NotEqual(first, second)
	})
}
