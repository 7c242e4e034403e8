package submission

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/semiprime/survival-matrix/internal/database"
	"github.com/semiprime/survival-matrix/internal/fingerprint"
	"github.com/semiprime/survival-matrix/internal/monitoring"
	"github.com/semiprime/survival-matrix/internal/types"
)

// Kaggle numbers its Titanic test set starting here; records without an
// explicit PassengerId are numbered from this base by input order.
const defaultPassengerIDBase = 892

type job struct {
	id          string
	competition string
	message     string
	predictions []byte
}

// Service owns the submission lifecycle. Every submission is created pending
// and moved to exactly one terminal state by the single worker goroutine, so
// status transitions never race.
type Service struct {
	repo      *database.Repository
	submitter Submitter
	scorer    *fingerprint.Scorer
	logger    *monitoring.Logger

	mu     sync.Mutex
	closed bool
	jobs   chan job
	done   chan struct{}
}

// NewService starts the submission worker.
func NewService(repo *database.Repository, submitter Submitter, scorer *fingerprint.Scorer, logger *monitoring.Logger) *Service {
	s := &Service{
		repo:      repo,
		submitter: submitter,
		scorer:    scorer,
		logger:    logger,
		jobs:      make(chan job, 16),
		done:      make(chan struct{}),
	}
	go s.worker()
	return s
}

// Close stops accepting new submissions and drains the worker. Pending jobs
// already enqueued still run.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.jobs)
	<-s.done
}

// Create scores the request records, persists a pending submission and hands
// the upload to the worker. Scoring failures reject the request before
// anything is persisted.
func (s *Service) Create(ctx context.Context, req types.SubmissionRequest) (*types.Submission, error) {
	if len(req.Records) == 0 {
		return nil, fmt.Errorf("submission requires at least one record")
	}

	resp, err := s.scorer.ScoreBatch(req.Records)
	if err != nil {
		return nil, err
	}

	predictions, err := buildPredictionCSV(req.Records, resp.Results)
	if err != nil {
		return nil, err
	}

	// The lock spans persist and enqueue so a concurrent Close can never
	// leave a pending row without a queued job, or send on a closed channel.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("submission service is shutting down")
	}

	sub, err := s.repo.CreateSubmission(ctx, req)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	s.jobs <- job{
		id:          sub.ID,
		competition: sub.Competition,
		message:     sub.Message,
		predictions: predictions,
	}
	s.mu.Unlock()

	s.logger.SubmissionLogger(sub.ID, sub.Competition, string(sub.Status))
	return sub, nil
}

// Get returns a submission by ID, or nil when it does not exist.
func (s *Service) Get(ctx context.Context, id string) (*types.Submission, error) {
	return s.repo.GetSubmission(ctx, id)
}

// List returns recent submissions, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]types.Submission, error) {
	return s.repo.ListSubmissions(ctx, limit)
}

func (s *Service) worker() {
	defer close(s.done)
	for j := range s.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err := s.submitter.Submit(ctx, j.competition, j.message, j.predictions)
		cancel()

		status := types.SubmissionCompleted
		errMsg := ""
		if err != nil {
			status = types.SubmissionFailed
			errMsg = err.Error()
			s.logger.Error("Submission upload failed",
				"submission_id", j.id,
				"competition", j.competition,
				"error", err.Error())
		}

		updateCtx, cancelUpdate := context.WithTimeout(context.Background(), 10*time.Second)
		if uerr := s.repo.UpdateSubmissionStatus(updateCtx, j.id, status, errMsg); uerr != nil {
			s.logger.Error("Submission status update failed",
				"submission_id", j.id,
				"error", uerr.Error())
		}
		cancelUpdate()

		s.logger.SubmissionLogger(j.id, j.competition, string(status))
	}
}

// buildPredictionCSV renders the Kaggle-shaped PassengerId,Survived file from
// the scored results.
func buildPredictionCSV(recs []types.PassengerRecord, results []types.PassengerResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"PassengerId", "Survived"}); err != nil {
		return nil, fmt.Errorf("failed to write prediction header: %w", err)
	}
	for i, res := range results {
		id := defaultPassengerIDBase + res.InputIndex
		if recs[i].PassengerID != nil {
			id = *recs[i].PassengerID
		}
		row := []string{strconv.Itoa(id), strconv.Itoa(res.Label)}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write prediction row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush prediction file: %w", err)
	}
	return buf.Bytes(), nil
}
