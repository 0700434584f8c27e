package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/cache"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/event"
	"github.com/stemsi/exstem-assessment/internal/metrics"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/queue"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// ScoreSummary is the outcome of scoring a participant's answers.
type ScoreSummary struct {
	Score          float64
	CategoryScores model.CategoryScores
	Answered       int
	Correct        int
	Elapsed        time.Duration
}

// ComputeScores derives the overall and per-category scores from per-category
// tallies. Scores are percentages rounded to two decimals; categories without
// answers get no entry.
func ComputeScores(tallies []model.CategoryTally) ScoreSummary {
	summary := ScoreSummary{CategoryScores: model.CategoryScores{}}
	var first, last time.Time
	for _, t := range tallies {
		if t.Answered == 0 {
			continue
		}
		summary.Answered += t.Answered
		summary.Correct += t.Correct
		summary.CategoryScores[t.Category.ScoreKey()] = percent(t.Correct, t.Answered)

		if first.IsZero() || t.FirstAnsweredAt.Before(first) {
			first = t.FirstAnsweredAt
		}
		if t.LastAnsweredAt.After(last) {
			last = t.LastAnsweredAt
		}
	}
	if summary.Answered > 0 {
		summary.Score = percent(summary.Correct, summary.Answered)
		summary.Elapsed = last.Sub(first)
	}
	return summary
}

func percent(correct, total int) float64 {
	return math.Round(float64(correct)/float64(total)*100*100) / 100
}

// NewCertificateID builds a human-readable certificate id such as CERT-20260301-1A2B3C4D.
func NewCertificateID(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("CERT-%s-%s", at.UTC().Format("20060102"), suffix)
}

// CompletionService scores completed assessments, ranks them against peers and
// hands certificate issuance to the background worker.
type CompletionService struct {
	store       repository.Store
	catalog     *catalog
	invalidator cache.PatternInvalidator
	jobs        queue.Enqueuer
	publisher   event.Publisher
	maxAttempts int
	log         zerolog.Logger
	now         func() time.Time
}

// NewCompletionService creates a new CompletionService.
func NewCompletionService(
	store repository.Store,
	c cache.Cache,
	cacheTTL time.Duration,
	invalidator cache.PatternInvalidator,
	jobs queue.Enqueuer,
	publisher event.Publisher,
	maxAttempts int,
	log zerolog.Logger,
) *CompletionService {
	log = log.With().Str("component", "completion_service").Logger()
	return &CompletionService{
		store:       store,
		catalog:     newCatalog(c, cacheTTL, log),
		invalidator: invalidator,
		jobs:        jobs,
		publisher:   publisher,
		maxAttempts: maxAttempts,
		log:         log,
		now:         time.Now,
	}
}

// CompleteSession scores a completed session exactly once.
func (s *CompletionService) CompleteSession(ctx context.Context, sessionID uuid.UUID, userID int) (*model.CompletionResult, error) {
	start := time.Now()
	var (
		result *model.CompletionResult
		roleID int
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := tx.Progress().GetForUpdate(ctx, userID, sessionID)
		if err != nil {
			return notFoundAs(err, ErrProgressNotFound)
		}
		if p.Status != model.ProgressCompleted {
			return ErrNotCompleted
		}
		if p.Score != nil {
			return ErrCompletionProcessed
		}
		roleID = p.RoleID

		sets, err := s.catalog.roleSets(ctx, tx, sessionID, p.RoleID)
		if err != nil {
			return err
		}
		answered, err := tx.Answers().CountDistinctAnswered(ctx, userID, setIDs(sets))
		if err != nil {
			return err
		}
		if answered < p.TotalQuestions {
			return ErrIncompleteAnswers
		}

		tallies, err := tx.Answers().AggregateByCategory(ctx, userID, sessionID)
		if err != nil {
			return err
		}
		summary := ComputeScores(tallies)

		p.AnsweredQuestions = summary.Answered
		p.CorrectAnswers = summary.Correct
		higher, err := tx.Progress().CountHigherRatio(ctx, sessionID, p.RoleID, userID, p.Ratio())
		if err != nil {
			return err
		}

		now := s.now()
		score := summary.Score
		p.Score = &score
		p.CategoryScores = summary.CategoryScores
		p.LastActiveAt = &now

		result = &model.CompletionResult{
			Score:                 score,
			CategoryScores:        summary.CategoryScores,
			CompletionTimeSeconds: int64(summary.Elapsed / time.Second),
			Rank:                  higher + 1,
		}
		if score >= model.PassingScore {
			certID := NewCertificateID(now)
			p.CertificateID = &certID
			result.CertificateID = certID
		}

		return tx.Progress().Update(ctx, p)
	})
	metrics.Observe("complete", start, err)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int("user_id", userID).
		Str("session_id", sessionID.String()).
		Float64("score", result.Score).
		Int("rank", result.Rank).
		Msg("Assessment scored")

	s.afterCommit(ctx, sessionID, userID, roleID, result)
	return result, nil
}

// afterCommit runs the side effects of a completion. Failures are logged only:
// the score is already durable.
func (s *CompletionService) afterCommit(ctx context.Context, sessionID uuid.UUID, userID, roleID int, result *model.CompletionResult) {
	if result.CertificateID != "" {
		metrics.SessionsCompleted.WithLabelValues("eligible").Inc()
		s.enqueueCertificate(ctx, &model.CertificateRequest{
			CertificateID:         result.CertificateID,
			UserID:                userID,
			SessionID:             sessionID,
			RoleID:                roleID,
			Score:                 result.Score,
			CategoryScores:        result.CategoryScores,
			CompletionTimeSeconds: result.CompletionTimeSeconds,
			Rank:                  result.Rank,
		})
	} else {
		metrics.SessionsCompleted.WithLabelValues("not_eligible").Inc()
	}

	pattern := config.CacheKey.SessionRolePattern(sessionID, roleID)
	if n, err := s.invalidator.InvalidateByPattern(ctx, pattern); err != nil {
		s.log.Warn().Err(err).Str("pattern", pattern).Msg("Cache invalidation failed")
	} else {
		s.log.Debug().Str("pattern", pattern).Int("keys", n).Msg("Cache invalidated")
	}

	err := s.publisher.Publish(ctx, event.New(event.AssessmentCompleted, userID, sessionID, result))
	switch {
	case errors.Is(err, event.ErrDisabled):
		s.log.Debug().Str("session_id", sessionID.String()).Msg("Event publishing disabled, completion event skipped")
	case err != nil:
		s.log.Error().Err(err).Int("user_id", userID).Str("session_id", sessionID.String()).
			Msg("Failed to publish completion event")
	}
}

func (s *CompletionService) enqueueCertificate(ctx context.Context, req *model.CertificateRequest) {
	job, err := queue.NewJob(model.CertificateJobName, req, s.maxAttempts)
	if err == nil {
		err = s.jobs.Enqueue(ctx, job)
	}
	if err != nil {
		s.log.Error().Err(err).Str("certificate_id", req.CertificateID).Int("user_id", req.UserID).
			Msg("Failed to enqueue certificate job")
		return
	}
	metrics.CertificateJobs.WithLabelValues("enqueued").Inc()
}
