package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/cache"
	"github.com/stemsi/exstem-assessment/internal/metrics"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// AnswerService records live answers, one question at a time.
type AnswerService struct {
	store   repository.Store
	catalog *catalog
	tracker *ProgressTracker
	log     zerolog.Logger
	now     func() time.Time
}

// NewAnswerService creates a new AnswerService.
func NewAnswerService(
	store repository.Store,
	c cache.Cache,
	cacheTTL time.Duration,
	tracker *ProgressTracker,
	log zerolog.Logger,
) *AnswerService {
	log = log.With().Str("component", "answer_service").Logger()
	return &AnswerService{
		store:   store,
		catalog: newCatalog(c, cacheTTL, log),
		tracker: tracker,
		log:     log,
		now:     time.Now,
	}
}

// AnswerQuestion scores selectedOption for the question at the user's current
// position, records it exactly once and advances the position.
func (s *AnswerService) AnswerQuestion(ctx context.Context, userID int, sessionID, questionID uuid.UUID, selectedOption int) (*model.AnswerResult, error) {
	start := time.Now()
	var result *model.AnswerResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := tx.Progress().GetForUpdate(ctx, userID, sessionID)
		if err != nil {
			return notFoundAs(err, ErrProgressNotFound)
		}
		switch p.Status {
		case model.ProgressCompleted:
			return ErrAlreadyCompleted
		case model.ProgressNotStarted:
			return ErrNotStarted
		}

		category, index, ok := p.Position()
		if !ok {
			return ErrProgressCorrupt
		}
		set, err := s.catalog.categorySet(ctx, tx, sessionID, p.RoleID, category)
		if err != nil {
			return err
		}
		expected, ok := set.QuestionAt(index)
		if !ok {
			return ErrProgressCorrupt
		}
		if expected != questionID {
			return ErrUnexpectedQuestion
		}

		q, err := s.catalog.question(ctx, tx, questionID)
		if err != nil {
			return err
		}
		if !q.ValidOption(selectedOption) {
			return ErrInvalidOption
		}
		isCorrect := selectedOption == q.CorrectOption
		now := s.now()

		inserted, err := tx.Answers().Upsert(ctx, &model.AnswerRecord{
			UserID:                userID,
			SessionID:             sessionID,
			QuestionID:            questionID,
			CategoryQuestionSetID: set.ID,
			SelectedOption:        selectedOption,
			IsCorrect:             isCorrect,
			AnsweredAt:            now,
		})
		if err != nil {
			return err
		}

		sets, err := s.catalog.roleSets(ctx, tx, sessionID, p.RoleID)
		if err != nil {
			return err
		}
		s.tracker.Advance(p, isCorrect, inserted, model.Lengths(sets), now)
		if err := tx.Progress().Update(ctx, p); err != nil {
			return err
		}

		next, err := s.tracker.currentQuestion(ctx, tx, p, sets)
		if err != nil {
			return err
		}

		outcome := "inserted"
		if !inserted {
			outcome = "updated"
		}
		metrics.AnswersRecorded.WithLabelValues("live", outcome).Inc()

		result = &model.AnswerResult{
			IsCorrect:    isCorrect,
			NextQuestion: next,
			Completed:    p.Status == model.ProgressCompleted,
			Progress:     p,
		}
		return nil
	})
	metrics.Observe("answer", start, err)
	if err != nil {
		return nil, err
	}

	if result.Completed {
		s.log.Info().Int("user_id", userID).Str("session_id", sessionID.String()).Msg("All questions answered")
	}
	return result, nil
}
