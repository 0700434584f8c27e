package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/cache"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// ProgressTracker owns the per-user, per-session state machine
// not_started -> in_progress -> completed.
type ProgressTracker struct {
	store   repository.Store
	catalog *catalog
	order   model.CategoryOrder
	log     zerolog.Logger
	now     func() time.Time
}

// NewProgressTracker creates a new ProgressTracker.
func NewProgressTracker(
	store repository.Store,
	c cache.Cache,
	cacheTTL time.Duration,
	order model.CategoryOrder,
	log zerolog.Logger,
) *ProgressTracker {
	log = log.With().Str("component", "progress_tracker").Logger()
	return &ProgressTracker{
		store:   store,
		catalog: newCatalog(c, cacheTTL, log),
		order:   order,
		log:     log,
		now:     time.Now,
	}
}

// StartOrResume returns the user's progress in a session, creating and starting
// it on first entry. In-progress and completed progress is returned unchanged,
// even after the session was deactivated.
func (t *ProgressTracker) StartOrResume(ctx context.Context, userID int, sessionID uuid.UUID, roleID int) (*model.ProgressView, error) {
	if roleID <= 0 {
		return nil, ErrInvalidRole
	}

	var view *model.ProgressView
	err := t.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		session, err := tx.Sessions().GetByID(ctx, sessionID)
		if err != nil {
			return notFoundAs(err, ErrSessionNotFound)
		}

		p, err := t.lock(ctx, tx, userID, sessionID)
		if err != nil {
			return err
		}
		if p != nil {
			if p.RoleID != roleID {
				return ErrRoleMismatch
			}
			if p.Status != model.ProgressNotStarted {
				view, err = t.resume(ctx, tx, p)
				return err
			}
		}

		if !session.IsActive {
			return ErrSessionInactive
		}
		if !session.QuestionsGenerated {
			return ErrQuestionsNotGenerated
		}

		sets, err := t.catalog.roleSets(ctx, tx, sessionID, roleID)
		if err != nil {
			return err
		}
		first, ok := t.order.First(model.Lengths(sets))
		if !ok {
			return ErrNoQuestionsAssigned
		}
		now := t.now()

		if p == nil {
			fresh := &model.UserProgress{
				UserID:         userID,
				SessionID:      sessionID,
				RoleID:         roleID,
				CategoryScores: model.CategoryScores{},
			}
			t.begin(fresh, sets, first, now)

			created, err := tx.Progress().Create(ctx, fresh)
			if err != nil {
				return err
			}
			if created {
				t.log.Info().Int("user_id", userID).Str("session_id", sessionID.String()).
					Int("total_questions", fresh.TotalQuestions).Msg("Assessment started")
				view, err = t.view(ctx, tx, fresh, sets)
				return err
			}

			// Lost a concurrent first start; use the winner's row.
			if p, err = t.lock(ctx, tx, userID, sessionID); err != nil {
				return err
			}
			if p == nil {
				return fmt.Errorf("progress for user %d vanished after conflicting insert", userID)
			}
			if p.RoleID != roleID {
				return ErrRoleMismatch
			}
		}

		if p.Status == model.ProgressNotStarted {
			t.begin(p, sets, first, now)
			if err := tx.Progress().Update(ctx, p); err != nil {
				return err
			}
			t.log.Info().Int("user_id", userID).Str("session_id", sessionID.String()).Msg("Assessment restarted")
		}

		view, err = t.view(ctx, tx, p, sets)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// resume returns existing progress as stored.
func (t *ProgressTracker) resume(ctx context.Context, tx repository.Tx, p *model.UserProgress) (*model.ProgressView, error) {
	if p.Status != model.ProgressInProgress {
		return &model.ProgressView{Progress: p}, nil
	}
	sets, err := t.catalog.roleSets(ctx, tx, p.SessionID, p.RoleID)
	if err != nil {
		return nil, err
	}
	return t.view(ctx, tx, p, sets)
}

// GetProgress returns a read-only snapshot of the user's progress.
func (t *ProgressTracker) GetProgress(ctx context.Context, userID int, sessionID uuid.UUID) (*model.ProgressView, error) {
	p, err := t.store.Progress().Get(ctx, userID, sessionID)
	if err != nil {
		return nil, notFoundAs(err, ErrProgressNotFound)
	}
	return t.resume(ctx, t.store, p)
}

// ResetProgress prepares a retake: the user's answers for the session are
// deleted and the progress row returns to not_started with the same id.
func (t *ProgressTracker) ResetProgress(ctx context.Context, userID int, sessionID uuid.UUID) (*model.UserProgress, error) {
	var reset *model.UserProgress
	err := t.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := t.lock(ctx, tx, userID, sessionID)
		if err != nil {
			return err
		}
		if p == nil {
			return ErrNothingToRetake
		}

		deleted, err := tx.Answers().DeleteBySession(ctx, userID, sessionID)
		if err != nil {
			return err
		}

		p.Status = model.ProgressNotStarted
		p.ClearPosition()
		p.AnsweredQuestions = 0
		p.CorrectAnswers = 0
		p.Score = nil
		p.CategoryScores = model.CategoryScores{}
		p.CertificateID = nil
		p.StartedAt = nil
		p.LastActiveAt = nil
		p.CompletedAt = nil
		if err := tx.Progress().Update(ctx, p); err != nil {
			return err
		}

		t.log.Info().Int("user_id", userID).Str("session_id", sessionID.String()).
			Int64("answers_deleted", deleted).Msg("Progress reset for retake")
		reset = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reset, nil
}

// Advance records one answer outcome on p and moves it to the next position:
// the next index in the current category, else the first question of the next
// non-empty category, else completed. Counters change only when counted is set,
// so a re-recorded answer never counts twice.
func (t *ProgressTracker) Advance(p *model.UserProgress, isCorrect, counted bool, lengths map[model.Category]int, now time.Time) {
	if counted {
		p.AnsweredQuestions++
		if isCorrect {
			p.CorrectAnswers++
		}
	}
	p.LastActiveAt = &now

	category, index, ok := p.Position()
	if ok && index+1 < lengths[category] {
		p.SetPosition(category, index+1)
		return
	}
	if ok {
		if next, found := t.order.NextAfter(category, lengths); found {
			p.SetPosition(next, 0)
			return
		}
	}

	p.Status = model.ProgressCompleted
	p.CompletedAt = &now
	p.ClearPosition()
}

// lock reads the progress row for update; a missing row is returned as nil.
func (t *ProgressTracker) lock(ctx context.Context, tx repository.Tx, userID int, sessionID uuid.UUID) (*model.UserProgress, error) {
	p, err := tx.Progress().GetForUpdate(ctx, userID, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

func (t *ProgressTracker) begin(p *model.UserProgress, sets []model.CategoryQuestionSet, first model.Category, now time.Time) {
	p.Status = model.ProgressInProgress
	p.TotalQuestions = model.TotalQuestions(sets)
	p.SetPosition(first, 0)
	p.StartedAt = &now
	p.LastActiveAt = &now
}

// view attaches the sanitized current question to p.
func (t *ProgressTracker) view(ctx context.Context, tx repository.Tx, p *model.UserProgress, sets []model.CategoryQuestionSet) (*model.ProgressView, error) {
	q, err := t.currentQuestion(ctx, tx, p, sets)
	if err != nil {
		return nil, err
	}
	return &model.ProgressView{Progress: p, CurrentQuestion: q}, nil
}

func (t *ProgressTracker) currentQuestion(ctx context.Context, tx repository.Tx, p *model.UserProgress, sets []model.CategoryQuestionSet) (*model.QuestionForUser, error) {
	if p.Status != model.ProgressInProgress {
		return nil, nil
	}
	category, index, ok := p.Position()
	if !ok {
		return nil, ErrProgressCorrupt
	}
	set := findSet(sets, category)
	if set == nil {
		return nil, ErrProgressCorrupt
	}
	questionID, ok := set.QuestionAt(index)
	if !ok {
		return nil, ErrProgressCorrupt
	}
	q, err := t.catalog.question(ctx, tx, questionID)
	if err != nil {
		return nil, err
	}
	return q.ForUser(index, set.QuestionsCount), nil
}
