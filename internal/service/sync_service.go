package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/cache"
	"github.com/stemsi/exstem-assessment/internal/metrics"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// RecommendSyncInterval returns how many seconds a client should wait before its
// next sync, given how many new answers the last batch carried.
func RecommendSyncInterval(newAnswers int) int {
	switch {
	case newAnswers >= 10:
		return 5
	case newAnswers >= 3:
		return 15
	case newAnswers >= 1:
		return 30
	default:
		return 60
	}
}

// SyncService reconciles answers buffered by a disconnected client.
type SyncService struct {
	store   repository.Store
	catalog *catalog
	order   model.CategoryOrder
	log     zerolog.Logger
	now     func() time.Time
}

// NewSyncService creates a new SyncService.
func NewSyncService(
	store repository.Store,
	c cache.Cache,
	cacheTTL time.Duration,
	order model.CategoryOrder,
	log zerolog.Logger,
) *SyncService {
	log = log.With().Str("component", "sync_service").Logger()
	return &SyncService{
		store:   store,
		catalog: newCatalog(c, cacheTTL, log),
		order:   order,
		log:     log,
		now:     time.Now,
	}
}

// acceptedAnswer is a sync item that passed validation.
type acceptedAnswer struct {
	model.SyncAnswer
	setID     uuid.UUID
	isCorrect bool
}

// SyncUserProgress applies a batch of answers. The server decides the resulting
// status and position; the client's own view is advisory.
func (s *SyncService) SyncUserProgress(ctx context.Context, userID int, sessionID uuid.UUID, req *model.SyncRequest) (*model.SyncResult, error) {
	start := time.Now()
	var result *model.SyncResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := tx.Progress().GetForUpdate(ctx, userID, sessionID)
		if err != nil {
			return notFoundAs(err, ErrProgressNotFound)
		}
		if p.Status == model.ProgressCompleted {
			// A retried sync after completion must not change anything.
			result = syncResult(p, 0, 0, 0)
			return nil
		}

		sets, err := s.catalog.roleSets(ctx, tx, sessionID, p.RoleID)
		if err != nil {
			return err
		}
		setOf := make(map[uuid.UUID]uuid.UUID)
		for _, set := range sets {
			for _, qid := range set.QuestionIDs {
				setOf[qid] = set.ID
			}
		}

		existing, err := tx.Answers().ListBySession(ctx, userID, sessionID)
		if err != nil {
			return err
		}

		now := s.now()
		accepted, ignored, err := s.accept(ctx, tx, latestPerQuestion(req.Answers), setOf, now)
		if err != nil {
			return err
		}

		records := make([]model.AnswerRecord, 0, len(accepted))
		inserted, updated, insertedCorrect := 0, 0, 0
		for _, a := range accepted {
			records = append(records, model.AnswerRecord{
				UserID:                userID,
				SessionID:             sessionID,
				QuestionID:            a.QuestionID,
				CategoryQuestionSetID: a.setID,
				SelectedOption:        a.SelectedOption,
				IsCorrect:             a.isCorrect,
				AnsweredAt:            a.AnsweredAt,
			})
			if _, ok := existing[a.QuestionID]; ok {
				updated++
				continue
			}
			inserted++
			if a.isCorrect {
				insertedCorrect++
			}
		}
		if err := tx.Answers().UpsertBatch(ctx, records); err != nil {
			return err
		}

		p.AnsweredQuestions += inserted
		p.CorrectAnswers += insertedCorrect

		answered, err := tx.Answers().CountDistinctAnswered(ctx, userID, setIDs(sets))
		if err != nil {
			return err
		}

		if req.Status == model.ProgressCompleted && answered < p.TotalQuestions {
			s.log.Info().Int("user_id", userID).Str("session_id", sessionID.String()).
				Int("answered", answered).Int("total", p.TotalQuestions).
				Msg("Client claimed completion early, keeping session in progress")
		}

		if p.TotalQuestions > 0 && answered >= p.TotalQuestions {
			p.Status = model.ProgressCompleted
			p.CompletedAt = &now
			p.ClearPosition()
		} else {
			if p.Status == model.ProgressNotStarted {
				p.Status = model.ProgressInProgress
				p.TotalQuestions = model.TotalQuestions(sets)
				p.StartedAt = &now
			}
			for _, a := range accepted {
				existing[a.QuestionID] = model.AnswerRecord{QuestionID: a.QuestionID}
			}
			s.reposition(p, sets, existing)
		}
		p.LastActiveAt = &now
		s.compareClientState(p, req.ClientState)

		if err := tx.Progress().Update(ctx, p); err != nil {
			return err
		}

		metrics.AnswersRecorded.WithLabelValues("sync", "inserted").Add(float64(inserted))
		metrics.AnswersRecorded.WithLabelValues("sync", "updated").Add(float64(updated))
		metrics.AnswersRecorded.WithLabelValues("sync", "ignored").Add(float64(ignored))

		result = syncResult(p, inserted, updated, ignored)
		return nil
	})
	metrics.Observe("sync", start, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// latestPerQuestion collapses repeated answers to the same question, keeping the
// one answered last. Among equal timestamps the later item in the batch wins.
func latestPerQuestion(answers []model.SyncAnswer) []model.SyncAnswer {
	index := make(map[uuid.UUID]int, len(answers))
	out := make([]model.SyncAnswer, 0, len(answers))
	for _, a := range answers {
		i, seen := index[a.QuestionID]
		if !seen {
			index[a.QuestionID] = len(out)
			out = append(out, a)
			continue
		}
		if !a.AnsweredAt.Before(out[i].AnsweredAt) {
			out[i] = a
		}
	}
	return out
}

// accept drops items whose question is not assigned to the user or whose option
// is out of range, and scores the rest.
func (s *SyncService) accept(ctx context.Context, tx repository.Tx, answers []model.SyncAnswer, setOf map[uuid.UUID]uuid.UUID, now time.Time) ([]acceptedAnswer, int, error) {
	accepted := make([]acceptedAnswer, 0, len(answers))
	ignored := 0
	for _, a := range answers {
		setID, ok := setOf[a.QuestionID]
		if !ok {
			ignored++
			continue
		}
		q, err := s.catalog.question(ctx, tx, a.QuestionID)
		if err != nil {
			if errors.Is(err, ErrQuestionNotFound) {
				ignored++
				continue
			}
			return nil, 0, err
		}
		if !q.ValidOption(a.SelectedOption) {
			ignored++
			continue
		}
		if a.AnsweredAt.IsZero() {
			a.AnsweredAt = now
		}
		accepted = append(accepted, acceptedAnswer{
			SyncAnswer: a,
			setID:      setID,
			isCorrect:  a.SelectedOption == q.CorrectOption,
		})
	}
	return accepted, ignored, nil
}

// reposition moves p to the first unanswered question in category order.
func (s *SyncService) reposition(p *model.UserProgress, sets []model.CategoryQuestionSet, answered map[uuid.UUID]model.AnswerRecord) {
	for _, category := range s.order {
		set := findSet(sets, category)
		if set == nil {
			continue
		}
		for i, qid := range set.QuestionIDs {
			if _, ok := answered[qid]; !ok {
				p.SetPosition(category, i)
				return
			}
		}
	}
}

func (s *SyncService) compareClientState(p *model.UserProgress, cs *model.ClientState) {
	if cs == nil || cs.CurrentCategory == nil || cs.CurrentQuestionIndex == nil {
		return
	}
	category, index, ok := p.Position()
	if ok && category == *cs.CurrentCategory && index == *cs.CurrentQuestionIndex {
		return
	}
	s.log.Debug().
		Int("user_id", p.UserID).
		Str("session_id", p.SessionID.String()).
		Str("client_category", string(*cs.CurrentCategory)).
		Int("client_index", *cs.CurrentQuestionIndex).
		Str("server_status", string(p.Status)).
		Msg("Client position differs from server position")
}

func syncResult(p *model.UserProgress, inserted, updated, ignored int) *model.SyncResult {
	return &model.SyncResult{
		Status:               p.Status,
		Inserted:             inserted,
		Updated:              updated,
		Ignored:              ignored,
		AnsweredQuestions:    p.AnsweredQuestions,
		CorrectAnswers:       p.CorrectAnswers,
		TotalQuestions:       p.TotalQuestions,
		CurrentCategory:      p.CurrentCategory,
		CurrentQuestionIndex: p.CurrentQuestionIndex,
		NextSyncSeconds:      RecommendSyncInterval(inserted),
	}
}
