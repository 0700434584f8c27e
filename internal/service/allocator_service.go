package service

import (
	"context"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/cache"
	"github.com/stemsi/exstem-assessment/internal/metrics"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
	"github.com/stemsi/exstem-assessment/internal/response"
)

// SelectQuestions picks up to k candidates, least used first. Candidates are
// shuffled before a stable sort on usage, so ties are broken at random while a
// more-used question never displaces a less-used one.
func SelectQuestions(candidates []model.QuestionCandidate, k int, shuffle func(n int, swap func(i, j int))) []uuid.UUID {
	pool := append([]model.QuestionCandidate(nil), candidates...)
	shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].UsageCount < pool[j].UsageCount })

	if k > len(pool) {
		k = len(pool)
	}
	ids := make([]uuid.UUID, 0, k)
	for _, c := range pool[:k] {
		ids = append(ids, c.QuestionID)
	}
	return ids
}

// AllocatorService manages assessment sessions and allocates their questions.
type AllocatorService struct {
	store              repository.Store
	catalog            *catalog
	order              model.CategoryOrder
	defaultPerCategory int
	log                zerolog.Logger
	now                func() time.Time
	shuffle            func(n int, swap func(i, j int))
}

// NewAllocatorService creates a new AllocatorService.
func NewAllocatorService(
	store repository.Store,
	c cache.Cache,
	cacheTTL time.Duration,
	order model.CategoryOrder,
	defaultPerCategory int,
	log zerolog.Logger,
) *AllocatorService {
	log = log.With().Str("component", "allocator_service").Logger()
	return &AllocatorService{
		store:              store,
		catalog:            newCatalog(c, cacheTTL, log),
		order:              order,
		defaultPerCategory: defaultPerCategory,
		log:                log,
		now:                time.Now,
		shuffle:            rand.Shuffle,
	}
}

// CreateSession inserts a new assessment session. Questions are generated separately.
func (s *AllocatorService) CreateSession(ctx context.Context, req *model.CreateSessionRequest) (*model.Session, error) {
	session := &model.Session{
		Title:                req.Title,
		Description:          req.Description,
		IsActive:             true,
		TimeLimitSeconds:     req.TimeLimitSeconds,
		IsOnboarding:         req.IsOnboarding,
		QuestionsPerCategory: req.QuestionsPerCategory,
	}
	if req.IsActive != nil {
		session.IsActive = *req.IsActive
	}
	if session.QuestionsPerCategory <= 0 {
		session.QuestionsPerCategory = s.defaultPerCategory
	}

	if err := s.store.Sessions().Create(ctx, session); err != nil {
		return nil, err
	}
	s.log.Info().Str("session_id", session.ID.String()).Str("title", session.Title).Msg("Session created")
	return session, nil
}

// ListSessions returns a page of sessions, newest first.
func (s *AllocatorService) ListSessions(ctx context.Context, page, perPage int, activeOnly bool) ([]model.Session, *response.Pagination, error) {
	page, perPage = response.NormalizePage(page, perPage)

	sessions, total, err := s.store.Sessions().List(ctx, perPage, (page-1)*perPage, activeOnly)
	if err != nil {
		return nil, nil, err
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	return sessions, response.NewPagination(page, perPage, total), nil
}

// GenerateQuestionSets allocates one question set per role and category for a
// session and bumps the usage counter of every chosen question. Everything
// happens in one transaction.
func (s *AllocatorService) GenerateQuestionSets(ctx context.Context, sessionID uuid.UUID, roleIDs []int) ([]model.GeneratedSetSummary, error) {
	start := time.Now()
	roles := uniqueRoles(roleIDs)
	if len(roles) == 0 {
		return nil, ErrRolesRequired
	}
	for _, r := range roles {
		if r <= 0 {
			return nil, ErrInvalidRole
		}
	}

	var summaries []model.GeneratedSetSummary
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		session, err := tx.Sessions().GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			return notFoundAs(err, ErrSessionNotFound)
		}
		if session.QuestionsGenerated {
			return ErrQuestionsAlreadyGenerated
		}

		k := session.QuestionsPerCategory
		if k <= 0 {
			k = s.defaultPerCategory
		}

		sets := make([]model.CategoryQuestionSet, 0, len(roles)*len(s.order))
		var increments []model.UsageIncrement
		summaries = make([]model.GeneratedSetSummary, 0, cap(sets))

		for _, roleID := range roles {
			for _, category := range s.order {
				candidates, err := tx.Questions().ListCandidates(ctx, roleID, category)
				if err != nil {
					return err
				}
				chosen := SelectQuestions(candidates, k, s.shuffle)

				sets = append(sets, model.CategoryQuestionSet{
					SessionID:      sessionID,
					RoleID:         roleID,
					Category:       category,
					QuestionIDs:    chosen,
					QuestionsCount: len(chosen),
				})
				for _, qid := range chosen {
					increments = append(increments, model.UsageIncrement{QuestionID: qid, RoleID: roleID})
				}
				summaries = append(summaries, model.GeneratedSetSummary{
					RoleID:         roleID,
					Category:       category,
					QuestionsCount: len(chosen),
				})

				if len(chosen) < k {
					s.log.Warn().
						Str("session_id", sessionID.String()).
						Int("role_id", roleID).
						Str("category", string(category)).
						Int("wanted", k).
						Int("available", len(chosen)).
						Msg("Not enough questions for category")
				}
			}
		}

		if err := tx.QuestionSets().CreateBatch(ctx, sets); err != nil {
			return err
		}
		if err := tx.Usage().BulkIncrement(ctx, increments, sessionID, s.now()); err != nil {
			return err
		}
		return tx.Sessions().MarkQuestionsGenerated(ctx, sessionID)
	})
	metrics.Observe("generate", start, err)
	if err != nil {
		return nil, err
	}

	s.catalog.forget(ctx, sessionID, roles, s.order)
	metrics.QuestionSetsGenerated.Add(float64(len(summaries)))
	s.log.Info().
		Str("session_id", sessionID.String()).
		Ints("role_ids", roles).
		Int("sets", len(summaries)).
		Msg("Question sets generated")

	return summaries, nil
}

func uniqueRoles(roleIDs []int) []int {
	seen := make(map[int]bool, len(roleIDs))
	out := make([]int, 0, len(roleIDs))
	for _, r := range roleIDs {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
