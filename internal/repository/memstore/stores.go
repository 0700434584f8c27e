package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// ErrUniqueViolation mirrors a unique constraint failure of the relational store.
var ErrUniqueViolation = errors.New("unique constraint violation")

type sessionStore struct{ v *view }

func (r sessionStore) Create(ctx context.Context, s *model.Session) error {
	return r.v.write("sessions.Create", func(st *state) error {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		if _, ok := st.sessions[s.ID]; ok {
			return fmt.Errorf("session %s: %w", s.ID, ErrUniqueViolation)
		}
		now := time.Now()
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		s.UpdatedAt = s.CreatedAt
		st.sessions[s.ID] = *s
		return nil
	})
}

func (r sessionStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	var out *model.Session
	err := r.v.read("sessions.GetByID", func(st *state) error {
		s, ok := st.sessions[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &s
		return nil
	})
	return out, err
}

func (r sessionStore) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return r.GetByID(ctx, id)
}

func (r sessionStore) List(ctx context.Context, limit, offset int, activeOnly bool) ([]model.Session, int, error) {
	var out []model.Session
	total := 0
	err := r.v.read("sessions.List", func(st *state) error {
		all := make([]model.Session, 0, len(st.sessions))
		for _, s := range st.sessions {
			if activeOnly && !s.IsActive {
				continue
			}
			all = append(all, s)
		}
		sort.Slice(all, func(i, j int) bool {
			if all[i].CreatedAt.Equal(all[j].CreatedAt) {
				return all[i].ID.String() < all[j].ID.String()
			}
			return all[i].CreatedAt.After(all[j].CreatedAt)
		})
		total = len(all)
		if offset >= len(all) {
			return nil
		}
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		out = all[offset:end]
		return nil
	})
	return out, total, err
}

func (r sessionStore) MarkQuestionsGenerated(ctx context.Context, id uuid.UUID) error {
	return r.v.write("sessions.MarkQuestionsGenerated", func(st *state) error {
		s, ok := st.sessions[id]
		if !ok {
			return repository.ErrNotFound
		}
		s.QuestionsGenerated = true
		s.UpdatedAt = time.Now()
		st.sessions[id] = s
		return nil
	})
}

type questionSetStore struct{ v *view }

func (r questionSetStore) CreateBatch(ctx context.Context, sets []model.CategoryQuestionSet) error {
	return r.v.write("questionSets.CreateBatch", func(st *state) error {
		seen := make(map[setKey]bool, len(sets))
		for _, s := range sets {
			k := setKey{s.SessionID, s.RoleID, s.Category}
			if _, ok := st.setIndex[k]; ok || seen[k] {
				return fmt.Errorf("question set %s/%d/%s: %w", s.SessionID, s.RoleID, s.Category, ErrUniqueViolation)
			}
			seen[k] = true
		}
		now := time.Now()
		for i := range sets {
			if sets[i].ID == uuid.Nil {
				sets[i].ID = uuid.New()
			}
			if sets[i].CreatedAt.IsZero() {
				sets[i].CreatedAt = now
			}
			s := sets[i]
			s.QuestionIDs = append([]uuid.UUID(nil), s.QuestionIDs...)
			st.sets[s.ID] = s
			st.setIndex[setKey{s.SessionID, s.RoleID, s.Category}] = s.ID
		}
		return nil
	})
}

func (r questionSetStore) ListBySessionAndRole(ctx context.Context, sessionID uuid.UUID, roleID int) ([]model.CategoryQuestionSet, error) {
	var out []model.CategoryQuestionSet
	err := r.v.read("questionSets.ListBySessionAndRole", func(st *state) error {
		for _, s := range st.sets {
			if s.SessionID == sessionID && s.RoleID == roleID {
				out = append(out, s)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
		return nil
	})
	return out, err
}

func (r questionSetStore) GetBySessionRoleCategory(ctx context.Context, sessionID uuid.UUID, roleID int, category model.Category) (*model.CategoryQuestionSet, error) {
	var out *model.CategoryQuestionSet
	err := r.v.read("questionSets.GetBySessionRoleCategory", func(st *state) error {
		id, ok := st.setIndex[setKey{sessionID, roleID, category}]
		if !ok {
			return repository.ErrNotFound
		}
		s := st.sets[id]
		out = &s
		return nil
	})
	return out, err
}

type questionStore struct{ v *view }

func (r questionStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	var out *model.Question
	err := r.v.read("questions.GetByID", func(st *state) error {
		q, ok := st.questions[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &q
		return nil
	})
	return out, err
}

func (r questionStore) ListCandidates(ctx context.Context, roleID int, category model.Category) ([]model.QuestionCandidate, error) {
	var out []model.QuestionCandidate
	err := r.v.read("questions.ListCandidates", func(st *state) error {
		for id, q := range st.questions {
			if q.Category != category || !hasRole(st.questionRoles[id], roleID) {
				continue
			}
			out = append(out, model.QuestionCandidate{
				QuestionID: id,
				UsageCount: st.usage[usageKey{id, roleID}].count,
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].QuestionID.String() < out[j].QuestionID.String() })
		return nil
	})
	return out, err
}

func hasRole(roles []int, roleID int) bool {
	for _, r := range roles {
		if r == roleID {
			return true
		}
	}
	return false
}

type usageStore struct{ v *view }

func (r usageStore) BulkIncrement(ctx context.Context, increments []model.UsageIncrement, sessionID uuid.UUID, at time.Time) error {
	return r.v.write("usage.BulkIncrement", func(st *state) error {
		for _, inc := range increments {
			k := usageKey{inc.QuestionID, inc.RoleID}
			row := st.usage[k]
			row.count++
			row.lastUsedAt = at
			row.lastSessionID = sessionID
			st.usage[k] = row
		}
		return nil
	})
}

type progressStore struct{ v *view }

func copyProgress(p model.UserProgress) *model.UserProgress {
	out := p
	if p.CurrentCategory != nil {
		c := *p.CurrentCategory
		out.CurrentCategory = &c
	}
	if p.CurrentQuestionIndex != nil {
		i := *p.CurrentQuestionIndex
		out.CurrentQuestionIndex = &i
	}
	if p.Score != nil {
		s := *p.Score
		out.Score = &s
	}
	if p.CertificateID != nil {
		c := *p.CertificateID
		out.CertificateID = &c
	}
	out.StartedAt = copyTime(p.StartedAt)
	out.LastActiveAt = copyTime(p.LastActiveAt)
	out.CompletedAt = copyTime(p.CompletedAt)
	if p.CategoryScores != nil {
		out.CategoryScores = make(model.CategoryScores, len(p.CategoryScores))
		for k, v := range p.CategoryScores {
			out.CategoryScores[k] = v
		}
	}
	return &out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func (r progressStore) Get(ctx context.Context, userID int, sessionID uuid.UUID) (*model.UserProgress, error) {
	var out *model.UserProgress
	err := r.v.read("progress.Get", func(st *state) error {
		p, ok := st.progress[progressKey{userID, sessionID}]
		if !ok {
			return repository.ErrNotFound
		}
		out = copyProgress(p)
		return nil
	})
	return out, err
}

func (r progressStore) GetForUpdate(ctx context.Context, userID int, sessionID uuid.UUID) (*model.UserProgress, error) {
	return r.Get(ctx, userID, sessionID)
}

func (r progressStore) Create(ctx context.Context, p *model.UserProgress) (bool, error) {
	created := false
	err := r.v.write("progress.Create", func(st *state) error {
		k := progressKey{p.UserID, p.SessionID}
		if _, ok := st.progress[k]; ok {
			return nil
		}
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		st.progress[k] = *copyProgress(*p)
		created = true
		return nil
	})
	return created, err
}

func (r progressStore) Update(ctx context.Context, p *model.UserProgress) error {
	return r.v.write("progress.Update", func(st *state) error {
		k := progressKey{p.UserID, p.SessionID}
		cur, ok := st.progress[k]
		if !ok || cur.ID != p.ID {
			return repository.ErrNotFound
		}
		st.progress[k] = *copyProgress(*p)
		return nil
	})
}

func (r progressStore) CountHigherRatio(ctx context.Context, sessionID uuid.UUID, roleID, excludeUserID int, ratio float64) (int, error) {
	n := 0
	err := r.v.read("progress.CountHigherRatio", func(st *state) error {
		for _, p := range st.progress {
			if p.SessionID != sessionID || p.RoleID != roleID || p.UserID == excludeUserID {
				continue
			}
			if p.Status != model.ProgressCompleted || p.AnsweredQuestions == 0 {
				continue
			}
			if p.Ratio() > ratio {
				n++
			}
		}
		return nil
	})
	return n, err
}

type answerStore struct{ v *view }

func (r answerStore) upsert(st *state, a *model.AnswerRecord) bool {
	k := answerKey{a.UserID, a.QuestionID, a.CategoryQuestionSetID}
	if cur, ok := st.answers[k]; ok {
		cur.SelectedOption = a.SelectedOption
		cur.IsCorrect = a.IsCorrect
		cur.AnsweredAt = a.AnsweredAt
		st.answers[k] = cur
		a.ID = cur.ID
		return false
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	st.answers[k] = *a
	return true
}

func (r answerStore) Upsert(ctx context.Context, a *model.AnswerRecord) (bool, error) {
	inserted := false
	err := r.v.write("answers.Upsert", func(st *state) error {
		inserted = r.upsert(st, a)
		return nil
	})
	return inserted, err
}

func (r answerStore) UpsertBatch(ctx context.Context, records []model.AnswerRecord) error {
	return r.v.write("answers.UpsertBatch", func(st *state) error {
		seen := make(map[answerKey]bool, len(records))
		for _, a := range records {
			k := answerKey{a.UserID, a.QuestionID, a.CategoryQuestionSetID}
			if seen[k] {
				return fmt.Errorf("answer %s affected twice in one batch: %w", a.QuestionID, ErrUniqueViolation)
			}
			seen[k] = true
		}
		for i := range records {
			r.upsert(st, &records[i])
		}
		return nil
	})
}

func (r answerStore) ListBySession(ctx context.Context, userID int, sessionID uuid.UUID) (map[uuid.UUID]model.AnswerRecord, error) {
	out := make(map[uuid.UUID]model.AnswerRecord)
	err := r.v.read("answers.ListBySession", func(st *state) error {
		for k, a := range st.answers {
			if k.userID == userID && a.SessionID == sessionID {
				out[a.QuestionID] = a
			}
		}
		return nil
	})
	return out, err
}

func (r answerStore) CountDistinctAnswered(ctx context.Context, userID int, setIDs []uuid.UUID) (int, error) {
	n := 0
	err := r.v.read("answers.CountDistinctAnswered", func(st *state) error {
		inSets := make(map[uuid.UUID]bool, len(setIDs))
		for _, id := range setIDs {
			inSets[id] = true
		}
		questions := make(map[uuid.UUID]bool)
		for k := range st.answers {
			if k.userID == userID && inSets[k.setID] {
				questions[k.questionID] = true
			}
		}
		n = len(questions)
		return nil
	})
	return n, err
}

func (r answerStore) AggregateByCategory(ctx context.Context, userID int, sessionID uuid.UUID) ([]model.CategoryTally, error) {
	var out []model.CategoryTally
	err := r.v.read("answers.AggregateByCategory", func(st *state) error {
		byCategory := make(map[model.Category]*model.CategoryTally)
		for k, a := range st.answers {
			if k.userID != userID || a.SessionID != sessionID {
				continue
			}
			set, ok := st.sets[k.setID]
			if !ok {
				continue
			}
			t, ok := byCategory[set.Category]
			if !ok {
				t = &model.CategoryTally{Category: set.Category, FirstAnsweredAt: a.AnsweredAt, LastAnsweredAt: a.AnsweredAt}
				byCategory[set.Category] = t
			}
			t.Answered++
			if a.IsCorrect {
				t.Correct++
			}
			if a.AnsweredAt.Before(t.FirstAnsweredAt) {
				t.FirstAnsweredAt = a.AnsweredAt
			}
			if a.AnsweredAt.After(t.LastAnsweredAt) {
				t.LastAnsweredAt = a.AnsweredAt
			}
		}
		for _, t := range byCategory {
			out = append(out, *t)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
		return nil
	})
	return out, err
}

func (r answerStore) DeleteBySession(ctx context.Context, userID int, sessionID uuid.UUID) (int64, error) {
	var n int64
	err := r.v.write("answers.DeleteBySession", func(st *state) error {
		for k, a := range st.answers {
			if k.userID == userID && a.SessionID == sessionID {
				delete(st.answers, k)
				n++
			}
		}
		return nil
	})
	return n, err
}
