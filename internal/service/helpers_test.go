package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/cache"
	"github.com/stemsi/exstem-assessment/internal/event"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/queue"
	"github.com/stemsi/exstem-assessment/internal/repository/memstore"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type recordingInvalidator struct {
	mu       sync.Mutex
	patterns []string
}

func (r *recordingInvalidator) InvalidateByPattern(_ context.Context, pattern string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, pattern)
	return 0, nil
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []*queue.Job
}

func (q *recordingQueue) Enqueue(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

type fixture struct {
	store       *memstore.Store
	cache       *cache.MemoryCache
	invalidator *recordingInvalidator
	jobs        *recordingQueue
	publisher   *event.MockPublisher

	tracker    *ProgressTracker
	answers    *AnswerService
	sync       *SyncService
	completion *CompletionService
	allocator  *AllocatorService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:       memstore.New(),
		cache:       cache.NewMemoryCache(1000, time.Minute),
		invalidator: &recordingInvalidator{},
		jobs:        &recordingQueue{},
		publisher:   event.NewMockPublisher(),
	}
	log := zerolog.Nop()
	order := model.DefaultCategoryOrder

	f.tracker = NewProgressTracker(f.store, f.cache, time.Minute, order, log)
	f.answers = NewAnswerService(f.store, f.cache, time.Minute, f.tracker, log)
	f.sync = NewSyncService(f.store, f.cache, time.Minute, order, log)
	f.completion = NewCompletionService(f.store, f.cache, time.Minute, f.invalidator, f.jobs, f.publisher, 3, log)
	f.allocator = NewAllocatorService(f.store, f.cache, time.Minute, order, model.DefaultQuestionsPerCategory, log)

	clock := func() time.Time { return testNow }
	f.tracker.now = clock
	f.answers.now = clock
	f.sync.now = clock
	f.completion.now = clock
	f.allocator.now = clock
	return f
}

// seeded is a session whose question sets were assigned directly.
type seeded struct {
	sessionID uuid.UUID
	roleID    int
	sets      map[model.Category][]uuid.UUID
}

// q returns the question at index i of category c.
func (s *seeded) q(c model.Category, i int) uuid.UUID {
	return s.sets[c][i]
}

// seedSession creates an active, generated session whose sets for roleID have the
// given lengths. Every question has four options and option 0 is correct.
func (f *fixture) seedSession(t *testing.T, roleID int, lengths map[model.Category]int) *seeded {
	t.Helper()
	ctx := context.Background()

	session := &model.Session{Title: "Onboarding", IsActive: true, QuestionsPerCategory: 10}
	if err := f.store.Sessions().Create(ctx, session); err != nil {
		t.Fatalf("create session: %v", err)
	}

	s := &seeded{sessionID: session.ID, roleID: roleID, sets: map[model.Category][]uuid.UUID{}}
	f.addSets(t, s, roleID, lengths)

	if err := f.store.Sessions().MarkQuestionsGenerated(ctx, session.ID); err != nil {
		t.Fatalf("mark generated: %v", err)
	}
	return s
}

func (f *fixture) addSets(t *testing.T, s *seeded, roleID int, lengths map[model.Category]int) {
	t.Helper()
	var sets []model.CategoryQuestionSet
	for _, c := range model.DefaultCategoryOrder {
		n, ok := lengths[c]
		if !ok {
			continue
		}
		ids := make([]uuid.UUID, n)
		for i := range ids {
			ids[i] = uuid.New()
			f.store.AddQuestion(model.Question{
				ID:            ids[i],
				QuestionText:  "Question " + string(c),
				Options:       []string{"a", "b", "c", "d"},
				CorrectOption: 0,
				Category:      c,
			}, roleID)
		}
		if roleID == s.roleID {
			s.sets[c] = ids
		}
		sets = append(sets, model.CategoryQuestionSet{
			SessionID:      s.sessionID,
			RoleID:         roleID,
			Category:       c,
			QuestionIDs:    ids,
			QuestionsCount: n,
		})
	}
	if err := f.store.QuestionSets().CreateBatch(context.Background(), sets); err != nil {
		t.Fatalf("create sets: %v", err)
	}
}

// start begins the session for userID and fails the test on error.
func (f *fixture) start(t *testing.T, s *seeded, userID int) *model.ProgressView {
	t.Helper()
	view, err := f.tracker.StartOrResume(context.Background(), userID, s.sessionID, s.roleID)
	if err != nil {
		t.Fatalf("StartOrResume failed: %v", err)
	}
	return view
}

// syncAnswers submits one sync batch answering the given questions; the first
// correct of them with option 0, the rest with option 1.
func (f *fixture) syncAnswers(t *testing.T, s *seeded, userID int, questions []uuid.UUID, correct int, status model.ProgressStatus) *model.SyncResult {
	t.Helper()
	req := &model.SyncRequest{Status: status}
	for i, qid := range questions {
		option := 1
		if i < correct {
			option = 0
		}
		req.Answers = append(req.Answers, model.SyncAnswer{
			QuestionID:     qid,
			SelectedOption: option,
			AnsweredAt:     testNow.Add(time.Duration(i) * time.Second),
		})
	}
	res, err := f.sync.SyncUserProgress(context.Background(), userID, s.sessionID, req)
	if err != nil {
		t.Fatalf("SyncUserProgress failed: %v", err)
	}
	return res
}

// all returns every assigned question in category order.
func (s *seeded) all() []uuid.UUID {
	var ids []uuid.UUID
	for _, c := range model.DefaultCategoryOrder {
		ids = append(ids, s.sets[c]...)
	}
	return ids
}

func intPtr(i int) *int { return &i }
