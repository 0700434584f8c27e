package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/event"
	"github.com/stemsi/exstem-assessment/internal/model"
)

func TestComputeScores(t *testing.T) {
	start := testNow
	tallies := []model.CategoryTally{
		{Category: model.CategoryC, Answered: 2, Correct: 2, FirstAnsweredAt: start, LastAnsweredAt: start.Add(time.Minute)},
		{Category: model.CategoryR, Answered: 2, Correct: 1, FirstAnsweredAt: start.Add(2 * time.Minute), LastAnsweredAt: start.Add(5 * time.Minute)},
	}

	summary := ComputeScores(tallies)

	if summary.Score != 75 {
		t.Errorf("Expected score 75, got %.2f", summary.Score)
	}
	if summary.CategoryScores["cScore"] != 100 || summary.CategoryScores["rScore"] != 50 {
		t.Errorf("Unexpected category scores %v", summary.CategoryScores)
	}
	if len(summary.CategoryScores) != 2 {
		t.Errorf("Expected only answered categories, got %v", summary.CategoryScores)
	}
	if summary.Elapsed != 5*time.Minute {
		t.Errorf("Expected 5m elapsed, got %v", summary.Elapsed)
	}
}

func TestComputeScoresRoundsToTwoDecimals(t *testing.T) {
	summary := ComputeScores([]model.CategoryTally{
		{Category: model.CategoryI, Answered: 3, Correct: 1, FirstAnsweredAt: testNow, LastAnsweredAt: testNow},
	})
	if summary.Score != 33.33 {
		t.Errorf("Expected 33.33, got %v", summary.Score)
	}
}

func TestCompleteSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seedSession(t, 2, map[model.Category]int{model.CategoryC: 2, model.CategoryR: 2})
	f.start(t, s, 1)

	answers := []struct {
		id     uuid.UUID
		option int
	}{
		{s.q(model.CategoryC, 0), 0},
		{s.q(model.CategoryC, 1), 0},
		{s.q(model.CategoryR, 0), 0},
		{s.q(model.CategoryR, 1), 2},
	}
	for i, a := range answers {
		if _, err := f.answers.AnswerQuestion(ctx, 1, s.sessionID, a.id, a.option); err != nil {
			t.Fatalf("answer %d failed: %v", i, err)
		}
	}

	res, err := f.completion.CompleteSession(ctx, s.sessionID, 1)
	if err != nil {
		t.Fatalf("CompleteSession failed: %v", err)
	}
	if res.Score != 75 || res.CategoryScores["cScore"] != 100 || res.CategoryScores["rScore"] != 50 {
		t.Errorf("Unexpected scores %+v", res)
	}
	if res.Rank != 1 {
		t.Errorf("Expected rank 1, got %d", res.Rank)
	}
	if res.CertificateID != "" || len(f.jobs.jobs) != 0 {
		t.Errorf("Expected no certificate below 80, got %q and %d jobs", res.CertificateID, len(f.jobs.jobs))
	}

	p, _ := f.store.Progress().Get(ctx, 1, s.sessionID)
	if p.Score == nil || *p.Score != 75 {
		t.Errorf("Expected persisted score 75, got %v", p.Score)
	}

	if len(f.invalidator.patterns) != 1 || f.invalidator.patterns[0] != "session:"+s.sessionID.String()+":role:2:*" {
		t.Errorf("Unexpected invalidations %v", f.invalidator.patterns)
	}
	events := f.publisher.Events()
	if len(events) != 1 || events[0].Type != event.AssessmentCompleted {
		t.Errorf("Expected one assessment.completed event, got %+v", events)
	}

	_, err = f.completion.CompleteSession(ctx, s.sessionID, 1)
	if !errors.Is(err, ErrCompletionProcessed) {
		t.Errorf("Expected second completion to conflict, got %v", err)
	}
}

func TestCompleteSessionRejectsUnfinished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seedSession(t, 2, map[model.Category]int{model.CategoryC: 2})

	if _, err := f.completion.CompleteSession(ctx, s.sessionID, 1); !errors.Is(err, ErrProgressNotFound) {
		t.Errorf("Expected ErrProgressNotFound, got %v", err)
	}

	f.start(t, s, 1)
	f.syncAnswers(t, s, 1, s.all()[:1], 1, "")
	if _, err := f.completion.CompleteSession(ctx, s.sessionID, 1); !errors.Is(err, ErrNotCompleted) {
		t.Errorf("Expected ErrNotCompleted, got %v", err)
	}
}

func TestCertificateEligibility(t *testing.T) {
	testCases := []struct {
		name    string
		correct int
		job     bool
	}{
		{"79 is below the passing score", 79, false},
		{"80 earns a certificate", 80, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			s := f.seedSession(t, 2, map[model.Category]int{model.CategoryC: 50, model.CategoryR: 50})
			f.start(t, s, 1)
			f.syncAnswers(t, s, 1, s.all(), tc.correct, model.ProgressCompleted)

			res, err := f.completion.CompleteSession(context.Background(), s.sessionID, 1)
			if err != nil {
				t.Fatalf("CompleteSession failed: %v", err)
			}
			if res.Score != float64(tc.correct) {
				t.Errorf("Expected score %d, got %.2f", tc.correct, res.Score)
			}
			if res.CompletionTimeSeconds != 99 {
				t.Errorf("Expected 99s elapsed, got %d", res.CompletionTimeSeconds)
			}

			if !tc.job {
				if len(f.jobs.jobs) != 0 || res.CertificateID != "" {
					t.Errorf("Expected no certificate job, got %d", len(f.jobs.jobs))
				}
				return
			}
			if len(f.jobs.jobs) != 1 {
				t.Fatalf("Expected 1 certificate job, got %d", len(f.jobs.jobs))
			}
			job := f.jobs.jobs[0]
			if job.Name != model.CertificateJobName || job.MaxAttempts != 3 {
				t.Errorf("Unexpected job %+v", job)
			}
			if !strings.HasPrefix(res.CertificateID, "CERT-20260301-") {
				t.Errorf("Unexpected certificate id %q", res.CertificateID)
			}
			if !strings.Contains(string(job.Payload), res.CertificateID) {
				t.Errorf("Expected payload to carry the certificate id, got %s", job.Payload)
			}
		})
	}
}

func TestRankIsMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seedSession(t, 2, map[model.Category]int{model.CategoryC: 4})

	// A different role never competes in the same ranking.
	f.addSets(t, s, 3, map[model.Category]int{model.CategoryC: 4})

	complete := func(userID, roleID, correct int) int {
		t.Helper()
		if _, err := f.tracker.StartOrResume(ctx, userID, s.sessionID, roleID); err != nil {
			t.Fatalf("StartOrResume failed: %v", err)
		}
		sets, _ := f.store.QuestionSets().ListBySessionAndRole(ctx, s.sessionID, roleID)
		var req model.SyncRequest
		for i, qid := range sets[0].QuestionIDs {
			option := 1
			if i < correct {
				option = 0
			}
			req.Answers = append(req.Answers, model.SyncAnswer{QuestionID: qid, SelectedOption: option, AnsweredAt: testNow})
		}
		if _, err := f.sync.SyncUserProgress(ctx, userID, s.sessionID, &req); err != nil {
			t.Fatalf("SyncUserProgress failed: %v", err)
		}
		res, err := f.completion.CompleteSession(ctx, s.sessionID, userID)
		if err != nil {
			t.Fatalf("CompleteSession failed: %v", err)
		}
		return res.Rank
	}

	if rank := complete(100, 3, 4); rank != 1 {
		t.Errorf("Expected other-role user rank 1, got %d", rank)
	}
	if rank := complete(1, 2, 2); rank != 1 {
		t.Errorf("Expected first finisher rank 1, got %d", rank)
	}
	if rank := complete(2, 2, 4); rank != 1 {
		t.Errorf("Expected perfect score rank 1, got %d", rank)
	}
	if rank := complete(3, 2, 3); rank != 2 {
		t.Errorf("Expected 3/4 rank 2, got %d", rank)
	}
	if rank := complete(4, 2, 2); rank != 3 {
		t.Errorf("Expected a tie with 2/4 to share rank 3, got %d", rank)
	}
	if rank := complete(5, 2, 0); rank != 5 {
		t.Errorf("Expected 0/4 rank 5, got %d", rank)
	}
}
