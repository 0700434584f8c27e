package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/model"
)

func TestRecommendSyncInterval(t *testing.T) {
	testCases := []struct {
		newAnswers int
		expected   int
	}{
		{0, 60},
		{1, 30},
		{2, 30},
		{3, 15},
		{9, 15},
		{10, 5},
		{250, 5},
	}
	for _, tc := range testCases {
		if got := RecommendSyncInterval(tc.newAnswers); got != tc.expected {
			t.Errorf("RecommendSyncInterval(%d): expected %d, got %d", tc.newAnswers, tc.expected, got)
		}
	}
}

func TestSyncDowngradesEarlyCompletion(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, 2, map[model.Category]int{model.CategoryC: 3, model.CategoryR: 3})
	f.start(t, s, 1)

	answered := []uuid.UUID{
		s.q(model.CategoryC, 0),
		s.q(model.CategoryC, 1),
		s.q(model.CategoryC, 2),
		s.q(model.CategoryR, 0),
	}
	res := f.syncAnswers(t, s, 1, answered, 4, model.ProgressCompleted)

	if res.Status != model.ProgressInProgress {
		t.Errorf("Expected in_progress, got %s", res.Status)
	}
	if res.Inserted != 4 || res.AnsweredQuestions != 4 || res.CorrectAnswers != 4 {
		t.Errorf("Expected 4 inserted/answered/correct, got %+v", res)
	}
	if res.CurrentCategory == nil || *res.CurrentCategory != model.CategoryR || *res.CurrentQuestionIndex != 1 {
		t.Errorf("Expected position R/1, got %v/%v", res.CurrentCategory, res.CurrentQuestionIndex)
	}
	if res.NextSyncSeconds != 15 {
		t.Errorf("Expected 15s interval, got %d", res.NextSyncSeconds)
	}

	p, _ := f.store.Progress().Get(context.Background(), 1, s.sessionID)
	if p.Status != model.ProgressInProgress || p.CompletedAt != nil {
		t.Errorf("Expected persisted in_progress without completed_at, got %s", p.Status)
	}
}

func TestSyncCompletesWhenEveryQuestionIsAnswered(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, 2, map[model.Category]int{model.CategoryC: 2, model.CategoryI: 1})
	f.start(t, s, 1)

	res := f.syncAnswers(t, s, 1, s.all(), 2, model.ProgressInProgress)

	if res.Status != model.ProgressCompleted {
		t.Errorf("Expected completed, got %s", res.Status)
	}
	if res.CurrentCategory != nil || res.CurrentQuestionIndex != nil {
		t.Error("Expected position cleared")
	}
	p, _ := f.store.Progress().Get(context.Background(), 1, s.sessionID)
	if p.CompletedAt == nil || !p.CompletedAt.Equal(testNow) {
		t.Errorf("Expected completed_at to be set, got %v", p.CompletedAt)
	}
}

func TestSyncAfterCompletionIsNoOp(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, 2, map[model.Category]int{model.CategoryC: 2})
	f.start(t, s, 1)
	f.syncAnswers(t, s, 1, s.all(), 2, model.ProgressCompleted)

	res := f.syncAnswers(t, s, 1, s.all(), 0, model.ProgressCompleted)
	if res.Status != model.ProgressCompleted || res.Inserted != 0 || res.Updated != 0 {
		t.Errorf("Expected completed with nothing processed, got %+v", res)
	}

	answers, _ := f.store.Answers().ListBySession(context.Background(), 1, s.sessionID)
	for _, a := range answers {
		if !a.IsCorrect {
			t.Error("Expected answers untouched after completion")
		}
	}
}

func TestSyncIgnoresInvalidItemsAndCollapsesDuplicates(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, 2, map[model.Category]int{model.CategoryC: 3})
	f.start(t, s, 1)

	q0 := s.q(model.CategoryC, 0)
	q1 := s.q(model.CategoryC, 1)
	req := &model.SyncRequest{
		Answers: []model.SyncAnswer{
			{QuestionID: q0, SelectedOption: 1, AnsweredAt: testNow.Add(-time.Minute)},
			{QuestionID: q1, SelectedOption: 0, AnsweredAt: testNow.Add(-time.Minute)},
			{QuestionID: q0, SelectedOption: 0, AnsweredAt: testNow.Add(-30 * time.Second)},
			{QuestionID: uuid.New(), SelectedOption: 0, AnsweredAt: testNow},
			{QuestionID: s.q(model.CategoryC, 2), SelectedOption: 9, AnsweredAt: testNow},
		},
	}
	res, err := f.sync.SyncUserProgress(context.Background(), 1, s.sessionID, req)
	if err != nil {
		t.Fatalf("SyncUserProgress failed: %v", err)
	}

	if res.Inserted != 2 || res.Ignored != 2 {
		t.Errorf("Expected 2 inserted and 2 ignored, got %+v", res)
	}
	if res.CorrectAnswers != 2 {
		t.Errorf("Expected the latest answer for q0 to win, got %d correct", res.CorrectAnswers)
	}
	if *res.CurrentCategory != model.CategoryC || *res.CurrentQuestionIndex != 2 {
		t.Errorf("Expected position C/2, got %s/%d", *res.CurrentCategory, *res.CurrentQuestionIndex)
	}
	if n := f.store.AnswerCount(1, s.sessionID); n != 2 {
		t.Errorf("Expected 2 records, got %d", n)
	}
}

func TestSyncUpdatesExistingAnswersWithoutCounting(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, 2, map[model.Category]int{model.CategoryC: 3})
	f.start(t, s, 1)

	first := f.syncAnswers(t, s, 1, []uuid.UUID{s.q(model.CategoryC, 0)}, 0, "")
	if first.Inserted != 1 || first.AnsweredQuestions != 1 {
		t.Fatalf("Expected 1 insert, got %+v", first)
	}

	second := f.syncAnswers(t, s, 1, []uuid.UUID{s.q(model.CategoryC, 0), s.q(model.CategoryC, 1)}, 2, "")
	if second.Inserted != 1 || second.Updated != 1 {
		t.Errorf("Expected 1 insert and 1 update, got %+v", second)
	}
	if second.AnsweredQuestions != 2 {
		t.Errorf("Expected answered 2, got %d", second.AnsweredQuestions)
	}
	if n := f.store.AnswerCount(1, s.sessionID); n != 2 {
		t.Errorf("Expected 2 records, got %d", n)
	}
}

func TestSyncWithoutProgress(t *testing.T) {
	f := newFixture(t)
	s := f.seedSession(t, 2, map[model.Category]int{model.CategoryC: 1})

	_, err := f.sync.SyncUserProgress(context.Background(), 1, s.sessionID, &model.SyncRequest{})
	if !errors.Is(err, ErrProgressNotFound) {
		t.Errorf("Expected ErrProgressNotFound, got %v", err)
	}
}
