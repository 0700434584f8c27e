package model

import (
	"time"

	"github.com/google/uuid"
)

// ProgressStatus enumerates the states of a participant's progress.
type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "not_started"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
)

// Valid reports whether s is a known status.
func (s ProgressStatus) Valid() bool {
	switch s {
	case ProgressNotStarted, ProgressInProgress, ProgressCompleted:
		return true
	}
	return false
}

// CategoryScores maps a category score key (see Category.ScoreKey) to a 0-100 score.
type CategoryScores map[string]float64

// UserProgress is the per-user, per-session position and tally.
type UserProgress struct {
	ID                   uuid.UUID      `json:"id"`
	UserID               int            `json:"user_id"`
	SessionID            uuid.UUID      `json:"session_id"`
	RoleID               int            `json:"role_id"`
	Status               ProgressStatus `json:"status"`
	CurrentCategory      *Category      `json:"current_category"`
	CurrentQuestionIndex *int           `json:"current_question_index"`
	TotalQuestions       int            `json:"total_questions"`
	AnsweredQuestions    int            `json:"answered_questions"`
	CorrectAnswers       int            `json:"correct_answers"`
	Score                *float64       `json:"score,omitempty"`
	CategoryScores       CategoryScores `json:"category_scores,omitempty"`
	CertificateID        *string        `json:"certificate_id,omitempty"`
	StartedAt            *time.Time     `json:"started_at,omitempty"`
	LastActiveAt         *time.Time     `json:"last_active_at,omitempty"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
}

// Position returns the current category and index, if the participant has one.
func (p *UserProgress) Position() (Category, int, bool) {
	if p.CurrentCategory == nil || p.CurrentQuestionIndex == nil {
		return "", 0, false
	}
	return *p.CurrentCategory, *p.CurrentQuestionIndex, true
}

// SetPosition moves the participant to category c at index i.
func (p *UserProgress) SetPosition(c Category, i int) {
	p.CurrentCategory = &c
	p.CurrentQuestionIndex = &i
}

// ClearPosition removes the current category and index.
func (p *UserProgress) ClearPosition() {
	p.CurrentCategory = nil
	p.CurrentQuestionIndex = nil
}

// Ratio returns correct/answered, or 0 when nothing was answered.
func (p *UserProgress) Ratio() float64 {
	if p.AnsweredQuestions == 0 {
		return 0
	}
	return float64(p.CorrectAnswers) / float64(p.AnsweredQuestions)
}

// ProgressView is the participant-facing snapshot returned by start, resume and progress reads.
type ProgressView struct {
	Progress        *UserProgress    `json:"progress"`
	CurrentQuestion *QuestionForUser `json:"current_question,omitempty"`
}
