package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerRecord is one scored answer, unique per user, question and category question set.
type AnswerRecord struct {
	ID                    uuid.UUID `json:"id"`
	UserID                int       `json:"user_id"`
	SessionID             uuid.UUID `json:"session_id"`
	QuestionID            uuid.UUID `json:"question_id"`
	CategoryQuestionSetID uuid.UUID `json:"category_question_set_id"`
	SelectedOption        int       `json:"selected_option"`
	IsCorrect             bool      `json:"is_correct"`
	AnsweredAt            time.Time `json:"answered_at"`
}

// CategoryTally aggregates a participant's answer records for one category.
type CategoryTally struct {
	Category        Category
	Answered        int
	Correct         int
	FirstAnsweredAt time.Time
	LastAnsweredAt  time.Time
}

// SubmitAnswerRequest is the payload for answering the current question.
type SubmitAnswerRequest struct {
	QuestionID     uuid.UUID `json:"question_id" binding:"required"`
	SelectedOption *int      `json:"selected_option" binding:"required,min=0"`
}

// AnswerResult is returned after a live answer is recorded.
type AnswerResult struct {
	IsCorrect    bool             `json:"is_correct"`
	NextQuestion *QuestionForUser `json:"next_question,omitempty"`
	Completed    bool             `json:"completed"`
	Progress     *UserProgress    `json:"progress"`
}

// SyncAnswer is one locally-buffered answer inside a sync batch.
type SyncAnswer struct {
	QuestionID     uuid.UUID `json:"question_id" binding:"required"`
	SelectedOption int       `json:"selected_option"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// ClientState is the client's own view of its position. It is advisory only.
type ClientState struct {
	CurrentCategory      *Category  `json:"current_category,omitempty"`
	CurrentQuestionIndex *int       `json:"current_question_index,omitempty"`
	LastSyncedAt         *time.Time `json:"last_synced_at,omitempty"`
}

// SyncRequest is the payload a disconnected client sends to reconcile its answers.
type SyncRequest struct {
	Answers     []SyncAnswer   `json:"answers" binding:"max=500,dive"`
	ClientState *ClientState   `json:"client_state"`
	Status      ProgressStatus `json:"status" binding:"omitempty,oneof=not_started in_progress completed"`
}

// SyncResult reports the reconciled state after a sync batch.
type SyncResult struct {
	Status               ProgressStatus `json:"status"`
	Inserted             int            `json:"inserted"`
	Updated              int            `json:"updated"`
	Ignored              int            `json:"ignored"`
	AnsweredQuestions    int            `json:"answered_questions"`
	CorrectAnswers       int            `json:"correct_answers"`
	TotalQuestions       int            `json:"total_questions"`
	CurrentCategory      *Category      `json:"current_category"`
	CurrentQuestionIndex *int           `json:"current_question_index"`
	NextSyncSeconds      int            `json:"next_sync_seconds"`
}

// CompletionResult is returned once a completed session has been scored.
type CompletionResult struct {
	Score                 float64        `json:"score"`
	CategoryScores        CategoryScores `json:"category_scores"`
	CertificateID         string         `json:"certificate_id"`
	CompletionTimeSeconds int64          `json:"completion_time_seconds"`
	Rank                  int            `json:"rank"`
}
