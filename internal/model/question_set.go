package model

import (
	"time"

	"github.com/google/uuid"
)

// CategoryQuestionSet is the immutable ordered list of questions assigned to a
// session, role and category.
type CategoryQuestionSet struct {
	ID             uuid.UUID   `json:"id"`
	SessionID      uuid.UUID   `json:"session_id"`
	RoleID         int         `json:"role_id"`
	Category       Category    `json:"category"`
	QuestionIDs    []uuid.UUID `json:"question_ids"`
	QuestionsCount int         `json:"questions_count"`
	CreatedAt      time.Time   `json:"created_at"`
}

// QuestionAt returns the question id at index i.
func (s *CategoryQuestionSet) QuestionAt(i int) (uuid.UUID, bool) {
	if i < 0 || i >= len(s.QuestionIDs) {
		return uuid.Nil, false
	}
	return s.QuestionIDs[i], true
}

// Lengths maps each category to its question count.
func Lengths(sets []CategoryQuestionSet) map[Category]int {
	lengths := make(map[Category]int, len(sets))
	for _, s := range sets {
		lengths[s.Category] = s.QuestionsCount
	}
	return lengths
}

// TotalQuestions sums the question count across sets.
func TotalQuestions(sets []CategoryQuestionSet) int {
	total := 0
	for _, s := range sets {
		total += s.QuestionsCount
	}
	return total
}

// UsageIncrement is one (question, role) counter bump recorded by the allocator.
type UsageIncrement struct {
	QuestionID uuid.UUID
	RoleID     int
}

// GeneratedSetSummary reports what the allocator produced for one role and category.
type GeneratedSetSummary struct {
	RoleID         int      `json:"role_id"`
	Category       Category `json:"category"`
	QuestionsCount int      `json:"questions_count"`
}
