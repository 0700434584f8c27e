package model

import (
	"github.com/google/uuid"
)

// Question is read from the question directory. CorrectOption is a 0-based index into Options.
type Question struct {
	ID            uuid.UUID `json:"id"`
	QuestionText  string    `json:"question_text"`
	Options       []string  `json:"options"`
	CorrectOption int       `json:"correct_option"`
	Category      Category  `json:"category"`
}

// ValidOption reports whether option indexes one of the question's options.
func (q *Question) ValidOption(option int) bool {
	return option >= 0 && option < len(q.Options)
}

// QuestionForUser is a question without the correct answer, sent to participants.
type QuestionForUser struct {
	ID           uuid.UUID `json:"id"`
	QuestionText string    `json:"question_text"`
	Options      []string  `json:"options"`
	Category     Category  `json:"category"`
	Index        int       `json:"index"`
	Total        int       `json:"total_in_category"`
}

// ForUser strips the answer key from q.
func (q *Question) ForUser(index, total int) *QuestionForUser {
	return &QuestionForUser{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		Options:      q.Options,
		Category:     q.Category,
		Index:        index,
		Total:        total,
	}
}

// QuestionCandidate is a question eligible for allocation together with its usage for a role.
type QuestionCandidate struct {
	QuestionID uuid.UUID
	UsageCount int
}
