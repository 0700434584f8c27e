package model

import (
	"time"

	"github.com/google/uuid"
)

// DefaultQuestionsPerCategory is used when a session does not declare its own count.
const DefaultQuestionsPerCategory = 10

// Session represents an assessment instance created by an administrator.
type Session struct {
	ID                   uuid.UUID `json:"id"`
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	IsActive             bool      `json:"is_active"`
	QuestionsGenerated   bool      `json:"questions_generated"`
	TimeLimitSeconds     int       `json:"time_limit_seconds"`
	IsOnboarding         bool      `json:"is_onboarding"`
	QuestionsPerCategory int       `json:"questions_per_category"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// CreateSessionRequest is the payload for creating a new assessment session.
type CreateSessionRequest struct {
	Title                string `json:"title" binding:"required,min=3,max=255"`
	Description          string `json:"description" binding:"omitempty,max=2000"`
	IsActive             *bool  `json:"is_active"`
	TimeLimitSeconds     int    `json:"time_limit_seconds" binding:"min=0,max=86400"`
	IsOnboarding         bool   `json:"is_onboarding"`
	QuestionsPerCategory int    `json:"questions_per_category" binding:"min=0,max=100"`
}

// ListSessionsQuery is the query string of the admin session listing.
type ListSessionsQuery struct {
	Page    int  `form:"page" binding:"omitempty,min=1"`
	PerPage int  `form:"per_page" binding:"omitempty,min=1,max=100"`
	Active  bool `form:"active"`
}

// GenerateQuestionSetsRequest is the payload for allocating question sets to roles.
type GenerateQuestionSetsRequest struct {
	RoleIDs []int `json:"role_ids" binding:"required,min=1,dive,min=1"`
}
