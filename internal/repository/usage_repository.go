package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// UsageRepository maintains question usage counters.
type UsageRepository struct {
	db DBTX
}

// NewUsageRepository creates a new UsageRepository.
func NewUsageRepository(db DBTX) *UsageRepository {
	return &UsageRepository{db: db}
}

// BulkIncrement bumps the counter of every (question, role) pair by one using UNNEST.
// Each pair must appear at most once in increments.
func (r *UsageRepository) BulkIncrement(ctx context.Context, increments []model.UsageIncrement, sessionID uuid.UUID, at time.Time) error {
	if len(increments) == 0 {
		return nil
	}

	questionIDs := make([]uuid.UUID, len(increments))
	roleIDs := make([]int32, len(increments))
	for i, inc := range increments {
		questionIDs[i] = inc.QuestionID
		roleIDs[i] = int32(inc.RoleID)
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO question_usage (question_id, role_id, usage_count, last_used_at, last_used_in_session)
		 SELECT u.question_id, u.role_id, 1, $3::timestamptz, $4::uuid
		 FROM UNNEST($1::uuid[], $2::int[]) AS u (question_id, role_id)
		 ON CONFLICT (question_id, role_id) DO UPDATE
		 SET usage_count = question_usage.usage_count + 1,
		     last_used_at = EXCLUDED.last_used_at,
		     last_used_in_session = EXCLUDED.last_used_in_session`,
		questionIDs, roleIDs, at, sessionID,
	)
	if err != nil {
		return fmt.Errorf("bulk increment usage: %w", err)
	}
	return nil
}
