package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-assessment/internal/model"
)

const sessionColumns = `id, title, description, is_active, questions_generated,
	time_limit_seconds, is_onboarding, questions_per_category, created_at, updated_at`

// SessionRepository handles assessment session data access.
type SessionRepository struct {
	db DBTX
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func scanSession(row pgx.Row) (*model.Session, error) {
	s := &model.Session{}
	err := row.Scan(&s.ID, &s.Title, &s.Description, &s.IsActive, &s.QuestionsGenerated,
		&s.TimeLimitSeconds, &s.IsOnboarding, &s.QuestionsPerCategory, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO assessment_sessions (title, description, is_active, time_limit_seconds,
		                                  is_onboarding, questions_per_category)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, questions_generated, created_at, updated_at`,
		s.Title, s.Description, s.IsActive, s.TimeLimitSeconds, s.IsOnboarding, s.QuestionsPerCategory,
	).Scan(&s.ID, &s.QuestionsGenerated, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by its UUID.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return scanSession(r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM assessment_sessions WHERE id = $1`, id))
}

// GetByIDForUpdate retrieves a session and locks its row until the transaction ends.
func (r *SessionRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return scanSession(r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM assessment_sessions WHERE id = $1 FOR UPDATE`, id))
}

// List retrieves sessions newest first with pagination.
func (r *SessionRepository) List(ctx context.Context, limit, offset int, activeOnly bool) ([]model.Session, int, error) {
	where := ""
	if activeOnly {
		where = ` WHERE is_active = TRUE`
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM assessment_sessions`+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+sessionColumns+` FROM assessment_sessions`+where+`
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, total, rows.Err()
}

// MarkQuestionsGenerated flips questions_generated once allocation has completed.
func (r *SessionRepository) MarkQuestionsGenerated(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE assessment_sessions
		 SET questions_generated = TRUE, updated_at = NOW()
		 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
