package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-assessment/internal/model"
)

const progressColumns = `id, user_id, session_id, role_id, status, current_category,
	current_question_index, total_questions, answered_questions, correct_answers,
	score, category_scores, certificate_id, started_at, last_active_at, completed_at`

// ProgressRepository handles user progress data access.
type ProgressRepository struct {
	db DBTX
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(db DBTX) *ProgressRepository {
	return &ProgressRepository{db: db}
}

func scanProgress(row pgx.Row) (*model.UserProgress, error) {
	p := &model.UserProgress{}
	var status string
	var category *string
	err := row.Scan(&p.ID, &p.UserID, &p.SessionID, &p.RoleID, &status, &category,
		&p.CurrentQuestionIndex, &p.TotalQuestions, &p.AnsweredQuestions, &p.CorrectAnswers,
		&p.Score, &p.CategoryScores, &p.CertificateID, &p.StartedAt, &p.LastActiveAt, &p.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Status = model.ProgressStatus(status)
	if category != nil {
		c := model.Category(*category)
		p.CurrentCategory = &c
	}
	return p, nil
}

// Get retrieves the progress of a user in a session.
func (r *ProgressRepository) Get(ctx context.Context, userID int, sessionID uuid.UUID) (*model.UserProgress, error) {
	return scanProgress(r.db.QueryRow(ctx,
		`SELECT `+progressColumns+`
		 FROM user_progress
		 WHERE user_id = $1 AND session_id = $2`, userID, sessionID))
}

// GetForUpdate retrieves the progress row and locks it until the transaction ends.
func (r *ProgressRepository) GetForUpdate(ctx context.Context, userID int, sessionID uuid.UUID) (*model.UserProgress, error) {
	return scanProgress(r.db.QueryRow(ctx,
		`SELECT `+progressColumns+`
		 FROM user_progress
		 WHERE user_id = $1 AND session_id = $2
		 FOR UPDATE`, userID, sessionID))
}

// Create inserts a progress row. A concurrent start for the same user and session
// makes it a no-op and returns false.
func (r *ProgressRepository) Create(ctx context.Context, p *model.UserProgress) (bool, error) {
	scores := p.CategoryScores
	if scores == nil {
		scores = model.CategoryScores{}
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO user_progress (user_id, session_id, role_id, status, current_category,
		                            current_question_index, total_questions, answered_questions,
		                            correct_answers, category_scores, started_at, last_active_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (user_id, session_id) DO NOTHING
		 RETURNING id`,
		p.UserID, p.SessionID, p.RoleID, string(p.Status), categoryArg(p.CurrentCategory),
		p.CurrentQuestionIndex, p.TotalQuestions, p.AnsweredQuestions,
		p.CorrectAnswers, scores, p.StartedAt, p.LastActiveAt,
	).Scan(&p.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("create progress: %w", err)
	}
	return true, nil
}

// Update writes every mutable column of p.
func (r *ProgressRepository) Update(ctx context.Context, p *model.UserProgress) error {
	scores := p.CategoryScores
	if scores == nil {
		scores = model.CategoryScores{}
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE user_progress
		 SET status = $2,
		     current_category = $3,
		     current_question_index = $4,
		     total_questions = $5,
		     answered_questions = $6,
		     correct_answers = $7,
		     score = $8,
		     category_scores = $9,
		     certificate_id = $10,
		     started_at = $11,
		     last_active_at = $12,
		     completed_at = $13
		 WHERE id = $1`,
		p.ID, string(p.Status), categoryArg(p.CurrentCategory), p.CurrentQuestionIndex,
		p.TotalQuestions, p.AnsweredQuestions, p.CorrectAnswers, p.Score, scores,
		p.CertificateID, p.StartedAt, p.LastActiveAt, p.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountHigherRatio counts completed peers with a strictly better correct/answered ratio.
func (r *ProgressRepository) CountHigherRatio(ctx context.Context, sessionID uuid.UUID, roleID, excludeUserID int, ratio float64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM user_progress
		 WHERE session_id = $1
		   AND role_id = $2
		   AND user_id <> $3
		   AND status = 'completed'
		   AND answered_questions > 0
		   AND correct_answers::float8 / answered_questions > $4`,
		sessionID, roleID, excludeUserID, ratio,
	).Scan(&n)
	return n, err
}

func categoryArg(c *model.Category) *string {
	if c == nil {
		return nil
	}
	s := string(*c)
	return &s
}
