package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// QuestionRepository reads questions owned by the question directory.
type QuestionRepository struct {
	db DBTX
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(db DBTX) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// GetByID retrieves a question including its correct option.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	var q model.Question
	var category string
	err := r.db.QueryRow(ctx,
		`SELECT id, question_text, options, correct_option, category
		 FROM questions WHERE id = $1`, id,
	).Scan(&q.ID, &q.QuestionText, &q.Options, &q.CorrectOption, &category)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	q.Category = model.Category(category)
	return &q, nil
}

// ListCandidates returns every active question of a category bound to roleID,
// with the role's usage count (0 when the question was never selected for it).
func (r *QuestionRepository) ListCandidates(ctx context.Context, roleID int, category model.Category) ([]model.QuestionCandidate, error) {
	rows, err := r.db.Query(ctx,
		`SELECT q.id, COALESCE(u.usage_count, 0)
		 FROM questions q
		 JOIN question_roles qr ON qr.question_id = q.id
		 LEFT JOIN question_usage u ON u.question_id = q.id AND u.role_id = qr.role_id
		 WHERE qr.role_id = $1 AND q.category = $2 AND q.is_active = TRUE`,
		roleID, string(category))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []model.QuestionCandidate
	for rows.Next() {
		var c model.QuestionCandidate
		if err := rows.Scan(&c.QuestionID, &c.UsageCount); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}
