package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// QuestionSetRepository handles category question set data access.
type QuestionSetRepository struct {
	db DBTX
}

// NewQuestionSetRepository creates a new QuestionSetRepository.
func NewQuestionSetRepository(db DBTX) *QuestionSetRepository {
	return &QuestionSetRepository{db: db}
}

// CreateBatch bulk-inserts sets with COPY. Sets without an id get one assigned.
func (r *QuestionSetRepository) CreateBatch(ctx context.Context, sets []model.CategoryQuestionSet) error {
	if len(sets) == 0 {
		return nil
	}

	rows := make([][]any, len(sets))
	for i := range sets {
		if sets[i].ID == uuid.Nil {
			sets[i].ID = uuid.New()
		}
		ids := sets[i].QuestionIDs
		if ids == nil {
			ids = []uuid.UUID{}
		}
		rows[i] = []any{sets[i].ID, sets[i].SessionID, sets[i].RoleID, string(sets[i].Category), ids, sets[i].QuestionsCount}
	}

	n, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"category_question_sets"},
		[]string{"id", "session_id", "role_id", "category", "question_ids", "questions_count"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy question sets: %w", err)
	}
	if int(n) != len(sets) {
		return fmt.Errorf("copy question sets: wrote %d of %d rows", n, len(sets))
	}
	return nil
}

// ListBySessionAndRole retrieves every category set for a session role.
func (r *QuestionSetRepository) ListBySessionAndRole(ctx context.Context, sessionID uuid.UUID, roleID int) ([]model.CategoryQuestionSet, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, role_id, category, question_ids, questions_count, created_at
		 FROM category_question_sets
		 WHERE session_id = $1 AND role_id = $2`, sessionID, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []model.CategoryQuestionSet
	for rows.Next() {
		s, err := scanQuestionSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, *s)
	}
	return sets, rows.Err()
}

// GetBySessionRoleCategory retrieves one category set.
func (r *QuestionSetRepository) GetBySessionRoleCategory(ctx context.Context, sessionID uuid.UUID, roleID int, category model.Category) (*model.CategoryQuestionSet, error) {
	s, err := scanQuestionSet(r.db.QueryRow(ctx,
		`SELECT id, session_id, role_id, category, question_ids, questions_count, created_at
		 FROM category_question_sets
		 WHERE session_id = $1 AND role_id = $2 AND category = $3`,
		sessionID, roleID, string(category)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func scanQuestionSet(row pgx.Row) (*model.CategoryQuestionSet, error) {
	var s model.CategoryQuestionSet
	var category string
	if err := row.Scan(&s.ID, &s.SessionID, &s.RoleID, &category, &s.QuestionIDs, &s.QuestionsCount, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Category = model.Category(category)
	return &s, nil
}
