package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// AnswerRepository handles answer record data access.
type AnswerRepository struct {
	db DBTX
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(db DBTX) *AnswerRepository {
	return &AnswerRepository{db: db}
}

// Upsert creates or updates an answer keyed by (user, question, set).
// xmax is zero only for a freshly inserted tuple.
func (r *AnswerRepository) Upsert(ctx context.Context, a *model.AnswerRecord) (bool, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	var inserted bool
	err := r.db.QueryRow(ctx,
		`INSERT INTO answer_records (id, user_id, session_id, question_id, category_question_set_id,
		                             selected_option, is_correct, answered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id, question_id, category_question_set_id) DO UPDATE
		 SET selected_option = EXCLUDED.selected_option,
		     is_correct = EXCLUDED.is_correct,
		     answered_at = EXCLUDED.answered_at
		 RETURNING id, (xmax = 0) AS inserted`,
		a.ID, a.UserID, a.SessionID, a.QuestionID, a.CategoryQuestionSetID,
		a.SelectedOption, a.IsCorrect, a.AnsweredAt,
	).Scan(&a.ID, &inserted)
	if err != nil {
		return false, fmt.Errorf("upsert answer: %w", err)
	}
	return inserted, nil
}

// UpsertBatch writes every record with one UNNEST upsert. Each (question, set)
// pair must appear at most once in records.
func (r *AnswerRepository) UpsertBatch(ctx context.Context, records []model.AnswerRecord) error {
	if len(records) == 0 {
		return nil
	}

	n := len(records)
	ids := make([]uuid.UUID, n)
	userIDs := make([]int64, n)
	sessionIDs := make([]uuid.UUID, n)
	questionIDs := make([]uuid.UUID, n)
	setIDs := make([]uuid.UUID, n)
	options := make([]int32, n)
	corrects := make([]bool, n)
	answeredAts := make([]time.Time, n)

	for i := range records {
		if records[i].ID == uuid.Nil {
			records[i].ID = uuid.New()
		}
		rec := records[i]
		ids[i] = rec.ID
		userIDs[i] = int64(rec.UserID)
		sessionIDs[i] = rec.SessionID
		questionIDs[i] = rec.QuestionID
		setIDs[i] = rec.CategoryQuestionSetID
		options[i] = int32(rec.SelectedOption)
		corrects[i] = rec.IsCorrect
		answeredAts[i] = rec.AnsweredAt
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO answer_records (id, user_id, session_id, question_id, category_question_set_id,
		                             selected_option, is_correct, answered_at)
		 SELECT * FROM UNNEST(
			$1::uuid[],
			$2::bigint[],
			$3::uuid[],
			$4::uuid[],
			$5::uuid[],
			$6::int[],
			$7::bool[],
			$8::timestamptz[]
		 )
		 ON CONFLICT (user_id, question_id, category_question_set_id) DO UPDATE
		 SET selected_option = EXCLUDED.selected_option,
		     is_correct = EXCLUDED.is_correct,
		     answered_at = EXCLUDED.answered_at`,
		ids, userIDs, sessionIDs, questionIDs, setIDs, options, corrects, answeredAts,
	)
	if err != nil {
		return fmt.Errorf("bulk upsert answers: %w", err)
	}
	return nil
}

// ListBySession returns the user's answers in a session keyed by question id.
func (r *AnswerRepository) ListBySession(ctx context.Context, userID int, sessionID uuid.UUID) (map[uuid.UUID]model.AnswerRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, session_id, question_id, category_question_set_id,
		        selected_option, is_correct, answered_at
		 FROM answer_records
		 WHERE user_id = $1 AND session_id = $2`, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[uuid.UUID]model.AnswerRecord)
	for rows.Next() {
		var a model.AnswerRecord
		if err := rows.Scan(&a.ID, &a.UserID, &a.SessionID, &a.QuestionID, &a.CategoryQuestionSetID,
			&a.SelectedOption, &a.IsCorrect, &a.AnsweredAt); err != nil {
			return nil, err
		}
		result[a.QuestionID] = a
	}
	return result, rows.Err()
}

// CountDistinctAnswered counts distinct questions the user answered within setIDs.
func (r *AnswerRepository) CountDistinctAnswered(ctx context.Context, userID int, setIDs []uuid.UUID) (int, error) {
	if len(setIDs) == 0 {
		return 0, nil
	}
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(DISTINCT question_id)
		 FROM answer_records
		 WHERE user_id = $1 AND category_question_set_id = ANY($2::uuid[])`,
		userID, setIDs,
	).Scan(&n)
	return n, err
}

// AggregateByCategory tallies the user's answers in a session per category.
func (r *AnswerRepository) AggregateByCategory(ctx context.Context, userID int, sessionID uuid.UUID) ([]model.CategoryTally, error) {
	rows, err := r.db.Query(ctx,
		`SELECT s.category,
		        COUNT(*),
		        COUNT(*) FILTER (WHERE a.is_correct),
		        MIN(a.answered_at),
		        MAX(a.answered_at)
		 FROM answer_records a
		 JOIN category_question_sets s ON s.id = a.category_question_set_id
		 WHERE a.user_id = $1 AND a.session_id = $2
		 GROUP BY s.category`, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tallies []model.CategoryTally
	for rows.Next() {
		var t model.CategoryTally
		var category string
		if err := rows.Scan(&category, &t.Answered, &t.Correct, &t.FirstAnsweredAt, &t.LastAnsweredAt); err != nil {
			return nil, err
		}
		t.Category = model.Category(category)
		tallies = append(tallies, t)
	}
	return tallies, rows.Err()
}

// DeleteBySession removes the user's answers for a session (retake).
func (r *AnswerRepository) DeleteBySession(ctx context.Context, userID int, sessionID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM answer_records WHERE user_id = $1 AND session_id = $2`, userID, sessionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
