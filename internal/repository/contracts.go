package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// ErrNotFound is returned by every store when the requested row does not exist.
var ErrNotFound = errors.New("record not found")

// SessionStore reads and writes assessment sessions.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Session, error)
	List(ctx context.Context, limit, offset int, activeOnly bool) ([]model.Session, int, error)
	MarkQuestionsGenerated(ctx context.Context, id uuid.UUID) error
}

// QuestionSetStore reads and writes category question sets.
type QuestionSetStore interface {
	CreateBatch(ctx context.Context, sets []model.CategoryQuestionSet) error
	ListBySessionAndRole(ctx context.Context, sessionID uuid.UUID, roleID int) ([]model.CategoryQuestionSet, error)
	GetBySessionRoleCategory(ctx context.Context, sessionID uuid.UUID, roleID int, category model.Category) (*model.CategoryQuestionSet, error)
}

// QuestionStore reads question content from the question directory.
type QuestionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error)
	ListCandidates(ctx context.Context, roleID int, category model.Category) ([]model.QuestionCandidate, error)
}

// UsageStore maintains per-question, per-role usage counters.
type UsageStore interface {
	BulkIncrement(ctx context.Context, increments []model.UsageIncrement, sessionID uuid.UUID, at time.Time) error
}

// ProgressStore reads and writes user progress rows.
type ProgressStore interface {
	Get(ctx context.Context, userID int, sessionID uuid.UUID) (*model.UserProgress, error)
	GetForUpdate(ctx context.Context, userID int, sessionID uuid.UUID) (*model.UserProgress, error)
	// Create inserts p unless a row for (user, session) exists; it reports whether it inserted.
	Create(ctx context.Context, p *model.UserProgress) (bool, error)
	Update(ctx context.Context, p *model.UserProgress) error
	// CountHigherRatio counts other completed participants of the same session and role
	// whose correct/answered ratio is strictly greater than ratio.
	CountHigherRatio(ctx context.Context, sessionID uuid.UUID, roleID, excludeUserID int, ratio float64) (int, error)
}

// AnswerStore reads and writes answer records.
type AnswerStore interface {
	// Upsert inserts or updates a by (user, question, set) and reports whether it inserted.
	Upsert(ctx context.Context, a *model.AnswerRecord) (bool, error)
	UpsertBatch(ctx context.Context, records []model.AnswerRecord) error
	// ListBySession returns the user's records for a session keyed by question id.
	ListBySession(ctx context.Context, userID int, sessionID uuid.UUID) (map[uuid.UUID]model.AnswerRecord, error)
	CountDistinctAnswered(ctx context.Context, userID int, setIDs []uuid.UUID) (int, error)
	AggregateByCategory(ctx context.Context, userID int, sessionID uuid.UUID) ([]model.CategoryTally, error)
	DeleteBySession(ctx context.Context, userID int, sessionID uuid.UUID) (int64, error)
}

// Tx groups every store bound to one unit of work.
type Tx interface {
	Sessions() SessionStore
	QuestionSets() QuestionSetStore
	Questions() QuestionStore
	Usage() UsageStore
	Progress() ProgressStore
	Answers() AnswerStore
}

// Store is the entry point to persistence. Its own stores run outside any
// transaction; WithinTx runs fn against stores bound to a single transaction and
// commits only when fn returns nil.
type Store interface {
	Tx
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
