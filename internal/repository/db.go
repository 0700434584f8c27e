package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-assessment/internal/apperr"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so a repository works
// the same inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// repos binds every PostgreSQL repository to one DBTX.
type repos struct {
	sessions     *SessionRepository
	questionSets *QuestionSetRepository
	questions    *QuestionRepository
	usage        *UsageRepository
	progress     *ProgressRepository
	answers      *AnswerRepository
}

func newRepos(db DBTX) *repos {
	return &repos{
		sessions:     NewSessionRepository(db),
		questionSets: NewQuestionSetRepository(db),
		questions:    NewQuestionRepository(db),
		usage:        NewUsageRepository(db),
		progress:     NewProgressRepository(db),
		answers:      NewAnswerRepository(db),
	}
}

func (r *repos) Sessions() SessionStore         { return r.sessions }
func (r *repos) QuestionSets() QuestionSetStore { return r.questionSets }
func (r *repos) Questions() QuestionStore       { return r.questions }
func (r *repos) Usage() UsageStore              { return r.usage }
func (r *repos) Progress() ProgressStore        { return r.progress }
func (r *repos) Answers() AnswerStore           { return r.answers }

// PostgresStore is the pgx-backed Store.
type PostgresStore struct {
	*repos
	pool      *pgxpool.Pool
	txOptions pgx.TxOptions
}

// NewPostgresStore creates a Store over pool. isolation is one of
// serializable, repeatable_read or read_committed.
func NewPostgresStore(pool *pgxpool.Pool, isolation string) *PostgresStore {
	return &PostgresStore{
		repos:     newRepos(pool),
		pool:      pool,
		txOptions: pgx.TxOptions{IsoLevel: isoLevel(isolation)},
	}
}

func isoLevel(name string) pgx.TxIsoLevel {
	switch name {
	case "read_committed":
		return pgx.ReadCommitted
	case "repeatable_read":
		return pgx.RepeatableRead
	default:
		return pgx.Serializable
	}
}

// WithinTx runs fn inside one transaction. Any error rolls the whole transaction
// back; errors that are not already classified are reported as transient.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, s.txOptions)
	if err != nil {
		return apperr.Transient(fmt.Errorf("begin tx: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, newRepos(tx)); err != nil {
		return apperr.Transient(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Transient(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}
