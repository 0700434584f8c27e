// Package memstore is an in-memory repository.Store. Transactions are serialized
// and run against a private copy of the data that replaces the committed copy
// only when the transaction function succeeds.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/apperr"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

type setKey struct {
	sessionID uuid.UUID
	roleID    int
	category  model.Category
}

type usageKey struct {
	questionID uuid.UUID
	roleID     int
}

type usageRow struct {
	count         int
	lastUsedAt    time.Time
	lastSessionID uuid.UUID
}

type progressKey struct {
	userID    int
	sessionID uuid.UUID
}

type answerKey struct {
	userID     int
	questionID uuid.UUID
	setID      uuid.UUID
}

type state struct {
	sessions      map[uuid.UUID]model.Session
	sets          map[uuid.UUID]model.CategoryQuestionSet
	setIndex      map[setKey]uuid.UUID
	questions     map[uuid.UUID]model.Question
	questionRoles map[uuid.UUID][]int
	usage         map[usageKey]usageRow
	progress      map[progressKey]model.UserProgress
	answers       map[answerKey]model.AnswerRecord
}

func newState() *state {
	return &state{
		sessions:      make(map[uuid.UUID]model.Session),
		sets:          make(map[uuid.UUID]model.CategoryQuestionSet),
		setIndex:      make(map[setKey]uuid.UUID),
		questions:     make(map[uuid.UUID]model.Question),
		questionRoles: make(map[uuid.UUID][]int),
		usage:         make(map[usageKey]usageRow),
		progress:      make(map[progressKey]model.UserProgress),
		answers:       make(map[answerKey]model.AnswerRecord),
	}
}

// clone copies every table. Stored values are never mutated in place, so
// question content and question id slices can be shared.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.sets {
		c.sets[k] = v
	}
	for k, v := range s.setIndex {
		c.setIndex[k] = v
	}
	for k, v := range s.questions {
		c.questions[k] = v
	}
	for k, v := range s.questionRoles {
		c.questionRoles[k] = v
	}
	for k, v := range s.usage {
		c.usage[k] = v
	}
	for k, v := range s.progress {
		c.progress[k] = v
	}
	for k, v := range s.answers {
		c.answers[k] = v
	}
	return c
}

// FaultFunc is consulted before every store operation; a non-nil result is
// returned instead of performing it. op has the form "answers.UpsertBatch".
type FaultFunc func(op string) error

// Store is a repository.Store backed by maps.
type Store struct {
	txMu   sync.Mutex
	dataMu sync.RWMutex
	data   *state
	fault  FaultFunc

	root *view
}

var _ repository.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	s := &Store{data: newState()}
	s.root = &view{store: s}
	return s
}

// SetFault installs f, or removes the current fault when f is nil.
func (s *Store) SetFault(f FaultFunc) {
	s.dataMu.Lock()
	s.fault = f
	s.dataMu.Unlock()
}

func (s *Store) checkFault(op string) error {
	s.dataMu.RLock()
	f := s.fault
	s.dataMu.RUnlock()
	if f == nil {
		return nil
	}
	return f(op)
}

// AddQuestion registers a question in the directory and binds it to roleIDs.
func (s *Store) AddQuestion(q model.Question, roleIDs ...int) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.data.questions[q.ID] = q
	s.data.questionRoles[q.ID] = append([]int(nil), roleIDs...)
}

// SetUsage overwrites the usage counter of a question for a role.
func (s *Store) SetUsage(questionID uuid.UUID, roleID, count int) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.data.usage[usageKey{questionID, roleID}] = usageRow{count: count}
}

// UsageCount returns the usage counter of a question for a role.
func (s *Store) UsageCount(questionID uuid.UUID, roleID int) int {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.data.usage[usageKey{questionID, roleID}].count
}

// AnswerCount returns the number of answer records of a user in a session.
func (s *Store) AnswerCount(userID int, sessionID uuid.UUID) int {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	n := 0
	for k, a := range s.data.answers {
		if k.userID == userID && a.SessionID == sessionID {
			n++
		}
	}
	return n
}

func (s *Store) Sessions() repository.SessionStore         { return sessionStore{s.root} }
func (s *Store) QuestionSets() repository.QuestionSetStore { return questionSetStore{s.root} }
func (s *Store) Questions() repository.QuestionStore       { return questionStore{s.root} }
func (s *Store) Usage() repository.UsageStore              { return usageStore{s.root} }
func (s *Store) Progress() repository.ProgressStore        { return progressStore{s.root} }
func (s *Store) Answers() repository.AnswerStore           { return answerStore{s.root} }

// WithinTx runs fn against a private copy of the data and publishes the copy
// when fn succeeds. Unclassified errors are reported as transient, matching the
// PostgreSQL store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return apperr.Transient(err)
	}

	s.dataMu.RLock()
	work := s.data.clone()
	s.dataMu.RUnlock()

	tx := &view{store: s, tx: work}
	if err := fn(ctx, tx); err != nil {
		return apperr.Transient(err)
	}
	if err := s.checkFault("tx.Commit"); err != nil {
		return apperr.Transient(err)
	}

	s.dataMu.Lock()
	s.data = work
	s.dataMu.Unlock()
	return nil
}

// view binds the stores either to the committed data or to a transaction copy.
type view struct {
	store *Store
	tx    *state
}

func (v *view) Sessions() repository.SessionStore         { return sessionStore{v} }
func (v *view) QuestionSets() repository.QuestionSetStore { return questionSetStore{v} }
func (v *view) Questions() repository.QuestionStore       { return questionStore{v} }
func (v *view) Usage() repository.UsageStore              { return usageStore{v} }
func (v *view) Progress() repository.ProgressStore        { return progressStore{v} }
func (v *view) Answers() repository.AnswerStore           { return answerStore{v} }

func (v *view) read(op string, fn func(st *state) error) error {
	if err := v.store.checkFault(op); err != nil {
		return err
	}
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.dataMu.RLock()
	defer v.store.dataMu.RUnlock()
	return fn(v.store.data)
}

func (v *view) write(op string, fn func(st *state) error) error {
	if err := v.store.checkFault(op); err != nil {
		return err
	}
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.txMu.Lock()
	defer v.store.txMu.Unlock()
	v.store.dataMu.Lock()
	defer v.store.dataMu.Unlock()
	return fn(v.store.data)
}
