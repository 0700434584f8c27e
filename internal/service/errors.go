package service

import (
	"errors"

	"github.com/stemsi/exstem-assessment/internal/apperr"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// Domain Errors
var (
	ErrSessionNotFound       = apperr.NotFound("SESSION_NOT_FOUND", "assessment session not found")
	ErrSessionInactive       = apperr.NotFound("SESSION_INACTIVE", "assessment session is not active")
	ErrQuestionsNotGenerated = apperr.NotFound("QUESTIONS_NOT_GENERATED", "questions have not been generated for this session")
	ErrQuestionSetsNotFound  = apperr.NotFound("QUESTION_SETS_NOT_FOUND", "no question sets for this session and role")
	ErrNoQuestionsAssigned   = apperr.NotFound("NO_QUESTIONS_ASSIGNED", "no questions assigned")
	ErrQuestionNotFound      = apperr.NotFound("QUESTION_NOT_FOUND", "question not found")
	ErrProgressNotFound      = apperr.NotFound("PROGRESS_NOT_FOUND", "assessment has not been started")

	ErrRolesRequired      = apperr.Validation("ROLES_REQUIRED", "at least one role is required")
	ErrInvalidRole        = apperr.Validation("INVALID_ROLE", "role id must be positive")
	ErrNotStarted         = apperr.Validation("SESSION_NOT_STARTED", "assessment has not been started")
	ErrUnexpectedQuestion = apperr.Validation("UNEXPECTED_QUESTION", "unexpected question answered")
	ErrInvalidOption      = apperr.Validation("INVALID_OPTION", "selected option is out of range")
	ErrNotCompleted       = apperr.Validation("SESSION_NOT_COMPLETED", "assessment is not completed")
	ErrIncompleteAnswers  = apperr.Validation("INCOMPLETE_ANSWERS", "not every question has been answered")
	ErrNothingToRetake    = apperr.Validation("NOTHING_TO_RETAKE", "assessment has not been started")

	ErrQuestionsAlreadyGenerated = apperr.Conflict("QUESTIONS_ALREADY_GENERATED", "questions were already generated for this session")
	ErrAlreadyCompleted          = apperr.Conflict("SESSION_ALREADY_COMPLETED", "assessment is already completed")
	ErrCompletionProcessed       = apperr.Conflict("COMPLETION_ALREADY_PROCESSED", "completion was already processed")

	ErrRoleMismatch    = apperr.Fatal("ROLE_MISMATCH", "progress belongs to a different role")
	ErrProgressCorrupt = apperr.Fatal("PROGRESS_CORRUPT", "progress position does not match the question sets")
)

// notFoundAs maps the store's ErrNotFound to target and leaves other errors unchanged.
func notFoundAs(err error, target *apperr.Error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return target.Wrap(err)
	}
	return err
}
