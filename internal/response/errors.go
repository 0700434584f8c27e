package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrPermissionDenied  ErrCode = "PERMISSION_DENIED"
	ErrStudentAccessOnly ErrCode = "PARTICIPANT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Assessment-specific ───────────────────────────────────────────
	ErrSessionNotFound           ErrCode = "SESSION_NOT_FOUND"
	ErrSessionInactive           ErrCode = "SESSION_INACTIVE"
	ErrQuestionsNotGenerated     ErrCode = "QUESTIONS_NOT_GENERATED"
	ErrQuestionSetsNotFound      ErrCode = "QUESTION_SETS_NOT_FOUND"
	ErrNoQuestionsAssigned       ErrCode = "NO_QUESTIONS_ASSIGNED"
	ErrQuestionNotFound          ErrCode = "QUESTION_NOT_FOUND"
	ErrProgressNotFound          ErrCode = "PROGRESS_NOT_FOUND"
	ErrRolesRequired             ErrCode = "ROLES_REQUIRED"
	ErrInvalidRole               ErrCode = "INVALID_ROLE"
	ErrSessionNotStarted         ErrCode = "SESSION_NOT_STARTED"
	ErrUnexpectedQuestion        ErrCode = "UNEXPECTED_QUESTION"
	ErrInvalidOption             ErrCode = "INVALID_OPTION"
	ErrSessionNotCompleted       ErrCode = "SESSION_NOT_COMPLETED"
	ErrIncompleteAnswers         ErrCode = "INCOMPLETE_ANSWERS"
	ErrNothingToRetake           ErrCode = "NOTHING_TO_RETAKE"
	ErrQuestionsAlreadyGenerated ErrCode = "QUESTIONS_ALREADY_GENERATED"
	ErrSessionAlreadyCompleted   ErrCode = "SESSION_ALREADY_COMPLETED"
	ErrCompletionProcessed       ErrCode = "COMPLETION_ALREADY_PROCESSED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrTransient ErrCode = "TRANSIENT"
	ErrInternal  ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrPermissionDenied:
		return "Permission denied."
	case ErrStudentAccessOnly:
		return "This resource is restricted to assessment participants."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "The request conflicts with the current state of the resource."

	// ─── Assessment-specific ───────────────────────────────────────────
	case ErrSessionNotFound:
		return "Assessment session not found."
	case ErrSessionInactive:
		return "Assessment session is not active."
	case ErrQuestionsNotGenerated:
		return "Questions have not been generated for this session yet."
	case ErrQuestionSetsNotFound:
		return "No question sets exist for your role in this session."
	case ErrNoQuestionsAssigned:
		return "No questions are assigned to your role in this session."
	case ErrQuestionNotFound:
		return "Question not found."
	case ErrProgressNotFound:
		return "You have not started this assessment."
	case ErrRolesRequired:
		return "At least one role is required."
	case ErrInvalidRole:
		return "Role ID must be positive."
	case ErrSessionNotStarted:
		return "Assessment has not been started."
	case ErrUnexpectedQuestion:
		return "Unexpected question answered."
	case ErrInvalidOption:
		return "Selected option is out of range."
	case ErrSessionNotCompleted:
		return "Assessment is not completed yet."
	case ErrIncompleteAnswers:
		return "Not every question has been answered."
	case ErrNothingToRetake:
		return "There is no attempt to retake."
	case ErrQuestionsAlreadyGenerated:
		return "Questions were already generated for this session."
	case ErrSessionAlreadyCompleted:
		return "Assessment is already completed."
	case ErrCompletionProcessed:
		return "Completion was already processed."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrTransient:
		return "The service is temporarily unavailable. Please retry."
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
