package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
)

// AssessmentHandler handles the participant-facing assessment endpoints.
type AssessmentHandler struct {
	tracker    *service.ProgressTracker
	answers    *service.AnswerService
	sync       *service.SyncService
	completion *service.CompletionService
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(
	tracker *service.ProgressTracker,
	answers *service.AnswerService,
	sync *service.SyncService,
	completion *service.CompletionService,
) *AssessmentHandler {
	return &AssessmentHandler{
		tracker:    tracker,
		answers:    answers,
		sync:       sync,
		completion: completion,
	}
}

// Start godoc
// POST /api/v1/assessments/:session_id/start
// Starts the assessment, or resumes it when progress already exists.
func (h *AssessmentHandler) Start(c *gin.Context) {
	claims, sessionID, ok := participantAndSession(c)
	if !ok {
		return
	}

	view, err := h.tracker.StartOrResume(c.Request.Context(), claims.UserID, sessionID, claims.RoleID)
	if err != nil {
		response.FailError(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// GetProgress godoc
// GET /api/v1/assessments/:session_id/progress
func (h *AssessmentHandler) GetProgress(c *gin.Context) {
	claims, sessionID, ok := participantAndSession(c)
	if !ok {
		return
	}

	view, err := h.tracker.GetProgress(c.Request.Context(), claims.UserID, sessionID)
	if err != nil {
		response.FailError(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// SubmitAnswer godoc
// POST /api/v1/assessments/:session_id/answers
// Records the answer to the current question and moves to the next one.
func (h *AssessmentHandler) SubmitAnswer(c *gin.Context) {
	claims, sessionID, ok := participantAndSession(c)
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.answers.AnswerQuestion(c.Request.Context(), claims.UserID, sessionID, req.QuestionID, *req.SelectedOption)
	if err != nil {
		response.FailError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Sync godoc
// POST /api/v1/assessments/:session_id/sync
// Reconciles a batch of answers buffered by an offline client.
func (h *AssessmentHandler) Sync(c *gin.Context) {
	claims, sessionID, ok := participantAndSession(c)
	if !ok {
		return
	}

	var req model.SyncRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.sync.SyncUserProgress(c.Request.Context(), claims.UserID, sessionID, &req)
	if err != nil {
		response.FailError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Complete godoc
// POST /api/v1/assessments/:session_id/complete
// Scores a finished assessment and ranks it against peers of the same role.
func (h *AssessmentHandler) Complete(c *gin.Context) {
	claims, sessionID, ok := participantAndSession(c)
	if !ok {
		return
	}

	result, err := h.completion.CompleteSession(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		response.FailError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Retake godoc
// POST /api/v1/assessments/:session_id/retake
// Clears previous answers and resets progress to not started.
func (h *AssessmentHandler) Retake(c *gin.Context) {
	claims, sessionID, ok := participantAndSession(c)
	if !ok {
		return
	}

	progress, err := h.tracker.ResetProgress(c.Request.Context(), claims.UserID, sessionID)
	if err != nil {
		response.FailError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"progress": progress})
}

// participantAndSession reads the caller and the :session_id param, writing the
// error response itself when either is missing.
func participantAndSession(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}

	return claims, sessionID, true
}
