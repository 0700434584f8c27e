package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
)

// AdminSessionHandler handles assessment session management endpoints.
type AdminSessionHandler struct {
	allocator *service.AllocatorService
}

// NewAdminSessionHandler creates a new AdminSessionHandler.
func NewAdminSessionHandler(allocator *service.AllocatorService) *AdminSessionHandler {
	return &AdminSessionHandler{allocator: allocator}
}

// ListSessions godoc
// GET /api/v1/admin/sessions?page=&per_page=&active=
func (h *AdminSessionHandler) ListSessions(c *gin.Context) {
	var q model.ListSessionsQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sessions, pagination, err := h.allocator.ListSessions(c.Request.Context(), q.Page, q.PerPage, q.Active)
	if err != nil {
		response.FailError(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"sessions": sessions}, pagination)
}

// CreateSession godoc
// POST /api/v1/admin/sessions
func (h *AdminSessionHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.allocator.CreateSession(c.Request.Context(), &req)
	if err != nil {
		response.FailError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"session": session})
}

// GenerateQuestionSets godoc
// POST /api/v1/admin/sessions/:session_id/generate
// Allocates one question set per role and category. Runs once per session.
func (h *AdminSessionHandler) GenerateQuestionSets(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.GenerateQuestionSetsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sets, err := h.allocator.GenerateQuestionSets(c.Request.Context(), sessionID, req.RoleIDs)
	if err != nil {
		response.FailError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question_sets": sets})
}
