package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assessment/internal/apperr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name                  string
		page, perPage, total  int
		wantPage, wantPerPage int
		wantPages             int
	}{
		{"exact pages", 2, 5, 10, 2, 5, 2},
		{"partial last page", 1, 10, 11, 1, 10, 2},
		{"empty listing", 1, 10, 0, 1, 10, 0},
		{"page below one", -3, 10, 4, 1, 10, 1},
		{"default per page", 1, 0, 25, 1, DefaultPerPage, 3},
		{"per page capped", 1, 500, 250, 1, MaxPerPage, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.page, tt.perPage, tt.total)
			if p.Page != tt.wantPage || p.PerPage != tt.wantPerPage {
				t.Errorf("Expected page %d/%d, got %d/%d", tt.wantPage, tt.wantPerPage, p.Page, p.PerPage)
			}
			if p.TotalPages != tt.wantPages {
				t.Errorf("Expected %d pages, got %d", tt.wantPages, p.TotalPages)
			}
			if p.TotalItems != tt.total {
				t.Errorf("Expected %d items, got %d", tt.total, p.TotalItems)
			}
		})
	}
}

func TestFailError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrCode
	}{
		{"validation", apperr.Validation("UNEXPECTED_QUESTION", "unexpected question answered"), http.StatusBadRequest, ErrUnexpectedQuestion},
		{"not found", apperr.NotFound("SESSION_NOT_FOUND", "missing"), http.StatusNotFound, ErrSessionNotFound},
		{"conflict", apperr.Conflict("COMPLETION_ALREADY_PROCESSED", "done"), http.StatusConflict, ErrCompletionProcessed},
		{"transient", apperr.Transient(errors.New("serialization failure")), http.StatusServiceUnavailable, ErrTransient},
		{"fatal", apperr.Fatal("ROLE_MISMATCH", "role"), http.StatusInternalServerError, ErrInternal},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Set(ContextKeyRequestID, "req-1")

			FailError(c, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var res Response
			if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
				t.Fatalf("Expected a JSON envelope, got %v", err)
			}
			if res.Error == nil || res.Error.Code != tt.wantCode {
				t.Errorf("Expected code %s, got %+v", tt.wantCode, res.Error)
			}
			if res.Metadata.RequestID != "req-1" {
				t.Errorf("Expected request id req-1, got %q", res.Metadata.RequestID)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"caller id kept", "trace-abc-123", true},
		{"missing id", "", false},
		{"id with spaces", "trace abc", false},
		{"oversized id", strings.Repeat("a", maxRequestIDLen+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequestIDMiddleware())
			r.GET("/", func(c *gin.Context) { Success(c, http.StatusOK, nil) })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(HeaderRequestID, tt.incoming)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(HeaderRequestID)
			if got == "" {
				t.Fatal("Expected a request id header")
			}
			if tt.keep && got != tt.incoming {
				t.Errorf("Expected %q to be kept, got %q", tt.incoming, got)
			}
			if !tt.keep && got == tt.incoming {
				t.Errorf("Expected %q to be replaced", tt.incoming)
			}

			var res Response
			if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
				t.Fatalf("Expected a JSON envelope, got %v", err)
			}
			if res.Metadata.RequestID != got {
				t.Errorf("Expected metadata id %q, got %q", got, res.Metadata.RequestID)
			}
		})
	}
}
