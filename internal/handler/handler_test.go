package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/cache"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/event"
	"github.com/stemsi/exstem-assessment/internal/handler"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/queue"
	"github.com/stemsi/exstem-assessment/internal/repository/memstore"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/router"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
)

const testRole = 2

type nopInvalidator struct{}

func (nopInvalidator) InvalidateByPattern(context.Context, string) (int, error) { return 0, nil }

type memQueue struct {
	mu   sync.Mutex
	jobs []*queue.Job
}

func (q *memQueue) Enqueue(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *memQueue) Len(context.Context) (int64, int64, int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), 0, 0, nil
}

type testEnv struct {
	engine *gin.Engine
	auth   *service.AuthService
	store  *memstore.Store
	jobs   *memQueue
	redis  error
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	validator.Setup()

	env := &testEnv{
		auth:  service.NewAuthService("test-secret", time.Hour),
		store: memstore.New(),
		jobs:  &memQueue{},
	}
	log := zerolog.Nop()
	local := cache.NewMemoryCache(1000, time.Minute)
	order := model.DefaultCategoryOrder

	tracker := service.NewProgressTracker(env.store, local, time.Minute, order, log)
	answers := service.NewAnswerService(env.store, local, time.Minute, tracker, log)
	syncer := service.NewSyncService(env.store, local, time.Minute, order, log)
	completion := service.NewCompletionService(env.store, local, time.Minute, nopInvalidator{}, env.jobs, event.NewMockPublisher(), 3, log)
	allocator := service.NewAllocatorService(env.store, local, time.Minute, order, model.DefaultQuestionsPerCategory, log)

	deps := map[string]handler.Pinger{
		"postgres": handler.PingFunc(func(context.Context) error { return nil }),
		"redis":    handler.PingFunc(func(context.Context) error { return env.redis }),
	}

	cfg := &config.Config{GinMode: gin.TestMode, SyncRateLimit: 100}
	env.engine = router.SetupRouter(env.auth, &router.Handlers{
		Assessment:   handler.NewAssessmentHandler(tracker, answers, syncer, completion),
		AdminSession: handler.NewAdminSessionHandler(allocator),
		System:       handler.NewSystemHandler(deps, env.jobs, log),
	}, cfg)
	return env
}

func (e *testEnv) participantToken(t *testing.T, userID, roleID int) string {
	t.Helper()
	token, err := e.auth.GenerateParticipantToken(userID, roleID)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func (e *testEnv) adminToken(t *testing.T, permissions ...model.Permission) string {
	t.Helper()
	codes := make([]string, len(permissions))
	for i, p := range permissions {
		codes[i] = string(p)
	}
	token, err := e.auth.GenerateAdminToken(1, 1, codes)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

type envelope struct {
	Data       json.RawMessage      `json:"data"`
	Error      *response.ErrorBody  `json:"error"`
	Pagination *response.Pagination `json:"pagination"`
	Metadata   response.Metadata    `json:"metadata"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") != "" && w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode data %s: %v", raw, err)
	}
	return v
}

func errCode(env envelope) response.ErrCode {
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

// seedQuestions binds n questions per category to testRole; option 0 is always correct.
func (e *testEnv) seedQuestions(n map[model.Category]int) {
	for c, count := range n {
		for i := 0; i < count; i++ {
			e.store.AddQuestion(model.Question{
				ID:            uuid.New(),
				QuestionText:  "Pick the first option",
				Options:       []string{"right", "wrong", "also wrong"},
				CorrectOption: 0,
				Category:      c,
			}, testRole)
		}
	}
}

// generatedSession creates a session through the admin API and generates its sets.
func (e *testEnv) generatedSession(t *testing.T, perCategory int) uuid.UUID {
	t.Helper()
	admin := e.adminToken(t, model.PermissionSessionsWrite)

	status, env := e.do(t, http.MethodPost, "/api/v1/admin/sessions", admin, gin.H{
		"title":                  "Warehouse onboarding",
		"questions_per_category": perCategory,
	})
	if status != http.StatusCreated {
		t.Fatalf("Expected 201 creating session, got %d (%v)", status, errCode(env))
	}
	created := decode[struct {
		Session model.Session `json:"session"`
	}](t, env.Data)

	status, env = e.do(t, http.MethodPost, "/api/v1/admin/sessions/"+created.Session.ID.String()+"/generate", admin, gin.H{
		"role_ids": []int{testRole},
	})
	if status != http.StatusCreated {
		t.Fatalf("Expected 201 generating sets, got %d (%v)", status, errCode(env))
	}
	return created.Session.ID
}

func TestAssessmentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedQuestions(map[model.Category]int{model.CategoryC: 2, model.CategoryI: 1})
	sessionID := env.generatedSession(t, 2)
	token := env.participantToken(t, 42, testRole)
	base := "/api/v1/assessments/" + sessionID.String()

	status, res := env.do(t, http.MethodPost, base+"/start", token, nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200 on start, got %d (%v)", status, errCode(res))
	}
	view := decode[model.ProgressView](t, res.Data)
	if view.Progress.TotalQuestions != 3 {
		t.Fatalf("Expected 3 questions, got %d", view.Progress.TotalQuestions)
	}
	if view.CurrentQuestion == nil || view.CurrentQuestion.Category != model.CategoryC {
		t.Fatalf("Expected a current question in category C, got %+v", view.CurrentQuestion)
	}

	next := view.CurrentQuestion
	var last model.AnswerResult
	for i := 0; i < 3; i++ {
		status, res = env.do(t, http.MethodPost, base+"/answers", token, gin.H{
			"question_id":     next.ID,
			"selected_option": 0,
		})
		if status != http.StatusOK {
			t.Fatalf("Expected 200 on answer %d, got %d (%v)", i, status, errCode(res))
		}
		last = decode[model.AnswerResult](t, res.Data)
		if !last.IsCorrect {
			t.Errorf("Expected answer %d to be correct", i)
		}
		next = last.NextQuestion
		if i < 2 && next == nil {
			t.Fatalf("Expected a next question after answer %d", i)
		}
	}
	if !last.Completed || last.Progress.Status != model.ProgressCompleted {
		t.Fatalf("Expected completed after the last answer, got %+v", last.Progress)
	}

	status, res = env.do(t, http.MethodPost, base+"/complete", token, nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200 on complete, got %d (%v)", status, errCode(res))
	}
	result := decode[model.CompletionResult](t, res.Data)
	if result.Score != 100 {
		t.Errorf("Expected score 100, got %v", result.Score)
	}
	if result.Rank != 1 {
		t.Errorf("Expected rank 1, got %d", result.Rank)
	}
	if result.CertificateID == "" {
		t.Error("Expected a certificate id")
	}
	if len(env.jobs.jobs) != 1 {
		t.Errorf("Expected one certificate job, got %d", len(env.jobs.jobs))
	}

	status, res = env.do(t, http.MethodPost, base+"/complete", token, nil)
	if status != http.StatusConflict || errCode(res) != response.ErrCompletionProcessed {
		t.Errorf("Expected 409 %s on second completion, got %d %s", response.ErrCompletionProcessed, status, errCode(res))
	}

	status, res = env.do(t, http.MethodPost, base+"/retake", token, nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200 on retake, got %d (%v)", status, errCode(res))
	}
	retake := decode[struct {
		Progress model.UserProgress `json:"progress"`
	}](t, res.Data)
	if retake.Progress.Status != model.ProgressNotStarted || retake.Progress.AnsweredQuestions != 0 {
		t.Errorf("Expected a reset progress, got %+v", retake.Progress)
	}
}

func TestAssessmentErrors(t *testing.T) {
	env := newTestEnv(t)
	env.seedQuestions(map[model.Category]int{model.CategoryC: 2})
	sessionID := env.generatedSession(t, 2)
	token := env.participantToken(t, 7, testRole)
	base := "/api/v1/assessments/" + sessionID.String()

	status, res := env.do(t, http.MethodGet, base+"/progress", token, nil)
	if status != http.StatusNotFound || errCode(res) != response.ErrProgressNotFound {
		t.Errorf("Expected 404 %s before start, got %d %s", response.ErrProgressNotFound, status, errCode(res))
	}

	if status, res = env.do(t, http.MethodPost, base+"/start", token, nil); status != http.StatusOK {
		t.Fatalf("Expected 200 on start, got %d (%v)", status, errCode(res))
	}

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   response.ErrCode
	}{
		{"unexpected question", http.MethodPost, base + "/answers", gin.H{"question_id": uuid.New(), "selected_option": 0}, http.StatusBadRequest, response.ErrUnexpectedQuestion},
		{"missing option", http.MethodPost, base + "/answers", gin.H{"question_id": uuid.New()}, http.StatusBadRequest, response.ErrValidation},
		{"complete too early", http.MethodPost, base + "/complete", nil, http.StatusBadRequest, response.ErrSessionNotCompleted},
		{"malformed session id", http.MethodGet, "/api/v1/assessments/not-a-uuid/progress", nil, http.StatusBadRequest, response.ErrInvalidID},
		{"unknown session", http.MethodPost, "/api/v1/assessments/" + uuid.NewString() + "/start", nil, http.StatusNotFound, response.ErrSessionNotFound},
		{"invalid sync status", http.MethodPost, base + "/sync", gin.H{"status": "finished"}, http.StatusBadRequest, response.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, res := env.do(t, tt.method, tt.path, token, tt.body)
			if status != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, status)
			}
			if errCode(res) != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, errCode(res))
			}
		})
	}
}

func TestSyncEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedQuestions(map[model.Category]int{model.CategoryR: 2})
	sessionID := env.generatedSession(t, 2)
	token := env.participantToken(t, 9, testRole)
	base := "/api/v1/assessments/" + sessionID.String()

	_, res := env.do(t, http.MethodPost, base+"/start", token, nil)
	view := decode[model.ProgressView](t, res.Data)

	status, res := env.do(t, http.MethodPost, base+"/sync", token, gin.H{
		"answers": []gin.H{
			{"question_id": view.CurrentQuestion.ID, "selected_option": 0},
			{"question_id": uuid.New(), "selected_option": 0},
		},
		"status": "completed",
	})
	if status != http.StatusOK {
		t.Fatalf("Expected 200 on sync, got %d (%v)", status, errCode(res))
	}
	result := decode[model.SyncResult](t, res.Data)
	if result.Inserted != 1 || result.Ignored != 1 {
		t.Errorf("Expected 1 inserted and 1 ignored, got %d and %d", result.Inserted, result.Ignored)
	}
	if result.Status != model.ProgressInProgress {
		t.Errorf("Expected early completion claim to be downgraded, got %s", result.Status)
	}
	if result.NextSyncSeconds != 30 {
		t.Errorf("Expected next sync in 30s, got %d", result.NextSyncSeconds)
	}
}

func TestAuthBoundary(t *testing.T) {
	env := newTestEnv(t)
	path := "/api/v1/assessments/" + uuid.NewString() + "/progress"

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
		wantCode   response.ErrCode
	}{
		{"no token", http.MethodGet, path, "", http.StatusUnauthorized, response.ErrTokenRequired},
		{"garbage token", http.MethodGet, path, "not.a.jwt", http.StatusUnauthorized, response.ErrTokenInvalid},
		{"admin on participant route", http.MethodGet, path, env.adminToken(t, model.PermissionSessionsRead), http.StatusForbidden, response.ErrStudentAccessOnly},
		{"participant without role", http.MethodGet, path, env.participantToken(t, 5, 0), http.StatusForbidden, response.ErrInvalidRole},
		{"participant on admin route", http.MethodGet, "/api/v1/admin/sessions", env.participantToken(t, 5, testRole), http.StatusForbidden, response.ErrAdminAccessOnly},
		{"admin without permission", http.MethodGet, "/api/v1/admin/sessions", env.adminToken(t), http.StatusForbidden, response.ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, res := env.do(t, tt.method, tt.path, tt.token, nil)
			if status != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, status)
			}
			if errCode(res) != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, errCode(res))
			}
		})
	}

	other := service.NewAuthService("other-secret", time.Hour)
	forged, _ := other.GenerateParticipantToken(5, testRole)
	if status, _ := env.do(t, http.MethodGet, path, forged, nil); status != http.StatusUnauthorized {
		t.Errorf("Expected 401 for a token signed with another secret, got %d", status)
	}
}

func TestAdminSessions(t *testing.T) {
	env := newTestEnv(t)
	env.seedQuestions(map[model.Category]int{model.CategoryC: 1})
	sessionID := env.generatedSession(t, 1)
	admin := env.adminToken(t, model.PermissionSessionsRead, model.PermissionSessionsWrite)

	status, res := env.do(t, http.MethodGet, "/api/v1/admin/sessions?page=1&per_page=5&active=true", admin, nil)
	if status != http.StatusOK {
		t.Fatalf("Expected 200 listing sessions, got %d", status)
	}
	if res.Pagination == nil || res.Pagination.TotalItems != 1 || res.Pagination.PerPage != 5 {
		t.Errorf("Expected pagination with 1 item and 5 per page, got %+v", res.Pagination)
	}

	status, res = env.do(t, http.MethodPost, "/api/v1/admin/sessions/"+sessionID.String()+"/generate", admin, gin.H{"role_ids": []int{testRole}})
	if status != http.StatusConflict || errCode(res) != response.ErrQuestionsAlreadyGenerated {
		t.Errorf("Expected 409 %s, got %d %s", response.ErrQuestionsAlreadyGenerated, status, errCode(res))
	}

	status, res = env.do(t, http.MethodPost, "/api/v1/admin/sessions", admin, gin.H{"title": "x"})
	if status != http.StatusBadRequest || errCode(res) != response.ErrValidation {
		t.Errorf("Expected 400 %s for a short title, got %d %s", response.ErrValidation, status, errCode(res))
	}
	if res.Error != nil && res.Error.Fields["title"] == "" {
		t.Errorf("Expected a field error for title, got %v", res.Error.Fields)
	}

	status, res = env.do(t, http.MethodGet, "/api/v1/admin/sessions?per_page=500", admin, nil)
	if status != http.StatusBadRequest || errCode(res) != response.ErrValidation {
		t.Errorf("Expected 400 %s for an oversized page, got %d %s", response.ErrValidation, status, errCode(res))
	}
	if res.Error != nil && res.Error.Fields["per_page"] == "" {
		t.Errorf("Expected a field error for per_page, got %v", res.Error.Fields)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	status, res := env.do(t, http.MethodGet, "/health", "", nil)
	if status != http.StatusOK {
		t.Errorf("Expected 200 from health, got %d", status)
	}
	if res.Metadata.RequestID == "" {
		t.Error("Expected a request id in the metadata")
	}

	env.redis = errors.New("connection refused")
	status, res = env.do(t, http.MethodGet, "/health", "", nil)
	if status != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 with redis down, got %d", status)
	}
	health := decode[struct {
		Checks map[string]string `json:"checks"`
	}](t, res.Data)
	if health.Checks["redis"] != "down" || health.Checks["postgres"] != "up" {
		t.Errorf("Unexpected checks %v", health.Checks)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 from metrics, got %d", w.Code)
	}
}
