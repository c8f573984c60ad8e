package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/letterflow-system/internal/batch"
	"github.com/mmeshcher/letterflow-system/internal/middleware"
	"github.com/mmeshcher/letterflow-system/internal/model"
	"github.com/mmeshcher/letterflow-system/internal/repository"
	"github.com/mmeshcher/letterflow-system/internal/service"
	"github.com/mmeshcher/letterflow-system/internal/statemachine"
)

const testProfileID = "3f2a6f80-9f4e-4c7b-9b1e-0a5d6c1b2d3e"

type stubService struct {
	registerID  string
	registerErr error

	authProfile *model.Profile
	authErr     error

	actor    *model.Profile
	actorErr error

	createLetterID  string
	createLetterErr error

	letterDetails *service.LetterDetails
	letterErr     error

	myLetters []model.Letter

	dashboard *service.Dashboard

	dispatchErr error
	receiveErr  error
	rejectErr   error
	noteID      string
	noteErr     error
	completeErr error
	attachErr   error
	forwardErr  error

	bulkResult *service.BulkResult
	bulkErr    error

	batchSummary *service.BatchSummary
	batchErr     error
	batchDetails *service.BatchDetails
	batches      []model.LetterBatch

	stats    *service.ProcessingStats
	statsErr error
}

func (s *stubService) Register(ctx context.Context, in service.RegisterInput) (string, error) {
	return s.registerID, s.registerErr
}

func (s *stubService) Authenticate(ctx context.Context, username, password string) (*model.Profile, error) {
	return s.authProfile, s.authErr
}

func (s *stubService) GetActor(ctx context.Context, profileID string) (*model.Profile, error) {
	if s.actorErr != nil {
		return nil, s.actorErr
	}
	if s.actor != nil {
		return s.actor, nil
	}
	return &model.Profile{ID: profileID, Role: model.RoleSecretary}, nil
}

func (s *stubService) CreateLetter(ctx context.Context, actor *model.Profile, in service.CreateLetterInput) (string, error) {
	return s.createLetterID, s.createLetterErr
}

func (s *stubService) GetLetter(ctx context.Context, actor *model.Profile, letterID string) (*service.LetterDetails, error) {
	return s.letterDetails, s.letterErr
}

func (s *stubService) ListMyLetters(ctx context.Context, actor *model.Profile) ([]model.Letter, error) {
	return s.myLetters, nil
}

func (s *stubService) DepartmentDashboard(ctx context.Context, actor *model.Profile) (*service.Dashboard, error) {
	return s.dashboard, nil
}

func (s *stubService) Dispatch(ctx context.Context, actor *model.Profile, letterID string, to model.Department) error {
	return s.dispatchErr
}

func (s *stubService) Receive(ctx context.Context, actor *model.Profile, letterID string) error {
	return s.receiveErr
}

func (s *stubService) Reject(ctx context.Context, actor *model.Profile, letterID, reason string) error {
	return s.rejectErr
}

func (s *stubService) AddNote(ctx context.Context, actor *model.Profile, letterID, text string) (string, error) {
	return s.noteID, s.noteErr
}

func (s *stubService) CompleteProcessing(ctx context.Context, actor *model.Profile, letterID string) error {
	return s.completeErr
}

func (s *stubService) AttachPV(ctx context.Context, actor *model.Profile, letterID, pvID string) error {
	return s.attachErr
}

func (s *stubService) Forward(ctx context.Context, actor *model.Profile, letterID string, to model.Department) error {
	return s.forwardErr
}

func (s *stubService) BulkAccept(ctx context.Context, actor *model.Profile, ids []string) (*service.BulkResult, error) {
	return s.bulkResult, s.bulkErr
}

func (s *stubService) BulkReject(ctx context.Context, actor *model.Profile, ids []string, reason string) (*service.BulkResult, error) {
	return s.bulkResult, s.bulkErr
}

func (s *stubService) BulkDispatch(ctx context.Context, actor *model.Profile, ids []string, to model.Department) (*service.BulkResult, error) {
	return s.bulkResult, s.bulkErr
}

func (s *stubService) BulkForward(ctx context.Context, actor *model.Profile, ids []string, to model.Department) (*service.BulkResult, error) {
	return s.bulkResult, s.bulkErr
}

func (s *stubService) BulkProcess(ctx context.Context, actor *model.Profile, ids []string) (*service.BulkResult, error) {
	return s.bulkResult, s.bulkErr
}

func (s *stubService) Archive(ctx context.Context, actor *model.Profile, ids []string) (*service.BulkResult, error) {
	return s.bulkResult, s.bulkErr
}

func (s *stubService) CreateBatch(ctx context.Context, actor *model.Profile, in service.BatchInput, parsed *batch.Parsed) (*service.BatchSummary, error) {
	return s.batchSummary, s.batchErr
}

func (s *stubService) GetBatch(ctx context.Context, actor *model.Profile, batchID string) (*service.BatchDetails, error) {
	return s.batchDetails, s.batchErr
}

func (s *stubService) ListBatches(ctx context.Context, actor *model.Profile) ([]model.LetterBatch, error) {
	return s.batches, nil
}

func (s *stubService) BatchDispatch(ctx context.Context, actor *model.Profile, batchID string, to model.Department) (*service.BulkResult, error) {
	return s.bulkResult, s.bulkErr
}

func (s *stubService) BatchForward(ctx context.Context, actor *model.Profile, batchID string, to model.Department) (*service.BulkResult, error) {
	return s.bulkResult, s.bulkErr
}

func (s *stubService) BatchProcess(ctx context.Context, actor *model.Profile, batchID string) (*service.BulkResult, error) {
	return s.bulkResult, s.bulkErr
}

func (s *stubService) ProcessingTimeStats(ctx context.Context, actor *model.Profile, dept *model.Department) (*service.ProcessingStats, error) {
	return s.stats, s.statsErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth)
}

// authed прикрепляет к запросу валидную cookie аутентификации.
func authed(h *Handler, req *http.Request) *http.Request {
	rec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(rec, testProfileID)
	req.AddCookie(rec.Result().Cookies()[0])
	return req
}

func TestRegister_SetsCookie(t *testing.T) {
	svc := &stubService{registerID: testProfileID}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{
		Username: "secretary1",
		Password: "pass",
		Role:     "secretary",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("expected auth cookie")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := &stubService{authErr: service.ErrInvalidCredentials}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Username: "user", Password: "wrong"})

	req := httptest.NewRequest(http.MethodPost, "/api/user/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestCreateLetter_RequiresAuth(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	body, _ := json.Marshal(createLetterRequest{Subject: "Pension arrears for March"})
	req := httptest.NewRequest(http.MethodPost, "/api/letters/", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestCreateLetter_Created(t *testing.T) {
	svc := &stubService{createLetterID: "letter-1"}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(createLetterRequest{Subject: "Pension arrears for March"})
	req := authed(h, httptest.NewRequest(http.MethodPost, "/api/letters/", bytes.NewReader(body)))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["id"] != "letter-1" {
		t.Fatalf("id = %q, want letter-1", resp["id"])
	}
}

func TestDispatch_InvalidTransitionConflict(t *testing.T) {
	svc := &stubService{dispatchErr: statemachine.ErrInvalidTransition}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(departmentRequest{Department: "Budget"})
	req := authed(h, httptest.NewRequest(http.MethodPost, "/api/letters/"+testProfileID+"/dispatch", bytes.NewReader(body)))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestReceive_UnauthorizedForbidden(t *testing.T) {
	svc := &stubService{receiveErr: service.ErrUnauthorized}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := authed(h, httptest.NewRequest(http.MethodPost, "/api/letters/"+testProfileID+"/receive", nil))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}
}

func TestGetLetter_NotFound(t *testing.T) {
	svc := &stubService{letterErr: repository.ErrLetterNotFound}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := authed(h, httptest.NewRequest(http.MethodGet, "/api/letters/"+testProfileID+"/", nil))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNotFound)
	}
}

func TestBulkAccept_ReportsFailures(t *testing.T) {
	svc := &stubService{
		bulkResult: &service.BulkResult{
			Updated: []string{"a"},
			Failed: []service.ItemError{
				{ID: "b", Err: repository.ErrLetterConflict},
			},
			Warning: "movement log incomplete",
		},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(bulkRequest{LetterIDs: []string{"a", "b"}})
	req := authed(h, httptest.NewRequest(http.MethodPost, "/api/letters/bulk-accept", bytes.NewReader(body)))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Updated) != 1 || resp.Updated[0] != "a" {
		t.Fatalf("updated = %v, want [a]", resp.Updated)
	}
	if len(resp.Failed) != 1 || resp.Failed[0].ID != "b" {
		t.Fatalf("failed = %v, want one entry for b", resp.Failed)
	}
	if resp.Warning == "" {
		t.Fatalf("expected warning in response")
	}
}

func TestListMyLetters_NoContent(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	req := authed(h, httptest.NewRequest(http.MethodGet, "/api/letters/", nil))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNoContent)
	}
}

func TestProcessingTimeStats_JSONResponse(t *testing.T) {
	svc := &stubService{
		stats: &service.ProcessingStats{
			TotalProcessed: 3,
			AverageDays:    5,
			MinDays:        2,
			MaxDays:        9,
			MedianDays:     4,
		},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := authed(h, httptest.NewRequest(http.MethodGet, "/api/stats/processing-time?department=Budget", nil))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp statsResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalProcessed != 3 || resp.MedianDays != 4 {
		t.Fatalf("unexpected stats %+v", resp)
	}
}
