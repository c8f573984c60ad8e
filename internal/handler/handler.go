// Package handler содержит HTTP-обработчики API сервиса учёта писем.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/letterflow-system/internal/batch"
	"github.com/mmeshcher/letterflow-system/internal/middleware"
	"github.com/mmeshcher/letterflow-system/internal/model"
	"github.com/mmeshcher/letterflow-system/internal/repository"
	"github.com/mmeshcher/letterflow-system/internal/service"
	"github.com/mmeshcher/letterflow-system/internal/statemachine"
	"github.com/mmeshcher/letterflow-system/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Register(ctx context.Context, in service.RegisterInput) (string, error)
	Authenticate(ctx context.Context, username, password string) (*model.Profile, error)
	GetActor(ctx context.Context, profileID string) (*model.Profile, error)

	CreateLetter(ctx context.Context, actor *model.Profile, in service.CreateLetterInput) (string, error)
	GetLetter(ctx context.Context, actor *model.Profile, letterID string) (*service.LetterDetails, error)
	ListMyLetters(ctx context.Context, actor *model.Profile) ([]model.Letter, error)
	DepartmentDashboard(ctx context.Context, actor *model.Profile) (*service.Dashboard, error)

	Dispatch(ctx context.Context, actor *model.Profile, letterID string, to model.Department) error
	Receive(ctx context.Context, actor *model.Profile, letterID string) error
	Reject(ctx context.Context, actor *model.Profile, letterID, reason string) error
	AddNote(ctx context.Context, actor *model.Profile, letterID, text string) (string, error)
	CompleteProcessing(ctx context.Context, actor *model.Profile, letterID string) error
	AttachPV(ctx context.Context, actor *model.Profile, letterID, pvID string) error
	Forward(ctx context.Context, actor *model.Profile, letterID string, to model.Department) error

	BulkAccept(ctx context.Context, actor *model.Profile, ids []string) (*service.BulkResult, error)
	BulkReject(ctx context.Context, actor *model.Profile, ids []string, reason string) (*service.BulkResult, error)
	BulkDispatch(ctx context.Context, actor *model.Profile, ids []string, to model.Department) (*service.BulkResult, error)
	BulkForward(ctx context.Context, actor *model.Profile, ids []string, to model.Department) (*service.BulkResult, error)
	BulkProcess(ctx context.Context, actor *model.Profile, ids []string) (*service.BulkResult, error)
	Archive(ctx context.Context, actor *model.Profile, ids []string) (*service.BulkResult, error)

	CreateBatch(ctx context.Context, actor *model.Profile, in service.BatchInput, parsed *batch.Parsed) (*service.BatchSummary, error)
	GetBatch(ctx context.Context, actor *model.Profile, batchID string) (*service.BatchDetails, error)
	ListBatches(ctx context.Context, actor *model.Profile) ([]model.LetterBatch, error)
	BatchDispatch(ctx context.Context, actor *model.Profile, batchID string, to model.Department) (*service.BulkResult, error)
	BatchForward(ctx context.Context, actor *model.Profile, batchID string, to model.Department) (*service.BulkResult, error)
	BatchProcess(ctx context.Context, actor *model.Profile, batchID string) (*service.BulkResult, error)

	ProcessingTimeStats(ctx context.Context, actor *model.Profile, dept *model.Department) (*service.ProcessingStats, error)
}

// Handler реализует HTTP-обработчики API сервиса учёта писем.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// actor извлекает профиль текущего сотрудника из контекста запроса.
// При отказе ответ уже записан.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (*model.Profile, bool) {
	profileID, ok := middleware.GetProfileIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return nil, false
	}

	actor, err := h.service.GetActor(r.Context(), profileID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return nil, false
		}
		h.logger.Error("load actor error", zap.Error(err), zap.String("profileID", profileID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}

	return actor, true
}

// serviceError переводит ошибки бизнес-логики в HTTP-статусы.
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, validation.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, statemachine.ErrCustodyViolation),
		errors.Is(err, statemachine.ErrNoCustody):
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	case errors.Is(err, repository.ErrLetterNotFound),
		errors.Is(err, repository.ErrMovementNotFound),
		errors.Is(err, repository.ErrBatchNotFound):
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	case errors.Is(err, statemachine.ErrInvalidTransition),
		errors.Is(err, repository.ErrLetterConflict),
		errors.Is(err, repository.ErrMovementPending),
		errors.Is(err, repository.ErrDuplicateSerial),
		errors.Is(err, repository.ErrDuplicatePV):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("service error", zap.Error(err), zap.String("path", r.URL.Path))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

type credentialsRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	FullName   string `json:"full_name,omitempty"`
}

// Register обрабатывает регистрацию нового сотрудника.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	in := service.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Role:     model.Role(req.Role),
		FullName: req.FullName,
	}
	if req.Department != "" {
		dept := model.Department(req.Department)
		in.Department = &dept
	}

	profileID, err := h.service.Register(r.Context(), in)
	if err != nil {
		if errors.Is(err, repository.ErrProfileExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.serviceError(w, r, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, profileID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию сотрудника и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	profile, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, profile.ID)
	w.WriteHeader(http.StatusOK)
}
