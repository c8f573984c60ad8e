package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mmeshcher/letterflow-system/internal/model"
	"github.com/mmeshcher/letterflow-system/internal/service"
)

type bulkRequest struct {
	LetterIDs  []string `json:"letter_ids"`
	Department string   `json:"department,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

type itemErrorResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

type bulkResponse struct {
	Updated []string            `json:"updated"`
	Failed  []itemErrorResponse `json:"failed"`
	Warning string              `json:"warning,omitempty"`
}

func toBulkResponse(result *service.BulkResult) bulkResponse {
	resp := bulkResponse{
		Updated: result.Updated,
		Failed:  make([]itemErrorResponse, 0, len(result.Failed)),
		Warning: result.Warning,
	}
	if resp.Updated == nil {
		resp.Updated = []string{}
	}
	for _, f := range result.Failed {
		resp.Failed = append(resp.Failed, itemErrorResponse{ID: f.ID, Error: f.Err.Error()})
	}
	return resp
}

// bulkHandler обслуживает массовые операции с одинаковой формой запроса
// и ответа.
func (h *Handler) bulkHandler(op func(ctx context.Context, actor *model.Profile, req bulkRequest) (*service.BulkResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := h.actor(w, r)
		if !ok {
			return
		}

		var req bulkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		result, err := op(r.Context(), actor, req)
		if err != nil {
			h.serviceError(w, r, err)
			return
		}

		h.writeJSON(w, http.StatusOK, toBulkResponse(result))
	}
}

// BulkAccept принимает пачку писем в отделе текущего сотрудника.
func (h *Handler) BulkAccept() http.HandlerFunc {
	return h.bulkHandler(func(ctx context.Context, actor *model.Profile, req bulkRequest) (*service.BulkResult, error) {
		return h.service.BulkAccept(ctx, actor, req.LetterIDs)
	})
}

// BulkReject отклоняет пачку писем с единой причиной.
func (h *Handler) BulkReject() http.HandlerFunc {
	return h.bulkHandler(func(ctx context.Context, actor *model.Profile, req bulkRequest) (*service.BulkResult, error) {
		return h.service.BulkReject(ctx, actor, req.LetterIDs, req.Reason)
	})
}

// BulkDispatch отправляет пачку писем в отдел.
func (h *Handler) BulkDispatch() http.HandlerFunc {
	return h.bulkHandler(func(ctx context.Context, actor *model.Profile, req bulkRequest) (*service.BulkResult, error) {
		return h.service.BulkDispatch(ctx, actor, req.LetterIDs, model.Department(req.Department))
	})
}

// BulkForward пересылает пачку обработанных писем в отдел.
func (h *Handler) BulkForward() http.HandlerFunc {
	return h.bulkHandler(func(ctx context.Context, actor *model.Profile, req bulkRequest) (*service.BulkResult, error) {
		return h.service.BulkForward(ctx, actor, req.LetterIDs, model.Department(req.Department))
	})
}

// BulkProcess завершает обработку пачки писем.
func (h *Handler) BulkProcess() http.HandlerFunc {
	return h.bulkHandler(func(ctx context.Context, actor *model.Profile, req bulkRequest) (*service.BulkResult, error) {
		return h.service.BulkProcess(ctx, actor, req.LetterIDs)
	})
}

// ArchiveLetters архивирует пачку обработанных писем.
func (h *Handler) ArchiveLetters() http.HandlerFunc {
	return h.bulkHandler(func(ctx context.Context, actor *model.Profile, req bulkRequest) (*service.BulkResult, error) {
		return h.service.Archive(ctx, actor, req.LetterIDs)
	})
}
