package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/letterflow-system/internal/batch"
	"github.com/mmeshcher/letterflow-system/internal/model"
	"github.com/mmeshcher/letterflow-system/internal/service"
)

const maxImportSize = 10 << 20 // 10 МБ на CSV-файл

// CreateBatch создаёт серию писем из CSV-файла. Запрос приходит как
// multipart-форма: файл в поле file, параметры серии в остальных полях.
func (h *Handler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	parsed, err := batch.ParseCSV(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	in := service.BatchInput{
		Name:            r.FormValue("name"),
		LetterType:      r.FormValue("letter_type"),
		SubjectTemplate: r.FormValue("subject_template"),
		SerialPrefix:    r.FormValue("serial_prefix"),
		DateGenerated:   r.FormValue("date_generated"),
		DateMinuted:     r.FormValue("date_minuted"),
		SourceFilename:  header.Filename,
	}

	summary, err := h.service.CreateBatch(r.Context(), actor, in, parsed)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"batch_id":   summary.BatchID,
		"created":    summary.Created,
		"row_errors": summary.RowErrors,
	})
}

type batchResponse struct {
	ID            string  `json:"id"`
	BatchName     string  `json:"batch_name"`
	LetterType    string  `json:"letter_type"`
	TotalCount    int     `json:"total_count"`
	CreatedBy     string  `json:"created_by"`
	DateGenerated *string `json:"date_generated,omitempty"`
	DateMinuted   *string `json:"date_minuted,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

func toBatchResponse(b model.LetterBatch) batchResponse {
	return batchResponse{
		ID:            b.ID,
		BatchName:     b.BatchName,
		LetterType:    b.LetterType,
		TotalCount:    b.TotalCount,
		CreatedBy:     b.CreatedBy,
		DateGenerated: formatDate(b.DateGenerated),
		DateMinuted:   formatDate(b.DateMinuted),
		CreatedAt:     b.CreatedAt.Format(time.RFC3339),
	}
}

// ListBatches возвращает серии, видимые текущему сотруднику.
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	batches, err := h.service.ListBatches(r.Context(), actor)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	if len(batches) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]batchResponse, 0, len(batches))
	for _, b := range batches {
		resp = append(resp, toBatchResponse(b))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetBatch возвращает серию и её письма.
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	details, err := h.service.GetBatch(r.Context(), actor, chi.URLParam(r, "batchID"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"batch":   toBatchResponse(details.Batch),
		"letters": toLetterResponses(details.Letters),
	})
}

// BatchDispatch отправляет все неотправленные письма серии в отдел.
func (h *Handler) BatchDispatch(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req departmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	result, err := h.service.BatchDispatch(r.Context(), actor, chi.URLParam(r, "batchID"), model.Department(req.Department))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toBulkResponse(result))
}

// BatchForward пересылает обработанные письма серии в отдел.
func (h *Handler) BatchForward(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req departmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	result, err := h.service.BatchForward(r.Context(), actor, chi.URLParam(r, "batchID"), model.Department(req.Department))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toBulkResponse(result))
}

// BatchProcess завершает обработку писем серии в отделе сотрудника.
func (h *Handler) BatchProcess(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	result, err := h.service.BatchProcess(r.Context(), actor, chi.URLParam(r, "batchID"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toBulkResponse(result))
}
