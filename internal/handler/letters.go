package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/letterflow-system/internal/model"
	"github.com/mmeshcher/letterflow-system/internal/service"
)

type letterResponse struct {
	ID                string   `json:"id"`
	SerialNumber      *string  `json:"serial_number,omitempty"`
	Subject           string   `json:"subject"`
	DateGenerated     *string  `json:"date_generated,omitempty"`
	DateReceived      *string  `json:"date_received,omitempty"`
	DateMinuted       *string  `json:"date_minuted,omitempty"`
	DispatchDate      *string  `json:"dispatch_date,omitempty"`
	Amount            *float64 `json:"amount,omitempty"`
	Status            string   `json:"status"`
	CurrentDepartment *string  `json:"current_department,omitempty"`
	IsArchived        bool     `json:"is_archived"`
	PVID              *string  `json:"pv_id,omitempty"`
	BatchID           *string  `json:"batch_id,omitempty"`
	BatchIndex        *int     `json:"batch_index,omitempty"`
	CreatedBy         string   `json:"created_by"`
	CreatedAt         string   `json:"created_at"`
	UpdatedAt         string   `json:"updated_at"`
}

func toLetterResponse(l model.Letter) letterResponse {
	resp := letterResponse{
		ID:            l.ID,
		SerialNumber:  l.SerialNumber,
		Subject:       l.Subject,
		DateGenerated: formatDate(l.DateGenerated),
		DateReceived:  formatDate(l.DateReceived),
		DateMinuted:   formatDate(l.DateMinuted),
		DispatchDate:  formatDate(l.DispatchDate),
		Status:        string(l.Status),
		IsArchived:    l.IsArchived,
		PVID:          l.PVID,
		BatchID:       l.BatchID,
		BatchIndex:    l.BatchIndex,
		CreatedBy:     l.CreatedBy,
		CreatedAt:     l.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     l.UpdatedAt.Format(time.RFC3339),
	}
	if l.AmountKobo != nil {
		amount := float64(*l.AmountKobo) / 100
		resp.Amount = &amount
	}
	if l.CurrentDepartment != nil {
		dept := string(*l.CurrentDepartment)
		resp.CurrentDepartment = &dept
	}
	return resp
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

func toLetterResponses(letters []model.Letter) []letterResponse {
	resp := make([]letterResponse, 0, len(letters))
	for _, l := range letters {
		resp = append(resp, toLetterResponse(l))
	}
	return resp
}

type createLetterRequest struct {
	Subject       string   `json:"subject"`
	SerialNumber  string   `json:"serial_number,omitempty"`
	DateGenerated string   `json:"date_generated,omitempty"`
	DateMinuted   string   `json:"date_minuted,omitempty"`
	Amount        *float64 `json:"amount,omitempty"`
}

// CreateLetter регистрирует новое письмо.
func (h *Handler) CreateLetter(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req createLetterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	in := service.CreateLetterInput{
		Subject:       req.Subject,
		SerialNumber:  req.SerialNumber,
		DateGenerated: req.DateGenerated,
		DateMinuted:   req.DateMinuted,
	}
	if req.Amount != nil {
		kobo := int64(*req.Amount * 100)
		in.Amount = &kobo
	}

	id, err := h.service.CreateLetter(r.Context(), actor, in)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// ListMyLetters возвращает письма, созданные текущим сотрудником.
func (h *Handler) ListMyLetters(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	letters, err := h.service.ListMyLetters(r.Context(), actor)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	if len(letters) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, http.StatusOK, toLetterResponses(letters))
}

type movementResponse struct {
	ID              string  `json:"id"`
	FromDepartment  *string `json:"from_department,omitempty"`
	ToDepartment    string  `json:"to_department"`
	DispatchedBy    string  `json:"dispatched_by"`
	DispatchedAt    string  `json:"dispatched_at"`
	ReceivedBy      *string `json:"received_by,omitempty"`
	ReceivedAt      *string `json:"received_at,omitempty"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	Status          string  `json:"status"`
}

type noteResponse struct {
	ID         string `json:"id"`
	Department string `json:"department"`
	Note       string `json:"note"`
	CreatedBy  string `json:"created_by"`
	CreatedAt  string `json:"created_at"`
}

type letterDetailsResponse struct {
	Letter    letterResponse     `json:"letter"`
	Movements []movementResponse `json:"movements"`
	Notes     []noteResponse     `json:"notes"`
}

// GetLetter возвращает письмо с историей перемещений и заметками.
func (h *Handler) GetLetter(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	details, err := h.service.GetLetter(r.Context(), actor, chi.URLParam(r, "letterID"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	resp := letterDetailsResponse{
		Letter:    toLetterResponse(details.Letter),
		Movements: make([]movementResponse, 0, len(details.Movements)),
		Notes:     make([]noteResponse, 0, len(details.Notes)),
	}
	for _, m := range details.Movements {
		mr := movementResponse{
			ID:              m.ID,
			ToDepartment:    string(m.ToDepartment),
			DispatchedBy:    m.DispatchedBy,
			DispatchedAt:    m.DispatchedAt.Format(time.RFC3339),
			ReceivedBy:      m.ReceivedBy,
			RejectionReason: m.RejectionReason,
			Status:          string(m.Status),
		}
		if m.FromDepartment != nil {
			dept := string(*m.FromDepartment)
			mr.FromDepartment = &dept
		}
		if m.ReceivedAt != nil {
			at := m.ReceivedAt.Format(time.RFC3339)
			mr.ReceivedAt = &at
		}
		resp.Movements = append(resp.Movements, mr)
	}
	for _, n := range details.Notes {
		resp.Notes = append(resp.Notes, noteResponse{
			ID:         n.ID,
			Department: string(n.Department),
			Note:       n.Note,
			CreatedBy:  n.CreatedBy,
			CreatedAt:  n.CreatedAt.Format(time.RFC3339),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

type dashboardResponse struct {
	Incoming   []letterResponse `json:"incoming"`
	Processing []letterResponse `json:"processing"`
	Processed  []letterResponse `json:"processed"`
}

// Dashboard возвращает письма отдела текущего сотрудника по стадиям.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	dashboard, err := h.service.DepartmentDashboard(r.Context(), actor)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, dashboardResponse{
		Incoming:   toLetterResponses(dashboard.Incoming),
		Processing: toLetterResponses(dashboard.Processing),
		Processed:  toLetterResponses(dashboard.Processed),
	})
}

type departmentRequest struct {
	Department string `json:"department"`
}

// DispatchLetter направляет письмо в отдел.
func (h *Handler) DispatchLetter(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req departmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.Dispatch(r.Context(), actor, chi.URLParam(r, "letterID"), model.Department(req.Department))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ReceiveLetter принимает письмо в отделе текущего сотрудника.
func (h *Handler) ReceiveLetter(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	if err := h.service.Receive(r.Context(), actor, chi.URLParam(r, "letterID")); err != nil {
		h.serviceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// RejectLetter отклоняет письмо с указанием причины.
func (h *Handler) RejectLetter(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.Reject(r.Context(), actor, chi.URLParam(r, "letterID"), req.Reason); err != nil {
		h.serviceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type noteRequest struct {
	Note string `json:"note"`
}

// AddNote добавляет заметку обработки к письму.
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id, err := h.service.AddNote(r.Context(), actor, chi.URLParam(r, "letterID"), req.Note)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// CompleteLetter завершает обработку письма.
func (h *Handler) CompleteLetter(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	if err := h.service.CompleteProcessing(r.Context(), actor, chi.URLParam(r, "letterID")); err != nil {
		h.serviceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type attachPVRequest struct {
	PVID string `json:"pv_id"`
}

// AttachPV прикрепляет номер платёжного поручения к письму.
func (h *Handler) AttachPV(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req attachPVRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.AttachPV(r.Context(), actor, chi.URLParam(r, "letterID"), req.PVID); err != nil {
		h.serviceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ForwardLetter пересылает обработанное письмо в другой отдел.
func (h *Handler) ForwardLetter(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req departmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.Forward(r.Context(), actor, chi.URLParam(r, "letterID"), model.Department(req.Department))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
