package handler

import (
	"net/http"

	"github.com/mmeshcher/letterflow-system/internal/model"
)

type statsResponse struct {
	TotalProcessed int     `json:"total_processed"`
	AverageDays    float64 `json:"average_days"`
	MinDays        float64 `json:"min_days"`
	MaxDays        float64 `json:"max_days"`
	MedianDays     float64 `json:"median_days"`
}

// ProcessingTimeStats возвращает статистику сроков обработки писем.
// Отдел задаётся query-параметром department; без него администратор
// видит все отделы.
func (h *Handler) ProcessingTimeStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dept *model.Department
	if raw := r.URL.Query().Get("department"); raw != "" {
		d := model.Department(raw)
		dept = &d
	}

	stats, err := h.service.ProcessingTimeStats(r.Context(), actor, dept)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, statsResponse{
		TotalProcessed: stats.TotalProcessed,
		AverageDays:    stats.AverageDays,
		MinDays:        stats.MinDays,
		MaxDays:        stats.MaxDays,
		MedianDays:     stats.MedianDays,
	})
}
