package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/mmeshcher/letterflow-system/internal/model"
	"github.com/mmeshcher/letterflow-system/internal/validation"
)

// ProcessingStats — сводка по срокам обработки писем в днях. Срок считается
// от даты получения письма отделом до последнего обновления.
type ProcessingStats struct {
	TotalProcessed int
	AverageDays    float64
	MinDays        float64
	MaxDays        float64
	MedianDays     float64
}

// ProcessingTimeStats возвращает статистику сроков обработки. Администратор
// и аудит видят любой отдел или все сразу, остальные сотрудники — только
// свой отдел.
func (s *Service) ProcessingTimeStats(ctx context.Context, actor *model.Profile, dept *model.Department) (*ProcessingStats, error) {
	if dept != nil && !dept.Valid() {
		return nil, fmt.Errorf("%w: unknown department %q", validation.ErrValidation, *dept)
	}

	switch actor.Role {
	case model.RoleAdmin, model.RoleAudit:
	default:
		if actor.Department == nil {
			return nil, ErrUnauthorized
		}
		dept = actor.Department
	}

	letters, err := s.repo.GetProcessedLetters(ctx, dept)
	if err != nil {
		return nil, err
	}

	return computeProcessingStats(letters), nil
}

func computeProcessingStats(letters []model.Letter) *ProcessingStats {
	stats := &ProcessingStats{}

	days := make([]float64, 0, len(letters))
	for _, letter := range letters {
		if letter.DateReceived == nil {
			continue
		}
		d := letter.UpdatedAt.Sub(*letter.DateReceived).Hours() / 24
		if d < 0 {
			continue
		}
		days = append(days, d)
	}
	if len(days) == 0 {
		return stats
	}

	sort.Float64s(days)

	var total float64
	for _, d := range days {
		total += d
	}

	stats.TotalProcessed = len(days)
	stats.AverageDays = total / float64(len(days))
	stats.MinDays = days[0]
	stats.MaxDays = days[len(days)-1]

	mid := len(days) / 2
	if len(days)%2 == 0 {
		stats.MedianDays = (days[mid-1] + days[mid]) / 2
	} else {
		stats.MedianDays = days[mid]
	}

	return stats
}
