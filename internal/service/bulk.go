package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/letterflow-system/internal/model"
	"github.com/mmeshcher/letterflow-system/internal/permission"
	"github.com/mmeshcher/letterflow-system/internal/repository"
	"github.com/mmeshcher/letterflow-system/internal/statemachine"
	"github.com/mmeshcher/letterflow-system/internal/validation"
)

// ItemError описывает причину, по которой отдельное письмо не прошло
// массовую операцию.
type ItemError struct {
	ID  string
	Err error
}

// BulkResult содержит результат массовой операции: обновлённые письма,
// отказы по каждому письму и предупреждение, если журнал перемещений
// записан не полностью.
type BulkResult struct {
	Updated []string
	Failed  []ItemError
	Warning string
}

// Массовые операции устроены одинаково: письма читаются пачкой, каждое
// проверяется правами и машиной состояний, прошедшие проверку обновляются
// одним условным UPDATE. Письма, выпавшие из выборки UPDATE из-за гонки,
// попадают в Failed с ошибкой конфликта. Журнал перемещений пишется после
// обновления статусов; его сбой не откатывает операцию, а возвращается
// предупреждением.

// BulkAccept принимает пачку писем в отделе сотрудника.
func (s *Service) BulkAccept(ctx context.Context, actor *model.Profile, ids []string) (*BulkResult, error) {
	result, winners, err := s.screenLetters(ctx, ids, func(letter *model.Letter) error {
		if !permission.CanReceiveLetter(actor, letter) {
			return ErrUnauthorized
		}
		return statemachine.ValidateTransition(letter.Status, model.LetterStatusProcessing, statemachine.ActionReceive)
	})
	if err != nil {
		return nil, err
	}
	if len(winners) == 0 {
		return result, nil
	}

	now := time.Now()
	updated, err := s.repo.BulkAcceptLetters(ctx, winners, *actor.Department, now)
	if err != nil {
		return nil, err
	}
	result.finish(winners, updated)

	if err := s.repo.ResolvePendingMovements(ctx, updated, model.MovementStatusReceived, actor.ID, nil, now); err != nil {
		result.Warning = fmt.Sprintf("letters accepted, movement log incomplete: %v", err)
	}

	return result, nil
}

// BulkReject отклоняет пачку писем в отделе сотрудника с единой причиной.
func (s *Service) BulkReject(ctx context.Context, actor *model.Profile, ids []string, reason string) (*BulkResult, error) {
	if err := validation.RejectionReason(reason); err != nil {
		return nil, err
	}

	result, winners, err := s.screenLetters(ctx, ids, func(letter *model.Letter) error {
		if !permission.CanRejectLetter(actor, letter) {
			return ErrUnauthorized
		}
		return statemachine.ValidateTransition(letter.Status, model.LetterStatusRejected, statemachine.ActionReject)
	})
	if err != nil {
		return nil, err
	}
	if len(winners) == 0 {
		return result, nil
	}

	now := time.Now()
	updated, err := s.repo.BulkRejectLetters(ctx, winners, *actor.Department, now)
	if err != nil {
		return nil, err
	}
	result.finish(winners, updated)

	if err := s.repo.ResolvePendingMovements(ctx, updated, model.MovementStatusRejected, actor.ID, &reason, now); err != nil {
		result.Warning = fmt.Sprintf("letters rejected, movement log incomplete: %v", err)
	}

	return result, nil
}

// BulkDispatch отправляет пачку писем секретаря в указанный отдел.
func (s *Service) BulkDispatch(ctx context.Context, actor *model.Profile, ids []string, to model.Department) (*BulkResult, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown department %q", validation.ErrValidation, to)
	}

	result, winners, err := s.screenLetters(ctx, ids, func(letter *model.Letter) error {
		if !permission.CanDispatchLetter(actor, letter) {
			return ErrUnauthorized
		}
		from := letter.Status
		if from == model.LetterStatusRejected {
			from = model.LetterStatusNew
		}
		return statemachine.ValidateTransition(from, model.LetterStatusDispatched, statemachine.ActionDispatch)
	})
	if err != nil {
		return nil, err
	}
	if len(winners) == 0 {
		return result, nil
	}

	now := time.Now()
	updated, err := s.repo.BulkDispatchLetters(ctx, winners, to, now)
	if err != nil {
		return nil, err
	}
	result.finish(winners, updated)

	movements := make([]model.Movement, 0, len(updated))
	for _, id := range updated {
		movements = append(movements, model.Movement{
			ID:           uuid.NewString(),
			LetterID:     id,
			ToDepartment: to,
			DispatchedBy: actor.ID,
			DispatchedAt: now,
			Status:       model.MovementStatusDispatched,
		})
	}
	if err := s.repo.InsertMovements(ctx, movements); err != nil {
		result.Warning = fmt.Sprintf("letters dispatched, movement log incomplete: %v", err)
	}

	return result, nil
}

// BulkForward пересылает пачку обработанных писем отдела в новый отдел.
func (s *Service) BulkForward(ctx context.Context, actor *model.Profile, ids []string, to model.Department) (*BulkResult, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown department %q", validation.ErrValidation, to)
	}
	if actor.Department != nil && *actor.Department == to {
		return nil, fmt.Errorf("%w: letters are already in department %q", validation.ErrValidation, to)
	}

	result, winners, err := s.screenLetters(ctx, ids, func(letter *model.Letter) error {
		if !permission.CanForwardLetter(actor, letter) {
			return ErrUnauthorized
		}
		return statemachine.ValidateTransition(letter.Status, model.LetterStatusForwarded, statemachine.ActionForward)
	})
	if err != nil {
		return nil, err
	}
	if len(winners) == 0 {
		return result, nil
	}

	now := time.Now()
	from := *actor.Department
	updated, err := s.repo.BulkForwardLetters(ctx, winners, from, to, now)
	if err != nil {
		return nil, err
	}
	result.finish(winners, updated)

	movements := make([]model.Movement, 0, len(updated))
	for _, id := range updated {
		movements = append(movements, model.Movement{
			ID:             uuid.NewString(),
			LetterID:       id,
			FromDepartment: &from,
			ToDepartment:   to,
			DispatchedBy:   actor.ID,
			DispatchedAt:   now,
			Status:         model.MovementStatusDispatched,
		})
	}
	if err := s.repo.InsertMovements(ctx, movements); err != nil {
		result.Warning = fmt.Sprintf("letters forwarded, movement log incomplete: %v", err)
	}

	return result, nil
}

// BulkProcess завершает обработку пачки писем в отделе сотрудника.
// Перемещения не создаются: письмо остаётся в том же отделе.
func (s *Service) BulkProcess(ctx context.Context, actor *model.Profile, ids []string) (*BulkResult, error) {
	result, winners, err := s.screenLetters(ctx, ids, func(letter *model.Letter) error {
		if !permission.CanCompleteProcessing(actor, letter) {
			return ErrUnauthorized
		}
		return statemachine.ValidateTransition(letter.Status, model.LetterStatusProcessed, statemachine.ActionCompleteProcessing)
	})
	if err != nil {
		return nil, err
	}
	if len(winners) == 0 {
		return result, nil
	}

	updated, err := s.repo.BulkProcessLetters(ctx, winners, *actor.Department, time.Now())
	if err != nil {
		return nil, err
	}
	result.finish(winners, updated)

	return result, nil
}

// Archive архивирует пачку обработанных писем. Для каждого письма в журнал
// пишется закрытое перемещение в архив, чтобы история оставалась полной.
func (s *Service) Archive(ctx context.Context, actor *model.Profile, ids []string) (*BulkResult, error) {
	result, winners, err := s.screenLetters(ctx, ids, func(letter *model.Letter) error {
		if !permission.CanArchiveLetter(actor, letter) {
			return ErrUnauthorized
		}
		return statemachine.ValidateTransition(letter.Status, model.LetterStatusArchived, statemachine.ActionArchive)
	})
	if err != nil {
		return nil, err
	}
	if len(winners) == 0 {
		return result, nil
	}

	now := time.Now()
	archived, err := s.repo.ArchiveLetters(ctx, winners, now)
	if err != nil {
		return nil, err
	}

	updated := make([]string, 0, len(archived))
	movements := make([]model.Movement, 0, len(archived))
	for _, letter := range archived {
		updated = append(updated, letter.ID)
		movements = append(movements, model.Movement{
			ID:             uuid.NewString(),
			LetterID:       letter.ID,
			FromDepartment: letter.FromDepartment,
			ToDepartment:   model.DepartmentArchive,
			DispatchedBy:   actor.ID,
			DispatchedAt:   now,
			ReceivedBy:     &actor.ID,
			ReceivedAt:     &now,
			Status:         model.MovementStatusReceived,
		})
	}
	result.finish(winners, updated)

	if err := s.repo.InsertMovements(ctx, movements); err != nil {
		result.Warning = fmt.Sprintf("letters archived, movement log incomplete: %v", err)
	}

	return result, nil
}

// screenLetters читает письма пачкой и прогоняет каждое через check.
// Возвращает заготовку результата с отказами и список прошедших проверку.
func (s *Service) screenLetters(ctx context.Context, ids []string, check func(*model.Letter) error) (*BulkResult, []string, error) {
	if len(ids) == 0 {
		return nil, nil, fmt.Errorf("%w: letter ids are required", validation.ErrValidation)
	}

	letters, err := s.repo.GetLettersByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	found := make(map[string]*model.Letter, len(letters))
	for i := range letters {
		found[letters[i].ID] = &letters[i]
	}

	result := &BulkResult{}
	winners := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		letter, ok := found[id]
		if !ok {
			result.Failed = append(result.Failed, ItemError{ID: id, Err: repository.ErrLetterNotFound})
			continue
		}
		if err := check(letter); err != nil {
			result.Failed = append(result.Failed, ItemError{ID: id, Err: err})
			continue
		}
		winners = append(winners, id)
	}

	return result, winners, nil
}

// finish раскладывает прошедших проверку на обновлённых и проигравших гонку.
func (r *BulkResult) finish(winners, updated []string) {
	r.Updated = updated

	won := make(map[string]struct{}, len(updated))
	for _, id := range updated {
		won[id] = struct{}{}
	}
	for _, id := range winners {
		if _, ok := won[id]; !ok {
			r.Failed = append(r.Failed, ItemError{ID: id, Err: repository.ErrLetterConflict})
		}
	}
}
