package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/letterflow-system/internal/model"
	"github.com/mmeshcher/letterflow-system/internal/permission"
	"github.com/mmeshcher/letterflow-system/internal/statemachine"
	"github.com/mmeshcher/letterflow-system/internal/validation"
)

// CreateLetterInput содержит данные нового письма.
type CreateLetterInput struct {
	Subject       string
	SerialNumber  string
	DateGenerated string
	DateMinuted   string
	Amount        *int64
}

// CreateLetter регистрирует новое письмо от имени секретаря и возвращает его
// идентификатор. Письмо создаётся в статусе "new" без текущего отдела.
func (s *Service) CreateLetter(ctx context.Context, actor *model.Profile, in CreateLetterInput) (string, error) {
	if !permission.CanCreateLetter(actor) {
		return "", ErrUnauthorized
	}

	if err := validation.Subject(in.Subject); err != nil {
		return "", err
	}

	letter := &model.Letter{
		ID:        uuid.NewString(),
		Subject:   in.Subject,
		Status:    model.LetterStatusNew,
		CreatedBy: actor.ID,
	}

	if in.SerialNumber != "" {
		if err := validation.SerialNumber(in.SerialNumber); err != nil {
			return "", err
		}
		letter.SerialNumber = &in.SerialNumber
	}

	if in.Amount != nil {
		if err := validation.AmountKobo(*in.Amount); err != nil {
			return "", err
		}
		letter.AmountKobo = in.Amount
	}

	var err error
	if letter.DateGenerated, err = validation.Date(in.DateGenerated); err != nil {
		return "", err
	}
	if letter.DateMinuted, err = validation.Date(in.DateMinuted); err != nil {
		return "", err
	}

	if err := s.repo.CreateLetter(ctx, letter); err != nil {
		return "", err
	}

	return letter.ID, nil
}

// Dispatch направляет письмо из секретариата в указанный отдел. Для письма в
// статусе "rejected" отправка означает возврат секретарю с немедленной
// повторной отправкой, поэтому переход проверяется в два шага.
func (s *Service) Dispatch(ctx context.Context, actor *model.Profile, letterID string, to model.Department) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown department %q", validation.ErrValidation, to)
	}

	letter, err := s.repo.GetLetterByID(ctx, letterID)
	if err != nil {
		return err
	}

	if !permission.CanDispatchLetter(actor, letter) {
		return ErrUnauthorized
	}

	from := letter.Status
	if from == model.LetterStatusRejected {
		if err := statemachine.ValidateTransition(from, model.LetterStatusNew, statemachine.ActionReturnToSecretary); err != nil {
			return err
		}
		from = model.LetterStatusNew
	}
	if err := statemachine.ValidateTransition(from, model.LetterStatusDispatched, statemachine.ActionDispatch); err != nil {
		return err
	}

	now := time.Now()
	movement := &model.Movement{
		ID:             uuid.NewString(),
		LetterID:       letter.ID,
		FromDepartment: letter.CurrentDepartment,
		ToDepartment:   to,
		DispatchedBy:   actor.ID,
		DispatchedAt:   now,
		Status:         model.MovementStatusDispatched,
	}

	return s.repo.DispatchLetter(ctx, movement, now)
}

// Receive принимает письмо в отделе сотрудника: письмо переходит в обработку,
// ожидающее перемещение закрывается как полученное.
func (s *Service) Receive(ctx context.Context, actor *model.Profile, letterID string) error {
	letter, err := s.repo.GetLetterByID(ctx, letterID)
	if err != nil {
		return err
	}

	if !permission.CanReceiveLetter(actor, letter) {
		return ErrUnauthorized
	}
	if err := statemachine.ValidateTransition(letter.Status, model.LetterStatusProcessing, statemachine.ActionReceive); err != nil {
		return err
	}
	if statemachine.RequiresCustody(letter.Status, model.LetterStatusProcessing) {
		if err := statemachine.ValidateCustody(letter.CurrentDepartment, actor.Department, statemachine.ActionReceive); err != nil {
			return err
		}
	}

	movement, err := s.repo.GetPendingMovement(ctx, letterID)
	if err != nil {
		return err
	}

	return s.repo.ReceiveLetter(ctx, letter.ID, movement.ID, actor.ID, time.Now())
}

// Reject отклоняет письмо и возвращает его секретарю. Причина обязательна и
// сохраняется в перемещении.
func (s *Service) Reject(ctx context.Context, actor *model.Profile, letterID, reason string) error {
	if err := validation.RejectionReason(reason); err != nil {
		return err
	}

	letter, err := s.repo.GetLetterByID(ctx, letterID)
	if err != nil {
		return err
	}

	if !permission.CanRejectLetter(actor, letter) {
		return ErrUnauthorized
	}
	if err := statemachine.ValidateTransition(letter.Status, model.LetterStatusRejected, statemachine.ActionReject); err != nil {
		return err
	}
	if statemachine.RequiresCustody(letter.Status, model.LetterStatusRejected) {
		if err := statemachine.ValidateCustody(letter.CurrentDepartment, actor.Department, statemachine.ActionReject); err != nil {
			return err
		}
	}

	movement, err := s.repo.GetPendingMovement(ctx, letterID)
	if err != nil {
		return err
	}

	return s.repo.RejectLetter(ctx, letter.ID, movement.ID, actor.ID, reason, time.Now())
}

// AddNote добавляет служебную заметку к письму, находящемуся в обработке в
// отделе сотрудника. Статус письма не меняется.
func (s *Service) AddNote(ctx context.Context, actor *model.Profile, letterID, text string) (string, error) {
	if err := validation.Note(text); err != nil {
		return "", err
	}

	letter, err := s.repo.GetLetterByID(ctx, letterID)
	if err != nil {
		return "", err
	}

	if !permission.CanAddNote(actor, letter) {
		return "", ErrUnauthorized
	}
	if err := statemachine.ValidateCustody(letter.CurrentDepartment, actor.Department, statemachine.ActionAddNote); err != nil {
		return "", err
	}

	note := &model.ProcessingNote{
		ID:         uuid.NewString(),
		LetterID:   letter.ID,
		Department: *actor.Department,
		Note:       text,
		CreatedBy:  actor.ID,
		CreatedAt:  time.Now(),
	}

	if err := s.repo.AddNote(ctx, note); err != nil {
		return "", err
	}

	return note.ID, nil
}

// CompleteProcessing завершает обработку письма в отделе сотрудника.
func (s *Service) CompleteProcessing(ctx context.Context, actor *model.Profile, letterID string) error {
	letter, err := s.repo.GetLetterByID(ctx, letterID)
	if err != nil {
		return err
	}

	if !permission.CanCompleteProcessing(actor, letter) {
		return ErrUnauthorized
	}
	if err := statemachine.ValidateTransition(letter.Status, model.LetterStatusProcessed, statemachine.ActionCompleteProcessing); err != nil {
		return err
	}
	if err := statemachine.ValidateCustody(letter.CurrentDepartment, actor.Department, statemachine.ActionCompleteProcessing); err != nil {
		return err
	}

	return s.repo.CompleteProcessing(ctx, letter.ID, *actor.Department, time.Now())
}

// AttachPV прикрепляет номер платёжного поручения к письму в обработке в
// расчётном отделе.
func (s *Service) AttachPV(ctx context.Context, actor *model.Profile, letterID, pvID string) error {
	if err := validation.PVID(pvID); err != nil {
		return err
	}

	letter, err := s.repo.GetLetterByID(ctx, letterID)
	if err != nil {
		return err
	}

	if !permission.CanAttachPV(actor, letter) {
		return ErrUnauthorized
	}
	if err := statemachine.ValidateCustody(letter.CurrentDepartment, actor.Department, statemachine.ActionAttachPV); err != nil {
		return err
	}

	return s.repo.AttachPV(ctx, letter.ID, pvID, *actor.Department, time.Now())
}

// Forward пересылает обработанное письмо из отдела сотрудника в другой отдел.
func (s *Service) Forward(ctx context.Context, actor *model.Profile, letterID string, to model.Department) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown department %q", validation.ErrValidation, to)
	}
	if actor.Department != nil && *actor.Department == to {
		return fmt.Errorf("%w: letter is already in department %q", validation.ErrValidation, to)
	}

	letter, err := s.repo.GetLetterByID(ctx, letterID)
	if err != nil {
		return err
	}

	if !permission.CanForwardLetter(actor, letter) {
		return ErrUnauthorized
	}
	if err := statemachine.ValidateTransition(letter.Status, model.LetterStatusForwarded, statemachine.ActionForward); err != nil {
		return err
	}
	if err := statemachine.ValidateCustody(letter.CurrentDepartment, actor.Department, statemachine.ActionForward); err != nil {
		return err
	}

	now := time.Now()
	movement := &model.Movement{
		ID:             uuid.NewString(),
		LetterID:       letter.ID,
		FromDepartment: letter.CurrentDepartment,
		ToDepartment:   to,
		DispatchedBy:   actor.ID,
		DispatchedAt:   now,
		Status:         model.MovementStatusDispatched,
	}

	return s.repo.ForwardLetter(ctx, movement, now)
}

// LetterDetails объединяет письмо с историей перемещений и заметками.
type LetterDetails struct {
	Letter    model.Letter
	Movements []model.Movement
	Notes     []model.ProcessingNote
}

// GetLetter возвращает письмо с историей перемещений и заметками обработки.
func (s *Service) GetLetter(ctx context.Context, actor *model.Profile, letterID string) (*LetterDetails, error) {
	letter, err := s.repo.GetLetterByID(ctx, letterID)
	if err != nil {
		return nil, err
	}

	if !permission.CanViewLetter(actor, letter) {
		return nil, ErrUnauthorized
	}

	movements, err := s.repo.GetMovementsByLetter(ctx, letter.ID)
	if err != nil {
		return nil, err
	}
	notes, err := s.repo.GetNotesByLetter(ctx, letter.ID)
	if err != nil {
		return nil, err
	}

	return &LetterDetails{Letter: *letter, Movements: movements, Notes: notes}, nil
}

// ListMyLetters возвращает письма, созданные сотрудником.
func (s *Service) ListMyLetters(ctx context.Context, actor *model.Profile) ([]model.Letter, error) {
	return s.repo.GetLettersByCreator(ctx, actor.ID)
}

// Dashboard группирует письма отдела по стадиям обработки.
type Dashboard struct {
	Incoming   []model.Letter
	Processing []model.Letter
	Processed  []model.Letter
}

// DepartmentDashboard возвращает письма отдела сотрудника, сгруппированные по
// стадиям: входящие, в обработке и обработанные.
func (s *Service) DepartmentDashboard(ctx context.Context, actor *model.Profile) (*Dashboard, error) {
	if actor.Department == nil {
		return nil, ErrUnauthorized
	}

	letters, err := s.repo.GetLettersByDepartment(ctx, *actor.Department)
	if err != nil {
		return nil, err
	}

	dashboard := &Dashboard{}
	for _, letter := range letters {
		switch letter.Status {
		case model.LetterStatusDispatched, model.LetterStatusForwarded:
			dashboard.Incoming = append(dashboard.Incoming, letter)
		case model.LetterStatusProcessing:
			dashboard.Processing = append(dashboard.Processing, letter)
		case model.LetterStatusProcessed:
			dashboard.Processed = append(dashboard.Processed, letter)
		}
	}

	sort.SliceStable(dashboard.Incoming, func(i, j int) bool {
		return dashboard.Incoming[i].UpdatedAt.After(dashboard.Incoming[j].UpdatedAt)
	})

	return dashboard, nil
}
