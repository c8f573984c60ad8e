package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/letterflow-system/internal/batch"
	"github.com/mmeshcher/letterflow-system/internal/model"
	"github.com/mmeshcher/letterflow-system/internal/permission"
	"github.com/mmeshcher/letterflow-system/internal/validation"
)

// BatchInput содержит параметры серии писем, создаваемой из CSV-файла.
type BatchInput struct {
	Name            string
	LetterType      string
	SubjectTemplate string
	SerialPrefix    string
	DateGenerated   string
	DateMinuted     string
	SourceFilename  string
}

// BatchSummary — результат создания серии.
type BatchSummary struct {
	BatchID   string
	Created   int
	RowErrors []string
}

// CreateBatch создаёт серию писем из разобранных строк CSV. Тема каждого
// письма разворачивается из шаблона, серийные номера генерируются из
// префикса. Письма вставляются все или ни одного.
func (s *Service) CreateBatch(ctx context.Context, actor *model.Profile, in BatchInput, parsed *batch.Parsed) (*BatchSummary, error) {
	if !permission.CanCreateLetter(actor) {
		return nil, ErrUnauthorized
	}
	if in.Name == "" || in.LetterType == "" || in.SubjectTemplate == "" {
		return nil, fmt.Errorf("%w: batch name, letter type and subject template are required", validation.ErrValidation)
	}
	if len(parsed.Rows) == 0 {
		return nil, fmt.Errorf("%w: no valid rows in file", validation.ErrValidation)
	}

	dateGenerated, err := validation.Date(in.DateGenerated)
	if err != nil {
		return nil, err
	}
	dateMinuted, err := validation.Date(in.DateMinuted)
	if err != nil {
		return nil, err
	}

	b := &model.LetterBatch{
		ID:            uuid.NewString(),
		BatchName:     in.Name,
		LetterType:    in.LetterType,
		TotalCount:    len(parsed.Rows),
		CreatedBy:     actor.ID,
		DateGenerated: dateGenerated,
		DateMinuted:   dateMinuted,
		Metadata: model.BatchMetadata{
			SubjectTemplate: in.SubjectTemplate,
			SerialPrefix:    in.SerialPrefix,
			SourceFilename:  in.SourceFilename,
		},
	}

	total := len(parsed.Rows)
	letters := make([]model.Letter, 0, total)
	for i, row := range parsed.Rows {
		subject := batch.ExpandSubject(in.SubjectTemplate, row)
		if err := validation.Subject(subject); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		index := i + 1
		letter := model.Letter{
			ID:         uuid.NewString(),
			Subject:    subject,
			Status:     model.LetterStatusNew,
			BatchID:    &b.ID,
			BatchIndex: &index,
			CreatedBy:  actor.ID,
		}

		serial := row.SerialNumber
		if in.SerialPrefix != "" {
			serial = batch.SerialNumber(in.SerialPrefix, index, total)
		}
		if serial != "" {
			if err := validation.SerialNumber(serial); err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
			letter.SerialNumber = &serial
		}

		kobo, err := batch.AmountKobo(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w: %v", index, validation.ErrValidation, err)
		}
		if kobo != nil {
			if err := validation.AmountKobo(*kobo); err != nil {
				return nil, fmt.Errorf("row %d: %w", index, err)
			}
		}
		letter.AmountKobo = kobo
		letter.DateGenerated = dateGenerated
		letter.DateMinuted = dateMinuted

		letters = append(letters, letter)
	}

	if err := s.repo.CreateBatchWithLetters(ctx, b, letters); err != nil {
		return nil, err
	}

	return &BatchSummary{BatchID: b.ID, Created: len(letters), RowErrors: parsed.Errors}, nil
}

// BatchDetails объединяет серию с её письмами.
type BatchDetails struct {
	Batch   model.LetterBatch
	Letters []model.Letter
}

// GetBatch возвращает серию и входящие в неё письма в порядке создания.
func (s *Service) GetBatch(ctx context.Context, actor *model.Profile, batchID string) (*BatchDetails, error) {
	b, err := s.repo.GetBatchByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	letters, err := s.repo.GetBatchLetters(ctx, b.ID)
	if err != nil {
		return nil, err
	}

	return &BatchDetails{Batch: *b, Letters: letters}, nil
}

// ListBatches возвращает серии, видимые сотруднику: созданные им самим и,
// для сотрудников отделов, серии с письмами в их отделе.
func (s *Service) ListBatches(ctx context.Context, actor *model.Profile) ([]model.LetterBatch, error) {
	own, err := s.repo.ListBatchesByCreator(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]model.LetterBatch, len(own))
	for _, b := range own {
		merged[b.ID] = b
	}

	if actor.Department != nil {
		incoming, err := s.repo.ListBatchesByDepartment(ctx, *actor.Department)
		if err != nil {
			return nil, err
		}
		for _, b := range incoming {
			merged[b.ID] = b
		}
	}

	batches := make([]model.LetterBatch, 0, len(merged))
	for _, b := range merged {
		batches = append(batches, b)
	}
	sort.Slice(batches, func(i, j int) bool {
		return batches[i].CreatedAt.After(batches[j].CreatedAt)
	})

	return batches, nil
}

// Операции над целой серией разворачиваются в массовые: выбираются письма
// серии в нужном статусе и дальше работает обычный массовый путь. Права
// проверяются на уровне серии, для отправки — ролью секретаря.

// BatchDispatch отправляет все неотправленные письма серии в указанный отдел.
func (s *Service) BatchDispatch(ctx context.Context, actor *model.Profile, batchID string, to model.Department) (*BulkResult, error) {
	if actor.Role != model.RoleSecretary && actor.Role != model.RoleAdmin {
		return nil, ErrUnauthorized
	}
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown department %q", validation.ErrValidation, to)
	}

	b, err := s.repo.GetBatchByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	ids, err := s.repo.GetBatchLetterIDs(ctx, b.ID, model.LetterStatusNew)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: batch has no letters to dispatch", validation.ErrValidation)
	}

	now := time.Now()
	updated, err := s.repo.BulkDispatchLetters(ctx, ids, to, now)
	if err != nil {
		return nil, err
	}

	result := &BulkResult{}
	result.finish(ids, updated)

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

// BatchForward пересылает обработанные письма серии из отдела сотрудника
// в указанный отдел.
func (s *Service) BatchForward(ctx context.Context, actor *model.Profile, batchID string, to model.Department) (*BulkResult, error) {
	if actor.Department == nil {
		return nil, ErrUnauthorized
	}

	b, err := s.repo.GetBatchByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	ids, err := s.repo.GetBatchLetterIDs(ctx, b.ID, model.LetterStatusProcessed)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: batch has no processed letters", validation.ErrValidation)
	}

	return s.BulkForward(ctx, actor, ids, to)
}

// BatchProcess завершает обработку писем серии в отделе сотрудника.
func (s *Service) BatchProcess(ctx context.Context, actor *model.Profile, batchID string) (*BulkResult, error) {
	if actor.Department == nil {
		return nil, ErrUnauthorized
	}

	b, err := s.repo.GetBatchByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	ids, err := s.repo.GetBatchLetterIDs(ctx, b.ID, model.LetterStatusProcessing)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: batch has no letters in processing", validation.ErrValidation)
	}

	return s.BulkProcess(ctx, actor, ids)
}
