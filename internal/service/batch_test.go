package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mmeshcher/letterflow-system/internal/batch"
	"github.com/mmeshcher/letterflow-system/internal/model"
	"github.com/mmeshcher/letterflow-system/internal/validation"
)

func TestCreateBatch_OnlySecretary(t *testing.T) {
	svc := NewService(newStubRepo())

	_, err := svc.CreateBatch(context.Background(), budgetProfile(), BatchInput{
		Name:            "March pensions",
		LetterType:      "pension",
		SubjectTemplate: "Pension payment for {staff_name}",
	}, &batch.Parsed{Rows: []batch.Row{{StaffName: "Adeyemi O."}}})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCreateBatch_RequiresTemplate(t *testing.T) {
	svc := NewService(newStubRepo())

	_, err := svc.CreateBatch(context.Background(), secretaryProfile(), BatchInput{
		Name:       "March pensions",
		LetterType: "pension",
	}, &batch.Parsed{Rows: []batch.Row{{StaffName: "Adeyemi O."}}})
	if !errors.Is(err, validation.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateBatch_NoRows(t *testing.T) {
	svc := NewService(newStubRepo())

	_, err := svc.CreateBatch(context.Background(), secretaryProfile(), BatchInput{
		Name:            "March pensions",
		LetterType:      "pension",
		SubjectTemplate: "Pension payment for {staff_name}",
	}, &batch.Parsed{})
	if !errors.Is(err, validation.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateBatch_NegativeAmountRejected(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo)

	_, err := svc.CreateBatch(context.Background(), secretaryProfile(), BatchInput{
		Name:            "March pensions",
		LetterType:      "pension",
		SubjectTemplate: "Pension payment for {staff_name}",
	}, &batch.Parsed{Rows: []batch.Row{
		{StaffName: "Adeyemi O.", Amount: "-50.00"},
	}})
	if !errors.Is(err, validation.ErrValidation) {
		t.Fatalf("expected validation error for negative amount, got %v", err)
	}
	if repo.createdBatch != nil {
		t.Fatalf("batch must not be written when a row fails validation")
	}
}

func TestCreateBatch_ExpandsTemplateAndSerials(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo)

	summary, err := svc.CreateBatch(context.Background(), secretaryProfile(), BatchInput{
		Name:            "March pensions",
		LetterType:      "pension",
		SubjectTemplate: "Pension payment for {staff_name}",
		SerialPrefix:    "PEN-2026",
		DateGenerated:   "2026-03-01",
	}, &batch.Parsed{Rows: []batch.Row{
		{StaffName: "Adeyemi O.", Amount: "120000.50"},
		{StaffName: "Bello K."},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Created != 2 {
		t.Fatalf("expected 2 letters, got %d", summary.Created)
	}
	if repo.createdBatch == nil || repo.createdBatch.TotalCount != 2 {
		t.Fatalf("expected batch with total 2, got %+v", repo.createdBatch)
	}
	if repo.createdBatch.Metadata.SerialPrefix != "PEN-2026" {
		t.Fatalf("expected serial prefix in metadata, got %q", repo.createdBatch.Metadata.SerialPrefix)
	}

	letters := repo.createdBatchLetters
	if len(letters) != 2 {
		t.Fatalf("expected 2 letters, got %d", len(letters))
	}
	if letters[0].Subject != "Pension payment for Adeyemi O." {
		t.Fatalf("unexpected subject %q", letters[0].Subject)
	}
	if letters[0].SerialNumber == nil || *letters[0].SerialNumber != "PEN-2026-1" {
		t.Fatalf("unexpected serial %v", letters[0].SerialNumber)
	}
	if letters[0].AmountKobo == nil || *letters[0].AmountKobo != 12000050 {
		t.Fatalf("unexpected amount %v", letters[0].AmountKobo)
	}
	if letters[1].BatchIndex == nil || *letters[1].BatchIndex != 2 {
		t.Fatalf("unexpected batch index %v", letters[1].BatchIndex)
	}
	for _, l := range letters {
		if l.Status != model.LetterStatusNew {
			t.Fatalf("batch letters must start as new, got %s", l.Status)
		}
		if l.BatchID == nil || *l.BatchID != repo.createdBatch.ID {
			t.Fatalf("letter must reference its batch")
		}
	}
}

func TestBatchProcess_RequiresDepartment(t *testing.T) {
	repo := newStubRepo()
	repo.batch = &model.LetterBatch{ID: "b1"}
	svc := NewService(repo)

	_, err := svc.BatchProcess(context.Background(), secretaryProfile(), "b1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
