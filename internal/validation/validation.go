// Package validation содержит проверки формата полей письма.
// Все проверки выполняются до какой-либо записи в хранилище.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrValidation — базовая ошибка проверки полей; конкретика в обёртке.
var ErrValidation = errors.New("validation error")

const (
	minSubjectLen = 5
	minNoteLen    = 5
	minReasonLen  = 10

	dateLayout = "2006-01-02"
)

var (
	serialNumberRe = regexp.MustCompile(`^[A-Z0-9-]+$`)
	pvIDRe         = regexp.MustCompile(`^PV-[0-9]{4}-[0-9]{4}$`)
)

// Subject проверяет тему письма на минимальную длину.
func Subject(s string) error {
	if len(strings.TrimSpace(s)) < minSubjectLen {
		return fmt.Errorf("%w: subject must be at least %d characters", ErrValidation, minSubjectLen)
	}
	return nil
}

// SerialNumber проверяет формат серийного номера: заглавные буквы, цифры и дефисы.
func SerialNumber(s string) error {
	if !serialNumberRe.MatchString(s) {
		return fmt.Errorf("%w: serial number must contain only uppercase letters, numbers and hyphens", ErrValidation)
	}
	return nil
}

// PVID проверяет формат внешнего идентификатора ваучера: PV-YYYY-NNNN.
func PVID(s string) error {
	if !pvIDRe.MatchString(s) {
		return fmt.Errorf("%w: PV id must be in format PV-YYYY-NNNN (e.g. PV-2026-0001)", ErrValidation)
	}
	return nil
}

// Note проверяет текст заметки на минимальную длину.
func Note(s string) error {
	if len(strings.TrimSpace(s)) < minNoteLen {
		return fmt.Errorf("%w: note must be at least %d characters", ErrValidation, minNoteLen)
	}
	return nil
}

// RejectionReason проверяет причину отклонения на минимальную длину.
func RejectionReason(s string) error {
	if len(strings.TrimSpace(s)) < minReasonLen {
		return fmt.Errorf("%w: rejection reason must be at least %d characters", ErrValidation, minReasonLen)
	}
	return nil
}

// AmountKobo проверяет, что сумма письма положительна.
func AmountKobo(v int64) error {
	if v <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	return nil
}

// Date разбирает дату в формате YYYY-MM-DD. Пустая строка даёт nil-дату.
func Date(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q, want YYYY-MM-DD", ErrValidation, s)
	}
	return &t, nil
}
