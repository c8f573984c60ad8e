package validation

import (
	"errors"
	"testing"
)

func TestSubject(t *testing.T) {
	if err := Subject("Promotion Letter"); err != nil {
		t.Fatalf("valid subject rejected: %v", err)
	}
	if err := Subject("abcd"); !errors.Is(err, ErrValidation) {
		t.Fatalf("short subject must fail, got %v", err)
	}
	if err := Subject("  ab  "); !errors.Is(err, ErrValidation) {
		t.Fatalf("whitespace padding must not count, got %v", err)
	}
}

func TestSerialNumber(t *testing.T) {
	valid := []string{"FIN-2026-001", "ABC123", "PROMO-1"}
	for _, s := range valid {
		if err := SerialNumber(s); err != nil {
			t.Fatalf("serial %q rejected: %v", s, err)
		}
	}

	invalid := []string{"", "fin-001", "ABC 123", "abc", "№123"}
	for _, s := range invalid {
		if err := SerialNumber(s); !errors.Is(err, ErrValidation) {
			t.Fatalf("serial %q must fail, got %v", s, err)
		}
	}
}

func TestPVID(t *testing.T) {
	if err := PVID("PV-2026-0001"); err != nil {
		t.Fatalf("valid PV id rejected: %v", err)
	}

	invalid := []string{
		"PV-2026-1",    // суффикс короче четырёх цифр
		"PV-26-0001",   // год не из четырёх цифр
		"pv-2026-0001", // нижний регистр
		"PV-2026-00011",
		"XX-2026-0001",
		"",
	}
	for _, s := range invalid {
		if err := PVID(s); !errors.Is(err, ErrValidation) {
			t.Fatalf("PV id %q must fail, got %v", s, err)
		}
	}
}

func TestNoteAndRejectionReason(t *testing.T) {
	if err := Note("checked totals"); err != nil {
		t.Fatalf("valid note rejected: %v", err)
	}
	if err := Note("ok"); !errors.Is(err, ErrValidation) {
		t.Fatalf("short note must fail, got %v", err)
	}

	if err := RejectionReason("Missing required signature"); err != nil {
		t.Fatalf("valid reason rejected: %v", err)
	}
	// Ровно 9 символов — на один меньше минимума.
	if err := RejectionReason("too short"); !errors.Is(err, ErrValidation) {
		t.Fatalf("9-char reason must fail, got %v", err)
	}
}

func TestAmountKobo(t *testing.T) {
	if err := AmountKobo(500000); err != nil {
		t.Fatalf("positive amount rejected: %v", err)
	}
	for _, v := range []int64{0, -100} {
		if err := AmountKobo(v); !errors.Is(err, ErrValidation) {
			t.Fatalf("amount %d must fail, got %v", v, err)
		}
	}
}

func TestDate(t *testing.T) {
	d, err := Date("2026-08-01")
	if err != nil {
		t.Fatalf("valid date rejected: %v", err)
	}
	if d == nil || d.Year() != 2026 || d.Month() != 8 || d.Day() != 1 {
		t.Fatalf("parsed date wrong: %v", d)
	}

	d, err = Date("  ")
	if err != nil || d != nil {
		t.Fatalf("empty date must yield nil, got %v, %v", d, err)
	}

	for _, s := range []string{"01-08-2026", "2026/08/01", "2026-13-01", "not-a-date"} {
		if _, err := Date(s); !errors.Is(err, ErrValidation) {
			t.Fatalf("date %q must fail, got %v", s, err)
		}
	}
}
