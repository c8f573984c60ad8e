package batch

import (
	"strings"
	"testing"
)

func TestParseCSV(t *testing.T) {
	csv := `Staff Name,staff_id,amount,department
John Doe,EMP001,5000,Finance
Jane Smith,EMP002,"7,500",HR

,EMP004,100,IT`

	parsed, err := ParseCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ParseCSV error: %v", err)
	}

	if len(parsed.Rows) != 2 {
		t.Fatalf("rows = %d, want 2: %+v", len(parsed.Rows), parsed.Rows)
	}
	if parsed.Rows[0].StaffName != "John Doe" || parsed.Rows[0].Amount != "5000" {
		t.Fatalf("first row parsed wrong: %+v", parsed.Rows[0])
	}
	if parsed.Rows[1].Amount != "7,500" {
		t.Fatalf("quoted amount parsed wrong: %+v", parsed.Rows[1])
	}

	// Строка без staff_name пропускается с ошибкой.
	if len(parsed.Errors) != 1 || !strings.Contains(parsed.Errors[0], "staff_name") {
		t.Fatalf("errors = %v, want one missing staff_name error", parsed.Errors)
	}
}

func TestParseCSV_MissingRequiredColumn(t *testing.T) {
	parsed, err := ParseCSV(strings.NewReader("name,amount\nJohn,100"))
	if err != nil {
		t.Fatalf("ParseCSV error: %v", err)
	}
	if len(parsed.Errors) == 0 || !strings.Contains(parsed.Errors[0], "staff_name") {
		t.Fatalf("want missing column error, got %v", parsed.Errors)
	}
}

func TestParseCSV_Empty(t *testing.T) {
	parsed, err := ParseCSV(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ParseCSV error: %v", err)
	}
	if len(parsed.Rows) != 0 || len(parsed.Errors) != 1 {
		t.Fatalf("empty input: rows=%d errors=%v", len(parsed.Rows), parsed.Errors)
	}
}

func TestParseCSV_ExtraColumns(t *testing.T) {
	parsed, err := ParseCSV(strings.NewReader("staff_name,grade\nJohn Doe,GL-08"))
	if err != nil {
		t.Fatalf("ParseCSV error: %v", err)
	}
	if len(parsed.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(parsed.Rows))
	}
	if parsed.Rows[0].Extra["grade"] != "GL-08" {
		t.Fatalf("extra column lost: %+v", parsed.Rows[0].Extra)
	}
}

func TestExpandSubject(t *testing.T) {
	row := Row{StaffName: "John Doe", StaffID: "EMP001", Extra: map[string]string{"grade": "GL-08"}}

	got := ExpandSubject("Promotion Letter - {staff_name} ({staff_id}, {grade})", row)
	want := "Promotion Letter - John Doe (EMP001, GL-08)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	if got := ExpandSubject("No placeholders", row); got != "No placeholders" {
		t.Fatalf("template without placeholders changed: %q", got)
	}
}

func TestSerialNumber(t *testing.T) {
	tests := []struct {
		prefix string
		index  int
		total  int
		want   string
	}{
		{"FIN", 1, 9, "FIN-1"},
		{"FIN", 7, 150, "FIN-007"},
		{"PROMO-2026", 42, 100, "PROMO-2026-042"},
	}
	for _, tt := range tests {
		if got := SerialNumber(tt.prefix, tt.index, tt.total); got != tt.want {
			t.Fatalf("SerialNumber(%q,%d,%d) = %q, want %q", tt.prefix, tt.index, tt.total, got, tt.want)
		}
	}
}

func TestAmountKobo(t *testing.T) {
	v, err := AmountKobo("₦5,000.50")
	if err != nil {
		t.Fatalf("AmountKobo error: %v", err)
	}
	if v == nil || *v != 500050 {
		t.Fatalf("got %v, want 500050", v)
	}

	v, err = AmountKobo("  ")
	if err != nil || v != nil {
		t.Fatalf("blank amount must yield nil, got %v, %v", v, err)
	}

	if _, err := AmountKobo("1.2.3"); err == nil {
		t.Fatalf("malformed amount must fail")
	}

	// Знак сохраняется: проверка положительности суммы выполняется выше,
	// на слое валидации письма.
	v, err = AmountKobo("-50.00")
	if err != nil {
		t.Fatalf("AmountKobo error: %v", err)
	}
	if v == nil || *v != -5000 {
		t.Fatalf("got %v, want -5000", v)
	}
}
