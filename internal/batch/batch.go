// Package batch содержит разбор CSV-файла пакетного импорта писем
// и генерацию тем и серийных номеров по данным строк.
package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Row — одна разобранная строка импорта. Обязательно только имя сотрудника;
// остальные колонки переносятся как есть.
type Row struct {
	StaffName    string
	StaffID      string
	Amount       string
	Department   string
	Subject      string
	SerialNumber string
	Extra        map[string]string
}

// Parsed — результат разбора CSV: валидные строки и ошибки по остальным.
type Parsed struct {
	Rows   []Row
	Errors []string
}

// ParseCSV разбирает CSV с заголовком. Имена колонок нормализуются
// (нижний регистр, пробелы заменяются подчёркиванием); колонка staff_name
// обязательна. Строки с ошибками пропускаются и попадают в Errors.
func ParseCSV(r io.Reader) (*Parsed, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	if len(records) == 0 {
		return &Parsed{Errors: []string{"CSV file is empty"}}, nil
	}

	headers := make([]string, len(records[0]))
	hasStaffName := false
	for i, h := range records[0] {
		headers[i] = normalizeHeader(h)
		if headers[i] == "staff_name" {
			hasStaffName = true
		}
	}

	parsed := &Parsed{}
	if !hasStaffName {
		parsed.Errors = append(parsed.Errors, "missing required column: staff_name")
	}

	for i, record := range records[1:] {
		lineNo := i + 2

		if isEmptyRecord(record) {
			continue
		}
		if len(record) != len(headers) {
			parsed.Errors = append(parsed.Errors,
				fmt.Sprintf("row %d: column count mismatch (expected %d, got %d)", lineNo, len(headers), len(record)))
			continue
		}

		row := Row{Extra: make(map[string]string)}
		for j, value := range record {
			value = strings.TrimSpace(value)
			switch headers[j] {
			case "staff_name":
				row.StaffName = value
			case "staff_id":
				row.StaffID = value
			case "amount":
				row.Amount = value
			case "department":
				row.Department = value
			case "subject":
				row.Subject = value
			case "serial_number":
				row.SerialNumber = value
			default:
				row.Extra[headers[j]] = value
			}
		}

		if row.StaffName == "" {
			parsed.Errors = append(parsed.Errors, fmt.Sprintf("row %d: missing staff_name", lineNo))
			continue
		}

		parsed.Rows = append(parsed.Rows, row)
	}

	return parsed, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.Fields(h), "_")
}

func isEmptyRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Fields возвращает все значения строки по нормализованным именам колонок.
func (r Row) Fields() map[string]string {
	fields := map[string]string{
		"staff_name":    r.StaffName,
		"staff_id":      r.StaffID,
		"amount":        r.Amount,
		"department":    r.Department,
		"subject":       r.Subject,
		"serial_number": r.SerialNumber,
	}
	for k, v := range r.Extra {
		fields[k] = v
	}
	return fields
}

// ExpandSubject подставляет значения строки в шаблон темы вида
// "Promotion Letter - {staff_name}".
func ExpandSubject(template string, row Row) string {
	subject := template
	for key, value := range row.Fields() {
		subject = strings.ReplaceAll(subject, "{"+key+"}", value)
	}
	return subject
}

// SerialNumber строит серийный номер письма из префикса и позиции в пакете:
// индекс дополняется нулями до ширины общего количества, например FIN-007.
// Разделителем служит дефис, чтобы номер проходил общую проверку формата.
func SerialNumber(prefix string, index, total int) string {
	width := len(strconv.Itoa(total))
	return fmt.Sprintf("%s-%0*d", prefix, width, index)
}

// AmountKobo разбирает денежную колонку строки в копейки (kobo).
// Валютные символы и разделители разрядов отбрасываются.
func AmountKobo(raw string) (*int64, error) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, raw)

	if cleaned == "" {
		return nil, nil
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}

	kobo := int64(v * 100)
	return &kobo, nil
}
