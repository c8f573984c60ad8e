package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/letterflow-system/internal/model"
)

const letterColumns = `id, serial_number, subject, date_generated, date_received, date_minuted,
	dispatch_date, amount_kobo, status, current_department, is_archived, pv_id,
	batch_id, batch_index, created_by, created_at, updated_at`

func scanLetter(row pgx.Row) (*model.Letter, error) {
	var (
		l      model.Letter
		status string
		dept   *string
	)

	err := row.Scan(
		&l.ID, &l.SerialNumber, &l.Subject, &l.DateGenerated, &l.DateReceived, &l.DateMinuted,
		&l.DispatchDate, &l.AmountKobo, &status, &dept, &l.IsArchived, &l.PVID,
		&l.BatchID, &l.BatchIndex, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Status = model.LetterStatus(status)
	l.CurrentDepartment = departmentPtr(dept)

	return &l, nil
}

func collectLetters(rows pgx.Rows) ([]model.Letter, error) {
	defer rows.Close()

	var letters []model.Letter
	for rows.Next() {
		l, err := scanLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan letter: %w", err)
		}
		letters = append(letters, *l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return letters, nil
}

// CreateLetter сохраняет новое письмо в статусе new.
func (r *PostgresRepository) CreateLetter(ctx context.Context, l *model.Letter) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO letters (id, serial_number, subject, date_generated, date_minuted,
			amount_kobo, status, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		l.ID, l.SerialNumber, l.Subject, l.DateGenerated, l.DateMinuted,
		l.AmountKobo, string(l.Status), l.CreatedBy,
	)
	if err != nil {
		if isUniqueViolation(err, "letters_serial_number_key") {
			return ErrDuplicateSerial
		}
		return fmt.Errorf("insert letter: %w", err)
	}
	return nil
}

// GetLetterByID возвращает письмо по идентификатору.
func (r *PostgresRepository) GetLetterByID(ctx context.Context, id string) (*model.Letter, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+letterColumns+` FROM letters WHERE id = $1`, id)

	l, err := scanLetter(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLetterNotFound
		}
		return nil, fmt.Errorf("get letter: %w", err)
	}
	return l, nil
}

// GetLettersByIDs возвращает письма по списку идентификаторов.
func (r *PostgresRepository) GetLettersByIDs(ctx context.Context, ids []string) ([]model.Letter, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+letterColumns+` FROM letters WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("select letters: %w", err)
	}
	return collectLetters(rows)
}

// GetLettersByCreator возвращает письма, созданные указанным сотрудником.
func (r *PostgresRepository) GetLettersByCreator(ctx context.Context, creatorID string) ([]model.Letter, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+letterColumns+` FROM letters WHERE created_by = $1 ORDER BY created_at DESC`,
		creatorID)
	if err != nil {
		return nil, fmt.Errorf("select letters: %w", err)
	}
	return collectLetters(rows)
}

// GetLettersByDepartment возвращает письма, находящиеся в указанном отделе.
func (r *PostgresRepository) GetLettersByDepartment(ctx context.Context, dept model.Department) ([]model.Letter, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+letterColumns+` FROM letters
		 WHERE current_department = $1 ORDER BY created_at DESC`,
		string(dept))
	if err != nil {
		return nil, fmt.Errorf("select letters: %w", err)
	}
	return collectLetters(rows)
}

// GetProcessedLetters возвращает обработанные письма, опционально по отделу.
// Используется для расчёта статистики времени обработки.
func (r *PostgresRepository) GetProcessedLetters(ctx context.Context, dept *model.Department) ([]model.Letter, error) {
	query := `SELECT ` + letterColumns + ` FROM letters WHERE status = $1`
	args := []any{string(model.LetterStatusProcessed)}

	if dept != nil {
		query += ` AND current_department = $2`
		args = append(args, string(*dept))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select processed letters: %w", err)
	}
	return collectLetters(rows)
}

// DispatchLetter атомарно создаёт перемещение и переводит письмо в статус
// dispatched. Обновление письма условное: если статус уже изменился,
// возвращается ErrLetterConflict; вторая неразрешённая отправка даёт
// ErrMovementPending.
func (r *PostgresRepository) DispatchLetter(ctx context.Context, m *model.Movement, now time.Time) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		tag, err := tx.Exec(ctx,
			`UPDATE letters
			 SET status = $2, current_department = $3, dispatch_date = $4, updated_at = $4
			 WHERE id = $1 AND status IN ($5, $6)`,
			m.LetterID, string(model.LetterStatusDispatched), string(m.ToDepartment), now,
			string(model.LetterStatusNew), string(model.LetterStatusRejected),
		)
		if err != nil {
			return fmt.Errorf("update letter: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrLetterConflict
		}

		if err := insertMovement(ctx, tx, m); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// ForwardLetter атомарно создаёт перемещение и переводит обработанное письмо
// в статус forwarded с передачей кастодии новому отделу.
func (r *PostgresRepository) ForwardLetter(ctx context.Context, m *model.Movement, now time.Time) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		tag, err := tx.Exec(ctx,
			`UPDATE letters
			 SET status = $2, current_department = $3, updated_at = $4
			 WHERE id = $1 AND status = $5 AND current_department = $6`,
			m.LetterID, string(model.LetterStatusForwarded), string(m.ToDepartment), now,
			string(model.LetterStatusProcessed), departmentValue(m.FromDepartment),
		)
		if err != nil {
			return fmt.Errorf("update letter: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrLetterConflict
		}

		if err := insertMovement(ctx, tx, m); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

func insertMovement(ctx context.Context, tx pgx.Tx, m *model.Movement) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO movements (id, letter_id, from_department, to_department,
			dispatched_by, dispatched_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.LetterID, departmentValue(m.FromDepartment), string(m.ToDepartment),
		m.DispatchedBy, m.DispatchedAt, string(m.Status),
	)
	if err != nil {
		if isUniqueViolation(err, "movements_one_pending_idx") {
			return ErrMovementPending
		}
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// ReceiveLetter атомарно разрешает перемещение как received и переводит письмо
// в статус processing. Оба обновления условные: проигравший гонку получает
// ErrLetterConflict.
func (r *PostgresRepository) ReceiveLetter(ctx context.Context, letterID, movementID, receiverID string, now time.Time) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := resolveMovement(ctx, tx, letterID, movementID, model.MovementStatusReceived, receiverID, nil, now); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`UPDATE letters
			 SET status = $2, date_received = $3, updated_at = $3
			 WHERE id = $1 AND status IN ($4, $5)`,
			letterID, string(model.LetterStatusProcessing), now,
			string(model.LetterStatusDispatched), string(model.LetterStatusForwarded),
		)
		if err != nil {
			return fmt.Errorf("update letter: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrLetterConflict
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// RejectLetter атомарно разрешает перемещение как rejected с причиной
// и возвращает письмо в статус rejected без кастодии.
func (r *PostgresRepository) RejectLetter(ctx context.Context, letterID, movementID, receiverID, reason string, now time.Time) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := resolveMovement(ctx, tx, letterID, movementID, model.MovementStatusRejected, receiverID, &reason, now); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`UPDATE letters
			 SET status = $2, current_department = NULL, updated_at = $3
			 WHERE id = $1 AND status IN ($4, $5)`,
			letterID, string(model.LetterStatusRejected), now,
			string(model.LetterStatusDispatched), string(model.LetterStatusForwarded),
		)
		if err != nil {
			return fmt.Errorf("update letter: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrLetterConflict
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// resolveMovement переводит неразрешённое перемещение в конечное состояние.
// Перемещение изменяется ровно один раз: повторное разрешение даёт
// ErrLetterConflict, отсутствие записи — ErrMovementNotFound.
func resolveMovement(ctx context.Context, tx pgx.Tx, letterID, movementID string, status model.MovementStatus, receiverID string, reason *string, now time.Time) error {
	tag, err := tx.Exec(ctx,
		`UPDATE movements
		 SET status = $3, received_by = $4, received_at = $5, rejection_reason = $6
		 WHERE id = $1 AND letter_id = $2 AND status = $7`,
		movementID, letterID, string(status), receiverID, now, reason,
		string(model.MovementStatusDispatched),
	)
	if err != nil {
		return fmt.Errorf("update movement: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM movements WHERE id = $1 AND letter_id = $2)`,
			movementID, letterID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check movement: %w", err)
		}
		if !exists {
			return ErrMovementNotFound
		}
		return ErrLetterConflict
	}

	return nil
}

// CompleteProcessing переводит письмо из processing в processed.
func (r *PostgresRepository) CompleteProcessing(ctx context.Context, letterID string, dept model.Department, now time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE letters SET status = $2, updated_at = $3
		 WHERE id = $1 AND status = $4 AND current_department = $5`,
		letterID, string(model.LetterStatusProcessed), now,
		string(model.LetterStatusProcessing), string(dept),
	)
	if err != nil {
		return fmt.Errorf("update letter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLetterConflict
	}
	return nil
}

// AttachPV прикрепляет к письму внешний идентификатор платёжного ваучера.
// Запись условная: письмо должно оставаться в обработке в отделе dept,
// иначе между проверкой прав и записью письмо успели передать дальше.
func (r *PostgresRepository) AttachPV(ctx context.Context, letterID, pvID string, dept model.Department, now time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE letters SET pv_id = $2, updated_at = $3
		 WHERE id = $1 AND status = $4 AND current_department = $5`,
		letterID, pvID, now,
		string(model.LetterStatusProcessing), string(dept),
	)
	if err != nil {
		if isUniqueViolation(err, "letters_pv_id_key") {
			return ErrDuplicatePV
		}
		return fmt.Errorf("update letter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLetterConflict
	}
	return nil
}

// AddNote сохраняет заметку обработки. Вставка условная: заметка пишется
// только пока письмо находится в обработке в отделе заметки.
func (r *PostgresRepository) AddNote(ctx context.Context, n *model.ProcessingNote) error {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO processing_notes (id, letter_id, department, note, created_by)
		 SELECT $1, $2, $3, $4, $5
		 WHERE EXISTS (
		     SELECT 1 FROM letters
		     WHERE id = $2 AND status = $6 AND current_department = $3
		 )`,
		n.ID, n.LetterID, string(n.Department), n.Note, n.CreatedBy,
		string(model.LetterStatusProcessing),
	)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLetterConflict
	}
	return nil
}

// GetNotesByLetter возвращает заметки письма в порядке создания.
func (r *PostgresRepository) GetNotesByLetter(ctx context.Context, letterID string) ([]model.ProcessingNote, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, letter_id, department, note, created_by, created_at
		 FROM processing_notes WHERE letter_id = $1 ORDER BY created_at`,
		letterID,
	)
	if err != nil {
		return nil, fmt.Errorf("select notes: %w", err)
	}
	defer rows.Close()

	var notes []model.ProcessingNote
	for rows.Next() {
		var (
			n    model.ProcessingNote
			dept string
		)
		if err := rows.Scan(&n.ID, &n.LetterID, &dept, &n.Note, &n.CreatedBy, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.Department = model.Department(dept)
		notes = append(notes, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return notes, nil
}

// GetMovementsByLetter возвращает историю перемещений письма.
func (r *PostgresRepository) GetMovementsByLetter(ctx context.Context, letterID string) ([]model.Movement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, letter_id, from_department, to_department, dispatched_by, dispatched_at,
			received_by, received_at, rejection_reason, status, created_at
		 FROM movements WHERE letter_id = $1 ORDER BY created_at`,
		letterID,
	)
	if err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	defer rows.Close()

	var movements []model.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return movements, nil
}

// GetPendingMovement возвращает неразрешённое перемещение письма, если оно есть.
func (r *PostgresRepository) GetPendingMovement(ctx context.Context, letterID string) (*model.Movement, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, letter_id, from_department, to_department, dispatched_by, dispatched_at,
			received_by, received_at, rejection_reason, status, created_at
		 FROM movements WHERE letter_id = $1 AND status = $2`,
		letterID, string(model.MovementStatusDispatched),
	)

	m, err := scanMovement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMovementNotFound
		}
		return nil, err
	}
	return m, nil
}

func scanMovement(row pgx.Row) (*model.Movement, error) {
	var (
		m        model.Movement
		fromDept *string
		toDept   string
		status   string
	)

	err := row.Scan(&m.ID, &m.LetterID, &fromDept, &toDept, &m.DispatchedBy, &m.DispatchedAt,
		&m.ReceivedBy, &m.ReceivedAt, &m.RejectionReason, &status, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan movement: %w", err)
	}

	m.FromDepartment = departmentPtr(fromDept)
	m.ToDepartment = model.Department(toDept)
	m.Status = model.MovementStatus(status)

	return &m, nil
}
