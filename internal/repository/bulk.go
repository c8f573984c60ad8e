package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/letterflow-system/internal/model"
)

// Массовые операции обновляют письма одним условным UPDATE: в выборку
// попадают только письма в допустимом статусе и в кастодии нужного отдела,
// остальные идентификаторы просто не возвращаются. Перемещения пишутся
// отдельно — граница согласованности здесь проходит по статусу письма.

// BulkAcceptLetters переводит письма отдела из dispatched/forwarded в processing.
func (r *PostgresRepository) BulkAcceptLetters(ctx context.Context, ids []string, dept model.Department, now time.Time) ([]string, error) {
	return r.bulkUpdate(ctx,
		`UPDATE letters
		 SET status = $1, date_received = $2, updated_at = $2
		 WHERE id = ANY($3::uuid[]) AND current_department = $4 AND status = ANY($5)
		 RETURNING id`,
		string(model.LetterStatusProcessing), now, ids, string(dept),
		[]string{string(model.LetterStatusDispatched), string(model.LetterStatusForwarded)},
	)
}

// BulkRejectLetters переводит письма отдела в rejected и снимает кастодию.
func (r *PostgresRepository) BulkRejectLetters(ctx context.Context, ids []string, dept model.Department, now time.Time) ([]string, error) {
	return r.bulkUpdate(ctx,
		`UPDATE letters
		 SET status = $1, current_department = NULL, updated_at = $2
		 WHERE id = ANY($3::uuid[]) AND current_department = $4 AND status = ANY($5)
		 RETURNING id`,
		string(model.LetterStatusRejected), now, ids, string(dept),
		[]string{string(model.LetterStatusDispatched), string(model.LetterStatusForwarded)},
	)
}

// BulkDispatchLetters отправляет новые и возвращённые письма в указанный отдел.
func (r *PostgresRepository) BulkDispatchLetters(ctx context.Context, ids []string, to model.Department, now time.Time) ([]string, error) {
	return r.bulkUpdate(ctx,
		`UPDATE letters
		 SET status = $1, current_department = $2, dispatch_date = $3, updated_at = $3
		 WHERE id = ANY($4::uuid[]) AND status = ANY($5)
		 RETURNING id`,
		string(model.LetterStatusDispatched), string(to), now, ids,
		[]string{string(model.LetterStatusNew), string(model.LetterStatusRejected)},
	)
}

// BulkForwardLetters пересылает обработанные письма отдела в новый отдел.
func (r *PostgresRepository) BulkForwardLetters(ctx context.Context, ids []string, from, to model.Department, now time.Time) ([]string, error) {
	return r.bulkUpdate(ctx,
		`UPDATE letters
		 SET status = $1, current_department = $2, updated_at = $3
		 WHERE id = ANY($4::uuid[]) AND current_department = $5 AND status = $6
		 RETURNING id`,
		string(model.LetterStatusForwarded), string(to), now, ids,
		string(from), string(model.LetterStatusProcessed),
	)
}

// BulkProcessLetters переводит письма отдела из processing в processed.
func (r *PostgresRepository) BulkProcessLetters(ctx context.Context, ids []string, dept model.Department, now time.Time) ([]string, error) {
	return r.bulkUpdate(ctx,
		`UPDATE letters
		 SET status = $1, updated_at = $2
		 WHERE id = ANY($3::uuid[]) AND current_department = $4 AND status = $5
		 RETURNING id`,
		string(model.LetterStatusProcessed), now, ids, string(dept),
		string(model.LetterStatusProcessing),
	)
}

func (r *PostgresRepository) bulkUpdate(ctx context.Context, query string, args ...any) ([]string, error) {
	var updated []string

	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("bulk update: %w", err)
		}
		defer rows.Close()

		updated = updated[:0]
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scan id: %w", err)
			}
			updated = append(updated, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// ArchivedLetter описывает заархивированное письмо и отдел, из которого
// оно ушло в архив.
type ArchivedLetter struct {
	ID             string
	FromDepartment *model.Department
}

// ArchiveLetters переводит обработанные письма в статус archived.
// Текущий отдел не меняется: архив — терминальный статус, а не передача.
func (r *PostgresRepository) ArchiveLetters(ctx context.Context, ids []string, now time.Time) ([]ArchivedLetter, error) {
	var archived []ArchivedLetter

	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`UPDATE letters
			 SET status = $1, is_archived = TRUE, updated_at = $2
			 WHERE id = ANY($3::uuid[]) AND status = $4
			 RETURNING id, current_department`,
			string(model.LetterStatusArchived), now, ids,
			string(model.LetterStatusProcessed),
		)
		if err != nil {
			return fmt.Errorf("archive letters: %w", err)
		}
		defer rows.Close()

		archived = archived[:0]
		for rows.Next() {
			var (
				a    ArchivedLetter
				dept *string
			)
			if err := rows.Scan(&a.ID, &dept); err != nil {
				return fmt.Errorf("scan archived letter: %w", err)
			}
			a.FromDepartment = departmentPtr(dept)
			archived = append(archived, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return archived, nil
}

// InsertMovements пишет перемещения для массовой операции одной транзакцией.
func (r *PostgresRepository) InsertMovements(ctx context.Context, movements []model.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		batch := &pgx.Batch{}
		for _, m := range movements {
			batch.Queue(
				`INSERT INTO movements (id, letter_id, from_department, to_department,
					dispatched_by, dispatched_at, received_by, received_at, status)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				m.ID, m.LetterID, departmentValue(m.FromDepartment), string(m.ToDepartment),
				m.DispatchedBy, m.DispatchedAt, m.ReceivedBy, m.ReceivedAt, string(m.Status),
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			if isUniqueViolation(err, "movements_one_pending_idx") {
				return ErrMovementPending
			}
			return fmt.Errorf("insert movements: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// ResolvePendingMovements массово разрешает неразрешённые перемещения писем.
// Вызывается после массового обновления статусов; ошибка здесь не откатывает
// уже зафиксированные статусы писем.
func (r *PostgresRepository) ResolvePendingMovements(ctx context.Context, letterIDs []string, status model.MovementStatus, receiverID string, reason *string, now time.Time) error {
	if len(letterIDs) == 0 {
		return nil
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE movements
		 SET status = $1, received_by = $2, received_at = $3, rejection_reason = $4
		 WHERE letter_id = ANY($5::uuid[]) AND status = $6`,
		string(status), receiverID, now, reason, letterIDs,
		string(model.MovementStatusDispatched),
	)
	if err != nil {
		return fmt.Errorf("resolve movements: %w", err)
	}
	return nil
}
