package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/letterflow-system/internal/model"
)

// CreateBatchWithLetters создаёт пакет импорта вместе с письмами.
// Запись пакета фиксируется отдельно; при сбое вставки писем пакет удаляется
// компенсирующим откатом — пакет без писем существовать не должен.
func (r *PostgresRepository) CreateBatchWithLetters(ctx context.Context, b *model.LetterBatch, letters []model.Letter) error {
	metadata, err := json.Marshal(b.Metadata)
	if err != nil {
		return fmt.Errorf("marshal batch metadata: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO letter_batches (id, batch_name, letter_type, total_count,
			created_by, date_generated, date_minuted, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, b.BatchName, b.LetterType, b.TotalCount,
		b.CreatedBy, b.DateGenerated, b.DateMinuted, metadata,
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	if err := r.insertBatchLetters(ctx, letters); err != nil {
		// Компенсирующий откат: письма не вставились, пакет не должен остаться.
		if _, delErr := r.pool.Exec(ctx, `DELETE FROM letter_batches WHERE id = $1`, b.ID); delErr != nil {
			return errors.Join(err, fmt.Errorf("rollback batch: %w", delErr))
		}
		return err
	}

	return nil
}

func (r *PostgresRepository) insertBatchLetters(ctx context.Context, letters []model.Letter) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		batch := &pgx.Batch{}
		for _, l := range letters {
			batch.Queue(
				`INSERT INTO letters (id, serial_number, subject, date_generated, date_minuted,
					amount_kobo, status, batch_id, batch_index, created_by)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				l.ID, l.SerialNumber, l.Subject, l.DateGenerated, l.DateMinuted,
				l.AmountKobo, string(l.Status), l.BatchID, l.BatchIndex, l.CreatedBy,
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			if isUniqueViolation(err, "letters_serial_number_key") {
				return ErrDuplicateSerial
			}
			return fmt.Errorf("insert batch letters: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

const batchColumns = `id, batch_name, letter_type, total_count, created_by,
	date_generated, date_minuted, metadata, created_at`

func scanBatch(row pgx.Row) (*model.LetterBatch, error) {
	var (
		b        model.LetterBatch
		metadata []byte
	)

	err := row.Scan(&b.ID, &b.BatchName, &b.LetterType, &b.TotalCount, &b.CreatedBy,
		&b.DateGenerated, &b.DateMinuted, &metadata, &b.CreatedAt)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &b.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal batch metadata: %w", err)
		}
	}

	return &b, nil
}

// GetBatchByID возвращает пакет импорта по идентификатору.
func (r *PostgresRepository) GetBatchByID(ctx context.Context, id string) (*model.LetterBatch, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM letter_batches WHERE id = $1`, id)

	b, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

// GetBatchLetters возвращает письма пакета в порядке их позиции в импорте.
func (r *PostgresRepository) GetBatchLetters(ctx context.Context, batchID string) ([]model.Letter, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+letterColumns+` FROM letters WHERE batch_id = $1 ORDER BY batch_index`,
		batchID)
	if err != nil {
		return nil, fmt.Errorf("select batch letters: %w", err)
	}
	return collectLetters(rows)
}

// GetBatchLetterIDs возвращает идентификаторы писем пакета в указанном статусе.
func (r *PostgresRepository) GetBatchLetterIDs(ctx context.Context, batchID string, status model.LetterStatus) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM letters WHERE batch_id = $1 AND status = $2 ORDER BY batch_index`,
		batchID, string(status))
	if err != nil {
		return nil, fmt.Errorf("select batch letter ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return ids, nil
}

// ListBatchesByCreator возвращает пакеты, созданные указанным сотрудником.
func (r *PostgresRepository) ListBatchesByCreator(ctx context.Context, creatorID string) ([]model.LetterBatch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+batchColumns+` FROM letter_batches
		 WHERE created_by = $1 ORDER BY created_at DESC`,
		creatorID)
	if err != nil {
		return nil, fmt.Errorf("select batches: %w", err)
	}
	return collectBatches(rows)
}

// ListBatchesByDepartment возвращает пакеты, письма которых направлялись
// в указанный отдел.
func (r *PostgresRepository) ListBatchesByDepartment(ctx context.Context, dept model.Department) ([]model.LetterBatch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT b.id, b.batch_name, b.letter_type, b.total_count, b.created_by,
			b.date_generated, b.date_minuted, b.metadata, b.created_at
		 FROM letter_batches b
		 JOIN letters l ON l.batch_id = b.id
		 JOIN movements m ON m.letter_id = l.id
		 WHERE m.to_department = $1
		 ORDER BY b.created_at DESC`,
		string(dept))
	if err != nil {
		return nil, fmt.Errorf("select batches: %w", err)
	}
	return collectBatches(rows)
}

func collectBatches(rows pgx.Rows) ([]model.LetterBatch, error) {
	defer rows.Close()

	var batches []model.LetterBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return batches, nil
}
