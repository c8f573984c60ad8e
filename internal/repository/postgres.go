// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/mmeshcher/letterflow-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrProfileExists возвращается при попытке создать профиль с занятым именем.
	ErrProfileExists = errors.New("profile already exists")
	// ErrProfileNotFound возвращается, если профиль не найден.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrLetterNotFound возвращается, если письмо не найдено.
	ErrLetterNotFound = errors.New("letter not found")
	// ErrMovementNotFound возвращается, если перемещение не найдено.
	ErrMovementNotFound = errors.New("movement not found")
	// ErrBatchNotFound возвращается, если пакет импорта не найден.
	ErrBatchNotFound = errors.New("letter batch not found")
	// ErrDuplicateSerial возвращается при попытке использовать занятый серийный номер.
	ErrDuplicateSerial = errors.New("serial number already exists")
	// ErrDuplicatePV возвращается, если PV уже прикреплён к другому письму.
	ErrDuplicatePV = errors.New("PV id already attached to another letter")
	// ErrMovementPending возвращается при попытке создать второе неразрешённое
	// перемещение для письма.
	ErrMovementPending = errors.New("letter already has a pending movement")
	// ErrLetterConflict возвращается, когда условное обновление не нашло строку:
	// статус письма изменился между чтением и записью.
	ErrLetterConflict = errors.New("letter state changed concurrently")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при сбоях сериализации и взаимных блокировках.
// Ошибки контекста и бизнес-ошибки не ретраятся.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
		}

		return err
	})
}

// isUniqueViolation сообщает, нарушает ли ошибка указанное ограничение уникальности.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == constraint
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateProfile сохраняет профиль нового сотрудника.
func (r *PostgresRepository) CreateProfile(ctx context.Context, p *model.Profile) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO profiles (id, username, password_hash, role, department, full_name)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Username, p.PasswordHash, string(p.Role), departmentValue(p.Department), p.FullName,
	)
	if err != nil {
		if isUniqueViolation(err, "profiles_username_key") {
			return fmt.Errorf("%w: %s", ErrProfileExists, p.Username)
		}
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// GetProfileByUsername возвращает профиль по имени пользователя.
func (r *PostgresRepository) GetProfileByUsername(ctx context.Context, username string) (*model.Profile, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, role, department, full_name, created_at
		 FROM profiles WHERE username = $1`,
		username,
	)
	return scanProfile(row)
}

// GetProfileByID возвращает профиль по идентификатору.
func (r *PostgresRepository) GetProfileByID(ctx context.Context, id string) (*model.Profile, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, role, department, full_name, created_at
		 FROM profiles WHERE id = $1`,
		id,
	)
	return scanProfile(row)
}

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var (
		p    model.Profile
		role string
		dept *string
	)

	err := row.Scan(&p.ID, &p.Username, &p.PasswordHash, &role, &dept, &p.FullName, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}

	p.Role = model.Role(role)
	p.Department = departmentPtr(dept)

	return &p, nil
}

func departmentValue(d *model.Department) *string {
	if d == nil {
		return nil
	}
	s := string(*d)
	return &s
}

func departmentPtr(s *string) *model.Department {
	if s == nil {
		return nil
	}
	d := model.Department(*s)
	return &d
}
