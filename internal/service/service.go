// Package service реализует бизнес-логику сервиса учёта писем: проверку прав,
// сверку переходов с машиной состояний и атомарные операции над письмами.
package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/letterflow-system/internal/model"
	"github.com/mmeshcher/letterflow-system/internal/repository"
	"github.com/mmeshcher/letterflow-system/internal/validation"
)

// ErrUnauthorized возвращается, когда роль или отдел сотрудника не дают права
// на действие. Отличается от ошибок перехода: клиенту не поможет повтор.
var ErrUnauthorized = errors.New("action not permitted")

// ErrInvalidCredentials возвращается при неверном имени пользователя или пароле.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateProfile(ctx context.Context, p *model.Profile) error
	GetProfileByUsername(ctx context.Context, username string) (*model.Profile, error)
	GetProfileByID(ctx context.Context, id string) (*model.Profile, error)

	CreateLetter(ctx context.Context, l *model.Letter) error
	GetLetterByID(ctx context.Context, id string) (*model.Letter, error)
	GetLettersByIDs(ctx context.Context, ids []string) ([]model.Letter, error)
	GetLettersByCreator(ctx context.Context, creatorID string) ([]model.Letter, error)
	GetLettersByDepartment(ctx context.Context, dept model.Department) ([]model.Letter, error)
	GetProcessedLetters(ctx context.Context, dept *model.Department) ([]model.Letter, error)

	DispatchLetter(ctx context.Context, m *model.Movement, now time.Time) error
	ForwardLetter(ctx context.Context, m *model.Movement, now time.Time) error
	ReceiveLetter(ctx context.Context, letterID, movementID, receiverID string, now time.Time) error
	RejectLetter(ctx context.Context, letterID, movementID, receiverID, reason string, now time.Time) error
	CompleteProcessing(ctx context.Context, letterID string, dept model.Department, now time.Time) error
	AttachPV(ctx context.Context, letterID, pvID string, dept model.Department, now time.Time) error
	AddNote(ctx context.Context, n *model.ProcessingNote) error
	GetNotesByLetter(ctx context.Context, letterID string) ([]model.ProcessingNote, error)
	GetMovementsByLetter(ctx context.Context, letterID string) ([]model.Movement, error)
	GetPendingMovement(ctx context.Context, letterID string) (*model.Movement, error)

	BulkAcceptLetters(ctx context.Context, ids []string, dept model.Department, now time.Time) ([]string, error)
	BulkRejectLetters(ctx context.Context, ids []string, dept model.Department, now time.Time) ([]string, error)
	BulkDispatchLetters(ctx context.Context, ids []string, to model.Department, now time.Time) ([]string, error)
	BulkForwardLetters(ctx context.Context, ids []string, from, to model.Department, now time.Time) ([]string, error)
	BulkProcessLetters(ctx context.Context, ids []string, dept model.Department, now time.Time) ([]string, error)
	ArchiveLetters(ctx context.Context, ids []string, now time.Time) ([]repository.ArchivedLetter, error)
	InsertMovements(ctx context.Context, movements []model.Movement) error
	ResolvePendingMovements(ctx context.Context, letterIDs []string, status model.MovementStatus, receiverID string, reason *string, now time.Time) error

	CreateBatchWithLetters(ctx context.Context, b *model.LetterBatch, letters []model.Letter) error
	GetBatchByID(ctx context.Context, id string) (*model.LetterBatch, error)
	GetBatchLetters(ctx context.Context, batchID string) ([]model.Letter, error)
	GetBatchLetterIDs(ctx context.Context, batchID string, status model.LetterStatus) ([]string, error)
	ListBatchesByCreator(ctx context.Context, creatorID string) ([]model.LetterBatch, error)
	ListBatchesByDepartment(ctx context.Context, dept model.Department) ([]model.LetterBatch, error)
}

// Service содержит бизнес-логику сервиса учёта писем.
type Service struct {
	repo Repository
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterInput содержит данные регистрации нового сотрудника.
type RegisterInput struct {
	Username   string
	Password   string
	Role       model.Role
	Department *model.Department
	FullName   string
}

// Register создаёт профиль нового сотрудника и возвращает его идентификатор.
func (s *Service) Register(ctx context.Context, in RegisterInput) (string, error) {
	if in.Username == "" || in.Password == "" {
		return "", fmt.Errorf("%w: username and password are required", validation.ErrValidation)
	}
	if !in.Role.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", validation.ErrValidation, in.Role)
	}
	if in.Department != nil && !in.Department.Valid() {
		return "", fmt.Errorf("%w: unknown department %q", validation.ErrValidation, *in.Department)
	}

	p := &model.Profile{
		ID:           uuid.NewString(),
		Username:     in.Username,
		PasswordHash: hashPassword(in.Username, in.Password),
		Role:         in.Role,
		Department:   in.Department,
		FullName:     in.FullName,
	}

	if err := s.repo.CreateProfile(ctx, p); err != nil {
		return "", err
	}

	return p.ID, nil
}

// Authenticate проверяет имя пользователя и пароль и возвращает профиль.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.Profile, error) {
	p, err := s.repo.GetProfileByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	hashed := hashPassword(username, password)
	if subtle.ConstantTimeCompare(hashed, p.PasswordHash) != 1 {
		return nil, ErrInvalidCredentials
	}

	return p, nil
}

// GetActor возвращает профиль сотрудника по идентификатору из cookie.
func (s *Service) GetActor(ctx context.Context, profileID string) (*model.Profile, error) {
	return s.repo.GetProfileByID(ctx, profileID)
}

func hashPassword(username, password string) []byte {
	sum := sha256.Sum256([]byte(username + ":" + password))
	return sum[:]
}
