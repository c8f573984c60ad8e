// Package model содержит доменные сущности сервиса учёта писем.
package model

import "time"

// Department обозначает отдел финансового управления.
type Department string

const (
	DepartmentSecretary      Department = "Secretary"
	DepartmentBudget         Department = "Budget"
	DepartmentPayables       Department = "Payables"
	DepartmentPayroll        Department = "Payroll"
	DepartmentStudentSection Department = "StudentSection"
	DepartmentCashOffice     Department = "CashOffice"
	DepartmentFinalAccounts  Department = "FinalAccounts"
	DepartmentAudit          Department = "Audit"

	// DepartmentArchive — синтетическое значение получателя для
	// архивных перемещений; реальные письма в такой отдел не передаются.
	DepartmentArchive Department = "Archive"
)

// Departments перечисляет отделы, в которые можно направить письмо.
var Departments = []Department{
	DepartmentSecretary,
	DepartmentBudget,
	DepartmentPayables,
	DepartmentPayroll,
	DepartmentStudentSection,
	DepartmentCashOffice,
	DepartmentFinalAccounts,
	DepartmentAudit,
}

// Valid сообщает, является ли значение известным отделом.
func (d Department) Valid() bool {
	for _, known := range Departments {
		if d == known {
			return true
		}
	}
	return false
}

// Role описывает роль сотрудника в системе.
type Role string

const (
	RoleSecretary      Role = "secretary"
	RoleDepartmentUser Role = "department_user"
	RolePayablesUser   Role = "payables_user"
	RolePayrollUser    Role = "payroll_user"
	RoleAdmin          Role = "admin"
	RoleAudit          Role = "audit"
)

// Valid сообщает, является ли значение известной ролью.
func (r Role) Valid() bool {
	switch r {
	case RoleSecretary, RoleDepartmentUser, RolePayablesUser, RolePayrollUser, RoleAdmin, RoleAudit:
		return true
	}
	return false
}

// Profile представляет сотрудника, работающего с письмами.
type Profile struct {
	ID           string
	Username     string
	PasswordHash []byte
	Role         Role
	Department   *Department
	FullName     string
	CreatedAt    time.Time
}

// LetterStatus описывает статус письма в рабочем процессе.
type LetterStatus string

const (
	LetterStatusNew        LetterStatus = "new"
	LetterStatusDispatched LetterStatus = "dispatched"
	LetterStatusForwarded  LetterStatus = "forwarded"
	LetterStatusProcessing LetterStatus = "processing"
	LetterStatusProcessed  LetterStatus = "processed"
	LetterStatusRejected   LetterStatus = "rejected"
	LetterStatusArchived   LetterStatus = "archived"
)

// LetterStatuses перечисляет все статусы письма.
var LetterStatuses = []LetterStatus{
	LetterStatusNew,
	LetterStatusDispatched,
	LetterStatusForwarded,
	LetterStatusProcessing,
	LetterStatusProcessed,
	LetterStatusRejected,
	LetterStatusArchived,
}

// Letter описывает письмо — единицу учёта рабочего процесса.
// Поля Status и CurrentDepartment — материализованная проекция журнала
// перемещений; CurrentDepartment равен nil только в статусах new и rejected.
type Letter struct {
	ID                string
	SerialNumber      *string
	Subject           string
	DateGenerated     *time.Time
	DateReceived      *time.Time
	DateMinuted       *time.Time
	DispatchDate      *time.Time
	AmountKobo        *int64
	Status            LetterStatus
	CurrentDepartment *Department
	IsArchived        bool
	PVID              *string
	BatchID           *string
	BatchIndex        *int
	CreatedBy         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// MovementStatus описывает состояние одного перемещения письма.
type MovementStatus string

const (
	MovementStatusDispatched MovementStatus = "dispatched"
	MovementStatusReceived   MovementStatus = "received"
	MovementStatusRejected   MovementStatus = "rejected"
)

// Movement описывает одно перемещение письма между отделами.
// Запись создаётся при отправке и разрешается ровно один раз:
// принимающий отдел либо принимает письмо, либо отклоняет его.
type Movement struct {
	ID              string
	LetterID        string
	FromDepartment  *Department
	ToDepartment    Department
	DispatchedBy    string
	DispatchedAt    time.Time
	ReceivedBy      *string
	ReceivedAt      *time.Time
	RejectionReason *string
	Status          MovementStatus
	CreatedAt       time.Time
}

// ProcessingNote — заметка отдела, обрабатывающего письмо. Только добавление.
type ProcessingNote struct {
	ID         string
	LetterID   string
	Department Department
	Note       string
	CreatedBy  string
	CreatedAt  time.Time
}

// BatchMetadata содержит произвольные параметры пакетного импорта.
type BatchMetadata struct {
	SubjectTemplate string `json:"subject_template,omitempty"`
	SerialPrefix    string `json:"serial_prefix,omitempty"`
	SourceFilename  string `json:"source_filename,omitempty"`
}

// LetterBatch описывает группу писем, созданных одним импортом.
type LetterBatch struct {
	ID            string
	BatchName     string
	LetterType    string
	TotalCount    int
	CreatedBy     string
	DateGenerated *time.Time
	DateMinuted   *time.Time
	Metadata      BatchMetadata
	CreatedAt     time.Time
}
