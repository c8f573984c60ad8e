package permission

import (
	"testing"

	"github.com/mmeshcher/letterflow-system/internal/model"
)

func dept(d model.Department) *model.Department { return &d }

func profile(role model.Role, d *model.Department) *model.Profile {
	return &model.Profile{ID: "actor-1", Role: role, Department: d}
}

func letter(status model.LetterStatus, d *model.Department, createdBy string) *model.Letter {
	return &model.Letter{ID: "letter-1", Status: status, CurrentDepartment: d, CreatedBy: createdBy}
}

func TestCanCreateLetter(t *testing.T) {
	if !CanCreateLetter(profile(model.RoleSecretary, nil)) {
		t.Fatalf("secretary must be allowed to create letters")
	}
	for _, role := range []model.Role{model.RoleDepartmentUser, model.RolePayablesUser, model.RolePayrollUser, model.RoleAdmin, model.RoleAudit} {
		if CanCreateLetter(profile(role, nil)) {
			t.Fatalf("role %s must not create letters", role)
		}
	}
}

func TestCanDispatchLetter(t *testing.T) {
	sec := profile(model.RoleSecretary, nil)

	tests := []struct {
		name   string
		p      *model.Profile
		l      *model.Letter
		want   bool
	}{
		{"own new letter", sec, letter(model.LetterStatusNew, nil, sec.ID), true},
		{"own rejected letter", sec, letter(model.LetterStatusRejected, nil, sec.ID), true},
		{"own dispatched letter", sec, letter(model.LetterStatusDispatched, dept(model.DepartmentBudget), sec.ID), false},
		{"foreign letter", sec, letter(model.LetterStatusNew, nil, "other"), false},
		{"not a secretary", profile(model.RoleDepartmentUser, dept(model.DepartmentBudget)), letter(model.LetterStatusNew, nil, "actor-1"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanDispatchLetter(tt.p, tt.l); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanReceiveAndRejectLetter(t *testing.T) {
	payables := profile(model.RolePayablesUser, dept(model.DepartmentPayables))

	tests := []struct {
		name string
		l    *model.Letter
		want bool
	}{
		{"dispatched to my department", letter(model.LetterStatusDispatched, dept(model.DepartmentPayables), "s"), true},
		{"forwarded to my department", letter(model.LetterStatusForwarded, dept(model.DepartmentPayables), "s"), true},
		{"held by another department", letter(model.LetterStatusDispatched, dept(model.DepartmentBudget), "s"), false},
		{"already processing", letter(model.LetterStatusProcessing, dept(model.DepartmentPayables), "s"), false},
		{"no custody", letter(model.LetterStatusNew, nil, "s"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanReceiveLetter(payables, tt.l); got != tt.want {
				t.Fatalf("receive: got %v, want %v", got, tt.want)
			}
			if got := CanRejectLetter(payables, tt.l); got != tt.want {
				t.Fatalf("reject: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanAddNoteAndCompleteProcessing(t *testing.T) {
	budget := profile(model.RoleDepartmentUser, dept(model.DepartmentBudget))

	inProcessing := letter(model.LetterStatusProcessing, dept(model.DepartmentBudget), "s")
	if !CanAddNote(budget, inProcessing) {
		t.Fatalf("custody holder must add notes while processing")
	}
	if !CanCompleteProcessing(budget, inProcessing) {
		t.Fatalf("custody holder must complete processing")
	}

	elsewhere := letter(model.LetterStatusProcessing, dept(model.DepartmentPayroll), "s")
	if CanAddNote(budget, elsewhere) || CanCompleteProcessing(budget, elsewhere) {
		t.Fatalf("wrong department must not act on the letter")
	}

	done := letter(model.LetterStatusProcessed, dept(model.DepartmentBudget), "s")
	if CanAddNote(budget, done) || CanCompleteProcessing(budget, done) {
		t.Fatalf("processed letter must not accept notes or completion")
	}
}

func TestCanAttachPV(t *testing.T) {
	payables := profile(model.RolePayablesUser, dept(model.DepartmentPayables))

	if !CanAttachPV(payables, letter(model.LetterStatusProcessing, dept(model.DepartmentPayables), "s")) {
		t.Fatalf("payables user must attach PV to a letter in Payables")
	}
	if CanAttachPV(payables, letter(model.LetterStatusProcessing, dept(model.DepartmentBudget), "s")) {
		t.Fatalf("letter outside Payables must not accept PV")
	}
	if CanAttachPV(payables, letter(model.LetterStatusProcessed, dept(model.DepartmentPayables), "s")) {
		t.Fatalf("processed letter must not accept PV")
	}

	deptUser := profile(model.RoleDepartmentUser, dept(model.DepartmentPayables))
	if CanAttachPV(deptUser, letter(model.LetterStatusProcessing, dept(model.DepartmentPayables), "s")) {
		t.Fatalf("only payables_user role may attach PV")
	}
}

func TestCanForwardLetter(t *testing.T) {
	budget := profile(model.RoleDepartmentUser, dept(model.DepartmentBudget))

	if !CanForwardLetter(budget, letter(model.LetterStatusProcessed, dept(model.DepartmentBudget), "s")) {
		t.Fatalf("custody holder must forward a processed letter")
	}
	if CanForwardLetter(budget, letter(model.LetterStatusProcessing, dept(model.DepartmentBudget), "s")) {
		t.Fatalf("letter still in processing must not be forwarded")
	}
}

func TestCanArchiveLetter(t *testing.T) {
	finals := profile(model.RoleDepartmentUser, dept(model.DepartmentFinalAccounts))

	if !CanArchiveLetter(finals, letter(model.LetterStatusProcessed, dept(model.DepartmentFinalAccounts), "s")) {
		t.Fatalf("FinalAccounts must archive processed letters")
	}
	if CanArchiveLetter(finals, letter(model.LetterStatusProcessing, dept(model.DepartmentFinalAccounts), "s")) {
		t.Fatalf("unprocessed letter must not be archived")
	}

	budget := profile(model.RoleDepartmentUser, dept(model.DepartmentBudget))
	if CanArchiveLetter(budget, letter(model.LetterStatusProcessed, dept(model.DepartmentBudget), "s")) {
		t.Fatalf("only FinalAccounts may archive")
	}
}

func TestCanViewLetter(t *testing.T) {
	l := letter(model.LetterStatusProcessing, dept(model.DepartmentPayroll), "creator-1")

	if !CanViewLetter(profile(model.RoleAdmin, nil), l) {
		t.Fatalf("admin must view any letter")
	}
	if !CanViewLetter(profile(model.RoleAudit, nil), l) {
		t.Fatalf("audit must view any letter")
	}

	creator := &model.Profile{ID: "creator-1", Role: model.RoleSecretary}
	if !CanViewLetter(creator, l) {
		t.Fatalf("creator must view own letter")
	}

	holder := profile(model.RolePayrollUser, dept(model.DepartmentPayroll))
	if !CanViewLetter(holder, l) {
		t.Fatalf("custody department must view the letter")
	}

	stranger := profile(model.RoleDepartmentUser, dept(model.DepartmentBudget))
	if CanViewLetter(stranger, l) {
		t.Fatalf("unrelated department must not view the letter")
	}
}
