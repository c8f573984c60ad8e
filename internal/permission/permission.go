// Package permission содержит ролевые предикаты доступа к действиям над письмами.
// Проверка роли (кому вообще разрешено действие) отделена от кастодиальной
// проверки (кто сейчас держит письмо): предикаты вызываются до обращения
// к машине состояний, чтобы отказ в доступе был отличим от ошибки перехода.
package permission

import "github.com/mmeshcher/letterflow-system/internal/model"

// CanCreateLetter разрешает создание письма только секретарю.
func CanCreateLetter(p *model.Profile) bool {
	return p.Role == model.RoleSecretary
}

// CanDispatchLetter разрешает отправку письма создавшему его секретарю,
// пока письмо новое или возвращено.
func CanDispatchLetter(p *model.Profile, l *model.Letter) bool {
	if p.Role != model.RoleSecretary || l.CreatedBy != p.ID {
		return false
	}
	return l.Status == model.LetterStatusNew || l.Status == model.LetterStatusRejected
}

// CanReceiveLetter разрешает приём письма сотруднику отдела-получателя.
func CanReceiveLetter(p *model.Profile, l *model.Letter) bool {
	if !sameDepartment(p.Department, l.CurrentDepartment) {
		return false
	}
	return l.Status == model.LetterStatusDispatched || l.Status == model.LetterStatusForwarded
}

// CanRejectLetter совпадает с правилом приёма: отклонить может тот же отдел.
func CanRejectLetter(p *model.Profile, l *model.Letter) bool {
	return CanReceiveLetter(p, l)
}

// CanAddNote разрешает заметки отделу, обрабатывающему письмо.
func CanAddNote(p *model.Profile, l *model.Letter) bool {
	return sameDepartment(p.Department, l.CurrentDepartment) &&
		l.Status == model.LetterStatusProcessing
}

// CanCompleteProcessing разрешает завершение обработки текущему отделу.
func CanCompleteProcessing(p *model.Profile, l *model.Letter) bool {
	return sameDepartment(p.Department, l.CurrentDepartment) &&
		l.Status == model.LetterStatusProcessing
}

// CanAttachPV разрешает прикрепление платёжного ваучера только сотруднику
// расчётного отдела, пока письмо находится у этого отдела.
func CanAttachPV(p *model.Profile, l *model.Letter) bool {
	if p.Role != model.RolePayablesUser {
		return false
	}
	if p.Department == nil || *p.Department != model.DepartmentPayables {
		return false
	}
	if l.CurrentDepartment == nil || *l.CurrentDepartment != model.DepartmentPayables {
		return false
	}
	return l.Status == model.LetterStatusProcessing
}

// CanForwardLetter разрешает пересылку обработанного письма текущему отделу.
func CanForwardLetter(p *model.Profile, l *model.Letter) bool {
	return sameDepartment(p.Department, l.CurrentDepartment) &&
		l.Status == model.LetterStatusProcessed
}

// CanArchiveLetter разрешает архивирование обработанных писем отделу сводной отчётности.
func CanArchiveLetter(p *model.Profile, l *model.Letter) bool {
	if p.Department == nil || *p.Department != model.DepartmentFinalAccounts {
		return false
	}
	return l.Status == model.LetterStatusProcessed
}

// CanViewLetter разрешает просмотр администраторам и аудиторам, автору письма
// и сотрудникам отдела, у которого письмо находится.
func CanViewLetter(p *model.Profile, l *model.Letter) bool {
	if p.Role == model.RoleAdmin || p.Role == model.RoleAudit {
		return true
	}
	if l.CreatedBy == p.ID {
		return true
	}
	return sameDepartment(p.Department, l.CurrentDepartment)
}

func sameDepartment(actor, letter *model.Department) bool {
	return actor != nil && letter != nil && *actor == *letter
}
