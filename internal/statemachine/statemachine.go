// Package statemachine содержит таблицу допустимых переходов статусов письма
// и проверку кастодиальных прав отдела. Все обработчики действий обязаны
// сверяться с этой таблицей перед изменением письма.
package statemachine

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/letterflow-system/internal/model"
)

// Action обозначает действие над письмом, порождающее переход статуса.
type Action string

const (
	ActionDispatch           Action = "dispatch"
	ActionReceive            Action = "receive"
	ActionReject             Action = "reject"
	ActionCompleteProcessing Action = "complete_processing"
	ActionForward            Action = "forward"
	ActionArchive            Action = "archive"
	ActionReturnToSecretary  Action = "return_to_secretary"

	// ActionAddNote и ActionAttachPV не меняют статус письма,
	// но проходят кастодиальную проверку.
	ActionAddNote  Action = "add_note"
	ActionAttachPV Action = "attach_pv"
)

// ErrInvalidTransition возвращается, когда для тройки (статус, статус, действие)
// нет строки в таблице переходов.
var ErrInvalidTransition = errors.New("invalid state transition")

// ErrCustodyViolation возвращается, когда действующий отдел не совпадает
// с отделом, у которого письмо находится на руках.
var ErrCustodyViolation = errors.New("custody violation")

// ErrNoCustody возвращается при попытке действия над письмом,
// не закреплённым ни за одним отделом.
var ErrNoCustody = errors.New("letter has no custody assignment")

// Transition описывает одну строку таблицы переходов.
type Transition struct {
	From            model.LetterStatus
	To              model.LetterStatus
	Action          Action
	RequiresCustody bool
}

// Transitions — каноническая таблица допустимых переходов статусов.
var Transitions = []Transition{
	{From: model.LetterStatusNew, To: model.LetterStatusDispatched, Action: ActionDispatch, RequiresCustody: false},
	{From: model.LetterStatusDispatched, To: model.LetterStatusProcessing, Action: ActionReceive, RequiresCustody: true},
	{From: model.LetterStatusDispatched, To: model.LetterStatusRejected, Action: ActionReject, RequiresCustody: true},
	{From: model.LetterStatusForwarded, To: model.LetterStatusProcessing, Action: ActionReceive, RequiresCustody: true},
	{From: model.LetterStatusForwarded, To: model.LetterStatusRejected, Action: ActionReject, RequiresCustody: true},
	{From: model.LetterStatusProcessing, To: model.LetterStatusProcessed, Action: ActionCompleteProcessing, RequiresCustody: true},
	{From: model.LetterStatusProcessed, To: model.LetterStatusForwarded, Action: ActionForward, RequiresCustody: true},
	{From: model.LetterStatusProcessed, To: model.LetterStatusArchived, Action: ActionArchive, RequiresCustody: true},
	{From: model.LetterStatusRejected, To: model.LetterStatusNew, Action: ActionReturnToSecretary, RequiresCustody: false},
}

// ValidateTransition проверяет, что переход из from в to действием action
// присутствует в таблице. Несовпадение любого из трёх полей — жёсткое
// нарушение предусловия: вызывающий не должен выполнять запись.
func ValidateTransition(from, to model.LetterStatus, action Action) error {
	for _, t := range Transitions {
		if t.From == from && t.To == to && t.Action == action {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s from %s to %s", ErrInvalidTransition, action, from, to)
}

// NextStatusFor возвращает статус, в который переводит письмо действие action
// из статуса from.
func NextStatusFor(from model.LetterStatus, action Action) (model.LetterStatus, error) {
	for _, t := range Transitions {
		if t.From == from && t.Action == action {
			return t.To, nil
		}
	}
	return "", fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, action, from)
}

// RequiresCustody сообщает, требует ли переход from→to кастодиальной проверки.
func RequiresCustody(from, to model.LetterStatus) bool {
	for _, t := range Transitions {
		if t.From == from && t.To == to {
			return t.RequiresCustody
		}
	}
	return false
}

// ValidNextStatuses возвращает статусы, достижимые из from за один переход.
func ValidNextStatuses(from model.LetterStatus) []model.LetterStatus {
	var res []model.LetterStatus
	for _, t := range Transitions {
		if t.From == from {
			res = append(res, t.To)
		}
	}
	return res
}

// ValidateCustody проверяет, что действующий отдел совпадает с отделом,
// за которым закреплено письмо. Для письма без кастодии (nil) проверка
// проходит только для первоначальной отправки.
func ValidateCustody(letterDept, actorDept *model.Department, action Action) error {
	if letterDept == nil {
		if action != ActionDispatch {
			return ErrNoCustody
		}
		return nil
	}

	if actorDept == nil || *letterDept != *actorDept {
		actor := model.Department("none")
		if actorDept != nil {
			actor = *actorDept
		}
		return fmt.Errorf("%w: letter is with %s, actor is in %s", ErrCustodyViolation, *letterDept, actor)
	}

	return nil
}
