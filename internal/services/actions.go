package services

import (
	"github.com/senyabanana/marketplace-service/internal/models"
	"github.com/senyabanana/marketplace-service/internal/utils"
)

// AllowedActions вычисляет набор действий, доступных пользователю над заявкой,
// как функцию роли и связи с заявкой. Ничего не изменяет: это шлюз перед
// конечным автоматом, по нему же интерфейс рисует кнопки в списках.
func AllowedActions(actor *models.Actor, request *models.ServiceRequest) []models.RequestAction {
	// Оператор получает полный набор независимо от статуса; невозможный
	// переход всё равно отобьёт таблица переходов.
	if actor.IsStaff {
		return []models.RequestAction{
			models.SendAction,
			models.CancelAction,
			models.AcceptAction,
			models.StartAction,
			models.CompleteAction,
		}
	}

	var actions []models.RequestAction

	if actor.IsClientOf(request) {
		switch request.Status {
		case models.NewRequest:
			actions = append(actions, models.SendAction, models.CancelAction)
		case models.SentRequest, models.AcceptedRequest:
			actions = append(actions, models.CancelAction)
		}
		return actions
	}

	// Закреплённый исполнитель ведёт заявку по этапам выполнения.
	if actor.IsProviderOf(request) {
		switch request.Status {
		case models.AcceptedRequest:
			actions = append(actions, models.StartAction)
		case models.InProgressRequest:
			actions = append(actions, models.CompleteAction)
		}
		return actions
	}

	// Незакреплённый исполнитель видит accept на свободной отправленной заявке,
	// если прошёл бы проверки захвата: конкурсные заявки принимаются через
	// предложения, адресные - только целевым исполнителем.
	if request.Status == models.SentRequest && !request.Assigned() && actor.Provider != nil {
		if request.Type != models.CompetitiveRequest &&
			(request.Type != models.NormalRequest || actor.IsTargetOf(request)) &&
			utils.IsEligible(actor.Provider, request) {
			actions = append(actions, models.AcceptAction)
		}
	}

	return actions
}

// AuthorizeAction проверяет право пользователя на сам вид действия; допустимость
// действия из текущего статуса решает таблица переходов уже под блокировкой.
// Поэтому клиент, отменяющий заявку в работе, получает ошибку перехода, а не
// отказ в правах: право на отмену у него есть, окно отмены закрыто.
func AuthorizeAction(actor *models.Actor, request *models.ServiceRequest, action models.RequestAction) error {
	if actor.IsStaff {
		return nil
	}
	switch action {
	case models.SendAction, models.CancelAction:
		if !actor.IsClientOf(request) {
			return models.NewForbidden("only the request owner can perform this action")
		}
	case models.StartAction, models.CompleteAction:
		if !actor.IsProviderOf(request) {
			return models.NewForbidden("only the assigned provider can perform this action")
		}
	default:
		return models.NewForbidden("you are not allowed to perform this action")
	}
	return nil
}
