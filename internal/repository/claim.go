package repository

import (
	"time"

	"github.com/senyabanana/marketplace-service/internal/models"
	"github.com/senyabanana/marketplace-service/internal/utils"
)

// validateClaim выполняет проверки протокола захвата заявки в строгом порядке.
// Вызывается хранилищами только под блокировкой строки заявки, чтобы повторная
// проверка provider_id и статуса происходила после ожидания конкурента.
// Ошибка вида KindExpired означает, что вызывающий обязан перевести заявку
// в статус expired в той же транзакции.
func validateClaim(request *models.ServiceRequest, provider *models.ProviderProfile, now time.Time) *models.ErrorResponse {
	if request.Type == models.CompetitiveRequest {
		return models.NewInvalidTransition("competitive requests are claimed through offers")
	}
	if request.Type == models.NormalRequest {
		if provider == nil || request.TargetProviderID == nil || provider.ID != *request.TargetProviderID {
			return models.NewInvalidTransition("this request is addressed to another provider")
		}
	}
	switch request.Status {
	case models.NewRequest, models.SentRequest, models.ExpiredRequest:
		if request.ExpiredBy(now) {
			return models.NewExpired("the request has expired")
		}
	}
	if request.Assigned() {
		return models.NewConflict("the request has already been claimed")
	}
	if request.Status != models.NewRequest && request.Status != models.SentRequest {
		return models.NewInvalidTransition("cannot claim a request in status " + string(request.Status))
	}
	if !utils.IsEligible(provider, request) {
		return models.NewForbidden("the request does not match your profile")
	}
	return nil
}
