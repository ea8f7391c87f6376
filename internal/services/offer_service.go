package services

import (
	"context"

	"github.com/senyabanana/marketplace-service/internal/models"
	"github.com/senyabanana/marketplace-service/internal/repository"
	"github.com/senyabanana/marketplace-service/internal/utils"
)

type OfferService struct {
	Requests repository.RequestRepository
	Offers   repository.OfferRepository
	Events   models.EventSink
}

// NewOfferService создает новый экземпляр OfferService.
func NewOfferService(requests repository.RequestRepository, offers repository.OfferRepository, events models.EventSink) *OfferService {
	return &OfferService{Requests: requests, Offers: offers, Events: events}
}

// SubmitOffer создает предложение исполнителя по конкурсной заявке.
func (s *OfferService) SubmitOffer(ctx context.Context, requestId string, actor *models.Actor, input models.OfferInput) (*models.Offer, error) {
	if actor.Provider == nil {
		return nil, models.NewForbidden("no provider profile for this account")
	}
	if !input.Price.IsPositive() {
		return nil, models.NewValidationError("price must be positive")
	}
	if input.DurationDays <= 0 {
		return nil, models.NewValidationError("duration must be a positive number of days")
	}

	request, err := s.Requests.GetRequestById(ctx, requestId)
	if err != nil {
		return nil, err
	}
	if request.Type != models.CompetitiveRequest {
		return nil, models.NewInvalidTransition("offers are accepted only on competitive requests")
	}
	if request.Status != models.SentRequest {
		return nil, models.NewInvalidTransition("cannot submit an offer in status " + string(request.Status))
	}
	if !utils.IsEligible(actor.Provider, request) {
		return nil, models.NewForbidden("the request does not match your profile")
	}

	return s.Offers.CreateOffer(ctx, requestId, actor.Provider.ID, input)
}

// AcceptOffer выбирает предложение от имени клиента-владельца заявки.
// Атомарность выбора обеспечивает хранилище.
func (s *OfferService) AcceptOffer(ctx context.Context, offerId string, actor *models.Actor) (*models.ServiceRequest, error) {
	request, oldStatus, err := s.Offers.AcceptOffer(ctx, offerId, actor.UserID)
	if err != nil {
		return nil, err
	}

	if s.Events != nil {
		s.Events.Publish(ctx, models.StatusEvent{
			RequestID:  request.ID,
			FromStatus: oldStatus,
			ToStatus:   request.Status,
			ActorID:    &actor.UserID,
			Note:       "offer selected by client",
		})
	}
	return request, nil
}

// ListOffers возвращает предложения по заявке её владельцу или оператору.
func (s *OfferService) ListOffers(ctx context.Context, requestId string, actor *models.Actor, limitStr, offsetStr string) ([]models.Offer, error) {
	limit, offset, err := utils.ParseLimitOffset(limitStr, offsetStr)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	request, err := s.Requests.GetRequestById(ctx, requestId)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff && !actor.IsClientOf(request) {
		return nil, models.NewForbidden("only the request owner can view offers")
	}

	return s.Offers.GetRequestOffers(ctx, requestId, limit, offset)
}
