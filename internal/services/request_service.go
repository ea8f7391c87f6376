package services

import (
	"context"
	"strings"
	"time"

	"github.com/senyabanana/marketplace-service/internal/models"
	"github.com/senyabanana/marketplace-service/internal/repository"
	"github.com/senyabanana/marketplace-service/internal/utils"
)

type RequestService struct {
	Repo           repository.RequestRepository
	Events         models.EventSink
	UrgentLeadTime time.Duration
	now            func() time.Time
}

// NewRequestService создаёт новый экземпляр RequestService.
func NewRequestService(repo repository.RequestRepository, events models.EventSink, urgentLeadTime time.Duration) *RequestService {
	return &RequestService{
		Repo:           repo,
		Events:         events,
		UrgentLeadTime: urgentLeadTime,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// CreateRequest создает новую заявку: проверяет ограничения типа размещения
// и для срочных заявок вычисляет срок действия.
func (s *RequestService) CreateRequest(ctx context.Context, input models.CreateRequestInput) (*models.ServiceRequest, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.City = strings.TrimSpace(input.City)

	if input.ClientID == "" || input.SubcategoryID == "" || input.Title == "" || input.Description == "" {
		return nil, models.NewValidationError("missing required fields")
	}
	if !models.ValidType(input.Type) {
		return nil, models.NewValidationError("invalid request type")
	}
	if input.Type == models.NormalRequest && input.TargetProviderID == "" {
		return nil, models.NewValidationError("a normal request requires a target provider")
	}
	if input.Type == models.CompetitiveRequest && input.TargetProviderID != "" {
		return nil, models.NewValidationError("a competitive request cannot have a target provider")
	}

	isUrgent := input.Type == models.UrgentRequest
	var expiresAt *time.Time
	if isUrgent {
		deadline := s.now().Add(s.UrgentLeadTime)
		expiresAt = &deadline
	}

	request, err := s.Repo.CreateRequest(ctx, input, isUrgent, expiresAt)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, request, &request.ClientID, models.NewRequest, models.SentRequest, "request created and sent")
	return request, nil
}

// ListAvailable получает список свободных заявок для исполнителя, предварительно
// переводя просроченные срочные заявки в expired.
func (s *RequestService) ListAvailable(ctx context.Context, actor *models.Actor, requestType models.RequestType, limitStr, offsetStr string) ([]models.ServiceRequest, error) {
	if actor.Provider == nil {
		return nil, models.NewForbidden("no provider profile for this account")
	}
	if requestType != models.UrgentRequest && requestType != models.CompetitiveRequest {
		return nil, models.NewValidationError("only urgent and competitive requests are listed")
	}

	limit, offset, err := utils.ParseLimitOffset(limitStr, offsetStr)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if err := s.Repo.ExpireUrgent(ctx); err != nil {
		return nil, err
	}
	return s.Repo.ListAvailable(ctx, actor.Provider, requestType, limit, offset)
}

// ListMy получает список заявок клиента с фильтром по группе статусов.
func (s *RequestService) ListMy(ctx context.Context, actor *models.Actor, group, limitStr, offsetStr string) ([]models.ServiceRequest, error) {
	limit, offset, err := utils.ParseLimitOffset(limitStr, offsetStr)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	statuses, err := utils.StatusGroup(group)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if err := s.Repo.ExpireUrgent(ctx); err != nil {
		return nil, err
	}
	return s.Repo.ListByClient(ctx, actor.UserID, statuses, limit, offset)
}

// ListAssigned получает список заявок, закреплённых за исполнителем.
func (s *RequestService) ListAssigned(ctx context.Context, actor *models.Actor, group, limitStr, offsetStr string) ([]models.ServiceRequest, error) {
	if actor.Provider == nil {
		return nil, models.NewForbidden("no provider profile for this account")
	}

	limit, offset, err := utils.ParseLimitOffset(limitStr, offsetStr)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	statuses, err := utils.StatusGroup(group)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	if err := s.Repo.ExpireUrgent(ctx); err != nil {
		return nil, err
	}
	return s.Repo.ListByProvider(ctx, actor.Provider.ID, statuses, limit, offset)
}

// Claim закрепляет свободную заявку за исполнителем. Координация гонки целиком
// в хранилище; здесь только проверка профиля и ленивое истечение.
func (s *RequestService) Claim(ctx context.Context, requestId string, actor *models.Actor) (*models.ServiceRequest, error) {
	if actor.Provider == nil {
		return nil, models.NewForbidden("no provider profile for this account")
	}

	if err := s.Repo.ExpireUrgent(ctx); err != nil {
		return nil, err
	}

	request, oldStatus, err := s.Repo.Claim(ctx, requestId, actor.Provider, actor.UserID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, request, &actor.UserID, oldStatus, request.Status, "claimed by provider")
	return request, nil
}

// ExecuteAction выполняет явное действие над заявкой: send, start, complete
// или cancel. Набор допустимых действий вычисляется движком авторизации,
// сам переход применяет хранилище под блокировкой строки.
func (s *RequestService) ExecuteAction(ctx context.Context, requestId string, actor *models.Actor, input models.ActionInput) (*models.ServiceRequest, error) {
	switch input.Action {
	case models.SendAction, models.StartAction, models.CompleteAction, models.CancelAction:
	case models.AcceptAction:
		return nil, models.NewValidationError("accept is performed through claim or offer selection")
	default:
		return nil, models.NewValidationError("unknown action")
	}

	request, err := s.Repo.GetRequestById(ctx, requestId)
	if err != nil {
		return nil, err
	}

	if err := AuthorizeAction(actor, request, input.Action); err != nil {
		return nil, err
	}

	updated, oldStatus, err := s.Repo.ExecuteTransition(ctx, requestId, &actor.UserID, input.Action, input)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, updated, &actor.UserID, oldStatus, updated.Status, input.Note)
	return updated, nil
}

// Decline позволяет целевому или закреплённому исполнителю отказаться от ещё
// не принятой заявки; заявка отменяется с указанием причины.
func (s *RequestService) Decline(ctx context.Context, requestId string, actor *models.Actor, reason string) (*models.ServiceRequest, error) {
	if actor.Provider == nil {
		return nil, models.NewForbidden("no provider profile for this account")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewValidationError("a decline reason is required")
	}

	request, err := s.Repo.GetRequestById(ctx, requestId)
	if err != nil {
		return nil, err
	}
	if request.Type == models.CompetitiveRequest {
		return nil, models.NewInvalidTransition("competitive requests are handled through offers")
	}
	if !actor.IsProviderOf(request) && !actor.IsTargetOf(request) {
		return nil, models.NewForbidden("this request is not addressed to you")
	}
	if request.Status != models.NewRequest && request.Status != models.SentRequest {
		return nil, models.NewInvalidTransition("cannot decline a request in status " + string(request.Status))
	}

	updated, oldStatus, err := s.Repo.ExecuteTransition(ctx, requestId, &actor.UserID, models.CancelAction, models.ActionInput{
		Action: models.CancelAction,
		Note:   "declined by provider: " + reason,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, updated, &actor.UserID, oldStatus, updated.Status, reason)
	return updated, nil
}

// AllowedActionsFor возвращает набор действий пользователя над заявкой.
func (s *RequestService) AllowedActionsFor(ctx context.Context, requestId string, actor *models.Actor) ([]models.RequestAction, error) {
	request, err := s.Repo.GetRequestById(ctx, requestId)
	if err != nil {
		return nil, err
	}
	return AllowedActions(actor, request), nil
}

// StatusLog возвращает журнал смен статуса заявки её участникам.
func (s *RequestService) StatusLog(ctx context.Context, requestId string, actor *models.Actor) ([]models.RequestStatusLog, error) {
	request, err := s.Repo.GetRequestById(ctx, requestId)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff && !actor.IsClientOf(request) && !actor.IsProviderOf(request) {
		return nil, models.NewForbidden("you are not a participant of this request")
	}
	return s.Repo.GetStatusLog(ctx, requestId)
}

// publish отправляет событие перехода во внешний приёмник.
func (s *RequestService) publish(ctx context.Context, request *models.ServiceRequest, actorId *string, from, to models.RequestStatus, note string) {
	if s.Events == nil {
		return
	}
	event := models.StatusEvent{
		RequestID:  request.ID,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actorId,
		Note:       note,
	}
	if actorId == nil || *actorId != request.ClientID {
		event.CounterpartyUserID = request.ClientID
	}
	s.Events.Publish(ctx, event)
}
