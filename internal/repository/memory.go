package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/senyabanana/marketplace-service/internal/models"
	"github.com/senyabanana/marketplace-service/internal/utils"

	"github.com/google/uuid"
)

// MemoryStore - реализация RequestRepository и OfferRepository в памяти.
// Вместо блокировки строки базы используется мьютекс на заявку, что даёт ту же
// гарантию "побеждает ровно один" в рамках одного процесса.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[string]*models.ServiceRequest
	offers   map[string]*models.Offer
	logs     map[string][]models.RequestStatusLog
	locks    map[string]*sync.Mutex
	now      func() time.Time
}

// NewMemoryStore создает новый экземпляр MemoryStore.
// Часы now подменяются в тестах; nil означает time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryStore{
		requests: make(map[string]*models.ServiceRequest),
		offers:   make(map[string]*models.Offer),
		logs:     make(map[string][]models.RequestStatusLog),
		locks:    make(map[string]*sync.Mutex),
		now:      now,
	}
}

// requestLock возвращает мьютекс заявки, создавая его при первом обращении.
func (m *MemoryStore) requestLock(requestId string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[requestId]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[requestId] = lock
	}
	return lock
}

// CreateRequest создает новую заявку в статусе sent.
func (m *MemoryStore) CreateRequest(_ context.Context, input models.CreateRequestInput, isUrgent bool, expiresAt *time.Time) (*models.ServiceRequest, error) {
	newRequest := models.ServiceRequest{
		ID:            uuid.New().String(),
		ClientID:      input.ClientID,
		SubcategoryID: input.SubcategoryID,
		Title:         input.Title,
		Description:   input.Description,
		Type:          input.Type,
		Status:        models.SentRequest,
		City:          input.City,
		IsUrgent:      isUrgent,
		CreatedAt:     m.now(),
		ExpiresAt:     expiresAt,
	}
	if input.TargetProviderID != "" {
		targetId := input.TargetProviderID
		newRequest.TargetProviderID = &targetId
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	stored := newRequest
	m.requests[newRequest.ID] = &stored
	m.appendLog(newRequest.ID, &newRequest.ClientID, models.NewRequest, models.SentRequest, "request created and sent")
	return &newRequest, nil
}

// GetRequestById получает заявку по ID.
func (m *MemoryStore) GetRequestById(_ context.Context, requestId string) (*models.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[requestId]
	if !ok {
		return nil, models.NewNotFound("request not found")
	}
	copied := *request
	return &copied, nil
}

// ListAvailable возвращает незакреплённые заявки, доступные исполнителю.
func (m *MemoryStore) ListAvailable(_ context.Context, provider *models.ProviderProfile, requestType models.RequestType, limit, offset int) ([]models.ServiceRequest, error) {
	if requestType == models.UrgentRequest && !provider.AcceptsUrgent {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var available []models.ServiceRequest
	for _, request := range m.requests {
		if request.Type != requestType || request.Assigned() {
			continue
		}
		if request.Status != models.SentRequest && !(requestType == models.UrgentRequest && request.Status == models.NewRequest) {
			continue
		}
		if request.ExpiredBy(now) {
			continue
		}
		if !utils.IsEligible(provider, request) {
			continue
		}
		available = append(available, *request)
	}
	sortRequests(available)
	return page(available, limit, offset), nil
}

// ListByClient возвращает заявки клиента.
func (m *MemoryStore) ListByClient(_ context.Context, clientId string, statuses []models.RequestStatus, limit, offset int) ([]models.ServiceRequest, error) {
	return m.listFiltered(func(r *models.ServiceRequest) bool { return r.ClientID == clientId }, statuses, limit, offset)
}

// ListByProvider возвращает заявки исполнителя: закреплённые за ним и ещё не
// занятые адресные, направленные ему.
func (m *MemoryStore) ListByProvider(_ context.Context, providerId string, statuses []models.RequestStatus, limit, offset int) ([]models.ServiceRequest, error) {
	return m.listFiltered(func(r *models.ServiceRequest) bool {
		if r.ProviderID != nil {
			return *r.ProviderID == providerId
		}
		return r.TargetProviderID != nil && *r.TargetProviderID == providerId
	}, statuses, limit, offset)
}

func (m *MemoryStore) listFiltered(match func(*models.ServiceRequest) bool, statuses []models.RequestStatus, limit, offset int) ([]models.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.ServiceRequest
	for _, request := range m.requests {
		if !match(request) {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, request.Status) {
			continue
		}
		result = append(result, *request)
	}
	sortRequests(result)
	return page(result, limit, offset), nil
}

// Claim закрепляет заявку за исполнителем под мьютексом заявки.
// Возвращает обновлённую заявку и статус до захвата.
func (m *MemoryStore) Claim(_ context.Context, requestId string, provider *models.ProviderProfile, actorUserId string) (*models.ServiceRequest, models.RequestStatus, error) {
	lock := m.requestLock(requestId)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	request, ok := m.requests[requestId]
	m.mu.Unlock()
	if !ok {
		return nil, "", models.NewNotFound("request not found")
	}

	if claimErr := validateClaim(request, provider, m.now()); claimErr != nil {
		if claimErr.Kind == models.KindExpired {
			m.mu.Lock()
			request.Status = models.ExpiredRequest
			m.mu.Unlock()
		}
		return nil, "", claimErr
	}

	providerId := provider.ID
	oldStatus := request.Status

	m.mu.Lock()
	request.ProviderID = &providerId
	request.Status = models.AcceptedRequest
	m.appendLog(requestId, &actorUserId, oldStatus, models.AcceptedRequest, "claimed by provider")
	copied := *request
	m.mu.Unlock()

	return &copied, oldStatus, nil
}

// ExecuteTransition применяет действие конечного автомата под мьютексом заявки.
func (m *MemoryStore) ExecuteTransition(_ context.Context, requestId string, actorId *string, action models.RequestAction, input models.ActionInput) (*models.ServiceRequest, models.RequestStatus, error) {
	lock := m.requestLock(requestId)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	request, ok := m.requests[requestId]
	m.mu.Unlock()
	if !ok {
		return nil, "", models.NewNotFound("request not found")
	}

	oldStatus := request.Status
	newStatus, err := models.NextStatus(oldStatus, action)
	if err != nil {
		return nil, "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch action {
	case models.StartAction:
		if input.ExpectedDeliveryAt != nil {
			request.ExpectedDeliveryAt = input.ExpectedDeliveryAt
		}
		if input.EstimatedAmount != nil {
			request.EstimatedAmount = input.EstimatedAmount
			request.ReceivedAmount = input.ReceivedAmount
			request.RemainingAmount = input.RemainingAmount
		}
	case models.CompleteAction:
		if input.DeliveredAt != nil {
			request.DeliveredAt = input.DeliveredAt
		}
		if input.ActualAmount != nil {
			request.ActualAmount = input.ActualAmount
		}
	case models.CancelAction:
		if input.Note != "" {
			request.CancelReason = input.Note
		}
	}
	request.Status = newStatus
	m.appendLog(requestId, actorId, oldStatus, newStatus, input.Note)

	copied := *request
	return &copied, oldStatus, nil
}

// ExpireUrgent лениво переводит просроченные срочные заявки в expired.
// Каждая заявка обрабатывается под её мьютексом: просрочка это такой же
// переход, как захват или отмена, и не должна пересекаться с ними.
func (m *MemoryStore) ExpireUrgent(_ context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.requests))
	for id := range m.requests {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		lock := m.requestLock(id)
		lock.Lock()
		m.mu.Lock()
		request, ok := m.requests[id]
		if ok && request.ExpiredBy(m.now()) &&
			(request.Status == models.NewRequest || request.Status == models.SentRequest) {
			request.Status = models.ExpiredRequest
		}
		m.mu.Unlock()
		lock.Unlock()
	}
	return nil
}

// GetStatusLog возвращает журнал смен статуса заявки, новые записи первыми.
func (m *MemoryStore) GetStatusLog(_ context.Context, requestId string) ([]models.RequestStatusLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.logs[requestId]
	result := make([]models.RequestStatusLog, len(entries))
	for i, entry := range entries {
		result[len(entries)-1-i] = entry
	}
	return result, nil
}

// CreateOffer создает новое предложение, отбивая дубль пары (заявка, исполнитель).
func (m *MemoryStore) CreateOffer(_ context.Context, requestId, providerId string, input models.OfferInput) (*models.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, offer := range m.offers {
		if offer.RequestID == requestId && offer.ProviderID == providerId {
			return nil, models.NewConflict("an offer for this request has already been submitted")
		}
	}

	newOffer := models.Offer{
		ID:           uuid.New().String(),
		RequestID:    requestId,
		ProviderID:   providerId,
		Price:        input.Price,
		DurationDays: input.DurationDays,
		Note:         input.Note,
		Status:       models.PendingOffer,
		CreatedAt:    m.now(),
	}
	stored := newOffer
	m.offers[newOffer.ID] = &stored
	return &newOffer, nil
}

// GetOfferById получает предложение по ID.
func (m *MemoryStore) GetOfferById(_ context.Context, offerId string) (*models.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	offer, ok := m.offers[offerId]
	if !ok {
		return nil, models.NewNotFound("offer not found")
	}
	copied := *offer
	return &copied, nil
}

// GetRequestOffers возвращает список предложений по заявке.
func (m *MemoryStore) GetRequestOffers(_ context.Context, requestId string, limit, offset int) ([]models.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var offers []models.Offer
	for _, offer := range m.offers {
		if offer.RequestID == requestId {
			offers = append(offers, *offer)
		}
	}
	sort.Slice(offers, func(i, j int) bool { return offers[i].CreatedAt.After(offers[j].CreatedAt) })
	if offset >= len(offers) {
		return nil, nil
	}
	offers = offers[offset:]
	if limit > 0 && limit < len(offers) {
		offers = offers[:limit]
	}
	return offers, nil
}

// AcceptOffer выбирает предложение под мьютексом заявки: заявка закрепляется
// за исполнителем, выбранное предложение становится selected, остальные - rejected.
// Возвращает обновлённую заявку и статус до выбора.
func (m *MemoryStore) AcceptOffer(_ context.Context, offerId, actorUserId string) (*models.ServiceRequest, models.RequestStatus, error) {
	m.mu.Lock()
	offer, ok := m.offers[offerId]
	m.mu.Unlock()
	if !ok {
		return nil, "", models.NewNotFound("offer not found")
	}

	lock := m.requestLock(offer.RequestID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	request, ok := m.requests[offer.RequestID]
	if !ok {
		return nil, "", models.NewNotFound("request not found")
	}
	if request.ClientID != actorUserId {
		return nil, "", models.NewForbidden("only the request owner can accept an offer")
	}
	if request.Status != models.SentRequest {
		return nil, "", models.NewInvalidTransition("cannot accept an offer in status " + string(request.Status))
	}

	oldStatus := request.Status
	providerId := offer.ProviderID
	request.ProviderID = &providerId
	request.Status = models.AcceptedRequest

	for _, other := range m.offers {
		if other.RequestID == request.ID {
			if other.ID == offer.ID {
				other.Status = models.SelectedOffer
			} else {
				other.Status = models.RejectedOffer
			}
		}
	}

	m.appendLog(request.ID, &actorUserId, oldStatus, models.AcceptedRequest, "offer selected by client")

	copied := *request
	return &copied, oldStatus, nil
}

// appendLog добавляет запись журнала; вызывается под m.mu.
func (m *MemoryStore) appendLog(requestId string, actorId *string, from, to models.RequestStatus, note string) {
	m.logs[requestId] = append(m.logs[requestId], models.RequestStatusLog{
		ID:         uuid.New().String(),
		RequestID:  requestId,
		ActorID:    actorId,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
		CreatedAt:  m.now(),
	})
}

func sortRequests(requests []models.ServiceRequest) {
	sort.Slice(requests, func(i, j int) bool { return requests[i].CreatedAt.After(requests[j].CreatedAt) })
}

func page(requests []models.ServiceRequest, limit, offset int) []models.ServiceRequest {
	if offset >= len(requests) {
		return nil
	}
	requests = requests[offset:]
	if limit > 0 && limit < len(requests) {
		requests = requests[:limit]
	}
	return requests
}

func containsStatus(statuses []models.RequestStatus, status models.RequestStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
