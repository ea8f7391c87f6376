package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type (
	RequestType   string // Тип размещения заявки
	RequestStatus string // Статус заявки
	RequestAction string // Действие над заявкой
)

const (
	NormalRequest      RequestType = "normal"      // Заявка адресована конкретному исполнителю
	CompetitiveRequest RequestType = "competitive" // Заявка разыгрывается через предложения
	UrgentRequest      RequestType = "urgent"      // Срочная заявка с дедлайном

	NewRequest        RequestStatus = "new"         // Заявка создана
	SentRequest       RequestStatus = "sent"        // Заявка видна исполнителям
	AcceptedRequest   RequestStatus = "accepted"    // Заявка закреплена за исполнителем
	InProgressRequest RequestStatus = "in_progress" // Заявка в работе
	CompletedRequest  RequestStatus = "completed"   // Заявка выполнена
	CancelledRequest  RequestStatus = "cancelled"   // Заявка отменена
	ExpiredRequest    RequestStatus = "expired"     // Срок срочной заявки истёк

	SendAction     RequestAction = "send"     // Отправить заявку исполнителям
	AcceptAction   RequestAction = "accept"   // Принять заявку
	StartAction    RequestAction = "start"    // Начать выполнение
	CompleteAction RequestAction = "complete" // Завершить выполнение
	CancelAction   RequestAction = "cancel"   // Отменить заявку
	ExpireAction   RequestAction = "expire"   // Системное истечение срока
)

// ServiceRequest представляет модель заявки на услугу.
type ServiceRequest struct {
	ID                 string           `json:"id"`
	ClientID           string           `json:"clientId"`
	ProviderID         *string          `json:"providerId"`
	TargetProviderID   *string          `json:"targetProviderId,omitempty"`
	SubcategoryID      string           `json:"subcategoryId"`
	Title              string           `json:"title"`
	Description        string           `json:"description"`
	Type               RequestType      `json:"type"`
	Status             RequestStatus    `json:"status"`
	City               string           `json:"city"`
	IsUrgent           bool             `json:"isUrgent"`
	CreatedAt          time.Time        `json:"createdAt"`
	ExpiresAt          *time.Time       `json:"expiresAt,omitempty"`
	ExpectedDeliveryAt *time.Time       `json:"expectedDeliveryAt,omitempty"`
	EstimatedAmount    *decimal.Decimal `json:"estimatedAmount,omitempty"`
	ReceivedAmount     *decimal.Decimal `json:"receivedAmount,omitempty"`
	RemainingAmount    *decimal.Decimal `json:"remainingAmount,omitempty"`
	DeliveredAt        *time.Time       `json:"deliveredAt,omitempty"`
	ActualAmount       *decimal.Decimal `json:"actualAmount,omitempty"`
	CancelReason       string           `json:"cancelReason,omitempty"`
}

// CreateRequestInput представляет структуру запроса для создания заявки.
type CreateRequestInput struct {
	ClientID         string      `json:"clientId"`
	SubcategoryID    string      `json:"subcategoryId"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Type             RequestType `json:"type"`
	City             string      `json:"city"`
	TargetProviderID string      `json:"targetProviderId,omitempty"`
}

// ActionInput представляет структуру запроса для выполнения действия над заявкой.
type ActionInput struct {
	Action             RequestAction    `json:"action"`
	Note               string           `json:"note,omitempty"`
	ExpectedDeliveryAt *time.Time       `json:"expectedDeliveryAt,omitempty"`
	EstimatedAmount    *decimal.Decimal `json:"estimatedAmount,omitempty"`
	ReceivedAmount     *decimal.Decimal `json:"receivedAmount,omitempty"`
	RemainingAmount    *decimal.Decimal `json:"remainingAmount,omitempty"`
	DeliveredAt        *time.Time       `json:"deliveredAt,omitempty"`
	ActualAmount       *decimal.Decimal `json:"actualAmount,omitempty"`
}

// Assigned возвращает true, если заявка закреплена за исполнителем.
func (r *ServiceRequest) Assigned() bool {
	return r.ProviderID != nil
}

// ExpiredBy возвращает true, если срок срочной заявки истёк к моменту now.
func (r *ServiceRequest) ExpiredBy(now time.Time) bool {
	return r.Type == UrgentRequest && r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}
