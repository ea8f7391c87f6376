package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OfferStatus string // Статус предложения исполнителя

const (
	PendingOffer  OfferStatus = "pending"  // Предложение ожидает решения клиента
	SelectedOffer OfferStatus = "selected" // Предложение выбрано клиентом
	RejectedOffer OfferStatus = "rejected" // Предложение отклонено
)

// Offer представляет модель предложения исполнителя по конкурсной заявке.
type Offer struct {
	ID           string          `json:"id"`
	RequestID    string          `json:"requestId"`
	ProviderID   string          `json:"providerId"`
	Price        decimal.Decimal `json:"price"`
	DurationDays int             `json:"durationDays"`
	Note         string          `json:"note,omitempty"`
	Status       OfferStatus     `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// OfferInput представляет структуру запроса для создания предложения.
type OfferInput struct {
	Price        decimal.Decimal `json:"price"`
	DurationDays int             `json:"durationDays"`
	Note         string          `json:"note,omitempty"`
}
